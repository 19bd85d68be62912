// Package catalog declares the assessment types the service hosts.
package catalog

import (
	"github.com/gokatarajesh/career-assessment/internal/question"
	"github.com/gokatarajesh/career-assessment/internal/quiz"
)

// Test slugs, also used as backend route segments.
const (
	MBTI      = "mbti"
	EQ        = "eq"
	Holland   = "holland"
	Cognitive = "cognitive"
	Values    = "values"
	Filtering = "filtering"
)

// compositeTypes are multi-part item types no test can render.
func compositeTypes() []string { return []string{"complex"} }

// Definitions returns every hosted test type in display order.
func Definitions() []quiz.Definition {
	skip := question.Rules{NoChoices: question.NoChoicesSkip, UnsupportedTypes: compositeTypes()}
	binary := question.Rules{NoChoices: question.NoChoicesBinary, UnsupportedTypes: compositeTypes()}

	return []quiz.Definition{
		{
			Slug:  MBTI,
			Title: "Trắc nghiệm tính cách MBTI",
			Rules: skip,
		},
		{
			Slug:  EQ,
			Title: "Trí tuệ cảm xúc (EQ)",
			Rules: skip,
		},
		{
			Slug:  Holland,
			Title: "Sở thích nghề nghiệp Holland",
			Rules: skip,
		},
		{
			Slug:  Cognitive,
			Title: "Năng lực nhận thức",
			Rules: skip,
			IncludeTimeTaken: true,
		},
		{
			Slug:  Values,
			Title: "Giá trị nghề nghiệp",
			Rules: binary,
		},
		{
			Slug:                 Filtering,
			Title:                "Bài kiểm tra sàng lọc",
			Rules:                binary,
			Partitions:           []string{MBTI, EQ, Cognitive, Holland, Values},
			QuestionsRequireAuth: true,
			IncludeTimeTaken:     true,
		},
	}
}
