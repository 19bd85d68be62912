package quiz

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/metrics"
	"github.com/gokatarajesh/career-assessment/internal/question"
	"github.com/gokatarajesh/career-assessment/internal/wordpress"
)

// Submitter posts a submission to the scoring backend.
type Submitter interface {
	Submit(ctx context.Context, test, token string, submission wordpress.Submission) (json.RawMessage, error)
}

// Dropped is an answer left out of a partitioned submission.
type Dropped struct {
	QuestionID string
	Group      string
}

// BuildSubmission packages answers for the definition's submit route. Answers are keyed by the
// backend's source id. With partitions, answers are nested per group and answers whose group is
// not a partition are returned as dropped.
func BuildSubmission(def Definition, questions []question.Question, answers map[string]string, elapsedSeconds int) (wordpress.Submission, []Dropped) {
	var sub wordpress.Submission
	var dropped []Dropped

	if len(def.Partitions) == 0 {
		flat := make(map[string]string, len(answers))
		for _, q := range questions {
			if key, ok := answers[q.ID]; ok {
				flat[q.SourceID] = key
			}
		}
		sub.Answers = flat
	} else {
		grouped := make(map[string]map[string]string, len(def.Partitions))
		for _, p := range def.Partitions {
			grouped[p] = make(map[string]string)
		}
		for _, q := range questions {
			key, ok := answers[q.ID]
			if !ok {
				continue
			}
			part, ok := grouped[q.Group]
			if !ok {
				dropped = append(dropped, Dropped{QuestionID: q.ID, Group: q.Group})
				continue
			}
			part[q.SourceID] = key
		}
		sub.Answers = grouped
	}

	if def.IncludeTimeTaken {
		taken := elapsedSeconds
		sub.TimeTaken = &taken
	}
	return sub, dropped
}

// packageSubmission builds the session's submission and reports dropped answers.
func packageSubmission(def Definition, s *Session, logger zerolog.Logger) wordpress.Submission {
	sub, dropped := BuildSubmission(def, s.Questions(), s.answers, s.elapsed())
	for _, d := range dropped {
		metrics.DroppedAnswers.WithLabelValues(def.Slug).Inc()
		logger.Warn().
			Str("test", def.Slug).
			Str("session_id", s.ID()).
			Str("question_id", d.QuestionID).
			Str("group", d.Group).
			Msg("answer dropped: group matches no submission partition")
	}
	return sub
}
