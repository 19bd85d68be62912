package question

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/metrics"
)

// Fetcher returns the raw question payload for a test.
type Fetcher interface {
	FetchQuestions(ctx context.Context, test, token string) (json.RawMessage, error)
}

// Loader fetches and normalizes question sets. It never caches: each call hits the backend.
type Loader struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

// NewLoader builds a loader on top of fetcher.
func NewLoader(fetcher Fetcher, logger zerolog.Logger) *Loader {
	return &Loader{
		fetcher: fetcher,
		logger:  logger.With().Str("component", "question_loader").Logger(),
	}
}

// Load fetches the test's payload and returns its questions in source order.
// Transport errors are returned unchanged so callers can match wordpress error types.
func (l *Loader) Load(ctx context.Context, test string, rules Rules, token string) ([]Question, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	raw, err := l.fetcher.FetchQuestions(ctx, test, token)
	if err != nil {
		return nil, err
	}

	set, err := Normalize(raw, rules)
	for _, skip := range set.Skipped {
		metrics.SkippedQuestions.WithLabelValues(test, skip.Reason).Inc()
		l.logger.Warn().
			Str("test", test).
			Int("index", skip.Index).
			Str("group", skip.Group).
			Str("question_id", skip.ID).
			Str("reason", skip.Reason).
			Msg("question item skipped")
	}
	if err != nil {
		return nil, err
	}

	l.logger.Debug().
		Str("test", test).
		Int("questions", len(set.Questions)).
		Bool("grouped", set.Grouped).
		Msg("question set loaded")
	return set.Questions, nil
}
