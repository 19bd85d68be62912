package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gokatarajesh/career-assessment/internal/question"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusLoading    Status = "loading"
	StatusInProgress Status = "in_progress"
	StatusSubmitting Status = "submitting"
	StatusResult     Status = "result"
	StatusError      Status = "error"
)

// Phase tells which network step an error status came from.
type Phase string

const (
	PhaseLoad   Phase = "load"
	PhaseSubmit Phase = "submit"
)

// Definition is everything a test type contributes to the shared runner.
type Definition struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`

	Rules question.Rules `json:"-"`

	// Partitions lists the groups a grouped submission is split into. Empty means a flat answer map.
	Partitions []string `json:"partitions,omitempty"`
	// QuestionsRequireAuth forwards the caller's token when fetching questions.
	QuestionsRequireAuth bool `json:"questions_require_auth"`
	// IncludeTimeTaken adds elapsed seconds to the submission.
	IncludeTimeTaken bool `json:"include_time_taken"`
}

// Validate checks the definition is usable by a Runner.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Slug) == "" {
		return fmt.Errorf("definition: slug required")
	}
	if err := d.Rules.Validate(); err != nil {
		return fmt.Errorf("definition %s: %w", d.Slug, err)
	}
	seen := make(map[string]struct{}, len(d.Partitions))
	for _, p := range d.Partitions {
		if p == "" {
			return fmt.Errorf("definition %s: empty partition", d.Slug)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("definition %s: duplicate partition %q", d.Slug, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// View is the read model of a Session handed to callers and serialized over HTTP.
type View struct {
	ID           string              `json:"id"`
	Test         string              `json:"test"`
	Status       Status              `json:"status"`
	CurrentIndex int                 `json:"current_index"`
	Total        int                 `json:"total"`
	Answered     int                 `json:"answered"`
	Progress     *float64            `json:"progress,omitempty"`
	Complete     bool                `json:"complete"`
	Questions    []question.Question `json:"questions"`
	Answers      map[string]string   `json:"answers"`
	Result       json.RawMessage     `json:"result,omitempty"`
	Error        *FailureView        `json:"error,omitempty"`
}

// FailureView describes the error a Session is parked on.
type FailureView struct {
	Kind    string `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
	Phase   Phase  `json:"phase"`
}

// CloseReason tells why a session was discarded.
type CloseReason string

const (
	CloseAbandoned CloseReason = "abandoned"
	CloseExpired   CloseReason = "expired"
)

// SessionEvent is published on every state change of a Session. Closed is set when the
// session was discarded; View then holds its last state.
type SessionEvent struct {
	UserID string
	View   View
	Closed CloseReason
}

// Observer receives session events. Calls happen with the runner locked and must not block
// or call back into the runner.
type Observer interface {
	SessionChanged(event SessionEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(event SessionEvent)

func (f ObserverFunc) SessionChanged(event SessionEvent) { f(event) }

// ResultEvent is handed to the hosting application once a submission is scored.
type ResultEvent struct {
	UserID      string          `json:"user_id"`
	Test        string          `json:"test"`
	SessionID   string          `json:"session_id"`
	Result      json.RawMessage `json:"result"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// ResultHandler is the result-ready hand-off. Errors are logged and never fail the submission.
type ResultHandler interface {
	ResultReady(ctx context.Context, event ResultEvent) error
}

// ResultHandlerFunc adapts a function to ResultHandler.
type ResultHandlerFunc func(ctx context.Context, event ResultEvent) error

func (f ResultHandlerFunc) ResultReady(ctx context.Context, event ResultEvent) error {
	return f(ctx, event)
}
