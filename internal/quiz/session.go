package quiz

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gokatarajesh/career-assessment/internal/question"
)

// Session is one test-taking attempt. It is not safe for concurrent use; Runner serializes access.
type Session struct {
	id   string
	test string
	now  func() time.Time

	questions []question.Question
	positions map[string]int
	current   int
	answers   map[string]string

	status  Status
	failure *failure
	result  json.RawMessage

	loadedAt  time.Time
	touchedAt time.Time
}

// NewSession starts a fresh attempt in the loading state.
func NewSession(test string, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:        uuid.NewString(),
		test:      test,
		now:       now,
		answers:   make(map[string]string),
		positions: make(map[string]int),
		status:    StatusLoading,
		touchedAt: now(),
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Test() string   { return s.test }
func (s *Session) Status() Status { return s.status }

// CurrentIndex is in [0, len(questions)]; len(questions) means past the last question.
func (s *Session) CurrentIndex() int { return s.current }

// Questions returns the loaded set. Callers must not modify it.
func (s *Session) Questions() []question.Question { return s.questions }

// Answers returns a copy of the answer record.
func (s *Session) Answers() map[string]string {
	out := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// TouchedAt is the time of the last operation on the session.
func (s *Session) TouchedAt() time.Time { return s.touchedAt }

// Err returns the error the session is parked on, if any.
func (s *Session) Err() error {
	if s.failure == nil {
		return nil
	}
	return s.failure.err
}

// Result returns the scoring payload once the session reached StatusResult.
func (s *Session) Result() json.RawMessage { return s.result }

func (s *Session) touch() { s.touchedAt = s.now() }

func (s *Session) require(op string, allowed ...Status) error {
	for _, st := range allowed {
		if s.status == st {
			return nil
		}
	}
	return &StateError{Op: op, Status: s.status}
}

// Loaded installs the fetched question set. The set is fixed for the rest of the session.
func (s *Session) Loaded(questions []question.Question) error {
	if err := s.require("load", StatusLoading); err != nil {
		return err
	}
	positions := make(map[string]int, len(questions))
	for i, q := range questions {
		if _, dup := positions[q.ID]; dup {
			return fmt.Errorf("load: duplicate question id %q", q.ID)
		}
		positions[q.ID] = i
	}
	s.questions = questions
	s.positions = positions
	s.current = 0
	s.failure = nil
	s.status = StatusInProgress
	s.loadedAt = s.now()
	s.touch()
	return nil
}

// LoadFailed parks the session on a load-phase error.
func (s *Session) LoadFailed(err error) error {
	if e := s.require("load", StatusLoading); e != nil {
		return e
	}
	s.failure = &failure{err: err, phase: PhaseLoad}
	s.status = StatusError
	s.touch()
	return nil
}

// RecordAnswer stores key for questionID, replacing any earlier answer. The key is not checked
// against the question's choices.
func (s *Session) RecordAnswer(questionID, key string) error {
	if err := s.require("answer", StatusInProgress); err != nil {
		return err
	}
	if _, ok := s.positions[questionID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	s.answers[questionID] = key
	s.touch()
	return nil
}

// Advance moves forward one question, stopping at len(questions).
func (s *Session) Advance() error {
	if err := s.require("advance", StatusInProgress); err != nil {
		return err
	}
	if s.current < len(s.questions) {
		s.current++
	}
	s.touch()
	return nil
}

// Retreat moves back one question, stopping at 0.
func (s *Session) Retreat() error {
	if err := s.require("retreat", StatusInProgress); err != nil {
		return err
	}
	if s.current > 0 {
		s.current--
	}
	s.touch()
	return nil
}

// Progress returns (current+1)/total capped at 1. ok is false for an empty set.
func (s *Session) Progress() (float64, bool) {
	total := len(s.questions)
	if total == 0 {
		return 0, false
	}
	p := float64(s.current+1) / float64(total)
	if p > 1 {
		p = 1
	}
	return p, true
}

// IsComplete reports whether every question has an answer, independent of position.
// A session without questions is never complete.
func (s *Session) IsComplete() bool {
	return len(s.questions) > 0 && len(s.answers) == len(s.questions)
}

// CanSubmit is equivalent to IsComplete.
func (s *Session) CanSubmit() bool { return s.IsComplete() }

// BeginSubmit moves an in-progress, complete session to submitting.
func (s *Session) BeginSubmit() error {
	if err := s.require("submit", StatusInProgress); err != nil {
		return err
	}
	if !s.IsComplete() {
		return &ValidationError{Answered: len(s.answers), Total: len(s.questions)}
	}
	s.status = StatusSubmitting
	s.touch()
	return nil
}

// Submitted stores the scoring payload and ends the attempt.
func (s *Session) Submitted(result json.RawMessage) error {
	if err := s.require("submit", StatusSubmitting); err != nil {
		return err
	}
	s.result = result
	s.failure = nil
	s.status = StatusResult
	s.touch()
	return nil
}

// SubmitFailed parks the session on a submit-phase error. Answers are kept for a retry.
func (s *Session) SubmitFailed(err error) error {
	if e := s.require("submit", StatusSubmitting); e != nil {
		return e
	}
	s.failure = &failure{err: err, phase: PhaseSubmit}
	s.status = StatusError
	s.touch()
	return nil
}

// BeginRetry leaves the error state toward the phase that failed.
func (s *Session) BeginRetry() (Phase, error) {
	if err := s.require("retry", StatusError); err != nil {
		return "", err
	}
	phase := s.failure.phase
	switch phase {
	case PhaseLoad:
		s.status = StatusLoading
	case PhaseSubmit:
		s.status = StatusSubmitting
	}
	s.failure = nil
	s.touch()
	return phase, nil
}

// elapsed is the whole seconds spent since questions were loaded.
func (s *Session) elapsed() int {
	if s.loadedAt.IsZero() {
		return 0
	}
	return int(s.now().Sub(s.loadedAt) / time.Second)
}

// View renders the session for callers.
func (s *Session) View() View {
	v := View{
		ID:           s.id,
		Test:         s.test,
		Status:       s.status,
		CurrentIndex: s.current,
		Total:        len(s.questions),
		Answered:     len(s.answers),
		Complete:     s.IsComplete(),
		Questions:    s.questions,
		Answers:      s.Answers(),
		Result:       s.result,
		Error:        s.failure.view(),
	}
	if v.Questions == nil {
		v.Questions = []question.Question{}
	}
	if p, ok := s.Progress(); ok {
		v.Progress = &p
	}
	return v
}
