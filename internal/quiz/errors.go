package quiz

import (
	"errors"
	"fmt"

	"github.com/gokatarajesh/career-assessment/internal/wordpress"
)

var (
	// ErrIncomplete matches every ValidationError.
	ErrIncomplete = errors.New("answer record incomplete")
	// ErrUnknownQuestion is returned when an answer names a question outside the set.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrInvalidState matches every StateError.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrStaleSession means a response arrived for a session that is no longer current.
	ErrStaleSession = errors.New("session no longer current")
	// ErrNoSession means the runner has no session to operate on.
	ErrNoSession = errors.New("no active session")
	// ErrUnknownTest means no definition exists for the requested slug.
	ErrUnknownTest = errors.New("unknown test")
)

// ValidationError rejects a submit attempted before every question was answered.
type ValidationError struct {
	Answered int
	Total    int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("answered %d of %d questions", e.Answered, e.Total)
}

func (e *ValidationError) Is(target error) bool { return target == ErrIncomplete }

// StateError rejects an operation the session's status does not allow.
type StateError struct {
	Op     string
	Status Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed while %s", e.Op, e.Status)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

// failure records the error a session is parked on.
type failure struct {
	err   error
	phase Phase
}

func (f *failure) view() *FailureView {
	if f == nil {
		return nil
	}
	out := &FailureView{Kind: errorKind(f.err), Message: f.err.Error(), Phase: f.phase}
	out.Status = wordpress.StatusOf(f.err)
	return out
}

// errorKind classifies err into the kinds surfaced to clients.
func errorKind(err error) string {
	var httpErr *wordpress.HTTPError
	switch {
	case errors.Is(err, wordpress.ErrNetwork):
		return "network"
	case errors.As(err, &httpErr):
		return "http"
	case errors.Is(err, wordpress.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, wordpress.ErrResponseTooLarge):
		return "response_too_large"
	case errors.Is(err, ErrIncomplete):
		return "validation"
	default:
		return "internal"
	}
}
