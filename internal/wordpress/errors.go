package wordpress

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork matches every transport-level failure, timeouts included.
	ErrNetwork = errors.New("network error")
	// ErrMalformedPayload is returned when a response body does not match the expected schema.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrResponseTooLarge is returned when a response body exceeds the read limit.
	ErrResponseTooLarge = errors.New("response too large")
)

// NetworkError wraps the transport failure behind ErrNetwork.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNetwork) match without losing the cause.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// HTTPError is a non-2xx response. Code and Message come from the WordPress error body when present.
type HTTPError struct {
	Endpoint string
	Status   int
	Code     string
	Message  string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Status)
}

// Unauthorized reports whether the backend rejected the caller's identity.
func (e *HTTPError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

// wpError is the error body shape WordPress REST returns.
type wpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}
