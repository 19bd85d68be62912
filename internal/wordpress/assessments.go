package wordpress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Submission is the body posted to a test's submit route.
type Submission struct {
	Answers   any  `json:"answers"`
	TimeTaken *int `json:"time_taken,omitempty"`
}

// FetchQuestions returns the raw question payload for a test. token may be empty.
func (c *Client) FetchQuestions(ctx context.Context, test, token string) (json.RawMessage, error) {
	return c.doJSON(ctx, call{
		endpoint: "questions",
		method:   http.MethodGet,
		url:      c.apiRoot + "/" + url.PathEscape(test) + "/questions",
		token:    token,
	})
}

// Submit posts answers for scoring and returns the result body unmodified.
func (c *Client) Submit(ctx context.Context, test, token string, submission Submission) (json.RawMessage, error) {
	return c.doJSON(ctx, call{
		endpoint: "submit",
		method:   http.MethodPost,
		url:      c.apiRoot + "/" + url.PathEscape(test) + "/submit",
		token:    token,
		body:     submission,
	})
}

// History lists prior submissions, optionally narrowed to one test.
func (c *Client) History(ctx context.Context, token, test string) (json.RawMessage, error) {
	target := c.apiRoot + "/history"
	if test != "" {
		target += "?" + url.Values{"test": []string{test}}.Encode()
	}
	return c.doJSON(ctx, call{
		endpoint: "history",
		method:   http.MethodGet,
		url:      target,
		token:    token,
	})
}
