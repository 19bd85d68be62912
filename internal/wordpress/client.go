package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/metrics"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 4 << 20
)

// HTTPDoer abstracts the HTTP client so tests and callers can inject transports.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds connection details for the WordPress REST backend.
type Config struct {
	BaseURL       string
	APINamespace  string
	AuthNamespace string
	Timeout       time.Duration
}

// UnauthorizedFunc is invoked with the rejected token whenever an authenticated call returns 401.
type UnauthorizedFunc func(ctx context.Context, token string)

// Client talks to the WordPress REST API. Every call is bounded by the same timeout.
type Client struct {
	httpClient     HTTPDoer
	apiRoot        string
	authRoot       string
	timeout        time.Duration
	logger         zerolog.Logger
	onUnauthorized UnauthorizedFunc
}

// NewClient builds a client. A nil httpClient falls back to a plain http.Client.
func NewClient(cfg Config, httpClient HTTPDoer, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	apiNS := strings.Trim(cfg.APINamespace, "/")
	if apiNS == "" {
		apiNS = "career/v1"
	}
	authNS := strings.Trim(cfg.AuthNamespace, "/")
	if authNS == "" {
		authNS = "jwt-auth/v1"
	}
	root := strings.TrimSuffix(cfg.BaseURL, "/") + "/wp-json/"

	return &Client{
		httpClient: httpClient,
		apiRoot:    root + apiNS,
		authRoot:   root + authNS,
		timeout:    timeout,
		logger:     logger.With().Str("component", "wordpress").Logger(),
	}
}

// OnUnauthorized registers the hook fired on 401 responses to authenticated calls.
func (c *Client) OnUnauthorized(fn UnauthorizedFunc) {
	c.onUnauthorized = fn
}

type call struct {
	endpoint string
	method   string
	url      string
	token    string
	body     any
}

// do executes a call and returns the raw 2xx body.
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", cl.endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, cl.url, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", cl.endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.BackendLatency.WithLabelValues(cl.endpoint).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.BackendRequests.WithLabelValues(cl.endpoint, "network").Inc()
		return nil, &NetworkError{Endpoint: cl.endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		metrics.BackendRequests.WithLabelValues(cl.endpoint, "network").Inc()
		return nil, &NetworkError{Endpoint: cl.endpoint, Err: err}
	}
	if len(body) > maxResponseSize {
		metrics.BackendRequests.WithLabelValues(cl.endpoint, "too_large").Inc()
		return nil, fmt.Errorf("%s: %w: more than %d bytes", cl.endpoint, ErrResponseTooLarge, maxResponseSize)
	}
	metrics.BackendRequests.WithLabelValues(cl.endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{Endpoint: cl.endpoint, Status: resp.StatusCode}
		var wpErr wpError
		if json.Unmarshal(body, &wpErr) == nil {
			httpErr.Code = wpErr.Code
			httpErr.Message = wpErr.Message
		}
		if httpErr.Unauthorized() && cl.token != "" {
			c.logger.Warn().Str("endpoint", cl.endpoint).Msg("backend rejected token")
			if c.onUnauthorized != nil {
				c.onUnauthorized(ctx, cl.token)
			}
		}
		return nil, httpErr
	}
	return body, nil
}

// doJSON executes a call and requires the body to be a JSON document.
func (c *Client) doJSON(ctx context.Context, cl call) (json.RawMessage, error) {
	body, err := c.do(ctx, cl)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: %w", cl.endpoint, ErrMalformedPayload)
	}
	return json.RawMessage(body), nil
}
