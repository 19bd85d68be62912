package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/auth"
	"github.com/gokatarajesh/career-assessment/internal/wordpress"
	httperrors "github.com/gokatarajesh/career-assessment/pkg/http/errors"
)

// HistoryFetcher proxies the caller's past results.
type HistoryFetcher interface {
	History(ctx context.Context, token, test string) (json.RawMessage, error)
}

// HTTPHandlers provides REST endpoints for quiz sessions.
type HTTPHandlers struct {
	manager  *Manager
	history  HistoryFetcher
	loginURL string
	logger   zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for quiz endpoints.
func NewHTTPHandlers(manager *Manager, history HistoryFetcher, loginURL string, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		manager:  manager,
		history:  history,
		loginURL: loginURL,
		logger:   logger.With().Str("component", "quiz_http").Logger(),
	}
}

// ListTests handles GET /v1/tests
func (h *HTTPHandlers) ListTests(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tests": h.manager.Definitions(),
	})
}

// StartSession handles POST /v1/tests/{test}/session
func (h *HTTPHandlers) StartSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	view, err := h.manager.Start(r.Context(), principal.UserID, r.PathValue("test"), principal.Token)
	if errors.Is(err, ErrUnknownTest) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownTest, "Unknown test")
		return
	}
	if err != nil {
		h.respondSessionError(w, view, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, view)
}

// GetSession handles GET /v1/tests/{test}/session
func (h *HTTPHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	_, runner, ok := h.runner(w, r)
	if !ok {
		return
	}
	view, err := runner.View()
	if err != nil {
		h.respondSessionError(w, view, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// AbandonSession handles DELETE /v1/tests/{test}/session
func (h *HTTPHandlers) AbandonSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	test := r.PathValue("test")
	if _, known := h.manager.Definition(test); !known {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownTest, "Unknown test")
		return
	}
	if !h.manager.Abandon(principal.UserID, test) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "No active session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	Key *string `json:"key"`
}

// RecordAnswer handles PUT /v1/tests/{test}/session/answers/{question}
func (h *HTTPHandlers) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	_, runner, ok := h.runner(w, r)
	if !ok {
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.Key == nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "key is required", "key")
		return
	}

	view, err := runner.Answer(r.PathValue("question"), *req.Key)
	if err != nil {
		h.respondSessionError(w, view, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// Advance handles POST /v1/tests/{test}/session/advance
func (h *HTTPHandlers) Advance(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*Runner).Advance)
}

// Retreat handles POST /v1/tests/{test}/session/retreat
func (h *HTTPHandlers) Retreat(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*Runner).Retreat)
}

func (h *HTTPHandlers) navigate(w http.ResponseWriter, r *http.Request, op func(*Runner) (View, error)) {
	_, runner, ok := h.runner(w, r)
	if !ok {
		return
	}
	view, err := op(runner)
	if err != nil {
		h.respondSessionError(w, view, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// Submit handles POST /v1/tests/{test}/session/submit
func (h *HTTPHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	principal, runner, ok := h.runner(w, r)
	if !ok {
		return
	}
	view, err := runner.Submit(r.Context(), principal.Token)
	if err != nil {
		h.respondSessionError(w, view, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// Retry handles POST /v1/tests/{test}/session/retry
func (h *HTTPHandlers) Retry(w http.ResponseWriter, r *http.Request) {
	principal, runner, ok := h.runner(w, r)
	if !ok {
		return
	}
	view, err := runner.Retry(r.Context(), principal.Token)
	if err != nil {
		h.respondSessionError(w, view, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// History handles GET /v1/history?test={slug}
func (h *HTTPHandlers) History(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}
	test := r.URL.Query().Get("test")
	if test != "" {
		if _, known := h.manager.Definition(test); !known {
			httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownTest, "Unknown test")
			return
		}
	}

	body, err := h.history.History(r.Context(), principal.Token, test)
	if err != nil {
		h.respondSessionError(w, View{}, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *HTTPHandlers) principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		auth.RespondLoginRequired(w, h.loginURL, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return nil, false
	}
	return principal, true
}

// runner resolves the caller's existing runner for the path test; it never creates one.
func (h *HTTPHandlers) runner(w http.ResponseWriter, r *http.Request) (*auth.Principal, *Runner, bool) {
	principal, ok := h.principal(w, r)
	if !ok {
		return nil, nil, false
	}
	test := r.PathValue("test")
	if _, known := h.manager.Definition(test); !known {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownTest, "Unknown test")
		return nil, nil, false
	}
	runner, found := h.manager.Lookup(principal.UserID, test)
	if !found {
		h.respondSessionError(w, View{}, ErrNoSession)
		return nil, nil, false
	}
	return principal, runner, true
}

// respondSessionError maps quiz and backend errors onto the standard error envelope.
// When the session exists its view is attached under details.session.
func (h *HTTPHandlers) respondSessionError(w http.ResponseWriter, view View, err error) {
	details := map[string]interface{}{}
	if view.ID != "" {
		details["session"] = view
	}

	var (
		validation *ValidationError
		httpErr    *wordpress.HTTPError
	)
	switch {
	case errors.As(err, &validation):
		details["answered"] = validation.Answered
		details["total"] = validation.Total
		httperrors.RespondErrorWithDetails(w, http.StatusBadRequest, httperrors.ErrCodeValidationFailed, err.Error(), details)
	case errors.Is(err, ErrUnknownQuestion):
		httperrors.RespondErrorWithDetails(w, http.StatusNotFound, httperrors.ErrCodeQuestionNotFound, err.Error(), details)
	case errors.Is(err, ErrInvalidState):
		httperrors.RespondErrorWithDetails(w, http.StatusConflict, httperrors.ErrCodeConflict, err.Error(), details)
	case errors.Is(err, ErrNoSession):
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "No active session")
	case errors.Is(err, ErrStaleSession):
		httperrors.RespondError(w, http.StatusConflict, httperrors.ErrCodeStaleSession, "Session was replaced while the request was in flight")
	case errors.As(err, &httpErr) && httpErr.Unauthorized():
		details["login_url"] = h.loginURL
		httperrors.RespondErrorWithDetails(w, http.StatusUnauthorized, httperrors.ErrCodeTokenExpired, "Session expired, please log in again", details)
	case errors.As(err, &httpErr):
		details["upstream_status"] = httpErr.Status
		if httpErr.Code != "" {
			details["upstream_code"] = httpErr.Code
		}
		httperrors.RespondErrorWithDetails(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamError, err.Error(), details)
	case errors.Is(err, wordpress.ErrNetwork):
		h.logger.Warn().Err(err).Msg("backend unavailable")
		httperrors.RespondErrorWithDetails(w, http.StatusGatewayTimeout, httperrors.ErrCodeUpstreamUnavailable, "Backend unavailable", details)
	case errors.Is(err, wordpress.ErrMalformedPayload):
		h.logger.Error().Err(err).Msg("backend payload malformed")
		httperrors.RespondErrorWithDetails(w, http.StatusBadGateway, httperrors.ErrCodeMalformedPayload, err.Error(), details)
	case errors.Is(err, wordpress.ErrResponseTooLarge):
		h.logger.Error().Err(err).Msg("backend response too large")
		httperrors.RespondErrorWithDetails(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamTooLarge, err.Error(), details)
	default:
		h.logger.Error().Err(err).Msg("quiz operation failed")
		httperrors.RespondInternalError(w, "Internal error")
	}
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode response")
	}
}
