package result

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/auth"
	httperrors "github.com/gokatarajesh/career-assessment/pkg/http/errors"
)

// HTTPHandler exposes the latest cached result.
type HTTPHandler struct {
	store  Store
	known  func(test string) bool
	logger zerolog.Logger
}

// NewHTTPHandler builds the handler. known reports whether a test slug exists.
func NewHTTPHandler(store Store, known func(test string) bool, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		store:  store,
		known:  known,
		logger: logger.With().Str("component", "result_http").Logger(),
	}
}

// Latest handles GET /v1/results/latest?test={slug}
func (h *HTTPHandler) Latest(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	test := r.URL.Query().Get("test")
	if test == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "test is required", "test")
		return
	}
	if h.known != nil && !h.known(test) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownTest, "Unknown test")
		return
	}

	event, err := h.store.Latest(r.Context(), principal.UserID, test)
	if errors.Is(err, ErrNotFound) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeResultNotFound, "No result recorded for this test")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", principal.UserID).Str("test", test).Msg("result fetch failed")
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Result cache unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"test":         event.Test,
		"session_id":   event.SessionID,
		"result":       event.Result,
		"submitted_at": event.SubmittedAt.UTC().Format(time.RFC3339),
	})
}
