package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/wordpress"
	httperrors "github.com/gokatarajesh/career-assessment/pkg/http/errors"
)

// SessionCloser discards a user's in-memory quiz sessions.
type SessionCloser interface {
	AbandonUser(userID string) int
}

// HTTPHandlers provides REST endpoints for authentication.
type HTTPHandlers struct {
	authSvc  *Service
	sessions SessionCloser
	loginURL string
	logger   zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for auth endpoints. sessions may be nil.
func NewHTTPHandlers(authSvc *Service, sessions SessionCloser, loginURL string, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		authSvc:  authSvc,
		sessions: sessions,
		loginURL: loginURL,
		logger:   logger.With().Str("component", "auth_http").Logger(),
	}
}

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /v1/auth/login
func (h *HTTPHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	identity, principal, err := h.authSvc.Login(r.Context(), wordpress.Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		h.respondLoginError(w, err)
		return
	}

	resp := map[string]interface{}{
		"token":        identity.Token,
		"user_id":      principal.UserID,
		"email":        identity.Email,
		"nicename":     identity.Nicename,
		"display_name": identity.DisplayName,
	}
	if !principal.ExpiresAt.IsZero() {
		resp["expires_at"] = principal.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandlers) respondLoginError(w http.ResponseWriter, err error) {
	var httpErr *wordpress.HTTPError
	switch {
	case errors.Is(err, ErrMissingUsername):
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, err.Error(), "username")
	case errors.As(err, &httpErr) && httpErr.Status < 500:
		message := httpErr.Message
		if message == "" {
			message = "Login failed"
		}
		httperrors.RespondErrorWithDetails(w, http.StatusUnauthorized, httperrors.ErrCodeLoginFailed, message, map[string]interface{}{
			"upstream_code": httpErr.Code,
		})
	case errors.Is(err, wordpress.ErrNetwork):
		h.logger.Error().Err(err).Msg("login backend unreachable")
		httperrors.RespondError(w, http.StatusGatewayTimeout, httperrors.ErrCodeUpstreamUnavailable, "Identity provider unavailable")
	case errors.Is(err, wordpress.ErrMalformedPayload):
		h.logger.Error().Err(err).Msg("login response malformed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeMalformedPayload, "Identity provider returned an unexpected response")
	default:
		h.logger.Error().Err(err).Msg("login failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamError, "Login failed")
	}
}

// Logout handles POST /v1/auth/logout. The token is revoked locally and the caller's
// in-memory sessions are discarded; WordPress tokens stay valid upstream until exp.
func (h *HTTPHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		RespondLoginRequired(w, h.loginURL, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	if err := h.authSvc.Revoke(r.Context(), principal.Token); err != nil {
		h.logger.Error().Err(err).Str("user_id", principal.UserID).Msg("failed to revoke token")
		httperrors.RespondInternalError(w, "Failed to revoke token")
		return
	}

	abandoned := 0
	if h.sessions != nil {
		abandoned = h.sessions.AbandonUser(principal.UserID)
	}
	h.logger.Info().Str("user_id", principal.UserID).Int("sessions_abandoned", abandoned).Msg("user logged out")
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /v1/users/me
func (h *HTTPHandlers) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		RespondLoginRequired(w, h.loginURL, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}
	resp := map[string]interface{}{"user_id": principal.UserID}
	if !principal.ExpiresAt.IsZero() {
		resp["expires_at"] = principal.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode response")
	}
}
