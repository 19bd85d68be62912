package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/auth/jwt"
	"github.com/gokatarajesh/career-assessment/internal/wordpress"
	httperrors "github.com/gokatarajesh/career-assessment/pkg/http/errors"
)

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller set by RequireAuth.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>", falling back to the
// token query parameter used by WebSocket clients.
func BearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// RequireAuth rejects requests without a valid WordPress token and injects the Principal.
func RequireAuth(svc *Service, loginURL string, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "auth_middleware").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				RespondLoginRequired(w, loginURL, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
				return
			}

			principal, err := svc.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, jwt.ErrExpiredToken):
					RespondLoginRequired(w, loginURL, httperrors.ErrCodeTokenExpired, "Token expired")
				case errors.Is(err, ErrRevokedToken):
					RespondLoginRequired(w, loginURL, httperrors.ErrCodeTokenRevoked, "Token revoked")
				case IsAuthError(err):
					logger.Warn().Err(err).Msg("token validation failed")
					RespondLoginRequired(w, loginURL, httperrors.ErrCodeInvalidToken, "Invalid or expired token")
				case errors.Is(err, wordpress.ErrNetwork):
					logger.Error().Err(err).Msg("token validation unavailable")
					httperrors.RespondError(w, http.StatusGatewayTimeout, httperrors.ErrCodeUpstreamUnavailable, "Identity provider unavailable")
				default:
					logger.Error().Err(err).Msg("token validation error")
					httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeUpstreamError, "Token validation failed")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RespondLoginRequired writes a 401 that tells the client where to sign in again.
func RespondLoginRequired(w http.ResponseWriter, loginURL, code, message string) {
	httperrors.RespondErrorWithDetails(w, http.StatusUnauthorized, code, message, map[string]interface{}{
		"login_url": loginURL,
	})
}
