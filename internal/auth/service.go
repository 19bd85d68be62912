package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/auth/jwt"
	"github.com/gokatarajesh/career-assessment/internal/wordpress"
)

var (
	ErrRevokedToken    = errors.New("token revoked")
	ErrRejectedToken   = errors.New("token rejected by backend")
	ErrMissingUsername = errors.New("username and password are required")
)

// fallbackRevokeTTL bounds revocations of tokens that carry no exp.
const fallbackRevokeTTL = 24 * time.Hour

// Backend is the identity provider behind the service.
type Backend interface {
	Login(ctx context.Context, creds wordpress.Credentials) (*wordpress.Identity, error)
	ValidateToken(ctx context.Context, token string) error
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// Service authenticates bearer tokens issued by WordPress.
type Service struct {
	backend       Backend
	store         TokenStore
	validationTTL time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

// NewService creates an auth service. validationTTL is how long a positive backend check is trusted.
func NewService(backend Backend, store TokenStore, validationTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		backend:       backend,
		store:         store,
		validationTTL: validationTTL,
		now:           time.Now,
		logger:        logger.With().Str("component", "auth_service").Logger(),
	}
}

// Login exchanges credentials for a token and returns the caller it identifies.
func (s *Service) Login(ctx context.Context, creds wordpress.Credentials) (*wordpress.Identity, *Principal, error) {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return nil, nil, ErrMissingUsername
	}

	identity, err := s.backend.Login(ctx, creds)
	if err != nil {
		return nil, nil, err
	}

	claims, err := jwt.Parse(identity.Token, s.now())
	if err != nil {
		return nil, nil, fmt.Errorf("login: %w: %v", wordpress.ErrMalformedPayload, err)
	}
	if s.validationTTL > 0 {
		if err := s.store.MarkValid(ctx, identity.Token, s.validationTTL); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache fresh token")
		}
	}

	s.logger.Info().Str("user_id", claims.UserID()).Msg("user logged in")
	return identity, &Principal{UserID: claims.UserID(), Token: identity.Token, ExpiresAt: claims.Expiry()}, nil
}

// Authenticate resolves token into a Principal. The token must decode, be unexpired, not be
// revoked locally, and be accepted by the backend; acceptances are cached for validationTTL.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := jwt.Parse(token, s.now())
	if err != nil {
		return nil, err
	}
	principal := &Principal{UserID: claims.UserID(), Token: token, ExpiresAt: claims.Expiry()}

	revoked, err := s.store.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrRevokedToken
	}

	if s.validationTTL > 0 {
		valid, err := s.store.IsValid(ctx, token)
		if err != nil {
			s.logger.Warn().Err(err).Msg("token cache lookup failed")
		} else if valid {
			return principal, nil
		}
	}

	if err := s.backend.ValidateToken(ctx, token); err != nil {
		var httpErr *wordpress.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status < 500 {
			return nil, fmt.Errorf("%w: %v", ErrRejectedToken, err)
		}
		return nil, err
	}

	if s.validationTTL > 0 {
		ttl := s.validationTTL
		if exp := claims.Expiry(); !exp.IsZero() && exp.Sub(s.now()) < ttl {
			ttl = exp.Sub(s.now())
		}
		if err := s.store.MarkValid(ctx, token, ttl); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache token validation")
		}
	}
	return principal, nil
}

// Revoke blocks token locally until it would have expired anyway.
func (s *Service) Revoke(ctx context.Context, token string) error {
	ttl := fallbackRevokeTTL
	if claims, err := jwt.Parse(token, s.now()); err == nil {
		if exp := claims.Expiry(); !exp.IsZero() {
			ttl = exp.Sub(s.now())
		}
	} else if errors.Is(err, jwt.ErrExpiredToken) {
		return nil
	}
	if err := s.store.Revoke(ctx, token, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsAuthError reports whether err means the caller must log in again.
func IsAuthError(err error) bool {
	return errors.Is(err, jwt.ErrInvalidToken) ||
		errors.Is(err, jwt.ErrExpiredToken) ||
		errors.Is(err, ErrRevokedToken) ||
		errors.Is(err, ErrRejectedToken)
}
