package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload the WordPress JWT plugin signs.
type Claims struct {
	Data struct {
		User struct {
			ID userID `json:"id"`
		} `json:"user"`
	} `json:"data"`
	jwt.RegisteredClaims
}

// UserID returns the WordPress user id carried by the token.
func (c *Claims) UserID() string { return string(c.Data.User.ID) }

// Expiry returns the exp claim, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// userID accepts the id as either a JSON string or number.
type userID string

func (u *userID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*u = userID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*u = userID(n.String())
	return nil
}

var parser = jwt.NewParser()

// Parse decodes a token without verifying its signature. The signing secret lives in
// WordPress; signature and revocation are confirmed there. Parse only rejects tokens that
// are structurally invalid, carry no user id, or are past exp at now.
func Parse(tokenString string, now time.Time) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID() == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	if exp := claims.Expiry(); !exp.IsZero() && !now.Before(exp) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}
