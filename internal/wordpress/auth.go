package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Credentials are forwarded verbatim to the token endpoint.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Identity is what the token endpoint returns on a successful login.
type Identity struct {
	Token       string `json:"token"`
	Email       string `json:"user_email"`
	Nicename    string `json:"user_nicename"`
	DisplayName string `json:"user_display_name"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Identity, error) {
	body, err := c.do(ctx, call{
		endpoint: "login",
		method:   http.MethodPost,
		url:      c.authRoot + "/token",
		body:     creds,
	})
	if err != nil {
		return nil, err
	}

	var identity Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, fmt.Errorf("login: %w: %v", ErrMalformedPayload, err)
	}
	if identity.Token == "" {
		return nil, fmt.Errorf("login: %w: empty token", ErrMalformedPayload)
	}
	return &identity, nil
}

// ValidateToken asks the backend whether token is still accepted.
func (c *Client) ValidateToken(ctx context.Context, token string) error {
	_, err := c.do(ctx, call{
		endpoint: "validate_token",
		method:   http.MethodPost,
		url:      c.authRoot + "/token/validate",
		token:    token,
	})
	return err
}
