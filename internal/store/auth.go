package store

import (
	"context"
	"net/http"
	"net/url"

	"github.com/matthewbaird/collegeadmin/internal/record"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is a successful login: a bearer token plus the user record.
type Session struct {
	Token string        `json:"token"`
	User  record.Record `json:"user"`
}

// Login exchanges credentials for a bearer token and installs it on the
// client for subsequent requests.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	var s Session
	if err := c.do(ctx, nil, OpLogin, http.MethodPost, "/user/auth", creds, &s); err != nil {
		return nil, err
	}
	if s.Token == "" {
		return nil, &Error{Op: OpLogin, Status: http.StatusOK, Message: "Login failed: no token in response"}
	}
	if s.User != nil {
		delete(s.User, "password")
	}
	c.SetToken(s.Token)
	return &s, nil
}

// Logout invalidates the current token on the store and clears it locally.
// The local token is cleared even when the store call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetToken("")
	if c.Token() == "" {
		return nil
	}
	return c.do(ctx, nil, OpLogout, http.MethodPost, "/user/logout", nil, nil)
}

type messageBody struct {
	Message string `json:"message"`
}

// RequestPasswordReset asks the store to send a reset link to email and
// returns the store's confirmation message.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var out messageBody
	if err := c.do(ctx, nil, OpResetRequest, http.MethodPost, "/user/reset-pass", map[string]string{"email": email}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// VerifyResetToken checks a reset token and returns the email it was issued for.
func (c *Client) VerifyResetToken(ctx context.Context, token string) (string, error) {
	var out struct {
		Email string `json:"email"`
	}
	if err := c.do(ctx, nil, OpVerifyReset, http.MethodGet, "/user/verify-reset-token/"+url.PathEscape(token), nil, &out); err != nil {
		return "", err
	}
	return out.Email, nil
}

// ResetPassword sets a new password using a reset token. The token is
// consumed by the store.
func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	var out messageBody
	if err := c.do(ctx, nil, OpResetPassword, http.MethodPost, "/user/reset-pass/"+url.PathEscape(token), map[string]string{"password": password}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
