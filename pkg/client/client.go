package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
)

const (
	// TokenCookie is the cookie the API reads the access token from.
	TokenCookie = "token"

	responseReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("api base url is required")

// Client is a thin HTTP client for the storefront API session endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sets the access token sent as the session cookie.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient builds a client for the API rooted at baseURL (for example
// https://shop.example/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	c := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// SetToken replaces the access token, e.g. after a refresh.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

// User is the identity returned by the verify endpoint.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// VerifyToken checks the current session. An expired or revoked session
// yields an UNAUTHORIZED error; anything else is a DEPENDENCY error.
func (c *Client) VerifyToken(ctx context.Context) (*User, error) {
	var envelope struct {
		Data User `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "verify-token", &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// Logout revokes the current session on the server and forgets the local
// token. A session the server already dropped counts as logged out, which
// makes Logout the natural Guard expiry callback.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "logout", nil)
	c.token = ""
	if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: c.token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			fmt.Sprintf("%s %s failed", method, path))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	return nil
}
