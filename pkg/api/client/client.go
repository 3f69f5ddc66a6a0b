package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultCookieName is the session cookie the API issues.
const DefaultCookieName = "session"

// ErrNotAuthenticated is returned by Me when the session is missing or expired.
var ErrNotAuthenticated = errors.New("not authenticated")

// Client provides typed access to the carebase API for interactive tools.
type Client struct {
	baseURL    string
	cookieName string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) Option {
	return func(c *Client) {
		if strings.TrimSpace(name) != "" {
			c.cookieName = strings.TrimSpace(name)
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		cookieName: DefaultCookieName,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, session string, v any) (*http.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(session) != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: strings.TrimSpace(session)})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return resp, APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return resp, nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return resp, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// User reflects API user payloads.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name,omitempty"`
	IsGuest  bool   `json:"isGuest,omitempty"`
}

// Session is a successful login: the user and the cookie the API issued.
type Session struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// Login authenticates with email and password, registering the account when
// name is set and the email is unknown.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	var payload struct {
		Success bool `json:"success"`
		User    User `json:"user"`
	}
	resp, err := c.do(ctx, http.MethodPost, "/auth/login", req, "", &payload)
	if err != nil {
		return nil, err
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name != c.cookieName || cookie.Value == "" {
			continue
		}
		session := &Session{User: payload.User, Token: cookie.Value}
		if cookie.MaxAge > 0 {
			session.ExpiresAt = time.Now().Add(time.Duration(cookie.MaxAge) * time.Second).UTC()
		}
		return session, nil
	}
	return nil, fmt.Errorf("login response missing %s cookie", c.cookieName)
}

// LoginGuest opens a guest session.
func (c *Client) LoginGuest(ctx context.Context) (*Session, error) {
	return c.Login(ctx, LoginRequest{IsGuest: true})
}

// Logout ends the session. It succeeds for unknown sessions.
func (c *Client) Logout(ctx context.Context, session string) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, session, nil)
	return err
}

// Me returns the user bound to session.
func (c *Client) Me(ctx context.Context, session string) (*User, error) {
	var payload struct {
		Authenticated bool `json:"authenticated"`
		User          User `json:"user"`
	}
	_, err := c.do(ctx, http.MethodGet, "/auth/me", nil, session, &payload)
	if err != nil {
		var apiErr APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}
	if !payload.Authenticated {
		return nil, ErrNotAuthenticated
	}
	return &payload.User, nil
}

// Health reports the API health status string.
func (c *Client) Health(ctx context.Context) (string, error) {
	var payload struct {
		Status string `json:"status"`
	}
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, "", &payload)
	var apiErr APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		return "degraded", nil
	}
	if err != nil {
		return "", err
	}
	return payload.Status, nil
}
