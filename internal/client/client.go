package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"

	"safed/useradmin/internal/apperr"
	"safed/useradmin/internal/auth"
	"safed/useradmin/internal/guard"
	"safed/useradmin/internal/users"
)

const defaultTimeout = 15 * time.Second

// Client talks to the user admin API and keeps the authenticated user
// between calls. The session cookie lives in the HTTP client's jar.
type Client struct {
	baseURL string
	http    *http.Client

	mu          sync.Mutex
	user        *auth.SessionUser
	loading     bool
	initialized bool
}

type Option func(*Client)

// WithHTTPClient replaces the default client. A cookie jar is attached when
// hc has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// User returns a copy of the signed-in user, or nil.
func (c *Client) User() *auth.SessionUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Client) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Initialized reports whether Init has completed, successfully or not.
func (c *Client) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// begin marks the client loading. The returned release must be deferred so
// loading is cleared on every path.
func (c *Client) begin() func() {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}
}

func (c *Client) setUser(u *auth.SessionUser) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

// Init fetches the current session once at startup.
func (c *Client) Init(ctx context.Context) error {
	defer func() {
		c.mu.Lock()
		c.initialized = true
		c.mu.Unlock()
	}()
	_, err := c.FetchUser(ctx)
	return err
}

// FetchUser refreshes the signed-in user from the server. A missing session
// yields nil without error.
func (c *Client) FetchUser(ctx context.Context) (*auth.SessionUser, error) {
	release := c.begin()
	defer release()

	var out struct {
		User *auth.SessionUser `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		c.setUser(nil)
		return nil, err
	}
	c.setUser(out.User)
	return out.User, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*auth.SessionUser, error) {
	release := c.begin()
	defer release()

	req := map[string]string{"username": username, "password": password}
	var out struct {
		Success bool             `json:"success"`
		User    auth.SessionUser `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &out); err != nil {
		c.setUser(nil)
		return nil, err
	}
	u := out.User
	c.setUser(&u)
	return &u, nil
}

// Logout clears the local user even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	release := c.begin()
	defer release()
	defer c.setUser(nil)

	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Navigate applies the route guard to the current client state.
func (c *Client) Navigate(path string) guard.Decision {
	c.mu.Lock()
	u := c.user
	c.mu.Unlock()
	if u == nil {
		return guard.Evaluate(path, false, "")
	}
	return guard.Evaluate(path, true, u.Role)
}

func (c *Client) ListUsers(ctx context.Context, f users.Filter) (users.Page, error) {
	path := "/users"
	if q := f.Values().Encode(); q != "" {
		path += "?" + q
	}
	var page users.Page
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return users.Page{}, err
	}
	return page, nil
}

func (c *Client) GetUser(ctx context.Context, id int64) (users.User, error) {
	var out struct {
		User users.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, userPath(id), nil, &out); err != nil {
		return users.User{}, err
	}
	return out.User, nil
}

func (c *Client) CreateUser(ctx context.Context, in users.CreateInput) (users.User, error) {
	var out struct {
		User users.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/users", in, &out); err != nil {
		return users.User{}, err
	}
	return out.User, nil
}

func (c *Client) UpdateUser(ctx context.Context, id int64, in users.UpdateInput) (users.User, error) {
	var out struct {
		User users.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPut, userPath(id), in, &out); err != nil {
		return users.User{}, err
	}
	return out.User, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, userPath(id), nil, nil)
}

func userPath(id int64) string {
	return "/users/" + strconv.FormatInt(id, 10)
}

// do sends one JSON request. Error responses come back as *apperr.Error
// rebuilt from the response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// A body that is not JSON still yields an error built from the status.
		var b apperr.Body
		_ = json.NewDecoder(resp.Body).Decode(&b)
		return apperr.FromBody(resp.StatusCode, b)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
