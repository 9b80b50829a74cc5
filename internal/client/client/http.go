package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/client/models"
)

const maxResponseBody = 1 << 20

// TokenSource returns the bearer token to attach to a request; an empty
// string means the request goes out without Authorization.
type TokenSource func(ctx context.Context) (string, error)

// HTTPClient talks JSON to the back-office API rooted at baseURL
// (for example http://127.0.0.1:8080/api).
type HTTPClient struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	loading LoadingNotifier
}

type Option func(*HTTPClient)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *HTTPClient) { c.tokens = ts }
}

func WithLoadingNotifier(n LoadingNotifier) Option {
	return func(c *HTTPClient) {
		if n != nil {
			c.loading = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		loading: nopLoading{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type userData struct {
	User *models.User `json:"user"`
}

func (c *HTTPClient) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	return c.authCall(ctx, "login", http.MethodPost, "/auth/login", req)
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return c.authCall(ctx, "register", http.MethodPost, "/auth/register", req)
}

func (c *HTTPClient) ChangePassword(ctx context.Context, req ChangePasswordRequest) (*AuthResponse, error) {
	return c.authCall(ctx, "change-password", http.MethodPut, "/auth/change-password", req)
}

func (c *HTTPClient) Me(ctx context.Context) (*models.User, error) {
	return c.userCall(ctx, "me", http.MethodGet, "/auth/me", nil)
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, patch models.UserPatch) (*models.User, error) {
	return c.userCall(ctx, "update-profile", http.MethodPut, "/auth/update-profile", patch)
}

func (c *HTTPClient) CreateAdmin(ctx context.Context, req RegisterRequest) (*models.User, error) {
	return c.userCall(ctx, "create-admin", http.MethodPost, "/auth/create-admin", req)
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	_, err := c.do(ctx, "logout", http.MethodPost, "/auth/logout", nil)
	return err
}

func (c *HTTPClient) authCall(ctx context.Context, op, method, path string, in any) (*AuthResponse, error) {
	env, err := c.do(ctx, op, method, path, in)
	if err != nil {
		return nil, err
	}

	resp := &AuthResponse{Success: env.Success, Message: env.Message}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		resp.Data = &AuthData{}
		if err := json.Unmarshal(env.Data, resp.Data); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", op, err)
		}
	}
	return resp, nil
}

func (c *HTTPClient) userCall(ctx context.Context, op, method, path string, in any) (*models.User, error) {
	env, err := c.do(ctx, op, method, path, in)
	if err != nil {
		return nil, err
	}

	var d userData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", op, err)
		}
	}
	if d.User == nil {
		return nil, fmt.Errorf("%s: response carries no user", op)
	}
	return d.User, nil
}

// do sends one request and returns the decoded envelope of a successful
// response. Transport failures map to ErrUnavailable, caller cancellation is
// returned as is, and everything the server rejected becomes *APIError.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, in any) (*envelope, error) {
	c.loading.BeginLoading(op)
	defer c.loading.EndLoading(op)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok, err := c.tokens(ctx); err == nil && tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.mapError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, c.mapError(ctx, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return nil, newAPIError(resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, decodeErr)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = op + " failed"
		}
		return nil, newAPIError(resp.StatusCode, msg)
	}
	return &env, nil
}

func (c *HTTPClient) mapError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
