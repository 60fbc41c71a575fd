// Package api is a small client for the auth and inbox HTTP API of the
// service under test.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/shineum/smtp-verify-lite/internal/config"
)

const defaultTimeout = 30 * time.Second

// Paths holds the endpoint paths relative to the base URL. An empty path
// disables the corresponding call.
type Paths struct {
	Register string
	Login    string
	Me       string
	Emails   string
}

// Credentials is the register and login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Response is the status and raw body of an API call. Non-2xx statuses are
// reported here rather than as errors, so callers can branch on them.
type Response struct {
	StatusCode int
	Body       string
}

// OK reports a 200 status.
func (r *Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// AlreadyExists reports the idempotent "user already exists" registration
// outcome: a 400 whose body mentions it.
func (r *Response) AlreadyExists() bool {
	return r.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(r.Body), "already exists")
}

// Err returns a StatusError unless the status is 200.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return &StatusError{StatusCode: r.StatusCode, Body: r.Body}
}

// StatusError is an unexpected HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Client calls the API over resty.
type Client struct {
	http  *resty.Client
	paths Paths
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// New creates a Client for baseURL.
func New(baseURL string, paths Paths, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
		paths: paths,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig creates a Client from the api section of the configuration.
func FromConfig(cfg config.APIConfig) *Client {
	return New(cfg.BaseURL, Paths{
		Register: cfg.RegisterPath,
		Login:    cfg.LoginPath,
		Me:       cfg.MePath,
		Emails:   cfg.EmailsPath,
	}, WithTimeout(cfg.Timeout))
}

// Register posts creds to the register endpoint.
func (c *Client) Register(ctx context.Context, creds Credentials) (*Response, error) {
	return c.post(ctx, c.paths.Register, creds)
}

// Login posts creds to the login endpoint.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Response, error) {
	return c.post(ctx, c.paths.Login, creds)
}

// Me fetches the profile of the token's user.
func (c *Client) Me(ctx context.Context, token string) (*Response, error) {
	if c.paths.Me == "" {
		return nil, fmt.Errorf("me endpoint is not configured")
	}
	req := c.http.R().SetContext(ctx).SetAuthToken(token)
	return do(req, http.MethodGet, c.paths.Me)
}

// ListEmails fetches the inbox of recipient.
func (c *Client) ListEmails(ctx context.Context, token, recipient string) (*Response, error) {
	if c.paths.Emails == "" {
		return nil, fmt.Errorf("emails endpoint is not configured")
	}
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("recipient", recipient)
	return do(req, http.MethodGet, c.paths.Emails)
}

func (c *Client) post(ctx context.Context, path string, body any) (*Response, error) {
	if path == "" {
		return nil, fmt.Errorf("endpoint is not configured")
	}
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	return do(req, http.MethodPost, path)
}

func do(req *resty.Request, method, path string) (*Response, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.String()}, nil
}
