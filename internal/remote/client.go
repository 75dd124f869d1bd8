package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 64 << 20 // 64MB, analysis archives arrive inline
	maxErrorBody    = 4 << 10
)

// Client issues authenticated JSON requests against one service base URL.
// It never retries; every call maps to exactly one outbound request.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout on a copy of the current HTTP
// client, so a shared client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

// WithAPIKey sends key in the API-Key header the services require.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON issues GET path?query with the session token attached and decodes
// the JSON body into v. op names the operation in returned errors.
//
// An empty token fails with KindUnauthenticated before anything is sent.
// Transport failures, HTTP status >= 400 and undecodable bodies fail with
// KindService.
func (c *Client) GetJSON(ctx context.Context, op, path string, query url.Values, token string, v any) error {
	if token == "" {
		return Unauthenticated(op)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &FetchError{Kind: KindService, Op: op, Message: "building request", Err: err}
	}
	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	// The problem service reads the raw token from its own header.
	req.Header.Set("token", token)
	req.Header.Set("X-Request-ID", requestID)
	if c.apiKey != "" {
		req.Header.Set("API-Key", c.apiKey)
	}

	c.logger.Debug("remote request", "op", op, "method", req.Method, "path", path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Kind: KindService, Op: op, Message: "service not reachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("remote request failed", "op", op, "status", resp.StatusCode, "request_id", requestID)
		return &FetchError{Kind: KindService, Op: op, Message: statusMessage(resp.StatusCode, body)}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(v); err != nil {
		return &FetchError{Kind: KindService, Op: op, Message: "malformed response", Err: err}
	}
	return nil
}

// statusMessage prefers the service's own detail over a bare status code.
func statusMessage(code int, body []byte) string {
	var env Envelope
	if json.Unmarshal(body, &env) == nil && env.Reason() != "" {
		return fmt.Sprintf("service returned %d: %s", code, env.Reason())
	}
	return fmt.Sprintf("service returned %d", code)
}
