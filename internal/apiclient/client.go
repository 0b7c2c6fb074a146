// Package apiclient is the HTTP adapter the diary stores use to reach the REST backend.
package apiclient

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

	"go.uber.org/zap"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8080/api"

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// TokenSource yields the bearer credential for outgoing requests.
// An empty token means the request is sent without Authorization.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// Token implements TokenSource.
func (f TokenFunc) Token() string { return f() }

// TransportError is any failed exchange with the backend: network failure,
// timeout, non-2xx status or an undecodable body. Status is 0 when no response arrived.
// FromServer is set when Message is the backend's own "message" field.
type TransportError struct {
	Method     string
	Path       string
	Status     int
	Message    string
	FromServer bool
	Err        error
}

// Error implements error.
func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Unwrap returns the underlying network or decode error, if any.
func (e *TransportError) Unwrap() error { return e.Err }

// Client issues JSON requests against the backend base URL.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New constructs a Client. tokens may be nil for anonymous access.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do sends body (if non-nil) as JSON and decodes a 2xx response into out (if non-nil).
// Every failure is returned as *TransportError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	terr := func(status int, msg string, err error) *TransportError {
		return &TransportError{Method: method, Path: path, Status: status, Message: msg, Err: err}
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return terr(0, "encode request body", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return terr(0, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		msg := "backend unreachable"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return terr(0, msg, err)
	}
	defer resp.Body.Close()

	c.log.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, fromServer := errorMessage(resp)
		te := terr(resp.StatusCode, msg, nil)
		te.FromServer = fromServer
		return te
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return terr(resp.StatusCode, "malformed response body", err)
	}
	return nil
}

// errorMessage extracts the backend "message" field, falling back to a generic text.
func errorMessage(resp *http.Response) (string, bool) {
	var payload struct {
		Message string `json:"message"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(b, &payload) == nil && strings.TrimSpace(payload.Message) != "" {
		return payload.Message, true
	}
	return fmt.Sprintf("request failed with status %d", resp.StatusCode), false
}

// Get is a shorthand for Do with GET and no body.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post is a shorthand for Do with POST.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put is a shorthand for Do with PUT.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Delete is a shorthand for Do with DELETE and no body.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}
