package api

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

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	appLog "sportkeeper/internal/log"
)

const defaultTimeout = 15 * time.Second

// Error is a non-2xx response from the remote API. Message is the body's
// "message" field when present, otherwise the HTTP status text.
type Error struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *Error) Error() string {
	return e.Message
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client talks to the SportKeeper REST API. A Client is immutable; use
// WithToken to obtain a copy that authenticates as a given user.
type Client struct {
	baseURL string
	base    http.RoundTripper
	timeout time.Duration
	token   string
	http    *http.Client
}

type Option func(*Client)

// WithTransport replaces the underlying round tripper (tests, proxies).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

// WithTimeout bounds every request. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New builds an unauthenticated client for baseURL (e.g. "https://api.example.com").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		base:    http.DefaultTransport,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = c.buildHTTPClient()
	return c
}

// WithToken returns a copy of c that sends "Authorization: Bearer token" on
// every request. An empty token yields an unauthenticated copy.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	cp.http = cp.buildHTTPClient()
	return &cp
}

// Authenticated reports whether the client carries a credential.
func (c *Client) Authenticated() bool { return c.token != "" }

// BaseURL returns the API root this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) buildHTTPClient() *http.Client {
	rt := c.base
	if c.token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}),
			Base:   c.base,
		}
	}
	return &http.Client{Transport: rt, Timeout: c.timeout}
}

// send issues a request and returns the raw response. The caller closes the body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, header http.Header) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		appLog.Error("api request failed", err, "method", method, "path", path, "request_id", reqID)
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	appLog.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(started),
		"request_id", reqID,
	)
	return resp, nil
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
// Empty response bodies are accepted.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read %s %s: %w", method, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

func errorFromResponse(method, path string, resp *http.Response) error {
	e := &Error{Status: resp.StatusCode, Method: method, Path: path}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil && strings.TrimSpace(payload.Message) != "" {
		e.Message = payload.Message
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	if e.Message == "" {
		e.Message = resp.Status
	}
	return e
}

func escapeID(id string) string {
	return url.PathEscape(id)
}
