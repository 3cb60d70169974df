// Package apiclient is the HTTP adapter every remote resource gateway goes through.
// It attaches the bearer token, enforces the client-side timeout and rate limit,
// and turns the API's {success, message, data} envelope into values or typed errors.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout aborts a single request.
	DefaultTimeout = 10 * time.Second

	defaultRPS   = 10.0
	defaultBurst = 20

	userAgent = "library-storefront/1.0"
)

// TokenSource supplies the bearer token for outgoing requests. An empty token means
// the request is sent without an Authorization header.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RPS        float64
	Burst      int
	Tokens     TokenSource
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Client is a rate-limited JSON client for the library REST API.
type Client struct {
	http    *http.Client
	base    *url.URL
	tokens  TokenSource
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Client. BaseURL must be an absolute http(s) URL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	// The timeout is per request and applies even to injected clients.
	clone := *hc
	clone.Timeout = timeout

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}

	return &Client{
		http:    &clone,
		base:    base,
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}, nil
}

// Envelope is the response body shape shared by every endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Request describes one API call.
type Request struct {
	Op     string
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Get decodes the data of GET path into out.
func (c *Client) Get(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Op: op, Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post sends body as JSON and decodes the response data into out.
func (c *Client) Post(ctx context.Context, op, path string, body, out any) error {
	return c.Do(ctx, Request{Op: op, Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put sends body as JSON and decodes the response data into out.
func (c *Client) Put(ctx context.Context, op, path string, body, out any) error {
	return c.Do(ctx, Request{Op: op, Method: http.MethodPut, Path: path, Body: body}, out)
}

// Patch sends body as JSON and decodes the response data into out.
func (c *Client) Patch(ctx context.Context, op, path string, body, out any) error {
	return c.Do(ctx, Request{Op: op, Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete issues DELETE path. out may be nil.
func (c *Client) Delete(ctx context.Context, op, path string, out any) error {
	return c.Do(ctx, Request{Op: op, Method: http.MethodDelete, Path: path}, out)
}

// Do executes r. On success the envelope's data is decoded into out when both are
// present; a 204 or empty body leaves out untouched.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	fail := func(kind Kind, status int, msg string, err error) error {
		return &Error{Op: r.Op, Method: r.Method, Path: r.Path, Status: status, Kind: kind, Message: msg, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(transportKind(ctx, err), 0, "", fmt.Errorf("rate limit wait: %w", err))
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return fail(KindUnknown, 0, "", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		kind := transportKind(ctx, err)
		c.logger.Debug("api request failed",
			"op", r.Op,
			"method", r.Method,
			"path", r.Path,
			"kind", kind,
			"error", err,
		)
		return fail(kind, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(transportKind(ctx, err), resp.StatusCode, "", fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("api request",
		"op", r.Op,
		"method", r.Method,
		"path", r.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := envelopeMessage(body)
		return fail(Classify(resp.StatusCode, msg), resp.StatusCode, msg, nil)
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fail(KindServer, resp.StatusCode, "", fmt.Errorf("decode envelope: %w", err))
	}
	if !env.Success {
		return fail(Classify(resp.StatusCode, env.Message), resp.StatusCode, env.Message, nil)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fail(KindServer, resp.StatusCode, "", fmt.Errorf("decode data: %w", err))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key := IdempotencyKey(ctx); key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req, nil
}

// envelopeMessage extracts a message from an error body of any shape.
func envelopeMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		return env.Error
	}
	return strings.TrimSpace(string(body))
}

func transportKind(ctx context.Context, err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

type idempotencyKey struct{}

// WithIdempotencyKey returns a context whose requests carry key in the
// Idempotency-Key header.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// IdempotencyKey returns the key set by WithIdempotencyKey.
func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey{}).(string)
	return key
}
