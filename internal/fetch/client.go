// Package fetch is the JSON-over-HTTP client shared by the upstream sources.
//
// Requests that fail with a transport error, 429 or a 5xx status are retried
// with exponential back-off. Any other non-2xx status is permanent.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultMaxTries bounds attempts per request, including the first.
	DefaultMaxTries = 5

	// DefaultInitialInterval is the first retry delay.
	DefaultInitialInterval = 250 * time.Millisecond

	// maxErrorBody caps how much of an error response is kept for messages.
	maxErrorBody = 512
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client performs JSON requests with retry.
type Client struct {
	http            *http.Client
	maxTries        uint
	initialInterval time.Duration
	userAgent       string
	logger          *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Default: http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithMaxTries sets the attempt limit per request. Values below 1 mean 1.
func WithMaxTries(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		c.maxTries = uint(n)
	}
}

// WithInitialInterval sets the first retry delay.
func WithInitialInterval(d time.Duration) Option {
	return func(c *Client) {
		c.initialInterval = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http:            http.DefaultClient,
		maxTries:        DefaultMaxTries,
		initialInterval: DefaultInitialInterval,
		userAgent:       "dredger",
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON decodes the response of GET url into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	return c.Do(ctx, http.MethodGet, url, nil, out)
}

// PostJSON sends body as JSON to url and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	return c.Do(ctx, http.MethodPost, url, body, out)
}

// Do sends one JSON request, retrying transient failures.
// A nil body sends no request body; a nil out discards the response.
func (c *Client) Do(ctx context.Context, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, url, err)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval

	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		return c.attempt(ctx, method, url, payload)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("retrying request", "method", method, "url", url, "error", err, "backoff", next)
		}),
	)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, url, err)
	}
	return nil
}

// attempt performs a single request. Errors that must not be retried are
// wrapped with backoff.Permanent.
func (c *Client) attempt(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build %s %s request: %w", method, url, err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("http request", "method", method, "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(data), maxErrorBody),
		}
		if !se.Retryable() {
			return nil, backoff.Permanent(se)
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			return nil, backoff.RetryAfter(secs)
		}
		return nil, se
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Sleep pauses for d or until ctx is done. A non-positive d only checks ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
