package cubecobra

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/dredger/internal/cube"
	"github.com/roach88/dredger/internal/fetch"
)

const (
	// DefaultBaseURL is the public CubeCobra site.
	DefaultBaseURL = "https://cubecobra.com"

	// DefaultPageDelay is the pause between history page requests.
	DefaultPageDelay = 50 * time.Millisecond
)

// HTTPClient reads cubes from the CubeCobra API.
type HTTPClient struct {
	baseURL   string
	client    *fetch.Client
	pageDelay time.Duration
	logger    *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithPageDelay sets the pause between history pages. Zero keeps the default;
// a negative value disables the pause.
func WithPageDelay(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		switch {
		case d < 0:
			c.pageDelay = 0
		case d > 0:
			c.pageDelay = d
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewHTTPClient creates a client for baseURL (DefaultBaseURL when empty).
// A nil fetch client gets fetch defaults.
func NewHTTPClient(baseURL string, client *fetch.Client, opts ...HTTPOption) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = fetch.New()
	}
	c := &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
		pageDelay: DefaultPageDelay,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cube fetches the cube document.
func (c *HTTPClient) Cube(ctx context.Context, id string) (*cube.Collection, error) {
	var doc cubeDoc
	if err := c.client.GetJSON(ctx, c.endpoint("cubeJSON", id), &doc); err != nil {
		return nil, fmt.Errorf("fetch cube %s: %w", id, err)
	}
	return doc.toCollection(), nil
}

// History pages through the changelog until the server stops returning a
// continuation key. Posts from every page, the last included, are returned.
func (c *HTTPClient) History(ctx context.Context, id string) ([]cube.ChangeEvent, error) {
	var posts []postDoc
	var req historyRequest
	for page := 0; ; page++ {
		var resp historyPage
		if err := c.client.PostJSON(ctx, c.endpoint("history", id), req, &resp); err != nil {
			return nil, fmt.Errorf("fetch history page %d of cube %s: %w", page, id, err)
		}
		posts = append(posts, resp.Posts...)
		c.logger.Debug("fetched history page", "cube", id, "page", page, "posts", len(resp.Posts))

		if !resp.more() {
			break
		}
		req = historyRequest{LastKey: resp.LastKey}

		if err := fetch.Sleep(ctx, c.pageDelay); err != nil {
			return nil, err
		}
	}

	c.logger.Info("fetched history", "cube", id, "events", len(posts))
	return toEvents(posts), nil
}

func (c *HTTPClient) endpoint(name, id string) string {
	return c.baseURL + "/cube/api/" + name + "/" + url.PathEscape(id)
}
