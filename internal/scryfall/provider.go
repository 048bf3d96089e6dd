// Package scryfall builds the card migration map from Scryfall's migration
// feed, cached in the store and overlaid with manual overrides.
package scryfall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/dredger/internal/cube"
	"github.com/roach88/dredger/internal/fetch"
)

const (
	// DefaultBaseURL is the public Scryfall API.
	DefaultBaseURL = "https://api.scryfall.com"

	// DefaultPageDelay is the pause between migration page requests.
	DefaultPageDelay = 50 * time.Millisecond

	strategyMerge = "merge"
)

// Cache persists the upstream portion of the migration map.
// ok=false from LoadMigrations means the cache was never filled.
type Cache interface {
	LoadMigrations(ctx context.Context) (m cube.MigrationMap, ok bool, err error)
	ReplaceMigrations(ctx context.Context, m cube.MigrationMap, fetchedAt time.Time) error
}

// Provider assembles migration maps.
type Provider struct {
	baseURL       string
	client        *fetch.Client
	cache         Cache
	overridesPath string
	pageDelay     time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL sets the API root. Empty keeps DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithFetchClient sets the HTTP client.
func WithFetchClient(c *fetch.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithCache sets the cache. Without one every call fetches upstream.
func WithCache(c Cache) Option {
	return func(p *Provider) {
		p.cache = c
	}
}

// WithOverrides sets the manual overrides file. A missing file is treated as
// no overrides.
func WithOverrides(path string) Option {
	return func(p *Provider) {
		p.overridesPath = path
	}
}

// WithPageDelay sets the pause between pages. Negative disables it.
func WithPageDelay(d time.Duration) Option {
	return func(p *Provider) {
		switch {
		case d < 0:
			p.pageDelay = 0
		case d > 0:
			p.pageDelay = d
		}
	}
}

// WithNow sets the clock used to stamp cache refreshes.
func WithNow(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProvider creates a Provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		baseURL:   DefaultBaseURL,
		client:    fetch.New(),
		pageDelay: DefaultPageDelay,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MigrationMap returns the cached upstream map, fetching and caching it when
// the cache is empty, with manual overrides applied on top.
func (p *Provider) MigrationMap(ctx context.Context) (cube.MigrationMap, error) {
	upstream, err := p.upstream(ctx)
	if err != nil {
		return nil, err
	}

	overrides, err := LoadOverrides(p.overridesPath)
	if err != nil {
		return nil, err
	}

	merged := make(cube.MigrationMap, len(upstream)+len(overrides))
	for id, ident := range upstream {
		merged[id] = ident
	}
	for id, ident := range overrides {
		merged[id] = ident
	}

	p.logger.Info("loaded migration map",
		"upstream", len(upstream),
		"overrides", len(overrides),
		"entries", len(merged),
	)
	return merged, nil
}

// Refresh re-fetches the upstream map and replaces the cache.
// Returns the number of upstream entries.
func (p *Provider) Refresh(ctx context.Context) (int, error) {
	m, err := p.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if p.cache != nil {
		if err := p.cache.ReplaceMigrations(ctx, m, p.now()); err != nil {
			return 0, fmt.Errorf("cache migrations: %w", err)
		}
	}
	return len(m), nil
}

func (p *Provider) upstream(ctx context.Context) (cube.MigrationMap, error) {
	if p.cache != nil {
		m, ok, err := p.cache.LoadMigrations(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cached migrations: %w", err)
		}
		if ok {
			p.logger.Debug("using cached migrations", "entries", len(m))
			return m, nil
		}
	}

	m, err := p.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		if err := p.cache.ReplaceMigrations(ctx, m, p.now()); err != nil {
			return nil, fmt.Errorf("cache migrations: %w", err)
		}
	}
	return m, nil
}

// Fetch pages through the upstream migration feed and builds the map.
//
// A merge maps the old id to its replacement. Any other strategy maps the old
// id to itself, keeping its last known name. Records without metadata use
// cube.UnknownCardName. Merges without a replacement id are ignored.
func (p *Provider) Fetch(ctx context.Context) (cube.MigrationMap, error) {
	m := cube.MigrationMap{}
	for page := 1; ; page++ {
		var resp migrationPage
		if err := p.client.GetJSON(ctx, p.pageURL(page), &resp); err != nil {
			return nil, fmt.Errorf("fetch migrations page %d: %w", page, err)
		}
		for _, rec := range resp.Data {
			rec.apply(m)
		}
		p.logger.Debug("fetched migrations page", "page", page, "records", len(resp.Data))

		if !resp.HasMore {
			break
		}
		if err := fetch.Sleep(ctx, p.pageDelay); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (p *Provider) pageURL(page int) string {
	q := url.Values{"page": {strconv.Itoa(page)}}
	return p.baseURL + "/migrations?" + q.Encode()
}

type migrationPage struct {
	HasMore bool              `json:"has_more"`
	Data    []migrationRecord `json:"data"`
}

type migrationRecord struct {
	Strategy string             `json:"migration_strategy"`
	OldID    string             `json:"old_scryfall_id"`
	NewID    *string            `json:"new_scryfall_id"`
	Metadata *migrationMetadata `json:"metadata"`
}

type migrationMetadata struct {
	Name string `json:"name"`
}

func (r migrationRecord) name() string {
	if r.Metadata == nil {
		return cube.UnknownCardName
	}
	return r.Metadata.Name
}

func (r migrationRecord) apply(m cube.MigrationMap) {
	if r.OldID == "" {
		return
	}
	if r.Strategy == strategyMerge {
		if r.NewID == nil || *r.NewID == "" {
			return
		}
		m[r.OldID] = cube.Identity{ID: *r.NewID, Name: r.name()}
		return
	}
	m[r.OldID] = cube.Identity{ID: r.OldID, Name: r.name()}
}

// LoadOverrides reads a manual overrides file of the form
// {"oldId": ["newId", "Name"]}. An empty path or missing file yields an
// empty map.
func LoadOverrides(path string) (cube.MigrationMap, error) {
	if path == "" {
		return cube.MigrationMap{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cube.MigrationMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}

	var raw map[string][2]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse overrides %s: %w", path, err)
	}
	m := make(cube.MigrationMap, len(raw))
	for oldID, pair := range raw {
		if pair[0] == "" {
			return nil, fmt.Errorf("parse overrides %s: entry %q has an empty new id", path, oldID)
		}
		m[oldID] = cube.Identity{ID: pair[0], Name: pair[1]}
	}
	return m, nil
}
