// Package cubecobra fetches a cube's current state and changelog from
// CubeCobra, either over HTTP or from a local export directory.
//
// Both sources return fully assembled values: boards ordered by their recorded
// index and reindexed, and the complete changelog newest-first.
package cubecobra

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/dredger/internal/cube"
	"github.com/roach88/dredger/internal/fetch"
)

// Source provides a cube and its changelog.
type Source interface {
	// Cube returns the cube's current boards and display metadata.
	Cube(ctx context.Context, id string) (*cube.Collection, error)

	// History returns every changelog event, newest first.
	History(ctx context.Context, id string) ([]cube.ChangeEvent, error)
}

// Kind names a source implementation, as recorded in the run ledger.
type Kind string

const (
	KindRemote Kind = "remote"
	KindLocal  Kind = "local"
)

// Options selects and configures a Source.
type Options struct {
	// LocalDir, when set, selects the local export reader.
	LocalDir string

	BaseURL   string
	PageDelay time.Duration
	Fetch     *fetch.Client
	Logger    *slog.Logger
}

// NewSource returns the Source selected by opts.
func NewSource(opts Options) (Source, Kind) {
	if opts.LocalDir != "" {
		return NewLocalClient(opts.LocalDir), KindLocal
	}
	return NewHTTPClient(opts.BaseURL, opts.Fetch,
		WithPageDelay(opts.PageDelay),
		WithLogger(opts.Logger),
	), KindRemote
}
