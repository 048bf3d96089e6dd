package cli

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roach88/dredger/internal/config"
	"github.com/roach88/dredger/internal/cube"
	"github.com/roach88/dredger/internal/cubecobra"
	"github.com/roach88/dredger/internal/engine"
	"github.com/roach88/dredger/internal/fetch"
	"github.com/roach88/dredger/internal/scryfall"
	"github.com/roach88/dredger/internal/store"
)

// app carries the resolved configuration and shared collaborators of one
// command invocation.
type app struct {
	opts   *RootOptions
	cfg    config.Config
	logger *slog.Logger
	fetch  *fetch.Client
}

// newApp loads configuration and builds the shared HTTP client.
// apply, if non-nil, layers command-line flags over the loaded config.
func newApp(opts *RootOptions, apply func(*config.Config)) (*app, error) {
	logger := newLogger(opts)

	cfg, err := config.LoadWithEnv(opts.ConfigPath, opts.Environ)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if apply != nil {
		apply(&cfg)
		if err := cfg.Validate(); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid flags", err)
		}
	}

	fc := fetch.New(
		fetch.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
		fetch.WithMaxTries(cfg.HTTP.MaxTries),
		fetch.WithInitialInterval(cfg.HTTP.InitialInterval),
		fetch.WithUserAgent(cfg.HTTP.UserAgent),
		fetch.WithLogger(logger),
	)

	logger.Debug("configuration loaded",
		"config", opts.ConfigPath,
		"store", cfg.Store.Path,
		"local_dir", cfg.CubeCobra.LocalDir,
		"verify", cfg.Verify,
	)
	return &app{opts: opts, cfg: cfg, logger: logger, fetch: fc}, nil
}

func (a *app) openStore() (*store.Store, error) {
	a.logger.Debug("opening database", "path", a.cfg.Store.Path)
	st, err := store.Open(a.cfg.Store.Path)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, ErrorCode: CodeStorage, Message: "failed to open database", Err: err}
	}
	return st, nil
}

func (a *app) closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

func (a *app) provider(st *store.Store) *scryfall.Provider {
	opts := []scryfall.Option{
		scryfall.WithBaseURL(a.cfg.Scryfall.BaseURL),
		scryfall.WithFetchClient(a.fetch),
		scryfall.WithOverrides(a.cfg.Scryfall.Overrides),
		scryfall.WithPageDelay(a.cfg.Scryfall.PageDelay),
		scryfall.WithNow(a.clock().Now),
		scryfall.WithLogger(a.logger),
	}
	if st != nil {
		opts = append(opts, scryfall.WithCache(st))
	}
	return scryfall.NewProvider(opts...)
}

// migrations returns the migration map. With overridesOnly the upstream feed
// and cache are skipped and only manual overrides apply.
func (a *app) migrations(ctx context.Context, st *store.Store, overridesOnly bool) (cube.MigrationMap, error) {
	if overridesOnly {
		m, err := scryfall.LoadOverrides(a.cfg.Scryfall.Overrides)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load migration overrides", err)
		}
		a.logger.Info("using manual migration overrides only", "entries", len(m))
		return m, nil
	}
	m, err := a.provider(st).MigrationMap(ctx)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, ErrorCode: CodeUpstream, Message: "failed to load migration map", Err: err}
	}
	return m, nil
}

func (a *app) source() (cubecobra.Source, cubecobra.Kind) {
	return cubecobra.NewSource(cubecobra.Options{
		LocalDir:  a.cfg.CubeCobra.LocalDir,
		BaseURL:   a.cfg.CubeCobra.BaseURL,
		PageDelay: a.cfg.CubeCobra.PageDelay,
		Fetch:     a.fetch,
		Logger:    a.logger,
	})
}

// inputs fetches the cube and its full changelog.
func (a *app) inputs(ctx context.Context, src cubecobra.Source, cubeID string) (*cube.Collection, []cube.ChangeEvent, error) {
	a.logger.Info("fetching cube", "cube", cubeID)
	col, err := src.Cube(ctx, cubeID)
	if err != nil {
		return nil, nil, &ExitError{Code: ExitCommandError, ErrorCode: CodeUpstream, Message: "failed to fetch cube", Err: err}
	}

	// History is keyed by the cube's canonical id, which may differ from the
	// short id the user typed.
	historyID := col.ID
	if historyID == "" {
		historyID = cubeID
	}
	events, err := src.History(ctx, historyID)
	if err != nil {
		return nil, nil, &ExitError{Code: ExitCommandError, ErrorCode: CodeUpstream, Message: "failed to fetch cube history", Err: err}
	}
	a.logger.Info("cube loaded",
		"cube", historyID,
		"mainboard", len(col.Mainboard),
		"maybeboard", len(col.Maybeboard),
		"events", len(events),
	)
	return col, events, nil
}

func (a *app) clock() engine.Clock {
	if a.opts.Clock != nil {
		return a.opts.Clock
	}
	return engine.SystemClock{}
}

func (a *app) sequencer(migrations cube.MigrationMap) *engine.Sequencer {
	return engine.New(migrations,
		engine.WithClock(a.clock()),
		engine.WithVerify(a.cfg.Verify),
		engine.WithLogger(a.logger),
	)
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
