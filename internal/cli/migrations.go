package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dredger/internal/config"
	"github.com/roach88/dredger/internal/cube"
)

// MigrationsOptions holds flags shared by the migrations subcommands.
type MigrationsOptions struct {
	*RootOptions
	Database  string
	Overrides string
}

// RefreshResult is the JSON payload of migrations refresh.
type RefreshResult struct {
	Entries   int       `json:"entries"`
	FetchedAt time.Time `json:"fetched_at"`
}

// StatusResult is the JSON payload of migrations status.
type StatusResult struct {
	Cached    bool       `json:"cached"`
	Entries   int        `json:"entries"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

// LookupResult is the JSON payload of migrations lookup.
type LookupResult struct {
	ID       string        `json:"id"`
	Migrated bool          `json:"migrated"`
	Identity cube.Identity `json:"identity"`
}

// NewMigrationsCommand creates the migrations command group.
func NewMigrationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrations",
		Short: "Manage the cached card migration map",
		Long: `Inspect and refresh the card migration map used to resolve card ids that
were merged or replaced upstream.

Examples:
  dredger migrations refresh
  dredger migrations status --db ./dredger.db
  dredger migrations lookup 0b9c1a4e-old-id`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Overrides, "overrides", "", "path to manual migration overrides")

	cmd.AddCommand(newMigrationsRefreshCommand(opts))
	cmd.AddCommand(newMigrationsStatusCommand(opts))
	cmd.AddCommand(newMigrationsLookupCommand(opts))
	return cmd
}

func (o *MigrationsOptions) applyFlags(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("db") {
			cfg.Store.Path = o.Database
		}
		if flags.Changed("overrides") {
			cfg.Scryfall.Overrides = o.Overrides
		}
	}
}

func newMigrationsRefreshCommand(opts *MigrationsOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "refresh",
		Short:         "Re-fetch the migration feed and replace the cache",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := newApp(opts.RootOptions, opts.applyFlags(cmd))
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore(st)

			n, err := a.provider(st).Refresh(ctx)
			if err != nil {
				return &ExitError{Code: ExitCommandError, ErrorCode: CodeUpstream, Message: "failed to refresh migrations", Err: err}
			}
			info, _, err := st.MigrationCacheInfo(ctx)
			if err != nil {
				return &ExitError{Code: ExitCommandError, ErrorCode: CodeStorage, Message: "failed to read migration cache", Err: err}
			}

			if opts.Format == "json" {
				f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return f.Success(RefreshResult{Entries: n, FetchedAt: info.FetchedAt})
			}
			NewPrinter(cmd.OutOrStdout()).Success("Cached %d migrations", n)
			return nil
		},
	}
}

func newMigrationsStatusCommand(opts *MigrationsOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show when the migration cache was last filled",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := newApp(opts.RootOptions, opts.applyFlags(cmd))
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore(st)

			info, ok, err := st.MigrationCacheInfo(ctx)
			if err != nil {
				return &ExitError{Code: ExitCommandError, ErrorCode: CodeStorage, Message: "failed to read migration cache", Err: err}
			}
			result := StatusResult{Cached: ok}
			if ok {
				result.Entries = info.Entries
				result.FetchedAt = &info.FetchedAt
			}

			if opts.Format == "json" {
				f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return f.Success(result)
			}
			p := NewPrinter(cmd.OutOrStdout())
			if !ok {
				p.Warning("Migration cache is empty; the next build will fetch it")
				return nil
			}
			p.Success("Migration cache holds %d entries", info.Entries)
			p.Field("fetched", info.FetchedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newMigrationsLookupCommand(opts *MigrationsOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "lookup <card-id>",
		Short:         "Resolve a card id through the migration map",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := newApp(opts.RootOptions, opts.applyFlags(cmd))
			if err != nil {
				return err
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore(st)

			m, err := a.migrations(ctx, st, false)
			if err != nil {
				return err
			}
			id := args[0]
			ident, migrated := m[id]
			if !migrated {
				ident = cube.NewResolver(m).Resolve(id, "")
			}
			result := LookupResult{ID: id, Migrated: migrated, Identity: ident}

			if opts.Format == "json" {
				f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
				return f.Success(result)
			}
			p := NewPrinter(cmd.OutOrStdout())
			if !migrated {
				p.Info("%s has no migration", id)
				return nil
			}
			p.Success("%s migrates to %s", id, ident.ID)
			p.Field("name", ident.Name)
			return nil
		},
	}
}
