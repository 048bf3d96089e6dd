package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dredger/internal/config"
	"github.com/roach88/dredger/internal/cube"
	"github.com/roach88/dredger/internal/engine"
	"github.com/roach88/dredger/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	LocalDir       string
	Database       string
	Overrides      string
	Verify         bool
	SkipMigrations bool
}

// ReplaySnapshot summarizes one reconstructed state.
type ReplaySnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Main      *int      `json:"main,omitempty"`  // card count, absent when unchanged
	Maybe     *int      `json:"maybe,omitempty"` // card count, absent when unchanged
	Digest    string    `json:"digest"`
}

// ReplayResult holds the outcome of a dry-run replay.
type ReplayResult struct {
	CubeID         string           `json:"cube_id"`
	Source         string           `json:"source"`
	Events         int              `json:"events"`
	Snapshots      []ReplaySnapshot `json:"snapshots"`
	SequenceDigest string           `json:"sequence_digest"`
	Deterministic  bool             `json:"deterministic"`

	// Snapshots after the root that touched each board.
	MainboardChanges  int `json:"mainboard_changes"`
	MaybeboardChanges int `json:"maybeboard_changes"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <cube-id>",
		Short: "Replay a cube's changelog and verify determinism",
		Long: `Reconstruct every past state of a cube without writing a repository.

The changelog is replayed twice against the same clock reading and the two
snapshot sequences are compared by digest.

Exit codes:
  0 - The replay succeeded and both passes agree
  1 - The changelog could not be replayed, or the passes differ
  2 - Command error (bad config, upstream unreachable, etc.)

Examples:
  dredger replay abc123
  dredger replay --local ./export --verify abc123
  dredger replay --format json abc123`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.LocalDir, "local", "", "read cube.json and history.json from this directory")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite database")
	cmd.Flags().StringVar(&opts.Overrides, "overrides", "", "path to manual migration overrides")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "re-apply each event forward and check it reproduces the board")
	cmd.Flags().BoolVar(&opts.SkipMigrations, "skip-migrations", false, "do not fetch the migration feed; apply overrides only")

	return cmd
}

func (o *ReplayOptions) applyFlags(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("local") {
			cfg.CubeCobra.LocalDir = o.LocalDir
		}
		if flags.Changed("db") {
			cfg.Store.Path = o.Database
		}
		if flags.Changed("overrides") {
			cfg.Scryfall.Overrides = o.Overrides
		}
		if flags.Changed("verify") {
			cfg.Verify = o.Verify
		}
	}
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions, cubeID string) error {
	ctx := commandContext(cmd)

	a, err := newApp(opts.RootOptions, opts.applyFlags(cmd))
	if err != nil {
		return err
	}

	// The migration cache lives in the store; overrides alone need no database.
	var st *store.Store
	if !opts.SkipMigrations {
		st, err = a.openStore()
		if err != nil {
			return err
		}
		defer a.closeStore(st)
	}

	migrations, err := a.migrations(ctx, st, opts.SkipMigrations)
	if err != nil {
		return err
	}

	src, kind := a.source()
	col, events, err := a.inputs(ctx, src, cubeID)
	if err != nil {
		return err
	}

	// Both passes share one clock reading so only the replay itself can differ.
	clock := engine.FixedClock{At: a.clock().Now()}
	seqOpts := []engine.Option{
		engine.WithClock(clock),
		engine.WithVerify(a.cfg.Verify),
		engine.WithLogger(a.logger),
	}

	first, err := engine.New(migrations, seqOpts...).Sequence(col.Mainboard, col.Maybeboard, events)
	if err != nil {
		return WrapExitError(ExitFailure, "replay failed", err)
	}
	second, err := engine.New(migrations, seqOpts...).Sequence(col.Mainboard, col.Maybeboard, events)
	if err != nil {
		return WrapExitError(ExitFailure, "second replay failed", err)
	}

	digest1, err := cube.SequenceDigest(first)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to digest snapshots", err)
	}
	digest2, err := cube.SequenceDigest(second)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to digest snapshots", err)
	}

	result := ReplayResult{
		CubeID:         cubeID,
		Source:         string(kind),
		Events:         len(events),
		Snapshots:      make([]ReplaySnapshot, 0, len(first)),
		SequenceDigest: digest1,
		Deterministic:  digest1 == digest2,
	}
	for i, snap := range first {
		if i > 0 && snap.Main != nil {
			result.MainboardChanges++
		}
		if i > 0 && snap.Maybe != nil {
			result.MaybeboardChanges++
		}
		d, err := cube.SnapshotDigest(snap)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to digest snapshot", err)
		}
		result.Snapshots = append(result.Snapshots, ReplaySnapshot{
			Timestamp: snap.Timestamp.UTC(),
			Main:      boardSize(snap.Main),
			Maybe:     boardSize(snap.Maybe),
			Digest:    d,
		})
	}

	if opts.Format == "json" {
		if err := outputReplayJSON(cmd, result); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd, result, opts.Verbose)
	}

	if !result.Deterministic {
		return &ExitError{
			Code:      ExitFailure,
			ErrorCode: CodeDeterminism,
			Message:   fmt.Sprintf("replay is not deterministic: %s != %s", digest1, digest2),
		}
	}
	return nil
}

func boardSize(b cube.Board) *int {
	if b == nil {
		return nil
	}
	n := len(b)
	return &n
}

// outputReplayJSON outputs replay results in JSON format.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(response)
}

// outputReplayText outputs replay results in human-readable format.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) {
	p := NewPrinter(cmd.OutOrStdout())
	if result.Deterministic {
		p.Success("Replayed %d events into %d snapshots", result.Events, len(result.Snapshots))
	} else {
		p.Failure("Replay of %d events is not deterministic", result.Events)
	}
	p.Field("cube", result.CubeID)
	p.Field("source", result.Source)
	p.Field("digest", result.SequenceDigest)
	p.Field("changes", fmt.Sprintf("mainboard=%d maybeboard=%d", result.MainboardChanges, result.MaybeboardChanges))

	if !verbose {
		return
	}
	p.Info("")
	for i, s := range result.Snapshots {
		p.Info("%4d  %s  main=%s maybe=%s  %s", i, s.Timestamp.Format(time.RFC3339Nano), count(s.Main), count(s.Maybe), s.Digest)
	}
}

func count(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprint(*n)
}
