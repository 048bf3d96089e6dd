package cli

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dredger/internal/config"
	"github.com/roach88/dredger/internal/cube"
	"github.com/roach88/dredger/internal/history"
	"github.com/roach88/dredger/internal/store"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Out            string
	LocalDir       string
	Database       string
	Overrides      string
	AuthorEmail    string
	Verify         bool
	SkipMigrations bool
}

// BuildResult is the JSON payload of a successful build.
type BuildResult struct {
	RunID          string `json:"run_id"`
	CubeID         string `json:"cube_id"`
	Source         string `json:"source"`
	Path           string `json:"path"`
	Events         int    `json:"events"`
	Snapshots      int    `json:"snapshots"`
	Commits        int    `json:"commits"`
	Head           string `json:"head"`
	SequenceDigest string `json:"sequence_digest"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <cube-id>",
		Short: "Reconstruct a cube's history into a new git repository",
		Long: `Fetch a cube and its changelog, replay the changelog backward to recover
every past state, and write the states as a linear git history.

The destination must not exist, or must be an empty directory. Nothing is
written there unless the whole history is rebuilt.

Example:
  dredger build --out ./my-cube-history abc123
  dredger build --local ./export --skip-migrations --out /tmp/h abc123`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "destination directory for the git repository (required)")
	cmd.Flags().StringVar(&opts.LocalDir, "local", "", "read cube.json and history.json from this directory")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite database")
	cmd.Flags().StringVar(&opts.Overrides, "overrides", "", "path to manual migration overrides")
	cmd.Flags().StringVar(&opts.AuthorEmail, "author-email", "", "email used in commit signatures")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "re-apply each event forward and check it reproduces the board")
	cmd.Flags().BoolVar(&opts.SkipMigrations, "skip-migrations", false, "do not fetch the migration feed; apply overrides only")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// applyFlags layers explicitly set flags over cfg.
func (o *BuildOptions) applyFlags(cmd *cobra.Command) func(*config.Config) {
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
		if flags.Changed("author-email") {
			cfg.History.AuthorEmail = o.AuthorEmail
		}
		if flags.Changed("verify") {
			cfg.Verify = o.Verify
		}
	}
}

func runBuild(cmd *cobra.Command, opts *BuildOptions, cubeID string) error {
	ctx := commandContext(cmd)
	opts.Out = filepath.Clean(opts.Out)

	// Refuse early so a bad destination costs no network traffic.
	if err := history.CheckDestination(opts.Out); err != nil {
		return &ExitError{Code: ExitCommandError, ErrorCode: CodeDestination, Message: "cannot write history", Err: err}
	}

	a, err := newApp(opts.RootOptions, opts.applyFlags(cmd))
	if err != nil {
		return err
	}

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer a.closeStore(st)

	migrations, err := a.migrations(ctx, st, opts.SkipMigrations)
	if err != nil {
		return err
	}

	src, kind := a.source()
	col, events, err := a.inputs(ctx, src, cubeID)
	if err != nil {
		return err
	}

	runID := opts.runIDs().Generate()
	clock := a.clock()
	if err := st.BeginRun(ctx, store.Run{
		ID:          runID,
		CubeID:      cubeID,
		Source:      string(kind),
		Destination: opts.Out,
		StartedAt:   clock.Now(),
	}); err != nil {
		return &ExitError{Code: ExitCommandError, ErrorCode: CodeStorage, Message: "failed to record run", Err: err}
	}
	a.logger.Info("run started", "run", runID, "cube", cubeID, "source", kind)

	fail := func(code int, message string, cause error) error {
		finishErr := st.FinishRun(context.WithoutCancel(ctx), runID, store.RunOutcome{
			Status:     store.RunFailed,
			FinishedAt: clock.Now(),
			Error:      cause.Error(),
		})
		if finishErr != nil {
			a.logger.Error("failed to record run failure", "run", runID, "error", finishErr)
		}
		return WrapExitError(code, message, cause)
	}

	seq := a.sequencer(migrations)
	snapshots, err := seq.Sequence(col.Mainboard, col.Maybeboard, events)
	if err != nil {
		return fail(ExitFailure, "failed to reconstruct history", err)
	}
	digest, err := cube.SequenceDigest(snapshots)
	if err != nil {
		return fail(ExitFailure, "failed to digest snapshots", err)
	}

	mat := history.New(seq.Resolver(),
		history.WithAuthorEmail(a.cfg.History.AuthorEmail),
		history.WithDescription(a.cfg.History.Description),
		history.WithRecorder(st.Recorder(runID)),
		history.WithLogger(a.logger),
	)
	res, err := mat.Materialize(ctx, opts.Out, metadataOf(col), snapshots)
	if err != nil {
		code := ExitCommandError
		if errors.Is(err, context.Canceled) {
			code = ExitFailure
		}
		return fail(code, "failed to write history", err)
	}

	head := ""
	if !res.Head.IsZero() {
		head = res.Head.String()
	}
	if err := st.FinishRun(ctx, runID, store.RunOutcome{
		Status:         store.RunSucceeded,
		FinishedAt:     clock.Now(),
		Snapshots:      len(snapshots),
		SequenceDigest: digest,
		Head:           head,
	}); err != nil {
		return &ExitError{Code: ExitCommandError, ErrorCode: CodeStorage, Message: "failed to record run outcome", Err: err}
	}

	result := BuildResult{
		RunID:          runID,
		CubeID:         cubeID,
		Source:         string(kind),
		Path:           res.Path,
		Events:         len(events),
		Snapshots:      len(snapshots),
		Commits:        len(res.Commits),
		Head:           head,
		SequenceDigest: digest,
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		logCommits(f, res.Commits)
		return f.Success(result)
	}

	p := NewPrinter(cmd.OutOrStdout())
	p.Success("History of %s written to %s", cubeID, res.Path)
	p.Field("run", runID)
	p.Field("events", result.Events)
	p.Field("commits", result.Commits)
	p.Field("head", shortHash(head))
	p.Field("digest", digest)
	f.ErrWriter = nil
	logCommits(f, res.Commits)
	return nil
}

// logCommits lists every written commit when verbose.
func logCommits(f *OutputFormatter, commits []history.CommitRef) {
	for _, c := range commits {
		f.VerboseLog("%4d  %s  %s  %v", c.Seq, shortHash(c.Hash.String()), c.Timestamp.UTC().Format(time.RFC3339), c.Boards)
	}
}

func metadataOf(col *cube.Collection) history.Metadata {
	return history.Metadata{
		Owner:       col.Owner,
		Title:       col.Name,
		Description: col.Description,
		ImageURI:    col.ImageURI,
		ImageName:   col.ImageName,
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
