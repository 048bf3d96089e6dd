package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dredger/internal/config"
	"github.com/roach88/dredger/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	CubeID   string
}

// RunSummary is one run in JSON output.
type RunSummary struct {
	ID             string     `json:"id"`
	CubeID         string     `json:"cube_id"`
	Source         string     `json:"source"`
	Destination    string     `json:"destination"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Snapshots      int        `json:"snapshots"`
	Commits        int        `json:"commits"`
	SequenceDigest string     `json:"sequence_digest,omitempty"`
	Head           string     `json:"head,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// CommitSummary is one recorded commit in JSON output.
type CommitSummary struct {
	Seq         int       `json:"seq"`
	Hash        string    `json:"hash"`
	Parent      string    `json:"parent,omitempty"`
	CommittedAt time.Time `json:"committed_at"`
	Boards      []string  `json:"boards"`
}

// RunDetail is the JSON payload of runs <run-id>.
type RunDetail struct {
	RunSummary
	CommitLog []CommitSummary `json:"commit_log"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded build runs",
		Long: `List the build runs recorded in the database, oldest first.

With a run id, show that run and every commit it wrote.

Examples:
  dredger runs
  dredger runs --cube abc123
  dredger runs 018c0b6e-7d2a-7c3e-9f1a-2b3c4d5e6f70 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runShowRun(cmd, opts, args[0])
			}
			return runListRuns(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite database")
	cmd.Flags().StringVar(&opts.CubeID, "cube", "", "only list runs of this cube")

	return cmd
}

func (o *RunsOptions) applyFlags(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		if cmd.Flags().Changed("db") {
			cfg.Store.Path = o.Database
		}
	}
}

func runListRuns(cmd *cobra.Command, opts *RunsOptions) error {
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

	runs, err := st.ListRuns(ctx, opts.CubeID)
	if err != nil {
		return &ExitError{Code: ExitCommandError, ErrorCode: CodeStorage, Message: "failed to list runs", Err: err}
	}

	if opts.Format == "json" {
		summaries := make([]RunSummary, 0, len(runs))
		for _, r := range runs {
			summaries = append(summaries, summarizeRun(r))
		}
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(summaries)
	}

	p := NewPrinter(cmd.OutOrStdout())
	if len(runs) == 0 {
		p.Info("No runs recorded.")
		return nil
	}
	for _, r := range runs {
		printRunLine(p, r)
	}
	return nil
}

func runShowRun(cmd *cobra.Command, opts *RunsOptions, runID string) error {
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

	run, err := st.GetRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return &ExitError{Code: ExitCommandError, ErrorCode: CodeStorage, Message: "unknown run", Err: err}
	}
	if err != nil {
		return &ExitError{Code: ExitCommandError, ErrorCode: CodeStorage, Message: "failed to read run", Err: err}
	}
	commits, err := st.ListRunCommits(ctx, runID)
	if err != nil {
		return &ExitError{Code: ExitCommandError, ErrorCode: CodeStorage, Message: "failed to read run commits", Err: err}
	}

	detail := RunDetail{RunSummary: summarizeRun(run), CommitLog: make([]CommitSummary, 0, len(commits))}
	for _, c := range commits {
		boards := make([]string, len(c.Boards))
		for i, b := range c.Boards {
			boards[i] = string(b)
		}
		detail.CommitLog = append(detail.CommitLog, CommitSummary{
			Seq:         c.Seq,
			Hash:        c.Hash,
			Parent:      c.Parent,
			CommittedAt: c.CommittedAt,
			Boards:      boards,
		})
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(detail)
	}

	p := NewPrinter(cmd.OutOrStdout())
	printRunLine(p, run)
	p.Field("destination", run.Destination)
	p.Field("source", run.Source)
	if run.SequenceDigest != "" {
		p.Field("digest", run.SequenceDigest)
	}
	if run.Error != "" {
		p.Field("error", run.Error)
	}
	for _, c := range detail.CommitLog {
		p.Info("  %4d  %s  %s  %v", c.Seq, shortHash(c.Hash), c.CommittedAt.Format(time.RFC3339), c.Boards)
	}
	return nil
}

func summarizeRun(r store.Run) RunSummary {
	return RunSummary{
		ID:             r.ID,
		CubeID:         r.CubeID,
		Source:         r.Source,
		Destination:    r.Destination,
		Status:         string(r.Status),
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Snapshots:      r.Snapshots,
		Commits:        r.Commits,
		SequenceDigest: r.SequenceDigest,
		Head:           r.Head,
		Error:          r.Error,
	}
}

func printRunLine(p *Printer, r store.Run) {
	switch r.Status {
	case store.RunSucceeded:
		p.Success("%s  %s  %d commits  %s", r.ID, r.CubeID, r.Commits, r.StartedAt.Format(time.RFC3339))
	case store.RunFailed:
		p.Failure("%s  %s  failed  %s", r.ID, r.CubeID, r.StartedAt.Format(time.RFC3339))
	default:
		p.Warning("%s  %s  %s  %s", r.ID, r.CubeID, r.Status, r.StartedAt.Format(time.RFC3339))
	}
}
