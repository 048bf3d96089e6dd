package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/roach88/dredger/internal/cube"
	"github.com/roach88/dredger/internal/history"
)

// RunStatus is the lifecycle state of a ledger run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ErrRunNotFound is returned when a run id has no ledger row.
var ErrRunNotFound = errors.New("run not found")

// Run is one ledger row.
type Run struct {
	ID          string
	CubeID      string
	Source      string // "remote" or "local"
	Destination string
	StartedAt   time.Time

	// Set by FinishRun.
	FinishedAt     *time.Time
	Status         RunStatus
	Snapshots      int
	SequenceDigest string
	Head           string
	Error          string

	// Commits is the number of run_commits rows, filled by ListRuns and GetRun.
	Commits int
}

// RunOutcome is what FinishRun records.
type RunOutcome struct {
	Status         RunStatus
	FinishedAt     time.Time
	Snapshots      int
	SequenceDigest string
	Head           string
	Error          string
}

// RunCommit is one commit written by a run.
type RunCommit struct {
	RunID       string
	Seq         int
	Hash        string
	Parent      string // empty for the root
	CommittedAt time.Time
	Boards      []cube.BoardKind
}

// BeginRun inserts a run in the running state.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("begin run: empty run id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, cube_id, source, destination, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.CubeID,
		run.Source,
		run.Destination,
		run.StartedAt.UnixMilli(),
		string(RunRunning),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RecordCommit appends a commit to a run.
// The run must exist (foreign key constraint).
func (s *Store) RecordCommit(ctx context.Context, c RunCommit) error {
	boards := make([]string, len(c.Boards))
	for i, b := range c.Boards {
		boards[i] = string(b)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_commits (run_id, seq, hash, parent, committed_at, boards)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		c.RunID,
		c.Seq,
		c.Hash,
		nullString(c.Parent),
		c.CommittedAt.UnixMilli(),
		strings.Join(boards, ","),
	)
	if err != nil {
		return fmt.Errorf("record commit %d for run %s: %w", c.Seq, c.RunID, err)
	}
	return nil
}

// FinishRun records a run's outcome. Finishing an unknown run is an error.
func (s *Store) FinishRun(ctx context.Context, runID string, out RunOutcome) error {
	if out.Status != RunSucceeded && out.Status != RunFailed {
		return fmt.Errorf("finish run %s: invalid final status %q", runID, out.Status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, status = ?, snapshots = ?, sequence_digest = ?, head = ?, error = ?
		WHERE id = ?
	`,
		out.FinishedAt.UnixMilli(),
		string(out.Status),
		out.Snapshots,
		nullString(out.SequenceDigest),
		nullString(out.Head),
		nullString(out.Error),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `
	r.id, r.cube_id, r.source, r.destination, r.started_at, r.finished_at,
	r.status, r.snapshots, r.sequence_digest, r.head, r.error,
	(SELECT COUNT(*) FROM run_commits c WHERE c.run_id = r.id)
`

// ListRuns returns runs oldest first. An empty cubeID lists every cube.
// Returns an empty slice (not nil) when there are no runs.
func (s *Store) ListRuns(ctx context.Context, cubeID string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r`
	var args []any
	if cubeID != "" {
		query += ` WHERE r.cube_id = ?`
		args = append(args, cubeID)
	}
	query += ` ORDER BY r.started_at ASC, r.id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRunCommits returns a run's commits in chain order.
func (s *Store) ListRunCommits(ctx context.Context, runID string) ([]RunCommit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, hash, parent, committed_at, boards
		FROM run_commits
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run commits: %w", err)
	}
	defer rows.Close()

	commits := []RunCommit{}
	for rows.Next() {
		var c RunCommit
		var parent sql.NullString
		var committedAt int64
		var boards string
		if err := rows.Scan(&c.RunID, &c.Seq, &c.Hash, &parent, &committedAt, &boards); err != nil {
			return nil, fmt.Errorf("scan run commit: %w", err)
		}
		c.Parent = parent.String
		c.CommittedAt = time.UnixMilli(committedAt).UTC()
		if boards != "" {
			for _, b := range strings.Split(boards, ",") {
				c.Boards = append(c.Boards, cube.BoardKind(b))
			}
		}
		commits = append(commits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run commits: %w", err)
	}
	return commits, nil
}

// Recorder returns a history.CommitRecorder writing into runID's ledger.
func (s *Store) Recorder(runID string) history.CommitRecorder {
	return &runRecorder{store: s, runID: runID}
}

type runRecorder struct {
	store *Store
	runID string
}

func (r *runRecorder) RecordCommit(ctx context.Context, ref history.CommitRef) error {
	parent := ""
	if ref.Parent != plumbing.ZeroHash {
		parent = ref.Parent.String()
	}
	return r.store.RecordCommit(ctx, RunCommit{
		RunID:       r.runID,
		Seq:         ref.Seq,
		Hash:        ref.Hash.String(),
		Parent:      parent,
		CommittedAt: ref.Timestamp,
		Boards:      ref.Boards,
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var startedAt int64
	var finishedAt sql.NullInt64
	var status string
	var digest, head, errMsg sql.NullString
	if err := row.Scan(
		&run.ID,
		&run.CubeID,
		&run.Source,
		&run.Destination,
		&startedAt,
		&finishedAt,
		&status,
		&run.Snapshots,
		&digest,
		&head,
		&errMsg,
		&run.Commits,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64).UTC()
		run.FinishedAt = &t
	}
	run.Status = RunStatus(status)
	run.SequenceDigest = digest.String
	run.Head = head.String
	run.Error = errMsg.String
	return run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
