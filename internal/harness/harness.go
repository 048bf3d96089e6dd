package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/dredger/internal/cube"
	"github.com/roach88/dredger/internal/engine"
	"github.com/roach88/dredger/internal/history"
	"github.com/roach88/dredger/internal/store"
)

// harnessRunID identifies the single ledger run of a materialized scenario.
const harnessRunID = "harness-run"

// Harness is the scenario execution engine.
// It runs scenarios with a fixed clock and a silent logger.
type Harness struct {
	scenario *Scenario
	seq      *engine.Sequencer
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// A replay error is part of the result, not a harness failure: scenarios may
// assert on it. The returned error covers infrastructure problems only.
//
// Execution flow:
// 1. Build boards, changelog and migrations from the scenario
// 2. Sequence with the scenario's clock reading
// 3. Optionally write the snapshots to a scratch repository, recording the
// commits in an in-memory ledger
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	mainboard, maybeboard, events, migrations := scenario.Build()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		scenario: scenario,
		seq: engine.New(migrations,
			engine.WithClock(engine.FixedClock{At: time.UnixMilli(scenario.Now).UTC()}),
			engine.WithVerify(scenario.Verify),
			engine.WithLogger(logger),
		),
		logger: logger,
	}

	result := NewResult()
	result.resolver = h.seq.Resolver()

	snapshots, err := h.seq.Sequence(mainboard, maybeboard, events)
	var replayErr *engine.ReplayError
	switch {
	case errors.As(err, &replayErr):
		result.ReplayErr = replayErr
	case err != nil:
		return nil, fmt.Errorf("failed to sequence scenario: %w", err)
	default:
		result.Snapshots = snapshots
		for _, snap := range snapshots {
			result.AddSnapshotTrace(snap)
		}
	}

	if scenario.Materialize && result.ReplayErr == nil {
		n, err := h.materialize(ctx, snapshots)
		if err != nil {
			return nil, fmt.Errorf("failed to materialize scenario: %w", err)
		}
		result.Commits = n
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// materialize writes snapshots to a scratch repository and returns the number
// of commits the ledger recorded.
func (h *Harness) materialize(ctx context.Context, snapshots []cube.Snapshot) (int, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return 0, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.BeginRun(ctx, store.Run{
		ID:        harnessRunID,
		CubeID:    h.scenario.Name,
		Source:    "scenario",
		StartedAt: time.UnixMilli(h.scenario.Now).UTC(),
	}); err != nil {
		return 0, err
	}

	dir, err := os.MkdirTemp("", "dredger-harness-*")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(dir)

	m := history.New(h.seq.Resolver(),
		history.WithRecorder(st.Recorder(harnessRunID)),
		history.WithLogger(h.logger),
	)
	meta := history.Metadata{
		Owner:       "harness",
		Title:       h.scenario.Name,
		Description: h.scenario.Description,
	}
	if _, err := m.Materialize(ctx, filepath.Join(dir, "history"), meta, snapshots); err != nil {
		return 0, err
	}

	commits, err := st.ListRunCommits(ctx, harnessRunID)
	if err != nil {
		return 0, err
	}
	return len(commits), nil
}
