package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/dredger/internal/cube"
)

// createTestStore creates a new store in a per-test temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with minimal required fields.
func createTestRun(id, cubeID string, startedMs int64) Run {
	return Run{
		ID:          id,
		CubeID:      cubeID,
		Source:      "local",
		Destination: "/tmp/" + cubeID,
		StartedAt:   time.UnixMilli(startedMs).UTC(),
	}
}

// createTestCommit creates a mainboard commit record.
func createTestCommit(runID string, seq int, hash, parent string) RunCommit {
	return RunCommit{
		RunID:       runID,
		Seq:         seq,
		Hash:        hash,
		Parent:      parent,
		CommittedAt: time.UnixMilli(int64(seq+1) * 1000).UTC(),
		Boards:      []cube.BoardKind{cube.Mainboard},
	}
}
