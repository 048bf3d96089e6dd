package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/roach88/dredger/internal/cube"
	"github.com/roach88/dredger/internal/history"
)

func TestRunLifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.BeginRun(ctx, createTestRun("r1", "vintage", 1000)); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	run, err := s.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if run.Status != RunRunning {
		t.Errorf("status = %q, want %q", run.Status, RunRunning)
	}
	if run.FinishedAt != nil {
		t.Error("running run should have no finish time")
	}

	for i, hash := range []string{"aaa", "bbb"} {
		parent := ""
		if i > 0 {
			parent = "aaa"
		}
		if err := s.RecordCommit(ctx, createTestCommit("r1", i, hash, parent)); err != nil {
			t.Fatalf("RecordCommit(%d) failed: %v", i, err)
		}
	}

	err = s.FinishRun(ctx, "r1", RunOutcome{
		Status:         RunSucceeded,
		FinishedAt:     time.UnixMilli(9000),
		Snapshots:      2,
		SequenceDigest: "digest",
		Head:           "bbb",
	})
	if err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}

	run, err = s.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if run.Status != RunSucceeded {
		t.Errorf("status = %q, want %q", run.Status, RunSucceeded)
	}
	if run.FinishedAt == nil || run.FinishedAt.UnixMilli() != 9000 {
		t.Errorf("finished_at = %v, want 9000ms", run.FinishedAt)
	}
	if run.Commits != 2 || run.Snapshots != 2 {
		t.Errorf("commits=%d snapshots=%d, want 2 and 2", run.Commits, run.Snapshots)
	}
	if run.Head != "bbb" || run.SequenceDigest != "digest" || run.Error != "" {
		t.Errorf("unexpected outcome fields: %+v", run)
	}
}

func TestFinishRun_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.FinishRun(context.Background(), "nope", RunOutcome{Status: RunFailed, FinishedAt: time.UnixMilli(1)})
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestFinishRun_RejectsRunningStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if err := s.BeginRun(ctx, createTestRun("r1", "c", 1)); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	if err := s.FinishRun(ctx, "r1", RunOutcome{Status: RunRunning}); err == nil {
		t.Error("expected error finishing a run as running")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns_OrderAndFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Inserted out of order; ties on started_at break by id.
	for _, run := range []Run{
		createTestRun("r3", "vintage", 3000),
		createTestRun("r2", "legacy", 1000),
		createTestRun("r1", "vintage", 1000),
	} {
		if err := s.BeginRun(ctx, run); err != nil {
			t.Fatalf("BeginRun(%s) failed: %v", run.ID, err)
		}
	}

	all, err := s.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	var ids []string
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	want := []string{"r1", "r2", "r3"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}

	vintage, err := s.ListRuns(ctx, "vintage")
	if err != nil {
		t.Fatalf("ListRuns(vintage) failed: %v", err)
	}
	if len(vintage) != 2 {
		t.Errorf("got %d vintage runs, want 2", len(vintage))
	}
}

func TestListRuns_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), "")
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestListRunCommits(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if err := s.BeginRun(ctx, createTestRun("r1", "c", 1)); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	root := createTestCommit("r1", 0, "aaa", "")
	root.Boards = []cube.BoardKind{cube.Mainboard, cube.Maybeboard}
	for _, c := range []RunCommit{createTestCommit("r1", 1, "bbb", "aaa"), root} {
		if err := s.RecordCommit(ctx, c); err != nil {
			t.Fatalf("RecordCommit() failed: %v", err)
		}
	}

	commits, err := s.ListRunCommits(ctx, "r1")
	if err != nil {
		t.Fatalf("ListRunCommits() failed: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}
	if commits[0].Hash != "aaa" || commits[0].Parent != "" {
		t.Errorf("root = %+v", commits[0])
	}
	if len(commits[0].Boards) != 2 {
		t.Errorf("root boards = %v, want both", commits[0].Boards)
	}
	if commits[1].Parent != "aaa" {
		t.Errorf("second parent = %q, want aaa", commits[1].Parent)
	}
	if commits[1].CommittedAt.UnixMilli() != 2000 {
		t.Errorf("second committed_at = %v", commits[1].CommittedAt)
	}
}

func TestRecorder_WritesHistoryCommits(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	if err := s.BeginRun(ctx, createTestRun("r1", "c", 1)); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}

	rootHash := plumbing.NewHash("1111111111111111111111111111111111111111")
	childHash := plumbing.NewHash("2222222222222222222222222222222222222222")

	var rec history.CommitRecorder = s.Recorder("r1")
	refs := []history.CommitRef{
		{Seq: 0, Hash: rootHash, Timestamp: time.UnixMilli(1000), Boards: []cube.BoardKind{cube.Mainboard, cube.Maybeboard}},
		{Seq: 1, Hash: childHash, Parent: rootHash, Timestamp: time.UnixMilli(2000), Boards: []cube.BoardKind{cube.Maybeboard}},
	}
	for _, ref := range refs {
		if err := rec.RecordCommit(ctx, ref); err != nil {
			t.Fatalf("RecordCommit() failed: %v", err)
		}
	}

	commits, err := s.ListRunCommits(ctx, "r1")
	if err != nil {
		t.Fatalf("ListRunCommits() failed: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}
	if commits[0].Parent != "" {
		t.Errorf("root parent = %q, want empty", commits[0].Parent)
	}
	if commits[1].Hash != childHash.String() || commits[1].Parent != rootHash.String() {
		t.Errorf("child = %+v", commits[1])
	}
	if len(commits[1].Boards) != 1 || commits[1].Boards[0] != cube.Maybeboard {
		t.Errorf("child boards = %v", commits[1].Boards)
	}
}
