package harness

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/dredger/internal/cube"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		buf.WriteString(renderEvents(e.Trace))
	}

	return buf.String()
}

// snapshotAt resolves a possibly negative snapshot index.
func snapshotAt(result *Result, index int) (cube.Snapshot, error) {
	n := len(result.Snapshots)
	i := index
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return cube.Snapshot{}, fmt.Errorf("snapshot %d out of range (%d snapshots)", index, n)
	}
	return result.Snapshots[i], nil
}

func assertSnapshotCount(result *Result, a Assertion) error {
	if got := len(result.Snapshots); got != *a.Count {
		return &AssertionError{
			Type:     AssertSnapshotCount,
			Expected: fmt.Sprintf("%d snapshots", *a.Count),
			Actual:   fmt.Sprintf("%d snapshots", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertBoard(result *Result, a Assertion) error {
	snap, err := snapshotAt(result, a.Snapshot)
	if err != nil {
		return err
	}
	kind, err := boardKind(a.Board)
	if err != nil {
		return err
	}
	board := snap.Board(kind)

	if a.Type == AssertBoardAbsent {
		if board != nil {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s unchanged in snapshot %d", a.Board, a.Snapshot),
				Actual:   fmt.Sprintf("%d cards", len(board)),
				Trace:    result.Trace,
			}
		}
		return nil
	}

	if board == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s present in snapshot %d", a.Board, a.Snapshot),
			Actual:   "board unchanged at this instant",
			Trace:    result.Trace,
		}
	}

	var got, want []string
	if a.Type == AssertBoardIDs {
		got, want = board.IDs(), a.IDs
	} else {
		for _, c := range board {
			got = append(got, result.resolver.DisplayName(c))
		}
		want = a.Names
	}
	if !slices.Equal(got, want) && !(len(got) == 0 && len(want) == 0) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s[%d] = %v", a.Board, a.Snapshot, want),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertTimestamp(result *Result, a Assertion) error {
	snap, err := snapshotAt(result, a.Snapshot)
	if err != nil {
		return err
	}
	want := time.UnixMilli(*a.At).UTC()
	if !snap.Timestamp.Equal(want) {
		return &AssertionError{
			Type:     AssertTimestamp,
			Expected: fmt.Sprintf("snapshot %d at %d", a.Snapshot, *a.At),
			Actual:   fmt.Sprintf("%d", snap.Timestamp.UnixMilli()),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertReplayError(result *Result, a Assertion) error {
	got := "none"
	if result.ReplayErr != nil {
		got = string(result.ReplayErr.Code)
	}
	if got != a.Code {
		return &AssertionError{
			Type:     AssertReplayError,
			Expected: a.Code,
			Actual:   got,
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertCommitCount(result *Result, a Assertion) error {
	if result.Commits < 0 {
		return fmt.Errorf("commit_count requires materialize: true")
	}
	if result.Commits != *a.Count {
		return &AssertionError{
			Type:     AssertCommitCount,
			Expected: fmt.Sprintf("%d commits", *a.Count),
			Actual:   fmt.Sprintf("%d commits", result.Commits),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
//
// When replay failed, only replay_error assertions are evaluated; every other
// assertion fails because there are no snapshots to check.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		if result.ReplayErr != nil && assertion.Type != AssertReplayError {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %s: replay failed: %v", i, assertion.Type, result.ReplayErr))
			continue
		}

		switch assertion.Type {
		case AssertSnapshotCount:
			err = assertSnapshotCount(result, assertion)
		case AssertBoardIDs, AssertBoardNames, AssertBoardAbsent:
			err = assertBoard(result, assertion)
		case AssertTimestamp:
			err = assertTimestamp(result, assertion)
		case AssertReplayError:
			err = assertReplayError(result, assertion)
		case AssertCommitCount:
			err = assertCommitCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
