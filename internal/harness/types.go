package harness

import (
	"time"

	"github.com/roach88/dredger/internal/cube"
	"github.com/roach88/dredger/internal/engine"
)

// TraceEvent is one snapshot as rendered into the trace.
type TraceEvent struct {
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`

	// Main and Maybe hold "id:name" entries; nil when the board did not
	// change at this instant.
	Main  []string `json:"main,omitempty"`
	Maybe []string `json:"maybe,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace renders every snapshot, oldest first.
	Trace []TraceEvent `json:"trace"`

	// Snapshots are the sequencer's output; empty when replay failed.
	Snapshots []cube.Snapshot `json:"-"`

	// ReplayErr is set when sequencing failed.
	ReplayErr *engine.ReplayError `json:"-"`

	// Commits is the number of commits written; -1 when not materialized.
	Commits int `json:"commits"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	resolver *cube.Resolver
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Commits: -1,
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddSnapshotTrace renders snap into the trace.
func (r *Result) AddSnapshotTrace(snap cube.Snapshot) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:       len(r.Trace),
		Timestamp: snap.Timestamp.UTC(),
		Main:      r.render(snap.Main),
		Maybe:     r.render(snap.Maybe),
	})
}

func (r *Result) render(board cube.Board) []string {
	if board == nil {
		return nil
	}
	out := make([]string, len(board))
	for i, c := range board {
		out[i] = c.ID + ":" + r.resolver.DisplayName(c)
	}
	return out
}
