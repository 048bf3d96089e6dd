// Package engine implements the temporal reconstruction engine.
//
// The engine walks a cube's changelog backward. Upstream exposes only the
// current boards and a newest-first list of edits; undoing those edits one by
// one recovers every prior state.
//
// ARCHITECTURE:
//
// Reverter:
// Undoes one event's operation set on one board, in place. The undo order
// adds → removes → edits → swaps mirrors the forward order upstream uses.
//
// Sequencer:
// Owns the two working boards for the duration of a run and threads them
// through the Reverter event by event, freezing a Snapshot (a deep clone)
// after each event that touched a board.
//
//	[current boards] → Snapshot(now, both boards)
//	       ↓
//	[event 0 (newest)] → Revert → Snapshot(t0, touched boards)
//	       ↓
//	[event n (oldest)] → Revert → Snapshot(tn, BOTH boards)
//	       ↓
//	reverse → oldest-first sequence
//
// Everything runs in a single goroutine. Each event's correctness depends on
// the exact post-state of the previous one, so there is nothing to
// parallelize.
//
// FAILURE POLICY:
//
// A card the changelog names but the board doesn't hold means the history
// and the replay state disagree. That is a *ReplayError, never a panic, and
// never skipped: partial output is worse than none. Callers test for it with
// IsFatal.
package engine
