// Package harness runs changelog replay scenarios.
//
// A scenario describes a cube's current boards, its changelog (newest
// first) and optional card migrations. The harness sequences the changelog
// with a fixed clock, renders the resulting snapshots as a trace, and checks
// assertions against them. Traces are compared with golden files so that any
// change in replay behavior shows up as a diff.
//
// # Scenario Format
//
//	name: swap_then_remove
//	description: "A swap is undone before an older remove"
//	now: 1700000200000          # clock reading in Unix milliseconds
//	verify: true                # forward consistency check
//	migrations:
//	  old-id: { id: new-id, name: "New Name" }
//	main:
//	  - { id: bolt, name: "Lightning Bolt" }
//	maybe: []
//	events:
//	  - at: 1700000100000       # omit for a dateless event
//	    main:
//	      adds: [{ id: bolt }]
//	      removes: [{ index: 0, card: { id: ring } }]
//	      edits: [{ index: 0, old: { id: a }, new: { id: a, status: Owned } }]
//	      swaps: [{ index: 0, old: { id: a }, new: { id: b } }]
//	assertions:
//	  - type: snapshot_count
//	    count: 2
//	  - type: board_ids
//	    snapshot: 0
//	    board: main
//	    ids: [ring]
//
// # Assertion Types
//
//   - snapshot_count: number of snapshots produced
//   - board_ids: card ids of a board in a snapshot, in order
//   - board_names: rendered names of a board in a snapshot, in order
//   - board_absent: the board did not change in that snapshot
//   - timestamp: a snapshot's instant in Unix milliseconds
//   - replay_error: sequencing failed with the given error code
//   - commit_count: commits written when the scenario materializes
//
// Snapshot indexes count from the oldest snapshot; negative indexes count
// back from the newest (-1 is "now").
package harness
