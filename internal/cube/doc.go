// Package cube provides the data model for reconstructed cube histories.
//
// This package contains type definitions and the identity resolver only. All
// other internal packages import cube; cube imports nothing internal, so it
// stays the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Boards are ordered; slice order is the coordinate space for
//     index-addressed changelog operations
//   - Optional card fields are pointers (or nil slices); absent is distinct
//     from empty
//   - Snapshot boards are nil when the board did not change at that instant
//   - Timestamps carry millisecond precision, matching the upstream changelog
package cube
