// Package store provides SQLite-backed durable storage for dredger.
//
// The store holds two independent datasets:
//   - Migrations: a cache of upstream card id migrations, refreshed on demand
//   - Runs: a ledger of build invocations and the commits each one wrote
//
// # Ordering
//
// Every list query carries an explicit ORDER BY so results are identical
// across calls: runs by started_at then id, commits by seq, migrations by
// old_id COLLATE BINARY.
//
// # Time
//
// Timestamps are stored as INTEGER milliseconds since the Unix epoch (UTC).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
