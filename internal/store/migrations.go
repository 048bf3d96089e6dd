package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/dredger/internal/cube"
)

// MigrationCacheInfo describes the most recent cache refresh.
type MigrationCacheInfo struct {
	FetchedAt time.Time
	Entries   int
}

// LoadMigrations returns the cached migration map.
//
// ok is false when the cache has never been filled, which callers treat as
// "fetch upstream". A filled cache may legitimately be empty.
func (s *Store) LoadMigrations(ctx context.Context) (m cube.MigrationMap, ok bool, err error) {
	if _, ok, err := s.MigrationCacheInfo(ctx); err != nil || !ok {
		return nil, false, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT old_id, new_id, name
		FROM migrations
		ORDER BY old_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, false, fmt.Errorf("query migrations: %w", err)
	}
	defer rows.Close()

	m = cube.MigrationMap{}
	for rows.Next() {
		var oldID string
		var ident cube.Identity
		if err := rows.Scan(&oldID, &ident.ID, &ident.Name); err != nil {
			return nil, false, fmt.Errorf("scan migration: %w", err)
		}
		m[oldID] = ident
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate migrations: %w", err)
	}

	return m, true, nil
}

// ReplaceMigrations atomically replaces the cached map with m and records a
// refresh at fetchedAt.
func (s *Store) ReplaceMigrations(ctx context.Context, m cube.MigrationMap, fetchedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace migrations: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM migrations`); err != nil {
		return fmt.Errorf("replace migrations: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO migrations (old_id, new_id, name)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("replace migrations: prepare: %w", err)
	}
	defer stmt.Close()

	for oldID, ident := range m {
		if _, err := stmt.ExecContext(ctx, oldID, ident.ID, ident.Name); err != nil {
			return fmt.Errorf("replace migrations: insert %s: %w", oldID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO migration_refreshes (fetched_at, entries)
		VALUES (?, ?)
	`, fetchedAt.UnixMilli(), len(m)); err != nil {
		return fmt.Errorf("replace migrations: record refresh: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace migrations: commit: %w", err)
	}
	return nil
}

// LookupMigration returns the cached identity for oldID, if any.
func (s *Store) LookupMigration(ctx context.Context, oldID string) (cube.Identity, bool, error) {
	var ident cube.Identity
	err := s.db.QueryRowContext(ctx, `
		SELECT new_id, name FROM migrations WHERE old_id = ?
	`, oldID).Scan(&ident.ID, &ident.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return cube.Identity{}, false, nil
	}
	if err != nil {
		return cube.Identity{}, false, fmt.Errorf("lookup migration %s: %w", oldID, err)
	}
	return ident, true, nil
}

// MigrationCacheInfo returns the latest refresh, or ok=false if the cache
// was never filled.
func (s *Store) MigrationCacheInfo(ctx context.Context) (info MigrationCacheInfo, ok bool, err error) {
	var fetchedAt int64
	err = s.db.QueryRowContext(ctx, `
		SELECT fetched_at, entries
		FROM migration_refreshes
		ORDER BY seq DESC
		LIMIT 1
	`).Scan(&fetchedAt, &info.Entries)
	if errors.Is(err, sql.ErrNoRows) {
		return MigrationCacheInfo{}, false, nil
	}
	if err != nil {
		return MigrationCacheInfo{}, false, fmt.Errorf("query migration refreshes: %w", err)
	}
	info.FetchedAt = time.UnixMilli(fetchedAt).UTC()
	return info, true, nil
}
