package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// memoryPath opens a private in-memory database. Only valid with a single
// connection, which Open enforces.
const memoryPath = ":memory:"

// schemaStep upgrades the schema from version-1 to version.
type schemaStep struct {
	version int
	name    string
	stmts   []string
}

// schemaSteps run in order on databases whose user_version is below their
// version. schema.sql creates the base tables; steps only add to them.
var schemaSteps = []schemaStep{
	{
		version: 1,
		name:    "index runs by cube",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_runs_cube_started ON runs(cube_id, started_at)`,
		},
	},
}

// currentSchemaVersion is the version of the last schema step.
var currentSchemaVersion = schemaSteps[len(schemaSteps)-1].version

// pragmas are applied on every Open. busy_timeout matters when a build and a
// `runs` listing share one ledger file.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store provides durable storage for the migration cache and run ledger.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger database at path, creating missing parent
// directories. ":memory:" opens a throwaway database.
//
// Open is idempotent: reopening an existing file only applies schema steps
// it hasn't seen.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("failed to open database: empty path")
	}
	if path != memoryPath && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory database
	// lives and dies with its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %q: %w", pragma, err)
		}
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SchemaVersion reports the database's user_version.
func (s *Store) SchemaVersion() (int, error) {
	return schemaVersion(s.db)
}

func schemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// applySchema creates the base tables and runs pending schema steps, each
// in its own transaction together with its user_version bump.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	version, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	for _, step := range schemaSteps {
		if step.version <= version {
			continue
		}
		if err := applyStep(db, step); err != nil {
			return err
		}
	}
	return nil
}

func applyStep(db *sql.DB, step schemaStep) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v%d (%s): %w", step.version, step.name, err)
	}
	defer tx.Rollback()

	for _, stmt := range step.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", step.version, step.name, err)
		}
	}
	// PRAGMA takes no bind parameters; version is a package constant.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", step.version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return tx.Commit()
}

// pragmaValue reads a pragma as text. Used by tests.
func (s *Store) pragmaValue(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return value, nil
}
