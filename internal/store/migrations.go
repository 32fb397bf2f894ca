// SPDX-License-Identifier: AGPL-3.0-only
package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// migration represents a single schema migration.
type migration struct {
	version int
	up      func(tx *sql.Tx) error
}

// migrations is the ordered list of schema migrations.
var migrations = []migration{
	{
		version: 1,
		up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE calls (
					id         INTEGER PRIMARY KEY AUTOINCREMENT,
					tool       TEXT NOT NULL,
					model      TEXT DEFAULT '',
					is_error   INTEGER DEFAULT 0,
					output     TEXT DEFAULT '',
					start_time TEXT NOT NULL,
					end_time   TEXT NOT NULL,
					duration   TEXT DEFAULT ''
				);
				CREATE INDEX idx_calls_start ON calls (start_time DESC);
			`)
			return err
		},
	},
	{
		version: 2,
		up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX idx_calls_tool_start ON calls (tool, start_time DESC)`)
			return err
		},
	},
}

// runMigrations brings the schema up to the latest migration version.
func runMigrations(db *sql.DB) error {
	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

// schemaVersion returns the applied schema version, creating the
// bookkeeping table on first use.
func schemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (0)"); err != nil {
			return 0, fmt.Errorf("insert initial schema version: %w", err)
		}
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return current, nil
}

// applyMigration runs one migration and bumps the version in a single transaction.
func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.version, err)
	}
	if err := m.up(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %d: %w", m.version, err)
	}
	if _, err := tx.Exec("UPDATE schema_version SET version = ?", m.version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update schema version to %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.version, err)
	}
	return nil
}
