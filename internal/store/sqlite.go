// SPDX-License-Identifier: AGPL-3.0-only
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jolks/mcp-openai/internal/model"

	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339Nano

// maxRecentCalls caps a single RecentCalls query
const maxRecentCalls = 100

// SQLiteStore implements model.HistoryStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure the parent directory exists.
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveCall persists a completed tool call and sets record.ID.
func (s *SQLiteStore) SaveCall(record *model.CallRecord) error {
	res, err := s.db.Exec(`
		INSERT INTO calls (tool, model, is_error, output, start_time, end_time, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.Tool,
		record.Model,
		boolToInt(record.IsError),
		record.Output,
		record.StartTime.Format(timeFormat),
		record.EndTime.Format(timeFormat),
		record.Duration,
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

// RecentCalls returns up to limit call records, most recent first.
func (s *SQLiteStore) RecentCalls(limit int) ([]*model.CallRecord, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > maxRecentCalls {
		limit = maxRecentCalls
	}

	rows, err := s.db.Query(`
		SELECT id, tool, model, is_error, output, start_time, end_time, duration
		FROM calls
		ORDER BY start_time DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var records []*model.CallRecord
	for rows.Next() {
		var r model.CallRecord
		var isError int
		var startStr, endStr string
		if err := rows.Scan(
			&r.ID, &r.Tool, &r.Model, &isError,
			&r.Output, &startStr, &endStr, &r.Duration,
		); err != nil {
			return nil, fmt.Errorf("scan call row: %w", err)
		}
		r.IsError = isError != 0
		r.StartTime, _ = time.Parse(timeFormat, startStr)
		r.EndTime, _ = time.Parse(timeFormat, endStr)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call rows: %w", err)
	}

	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
