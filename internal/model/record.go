// SPDX-License-Identifier: AGPL-3.0-only
package model

import "time"

// CallRecord describes one completed tool call
type CallRecord struct {
	ID        int64     `json:"id,omitempty"`
	Tool      string    `json:"tool"`
	Model     string    `json:"model"`
	IsError   bool      `json:"is_error"`
	Output    string    `json:"output"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  string    `json:"duration"`
}

// HistoryStore persists call records. Records are never read back by the
// tool handlers; the store is an audit log only.
type HistoryStore interface {
	SaveCall(record *CallRecord) error
	RecentCalls(limit int) ([]*CallRecord, error)
	Close() error
}
