// SPDX-License-Identifier: AGPL-3.0-only
package singleton

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Lock is an exclusive, process-level claim on a history database file.
type Lock struct {
	flock *flock.Flock
}

// TryAcquire attempts to claim the history database at dbPath for writing.
// It returns the lock and true when this process is the only writer, or nil
// and false when another server process already holds it. Callers that lose
// the race keep serving tool calls but do not record history.
func TryAcquire(dbPath string) (*Lock, bool, error) {
	lockPath := dbPath + ".lock"

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("singleton: try lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, false, nil
	}
	return &Lock{flock: fl}, true, nil
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.flock.Path()
}

// Release releases the lock.
func (l *Lock) Release() error {
	return l.flock.Unlock()
}
