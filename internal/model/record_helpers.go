// SPDX-License-Identifier: AGPL-3.0-only
package model

import (
	"encoding/json"

	"github.com/jolks/mcp-openai/internal/logging"
)

// PersistAndLogCall saves a call record to the store (best-effort) and debug-logs it.
func PersistAndLogCall(store HistoryStore, record *CallRecord, logger *logging.Logger) {
	if store != nil {
		if err := store.SaveCall(record); err != nil {
			logger.Warnf("Failed to persist call record for %s: %v", record.Tool, err)
		}
	}

	jsonData, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		logger.Warnf("Failed to marshal call record for %s: %v", record.Tool, err)
	} else {
		logger.Debugf("%s call record: %s", record.Tool, string(jsonData))
	}
}
