// SPDX-License-Identifier: AGPL-3.0-only
package utils

import (
	"bytes"
	"encoding/json"
)

// JsonUnmarshal decodes data into v. Empty input and a literal null leave v
// untouched, since MCP clients may omit tool arguments entirely.
func JsonUnmarshal(data []byte, v interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.Unmarshal(trimmed, v)
}
