// SPDX-License-Identifier: AGPL-3.0-only
package errors

import (
	"fmt"
	"strings"
)

// InvalidInput creates a formatted "invalid input" error
func InvalidInput(reason string) error {
	return fmt.Errorf("invalid input: %s", reason)
}

// MissingArgument creates an error for a required tool argument that was not supplied
func MissingArgument(name string) error {
	return InvalidInput(fmt.Sprintf("%s is required", name))
}

// UnsupportedModel creates an error for a model outside a tool's permitted set
func UnsupportedModel(tool, model string, supported []string) error {
	return fmt.Errorf("unsupported model %q for %s (supported: %s)", model, tool, strings.Join(supported, ", "))
}

// UnknownTool creates an error for a tool name no handler owns
func UnknownTool(name string) error {
	return fmt.Errorf("unknown tool: %s", name)
}

// Internal creates a formatted "internal error" error
func Internal(err error) error {
	return fmt.Errorf("internal error: %w", err)
}
