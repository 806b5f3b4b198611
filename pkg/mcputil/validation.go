package mcputil

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ValidateRequired returns an error result naming the first empty field,
// or nil when every field carries a value. With several empty fields the
// reported one follows map iteration order.
func ValidateRequired(fields map[string]string) *mcp.CallToolResult {
	return ValidateRequiredWithPrefix("Operation failed", fields)
}

// ValidateRequiredWithPrefix is ValidateRequired with a tool-specific
// message prefix, e.g. "Build failed".
func ValidateRequiredWithPrefix(prefix string, fields map[string]string) *mcp.CallToolResult {
	for fieldName, fieldValue := range fields {
		if fieldValue == "" {
			return ErrorResult(fmt.Sprintf(
				"%s: missing required field '%s'", prefix, fieldName))
		}
	}

	return nil
}
