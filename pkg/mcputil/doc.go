// Package mcputil carries the shared plumbing of the MCP servers the
// charmci binaries embed: tool result construction, required-field
// validation and fan-out over batched build specs.
package mcputil
