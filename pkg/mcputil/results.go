package mcputil

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrorResult wraps a message in a failed tool result.
func ErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}
}

// SuccessResult wraps a message in a successful tool result.
func SuccessResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: false,
	}
}

// SuccessResultWithArtifact wraps a message in a successful tool result
// and passes the structured artifact through, ready to be returned from
// an mcp tool handler:
//
//	result, artifact := mcputil.SuccessResultWithArtifact("planned", res.Plan)
//	return result, artifact, nil
func SuccessResultWithArtifact(message string, artifact any) (*mcp.CallToolResult, any) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: false,
	}

	return result, artifact
}
