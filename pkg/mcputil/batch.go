package mcputil

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HandleBatchBuild runs the single-spec handler over every spec and
// splits the outcomes into artifacts and error messages. A failed spec
// never aborts the batch; callers combine the two slices with
// FormatBatchResult.
func HandleBatchBuild[T any](
	ctx context.Context,
	specs []T,
	handler func(context.Context, T) (*mcp.CallToolResult, any, error),
) (artifacts []any, errorMsgs []string) {
	artifacts = []any{}
	errorMsgs = []string{}

	for _, spec := range specs {
		result, artifact, err := handler(ctx, spec)
		if err != nil || (result != nil && result.IsError) {
			errorMsgs = append(errorMsgs, extractErrorMessage(result, err))

			continue
		}

		if artifact != nil {
			artifacts = append(artifacts, artifact)
		}
	}

	return artifacts, errorMsgs
}

func extractErrorMessage(result *mcp.CallToolResult, err error) string {
	if err != nil {
		return err.Error()
	}

	if result != nil && len(result.Content) > 0 {
		if textContent, ok := result.Content[0].(*mcp.TextContent); ok {
			return textContent.Text
		}
	}

	return "unknown error"
}

// FormatBatchResult folds a batch outcome into one tool result. Any
// failed spec makes the whole result an error; the artifacts gathered
// before the failures are still returned.
func FormatBatchResult(operationType string, artifacts []any, errorMsgs []string) (*mcp.CallToolResult, any) {
	if len(errorMsgs) > 0 {
		return ErrorResult(fmt.Sprintf(
			"Batch build completed with errors: %v", errorMsgs)), artifacts
	}

	return SuccessResult(fmt.Sprintf(
		"Successfully built %d %s", len(artifacts), operationType)), artifacts
}
