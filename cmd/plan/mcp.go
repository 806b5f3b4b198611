package main

import (
	"context"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/charmci/charmci/internal/mcpserver"
	"github.com/charmci/charmci/internal/planner"
	"github.com/charmci/charmci/pkg/mcptypes"
	"github.com/charmci/charmci/pkg/mcputil"
)

// runMCPServer serves the plan tool over stdio until stdin closes.
func runMCPServer() error {
	server := mcpserver.New(Name, Version)

	mcpserver.RegisterTool(server, &mcp.Tool{
		Name:        "plan",
		Description: "Discover charm, rock and Dockerfile builds under a directory and return the build plan",
	}, handlePlanTool)

	return server.RunDefault()
}

// handlePlanTool generates a plan without staging anything; the caller
// receives the plan itself as the artifact.
func handlePlanTool(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input mcptypes.PlanInput,
) (*mcp.CallToolResult, any, error) {
	log.Printf("Planning builds under %q", input.WorkingDirectory)

	result, err := planner.Generate(planner.Config{
		WorkingDirectory: input.WorkingDirectory,
		Identifier:       input.Identifier,
		UploadImages:     input.UploadImages,
		GeneratedID:      "",
	})
	if err != nil {
		return mcputil.ErrorResult(fmt.Sprintf("Plan failed: %v", err)), nil, nil
	}

	mcpResult, artifact := mcputil.SuccessResultWithArtifact(
		fmt.Sprintf("Planned %d builds under %q",
			len(result.Plan.Build), result.Plan.WorkingDirectory),
		result.Plan,
	)

	return mcpResult, artifact, nil
}
