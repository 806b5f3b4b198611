package main

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/charmci/charmci/internal/artifact"
	"github.com/charmci/charmci/internal/builder"
	"github.com/charmci/charmci/internal/cache"
	"github.com/charmci/charmci/internal/executil"
	"github.com/charmci/charmci/internal/gitutil"
	"github.com/charmci/charmci/internal/mcpserver"
	"github.com/charmci/charmci/pkg/mcptypes"
	"github.com/charmci/charmci/pkg/mcputil"
	"github.com/charmci/charmci/pkg/plan"
)

// runMCPServer serves the build tools over stdio until stdin closes.
func runMCPServer() error {
	server := mcpserver.New(Name, Version)

	mcpserver.RegisterTool(server, &mcp.Tool{
		Name:        "build",
		Description: "Build a single plan entry (charm, rock, docker image or file resource)",
	}, handleBuildTool)

	mcpserver.RegisterTool(server, &mcp.Tool{
		Name:        "buildBatch",
		Description: "Build multiple plan entries",
	}, handleBuildBatchTool)

	return server.RunDefault()
}

// buildArtifact is the structured payload a successful build returns to
// MCP clients.
type buildArtifact struct {
	Manifest     plan.Manifest `json:"manifest"`
	ArtifactName string        `json:"artifactName"`
	ArtifactPath string        `json:"artifactPath"`
	CacheKey     string        `json:"cacheKey,omitempty"`
	CacheHit     bool          `json:"cacheHit"`
}

func handleBuildTool(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input mcptypes.BuildInput,
) (*mcp.CallToolResult, any, error) {
	log.Printf("Building %s %q", input.Type, input.Name)

	if result := mcputil.ValidateRequiredWithPrefix("Build failed", map[string]string{
		"type":   input.Type,
		"name":   input.Name,
		"output": input.Output,
	}); result != nil {
		return result, nil, nil
	}

	entry := input.Entry()
	if err := entry.Validate(); err != nil {
		return mcputil.ErrorResult(fmt.Sprintf("Build failed: %v", err)), nil, nil
	}

	// The quiet runner keeps tool output on stderr, away from JSON-RPC.
	runner := executil.NewQuietRunner()

	b := builder.New(builder.Config{
		Runner:            runner,
		Store:             cache.NewStore(cache.DefaultRoot()),
		Git:               gitutil.New(runner, "."),
		Probe:             builder.RemoteProbe{},
		Stager:            artifact.NewStager(artifact.DefaultStagingRoot()),
		Registry:          input.Registry,
		CharmcraftChannel: input.CharmcraftChannel,
		RockcraftChannel:  input.RockcraftChannel,
		Rotation:          cache.DefaultRotation,
		Architecture:      runtime.GOARCH,
		Now:               time.Now,
	})

	result, err := b.Build(ctx, entry)
	if err != nil {
		return mcputil.ErrorResult(fmt.Sprintf("Build failed: %v", err)), nil, nil
	}

	mcpResult, out := mcputil.SuccessResultWithArtifact(
		fmt.Sprintf("Built %s: staged as %s (cache hit: %t)",
			entry.Name, result.ArtifactName, result.CacheHit),
		buildArtifact{
			Manifest:     result.Manifest,
			ArtifactName: result.ArtifactName,
			ArtifactPath: result.ArtifactPath,
			CacheKey:     result.CacheKey,
			CacheHit:     result.CacheHit,
		},
	)

	return mcpResult, out, nil
}

func handleBuildBatchTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input mcptypes.BatchBuildInput,
) (*mcp.CallToolResult, any, error) {
	log.Printf("Building %d entries in batch", len(input.Specs))

	artifacts, errorMsgs := mcputil.HandleBatchBuild(ctx, input.Specs,
		func(ctx context.Context, spec mcptypes.BuildInput) (*mcp.CallToolResult, any, error) {
			return handleBuildTool(ctx, req, spec)
		})

	result, returnedArtifacts := mcputil.FormatBatchResult("entries", artifacts, errorMsgs)

	return result, returnedArtifacts, nil
}
