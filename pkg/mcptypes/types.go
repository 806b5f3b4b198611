// Package mcptypes defines the input types of the MCP tools charmci
// binaries expose. The fields mirror the corresponding action inputs;
// the MCP SDK derives the tool schemas from the json tags.
package mcptypes

import "github.com/charmci/charmci/pkg/plan"

// PlanInput parameterizes the "plan" tool.
type PlanInput struct {
	// WorkingDirectory to discover builds under. Defaults to ".".
	WorkingDirectory string `json:"workingDirectory,omitempty"`
	// Identifier distinguishes concurrent plans within one run.
	Identifier string `json:"identifier,omitempty"`
	// UploadImages selects registry output for container entries.
	UploadImages bool `json:"uploadImages,omitempty"`
}

// BuildInput parameterizes the "build" tool: one plan entry plus the
// settings the build action would receive as inputs.
type BuildInput struct {
	Type            string `json:"type"`
	Name            string `json:"name"`
	SourceFile      string `json:"sourceFile,omitempty"`
	SourceDirectory string `json:"sourceDirectory,omitempty"`
	BuildTarget     string `json:"buildTarget,omitempty"`
	OutputType      string `json:"outputType,omitempty"`
	Output          string `json:"output"`

	Registry          string `json:"registry,omitempty"`
	CharmcraftChannel string `json:"charmcraftChannel,omitempty"`
	RockcraftChannel  string `json:"rockcraftChannel,omitempty"`
}

// Entry converts the input to the plan entry the builder consumes. An
// empty output type means a file artifact.
func (b BuildInput) Entry() plan.BuildEntry {
	outputType := plan.OutputType(b.OutputType)
	if b.OutputType == "" {
		outputType = plan.OutputFile
	}

	return plan.BuildEntry{
		Type:            plan.BuildType(b.Type),
		Name:            b.Name,
		SourceFile:      b.SourceFile,
		SourceDirectory: b.SourceDirectory,
		BuildTarget:     b.BuildTarget,
		OutputType:      outputType,
		Output:          b.Output,
	}
}

// BatchBuildInput parameterizes the "buildBatch" tool.
type BatchBuildInput struct {
	Specs []BuildInput `json:"specs"`
}
