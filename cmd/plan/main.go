package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/sethvargo/go-githubactions"

	"github.com/charmci/charmci/internal/artifact"
	"github.com/charmci/charmci/internal/cli"
	"github.com/charmci/charmci/internal/planner"
	"github.com/charmci/charmci/pkg/plan"
)

const Name = "plan"

// Version information (set via ldflags during build)
var (
	Version        = "dev"
	CommitSHA      = "unknown"
	BuildTimestamp = "unknown"
)

// ----------------------------------------------------- MAIN ------------------------------------------------------- //

func main() {
	cli.Bootstrap(cli.Config{
		Name:           Name,
		Usage:          usage,
		Version:        Version,
		CommitSHA:      CommitSHA,
		BuildTimestamp: BuildTimestamp,
		RunCLI:         run,
		RunMCP:         runMCPServer,
		SuccessHandler: printSuccess,
		FailureHandler: printFailure,
	})
}

// ----------------------------------------------------- RUN -------------------------------------------------------- //

var errPlanningBuilds = errors.New("planning builds")

// run discovers the buildable artifacts under the working directory,
// stages the resulting plan for the upload step and publishes it as
// action outputs.
func run() error {
	action := githubactions.New()

	// I. Read action inputs
	uploadImages, err := parseUploadImage(action.GetInput("upload-image"))
	if err != nil {
		return errors.Join(err, errPlanningBuilds)
	}

	cfg := planner.Config{
		WorkingDirectory: action.GetInput("working-directory"),
		Identifier:       action.GetInput("identifier"),
		UploadImages:     uploadImages,
		GeneratedID:      "",
	}

	// II. Generate the plan
	result, err := planner.Generate(cfg)
	if err != nil {
		return errors.Join(err, errPlanningBuilds)
	}

	data, err := result.Plan.Encode()
	if err != nil {
		return errors.Join(err, errPlanningBuilds)
	}

	// III. Stage the plan for the surrounding action's upload step
	stager := artifact.NewStager(artifact.DefaultStagingRoot())

	path, err := stager.Write(result.ArtifactName, plan.PlanFileName, data)
	if err != nil {
		return errors.Join(err, errPlanningBuilds)
	}

	// IV. Publish outputs
	action.SetOutput("plan", string(data))
	action.SetOutput("plan-artifact", result.ArtifactName)
	action.SetOutput("plan-path", path)

	action.Infof("planned %d builds as %s", len(result.Plan.Build), result.ArtifactName)

	return nil
}

var errInvalidUploadImage = errors.New("invalid upload-image input")

// parseUploadImage reads the boolean upload-image input. Empty means
// false, everything else must satisfy strconv.ParseBool.
func parseUploadImage(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}

	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %q", errInvalidUploadImage, raw)
	}

	return parsed, nil
}

// ----------------------------------------------------- PRINT HELPERS ----------------------------------------------- //

const usage = `USAGE

    plan [--mcp]

Action inputs (INPUT_* environment variables):
    working-directory    string    Directory to discover builds under (default: ".").
    identifier           string    Label distinguishing concurrent plans within one run.
    upload-image         bool      Push rock and docker images to a registry instead of uploading artifacts.

Action outputs:
    plan             The generated build plan as JSON.
    plan-artifact    Artifact name the plan is staged under.
    plan-path        Path of the staged plan.json for the upload step.

Modes:
    --mcp    Serve the plan tool over MCP stdio instead of running once.
`

func printSuccess() {
	_, _ = fmt.Fprintln(os.Stdout, "✅ Build plan generated")
}

func printFailure(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "❌ Error planning builds\n%s\n", err.Error())
}
