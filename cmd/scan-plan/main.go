package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/sethvargo/go-githubactions"

	"github.com/charmci/charmci/internal/artifact"
	"github.com/charmci/charmci/internal/cli"
	"github.com/charmci/charmci/internal/gha"
	"github.com/charmci/charmci/internal/scanner"
	"github.com/charmci/charmci/internal/version"
	"github.com/charmci/charmci/pkg/plan"
)

const Name = "scan-plan"

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
		RunMCP:         nil,
		SuccessHandler: printSuccess,
		FailureHandler: printFailure,
	})
}

// ----------------------------------------------------- RUN -------------------------------------------------------- //

var errPlanningScans = errors.New("planning scans")

// run derives the vulnerability scan matrix from the plan's container
// entries and their built manifests.
func run() error {
	ctx := context.Background()
	action := githubactions.New()

	// I. Read environment variables and action inputs
	envs := Envs{} //nolint:exhaustruct // unmarshal

	if err := env.Parse(&envs); err != nil {
		return errors.Join(err, errPlanningScans)
	}

	repo, err := gha.ParseRepository(envs.Repository)
	if err != nil {
		return errors.Join(err, errPlanningScans)
	}

	resolved, err := plan.Decode([]byte(action.GetInput("plan")))
	if err != nil {
		return errors.Join(err, errPlanningScans)
	}

	runID, err := parseRunID(action.GetInput("run-id"))
	if err != nil {
		return errors.Join(err, errPlanningScans)
	}

	// II. Wire the API clients
	gh, err := gha.NewClient(envs.APIURL, action.GetInput("github-token"), userAgent())
	if err != nil {
		return errors.Join(err, errPlanningScans)
	}

	// III. Generate the scan entries
	scans, err := scanner.New(artifact.NewClient(gh, repo)).Generate(ctx, scanner.Config{
		Plan:          resolved,
		RunID:         runID,
		SharedIgnores: scanner.ParseIgnores(action.GetInput("trivy-ignores")),
	})
	if err != nil {
		return errors.Join(err, errPlanningScans)
	}

	if scans == nil {
		scans = []plan.ScanEntry{}
	}

	data, err := json.Marshal(scans)
	if err != nil {
		return errors.Join(err, errPlanningScans)
	}

	// IV. Publish outputs
	action.SetOutput("scans", string(data))

	action.Infof("planned %d scans from run %d", len(scans), runID)

	return nil
}

var errInvalidRunID = errors.New("invalid run-id input")

// parseRunID reads the build run id holding the artifacts.
func parseRunID(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: run-id is required", errInvalidRunID)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidRunID, raw)
	}

	return id, nil
}

// userAgent identifies this tool on GitHub API calls.
func userAgent() string {
	info := version.New(Name)
	info.Version = Version

	return info.UserAgent()
}

// ----------------------------------------------------- ENVS ------------------------------------------------------- //

// Envs holds the workflow environment identifying the repository.
type Envs struct {
	// Repository is the owner/name pair of the current repository.
	Repository string `env:"GITHUB_REPOSITORY,required"`
	// APIURL is the API endpoint, set for GitHub Enterprise hosts.
	APIURL string `env:"GITHUB_API_URL"`
}

// ----------------------------------------------------- PRINT HELPERS ----------------------------------------------- //

const usage = `USAGE

    scan-plan

Action inputs (INPUT_* environment variables):
    plan             string    The resolved build plan as JSON (required).
    run-id           int       Workflow run whose artifacts hold the built outputs (required).
    github-token     string    Token for the GitHub API.
    trivy-ignores    string    Vulnerability ids every scan skips, comma or newline separated.

Environment variables:
    GITHUB_REPOSITORY    owner/name of the current repository (required).
    GITHUB_API_URL       API endpoint, set for GitHub Enterprise hosts.

Action outputs:
    scans    Scan matrix entries as a JSON array.
`

func printSuccess() {
	_, _ = fmt.Fprintln(os.Stdout, "✅ Scan plan generated")
}

func printFailure(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "❌ Error planning scans\n%s\n", err.Error())
}
