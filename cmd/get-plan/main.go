package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/sethvargo/go-githubactions"

	"github.com/charmci/charmci/internal/artifact"
	"github.com/charmci/charmci/internal/cli"
	"github.com/charmci/charmci/internal/executil"
	"github.com/charmci/charmci/internal/gha"
	"github.com/charmci/charmci/internal/gitutil"
	"github.com/charmci/charmci/internal/resolver"
	"github.com/charmci/charmci/internal/version"
)

const Name = "get-plan"

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

var errGettingPlan = errors.New("getting plan")

// run finds the build plan a finished run produced for this tree and
// publishes it together with the run id it came from.
func run() error {
	ctx := context.Background()
	action := githubactions.New()

	// I. Read environment variables and action inputs
	envs := Envs{} //nolint:exhaustruct // unmarshal

	if err := env.Parse(&envs); err != nil {
		return errors.Join(err, errGettingPlan)
	}

	repo, err := gha.ParseRepository(envs.Repository)
	if err != nil {
		return errors.Join(err, errGettingPlan)
	}

	runID, err := parseRunID(action.GetInput("run-id"))
	if err != nil {
		return errors.Join(err, errGettingPlan)
	}

	// II. Wire the API clients
	gh, err := gha.NewClient(envs.APIURL, action.GetInput("github-token"), userAgent())
	if err != nil {
		return errors.Join(err, errGettingPlan)
	}

	res := resolver.New(gh, repo,
		artifact.NewClient(gh, repo),
		gitutil.New(executil.NewRunner(), "."))

	// III. Resolve the plan
	result, err := res.Resolve(ctx, resolver.Config{
		WorkingDirectory: action.GetInput("working-directory"),
		Identifier:       action.GetInput("identifier"),
		RunID:            runID,
	})
	if err != nil {
		return errors.Join(err, errGettingPlan)
	}

	data, err := result.Plan.Encode()
	if err != nil {
		return errors.Join(err, errGettingPlan)
	}

	// IV. Publish outputs
	action.SetOutput("plan", string(data))
	action.SetOutput("run-id", strconv.FormatInt(result.RunID, 10))

	action.Infof("resolved plan with %d builds from run %d", len(result.Plan.Build), result.RunID)

	return nil
}

var errInvalidRunID = errors.New("invalid run-id input")

// parseRunID reads the optional explicit run id. Empty means resolve by
// tree identity.
func parseRunID(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
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

    get-plan

Action inputs (INPUT_* environment variables):
    working-directory    string    Directory the plan must cover (default: ".").
    identifier           string    Filter plan artifacts to one identifier.
    run-id               int       Explicit workflow run id. Empty resolves by tree identity.
    github-token         string    Token for the GitHub API.

Environment variables:
    GITHUB_REPOSITORY    owner/name of the current repository (required).
    GITHUB_API_URL       API endpoint, set for GitHub Enterprise hosts.

Action outputs:
    plan      The resolved build plan as JSON.
    run-id    The workflow run the plan came from.
`

func printSuccess() {
	_, _ = fmt.Fprintln(os.Stdout, "✅ Plan resolved")
}

func printFailure(err error) {
	githubactions.Errorf("getting plan: %s", err.Error())
	_, _ = fmt.Fprintf(os.Stderr, "❌ Error getting plan\n%s\n", err.Error())
}
