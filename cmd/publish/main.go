package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/sethvargo/go-githubactions"

	"github.com/charmci/charmci/internal/artifact"
	"github.com/charmci/charmci/internal/cli"
	"github.com/charmci/charmci/internal/executil"
	"github.com/charmci/charmci/internal/gha"
	"github.com/charmci/charmci/internal/publisher"
	"github.com/charmci/charmci/internal/version"
	"github.com/charmci/charmci/pkg/plan"
)

const Name = "publish"

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

var errPublishingCharm = errors.New("publishing charm resources")

// run uploads every required resource of the plan's charm from the build
// run's artifacts and publishes the downloaded charm file paths.
func run() error {
	ctx := context.Background()
	action := githubactions.New()

	// I. Read environment variables and action inputs
	envs := Envs{} //nolint:exhaustruct // unmarshal

	if err := env.Parse(&envs); err != nil {
		return errors.Join(err, errPublishingCharm)
	}

	repo, err := gha.ParseRepository(envs.Repository)
	if err != nil {
		return errors.Join(err, errPublishingCharm)
	}

	resolved, err := plan.Decode([]byte(action.GetInput("plan")))
	if err != nil {
		return errors.Join(err, errPublishingCharm)
	}

	runID, err := parseRunID(action.GetInput("run-id"))
	if err != nil {
		return errors.Join(err, errPublishingCharm)
	}

	mapping, err := parseResourceMapping(action.GetInput("resource-mapping"))
	if err != nil {
		return errors.Join(err, errPublishingCharm)
	}

	// II. Wire the API clients
	gh, err := gha.NewClient(envs.APIURL, action.GetInput("github-token"), userAgent())
	if err != nil {
		return errors.Join(err, errPublishingCharm)
	}

	pub := publisher.New(executil.NewRunner(), artifact.NewClient(gh, repo))

	// III. Upload the resources
	result, err := pub.Publish(ctx, publisher.Config{
		Plan:              resolved,
		RunID:             runID,
		CharmDirectory:    action.GetInput("charm-directory"),
		ResourceMapping:   mapping,
		CharmcraftChannel: action.GetInput("charmcraft-channel"),
		RegistryUser:      action.GetInput("registry-user"),
		RegistryPassword:  action.GetInput("registry-password"),
	})
	if err != nil {
		return errors.Join(err, errPublishingCharm)
	}

	charmFiles := result.Charms
	if charmFiles == nil {
		charmFiles = []string{}
	}

	charms, err := json.Marshal(charmFiles)
	if err != nil {
		return errors.Join(err, errPublishingCharm)
	}

	// IV. Publish outputs
	action.SetOutput("charms", string(charms))
	action.SetOutput("charm-directory", result.CharmDirectory)

	action.Infof("uploaded resources for %d charm files from run %d", len(charmFiles), runID)

	return nil
}

var errInvalidRunID = errors.New("invalid run-id input")

// parseRunID reads the build run id holding the artifacts. Publishing
// always needs one.
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

var errInvalidResourceMapping = errors.New("invalid resource-mapping input")

// parseResourceMapping reads the optional JSON object mapping build entry
// names to the charm resource names they fill.
func parseResourceMapping(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	mapping := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidResourceMapping, err)
	}

	return mapping, nil
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

    publish

Action inputs (INPUT_* environment variables):
    plan                  string    The resolved build plan as JSON (required).
    run-id                int       Workflow run whose artifacts hold the built outputs (required).
    charm-directory       string    Override for the charm entry's source directory.
    resource-mapping      string    JSON object mapping build entry names to charm resource names.
    charmcraft-channel    string    Snap channel to install charmcraft from.
    github-token          string    Token for the GitHub API.
    registry-user         string    Registry login user for image pulls. Empty skips login.
    registry-password     string    Registry login password.

Environment variables:
    GITHUB_REPOSITORY    owner/name of the current repository (required).
    GITHUB_API_URL       API endpoint, set for GitHub Enterprise hosts.

Action outputs:
    charms             Downloaded charm file paths as a JSON array.
    charm-directory    Directory the upload commands ran in.
`

func printSuccess() {
	_, _ = fmt.Fprintln(os.Stdout, "✅ Charm resources published")
}

func printFailure(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "❌ Error publishing charm resources\n%s\n", err.Error())
}
