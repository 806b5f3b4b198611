package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sethvargo/go-githubactions"

	"github.com/charmci/charmci/internal/artifact"
	"github.com/charmci/charmci/internal/builder"
	"github.com/charmci/charmci/internal/cache"
	"github.com/charmci/charmci/internal/cli"
	"github.com/charmci/charmci/internal/executil"
	"github.com/charmci/charmci/internal/gitutil"
	"github.com/charmci/charmci/pkg/plan"
)

const Name = "build"

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

var errRunningBuild = errors.New("running build")

// run builds the single plan entry passed through the build-plan input
// and publishes the staged artifact location plus the manifest as action
// outputs.
func run() error {
	ctx := context.Background()
	action := githubactions.New()

	// I. Read environment variables and action inputs
	envs := Envs{} //nolint:exhaustruct // unmarshal

	if err := env.Parse(&envs); err != nil {
		return errors.Join(err, errRunningBuild)
	}

	entry, err := plan.DecodeEntry([]byte(action.GetInput("build-plan")))
	if err != nil {
		return errors.Join(err, errRunningBuild)
	}

	rotation, err := cache.ParseRotation(action.GetInput("cache-rotation"))
	if err != nil {
		return errors.Join(err, errRunningBuild)
	}

	// II. Run from the checkout the plan paths are relative to
	if wd := action.GetInput("working-directory"); wd != "" && wd != "." {
		if err := os.Chdir(wd); err != nil {
			return errors.Join(err, errRunningBuild)
		}
	}

	// III. Log in to the registry before any push
	registry := action.GetInput("registry")
	if entry.OutputType == plan.OutputRegistry && registry != "" {
		if err := registryLogin(registry, envs.Actor, action.GetInput("github-token")); err != nil {
			return errors.Join(err, errRunningBuild)
		}
	}

	// IV. Build the entry
	runner := executil.NewRunner()

	b := builder.New(builder.Config{
		Runner:            runner,
		Store:             cache.NewStore(cache.DefaultRoot()),
		Git:               gitutil.New(runner, "."),
		Probe:             builder.RemoteProbe{},
		Stager:            artifact.NewStager(artifact.DefaultStagingRoot()),
		Registry:          registry,
		CharmcraftChannel: action.GetInput("charmcraft-channel"),
		RockcraftChannel:  action.GetInput("rockcraft-channel"),
		Rotation:          rotation,
		Architecture:      architecture(envs.RunnerArch),
		Now:               time.Now,
	})

	action.Group(fmt.Sprintf("Build %s %s", entry.Type, entry.Name))

	result, err := b.Build(ctx, entry)

	action.EndGroup()

	if err != nil {
		return errors.Join(err, errRunningBuild)
	}

	// V. Publish outputs
	return setOutputs(action, result)
}

func setOutputs(action *githubactions.Action, result builder.Result) error {
	manifest, err := result.Manifest.Encode()
	if err != nil {
		return errors.Join(err, errRunningBuild)
	}

	argv := result.Args
	if argv == nil {
		argv = []string{}
	}

	args, err := json.Marshal(argv)
	if err != nil {
		return errors.Join(err, errRunningBuild)
	}

	action.SetOutput("artifact-name", result.ArtifactName)
	action.SetOutput("artifact-path", result.ArtifactPath)
	action.SetOutput("manifest", string(manifest))
	action.SetOutput("cache-key", result.CacheKey)
	action.SetOutput("cache-hit", strconv.FormatBool(result.CacheHit))
	action.SetOutput("args", string(args))

	action.Infof("built %s (cache hit: %t)", result.ArtifactName, result.CacheHit)

	return nil
}

var errRegistryLogin = errors.New("logging in to registry")

// registryLogin authenticates the docker daemon against the registry
// host before pushes. skopeo reads the same credential store, so one
// login covers both push paths. An empty token skips login, which is
// enough for anonymous local registries.
func registryLogin(registry, user, token string) error {
	if token == "" {
		return nil
	}

	host, _, _ := strings.Cut(registry, "/")
	if user == "" {
		user = "github-actions"
	}

	cmd := exec.Command("docker", "login", host, "--username", user, "--password-stdin")
	cmd.Stdin = strings.NewReader(token)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %v", errRegistryLogin, host, err)
	}

	return nil
}

// architecture picks the cache key architecture component.
func architecture(runnerArch string) string {
	if runnerArch != "" {
		return strings.ToLower(runnerArch)
	}

	return runtime.GOARCH
}

// ----------------------------------------------------- ENVS ------------------------------------------------------- //

// Envs holds the runner environment consumed by the build tool.
type Envs struct {
	// RunnerArch is the architecture label GitHub assigns the runner.
	// Empty falls back to the binary's own architecture.
	RunnerArch string `env:"RUNNER_ARCH"`
	// Actor is the username behind the workflow run, used as the
	// registry login user.
	Actor string `env:"GITHUB_ACTOR"`
}

// ----------------------------------------------------- PRINT HELPERS ----------------------------------------------- //

const usage = `USAGE

    build [--mcp]

Action inputs (INPUT_* environment variables):
    build-plan            string    One build plan entry as JSON (required).
    working-directory     string    Checkout to run the build from (default: current directory).
    charmcraft-channel    string    Snap channel to install charmcraft from.
    rockcraft-channel     string    Snap channel to install rockcraft from.
    registry              string    Image registry prefix for registry-type entries.
    cache-rotation        string    Image cache lifetime: daily, weekly or monthly (default: weekly).
    github-token          string    Registry password for pushes. Empty skips docker login.

Environment variables:
    RUNNER_ARCH     Architecture component of cache keys (default: the binary's own).
    GITHUB_ACTOR    Registry login user (default: github-actions).

Action outputs:
    artifact-name    Artifact name the build output is staged under.
    artifact-path    Staged directory for the upload step.
    manifest         The build manifest as JSON.
    cache-key        Cache key for the workflow's cache step.
    cache-hit        Whether the image cache served this build.
    args             The exact pack/build argv used, as a JSON array.

Modes:
    --mcp    Serve the build tools over MCP stdio instead of running once.
`

func printSuccess() {
	_, _ = fmt.Fprintln(os.Stdout, "✅ Build completed")
}

func printFailure(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "❌ Error building plan entry\n%s\n", err.Error())
}
