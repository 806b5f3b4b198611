package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/charmci/charmci/internal/allure"
	"github.com/charmci/charmci/internal/cli"
)

const Name = "allure-results"

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

var errAddingDefaults = errors.New("adding default allure results")

// run fills the actual results directory with the default result of
// every test that produced none, so the report lists it as unknown
// instead of dropping it.
func run() error {
	// I. Parse flags
	fs := flag.NewFlagSet(Name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	actualDir := fs.String("allure-results-dir", "",
		"directory holding the run's actual test results")
	defaultDir := fs.String("allure-collection-default-results-dir", "",
		"directory holding a default result for every known test")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return errors.Join(err, errAddingDefaults)
	}

	if *actualDir == "" || *defaultDir == "" {
		fmt.Print(usage + "\n")

		return fmt.Errorf("%w: both result directories are required", errAddingDefaults)
	}

	// II. Move the defaults whose tests produced no result
	moved, err := allure.Merge(*actualDir, *defaultDir)
	if err != nil {
		return errors.Join(err, errAddingDefaults)
	}

	for _, name := range moved {
		_, _ = fmt.Fprintf(os.Stdout, "✅ Added default result: %s\n", name)
	}

	return nil
}

// ----------------------------------------------------- PRINT HELPERS ----------------------------------------------- //

const usage = `USAGE

    allure-results --allure-results-dir <dir> --allure-collection-default-results-dir <dir>

Flags:
    --allure-results-dir                       Directory holding the run's actual test results.
    --allure-collection-default-results-dir    Directory holding a default result for every known test.

Every *-result.json in the default directory whose testCaseId has no
result in the actual directory is moved there, so the report shows the
test as unknown instead of omitting it.
`

func printSuccess() {
	_, _ = fmt.Fprintln(os.Stdout, "✅ Default allure results merged")
}

func printFailure(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "❌ Error adding default allure results\n%s\n", err.Error())
}
