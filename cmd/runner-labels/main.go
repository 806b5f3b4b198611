package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sethvargo/go-githubactions"

	"github.com/charmci/charmci/internal/cli"
	"github.com/charmci/charmci/internal/runnerlabels"
)

const Name = "runner-labels"

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

var errConvertingLabels = errors.New("converting runner labels")

// run translates GitHub-hosted runner labels to the series labels the
// runner charm assigns its machines.
func run() error {
	action := githubactions.New()

	// I. Parse the labels input
	labels, err := runnerlabels.Parse(action.GetInput("labels"))
	if err != nil {
		return errors.Join(err, errConvertingLabels)
	}

	// II. Convert and publish
	converted := runnerlabels.Convert(labels)

	data, err := json.Marshal(converted)
	if err != nil {
		return errors.Join(err, errConvertingLabels)
	}

	action.SetOutput("labels", string(data))

	action.Infof("converted %d labels", len(converted))

	return nil
}

// ----------------------------------------------------- PRINT HELPERS ----------------------------------------------- //

const usage = `USAGE

    runner-labels

Action inputs (INPUT_* environment variables):
    labels    string    Runner labels as a JSON array or a comma separated list.

Action outputs:
    labels    Converted labels as a JSON array.
`

func printSuccess() {
	_, _ = fmt.Fprintln(os.Stdout, "✅ Runner labels converted")
}

func printFailure(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "❌ Error converting runner labels\n%s\n", err.Error())
}
