package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmci/charmci/internal/cli"
	"github.com/charmci/charmci/internal/spread"
)

const Name = "spread-task"

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

var (
	errGeneratingTask = errors.New("generating spread task")
	errInvalidArgs    = errors.New("invalid arguments")
)

// run extracts the command blocks of a tutorial document and writes them
// as a spread task.
func run() error {
	// I. Parse positional arguments
	tutorial, output, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Print(usage + "\n")

		return errors.Join(err, errGeneratingTask)
	}

	// II. Extract the tutorial's command blocks
	commands, err := spread.ExtractCommands(tutorial)
	if err != nil {
		return errors.Join(err, errGeneratingTask)
	}

	// III. Write the task file
	path, err := spread.WriteTask(commands, output)
	if err != nil {
		return errors.Join(err, errGeneratingTask)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Wrote %s (%d command blocks)\n", path, len(commands))

	return nil
}

// parseArgs splits the positional arguments from the flag tokens the
// bootstrap layer consumes. The output path defaults to task.yaml in the
// current directory.
func parseArgs(args []string) (tutorial, output string, err error) {
	paths := make([]string, 0, 2)

	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}

		paths = append(paths, arg)
	}

	switch len(paths) {
	case 1:
		return paths[0], spread.TaskFileName, nil
	case 2:
		return paths[0], paths[1], nil
	default:
		return "", "", fmt.Errorf("%w: want <tutorial> [<output>]", errInvalidArgs)
	}
}

// ----------------------------------------------------- PRINT HELPERS ----------------------------------------------- //

const usage = `USAGE

    spread-task <tutorial> [<output>]

Arguments:
    tutorial    Markdown (.md, .markdown) or reStructuredText (.rst, .rest) tutorial file.
    output      Task file or directory to write into (default: task.yaml).
                A directory receives a task.yaml inside it.

The tutorial's fenced code blocks and SPREAD comment blocks become the
task's execute script, in document order.
`

func printSuccess() {
	_, _ = fmt.Fprintln(os.Stdout, "✅ Spread task generated")
}

func printFailure(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "❌ Error generating spread task\n%s\n", err.Error())
}
