package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/charmci/charmci/internal/version"
)

// Config wires one tool binary into the shared entry point.
type Config struct {
	// Name is the tool name as invoked by a workflow step, e.g. "plan"
	// or "get-plan".
	Name string

	// Usage is the text printed for --help.
	Usage string

	// Version information, set via ldflags by the release build.
	Version        string
	CommitSHA      string
	BuildTimestamp string

	// RunCLI executes the tool.
	RunCLI func() error

	// RunMCP serves the tool over MCP when --mcp is passed. Tools
	// without an MCP surface leave it nil.
	RunMCP func() error

	// SuccessHandler runs after RunCLI returns nil.
	SuccessHandler func()

	// FailureHandler receives the error RunCLI returned.
	FailureHandler func(error)
}

// Bootstrap is the shared entry point of every tool binary. It handles
// version and help flags, MCP server mode, and exit codes.
//
// This function calls os.Exit and never returns.
func Bootstrap(cfg Config) {
	os.Exit(run(cfg, os.Args[1:]))
}

func run(cfg Config, args []string) int {
	info := version.New(cfg.Name)
	info.Version = cfg.Version
	info.CommitSHA = cfg.CommitSHA
	info.BuildTimestamp = cfg.BuildTimestamp

	for _, arg := range args {
		switch arg {
		case "version", "--version", "-v":
			info.Print()

			return 0
		case "help", "--help", "-h":
			fmt.Println(cfg.Usage)

			return 0
		}
	}

	for _, arg := range args {
		if arg != "--mcp" {
			continue
		}

		if cfg.RunMCP == nil {
			log.Printf("MCP mode is not supported by %s", cfg.Name)

			return 1
		}

		if err := cfg.RunMCP(); err != nil {
			log.Printf("MCP server error: %v", err)

			return 1
		}

		return 0
	}

	if err := cfg.RunCLI(); err != nil {
		if cfg.FailureHandler != nil {
			cfg.FailureHandler(err)
		}

		return 1
	}

	if cfg.SuccessHandler != nil {
		cfg.SuccessHandler()
	}

	return 0
}
