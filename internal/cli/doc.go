// Package cli provides the shared bootstrap for charmci tool binaries.
//
// Every binary under cmd/ is a thin main() delegating to Bootstrap,
// which handles:
//   - version information from ldflags (--version, -v, version)
//   - usage text (--help, -h, help)
//   - MCP server mode (--mcp) for tools that expose one
//   - success and failure handlers plus exit codes
//
// Example usage:
//
//	package main
//
//	import "github.com/charmci/charmci/internal/cli"
//
//	// Set via ldflags.
//	var (
//	    Version        = "dev"
//	    CommitSHA      = "unknown"
//	    BuildTimestamp = "unknown"
//	)
//
//	func main() {
//	    cli.Bootstrap(cli.Config{
//	        Name:           "get-plan",
//	        Usage:          usage,
//	        Version:        Version,
//	        CommitSHA:      CommitSHA,
//	        BuildTimestamp: BuildTimestamp,
//	        RunCLI:         runCLI,
//	        FailureHandler: printFailure,
//	    })
//	}
package cli
