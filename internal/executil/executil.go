// Package executil runs the external CLIs this toolkit orchestrates
// (charmcraft, rockcraft, docker, skopeo, git). Components depend on the
// Runner interface so tests can substitute canned tool output.
package executil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Input describes one command invocation.
type Input struct {
	// Bin is the executable to run.
	Bin string
	// Args are the command arguments.
	Args []string
	// Dir is the working directory (optional).
	Dir string
	// Env variables merged over the system environment, highest
	// precedence last-writer-wins per key.
	Env map[string]string
	// Stream mirrors the command's output to the current process's
	// stdout/stderr while capturing it. Build tools stream so CI logs
	// stay live; probes like git rev-parse capture quietly.
	Stream bool
}

// Output is the captured result of a completed command.
type Output struct {
	Stdout string
	Stderr string
}

// Runner executes commands. The process-backed implementation is
// CmdRunner; tests use a recording fake.
type Runner interface {
	Run(ctx context.Context, input Input) (Output, error)
}

// CmdRunner runs commands as OS processes.
type CmdRunner struct {
	// Out and ErrOut receive streamed output. They default to
	// os.Stdout/os.Stderr; MCP mode points both at stderr to keep the
	// JSON-RPC stream clean.
	Out    io.Writer
	ErrOut io.Writer
}

var _ Runner = &CmdRunner{}

// NewRunner returns a CmdRunner wired to the process's std streams.
func NewRunner() *CmdRunner {
	return &CmdRunner{Out: os.Stdout, ErrOut: os.Stderr}
}

// NewQuietRunner returns a CmdRunner that streams everything to stderr.
func NewQuietRunner() *CmdRunner {
	return &CmdRunner{Out: os.Stderr, ErrOut: os.Stderr}
}

// Run executes the command described by input. The returned error carries
// the command line and captured stderr so CI failures are diagnosable
// from the job log alone.
func (r *CmdRunner) Run(ctx context.Context, input Input) (Output, error) {
	cmd := exec.CommandContext(ctx, input.Bin, input.Args...)

	if input.Dir != "" {
		cmd.Dir = input.Dir
	}

	// Merge environment variables: system environment first, explicit
	// vars appended so they take precedence.
	env := os.Environ()
	for key, value := range input.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	if input.Stream {
		out, errOut := r.Out, r.ErrOut
		if out == nil {
			out = os.Stdout
		}
		if errOut == nil {
			errOut = os.Stderr
		}
		cmd.Stdout = io.MultiWriter(out, &stdout)
		cmd.Stderr = io.MultiWriter(errOut, &stderr)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	output := Output{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		return output, fmt.Errorf("running %q: %w%s",
			CommandLine(input), err, stderrSuffix(output.Stderr, input.Stream))
	}

	return output, nil
}

// CommandLine renders an input as the command line it runs, for logs and
// error messages.
func CommandLine(input Input) string {
	return strings.TrimSpace(input.Bin + " " + strings.Join(input.Args, " "))
}

// stderrSuffix appends captured stderr to error messages when it was not
// already visible on the console.
func stderrSuffix(stderr string, streamed bool) string {
	trimmed := strings.TrimSpace(stderr)
	if streamed || trimmed == "" {
		return ""
	}
	return ": " + trimmed
}
