package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/charmci/charmci/internal/executil"
)

// CannedResult is what a FakeRunner returns for a stubbed command.
type CannedResult struct {
	Output executil.Output
	Err    error
}

// FakeRunner implements executil.Runner with canned responses, recording
// every invocation. Stubs match on command-line prefix so a test can stub
// "git rev-parse" once and cover all its argument variants; the longest
// matching prefix wins. Unstubbed commands succeed with empty output.
type FakeRunner struct {
	mu      sync.Mutex
	calls   []executil.Input
	results map[string]CannedResult
}

var _ executil.Runner = &FakeRunner{}

// NewFakeRunner creates an empty fake.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{results: make(map[string]CannedResult)}
}

// Stub makes commands starting with prefix return the given stdout.
func (f *FakeRunner) Stub(prefix, stdout string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[prefix] = CannedResult{Output: executil.Output{Stdout: stdout}}
	return f
}

// StubError makes commands starting with prefix fail.
func (f *FakeRunner) StubError(prefix string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[prefix] = CannedResult{Err: err}
	return f
}

// Run records the invocation and replays the longest matching stub.
func (f *FakeRunner) Run(_ context.Context, input executil.Input) (executil.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, input)

	line := executil.CommandLine(input)
	best := ""
	for prefix := range f.results {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return executil.Output{}, nil
	}

	result := f.results[best]
	return result.Output, result.Err
}

// Calls returns the recorded invocations in order.
func (f *FakeRunner) Calls() []executil.Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]executil.Input(nil), f.calls...)
}

// CommandLines returns the recorded invocations rendered as command lines.
func (f *FakeRunner) CommandLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	lines := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		lines = append(lines, executil.CommandLine(call))
	}
	return lines
}

// CallsMatching returns the recorded command lines starting with prefix.
func (f *FakeRunner) CallsMatching(prefix string) []string {
	out := []string{}
	for _, line := range f.CommandLines() {
		if strings.HasPrefix(line, prefix) {
			out = append(out, line)
		}
	}
	return out
}
