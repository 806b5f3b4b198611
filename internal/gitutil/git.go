package gitutil

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/charmci/charmci/internal/executil"
)

// Git answers tree-identity questions about a checkout. Plan resolution
// matches workflow runs by tree id, and registry image tags are derived
// from the subtree id of the built directory, so identical sources map to
// identical tags across runs.
type Git struct {
	run executil.Runner
	dir string
}

// New returns a Git bound to a repository checkout.
func New(run executil.Runner, dir string) *Git {
	return &Git{run: run, dir: dir}
}

// revParse runs git rev-parse with one argument and returns the trimmed
// object id.
func (g *Git) revParse(ctx context.Context, arg string) (string, error) {
	out, err := g.run.Run(ctx, executil.Input{
		Bin:  "git",
		Args: []string{"rev-parse", arg},
		Dir:  g.dir,
	})
	if err != nil {
		return "", err
	}

	id := strings.TrimSpace(out.Stdout)
	if id == "" {
		return "", fmt.Errorf("git rev-parse %s returned nothing", arg)
	}
	return id, nil
}

// HeadSHA returns the commit id of HEAD.
func (g *Git) HeadSHA(ctx context.Context) (string, error) {
	return g.revParse(ctx, "HEAD")
}

// TreeID returns the tree object id of HEAD for the given directory:
// the root tree for "." and the subtree id otherwise. Two commits with
// identical content under dir share the same id.
func (g *Git) TreeID(ctx context.Context, dir string) (string, error) {
	return g.TreeIDAt(ctx, "HEAD", dir)
}

// TreeIDAt returns the tree object id of the given revision for dir.
func (g *Git) TreeIDAt(ctx context.Context, revision, dir string) (string, error) {
	if IsRoot(dir) {
		return g.revParse(ctx, revision+"^{tree}")
	}
	return g.revParse(ctx, fmt.Sprintf("%s:%s", revision, path.Clean(dir)))
}

// HasCommit reports whether the given commit object exists locally.
// Shallow checkouts lack older commits; callers fall back to other
// matching strategies when this is false.
func (g *Git) HasCommit(ctx context.Context, sha string) bool {
	_, err := g.run.Run(ctx, executil.Input{
		Bin:  "git",
		Args: []string{"cat-file", "-e", sha + "^{commit}"},
		Dir:  g.dir,
	})
	return err == nil
}

// IsRoot reports whether dir denotes the repository root.
func IsRoot(dir string) bool {
	cleaned := path.Clean(strings.TrimSpace(dir))
	return cleaned == "." || cleaned == "/" || cleaned == ""
}
