// Package scanner turns a build run into the list of vulnerability scan
// tasks its container outputs need, merging shared ignore ids into each
// package's .trivyignore along the way.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmci/charmci/internal/artifact"
	"github.com/charmci/charmci/pkg/plan"
)

const ignoreFileName = ".trivyignore"

var errPlanningScans = errors.New("planning scans")

// Config carries one scan planning invocation's settings.
type Config struct {
	Plan plan.Plan
	// RunID is the workflow run whose artifacts hold the built outputs.
	RunID int64
	// SharedIgnores are vulnerability ids every package's scan skips.
	SharedIgnores []string
}

// Scanner derives scan entries from built container artifacts.
type Scanner struct {
	artifacts *artifact.Client
}

func New(artifacts *artifact.Client) *Scanner {
	return &Scanner{artifacts: artifacts}
}

// Generate downloads every container build's manifest and expands it
// into one scan entry per produced file or image reference.
func (s *Scanner) Generate(ctx context.Context, cfg Config) ([]plan.ScanEntry, error) {
	downloadDir, err := os.MkdirTemp("", "charmci-scan-")
	if err != nil {
		return nil, errors.Join(err, errPlanningScans)
	}
	defer os.RemoveAll(downloadDir)

	out := []plan.ScanEntry{}

	for _, entry := range cfg.Plan.Build {
		if !entry.Type.ContainerImage() {
			continue
		}

		manifest, _, err := s.artifacts.DownloadManifest(
			ctx, cfg.RunID, entry.Output, filepath.Join(downloadDir, entry.Output))
		if err != nil {
			return nil, errors.Join(err, errPlanningScans)
		}

		ignores, err := ignoreFile(entry, cfg.Plan.WorkingDirectory, cfg.SharedIgnores)
		if err != nil {
			return nil, errors.Join(err, errPlanningScans)
		}

		for _, file := range manifest.Files {
			out = append(out, plan.ScanEntry{
				Artifact:      entry.Output,
				File:          file,
				Dir:           entry.SourceDirectory,
				CommonIgnores: ignores,
			})
		}
		for _, image := range manifest.Images {
			out = append(out, plan.ScanEntry{
				Artifact:      entry.Output,
				Image:         image,
				Dir:           entry.SourceDirectory,
				CommonIgnores: ignores,
			})
		}
	}

	return out, nil
}

// ParseIgnores splits a comma or newline separated list of vulnerability
// ids, dropping empty fields.
func ParseIgnores(raw string) []string {
	out := []string{}
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	}) {
		if id := strings.TrimSpace(field); id != "" {
			out = append(out, id)
		}
	}

	return out
}

// ignoreFile locates the entry's ignore file and merges the shared ids
// into it. When no file exists anywhere up the tree and shared ids are
// present, one is created next to the entry's descriptor. Returns the
// resulting path, or "" when the entry has no ignore file at all.
func ignoreFile(entry plan.BuildEntry, wd string, shared []string) (string, error) {
	found := findIgnoreFile(entry.SourceDirectory, wd)
	if found == "" {
		if len(shared) == 0 {
			return "", nil
		}
		found = filepath.Join(filepath.FromSlash(entry.SourceDirectory), ignoreFileName)
	}

	if err := mergeIgnores(found, shared); err != nil {
		return "", err
	}

	return found, nil
}

// findIgnoreFile walks from the entry's source directory up to the
// plan's working directory, returning the first ignore file found.
func findIgnoreFile(srcDir, wd string) string {
	dir := path.Clean(srcDir)
	stop := path.Clean(wd)

	for {
		candidate := filepath.Join(filepath.FromSlash(dir), ignoreFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		if dir == stop {
			return ""
		}

		parent := path.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeIgnores appends the shared ids not already present, preserving
// the file's existing content and comments.
func mergeIgnores(ignorePath string, shared []string) error {
	existing, err := os.ReadFile(ignorePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	present := map[string]bool{}
	for _, line := range strings.Split(string(existing), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	missing := []string{}
	for _, id := range shared {
		if id == "" || present[id] {
			continue
		}
		present[id] = true
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return nil
	}

	content := string(existing)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += strings.Join(missing, "\n") + "\n"

	return os.WriteFile(ignorePath, []byte(content), 0o644)
}
