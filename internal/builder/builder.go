// Package builder executes one build plan entry with the packaging tool
// the entry's type calls for, collects what the tool produced, and stages
// a manifest plus the artifacts for upload.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmci/charmci/internal/artifact"
	"github.com/charmci/charmci/internal/cache"
	"github.com/charmci/charmci/internal/executil"
	"github.com/charmci/charmci/internal/gitutil"
	"github.com/charmci/charmci/internal/snaputil"
	"github.com/charmci/charmci/pkg/plan"
)

var (
	errBuildingEntry       = errors.New("building plan entry")
	errNoArtifactsProduced = errors.New("build produced no artifacts")
	errMissingBuildTarget  = errors.New("declared build target was not produced")
)

// Config wires the builder's collaborators and the run's settings.
type Config struct {
	Runner executil.Runner
	Store  *cache.Store
	Git    *gitutil.Git
	Probe  RegistryProbe
	Stager *artifact.Stager

	// Registry is the image registry prefix for pushed builds,
	// e.g. "localhost:32000".
	Registry string
	// CharmcraftChannel and RockcraftChannel select the snap channels the
	// packaging tools are installed from. Empty keeps the snap default.
	CharmcraftChannel string
	RockcraftChannel  string
	// Rotation is the cache lifetime policy for registry image builds.
	Rotation cache.Rotation
	// Architecture distinguishes cache keys between runner architectures.
	Architecture string
	// Now is the clock used for cache rotation markers.
	Now func() time.Time
}

// Builder turns build entries into staged artifacts.
type Builder struct {
	cfg Config
}

func New(cfg Config) *Builder {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Builder{cfg: cfg}
}

// Result describes one completed build: the manifest, where the artifact
// is staged, the exact tool argv used, and the cache outcome for registry
// image builds.
type Result struct {
	Manifest     plan.Manifest
	ArtifactName string
	ArtifactPath string
	Args         []string
	CacheKey     string
	CacheHit     bool
}

// Build dispatches on the entry type. The type set is closed; an entry
// that decoded with an unknown type never gets here, but the dispatch
// still rejects it rather than fall through silently.
func (b *Builder) Build(ctx context.Context, entry plan.BuildEntry) (Result, error) {
	var (
		result Result
		err    error
	)

	switch entry.Type {
	case plan.TypeCharm:
		result, err = b.buildCharm(ctx, entry)
	case plan.TypeRock:
		result, err = b.buildRock(ctx, entry)
	case plan.TypeDockerImage:
		result, err = b.buildDockerImage(ctx, entry)
	case plan.TypeFile:
		result, err = b.buildFile(ctx, entry)
	default:
		return Result{}, fmt.Errorf("%w: unhandled type %q", errBuildingEntry, entry.Type)
	}

	if err != nil {
		return Result{}, errors.Join(err, errBuildingEntry)
	}

	return result, nil
}

func (b *Builder) buildCharm(ctx context.Context, entry plan.BuildEntry) (Result, error) {
	if err := snaputil.Install(ctx, b.cfg.Runner, snaputil.Charmcraft, b.cfg.CharmcraftChannel); err != nil {
		return Result{}, err
	}

	dir := filepath.FromSlash(entry.SourceDirectory)
	args := []string{"pack", "-v"}

	if _, err := b.cfg.Runner.Run(ctx, executil.Input{
		Bin:    "charmcraft",
		Args:   args,
		Dir:    dir,
		Stream: true,
	}); err != nil {
		return Result{}, err
	}

	files, err := glob(dir, "*.charm")
	if err != nil {
		return Result{}, err
	}

	manifest := plan.Manifest{Name: entry.Name, Files: baseNames(files)}

	stagedDir, err := b.stage(entry.Output, manifest, files)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Manifest:     manifest,
		ArtifactName: entry.Output,
		ArtifactPath: stagedDir,
		Args:         append([]string{"charmcraft"}, args...),
	}, nil
}

// buildFile produces a declared file resource. A charm that needs a build
// step ships an executable build-<resource>-resource.sh next to its
// descriptor; otherwise the target must already exist in the tree.
func (b *Builder) buildFile(ctx context.Context, entry plan.BuildEntry) (Result, error) {
	dir := filepath.FromSlash(entry.SourceDirectory)
	script := "build-" + entry.Name + "-resource.sh"

	var args []string

	if info, err := os.Stat(filepath.Join(dir, script)); err == nil && info.Mode()&0o111 != 0 {
		args = []string{"bash", "-xe", script}

		if _, err := b.cfg.Runner.Run(ctx, executil.Input{
			Bin:    "bash",
			Args:   []string{"-xe", script},
			Dir:    dir,
			Stream: true,
		}); err != nil {
			return Result{}, err
		}
	}

	target := filepath.Join(dir, filepath.FromSlash(entry.BuildTarget))
	if _, err := os.Stat(target); err != nil {
		return Result{}, fmt.Errorf("%w: %s", errMissingBuildTarget, entry.BuildTarget)
	}

	manifest := plan.Manifest{Name: entry.Name, Files: []string{filepath.Base(target)}}

	stagedDir, err := b.stage(entry.Output, manifest, []string{target})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Manifest:     manifest,
		ArtifactName: entry.Output,
		ArtifactPath: stagedDir,
		Args:         args,
	}, nil
}

// stage writes the manifest and copies the produced files into the
// staging directory for the artifact name, returning that directory.
func (b *Builder) stage(name string, manifest plan.Manifest, files []string) (string, error) {
	data, err := manifest.Encode()
	if err != nil {
		return "", err
	}

	if _, err := b.cfg.Stager.Write(name, plan.ManifestFileName, data); err != nil {
		return "", err
	}

	if len(files) > 0 {
		if err := b.cfg.Stager.Add(name, files...); err != nil {
			return "", err
		}
	}

	return b.cfg.Stager.Dir(name)
}

func glob(dir, pattern string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s under %s", errNoArtifactsProduced, pattern, dir)
	}

	sort.Strings(files)

	return files, nil
}

func baseNames(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, filepath.Base(p))
	}

	return out
}
