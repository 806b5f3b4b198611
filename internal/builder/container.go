package builder

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmci/charmci/internal/cache"
	"github.com/charmci/charmci/internal/executil"
	"github.com/charmci/charmci/internal/snaputil"
	"github.com/charmci/charmci/pkg/plan"
)

// buildRock packs the rock and either stages the .rock archives or pushes
// them to the registry under a content-addressed tag, cache-guarded.
func (b *Builder) buildRock(ctx context.Context, entry plan.BuildEntry) (Result, error) {
	if entry.OutputType == plan.OutputFile {
		if err := snaputil.Install(ctx, b.cfg.Runner, snaputil.Rockcraft, b.cfg.RockcraftChannel); err != nil {
			return Result{}, err
		}

		rocks, args, err := b.packRock(ctx, entry)
		if err != nil {
			return Result{}, err
		}

		manifest := plan.Manifest{Name: entry.Name, Files: baseNames(rocks)}

		stagedDir, err := b.stage(entry.Output, manifest, rocks)
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

	key, cached, err := b.lookupCache(ctx, entry)
	if err != nil {
		return Result{}, err
	}
	if cached != nil {
		return b.reuse(entry, key, *cached)
	}

	if err := snaputil.Install(ctx, b.cfg.Runner, snaputil.Rockcraft, b.cfg.RockcraftChannel); err != nil {
		return Result{}, err
	}

	rocks, args, err := b.packRock(ctx, entry)
	if err != nil {
		return Result{}, err
	}

	tag, err := b.cfg.Git.TreeID(ctx, entry.SourceDirectory)
	if err != nil {
		return Result{}, err
	}

	ref := b.imageRef(entry.Name, tag)

	for _, rock := range rocks {
		if _, err := b.cfg.Runner.Run(ctx, executil.Input{
			Bin: "rockcraft.skopeo",
			Args: []string{
				"copy", "--dest-tls-verify=false",
				"oci-archive:" + rock, "docker://" + ref,
			},
			Stream: true,
		}); err != nil {
			return Result{}, err
		}
	}

	return b.finishRegistryBuild(entry, key, ref, args)
}

// buildDockerImage builds the Dockerfile and either saves the image as a
// tarball or pushes it to the registry, cache-guarded.
func (b *Builder) buildDockerImage(ctx context.Context, entry plan.BuildEntry) (Result, error) {
	if entry.OutputType == plan.OutputFile {
		tag, err := b.cfg.Git.TreeID(ctx, entry.SourceDirectory)
		if err != nil {
			return Result{}, err
		}

		localRef := entry.Name + ":" + tag

		args, err := b.dockerBuild(ctx, entry, localRef)
		if err != nil {
			return Result{}, err
		}

		stagedDir, err := b.cfg.Stager.Dir(entry.Output)
		if err != nil {
			return Result{}, err
		}

		tarName := entry.Name + ".tar"

		if _, err := b.cfg.Runner.Run(ctx, executil.Input{
			Bin:    "docker",
			Args:   []string{"save", "-o", filepath.Join(stagedDir, tarName), localRef},
			Stream: true,
		}); err != nil {
			return Result{}, err
		}

		manifest := plan.Manifest{Name: entry.Name, Files: []string{tarName}}
		if _, err := b.stage(entry.Output, manifest, nil); err != nil {
			return Result{}, err
		}

		return Result{
			Manifest:     manifest,
			ArtifactName: entry.Output,
			ArtifactPath: stagedDir,
			Args:         args,
		}, nil
	}

	key, cached, err := b.lookupCache(ctx, entry)
	if err != nil {
		return Result{}, err
	}
	if cached != nil {
		return b.reuse(entry, key, *cached)
	}

	tag, err := b.cfg.Git.TreeID(ctx, entry.SourceDirectory)
	if err != nil {
		return Result{}, err
	}

	ref := b.imageRef(entry.Name, tag)

	args, err := b.dockerBuild(ctx, entry, ref)
	if err != nil {
		return Result{}, err
	}

	if _, err := b.cfg.Runner.Run(ctx, executil.Input{
		Bin:    "docker",
		Args:   []string{"push", ref},
		Stream: true,
	}); err != nil {
		return Result{}, err
	}

	return b.finishRegistryBuild(entry, key, ref, args)
}

func (b *Builder) packRock(ctx context.Context, entry plan.BuildEntry) ([]string, []string, error) {
	dir := filepath.FromSlash(entry.SourceDirectory)
	args := []string{"pack", "-v"}

	if _, err := b.cfg.Runner.Run(ctx, executil.Input{
		Bin:    "rockcraft",
		Args:   args,
		Dir:    dir,
		Stream: true,
	}); err != nil {
		return nil, nil, err
	}

	rocks, err := glob(dir, "*.rock")
	if err != nil {
		return nil, nil, err
	}

	return rocks, append([]string{"rockcraft"}, args...), nil
}

func (b *Builder) dockerBuild(ctx context.Context, entry plan.BuildEntry, ref string) ([]string, error) {
	args := []string{
		"build",
		"-f", filepath.FromSlash(entry.SourceFile),
		"-t", ref,
		filepath.FromSlash(entry.SourceDirectory),
	}

	if _, err := b.cfg.Runner.Run(ctx, executil.Input{
		Bin:    "docker",
		Args:   args,
		Stream: true,
	}); err != nil {
		return nil, err
	}

	return append([]string{"docker"}, args...), nil
}

// lookupCache returns the stored manifest for the entry's current source
// tree when every image it records is still present in the registry.
// Torn entries and probe failures read as misses; a miss only costs a
// rebuild.
func (b *Builder) lookupCache(ctx context.Context, entry plan.BuildEntry) (string, *plan.Manifest, error) {
	tree, err := cache.TreeDigest(filepath.FromSlash(entry.SourceDirectory))
	if err != nil {
		return "", nil, err
	}

	key := cache.Key(b.cfg.Architecture, tree, b.cfg.Rotation.Marker(b.cfg.Now()))

	data, ok, err := b.cfg.Store.Get(key)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return key, nil, nil
	}

	manifest, err := plan.DecodeManifest(data)
	if err != nil || len(manifest.Images) == 0 {
		return key, nil, nil
	}

	for _, ref := range manifest.Images {
		exists, err := b.cfg.Probe.Exists(ctx, ref)
		if err != nil || !exists {
			return key, nil, nil
		}
	}

	return key, &manifest, nil
}

// reuse stages the cached manifest as this entry's artifact without
// rebuilding anything.
func (b *Builder) reuse(entry plan.BuildEntry, key string, manifest plan.Manifest) (Result, error) {
	stagedDir, err := b.stage(entry.Output, manifest, nil)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Manifest:     manifest,
		ArtifactName: entry.Output,
		ArtifactPath: stagedDir,
		CacheKey:     key,
		CacheHit:     true,
	}, nil
}

// finishRegistryBuild records the pushed image in the cache store and
// stages the manifest.
func (b *Builder) finishRegistryBuild(entry plan.BuildEntry, key, ref string, args []string) (Result, error) {
	manifest := plan.Manifest{Name: entry.Name, Images: []string{ref}}

	data, err := manifest.Encode()
	if err != nil {
		return Result{}, err
	}

	if _, err := b.cfg.Store.Put(key, data); err != nil {
		return Result{}, err
	}

	stagedDir, err := b.stage(entry.Output, manifest, nil)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Manifest:     manifest,
		ArtifactName: entry.Output,
		ArtifactPath: stagedDir,
		Args:         args,
		CacheKey:     key,
	}, nil
}

func (b *Builder) imageRef(name, tag string) string {
	registry := strings.TrimSuffix(b.cfg.Registry, "/")
	if registry == "" {
		return name + ":" + tag
	}

	return fmt.Sprintf("%s/%s:%s", registry, name, tag)
}
