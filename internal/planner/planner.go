// Package planner discovers buildable artifacts in a working tree and
// assembles the run's build plan.
package planner

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/charmci/charmci/pkg/charm"
	"github.com/charmci/charmci/pkg/plan"
)

const (
	charmPattern  = "**/charmcraft.yaml"
	rockPattern   = "**/rockcraft.yaml"
	dockerPattern = "**/*.Dockerfile"

	dockerSuffix = ".Dockerfile"
	testsSegment = "tests"
)

var errGeneratingPlan = errors.New("generating build plan")

// Config selects what to discover and how to name the outputs.
type Config struct {
	// WorkingDirectory is the tree to search. Defaults to ".".
	WorkingDirectory string
	// Identifier distinguishes concurrent plans within one run. Optional.
	Identifier string
	// UploadImages selects registry output for rock and docker entries.
	UploadImages bool
	// GeneratedID overrides the minted plan id. Empty mints a fresh one.
	GeneratedID string
}

// Result carries the generated plan together with its artifact identity.
type Result struct {
	Plan         plan.Plan
	GeneratedID  string
	ArtifactName string
}

// Generate recursively discovers charm, rock, Dockerfile and declared
// file-resource builds under the working directory and returns the plan.
// Discovery is read only; anything under a tests directory is ignored.
func Generate(cfg Config) (Result, error) {
	wd := cfg.WorkingDirectory
	if wd == "" {
		wd = "."
	}

	id := cfg.GeneratedID
	if id == "" {
		id = plan.NewGeneratedID(time.Now())
	}

	info, err := os.Stat(wd)
	if err != nil {
		return Result{}, errors.Join(err, errGeneratingPlan)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s is not a directory", errGeneratingPlan, wd)
	}

	imageOutput := plan.OutputFile
	if cfg.UploadImages {
		imageOutput = plan.OutputRegistry
	}

	var entries []plan.BuildEntry

	// i. Charms, each followed by the file resources it declares.
	charmFiles, err := discover(wd, charmPattern)
	if err != nil {
		return Result{}, err
	}

	for _, rel := range charmFiles {
		project, err := charm.ReadProject(filepath.Join(wd, filepath.FromSlash(rel)))
		if err != nil {
			return Result{}, errors.Join(err, errGeneratingPlan)
		}

		srcFile := joinWD(wd, rel)
		srcDir := path.Dir(srcFile)

		entries = append(entries, plan.BuildEntry{
			Type:            plan.TypeCharm,
			Name:            project.Name,
			SourceFile:      srcFile,
			SourceDirectory: srcDir,
			OutputType:      plan.OutputFile,
			Output:          plan.OutputName(id, cfg.Identifier, plan.TypeCharm, project.Name),
		})

		fileResources := project.FileResources()
		for _, name := range sortedKeys(fileResources) {
			entries = append(entries, plan.BuildEntry{
				Type:            plan.TypeFile,
				Name:            name,
				SourceFile:      srcFile,
				SourceDirectory: srcDir,
				BuildTarget:     fileResources[name].Filename,
				OutputType:      plan.OutputFile,
				Output:          plan.OutputName(id, cfg.Identifier, plan.TypeFile, name),
			})
		}
	}

	// ii. Rocks.
	rockFiles, err := discover(wd, rockPattern)
	if err != nil {
		return Result{}, err
	}

	for _, rel := range rockFiles {
		rock, err := charm.ReadRock(filepath.Join(wd, filepath.FromSlash(rel)))
		if err != nil {
			return Result{}, errors.Join(err, errGeneratingPlan)
		}

		srcFile := joinWD(wd, rel)

		entries = append(entries, plan.BuildEntry{
			Type:            plan.TypeRock,
			Name:            rock.Name,
			SourceFile:      srcFile,
			SourceDirectory: path.Dir(srcFile),
			OutputType:      imageOutput,
			Output:          plan.OutputName(id, cfg.Identifier, plan.TypeRock, rock.Name),
		})
	}

	// iii. Plain Dockerfiles, named after their basename.
	dockerFiles, err := discover(wd, dockerPattern)
	if err != nil {
		return Result{}, err
	}

	for _, rel := range dockerFiles {
		name := strings.TrimSuffix(path.Base(rel), dockerSuffix)
		if name == "" {
			return Result{}, fmt.Errorf("%w: %s has no image name", errGeneratingPlan, rel)
		}

		srcFile := joinWD(wd, rel)

		entries = append(entries, plan.BuildEntry{
			Type:            plan.TypeDockerImage,
			Name:            name,
			SourceFile:      srcFile,
			SourceDirectory: path.Dir(srcFile),
			OutputType:      imageOutput,
			Output:          plan.OutputName(id, cfg.Identifier, plan.TypeDockerImage, name),
		})
	}

	p := plan.Plan{
		WorkingDirectory: filepath.ToSlash(wd),
		Build:            entries,
	}

	if err := p.Validate(); err != nil {
		return Result{}, errors.Join(err, errGeneratingPlan)
	}

	return Result{
		Plan:         p,
		GeneratedID:  id,
		ArtifactName: plan.PlanArtifactName(id, cfg.Identifier),
	}, nil
}

// discover globs one manifest pattern under wd, drops tests directories
// and returns sorted slash paths relative to wd.
func discover(wd, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(wd), pattern)
	if err != nil {
		return nil, errors.Join(err, errGeneratingPlan)
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if underTests(m) {
			continue
		}
		out = append(out, m)
	}

	sort.Strings(out)

	return out, nil
}

func underTests(rel string) bool {
	for _, segment := range strings.Split(rel, "/") {
		if segment == testsSegment {
			return true
		}
	}

	return false
}

// joinWD keeps plan paths relative to the process working directory so
// later jobs can run them from the repository root.
func joinWD(wd, rel string) string {
	return path.Join(filepath.ToSlash(wd), rel)
}

func sortedKeys(m map[string]charm.Resource) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
