// Package publisher uploads the artifacts a build run produced as charm
// resources. It matches built entries against the charm's declared
// resource slots and refuses to upload anything unless every slot is
// covered, so a release never ships with a partial resource set.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/charmci/charmci/internal/artifact"
	"github.com/charmci/charmci/internal/executil"
	"github.com/charmci/charmci/internal/snaputil"
	"github.com/charmci/charmci/pkg/charm"
	"github.com/charmci/charmci/pkg/plan"
)

var (
	errPublishing          = errors.New("publishing charm resources")
	errExpectedOneCharm    = errors.New("plan must contain exactly one charm entry")
	errUnresolvedResources = errors.New("unresolved required resources")
	errNoUploadableProduct = errors.New("artifact lists no uploadable product")
)

// Config carries one publish invocation's settings.
type Config struct {
	Plan plan.Plan
	// RunID is the workflow run whose artifacts hold the built outputs.
	RunID int64
	// CharmDirectory overrides the charm entry's source directory when
	// the caller checked the charm out somewhere else.
	CharmDirectory string
	// ResourceMapping maps a build entry's name to the charm resource it
	// fills, for charms whose resource names differ from the build names.
	ResourceMapping map[string]string
	// CharmcraftChannel selects the charmcraft snap channel.
	CharmcraftChannel string
	// RegistryUser and RegistryPassword authenticate image pulls from
	// the build registry. Empty user skips login.
	RegistryUser     string
	RegistryPassword string
}

// Publisher downloads built artifacts and runs the charmcraft upload
// commands.
type Publisher struct {
	runner    executil.Runner
	artifacts *artifact.Client

	loggedIn       map[string]bool
	rockcraftReady bool
}

func New(runner executil.Runner, artifacts *artifact.Client) *Publisher {
	return &Publisher{
		runner:         runner,
		artifacts:      artifacts,
		loggedIn:       map[string]bool{},
		rockcraftReady: false,
	}
}

// Result reports what was published.
type Result struct {
	// Charms are the local paths of the downloaded charm files.
	Charms []string
	// CharmDirectory is the directory upload commands ran in.
	CharmDirectory string
}

// Publish uploads every required resource of the plan's charm from the
// build run's artifacts.
func (p *Publisher) Publish(ctx context.Context, cfg Config) (Result, error) {
	result, err := p.publish(ctx, cfg)
	if err != nil {
		return Result{}, errors.Join(err, errPublishing)
	}

	return result, nil
}

func (p *Publisher) publish(ctx context.Context, cfg Config) (Result, error) {
	// i. Locate the plan's single charm entry.
	charmEntry, err := findCharmEntry(cfg.Plan)
	if err != nil {
		return Result{}, err
	}

	charmDir := cfg.CharmDirectory
	if charmDir == "" {
		charmDir = filepath.FromSlash(charmEntry.SourceDirectory)
	}

	// ii. Determine the required resource slots.
	if err := snaputil.Install(ctx, p.runner, snaputil.Charmcraft, cfg.CharmcraftChannel); err != nil {
		return Result{}, err
	}

	project, err := p.requiredResources(ctx, charmDir)
	if err != nil {
		return Result{}, err
	}

	imageRequired := toSet(project.ResourcesOfType(charm.ResourceTypeOCIImage))
	fileRequired := project.FileResources()

	// iii. Match build entries against the slots, then verify coverage
	// before downloading or uploading anything.
	images, files := matchCandidates(cfg.Plan, cfg.ResourceMapping, imageRequired, fileRequired)

	if missing := missingResources(imageRequired, fileRequired, images, files); len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %s (resolved %d of %d)",
			errUnresolvedResources, strings.Join(missing, ", "),
			len(images)+len(files), len(imageRequired)+len(fileRequired))
	}

	downloadDir, err := os.MkdirTemp("", "charmci-publish-")
	if err != nil {
		return Result{}, err
	}

	// iv. Download the charm files themselves.
	charms, err := p.downloadCharm(ctx, cfg.RunID, charmEntry, downloadDir)
	if err != nil {
		return Result{}, err
	}

	// v. Upload image resources, then file resources.
	for _, resource := range sortedKeys(images) {
		ref, err := p.resolveImage(ctx, cfg, images[resource], downloadDir)
		if err != nil {
			return Result{}, err
		}
		if err := p.uploadResource(ctx, charmDir, project.Name, resource, "--image="+ref); err != nil {
			return Result{}, err
		}
	}

	for _, resource := range sortedKeys(files) {
		path, err := p.resolveFile(ctx, cfg.RunID, files[resource], downloadDir)
		if err != nil {
			return Result{}, err
		}
		if err := p.uploadResource(ctx, charmDir, project.Name, resource, "--filepath="+path); err != nil {
			return Result{}, err
		}
	}

	return Result{Charms: charms, CharmDirectory: charmDir}, nil
}

func findCharmEntry(p plan.Plan) (plan.BuildEntry, error) {
	found := []plan.BuildEntry{}
	for _, entry := range p.Build {
		if entry.Type == plan.TypeCharm {
			found = append(found, entry)
		}
	}

	if len(found) != 1 {
		return plan.BuildEntry{}, fmt.Errorf("%w: found %d", errExpectedOneCharm, len(found))
	}

	return found[0], nil
}

// requiredResources expands the charm's extensions to obtain the full
// resource set. Charms that do not expand fall back to their descriptor
// files.
func (p *Publisher) requiredResources(ctx context.Context, charmDir string) (charm.Project, error) {
	out, err := p.runner.Run(ctx, executil.Input{
		Bin:  "charmcraft",
		Args: []string{"expand-extensions"},
		Dir:  charmDir,
	})
	if err == nil {
		project, perr := charm.ParseProject([]byte(out.Stdout))
		if perr == nil && project.Name != "" {
			return project, nil
		}
	}

	descriptor := filepath.Join(charmDir, "charmcraft.yaml")
	if _, statErr := os.Stat(descriptor); statErr != nil {
		descriptor = filepath.Join(charmDir, charm.MetadataFile)
	}

	return charm.ReadProject(descriptor)
}

// matchCandidates pairs build entries with the resource slots they fill.
// The mapping table renames entries whose build name differs from the
// resource name; everything else matches by name directly.
func matchCandidates(
	p plan.Plan,
	mapping map[string]string,
	imageRequired map[string]bool,
	fileRequired map[string]charm.Resource,
) (images, files map[string]plan.BuildEntry) {
	images = map[string]plan.BuildEntry{}
	files = map[string]plan.BuildEntry{}

	for _, entry := range p.Build {
		resource := entry.Name
		if mapped, ok := mapping[entry.Name]; ok {
			resource = mapped
		}

		switch entry.Type {
		case plan.TypeRock, plan.TypeDockerImage:
			if imageRequired[resource] {
				images[resource] = entry
			}
		case plan.TypeFile:
			if _, ok := fileRequired[resource]; ok {
				files[resource] = entry
			}
		case plan.TypeCharm:
			// The charm itself is not a resource.
		}
	}

	return images, files
}

func missingResources(
	imageRequired map[string]bool,
	fileRequired map[string]charm.Resource,
	images, files map[string]plan.BuildEntry,
) []string {
	missing := []string{}
	for resource := range imageRequired {
		if _, ok := images[resource]; !ok {
			missing = append(missing, resource)
		}
	}
	for resource := range fileRequired {
		if _, ok := files[resource]; !ok {
			missing = append(missing, resource)
		}
	}

	sort.Strings(missing)

	return missing
}

func (p *Publisher) downloadManifest(
	ctx context.Context, runID int64, entry plan.BuildEntry, root string,
) (plan.Manifest, string, error) {
	return p.artifacts.DownloadManifest(ctx, runID, entry.Output, filepath.Join(root, entry.Output))
}

func (p *Publisher) downloadCharm(
	ctx context.Context, runID int64, entry plan.BuildEntry, root string,
) ([]string, error) {
	manifest, dir, err := p.downloadManifest(ctx, runID, entry, root)
	if err != nil {
		return nil, err
	}

	charms := make([]string, 0, len(manifest.Files))
	for _, file := range manifest.Files {
		charms = append(charms, filepath.Join(dir, file))
	}

	return charms, nil
}

// resolveImage makes the entry's built image available to the local
// docker daemon and returns the reference to upload. Registry builds are
// pulled; file builds are loaded from the downloaded archive.
func (p *Publisher) resolveImage(
	ctx context.Context, cfg Config, entry plan.BuildEntry, root string,
) (string, error) {
	manifest, dir, err := p.downloadManifest(ctx, cfg.RunID, entry, root)
	if err != nil {
		return "", err
	}

	if len(manifest.Images) > 0 {
		ref := manifest.Images[0]

		if err := p.login(ctx, cfg, ref); err != nil {
			return "", err
		}

		if _, err := p.runner.Run(ctx, executil.Input{
			Bin:    "docker",
			Args:   []string{"pull", ref},
			Stream: true,
		}); err != nil {
			return "", err
		}

		return ref, nil
	}

	if len(manifest.Files) == 0 {
		return "", fmt.Errorf("%w: %q", errNoUploadableProduct, entry.Output)
	}

	return p.loadArchive(ctx, manifest, filepath.Join(dir, manifest.Files[0]))
}

// loadArchive imports an image archive into the docker daemon and
// returns the resulting reference.
func (p *Publisher) loadArchive(ctx context.Context, manifest plan.Manifest, path string) (string, error) {
	switch filepath.Ext(path) {
	case ".rock":
		if err := p.ensureRockcraft(ctx); err != nil {
			return "", err
		}

		ref := manifest.Name + ":latest"

		if _, err := p.runner.Run(ctx, executil.Input{
			Bin:    "rockcraft.skopeo",
			Args:   []string{"--insecure-policy", "copy", "oci-archive:" + path, "docker-daemon:" + ref},
			Stream: true,
		}); err != nil {
			return "", err
		}

		return ref, nil
	case ".tar":
		out, err := p.runner.Run(ctx, executil.Input{
			Bin:  "docker",
			Args: []string{"load", "--input", path},
		})
		if err != nil {
			return "", err
		}

		ref := parseLoadedImage(out.Stdout)
		if ref == "" {
			return "", fmt.Errorf("%w: docker load reported no image for %q",
				errNoUploadableProduct, filepath.Base(path))
		}

		return ref, nil
	default:
		return "", fmt.Errorf("%w: cannot import %q as an image",
			errNoUploadableProduct, filepath.Base(path))
	}
}

func (p *Publisher) resolveFile(
	ctx context.Context, runID int64, entry plan.BuildEntry, root string,
) (string, error) {
	manifest, dir, err := p.downloadManifest(ctx, runID, entry, root)
	if err != nil {
		return "", err
	}

	if len(manifest.Files) == 0 {
		return "", fmt.Errorf("%w: %q", errNoUploadableProduct, entry.Output)
	}

	return filepath.Join(dir, manifest.Files[0]), nil
}

// login authenticates the docker daemon against the reference's registry
// once per registry. An empty user means anonymous pulls.
func (p *Publisher) login(ctx context.Context, cfg Config, ref string) error {
	if cfg.RegistryUser == "" {
		return nil
	}

	parsed, err := name.ParseReference(ref)
	if err != nil {
		return err
	}

	registry := parsed.Context().RegistryStr()
	if p.loggedIn[registry] {
		return nil
	}

	if _, err := p.runner.Run(ctx, executil.Input{
		Bin: "docker",
		Args: []string{
			"login", "--username", cfg.RegistryUser, "--password", cfg.RegistryPassword, registry,
		},
	}); err != nil {
		return err
	}

	p.loggedIn[registry] = true

	return nil
}

func (p *Publisher) ensureRockcraft(ctx context.Context) error {
	if p.rockcraftReady {
		return nil
	}

	if err := snaputil.Install(ctx, p.runner, snaputil.Rockcraft, ""); err != nil {
		return err
	}

	p.rockcraftReady = true

	return nil
}

func (p *Publisher) uploadResource(ctx context.Context, charmDir, charmName, resource, value string) error {
	_, err := p.runner.Run(ctx, executil.Input{
		Bin:    "charmcraft",
		Args:   []string{"upload-resource", charmName, resource, value},
		Dir:    charmDir,
		Stream: true,
	})

	return err
}

// parseLoadedImage extracts the reference from docker load output
// ("Loaded image: <ref>").
func parseLoadedImage(stdout string) string {
	for _, line := range strings.Split(stdout, "\n") {
		if ref, ok := strings.CutPrefix(strings.TrimSpace(line), "Loaded image: "); ok {
			return strings.TrimSpace(ref)
		}
	}

	return ""
}

func toSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}

	return out
}

func sortedKeys(m map[string]plan.BuildEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
