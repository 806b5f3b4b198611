package plan

import (
	"encoding/json"
	"fmt"
)

// BuildType identifies what kind of artifact a build entry produces.
// The set of values is closed: anything else is rejected at decode time
// and every dispatch over it must handle all four cases.
type BuildType string

const (
	// TypeCharm is a charm package produced by charmcraft.
	TypeCharm BuildType = "charm"
	// TypeRock is an OCI image produced by rockcraft.
	TypeRock BuildType = "rock"
	// TypeDockerImage is an OCI image produced by docker build.
	TypeDockerImage BuildType = "docker-image"
	// TypeFile is a plain file resource declared by a charm.
	TypeFile BuildType = "file"
)

// BuildTypes lists every valid build type.
var BuildTypes = []BuildType{TypeCharm, TypeRock, TypeDockerImage, TypeFile}

var errInvalidBuildType = fmt.Errorf("build type must be one of %v", BuildTypes)

// Validate returns an error if the build type is not one of the known values.
func (t BuildType) Validate() error {
	switch t {
	case TypeCharm, TypeRock, TypeDockerImage, TypeFile:
		return nil
	default:
		return fmt.Errorf("%w: got %q", errInvalidBuildType, string(t))
	}
}

// ContainerImage reports whether the type builds an OCI image.
func (t BuildType) ContainerImage() bool {
	return t == TypeRock || t == TypeDockerImage
}

// UnmarshalJSON rejects unknown build types so that plans downloaded from
// the artifact service cannot smuggle an unhandled variant past dispatch.
func (t *BuildType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := BuildType(s)
	if err := v.Validate(); err != nil {
		return err
	}
	*t = v
	return nil
}

// OutputType identifies where a build entry's product ends up.
type OutputType string

const (
	// OutputFile uploads the product as a CI artifact.
	OutputFile OutputType = "file"
	// OutputRegistry pushes the product to a container registry.
	OutputRegistry OutputType = "registry"
)

var errInvalidOutputType = fmt.Errorf(
	"output type must be one of [%s %s]", OutputFile, OutputRegistry)

// Validate returns an error if the output type is not one of the known values.
func (t OutputType) Validate() error {
	switch t {
	case OutputFile, OutputRegistry:
		return nil
	default:
		return fmt.Errorf("%w: got %q", errInvalidOutputType, string(t))
	}
}

// UnmarshalJSON rejects unknown output types.
func (t *OutputType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := OutputType(s)
	if err := v.Validate(); err != nil {
		return err
	}
	*t = v
	return nil
}

// BuildEntry is one unit of work in a plan. Entries are created by the
// planner, never mutated, and consumed exactly once by the builder.
//
// Paths are slash separated and relative to the repository root, so an
// entry stays meaningful for jobs running in other workspaces.
type BuildEntry struct {
	// Type of artifact this entry builds.
	Type BuildType `json:"type"`
	// Name of the charm, rock, image or resource.
	Name string `json:"name"`
	// SourceFile is the descriptor the entry was discovered from
	// (charmcraft.yaml, rockcraft.yaml, *.Dockerfile).
	SourceFile string `json:"source_file"`
	// SourceDirectory is the directory the build runs in.
	SourceDirectory string `json:"source_directory"`
	// BuildTarget names the file a "file" entry must produce.
	BuildTarget string `json:"build_target,omitempty"`
	// OutputType selects artifact upload or registry push.
	OutputType OutputType `json:"output_type"`
	// Output is the unique, sanitized artifact name for this entry.
	Output string `json:"output"`
}

// Plan is the declarative list of build tasks discovered for one source
// tree and one workflow run. It is immutable after creation and travels
// between jobs as a JSON artifact.
type Plan struct {
	WorkingDirectory string       `json:"working_directory"`
	Build            []BuildEntry `json:"build"`
}

// PlanFileName is the file a plan is stored under inside its artifact.
const PlanFileName = "plan.json"

// ManifestFileName is the file a build stages its manifest under inside
// the output artifact.
const ManifestFileName = "manifest.json"

// Manifest records what a single build task produced. Exactly one of
// Files and Images is populated: charm and file builds list files, and
// container builds list files or images depending on the output type.
type Manifest struct {
	Name   string   `json:"name"`
	Files  []string `json:"files,omitempty"`
	Images []string `json:"images,omitempty"`
}

// Validate checks the one-of files/images invariant.
func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest name is required")
	}
	if len(m.Files) > 0 && len(m.Images) > 0 {
		return fmt.Errorf("manifest %q declares both files and images", m.Name)
	}
	if len(m.Files) == 0 && len(m.Images) == 0 {
		return fmt.Errorf("manifest %q declares neither files nor images", m.Name)
	}
	return nil
}

// ScanEntry is one unit of vulnerability scanning work derived from a
// built container artifact. Either File or Image is set, never both.
type ScanEntry struct {
	// Artifact is the build output artifact holding the scanned object.
	Artifact string `json:"artifact"`
	// File is a produced file to scan, relative to the artifact root.
	File string `json:"file,omitempty"`
	// Image is a pushed image reference to scan.
	Image string `json:"image,omitempty"`
	// Dir is the directory trivy should run in.
	Dir string `json:"dir"`
	// CommonIgnores is the path of the merged .trivyignore file, or
	// empty when the build has no ignore file and no shared ignores.
	CommonIgnores string `json:"common_ignores"`
}
