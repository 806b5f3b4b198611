// Package charm reads the subset of charmcraft.yaml, metadata.yaml and
// rockcraft.yaml that build planning and publishing need.
package charm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// Resource type values used in charm descriptors.
const (
	ResourceTypeFile     = "file"
	ResourceTypeOCIImage = "oci-image"
)

// localMarker flags resources that are attached manually rather than
// built by CI.
const localMarker = "(local)"

// Resource is a named slot a file or image artifact is uploaded to fill.
type Resource struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	// Filename is set for file resources that CI builds and attaches.
	Filename string `json:"filename,omitempty"`
}

// Local reports whether the resource is marked as locally attached and
// therefore excluded from build planning.
func (r Resource) Local() bool {
	return strings.Contains(r.Description, localMarker)
}

// Project is the planning view of a charm: its name and declared
// resources, read from charmcraft.yaml with metadata.yaml as fallback.
type Project struct {
	Name      string              `json:"name,omitempty"`
	Resources map[string]Resource `json:"resources,omitempty"`
}

// Rock is the subset of rockcraft.yaml the planner needs.
type Rock struct {
	Name string `json:"name"`
}

// MetadataFile is the companion descriptor consulted when charmcraft.yaml
// does not carry a name or resources itself.
const MetadataFile = "metadata.yaml"

var (
	errReadingCharmProject = errors.New("reading charm project")
	errReadingRockProject  = errors.New("reading rock project")
	errNoCharmName         = errors.New("charm has no resolvable name")
	errNoRockName          = errors.New("rock has no name")
)

// ParseProject unmarshals charm descriptor bytes. It accepts both
// charmcraft.yaml and metadata.yaml content, and the expanded output of
// charmcraft expand-extensions.
func ParseProject(data []byte) (Project, error) {
	out := Project{} //nolint:exhaustruct // unmarshal
	if err := yaml.Unmarshal(data, &out); err != nil {
		return Project{}, errors.Join(err, errReadingCharmProject)
	}
	return out, nil
}

// ReadProject reads the charm descriptor at path. Missing name or
// resources fall back to a sibling metadata.yaml. The returned project
// always has a name; a charm without one is an error naming the path.
func ReadProject(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Project{}, errors.Join(err, errReadingCharmProject)
	}

	project, err := ParseProject(data)
	if err != nil {
		return Project{}, err
	}

	if project.Name == "" || len(project.Resources) == 0 {
		metadata, err := readMetadataFallback(filepath.Join(filepath.Dir(path), MetadataFile))
		if err != nil {
			return Project{}, err
		}
		if project.Name == "" {
			project.Name = metadata.Name
		}
		if len(project.Resources) == 0 {
			project.Resources = metadata.Resources
		}
	}

	if project.Name == "" {
		return Project{}, fmt.Errorf("%w: %s", errNoCharmName, path)
	}

	return project, nil
}

// readMetadataFallback reads metadata.yaml if present. A missing file is
// not an error; the caller decides whether the merged result is complete.
func readMetadataFallback(path string) (Project, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Project{}, nil
	}
	if err != nil {
		return Project{}, errors.Join(err, errReadingCharmProject)
	}
	return ParseProject(data)
}

// FileResources returns the resources CI must build and attach: file
// typed, carrying a filename, and not marked (local). Iteration order is
// not defined; callers sort if they need determinism.
func (p Project) FileResources() map[string]Resource {
	out := make(map[string]Resource)
	for name, resource := range p.Resources {
		if resource.Type != ResourceTypeFile {
			continue
		}
		if resource.Filename == "" || resource.Local() {
			continue
		}
		out[name] = resource
	}
	return out
}

// ResourcesOfType returns the names of declared resources of the given
// type, (local) ones included: publishing needs the full required set.
func (p Project) ResourcesOfType(resourceType string) []string {
	out := make([]string, 0, len(p.Resources))
	for name, resource := range p.Resources {
		if resource.Type == resourceType {
			out = append(out, name)
		}
	}
	return out
}

// ReadRock reads the rock descriptor at path.
func ReadRock(path string) (Rock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rock{}, errors.Join(err, errReadingRockProject)
	}

	out := Rock{} //nolint:exhaustruct // unmarshal
	if err := yaml.Unmarshal(data, &out); err != nil {
		return Rock{}, errors.Join(err, errReadingRockProject)
	}
	if out.Name == "" {
		return Rock{}, fmt.Errorf("%w: %s", errNoRockName, path)
	}

	return out, nil
}
