// Package artifact moves files in and out of the hosted artifact store.
// Uploads are staged on disk for the surrounding composite action's
// upload step to pick up; downloads go through the REST zip endpoint.
package artifact

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

var errStagingArtifact = errors.New("staging artifact")

// DefaultStagingRoot resolves where outbound artifacts are staged. The
// staging area is ephemeral, so the runner temp directory is enough.
func DefaultStagingRoot() string {
	if tmp := os.Getenv("RUNNER_TEMP"); tmp != "" {
		return filepath.Join(tmp, "charmci-artifacts")
	}

	return filepath.Join(os.TempDir(), "charmci-artifacts")
}

// Stager lays out one directory per artifact name. The directory path is
// what the upload step receives as its path input.
type Stager struct {
	root string
}

func NewStager(root string) *Stager {
	return &Stager{root: root}
}

// Dir returns the staging directory for name, creating it if needed.
func (s *Stager) Dir(name string) (string, error) {
	dir := filepath.Join(s.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Join(err, errStagingArtifact)
	}

	return dir, nil
}

// Add copies files into the staging directory for name. Files land flat
// under their base names, which is how the artifact zip presents them on
// the download side.
func (s *Stager) Add(name string, paths ...string) error {
	dir, err := s.Dir(name)
	if err != nil {
		return err
	}

	for _, path := range paths {
		if err := copyFile(path, filepath.Join(dir, filepath.Base(path))); err != nil {
			return errors.Join(err, errStagingArtifact)
		}
	}

	return nil
}

// Write places raw bytes into the staging directory for name under
// filename and returns the written path.
func (s *Stager) Write(name, filename string, data []byte) (string, error) {
	dir, err := s.Dir(name)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Join(err, errStagingArtifact)
	}

	return path, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()

		return err
	}

	return out.Close()
}
