package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmci/charmci/pkg/plan"
)

var errNoManifest = errors.New("artifact carries no manifest")

// DownloadManifest fetches the named output artifact into destDir and
// decodes the build manifest staged inside it. It returns the manifest
// and the directory holding the downloaded files.
func (c *Client) DownloadManifest(
	ctx context.Context, runID int64, name, destDir string,
) (plan.Manifest, string, error) {
	paths, err := c.DownloadNamed(ctx, runID, name, destDir)
	if err != nil {
		return plan.Manifest{}, "", err
	}

	for _, path := range paths {
		if filepath.Base(path) != plan.ManifestFileName {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return plan.Manifest{}, "", errors.Join(err, errDownloadingArtifact)
		}

		manifest, err := plan.DecodeManifest(data)
		if err != nil {
			return plan.Manifest{}, "", err
		}

		return manifest, filepath.Dir(path), nil
	}

	return plan.Manifest{}, "", fmt.Errorf("%w: %q has no %s",
		errNoManifest, name, plan.ManifestFileName)
}
