// Package snaputil installs the snap-packaged packaging tools on CI
// runners.
package snaputil

import (
	"context"
	"errors"
	"strings"

	"github.com/charmci/charmci/internal/executil"
)

// Snap names of the tools this toolkit installs on demand.
const (
	Charmcraft = "charmcraft"
	Rockcraft  = "rockcraft"
)

var errInstallingSnap = errors.New("installing snap")

// Install installs the named classic snap at the requested channel,
// falling back to refresh when the runner image ships it preinstalled.
// An empty channel keeps the store default.
func Install(ctx context.Context, run executil.Runner, snapName, channel string) error {
	install := []string{"snap", "install", snapName, "--classic"}
	if channel != "" {
		install = append(install, "--channel="+channel)
	}

	out, err := run.Run(ctx, executil.Input{Bin: "sudo", Args: install, Stream: true})
	if err == nil {
		return nil
	}

	if !strings.Contains(out.Stderr+err.Error(), "already installed") {
		return errors.Join(err, errInstallingSnap)
	}

	refresh := []string{"snap", "refresh", snapName, "--classic"}
	if channel != "" {
		refresh = append(refresh, "--channel="+channel)
	}

	if _, err := run.Run(ctx, executil.Input{Bin: "sudo", Args: refresh, Stream: true}); err != nil {
		return errors.Join(err, errInstallingSnap)
	}

	return nil
}
