package builder

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
)

// RegistryProbe answers whether an image reference is still present. The
// cache consults it before trusting a recorded manifest: the registry can
// be wiped independently of the manifest store.
type RegistryProbe interface {
	Exists(ctx context.Context, ref string) (bool, error)
}

// RemoteProbe checks with a HEAD request against the registry. Localhost
// registries are contacted over plain HTTP.
type RemoteProbe struct{}

var _ RegistryProbe = RemoteProbe{}

func (RemoteProbe) Exists(ctx context.Context, ref string) (bool, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return false, err
	}

	if _, err := remote.Head(parsed, remote.WithContext(ctx)); err != nil {
		var terr *transport.Error
		if errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound {
			return false, nil
		}

		return false, err
	}

	return true, nil
}
