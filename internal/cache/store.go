// Package cache records manifests of registry image builds keyed by what
// produced them, so an unchanged source tree can skip the build entirely.
// The store itself is a plain directory. Persisting it across workflow
// runs is the job of the surrounding workflow's cache step, which keys on
// the same string this package computes.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/opencontainers/go-digest"
)

const manifestFileName = "manifest.json"

var (
	errReadingCacheEntry = errors.New("reading cache entry")
	errWritingCacheEntry = errors.New("writing cache entry")
)

// Key composes the cache key for a registry image build on the given
// architecture. Identical trees on the same architecture share a key for
// as long as the rotation marker stays the same.
func Key(arch string, tree digest.Digest, marker string) string {
	return fmt.Sprintf("charmci-%s-%s-%s", arch, tree.Encoded(), marker)
}

// Store keeps one build manifest per cache key on the local filesystem.
type Store struct {
	root string
}

// DefaultRoot resolves where cached manifests live: the runner's temp
// directory on CI, the user cache directory otherwise.
func DefaultRoot() string {
	if tmp := os.Getenv("RUNNER_TEMP"); tmp != "" {
		return filepath.Join(tmp, "charmci-cache")
	}

	return filepath.Join(xdg.CacheHome, "charmci")
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

// Get loads the manifest stored under key. The second return is false on
// a miss.
func (s *Store) Get(key string) ([]byte, bool, error) {
	buf, err := os.ReadFile(s.manifestPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Join(err, errReadingCacheEntry)
	}

	return buf, true, nil
}

// Put writes manifest under key, replacing any previous entry, and
// returns the entry directory. The entry is staged in a temporary
// directory and renamed into place so an interrupted write reads as a
// miss rather than a torn manifest.
func (s *Store) Put(key string, manifest []byte) (string, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", errors.Join(err, errWritingCacheEntry)
	}

	tmpDir, err := os.MkdirTemp(s.root, key+".tmp-")
	if err != nil {
		return "", errors.Join(err, errWritingCacheEntry)
	}

	committed := false

	defer func() {
		if !committed {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	if err := os.WriteFile(filepath.Join(tmpDir, manifestFileName), manifest, 0o644); err != nil {
		return "", errors.Join(err, errWritingCacheEntry)
	}

	entryDir := filepath.Join(s.root, key)

	_ = os.RemoveAll(entryDir)

	if err := os.Rename(tmpDir, entryDir); err != nil {
		return "", errors.Join(err, errWritingCacheEntry)
	}

	committed = true

	return entryDir, nil
}

func (s *Store) manifestPath(key string) string {
	return filepath.Join(s.root, key, manifestFileName)
}
