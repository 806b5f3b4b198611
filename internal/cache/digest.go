package cache

import (
	"encoding/binary"
	"errors"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

var errHashingTree = errors.New("hashing source tree")

// TreeDigest computes a content digest of the files under dir: relative
// slash paths, the file kind and executable bit, and the file bytes, in
// lexical walk order. Every field is length-prefixed so adjacent fields
// cannot collide. `.git` directories are skipped, which makes fresh and
// incremental checkouts of the same tree hash identically.
func TreeDigest(dir string) (digest.Digest, error) {
	digester := digest.SHA256.Digester()
	h := digester.Hash()

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" && path != dir {
				return filepath.SkipDir
			}

			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		return hashEntry(h, filepath.ToSlash(rel), path, d)
	})
	if err != nil {
		return "", errors.Join(err, errHashingTree)
	}

	return digester.Digest(), nil
}

func hashEntry(h hash.Hash, rel, path string, d fs.DirEntry) error {
	writeField(h, []byte(rel))

	if d.Type()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}

		writeField(h, []byte("l"))
		writeField(h, []byte(target))

		return nil
	}

	if !d.Type().IsRegular() {
		// Sockets and pipes carry no content identity.
		return nil
	}

	info, err := d.Info()
	if err != nil {
		return err
	}

	kind := "f"
	if info.Mode()&0o111 != 0 {
		kind = "x"
	}

	writeField(h, []byte(kind))

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var size [8]byte

	binary.BigEndian.PutUint64(size[:], uint64(info.Size()))
	h.Write(size[:])

	if _, err := io.Copy(h, f); err != nil {
		return err
	}

	return nil
}

func writeField(h hash.Hash, data []byte) {
	var length [8]byte

	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	h.Write(length[:])
	h.Write(data)
}
