package fs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/pie/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.TreeHasher = (*Hasher)(nil)

// Entry kinds written into the tree digest.
const (
	kindDir     byte = 'd'
	kindFile    byte = 'f'
	kindSymlink byte = 'l'
)

// Hasher fingerprints directory trees.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return hasher.Sum64(), nil
}

// HashTree computes a digest over the structure and contents of root. Every
// entry contributes its relative path, its kind, and its permission bits.
// Files add their content hash and symbolic links add their target, so two
// trees hash equal exactly when they look the same to a reader. A missing
// root hashes like an empty tree.
func (h *Hasher) HashTree(root string) (string, error) {
	hasher := xxhash.New()

	if _, err := os.Lstat(root); os.IsNotExist(err) {
		return fmt.Sprintf("%016x", hasher.Sum64()), nil
	}

	var walkErr error
	for entry := range h.walker.Walk(root, &walkErr) {
		if err := h.hashEntry(entry, hasher); err != nil {
			return "", err
		}
	}
	if walkErr != nil {
		return "", zerr.With(zerr.Wrap(walkErr, "failed to walk tree"), "root", root)
	}

	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}

func (h *Hasher) hashEntry(entry Entry, hasher *xxhash.Digest) error {
	info, err := entry.Dir.Info()
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to stat entry"), "path", entry.Abs)
	}

	_, _ = hasher.WriteString(entry.Path)
	_, _ = hasher.Write([]byte{0})

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		target, err := os.Readlink(entry.Abs)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to read symlink"), "path", entry.Abs)
		}
		_, _ = hasher.Write([]byte{kindSymlink})
		_, _ = hasher.WriteString(target)
	case mode.IsDir():
		_, _ = hasher.Write([]byte{kindDir})
	default:
		_, _ = hasher.Write([]byte{kindFile})
		if err := binary.Write(hasher, binary.LittleEndian, uint32(mode.Perm())); err != nil {
			return zerr.Wrap(err, "failed to write mode to digest")
		}
		sum, err := h.ComputeFileHash(entry.Abs)
		if err != nil {
			return err
		}
		if err := binary.Write(hasher, binary.LittleEndian, sum); err != nil {
			return zerr.Wrap(err, "failed to write hash to digest")
		}
	}
	_, _ = hasher.Write([]byte{0})
	return nil
}
