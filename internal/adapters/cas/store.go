// Package cas implements the content addressable package store.
package cas

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store implements ports.ContentStore on the local filesystem. Entries are
// extracted package trees keyed by integrity digest:
//
//	<root>/v1/<algorithm>/<hex[0:2]>/<hex[2:]>/
//
// Entries become visible through an atomic rename from <root>/tmp, so
// several processes may share one store.
type Store struct {
	root    string
	tempDir string
}

// NewStore opens the store at root, creating its directories when needed.
func NewStore(root string) (*Store, error) {
	cleanRoot := filepath.Clean(root)
	s := &Store{
		root:    cleanRoot,
		tempDir: filepath.Join(cleanRoot, domain.StoreTempDirName),
	}

	for _, dir := range []string{filepath.Join(cleanRoot, domain.StoreLayoutVersion), s.tempDir} {
		if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
			return nil, zerr.With(domain.WithCause(domain.ErrStoreCreateFailed, err), "path", dir)
		}
	}
	return s, nil
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// TempDir returns the staging directory.
func (s *Store) TempDir() string {
	return s.tempDir
}

// Contains reports whether an entry for the digest exists.
func (s *Store) Contains(integrity domain.Integrity) bool {
	info, err := os.Stat(s.entryPath(integrity))
	return err == nil && info.IsDir()
}

// Get returns the entry for the digest, or nil when absent.
func (s *Store) Get(integrity domain.Integrity) (*domain.StoreEntry, error) {
	path := s.entryPath(integrity)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to stat store entry"), "path", path)
	}
	if !info.IsDir() {
		return nil, zerr.With(zerr.New("store entry is not a directory"), "path", path)
	}
	return &domain.StoreEntry{Integrity: integrity, Path: path}, nil
}

// Put extracts the gzip compressed tarball read from r and publishes it under
// the digest. The caller is responsible for having verified the digest. If
// the entry exists already the stream is drained and the existing entry is
// returned.
func (s *Store) Put(ctx context.Context, integrity domain.Integrity, r io.Reader) (*domain.StoreEntry, error) {
	if integrity.IsZero() {
		return nil, zerr.Wrap(domain.ErrInvalidIntegrity, "store entries need a digest")
	}

	target := s.entryPath(integrity)
	if s.Contains(integrity) {
		_, _ = io.Copy(io.Discard, r)
		return &domain.StoreEntry{Integrity: integrity, Path: target}, nil
	}

	staging, err := os.MkdirTemp(s.tempDir, "extract-*")
	if err != nil {
		return nil, zerr.With(domain.WithCause(domain.ErrExtractionFailed, err), "integrity", integrity.String())
	}

	if err := extract(ctx, r, staging); err != nil {
		_ = os.RemoveAll(staging)
		return nil, zerr.With(err, "integrity", integrity.String())
	}

	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		_ = os.RemoveAll(staging)
		return nil, zerr.With(domain.WithCause(domain.ErrExtractionFailed, err), "integrity", integrity.String())
	}

	if err := os.Rename(staging, target); err != nil {
		_ = os.RemoveAll(staging)
		// Another process published the same digest first.
		if s.Contains(integrity) {
			return &domain.StoreEntry{Integrity: integrity, Path: target}, nil
		}
		return nil, zerr.With(domain.WithCause(domain.ErrExtractionFailed, err), "integrity", integrity.String())
	}

	return &domain.StoreEntry{Integrity: integrity, Path: target}, nil
}

func (s *Store) entryPath(integrity domain.Integrity) string {
	hex := integrity.Hex()
	return filepath.Join(s.root, domain.StoreLayoutVersion, string(integrity.Algorithm), hex[:2], hex[2:])
}
