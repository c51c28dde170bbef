package ports

import (
	"context"
	"io"

	"go.trai.ch/pie/internal/core/domain"
)

// ContentStore is the digest-keyed store of extracted package trees.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ContentStore interface {
	// Contains reports whether an entry for the digest exists.
	Contains(integrity domain.Integrity) bool

	// Get returns the entry for the digest.
	// Returns nil, nil if not found.
	Get(integrity domain.Integrity) (*domain.StoreEntry, error)

	// Put extracts the gzip compressed tarball read from r under the digest.
	// Putting a digest that already exists returns the existing entry.
	Put(ctx context.Context, integrity domain.Integrity, r io.Reader) (*domain.StoreEntry, error)

	// Root returns the store root directory.
	Root() string

	// TempDir returns the staging directory used for downloads and extraction.
	TempDir() string
}
