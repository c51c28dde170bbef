package ports

import (
	"context"

	"go.trai.ch/pie/internal/core/domain"
)

// Fetcher ensures the tarball of a package version is present in the content store.
//
//go:generate go run go.uber.org/mock/mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Fetch downloads, verifies, and stores the tarball described by meta.
	// Concurrent calls for the same digest share one download.
	Fetch(ctx context.Context, meta domain.VersionMetadata) (*domain.StoreEntry, error)
}
