// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/pie/internal/core/domain"
)

// RegistryClient retrieves package metadata from an npm compatible registry.
//
//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=mocks/mock_registry.go -package=mocks
type RegistryClient interface {
	// FetchPackageMetadata returns every published version and dist-tag of name.
	//
	// It returns domain.ErrPackageNotFound when the registry does not know the
	// name, domain.ErrRegistryUnavailable when the registry cannot be reached
	// after retries, and domain.ErrMalformedResponse when the document does not
	// convert into strict metadata.
	FetchPackageMetadata(ctx context.Context, name domain.PackageName) (*domain.PackageMetadata, error)
}
