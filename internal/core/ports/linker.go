package ports

import (
	"context"

	"go.trai.ch/pie/internal/core/domain"
)

// Linker projects a resolved graph into a project's node_modules directory.
//
//go:generate go run go.uber.org/mock/mockgen -source=linker.go -destination=mocks/mock_linker.go -package=mocks
type Linker interface {
	// Link replaces the dependency tree of projectDir with one built from graph.
	// entries must hold a store entry for every node of graph. On failure the
	// previous tree is left in place.
	Link(ctx context.Context, projectDir string, graph *domain.ResolutionGraph, entries map[domain.NodeID]*domain.StoreEntry) error
}
