package ports

import "go.trai.ch/pie/internal/core/domain"

// LockfileManager persists resolution graphs.
//
//go:generate go run go.uber.org/mock/mockgen -source=lockfile.go -destination=mocks/mock_lockfile.go -package=mocks
type LockfileManager interface {
	// Load reads the lockfile at path.
	// Returns nil, nil if the file does not exist or was written by another schema version.
	Load(path string) (*domain.LockRecord, error)

	// Stage writes graph beside path without replacing the current lockfile.
	Stage(path string, graph *domain.ResolutionGraph) (StagedLockfile, error)

	// Matches reports whether record was produced for exactly the given root specifiers.
	Matches(record *domain.LockRecord, specs []domain.VersionSpecifier) bool
}

// StagedLockfile is a fully written lockfile waiting to replace the current one.
type StagedLockfile interface {
	// Commit renames the staged file over the lockfile path.
	Commit() error

	// Discard removes the staged file. It is a no-op after Commit.
	Discard()
}
