package ports

// TreeHasher fingerprints directory trees.
//
//go:generate go run go.uber.org/mock/mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type TreeHasher interface {
	// HashTree returns a hex digest over the relative paths, modes, link
	// targets, and file contents below root. Symlinks are not followed.
	HashTree(root string) (string, error)
}
