// Package fs provides file system adapters for walking and hashing directory trees.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"
)

// Entry is a single item found while walking a tree.
type Entry struct {
	// Path is relative to the walked root, using forward slashes.
	Path string
	// Abs is the path as seen on disk.
	Abs string
	// Dir describes the entry. Symbolic links are reported, never followed.
	Dir fs.DirEntry
}

// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// Walk yields every entry below root in lexical order. Nothing is skipped:
// version control directories shipped inside a package are part of it. The
// root itself is not yielded. A walk error stops the iteration and is
// returned through errp when errp is non-nil.
func (w *Walker) Walk(root string, errp *error) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if !yield(Entry{Path: filepath.ToSlash(rel), Abs: path, Dir: d}) {
				return filepath.SkipAll
			}
			return nil
		})
		if errp != nil {
			*errp = err
		}
	}
}
