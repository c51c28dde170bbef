// Package linker projects a resolved graph into a project's node_modules tree.
//
// Every package is materialized once under node_modules/.pie/<key>/node_modules/<name>
// and sees exactly its own dependencies as sibling symlinks. Only the requested
// roots are visible at the top of node_modules.
package linker

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/pie/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Linker = (*Linker)(nil)

// Linker implements ports.Linker with an isolated, symlinked layout.
type Linker struct {
	logger ports.Logger
}

// New creates a new Linker.
func New(log ports.Logger) *Linker {
	return &Linker{logger: log}
}

// DirKey returns the directory name used for a package inside the virtual store.
func DirKey(name domain.PackageName, version string) string {
	return strings.ReplaceAll(domain.PackageKey(name, version), "/", "+")
}

// Link builds a complete node_modules tree for graph in a staging directory
// next to projectDir and swaps it in. Any failure leaves the previous tree in
// place.
func (l *Linker) Link(
	ctx context.Context,
	projectDir string,
	graph *domain.ResolutionGraph,
	entries map[domain.NodeID]*domain.StoreEntry,
) error {
	if err := os.MkdirAll(projectDir, domain.DirPerm); err != nil {
		return linkErr(err, projectDir)
	}

	staging := filepath.Join(projectDir, ".pie-staging-"+uuid.NewString())
	if err := l.build(ctx, staging, graph, entries); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}

	if err := l.swap(projectDir, staging); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	return nil
}

func (l *Linker) build(
	ctx context.Context,
	modules string,
	graph *domain.ResolutionGraph,
	entries map[domain.NodeID]*domain.StoreEntry,
) error {
	virtual := filepath.Join(modules, domain.VirtualStoreDirName)
	if err := os.MkdirAll(virtual, domain.DirPerm); err != nil {
		return linkErr(err, virtual)
	}

	for node := range graph.Nodes() {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, ok := entries[node.ID]
		if !ok || entry == nil {
			return zerr.With(zerr.Wrap(domain.ErrLinkFailed, "no store entry for package"), "package", node.Key())
		}

		dir := packageDir(virtual, node.Name, node.Version)
		if err := materialize(entry.Path, dir); err != nil {
			return zerr.With(err, "package", node.Key())
		}
	}

	for node := range graph.Nodes() {
		for _, edge := range node.Dependencies {
			if edge.Name == node.Name {
				// A package depending on its own name would shadow itself.
				continue
			}
			dep, ok := graph.Node(edge.Target)
			if !ok {
				return zerr.With(zerr.Wrap(domain.ErrLinkFailed, "dangling dependency edge"), "package", node.Key())
			}

			link := filepath.Join(virtual, DirKey(node.Name, node.Version), domain.ModulesDirName, filepath.FromSlash(edge.Name.String()))
			if err := symlink(packageDir(virtual, dep.Name, dep.Version), link); err != nil {
				return zerr.With(err, "package", node.Key())
			}
		}
	}

	seen := make(map[domain.PackageName]string)
	for _, root := range graph.Roots() {
		node, ok := graph.Node(root.Target)
		if !ok {
			return zerr.With(zerr.Wrap(domain.ErrLinkFailed, "dangling root"), "specifier", root.Specifier.String())
		}
		if prev, dup := seen[node.Name]; dup {
			if prev != node.Version {
				l.logger.Warn("skipping root that collides with an earlier root of the same name",
					"specifier", root.Specifier.String(), "linked", domain.PackageKey(node.Name, prev))
			}
			continue
		}
		seen[node.Name] = node.Version

		link := filepath.Join(modules, filepath.FromSlash(node.Name.String()))
		if err := symlink(packageDir(virtual, node.Name, node.Version), link); err != nil {
			return zerr.With(err, "specifier", root.Specifier.String())
		}
	}
	return nil
}

// swap replaces projectDir/node_modules with staging. The previous tree is
// moved aside first and restored when the final rename fails.
func (l *Linker) swap(projectDir, staging string) error {
	modules := domain.ModulesPath(projectDir)

	backup := ""
	if _, err := os.Lstat(modules); err == nil {
		backup = filepath.Join(projectDir, ".pie-old-"+uuid.NewString())
		if err := os.Rename(modules, backup); err != nil {
			return linkErr(err, modules)
		}
	} else if !os.IsNotExist(err) {
		return linkErr(err, modules)
	}

	if err := os.Rename(staging, modules); err != nil {
		if backup != "" {
			if restoreErr := os.Rename(backup, modules); restoreErr != nil {
				l.logger.Warn("failed to restore previous node_modules", "backup", backup, "error", restoreErr)
			}
		}
		return linkErr(err, modules)
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			l.logger.Warn("failed to remove previous node_modules", "path", backup, "error", err)
		}
	}
	return nil
}

func packageDir(virtual string, name domain.PackageName, version string) string {
	return filepath.Join(virtual, DirKey(name, version), domain.ModulesDirName, filepath.FromSlash(name.String()))
}

// symlink creates link pointing at target through a path relative to the
// link's directory, so the tree stays valid when the project moves.
func symlink(target, link string) error {
	dir := filepath.Dir(link)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return linkErr(err, dir)
	}
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return linkErr(err, link)
	}
	if err := os.Symlink(rel, link); err != nil {
		return linkErr(err, link)
	}
	return nil
}

// materialize reproduces the store entry at src under dst, hard-linking
// regular files and copying them when a hard link is not possible.
func materialize(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return linkErr(err, path)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return linkErr(err, path)
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return linkErr(err, target)
			}
			return nil
		case d.Type().IsRegular():
			if err := os.Link(path, target); err == nil {
				return nil
			}
			return copyFile(path, target)
		default:
			return nil
		}
	})
}

func copyFile(src, dst string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return linkErr(err, src)
	}

	in, err := os.Open(src) //nolint:gosec // src is inside the content store
	if err != nil {
		return linkErr(err, src)
	}
	defer in.Close() //nolint:errcheck // read-only

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm()) //nolint:gosec // dst is inside the staging tree
	if err != nil {
		return linkErr(err, dst)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = linkErr(cerr, dst)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return linkErr(err, dst)
	}
	return nil
}

func linkErr(err error, path string) error {
	if errors.Is(err, domain.ErrLinkFailed) {
		return err
	}
	return zerr.With(domain.WithCause(domain.ErrLinkFailed, err), "path", path)
}
