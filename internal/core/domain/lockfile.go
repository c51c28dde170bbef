package domain

import (
	"maps"
	"slices"

	"go.trai.ch/zerr"
)

// LockSchemaVersion is the lockfile format written by this version of pie.
// Lockfiles carrying any other version are ignored and re-resolved.
const LockSchemaVersion = 1

// LockRecord is the persisted form of a ResolutionGraph.
type LockRecord struct {
	// SchemaVersion is the lockfile format version.
	SchemaVersion int

	// Roots are the requested specifiers in request order, each with the
	// "name@version" key of the package it resolved to.
	Roots []LockedRoot

	// Packages maps "name@version" keys to the pinned package.
	Packages map[string]LockedPackage
}

// LockedRoot is one root request of a LockRecord.
type LockedRoot struct {
	Specifier VersionSpecifier
	Resolved  string
}

// LockedPackage is one pinned package of a LockRecord.
type LockedPackage struct {
	Name       PackageName
	Version    string
	TarballURL string
	Integrity  Integrity

	// Dependencies maps each direct dependency name to its pinned version.
	Dependencies map[PackageName]string
}

// NewLockRecord captures graph in a LockRecord.
func NewLockRecord(g *ResolutionGraph) *LockRecord {
	rec := &LockRecord{
		SchemaVersion: LockSchemaVersion,
		Packages:      make(map[string]LockedPackage, g.Len()),
	}

	for node := range g.Nodes() {
		deps := make(map[PackageName]string, len(node.Dependencies))
		for _, edge := range node.Dependencies {
			target, _ := g.Node(edge.Target)
			deps[edge.Name] = target.Version
		}
		rec.Packages[node.Key()] = LockedPackage{
			Name:         node.Name,
			Version:      node.Version,
			TarballURL:   node.TarballURL,
			Integrity:    node.Integrity,
			Dependencies: deps,
		}
	}

	for _, root := range g.Roots() {
		target, _ := g.Node(root.Target)
		rec.Roots = append(rec.Roots, LockedRoot{Specifier: root.Specifier, Resolved: target.Key()})
	}
	return rec
}

// Graph rebuilds the ResolutionGraph recorded in r. Packages are inserted in
// key order so that node IDs are stable across runs.
func (r *LockRecord) Graph() (*ResolutionGraph, error) {
	g := NewResolutionGraph()
	keys := slices.Sorted(maps.Keys(r.Packages))

	for _, key := range keys {
		pkg := r.Packages[key]
		if PackageKey(pkg.Name, pkg.Version) != key {
			return nil, zerr.With(zerr.Wrap(ErrLockfileMalformed, "package key does not match its name and version"), "key", key)
		}
		g.AddNode(VersionMetadata{
			Name:       pkg.Name,
			Version:    pkg.Version,
			TarballURL: pkg.TarballURL,
			Integrity:  pkg.Integrity,
		})
	}

	for _, key := range keys {
		pkg := r.Packages[key]
		from, _ := g.Lookup(pkg.Name, pkg.Version)
		for _, depName := range slices.Sorted(maps.Keys(pkg.Dependencies)) {
			version := pkg.Dependencies[depName]
			target, ok := g.Lookup(depName, version)
			if !ok {
				err := zerr.With(zerr.Wrap(ErrLockfileMalformed, "dependency missing from lockfile"), "package", key)
				return nil, zerr.With(err, "dependency", PackageKey(depName, version))
			}
			if err := g.AddEdge(from, Edge{Name: depName, Constraint: version, Target: target}); err != nil {
				return nil, err
			}
		}
	}

	for _, root := range r.Roots {
		pkg, ok := r.Packages[root.Resolved]
		if !ok {
			return nil, zerr.With(zerr.Wrap(ErrLockfileMalformed, "root missing from lockfile"), "root", root.Resolved)
		}
		target, _ := g.Lookup(pkg.Name, pkg.Version)
		if err := g.AddRoot(root.Specifier, target); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Matches reports whether the recorded root requests are exactly specs,
// ignoring order.
func (r *LockRecord) Matches(specs []VersionSpecifier) bool {
	if r == nil || len(r.Roots) != len(specs) {
		return false
	}
	recorded := make([]string, 0, len(r.Roots))
	for _, root := range r.Roots {
		recorded = append(recorded, root.Specifier.String())
	}
	requested := make([]string, 0, len(specs))
	for _, spec := range specs {
		requested = append(requested, spec.String())
	}
	slices.Sort(recorded)
	slices.Sort(requested)
	return slices.Equal(recorded, requested)
}

// Specifiers returns the recorded root specifiers in request order.
func (r *LockRecord) Specifiers() []VersionSpecifier {
	specs := make([]VersionSpecifier, 0, len(r.Roots))
	for _, root := range r.Roots {
		specs = append(specs, root.Specifier)
	}
	return specs
}
