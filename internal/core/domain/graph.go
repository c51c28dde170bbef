// Package domain contains the core domain models of the package manager:
// package names, specifiers, integrity digests and the resolution graph.
package domain

import (
	"iter"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// NodeID addresses a ResolutionNode inside its ResolutionGraph.
type NodeID int

// Edge is a direct dependency of a node: the requested constraint and the
// node it was pinned to.
type Edge struct {
	Name       PackageName
	Constraint string
	Target     NodeID
}

// ResolutionNode is a pinned (name, version) together with its outgoing edges.
type ResolutionNode struct {
	ID           NodeID
	Name         PackageName
	Version      string
	TarballURL   string
	Integrity    Integrity
	Dependencies []Edge
}

// Key returns the "name@version" identifier.
func (n ResolutionNode) Key() string {
	return PackageKey(n.Name, n.Version)
}

// Root is a requested specifier and the node it resolved to.
type Root struct {
	Specifier VersionSpecifier
	Target    NodeID
}

// ResolutionGraph stores nodes in an arena indexed by NodeID. Edges refer to
// nodes by ID, so dependency cycles are representable. At most one node
// exists per (name, version).
type ResolutionGraph struct {
	nodes []ResolutionNode
	index map[InternedString]NodeID
	roots []Root
}

// NewResolutionGraph creates an empty graph.
func NewResolutionGraph() *ResolutionGraph {
	return &ResolutionGraph{
		index: make(map[InternedString]NodeID),
	}
}

// AddNode inserts a node for meta unless one already exists for the same
// name and version. It returns the node's ID and whether it was created.
func (g *ResolutionGraph) AddNode(meta VersionMetadata) (NodeID, bool) {
	key := NewInternedString(meta.Key())
	if id, ok := g.index[key]; ok {
		return id, false
	}

	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, ResolutionNode{
		ID:         id,
		Name:       meta.Name,
		Version:    meta.Version,
		TarballURL: meta.TarballURL,
		Integrity:  meta.Integrity,
	})
	g.index[key] = id
	return id, true
}

// Lookup returns the node for name at version.
func (g *ResolutionGraph) Lookup(name PackageName, version string) (NodeID, bool) {
	id, ok := g.index[NewInternedString(PackageKey(name, version))]
	return id, ok
}

// AddEdge records a dependency of from. A node has at most one edge per
// dependency name; later edges with the same name are ignored.
func (g *ResolutionGraph) AddEdge(from NodeID, edge Edge) error {
	if !g.valid(from) {
		return zerr.With(zerr.Wrap(ErrUnknownNode, "edge source"), "node", int(from))
	}
	if !g.valid(edge.Target) {
		return zerr.With(zerr.Wrap(ErrUnknownNode, "edge target"), "node", int(edge.Target))
	}

	node := &g.nodes[from]
	for _, existing := range node.Dependencies {
		if existing.Name == edge.Name {
			return nil
		}
	}
	node.Dependencies = append(node.Dependencies, edge)
	slices.SortFunc(node.Dependencies, func(a, b Edge) int {
		return strings.Compare(string(a.Name), string(b.Name))
	})
	return nil
}

// AddRoot records a requested specifier and the node it resolved to.
func (g *ResolutionGraph) AddRoot(spec VersionSpecifier, target NodeID) error {
	if !g.valid(target) {
		return zerr.With(zerr.Wrap(ErrUnknownNode, "root target"), "node", int(target))
	}
	g.roots = append(g.roots, Root{Specifier: spec, Target: target})
	return nil
}

// Node returns a copy of the node with the given ID.
func (g *ResolutionGraph) Node(id NodeID) (ResolutionNode, bool) {
	if !g.valid(id) {
		return ResolutionNode{}, false
	}
	node := g.nodes[id]
	node.Dependencies = slices.Clone(node.Dependencies)
	return node, true
}

// Nodes yields every node in insertion order.
func (g *ResolutionGraph) Nodes() iter.Seq[ResolutionNode] {
	return func(yield func(ResolutionNode) bool) {
		for i := range g.nodes {
			node, _ := g.Node(NodeID(i))
			if !yield(node) {
				return
			}
		}
	}
}

// Sorted returns every node ordered by key, independent of discovery order.
func (g *ResolutionGraph) Sorted() []ResolutionNode {
	out := slices.Collect(g.Nodes())
	slices.SortFunc(out, func(a, b ResolutionNode) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return out
}

// Roots returns the root requests in the order they were added.
func (g *ResolutionGraph) Roots() []Root {
	return slices.Clone(g.roots)
}

// RootSpecifiers returns only the specifiers of the roots.
func (g *ResolutionGraph) RootSpecifiers() []VersionSpecifier {
	specs := make([]VersionSpecifier, 0, len(g.roots))
	for _, r := range g.roots {
		specs = append(specs, r.Specifier)
	}
	return specs
}

// Len returns the number of nodes.
func (g *ResolutionGraph) Len() int {
	return len(g.nodes)
}

// Validate checks that every edge and root points at an existing node and
// that no (name, version) pair appears twice.
func (g *ResolutionGraph) Validate() error {
	seen := make(map[string]NodeID, len(g.nodes))
	for _, node := range g.nodes {
		if prev, dup := seen[node.Key()]; dup {
			err := zerr.With(zerr.Wrap(ErrDuplicateNode, "graph validation"), "package", node.Key())
			return zerr.With(err, "first", int(prev))
		}
		seen[node.Key()] = node.ID
		for _, edge := range node.Dependencies {
			if !g.valid(edge.Target) {
				return zerr.With(zerr.With(zerr.Wrap(ErrUnknownNode, "dangling edge"), "node", int(edge.Target)), "from", node.Key())
			}
		}
	}
	for _, root := range g.roots {
		if !g.valid(root.Target) {
			return zerr.With(zerr.With(zerr.Wrap(ErrUnknownNode, "dangling root"), "node", int(root.Target)), "root", root.Specifier.String())
		}
	}
	return nil
}

func (g *ResolutionGraph) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}
