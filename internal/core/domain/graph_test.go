package domain_test

import (
	"errors"
	"testing"

	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/zerr"
)

func meta(name, version string) domain.VersionMetadata {
	return domain.VersionMetadata{
		Name:    domain.MustParsePackageName(name),
		Version: version,
	}
}

func TestResolutionGraph_AddNodeDeduplicates(t *testing.T) {
	g := domain.NewResolutionGraph()

	first, created := g.AddNode(meta("lodash", "4.17.21"))
	if !created {
		t.Fatal("expected first AddNode to create a node")
	}

	second, created := g.AddNode(meta("lodash", "4.17.21"))
	if created {
		t.Error("expected second AddNode for the same version to reuse the node")
	}
	if first != second {
		t.Errorf("expected same node ID, got %d and %d", first, second)
	}

	other, created := g.AddNode(meta("lodash", "3.10.1"))
	if !created || other == first {
		t.Error("expected a distinct node for a different version of the same name")
	}

	if g.Len() != 2 {
		t.Errorf("expected 2 nodes, got %d", g.Len())
	}
}

func TestResolutionGraph_Cycle(t *testing.T) {
	g := domain.NewResolutionGraph()
	a, _ := g.AddNode(meta("a", "1.0.0"))
	b, _ := g.AddNode(meta("b", "1.0.0"))

	if err := g.AddEdge(a, domain.Edge{Name: "b", Constraint: "^1.0.0", Target: b}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddEdge(b, domain.Edge{Name: "a", Constraint: "^1.0.0", Target: a}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := g.Validate(); err != nil {
		t.Fatalf("cycles must be representable, got %v", err)
	}

	nodeA, _ := g.Node(a)
	if len(nodeA.Dependencies) != 1 || nodeA.Dependencies[0].Target != b {
		t.Errorf("expected a -> b edge, got %+v", nodeA.Dependencies)
	}
}

func TestResolutionGraph_AddEdgeIgnoresDuplicateName(t *testing.T) {
	g := domain.NewResolutionGraph()
	a, _ := g.AddNode(meta("a", "1.0.0"))
	b1, _ := g.AddNode(meta("b", "1.0.0"))
	b2, _ := g.AddNode(meta("b", "2.0.0"))

	_ = g.AddEdge(a, domain.Edge{Name: "b", Constraint: "^1", Target: b1})
	_ = g.AddEdge(a, domain.Edge{Name: "b", Constraint: "^2", Target: b2})

	node, _ := g.Node(a)
	if len(node.Dependencies) != 1 || node.Dependencies[0].Target != b1 {
		t.Errorf("expected first edge to win, got %+v", node.Dependencies)
	}
}

func TestResolutionGraph_UnknownNode(t *testing.T) {
	g := domain.NewResolutionGraph()
	a, _ := g.AddNode(meta("a", "1.0.0"))

	err := g.AddEdge(a, domain.Edge{Name: "b", Target: domain.NodeID(42)})
	if !errors.Is(err, domain.ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}

	zErr, ok := err.(*zerr.Error)
	if !ok {
		t.Fatalf("expected *zerr.Error, got %T", err)
	}
	if node, ok := zErr.Metadata()["node"].(int); !ok || node != 42 {
		t.Errorf("expected metadata node=42, got %v", zErr.Metadata()["node"])
	}

	if err := g.AddRoot(domain.NewSpecifier("b", ""), domain.NodeID(-1)); !errors.Is(err, domain.ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode for root, got %v", err)
	}
}

func TestResolutionGraph_SortedAndRoots(t *testing.T) {
	g := domain.NewResolutionGraph()
	z, _ := g.AddNode(meta("zeta", "1.0.0"))
	_, _ = g.AddNode(meta("@scope/alpha", "2.0.0"))
	_, _ = g.AddNode(meta("beta", "1.0.0"))

	spec := domain.NewSpecifier("zeta", "^1.0.0")
	if err := g.AddRoot(spec, z); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sorted := g.Sorted()
	want := []string{"@scope/alpha@2.0.0", "beta@1.0.0", "zeta@1.0.0"}
	for i, node := range sorted {
		if node.Key() != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], node.Key())
		}
	}

	roots := g.Roots()
	if len(roots) != 1 || roots[0].Specifier != spec || roots[0].Target != z {
		t.Errorf("unexpected roots: %+v", roots)
	}
	if specs := g.RootSpecifiers(); len(specs) != 1 || specs[0] != spec {
		t.Errorf("unexpected root specifiers: %+v", specs)
	}
}

func TestResolutionGraph_NodeReturnsCopy(t *testing.T) {
	g := domain.NewResolutionGraph()
	a, _ := g.AddNode(meta("a", "1.0.0"))
	b, _ := g.AddNode(meta("b", "1.0.0"))
	_ = g.AddEdge(a, domain.Edge{Name: "b", Target: b})

	node, _ := g.Node(a)
	node.Dependencies[0].Target = a

	again, _ := g.Node(a)
	if again.Dependencies[0].Target != b {
		t.Error("mutating a returned node must not change the graph")
	}
}
