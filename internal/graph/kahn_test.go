package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/dbsmedya/metaport/internal/schema"
)

// testGraph builds a graph from explicit nodes and edges. Indexes follow the
// order of the kinds slice.
func testGraph(kinds []schema.Kind, edges []Edge) *Graph {
	g := NewGraph()
	for i, k := range kinds {
		g.AddNode(&Node{Kind: k, Index: i})
	}
	for _, e := range edges {
		g.AddEdge(e.From, e.To)
	}
	return g
}

func TestCalculateInDegrees(t *testing.T) {
	g := testGraph(
		[]schema.Kind{"domain", "data_product", "table"},
		[]Edge{
			{From: "domain", To: "data_product"},
			{From: "domain", To: "table"},
			{From: "data_product", To: "table"},
		},
	)

	inDegrees := g.CalculateInDegrees()

	if inDegrees["domain"] != 0 {
		t.Errorf("expected domain in-degree 0, got %d", inDegrees["domain"])
	}
	if inDegrees["data_product"] != 1 {
		t.Errorf("expected data_product in-degree 1, got %d", inDegrees["data_product"])
	}
	if inDegrees["table"] != 2 {
		t.Errorf("expected table in-degree 2, got %d", inDegrees["table"])
	}
}

func TestTopologicalSort_ReferencedKindsFirst(t *testing.T) {
	g := testGraph(
		[]schema.Kind{"domain", "data_product", "database", "table"},
		[]Edge{
			{From: "domain", To: "data_product"},
			{From: "database", To: "table"},
			{From: "data_product", To: "table"},
		},
	)

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("expected 4 kinds, got %d", len(order))
	}

	pos := make(map[schema.Kind]int)
	for i, k := range order {
		pos[k] = i
	}
	for _, e := range g.AllEdges() {
		if pos[e.From] > pos[e.To] {
			t.Errorf("%s ordered after %s, which references it", e.From, e.To)
		}
	}
}

func TestTopologicalSort_DeclarationOrderTieBreak(t *testing.T) {
	// No edges at all: the ordering must fall back to declaration order.
	g := testGraph([]schema.Kind{"policy", "domain", "glossary", "classification"}, nil)

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []schema.Kind{"policy", "domain", "glossary", "classification"}
	for i, k := range want {
		if order[i] != k {
			t.Errorf("position %d: expected %s, got %s", i, k, order[i])
		}
	}
}

func TestTopologicalSort_Deterministic(t *testing.T) {
	g := testGraph(
		[]schema.Kind{"team", "user", "domain", "data_product", "table"},
		[]Edge{
			{From: "team", To: "user"},
			{From: "domain", To: "data_product"},
			{From: "data_product", To: "table"},
		},
	)

	first, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := g.TopologicalSort()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d: ordering not reproducible at position %d (%s vs %s)",
					i, j, again[j], first[j])
			}
		}
	}
}

func TestTopologicalSort_TwoKindCycle(t *testing.T) {
	g := testGraph(
		[]schema.Kind{"a", "b"},
		[]Edge{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
		},
	)

	_, err := g.TopologicalSort()
	if err == nil {
		t.Fatal("expected cycle error, got nil")
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(cycleErr.Info.CycleMembers) != 2 {
		t.Errorf("expected 2 cycle members, got %v", cycleErr.Info.CycleMembers)
	}
	members := map[schema.Kind]bool{}
	for _, m := range cycleErr.Info.CycleMembers {
		members[m] = true
	}
	if !members["a"] || !members["b"] {
		t.Errorf("cycle members should name both kinds, got %v", cycleErr.Info.CycleMembers)
	}
}

func TestTopologicalSort_CycleBlocksDownstreamKinds(t *testing.T) {
	// a <-> b cycle, c depends on b, d is independent.
	g := testGraph(
		[]schema.Kind{"a", "b", "c", "d"},
		[]Edge{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
			{From: "b", To: "c"},
		},
	)

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %v", err)
	}

	if cycleErr.Info.ProcessedKinds != 1 {
		t.Errorf("expected exactly d to be processed, got %d kinds", cycleErr.Info.ProcessedKinds)
	}
	if len(cycleErr.Info.UnprocessedKinds) != 3 {
		t.Errorf("expected 3 unprocessed kinds, got %v", cycleErr.Info.UnprocessedKinds)
	}
	if len(cycleErr.Info.CycleMembers) != 2 {
		t.Errorf("expected 2 cycle members, got %v", cycleErr.Info.CycleMembers)
	}
}

func TestCycleError_MessageNamesCycle(t *testing.T) {
	g := testGraph(
		[]schema.Kind{"a", "b"},
		[]Edge{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
		},
	)

	_, err := g.TopologicalSort()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if msg == "" {
		t.Fatal("empty error message")
	}
	for _, want := range []string{"cyclic dependency", "a", "b"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q: %s", want, msg)
		}
	}
}

func TestHasCycle(t *testing.T) {
	acyclic := testGraph(
		[]schema.Kind{"domain", "data_product"},
		[]Edge{{From: "domain", To: "data_product"}},
	)
	if acyclic.HasCycle() {
		t.Error("acyclic graph reported a cycle")
	}

	cyclic := testGraph(
		[]schema.Kind{"a", "b"},
		[]Edge{{From: "a", To: "b"}, {From: "b", To: "a"}},
	)
	if !cyclic.HasCycle() {
		t.Error("cyclic graph not detected")
	}
}
