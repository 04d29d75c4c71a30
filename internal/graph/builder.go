package graph

import (
	"fmt"

	"github.com/dbsmedya/metaport/internal/schema"
)

// Build constructs the dependency graph for the given kinds using the
// registry's reference schema. Edges are only created between kinds that are
// both in use: a table imported without its database_schema falls back to
// record-level reference resolution against the target catalog.
func Build(reg *schema.Registry, kinds []schema.Kind) (*Graph, error) {
	g := NewGraph()

	seen := make(map[schema.Kind]bool, len(kinds))
	for _, kind := range kinds {
		if seen[kind] {
			continue
		}
		seen[kind] = true

		index, err := reg.Index(kind)
		if err != nil {
			return nil, err
		}
		container, err := reg.IsContainer(kind)
		if err != nil {
			return nil, err
		}
		g.AddNode(&Node{Kind: kind, Index: index, Container: container})
	}

	for kind := range g.Nodes {
		refs, err := reg.ReferencesOf(kind)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if g.HasNode(ref) {
				g.AddEdge(ref, kind)
			}
		}
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("dependency graph validation failed: %w", err)
	}
	return g, nil
}

// Order is the dependency orderer entry point: it builds the graph for the
// kinds in use and returns them so every referenced kind precedes every
// referencing kind, with registry declaration order as the tie-break.
func Order(reg *schema.Registry, kinds []schema.Kind) ([]schema.Kind, error) {
	g, err := Build(reg, kinds)
	if err != nil {
		return nil, err
	}
	return g.TopologicalSort()
}

// ValidateOrderHint checks a user-configured import order against the
// registry's reference graph. The hint is rejected if any kind appears
// before a kind it references, or names a kind twice, or names an
// unregistered kind. An empty hint is valid (the computed order is used).
func ValidateOrderHint(reg *schema.Registry, hint []schema.Kind) error {
	if len(hint) == 0 {
		return nil
	}

	position := make(map[schema.Kind]int, len(hint))
	for i, kind := range hint {
		if !reg.Has(kind) {
			return &schema.UnknownKindError{Kind: kind}
		}
		if _, dup := position[kind]; dup {
			return fmt.Errorf("import order lists kind %q more than once", kind)
		}
		position[kind] = i
	}

	for i, kind := range hint {
		refs, err := reg.ReferencesOf(kind)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if pos, present := position[ref]; present && pos > i {
				return fmt.Errorf("import order places %q before %q, which it references", kind, ref)
			}
		}
	}
	return nil
}
