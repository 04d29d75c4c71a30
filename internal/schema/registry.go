// Package schema defines the static registry of entity kinds handled by
// metaport and the reference schema between them.
package schema

import (
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
)

// Kind identifies a category of catalog entity (domain, data_product, table...).
// The string value doubles as the NDJSON file stem for that kind.
type Kind string

// All kinds known to metaport, in declaration order. Declaration order is
// the tie-break used by the dependency orderer, so it is part of the contract.
const (
	KindTeam            Kind = "team"
	KindUser            Kind = "user"
	KindPolicy          Kind = "policy"
	KindDomain          Kind = "domain"
	KindDataProduct     Kind = "data_product"
	KindGlossary        Kind = "glossary"
	KindGlossaryTerm    Kind = "glossary_term"
	KindClassification  Kind = "classification"
	KindTag             Kind = "tag"
	KindDatabaseService Kind = "database_service"
	KindDatabase        Kind = "database"
	KindDatabaseSchema  Kind = "database_schema"
	KindTable           Kind = "table"
	KindDashboard       Kind = "dashboard"
	KindChart           Kind = "chart"
	KindPipeline        Kind = "pipeline"
)

// UnknownKindError is returned when a kind is not present in the registry.
// This always indicates bad configuration or bad input data, never a
// transient condition.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown entity kind %q", string(e.Kind))
}

// Definition describes one entity kind: which other kinds its records
// reference and whether it is a container kind (owns child entities) or a
// leaf kind.
type Definition struct {
	Kind       Kind
	References []Kind // kinds this kind's records point at (same-kind parents excluded)
	Container  bool
}

// Registry is the process-wide lookup table of entity kind definitions.
// It is built once at startup and never mutated afterwards.
type Registry struct {
	defs *orderedmap.OrderedMap[Kind, Definition]
}

// New creates a registry from the given definitions, preserving declaration
// order. Duplicate kinds and references to unregistered kinds are rejected.
func New(defs []Definition) (*Registry, error) {
	r := &Registry{defs: orderedmap.NewOrderedMap[Kind, Definition]()}
	for _, d := range defs {
		if _, exists := r.defs.Get(d.Kind); exists {
			return nil, fmt.Errorf("duplicate entity kind %q in registry", d.Kind)
		}
		r.defs.Set(d.Kind, d)
	}
	// References must resolve within the registry itself.
	for el := r.defs.Front(); el != nil; el = el.Next() {
		for _, ref := range el.Value.References {
			if _, exists := r.defs.Get(ref); !exists {
				return nil, fmt.Errorf("kind %q references unregistered kind %q", el.Key, ref)
			}
		}
	}
	return r, nil
}

// Default returns the built-in registry covering every kind metaport
// migrates. Same-kind parent references (domain.parent, nested glossary
// terms) are deliberately absent: the orderer only sequences kinds, not
// records within a kind.
func Default() *Registry {
	r, err := New([]Definition{
		{Kind: KindTeam, Container: true},
		{Kind: KindUser, References: []Kind{KindTeam}},
		{Kind: KindPolicy},
		{Kind: KindDomain, Container: true},
		{Kind: KindDataProduct, References: []Kind{KindDomain}},
		{Kind: KindGlossary, References: []Kind{KindDomain}, Container: true},
		{Kind: KindGlossaryTerm, References: []Kind{KindGlossary}},
		{Kind: KindClassification, Container: true},
		{Kind: KindTag, References: []Kind{KindClassification}},
		{Kind: KindDatabaseService, References: []Kind{KindDomain}, Container: true},
		{Kind: KindDatabase, References: []Kind{KindDatabaseService, KindDomain}, Container: true},
		{Kind: KindDatabaseSchema, References: []Kind{KindDatabase}, Container: true},
		{Kind: KindTable, References: []Kind{KindDatabaseSchema, KindDomain, KindDataProduct}},
		{Kind: KindDashboard, References: []Kind{KindDomain, KindDataProduct}},
		{Kind: KindChart, References: []Kind{KindDashboard}},
		{Kind: KindPipeline, References: []Kind{KindDomain}},
	})
	if err != nil {
		// The built-in table is static; a failure here is a programming error.
		panic(err)
	}
	return r
}

// ReferencesOf returns the set of kinds referenced by the given kind.
func (r *Registry) ReferencesOf(kind Kind) ([]Kind, error) {
	def, exists := r.defs.Get(kind)
	if !exists {
		return nil, &UnknownKindError{Kind: kind}
	}
	refs := make([]Kind, len(def.References))
	copy(refs, def.References)
	return refs, nil
}

// AllKinds returns every registered kind in declaration order.
func (r *Registry) AllKinds() []Kind {
	kinds := make([]Kind, 0, r.defs.Len())
	for el := r.defs.Front(); el != nil; el = el.Next() {
		kinds = append(kinds, el.Key)
	}
	return kinds
}

// Has returns true if the kind is registered.
func (r *Registry) Has(kind Kind) bool {
	_, exists := r.defs.Get(kind)
	return exists
}

// IsContainer reports whether the kind is a container kind (domain, glossary,
// database...) as opposed to a leaf kind (table, chart...).
func (r *Registry) IsContainer(kind Kind) (bool, error) {
	def, exists := r.defs.Get(kind)
	if !exists {
		return false, &UnknownKindError{Kind: kind}
	}
	return def.Container, nil
}

// Index returns the declaration position of a kind, used as the
// reproducibility tie-break when ordering kinds with no remaining
// dependencies.
func (r *Registry) Index(kind Kind) (int, error) {
	i := 0
	for el := r.defs.Front(); el != nil; el = el.Next() {
		if el.Key == kind {
			return i, nil
		}
		i++
	}
	return -1, &UnknownKindError{Kind: kind}
}

// ParseKind converts a configuration string into a Kind, validating it
// against the registry.
func (r *Registry) ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !r.Has(k) {
		return "", &UnknownKindError{Kind: k}
	}
	return k, nil
}
