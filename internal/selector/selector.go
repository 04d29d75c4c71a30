// Package selector computes which subset of catalog records a run moves:
// everything, an explicit name set, or the set linked to chosen domains.
package selector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dbsmedya/metaport/internal/catalog"
	"github.com/dbsmedya/metaport/internal/schema"
)

// Mode is the selection criterion family.
type Mode int

const (
	// ModeAll selects every record of the kinds in scope.
	ModeAll Mode = iota
	// ModeExplicit selects records by fully-qualified name.
	ModeExplicit
	// ModeLinked selects records reachable from a root domain set via the
	// configured linkage relationships.
	ModeLinked
)

// Criterion describes one selection request. Identical catalog state and
// identical criterion always produce the identical selected set; retry and
// resume depend on that.
type Criterion struct {
	Mode  Mode
	Kinds []schema.Kind // kinds in scope, from entities.* config

	// Explicit names (ModeExplicit).
	Names []string

	// Linked selection roots (ModeLinked): domain names plus the two
	// linkage flags.
	RootDomains        []string
	LinkedDataProducts bool
	LinkedAssets       bool

	IncludeDeleted        bool
	IncludeSystemEntities bool

	PageSize int
}

// UnresolvedNameError reports every selection name that matched nothing, so
// a user sees all bad names in one pass instead of one per run.
type UnresolvedNameError struct {
	Names []string
}

func (e *UnresolvedNameError) Error() string {
	return fmt.Sprintf("selection names not found in source catalog: %s", strings.Join(e.Names, ", "))
}

// CatalogView is the read access the filter needs. catalog.Client satisfies
// it.
type CatalogView interface {
	ListByKind(ctx context.Context, kind schema.Kind, pageToken string, pageSize int) (catalog.Page, error)
}

// Selection is the computed result: per kind, the identifiers (and
// fully-qualified names) of the records to transfer. A kind present with an
// empty set means "requested, zero matches", distinct from an absent kind.
type Selection struct {
	reg   *schema.Registry
	ids   map[schema.Kind]map[string]bool
	fqns  map[schema.Kind]map[string]bool
	kinds []schema.Kind
}

func newSelection(reg *schema.Registry) *Selection {
	return &Selection{
		reg:  reg,
		ids:  make(map[schema.Kind]map[string]bool),
		fqns: make(map[schema.Kind]map[string]bool),
	}
}

func (s *Selection) addKind(kind schema.Kind) {
	if _, ok := s.ids[kind]; !ok {
		s.ids[kind] = make(map[string]bool)
		s.fqns[kind] = make(map[string]bool)
		s.kinds = append(s.kinds, kind)
	}
}

func (s *Selection) include(kind schema.Kind, rec catalog.Record) {
	s.addKind(kind)
	if id := rec.ID(); id != "" {
		s.ids[kind][id] = true
	}
	if fqn := rec.FullyQualifiedName(); fqn != "" {
		s.fqns[kind][fqn] = true
	}
}

// Kinds returns the kinds the selection covers, in registry declaration
// order.
func (s *Selection) Kinds() []schema.Kind {
	out := make([]schema.Kind, len(s.kinds))
	copy(out, s.kinds)
	sort.Slice(out, func(i, j int) bool {
		a, _ := s.reg.Index(out[i])
		b, _ := s.reg.Index(out[j])
		return a < b
	})
	return out
}

// Contains reports whether the record is selected for its kind, matched by
// identifier.
func (s *Selection) Contains(kind schema.Kind, rec catalog.Record) bool {
	if ids, ok := s.ids[kind]; ok && ids[rec.ID()] {
		return true
	}
	if fqns, ok := s.fqns[kind]; ok && fqns[rec.FullyQualifiedName()] {
		return true
	}
	return false
}

// ContainsRef reports whether a reference value points at a selected record.
// References may carry an identifier, a fully-qualified name, or both.
func (s *Selection) ContainsRef(ref catalog.Ref) bool {
	if ids, ok := s.ids[ref.Kind]; ok && ref.ID != "" && ids[ref.ID] {
		return true
	}
	if fqns, ok := s.fqns[ref.Kind]; ok && ref.FQN != "" && fqns[ref.FQN] {
		return true
	}
	return false
}

// Count returns how many records are selected for a kind.
func (s *Selection) Count(kind schema.Kind) int {
	return len(s.ids[kind])
}

// IDs returns the selected identifiers of a kind in sorted order.
func (s *Selection) IDs(kind schema.Kind) []string {
	ids := make([]string, 0, len(s.ids[kind]))
	for id := range s.ids[kind] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Filter evaluates selection criteria against a catalog view.
type Filter struct {
	reg  *schema.Registry
	view CatalogView
}

// NewFilter creates a selection filter over the given catalog view.
func NewFilter(reg *schema.Registry, view CatalogView) *Filter {
	return &Filter{reg: reg, view: view}
}

// Select computes the exact record set for the criterion. It only reads the
// catalog; it never mutates anything.
func (f *Filter) Select(ctx context.Context, crit Criterion) (*Selection, error) {
	kinds, err := f.kindsInScope(crit)
	if err != nil {
		return nil, err
	}

	switch crit.Mode {
	case ModeAll:
		return f.selectAll(ctx, crit, kinds)
	case ModeExplicit:
		return f.selectExplicit(ctx, crit, kinds)
	case ModeLinked:
		return f.selectLinked(ctx, crit, kinds)
	default:
		return nil, fmt.Errorf("unsupported selection mode %d", crit.Mode)
	}
}

// kindsInScope validates the criterion's kinds and orders them by registry
// declaration so evaluation order is reproducible. An empty list means every
// registered kind.
func (f *Filter) kindsInScope(crit Criterion) ([]schema.Kind, error) {
	if len(crit.Kinds) == 0 {
		return f.reg.AllKinds(), nil
	}
	seen := make(map[schema.Kind]bool)
	for _, k := range crit.Kinds {
		if !f.reg.Has(k) {
			return nil, &schema.UnknownKindError{Kind: k}
		}
		seen[k] = true
	}
	var kinds []schema.Kind
	for _, k := range f.reg.AllKinds() {
		if seen[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// admits applies the record-level ALL filters: soft-deleted records are
// excluded unless include_deleted, platform-internal records unless
// include_system_entities.
func admits(crit Criterion, rec catalog.Record) bool {
	if rec.Deleted() && !crit.IncludeDeleted {
		return false
	}
	if rec.System() && !crit.IncludeSystemEntities {
		return false
	}
	return true
}

// listKind pages through every record of a kind.
func (f *Filter) listKind(ctx context.Context, kind schema.Kind, pageSize int) ([]catalog.Record, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	var records []catalog.Record
	token := ""
	for {
		page, err := f.view.ListByKind(ctx, kind, token, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s records: %w", kind, err)
		}
		records = append(records, page.Records...)
		if page.NextPageToken == "" {
			return records, nil
		}
		token = page.NextPageToken
	}
}

func (f *Filter) selectAll(ctx context.Context, crit Criterion, kinds []schema.Kind) (*Selection, error) {
	sel := newSelection(f.reg)
	for _, kind := range kinds {
		sel.addKind(kind)
		records, err := f.listKind(ctx, kind, crit.PageSize)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if admits(crit, rec) {
				sel.include(kind, rec)
			}
		}
	}
	return sel, nil
}

// selectExplicit resolves each requested name against every kind in scope.
// Unmatched names are collected and reported together.
func (f *Filter) selectExplicit(ctx context.Context, crit Criterion, kinds []schema.Kind) (*Selection, error) {
	sel := newSelection(f.reg)
	matched := make(map[string]bool, len(crit.Names))
	wanted := make(map[string]bool, len(crit.Names))
	for _, name := range crit.Names {
		wanted[name] = true
	}

	for _, kind := range kinds {
		sel.addKind(kind)
		records, err := f.listKind(ctx, kind, crit.PageSize)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if !admits(crit, rec) {
				continue
			}
			if wanted[rec.FullyQualifiedName()] {
				sel.include(kind, rec)
				matched[rec.FullyQualifiedName()] = true
			} else if wanted[rec.Name()] {
				sel.include(kind, rec)
				matched[rec.Name()] = true
			}
		}
	}

	var missing []string
	for _, name := range crit.Names {
		if !matched[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &UnresolvedNameError{Names: missing}
	}
	return sel, nil
}

// linkedHop is one configured linkage relationship: records of the
// dependent kind join the selection when they reference an already-selected
// record of one of the via kinds.
type linkedHop struct {
	dependent schema.Kind
	via       []schema.Kind
	// gate names which linkage flag enables the hop.
	gate func(Criterion) bool
}

// linkedHops lists the configured relationships in dependency order, so a
// data product admitted by hop one can in turn admit its assets, and an
// admitted dashboard its charts. This is a deliberate per-relationship
// cascade, not a transitive closure.
var linkedHops = []linkedHop{
	{dependent: schema.KindDataProduct, via: []schema.Kind{schema.KindDomain},
		gate: func(c Criterion) bool { return c.LinkedDataProducts }},
	{dependent: schema.KindGlossary, via: []schema.Kind{schema.KindDomain},
		gate: func(c Criterion) bool { return c.LinkedAssets }},
	{dependent: schema.KindGlossaryTerm, via: []schema.Kind{schema.KindGlossary},
		gate: func(c Criterion) bool { return c.LinkedAssets }},
	{dependent: schema.KindDatabaseService, via: []schema.Kind{schema.KindDomain},
		gate: func(c Criterion) bool { return c.LinkedAssets }},
	{dependent: schema.KindDatabase, via: []schema.Kind{schema.KindDatabaseService, schema.KindDomain},
		gate: func(c Criterion) bool { return c.LinkedAssets }},
	{dependent: schema.KindDatabaseSchema, via: []schema.Kind{schema.KindDatabase},
		gate: func(c Criterion) bool { return c.LinkedAssets }},
	{dependent: schema.KindTable, via: []schema.Kind{schema.KindDatabaseSchema, schema.KindDomain, schema.KindDataProduct},
		gate: func(c Criterion) bool { return c.LinkedAssets }},
	{dependent: schema.KindDashboard, via: []schema.Kind{schema.KindDomain, schema.KindDataProduct},
		gate: func(c Criterion) bool { return c.LinkedAssets }},
	{dependent: schema.KindChart, via: []schema.Kind{schema.KindDashboard},
		gate: func(c Criterion) bool { return c.LinkedAssets }},
	{dependent: schema.KindPipeline, via: []schema.Kind{schema.KindDomain},
		gate: func(c Criterion) bool { return c.LinkedAssets }},
}

// selectLinked resolves the root domain set, then walks the configured
// linkage relationships. Kinds in scope that have no linkage relationship
// (teams, policies, classifications...) fall back to ALL semantics.
func (f *Filter) selectLinked(ctx context.Context, crit Criterion, kinds []schema.Kind) (*Selection, error) {
	inScope := make(map[schema.Kind]bool, len(kinds))
	for _, k := range kinds {
		inScope[k] = true
	}

	sel := newSelection(f.reg)

	// Root resolution behaves like EXPLICIT over the domain kind.
	if inScope[schema.KindDomain] {
		sel.addKind(schema.KindDomain)
		domains, err := f.listKind(ctx, schema.KindDomain, crit.PageSize)
		if err != nil {
			return nil, err
		}
		wanted := make(map[string]bool, len(crit.RootDomains))
		for _, name := range crit.RootDomains {
			wanted[name] = true
		}
		matched := make(map[string]bool)
		for _, rec := range domains {
			if !admits(crit, rec) {
				continue
			}
			if wanted[rec.FullyQualifiedName()] {
				sel.include(schema.KindDomain, rec)
				matched[rec.FullyQualifiedName()] = true
			} else if wanted[rec.Name()] {
				sel.include(schema.KindDomain, rec)
				matched[rec.Name()] = true
			}
		}
		var missing []string
		for _, name := range crit.RootDomains {
			if !matched[name] {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, &UnresolvedNameError{Names: missing}
		}
	}

	gated := make(map[schema.Kind]linkedHop, len(linkedHops))
	for _, hop := range linkedHops {
		gated[hop.dependent] = hop
	}

	for _, kind := range kinds {
		if kind == schema.KindDomain {
			continue
		}
		sel.addKind(kind)
		records, err := f.listKind(ctx, kind, crit.PageSize)
		if err != nil {
			return nil, err
		}

		hop, linked := gated[kind]
		restrict := linked && hop.gate(crit)
		for _, rec := range records {
			if !admits(crit, rec) {
				continue
			}
			if !restrict {
				sel.include(kind, rec)
				continue
			}
			for _, via := range hop.via {
				if ref, ok := rec.Reference(via); ok && sel.ContainsRef(ref) {
					sel.include(kind, rec)
					break
				}
			}
		}
	}

	return sel, nil
}
