package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/metaport/internal/catalog"
	"github.com/dbsmedya/metaport/internal/schema"
)

func domainPayload(name string) map[string]any {
	return map[string]any{
		"name":               name,
		"fullyQualifiedName": name,
	}
}

func productPayload(name string, domain catalog.Record) map[string]any {
	return map[string]any{
		"name":               name,
		"fullyQualifiedName": name,
		"domain": map[string]any{
			"id":                 domain.ID(),
			"type":               "domain",
			"name":               domain.Name(),
			"fullyQualifiedName": domain.FullyQualifiedName(),
		},
	}
}

func seededCatalog(t *testing.T) (*catalog.Fake, catalog.Record, catalog.Record) {
	t.Helper()
	fake := catalog.NewFake("http://source.example.com")
	finance := fake.Seed(schema.KindDomain, domainPayload("Finance"))
	marketing := fake.Seed(schema.KindDomain, domainPayload("Marketing"))
	fake.Seed(schema.KindDataProduct, productPayload("P1", finance))
	fake.Seed(schema.KindDataProduct, productPayload("P2", marketing))
	return fake, finance, marketing
}

func TestSelect_All(t *testing.T) {
	fake, _, _ := seededCatalog(t)
	filter := NewFilter(schema.Default(), fake)

	sel, err := filter.Select(context.Background(), Criterion{
		Mode:  ModeAll,
		Kinds: []schema.Kind{schema.KindDomain, schema.KindDataProduct},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, sel.Count(schema.KindDomain))
	assert.Equal(t, 2, sel.Count(schema.KindDataProduct))
	assert.Equal(t, []schema.Kind{schema.KindDomain, schema.KindDataProduct}, sel.Kinds())
}

func TestSelect_All_ExcludesDeletedAndSystem(t *testing.T) {
	fake := catalog.NewFake("http://source.example.com")
	fake.Seed(schema.KindUser, map[string]any{"name": "alice", "fullyQualifiedName": "alice"})
	fake.Seed(schema.KindUser, map[string]any{"name": "bob", "fullyQualifiedName": "bob", "deleted": true})
	fake.Seed(schema.KindUser, map[string]any{"name": "ingestion-bot", "fullyQualifiedName": "ingestion-bot", "provider": "system"})
	filter := NewFilter(schema.Default(), fake)

	sel, err := filter.Select(context.Background(), Criterion{
		Mode:  ModeAll,
		Kinds: []schema.Kind{schema.KindUser},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sel.Count(schema.KindUser))

	sel, err = filter.Select(context.Background(), Criterion{
		Mode:           ModeAll,
		Kinds:          []schema.Kind{schema.KindUser},
		IncludeDeleted: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sel.Count(schema.KindUser))

	sel, err = filter.Select(context.Background(), Criterion{
		Mode:                  ModeAll,
		Kinds:                 []schema.Kind{schema.KindUser},
		IncludeDeleted:        true,
		IncludeSystemEntities: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sel.Count(schema.KindUser))
}

func TestSelect_All_EmptyKindStaysPresent(t *testing.T) {
	fake := catalog.NewFake("http://source.example.com")
	filter := NewFilter(schema.Default(), fake)

	sel, err := filter.Select(context.Background(), Criterion{
		Mode:  ModeAll,
		Kinds: []schema.Kind{schema.KindGlossary},
	})
	require.NoError(t, err)

	// Requested with zero matches is distinct from not requested.
	assert.Equal(t, []schema.Kind{schema.KindGlossary}, sel.Kinds())
	assert.Equal(t, 0, sel.Count(schema.KindGlossary))
}

func TestSelect_All_PagesThroughEverything(t *testing.T) {
	fake := catalog.NewFake("http://source.example.com")
	for i := 0; i < 7; i++ {
		fake.Seed(schema.KindTeam, map[string]any{
			"name":               string(rune('a' + i)),
			"fullyQualifiedName": string(rune('a' + i)),
		})
	}
	filter := NewFilter(schema.Default(), fake)

	sel, err := filter.Select(context.Background(), Criterion{
		Mode:     ModeAll,
		Kinds:    []schema.Kind{schema.KindTeam},
		PageSize: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, sel.Count(schema.KindTeam))
	assert.Equal(t, 3, fake.ListCalls)
}

func TestSelect_Explicit(t *testing.T) {
	fake, finance, _ := seededCatalog(t)
	filter := NewFilter(schema.Default(), fake)

	sel, err := filter.Select(context.Background(), Criterion{
		Mode:  ModeExplicit,
		Kinds: []schema.Kind{schema.KindDomain, schema.KindDataProduct},
		Names: []string{"Finance", "P1"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sel.Count(schema.KindDomain))
	assert.Equal(t, 1, sel.Count(schema.KindDataProduct))
	assert.True(t, sel.Contains(schema.KindDomain, finance))
}

func TestSelect_Explicit_CollectsAllUnresolvedNames(t *testing.T) {
	fake, _, _ := seededCatalog(t)
	filter := NewFilter(schema.Default(), fake)

	_, err := filter.Select(context.Background(), Criterion{
		Mode:  ModeExplicit,
		Kinds: []schema.Kind{schema.KindDomain, schema.KindDataProduct},
		Names: []string{"Finance", "NoSuchDomain", "NoSuchProduct"},
	})

	var unresolved *UnresolvedNameError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []string{"NoSuchDomain", "NoSuchProduct"}, unresolved.Names)
}

func TestSelect_Linked_DataProductsOnly(t *testing.T) {
	fake, _, _ := seededCatalog(t)
	filter := NewFilter(schema.Default(), fake)

	sel, err := filter.Select(context.Background(), Criterion{
		Mode:               ModeLinked,
		Kinds:              []schema.Kind{schema.KindDomain, schema.KindDataProduct},
		RootDomains:        []string{"Finance"},
		LinkedDataProducts: true,
	})
	require.NoError(t, err)

	// P1 references Finance, P2 references Marketing: exactly P1 survives.
	assert.Equal(t, 1, sel.Count(schema.KindDomain))
	require.Equal(t, 1, sel.Count(schema.KindDataProduct))
	products := fake.Records(schema.KindDataProduct)
	assert.True(t, sel.Contains(schema.KindDataProduct, products[0]))
	assert.False(t, sel.Contains(schema.KindDataProduct, products[1]))
}

func TestSelect_Linked_FlagOffKeepsAllDataProducts(t *testing.T) {
	fake, _, _ := seededCatalog(t)
	filter := NewFilter(schema.Default(), fake)

	sel, err := filter.Select(context.Background(), Criterion{
		Mode:        ModeLinked,
		Kinds:       []schema.Kind{schema.KindDomain, schema.KindDataProduct},
		RootDomains: []string{"Finance"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sel.Count(schema.KindDomain))
	assert.Equal(t, 2, sel.Count(schema.KindDataProduct))
}

func TestSelect_Linked_UnknownRootDomain(t *testing.T) {
	fake, _, _ := seededCatalog(t)
	filter := NewFilter(schema.Default(), fake)

	_, err := filter.Select(context.Background(), Criterion{
		Mode:        ModeLinked,
		Kinds:       []schema.Kind{schema.KindDomain},
		RootDomains: []string{"Finance", "Ghost"},
	})

	var unresolved *UnresolvedNameError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []string{"Ghost"}, unresolved.Names)
}

func TestSelect_Linked_AssetCascade(t *testing.T) {
	fake, finance, marketing := seededCatalog(t)

	linkedDash := fake.Seed(schema.KindDashboard, map[string]any{
		"name":               "revenue",
		"fullyQualifiedName": "looker.revenue",
		"domain": map[string]any{
			"id": finance.ID(), "type": "domain",
			"name": "Finance", "fullyQualifiedName": "Finance",
		},
	})
	otherDash := fake.Seed(schema.KindDashboard, map[string]any{
		"name":               "campaigns",
		"fullyQualifiedName": "looker.campaigns",
		"domain": map[string]any{
			"id": marketing.ID(), "type": "domain",
			"name": "Marketing", "fullyQualifiedName": "Marketing",
		},
	})
	// Charts carry no domain reference themselves; they follow their
	// dashboard.
	fake.Seed(schema.KindChart, map[string]any{
		"name":               "mrr",
		"fullyQualifiedName": "looker.revenue.mrr",
		"dashboard": map[string]any{
			"id": linkedDash.ID(), "type": "dashboard",
			"fullyQualifiedName": "looker.revenue",
		},
	})
	fake.Seed(schema.KindChart, map[string]any{
		"name":               "clicks",
		"fullyQualifiedName": "looker.campaigns.clicks",
		"dashboard": map[string]any{
			"id": otherDash.ID(), "type": "dashboard",
			"fullyQualifiedName": "looker.campaigns",
		},
	})

	filter := NewFilter(schema.Default(), fake)
	sel, err := filter.Select(context.Background(), Criterion{
		Mode:               ModeLinked,
		Kinds:              []schema.Kind{schema.KindDomain, schema.KindDashboard, schema.KindChart},
		RootDomains:        []string{"Finance"},
		LinkedDataProducts: true,
		LinkedAssets:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sel.Count(schema.KindDashboard))
	require.Equal(t, 1, sel.Count(schema.KindChart))
	charts := fake.Records(schema.KindChart)
	assert.True(t, sel.Contains(schema.KindChart, charts[0]))
	assert.False(t, sel.Contains(schema.KindChart, charts[1]))
}

func TestSelect_Linked_UnlinkedKindsKeepAllRecords(t *testing.T) {
	fake, _, _ := seededCatalog(t)
	fake.Seed(schema.KindTeam, map[string]any{"name": "platform", "fullyQualifiedName": "platform"})
	fake.Seed(schema.KindTeam, map[string]any{"name": "analytics", "fullyQualifiedName": "analytics"})

	filter := NewFilter(schema.Default(), fake)
	sel, err := filter.Select(context.Background(), Criterion{
		Mode:               ModeLinked,
		Kinds:              []schema.Kind{schema.KindTeam, schema.KindDomain, schema.KindDataProduct},
		RootDomains:        []string{"Finance"},
		LinkedDataProducts: true,
		LinkedAssets:       true,
	})
	require.NoError(t, err)

	// Teams have no linkage relationship and are not restricted.
	assert.Equal(t, 2, sel.Count(schema.KindTeam))
}

func TestSelect_Deterministic(t *testing.T) {
	fake, _, _ := seededCatalog(t)
	filter := NewFilter(schema.Default(), fake)
	crit := Criterion{
		Mode:               ModeLinked,
		Kinds:              []schema.Kind{schema.KindDomain, schema.KindDataProduct},
		RootDomains:        []string{"Finance"},
		LinkedDataProducts: true,
	}

	first, err := filter.Select(context.Background(), crit)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := filter.Select(context.Background(), crit)
		require.NoError(t, err)
		assert.Equal(t, first.IDs(schema.KindDomain), again.IDs(schema.KindDomain))
		assert.Equal(t, first.IDs(schema.KindDataProduct), again.IDs(schema.KindDataProduct))
	}
}

func TestSelect_UnknownKindInScope(t *testing.T) {
	fake := catalog.NewFake("http://source.example.com")
	filter := NewFilter(schema.Default(), fake)

	_, err := filter.Select(context.Background(), Criterion{
		Mode:  ModeAll,
		Kinds: []schema.Kind{schema.Kind("widget")},
	})

	var unknownErr *schema.UnknownKindError
	require.True(t, errors.As(err, &unknownErr))
}
