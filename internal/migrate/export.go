package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dbsmedya/metaport/internal/catalog"
	"github.com/dbsmedya/metaport/internal/config"
	"github.com/dbsmedya/metaport/internal/logger"
	"github.com/dbsmedya/metaport/internal/ndjson"
	"github.com/dbsmedya/metaport/internal/schema"
	"github.com/dbsmedya/metaport/internal/selector"
)

// Exporter streams the selected records of a source catalog into one NDJSON
// artifact file per kind, plus a transfer manifest.
type Exporter struct {
	cfg    *config.Config
	reg    *schema.Registry
	source catalog.Client
	exec   *Executor
	log    *logger.Logger

	// ExplicitNames switches selection to an explicit name set instead of
	// the config-driven criterion.
	ExplicitNames []string
}

// NewExporter creates an export pipeline against the given source client.
func NewExporter(cfg *config.Config, reg *schema.Registry, source catalog.Client, log *logger.Logger) *Exporter {
	exec := NewExecutor(cfg.Advanced, log)
	return &Exporter{
		cfg:    cfg,
		reg:    reg,
		source: WrapClient(source, exec),
		exec:   exec,
		log:    log,
	}
}

// Criterion derives the selection criterion from configuration: explicit
// names when given, linked selection when domains are configured, otherwise
// everything in scope.
func (e *Exporter) Criterion() selector.Criterion {
	crit := selector.Criterion{
		Mode:                  selector.ModeAll,
		Kinds:                 enabledKinds(e.cfg),
		IncludeDeleted:        e.cfg.Export.IncludeDeleted,
		IncludeSystemEntities: e.cfg.Export.IncludeSystemEntities,
		PageSize:              e.cfg.Processing.BatchSize,
	}
	switch {
	case len(e.ExplicitNames) > 0:
		crit.Mode = selector.ModeExplicit
		crit.Names = e.ExplicitNames
	case len(e.cfg.Selective.Domains) > 0:
		crit.Mode = selector.ModeLinked
		crit.RootDomains = e.cfg.Selective.Domains
		crit.LinkedDataProducts = e.cfg.Selective.LinkedDataProductsOnly
		crit.LinkedAssets = e.cfg.Selective.LinkedAssetsOnly
	}
	return crit
}

// Run computes the selection, writes the artifact files, and returns the
// manifest. Kind files are written by a bounded worker pool; the manifest is
// flushed as kinds complete.
func (e *Exporter) Run(ctx context.Context) (*Manifest, error) {
	outputDir := e.cfg.Export.OutputDir
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manifest := NewManifest("export", SummaryPath(outputDir), false)
	manifest.SetEndpoints(e.source.Endpoint(), "")

	crit := e.Criterion()
	e.log.Infow("Starting export",
		"run_id", manifest.RunID,
		"source", e.source.Endpoint(),
		"output_dir", outputDir,
		"kinds", len(crit.Kinds),
	)

	filter := selector.NewFilter(e.reg, e.source)
	selection, err := filter.Select(ctx, crit)
	if err != nil {
		return nil, fmt.Errorf("selection failed: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(e.cfg.Advanced.MaxWorkers)

	for _, kind := range selection.Kinds() {
		kind := kind
		manifest.EnsureKind(kind)
		group.Go(func() error {
			count, err := e.exportKind(ctx, kind, selection, outputDir)
			if err != nil {
				return fmt.Errorf("export of %s failed: %w", kind, err)
			}
			manifest.AddExported(kind, count)
			if err := manifest.Flush(); err != nil {
				return err
			}
			e.log.Infow("Exported kind", "kind", kind, "records", count)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		manifest.Flush()
		return manifest, err
	}

	if err := manifest.Finish(); err != nil {
		return manifest, err
	}
	total := manifest.Totals()
	e.log.Infow("Export complete",
		"run_id", manifest.RunID,
		"records", total.Exported,
	)
	return manifest, nil
}

// exportKind pages through one kind and writes every selected record to its
// artifact file. An empty selection still produces the file, so import can
// distinguish "nothing matched" from "kind not exported".
func (e *Exporter) exportKind(ctx context.Context, kind schema.Kind, selection *selector.Selection, outputDir string) (int, error) {
	w, err := ndjson.CreateFile(outputDir, kind)
	if err != nil {
		return 0, err
	}

	token := ""
	for {
		page, err := e.source.ListByKind(ctx, kind, token, e.cfg.Processing.BatchSize)
		if err != nil {
			w.Close()
			return 0, err
		}
		for _, rec := range page.Records {
			if !selection.Contains(kind, rec) {
				continue
			}
			if err := w.Write(rec); err != nil {
				w.Close()
				return 0, err
			}
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Count(), nil
}

// ClearArtifacts removes artifact files and the manifest from a directory,
// leaving anything else in place.
func ClearArtifacts(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ndjson.Extension) || name == SummaryFileName {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return fmt.Errorf("failed to remove %s: %w", name, err)
			}
		}
	}
	return nil
}

// enabledKinds maps the entities.* config block to kinds. An empty block
// means every kind. Unknown names pass through so the selection filter
// rejects them with a proper error.
func enabledKinds(cfg *config.Config) []schema.Kind {
	names := cfg.EnabledEntities()
	if len(names) == 0 {
		return nil
	}
	kinds := make([]schema.Kind, 0, len(names))
	for _, name := range names {
		kinds = append(kinds, schema.Kind(name))
	}
	return kinds
}
