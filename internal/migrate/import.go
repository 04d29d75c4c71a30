package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dbsmedya/metaport/internal/catalog"
	"github.com/dbsmedya/metaport/internal/config"
	"github.com/dbsmedya/metaport/internal/graph"
	"github.com/dbsmedya/metaport/internal/logger"
	"github.com/dbsmedya/metaport/internal/ndjson"
	"github.com/dbsmedya/metaport/internal/schema"
)

// errAbort wraps the record failure that stopped a run when skip_on_error
// is off.
type errAbort struct {
	kind       schema.Kind
	identifier string
	cause      error
}

func (e *errAbort) Error() string {
	return fmt.Sprintf("import aborted on %s %q: %v", e.kind, e.identifier, e.cause)
}

func (e *errAbort) Unwrap() error {
	return e.cause
}

// Importer replays NDJSON artifacts into a target catalog: kinds in
// dependency order, records upserted by fully-qualified name, references
// rewritten to target identifiers.
type Importer struct {
	cfg    *config.Config
	reg    *schema.Registry
	target catalog.Client
	exec   *Executor
	log    *logger.Logger

	// DryRun computes and reports every outcome without writing to the
	// target.
	DryRun bool

	resolver *refResolver
}

// NewImporter creates an import pipeline against the given target client.
func NewImporter(cfg *config.Config, reg *schema.Registry, target catalog.Client, log *logger.Logger) *Importer {
	exec := NewExecutor(cfg.Advanced, log)
	return &Importer{
		cfg:    cfg,
		reg:    reg,
		target: WrapClient(target, exec),
		exec:   exec,
		log:    log,
	}
}

// Plan returns the kind processing order for the artifacts in the input
// directory without importing anything.
func (i *Importer) Plan() ([]schema.Kind, error) {
	kinds, err := i.discoverKinds()
	if err != nil {
		return nil, err
	}
	return i.orderKinds(kinds)
}

// Run imports every artifact file, one kind phase at a time. A kind phase
// completes fully before the next starts, so records can rely on their
// dependencies being present. Within a phase, batches of records are
// processed by a bounded worker pool.
func (i *Importer) Run(ctx context.Context) (*Manifest, error) {
	kinds, err := i.discoverKinds()
	if err != nil {
		return nil, err
	}
	ordered, err := i.orderKinds(kinds)
	if err != nil {
		return nil, err
	}

	manifestPath := ""
	if !i.DryRun {
		manifestPath = SummaryPath(i.cfg.Import.InputDir)
	}
	manifest := NewManifest("import", manifestPath, i.DryRun)
	manifest.SetEndpoints("", i.target.Endpoint())
	i.resolver = newRefResolver(i.target, i.DryRun)

	i.log.Infow("Starting import",
		"run_id", manifest.RunID,
		"target", i.target.Endpoint(),
		"input_dir", i.cfg.Import.InputDir,
		"order", ordered,
		"dry_run", i.DryRun,
	)

	for _, kind := range ordered {
		manifest.EnsureKind(kind)
		if err := i.importKind(ctx, kind, manifest); err != nil {
			manifest.Flush()
			return manifest, err
		}
		if err := manifest.Flush(); err != nil {
			return manifest, err
		}
		if summary, ok := manifest.Summary(kind); ok {
			i.log.Infow("Imported kind",
				"kind", kind,
				"created", summary.Created,
				"updated", summary.Updated,
				"skipped", summary.Skipped,
				"failed", summary.Failed,
			)
		}
	}

	if err := manifest.Finish(); err != nil {
		return manifest, err
	}
	total := manifest.Totals()
	i.log.Infow("Import complete",
		"run_id", manifest.RunID,
		"created", total.Created,
		"updated", total.Updated,
		"skipped", total.Skipped,
		"failed", total.Failed,
	)
	return manifest, nil
}

// discoverKinds lists the artifact kinds present in the input directory,
// restricted to the enabled entities when the config names any.
func (i *Importer) discoverKinds() ([]schema.Kind, error) {
	kinds, err := ndjson.DiscoverKinds(i.cfg.Import.InputDir, i.reg)
	if err != nil {
		return nil, err
	}
	enabled := enabledKinds(i.cfg)
	if len(enabled) == 0 {
		return kinds, nil
	}
	want := make(map[schema.Kind]bool, len(enabled))
	for _, kind := range enabled {
		want[kind] = true
	}
	var filtered []schema.Kind
	for _, kind := range kinds {
		if want[kind] {
			filtered = append(filtered, kind)
		}
	}
	return filtered, nil
}

// orderKinds produces the processing order: the configured import_order
// hint first (validated against the dependency graph), then any remaining
// kinds in topological order.
func (i *Importer) orderKinds(present []schema.Kind) ([]schema.Kind, error) {
	hint := make([]schema.Kind, 0, len(i.cfg.Import.ImportOrder))
	for _, name := range i.cfg.Import.ImportOrder {
		kind, err := i.reg.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("invalid import_order: %w", err)
		}
		hint = append(hint, kind)
	}
	if err := graph.ValidateOrderHint(i.reg, hint); err != nil {
		return nil, fmt.Errorf("invalid import_order: %w", err)
	}

	presentSet := make(map[schema.Kind]bool, len(present))
	for _, kind := range present {
		presentSet[kind] = true
	}

	var ordered []schema.Kind
	hinted := make(map[schema.Kind]bool, len(hint))
	for _, kind := range hint {
		if presentSet[kind] {
			ordered = append(ordered, kind)
			hinted[kind] = true
		}
	}

	var rest []schema.Kind
	for _, kind := range present {
		if !hinted[kind] {
			rest = append(rest, kind)
		}
	}
	if len(rest) > 0 {
		sorted, err := graph.Order(i.reg, rest)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, sorted...)
	}
	return ordered, nil
}

// importKind replays one artifact file in batches.
func (i *Importer) importKind(ctx context.Context, kind schema.Kind, manifest *Manifest) error {
	reader, closeFn, err := ndjson.OpenFile(i.cfg.Import.InputDir, kind)
	if err != nil {
		return err
	}
	defer closeFn()

	batchSize := i.cfg.Processing.BatchSize
	for {
		batch, err := readBatch(reader, batchSize)
		if err != nil {
			return fmt.Errorf("failed to read %s artifact: %w", kind, err)
		}
		if len(batch) == 0 {
			return nil
		}
		if err := i.importBatch(ctx, kind, batch, manifest); err != nil {
			return err
		}
	}
}

func readBatch(reader *ndjson.Reader, size int) ([]catalog.Record, error) {
	batch := make([]catalog.Record, 0, size)
	for len(batch) < size {
		var rec catalog.Record
		if err := reader.Next(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return batch, nil
			}
			return nil, err
		}
		batch = append(batch, rec)
	}
	return batch, nil
}

// importBatch processes one batch with the bounded worker pool. Record
// failures either become FAILED manifest entries (skip_on_error) or abort
// the run.
func (i *Importer) importBatch(ctx context.Context, kind schema.Kind, batch []catalog.Record, manifest *Manifest) error {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(i.cfg.Advanced.MaxWorkers)

	for _, rec := range batch {
		rec := rec
		group.Go(func() error {
			// A failed sibling may already have cancelled the run.
			if err := ctx.Err(); err != nil {
				return err
			}
			result := i.importRecord(ctx, kind, rec)
			// A call cut short by run cancellation is not a record
			// failure; keep it out of the manifest.
			if result.Outcome == OutcomeFailed && ctx.Err() != nil {
				return ctx.Err()
			}
			manifest.Record(result)
			if result.Outcome == OutcomeFailed && !i.cfg.Import.SkipOnError {
				return &errAbort{
					kind:       kind,
					identifier: result.Identifier,
					cause:      errors.New(result.Reason),
				}
			}
			return nil
		})
	}
	return group.Wait()
}

// importRecord upserts a single record: strip source identity, rewrite
// references to target identifiers, then create or update by
// fully-qualified name.
func (i *Importer) importRecord(ctx context.Context, kind schema.Kind, rec catalog.Record) RecordResult {
	fqn := rec.FullyQualifiedName()
	result := RecordResult{Kind: kind, Identifier: fqn}

	prepared := rec.WithoutIdentity()

	refs, err := prepared.References(i.reg, kind)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Reason = err.Error()
		return result
	}
	for _, ref := range refs {
		resolved, err := i.resolver.resolve(ctx, ref, i.cfg.Import.CreateMissingDependencies)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				// Only a tolerant run may skip past an unresolvable
				// reference; otherwise the failure stops the import.
				result.Reason = fmt.Sprintf("missing dependency: %s %q", ref.Kind, ref.FQN)
				if i.cfg.Import.SkipOnError {
					result.Outcome = OutcomeSkipped
				} else {
					result.Outcome = OutcomeFailed
				}
				return result
			}
			result.Outcome = OutcomeFailed
			result.Reason = fmt.Sprintf("failed to resolve %s %q: %v", ref.Kind, ref.FQN, err)
			return result
		}
		prepared, err = prepared.WithReference(resolved)
		if err != nil {
			result.Outcome = OutcomeFailed
			result.Reason = err.Error()
			return result
		}
	}

	existing, err := i.target.GetByName(ctx, kind, fqn)
	switch {
	case err == nil:
		if !i.cfg.Import.UpdateExisting {
			result.Outcome = OutcomeSkipped
			result.Reason = "already exists"
			return result
		}
		if !i.DryRun {
			if _, err := i.target.Update(ctx, kind, existing.ID(), prepared); err != nil {
				result.Outcome = OutcomeFailed
				result.Reason = err.Error()
				return result
			}
		}
		result.Outcome = OutcomeUpdated
		return result

	case errors.Is(err, catalog.ErrNotFound):
		if i.DryRun {
			i.resolver.markCreated(catalog.Ref{Kind: kind, FQN: fqn})
			result.Outcome = OutcomeCreated
			return result
		}
		if _, err := i.target.Create(ctx, kind, prepared); err != nil {
			var remoteErr *catalog.RemoteError
			if errors.As(err, &remoteErr) && remoteErr.StatusCode == 409 {
				return i.confirmCommittedCreate(ctx, kind, fqn, prepared, result)
			}
			result.Outcome = OutcomeFailed
			result.Reason = err.Error()
			return result
		}
		result.Outcome = OutcomeCreated
		return result

	default:
		result.Outcome = OutcomeFailed
		result.Reason = err.Error()
		return result
	}
}

// confirmCommittedCreate handles a 409 from a retried create. An earlier
// attempt may have committed server-side while its response was lost, which
// makes the pre-create absence check stale; existence on the target decides
// the outcome, not the conflict error.
func (i *Importer) confirmCommittedCreate(ctx context.Context, kind schema.Kind, fqn string, prepared catalog.Record, result RecordResult) RecordResult {
	existing, err := i.target.GetByName(ctx, kind, fqn)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Reason = fmt.Sprintf("create conflict for %q and existence re-check failed: %v", fqn, err)
		return result
	}
	if i.cfg.Import.UpdateExisting {
		if _, err := i.target.Update(ctx, kind, existing.ID(), prepared); err != nil {
			result.Outcome = OutcomeFailed
			result.Reason = err.Error()
			return result
		}
		result.Outcome = OutcomeUpdated
		return result
	}
	result.Outcome = OutcomeCreated
	return result
}

// refResolver maps reference values from the source catalog onto target
// records, caching lookups across the run. With create_missing_dependencies
// it creates a minimal placeholder for references the target doesn't have.
type refResolver struct {
	target catalog.Client
	dryRun bool

	mu      sync.Mutex
	cache   map[string]catalog.Ref
	created map[string]bool // dry-run bookkeeping of would-created records
}

func newRefResolver(target catalog.Client, dryRun bool) *refResolver {
	return &refResolver{
		target:  target,
		dryRun:  dryRun,
		cache:   make(map[string]catalog.Ref),
		created: make(map[string]bool),
	}
}

func refKey(ref catalog.Ref) string {
	return string(ref.Kind) + "/" + ref.FQN
}

// markCreated notes a record a dry run would have created, so later
// references to it resolve instead of reporting a missing dependency.
func (r *refResolver) markCreated(ref catalog.Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created[refKey(ref)] = true
}

// resolve returns the reference rewritten with the target's identifier. It
// returns catalog.ErrNotFound when the dependency is absent and must not be
// created.
func (r *refResolver) resolve(ctx context.Context, ref catalog.Ref, createMissing bool) (catalog.Ref, error) {
	if ref.FQN == "" {
		return catalog.Ref{}, fmt.Errorf("reference to %s has no fully-qualified name", ref.Kind)
	}
	key := refKey(ref)

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	wasCreated := r.created[key]
	r.mu.Unlock()

	rec, err := r.target.GetByName(ctx, ref.Kind, ref.FQN)
	if err == nil {
		resolved := catalog.Ref{Kind: ref.Kind, ID: rec.ID(), Name: rec.Name(), FQN: rec.FullyQualifiedName()}
		r.mu.Lock()
		r.cache[key] = resolved
		r.mu.Unlock()
		return resolved, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return catalog.Ref{}, err
	}

	if wasCreated {
		// A dry run already "created" this record; keep the source
		// reference as the would-be value.
		return catalog.Ref{Kind: ref.Kind, Name: ref.Name, FQN: ref.FQN}, nil
	}
	if !createMissing {
		return catalog.Ref{}, err
	}

	// Minimal placeholder: just enough identity for the reference to
	// resolve. The real record can be imported or recreated later.
	placeholder := catalog.NewRecord(map[string]any{
		"name":               placeholderName(ref),
		"fullyQualifiedName": ref.FQN,
		"description":        "Placeholder created during metadata import",
	})

	if r.dryRun {
		r.markCreated(ref)
		return catalog.Ref{Kind: ref.Kind, Name: ref.Name, FQN: ref.FQN}, nil
	}

	stored, err := r.target.Create(ctx, ref.Kind, placeholder)
	if err != nil {
		// Another worker may have created it between lookup and create.
		var remoteErr *catalog.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.StatusCode == 409 {
			return r.resolve(ctx, ref, false)
		}
		return catalog.Ref{}, fmt.Errorf("failed to create missing %s %q: %w", ref.Kind, ref.FQN, err)
	}
	resolved := catalog.Ref{Kind: ref.Kind, ID: stored.ID(), Name: stored.Name(), FQN: stored.FullyQualifiedName()}
	r.mu.Lock()
	r.cache[key] = resolved
	r.mu.Unlock()
	return resolved, nil
}

func placeholderName(ref catalog.Ref) string {
	if ref.Name != "" {
		return ref.Name
	}
	return ref.FQN
}
