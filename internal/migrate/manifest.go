// Package migrate implements the export and import pipelines that move
// selected metadata records between catalog instances through NDJSON
// artifacts.
package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/google/uuid"

	"github.com/dbsmedya/metaport/internal/schema"
)

// SummaryFileName is the manifest file written next to the artifacts.
const SummaryFileName = "summary.json"

// Outcome classifies what happened to one record during import.
type Outcome string

const (
	OutcomeCreated Outcome = "CREATED"
	OutcomeUpdated Outcome = "UPDATED"
	OutcomeSkipped Outcome = "SKIPPED"
	OutcomeFailed  Outcome = "FAILED"
)

// RecordResult is one record's import outcome, reported by pipeline workers
// to the manifest.
type RecordResult struct {
	Kind       schema.Kind
	Identifier string
	Outcome    Outcome
	Reason     string // set for SKIPPED and FAILED
}

// RecordError is a per-record failure entry in the manifest.
type RecordError struct {
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// KindSummary accumulates per-kind counters. A kind with all-zero counters
// still appears in the manifest: it was processed and had nothing to move.
type KindSummary struct {
	Kind     schema.Kind   `json:"kind"`
	Exported int           `json:"exported"`
	Created  int           `json:"created"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Errors   []RecordError `json:"errors,omitempty"`
}

// Manifest is the transfer manifest of one run: identity, endpoints, and
// per-kind counters in processing order. It is safe for concurrent use; the
// pipeline workers report into it while kind phases run.
type Manifest struct {
	mu sync.Mutex

	RunID          string
	Operation      string
	SourceEndpoint string
	TargetEndpoint string
	DryRun         bool
	StartedAt      time.Time
	CompletedAt    time.Time

	kinds *orderedmap.OrderedMap[schema.Kind, *KindSummary]

	// flushMu serializes Flush: concurrent flushes share one temp file
	// path, and a racing rename would abort a healthy run.
	flushMu sync.Mutex
	path    string
}

// NewManifest starts a manifest for an export or import run. path is where
// Flush persists it; empty disables persistence (tests, dry probing).
func NewManifest(operation, path string, dryRun bool) *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		Operation: operation,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
		kinds:     orderedmap.NewOrderedMap[schema.Kind, *KindSummary](),
		path:      path,
	}
}

// SetEndpoints records which instances the run touched.
func (m *Manifest) SetEndpoints(source, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourceEndpoint = source
	m.TargetEndpoint = target
}

// EnsureKind registers a kind so it appears in the manifest even when no
// record of it moves.
func (m *Manifest) EnsureKind(kind schema.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureKindLocked(kind)
}

func (m *Manifest) ensureKindLocked(kind schema.Kind) *KindSummary {
	if summary, ok := m.kinds.Get(kind); ok {
		return summary
	}
	summary := &KindSummary{Kind: kind}
	m.kinds.Set(kind, summary)
	return summary
}

// AddExported bumps a kind's exported counter.
func (m *Manifest) AddExported(kind schema.Kind, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureKindLocked(kind).Exported += n
}

// Record folds one import outcome into the manifest.
func (m *Manifest) Record(result RecordResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := m.ensureKindLocked(result.Kind)
	switch result.Outcome {
	case OutcomeCreated:
		summary.Created++
	case OutcomeUpdated:
		summary.Updated++
	case OutcomeSkipped:
		summary.Skipped++
	case OutcomeFailed:
		summary.Failed++
		summary.Errors = append(summary.Errors, RecordError{
			Identifier: result.Identifier,
			Message:    result.Reason,
		})
	}
}

// Summaries returns the per-kind summaries in processing order.
func (m *Manifest) Summaries() []KindSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]KindSummary, 0, m.kinds.Len())
	for kind := m.kinds.Front(); kind != nil; kind = kind.Next() {
		out = append(out, *kind.Value)
	}
	return out
}

// Summary returns the accumulated counters of one kind.
func (m *Manifest) Summary(kind schema.Kind) (KindSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary, ok := m.kinds.Get(kind)
	if !ok {
		return KindSummary{}, false
	}
	return *summary, true
}

// Totals sums the counters across kinds.
func (m *Manifest) Totals() KindSummary {
	var total KindSummary
	for _, summary := range m.Summaries() {
		total.Exported += summary.Exported
		total.Created += summary.Created
		total.Updated += summary.Updated
		total.Skipped += summary.Skipped
		total.Failed += summary.Failed
	}
	return total
}

type manifestDocument struct {
	RunID          string        `json:"run_id"`
	Operation      string        `json:"operation"`
	SourceEndpoint string        `json:"source_endpoint,omitempty"`
	TargetEndpoint string        `json:"target_endpoint,omitempty"`
	DryRun         bool          `json:"dry_run,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	Kinds          []KindSummary `json:"kinds"`
}

// MarshalJSON renders the manifest with kinds in processing order.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	doc := manifestDocument{
		RunID:          m.RunID,
		Operation:      m.Operation,
		SourceEndpoint: m.SourceEndpoint,
		TargetEndpoint: m.TargetEndpoint,
		DryRun:         m.DryRun,
		StartedAt:      m.StartedAt,
		Kinds:          m.Summaries(),
	}
	if !m.CompletedAt.IsZero() {
		completed := m.CompletedAt
		doc.CompletedAt = &completed
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Flush persists the manifest to disk. The pipeline calls it after each kind
// phase, so an interrupted run still leaves an accurate partial manifest.
// The write goes through a temp file and rename to stay atomic.
func (m *Manifest) Flush() error {
	if m.path == "" {
		return nil
	}
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// Finish stamps the completion time and flushes.
func (m *Manifest) Finish() error {
	m.mu.Lock()
	m.CompletedAt = time.Now().UTC()
	m.mu.Unlock()
	return m.Flush()
}

// SummaryPath returns the manifest location for an artifact directory.
func SummaryPath(dir string) string {
	return filepath.Join(dir, SummaryFileName)
}
