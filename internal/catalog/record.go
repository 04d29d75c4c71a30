// Package catalog models the remote metadata catalog service: the entity
// record value type, the client capability surface, and its HTTP
// implementation.
package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/dbsmedya/metaport/internal/schema"
)

// refPayloadKeys maps a referenced kind to the payload key its reference
// lives under. Catalog payloads are open documents; these are the only keys
// metaport interprets structurally.
var refPayloadKeys = map[schema.Kind]string{
	schema.KindTeam:            "team",
	schema.KindDomain:          "domain",
	schema.KindDataProduct:     "dataProduct",
	schema.KindGlossary:        "glossary",
	schema.KindClassification:  "classification",
	schema.KindDatabaseService: "service",
	schema.KindDatabase:        "database",
	schema.KindDatabaseSchema:  "databaseSchema",
	schema.KindDashboard:       "dashboard",
}

// Ref is an extracted reference value: a pointer from one record to a record
// of another kind.
type Ref struct {
	Kind schema.Kind
	ID   string
	Name string
	FQN  string
}

// Record is one catalog entity instance: an opaque structured payload with a
// small set of statically known extracted fields. Records are value objects;
// transformations return new records instead of mutating in place.
type Record struct {
	payload map[string]any
}

// NewRecord wraps a decoded payload document.
func NewRecord(payload map[string]any) Record {
	return Record{payload: payload}
}

// ID returns the record's stable identifier, unique within its kind.
func (r Record) ID() string {
	return r.stringField("id")
}

// Name returns the record's short name.
func (r Record) Name() string {
	return r.stringField("name")
}

// FullyQualifiedName returns the human-readable secondary key used for
// idempotent upserts. Falls back to the short name when the catalog did not
// populate one.
func (r Record) FullyQualifiedName() string {
	if fqn := r.stringField("fullyQualifiedName"); fqn != "" {
		return fqn
	}
	return r.Name()
}

// Deleted reports whether the record is soft-deleted in the catalog.
func (r Record) Deleted() bool {
	b, _ := r.payload["deleted"].(bool)
	return b
}

// System reports whether the record is platform-internal (provisioned by the
// catalog service itself rather than by users).
func (r Record) System() bool {
	return r.stringField("provider") == "system"
}

// Reference extracts the reference to the given kind, if the payload carries
// one.
func (r Record) Reference(kind schema.Kind) (Ref, bool) {
	key, known := refPayloadKeys[kind]
	if !known {
		return Ref{}, false
	}
	obj, ok := r.payload[key].(map[string]any)
	if !ok {
		return Ref{}, false
	}
	ref := Ref{
		Kind: kind,
		ID:   stringValue(obj["id"]),
		Name: stringValue(obj["name"]),
		FQN:  stringValue(obj["fullyQualifiedName"]),
	}
	if ref.ID == "" && ref.FQN == "" && ref.Name == "" {
		return Ref{}, false
	}
	return ref, true
}

// References extracts every reference the payload carries, restricted to the
// kinds the registry says this record's kind may reference.
func (r Record) References(reg *schema.Registry, kind schema.Kind) ([]Ref, error) {
	kinds, err := reg.ReferencesOf(kind)
	if err != nil {
		return nil, err
	}
	var refs []Ref
	for _, k := range kinds {
		if ref, ok := r.Reference(k); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// WithReference returns a copy of the record with the reference to ref.Kind
// replaced. The receiver is left untouched.
func (r Record) WithReference(ref Ref) (Record, error) {
	key, known := refPayloadKeys[ref.Kind]
	if !known {
		return Record{}, fmt.Errorf("kind %q has no reference payload key", ref.Kind)
	}
	clone := r.clonePayload()
	obj := map[string]any{"type": string(ref.Kind)}
	if ref.ID != "" {
		obj["id"] = ref.ID
	}
	if ref.Name != "" {
		obj["name"] = ref.Name
	}
	if ref.FQN != "" {
		obj["fullyQualifiedName"] = ref.FQN
	}
	clone[key] = obj
	return Record{payload: clone}, nil
}

// WithoutIdentity returns a copy of the record stripped of instance-local
// fields (id, href, version, audit timestamps) so it can be submitted as a
// create/update request against a different catalog instance.
func (r Record) WithoutIdentity() Record {
	clone := r.clonePayload()
	for _, key := range []string{"id", "href", "version", "updatedAt", "updatedBy", "changeDescription", "incrementalChangeDescription"} {
		delete(clone, key)
	}
	return Record{payload: clone}
}

// Payload returns the underlying document. Callers must treat it as
// read-only; use the With* methods to derive modified records.
func (r Record) Payload() map[string]any {
	return r.payload
}

// MarshalJSON serializes the raw payload document.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.payload == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.payload)
}

// UnmarshalJSON decodes a payload document.
func (r *Record) UnmarshalJSON(data []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	r.payload = payload
	return nil
}

func (r Record) stringField(key string) string {
	return stringValue(r.payload[key])
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// clonePayload copies the top level of the payload. Nested values are
// shared: derived records replace whole top-level entries, never mutate
// nested maps.
func (r Record) clonePayload() map[string]any {
	clone := make(map[string]any, len(r.payload)+1)
	for k, v := range r.payload {
		clone[k] = v
	}
	return clone
}
