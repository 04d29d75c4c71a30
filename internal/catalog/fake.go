package catalog

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/dbsmedya/metaport/internal/schema"
)

// Fake is an in-memory Client used as a test double by the selector and
// pipeline tests, standing in for a catalog instance.
type Fake struct {
	mu       sync.Mutex
	endpoint string
	records  map[schema.Kind][]Record

	// failWrites maps kind/fqName to the error Create and Update return
	// for that record. failLookups does the same for GetByName.
	failWrites  map[string]error
	failLookups map[string]error

	CreateCalls int
	UpdateCalls int
	ListCalls   int
}

// NewFake creates an empty in-memory catalog instance.
func NewFake(endpoint string) *Fake {
	return &Fake{
		endpoint:    endpoint,
		records:     make(map[schema.Kind][]Record),
		failWrites:  make(map[string]error),
		failLookups: make(map[string]error),
	}
}

// Seed inserts a record directly, without going through Create.
func (f *Fake) Seed(kind schema.Kind, payload map[string]any) Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := payload["id"]; !ok {
		payload["id"] = uuid.NewString()
	}
	rec := NewRecord(payload)
	f.records[kind] = append(f.records[kind], rec)
	return rec
}

// FailWrites makes Create and Update fail for the given record.
func (f *Fake) FailWrites(kind schema.Kind, fqName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites[failKey(kind, fqName)] = err
}

// FailLookups makes GetByName fail for the given record.
func (f *Fake) FailLookups(kind schema.Kind, fqName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failLookups[failKey(kind, fqName)] = err
}

// Records returns the stored records of a kind in insertion order.
func (f *Fake) Records(kind schema.Kind) []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Record, len(f.records[kind]))
	copy(out, f.records[kind])
	return out
}

// Endpoint implements Client.
func (f *Fake) Endpoint() string {
	return f.endpoint
}

// ListByKind implements Client with offset-encoded page tokens.
func (f *Fake) ListByKind(ctx context.Context, kind schema.Kind, pageToken string, pageSize int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++

	if !isKnownKind(kind) {
		return Page{}, &schema.UnknownKindError{Kind: kind}
	}

	offset := 0
	if pageToken != "" {
		var err error
		offset, err = strconv.Atoi(pageToken)
		if err != nil {
			return Page{}, &RemoteError{StatusCode: 400, Message: "bad page token"}
		}
	}

	all := f.records[kind]
	if offset >= len(all) {
		return Page{}, nil
	}

	end := offset + pageSize
	if end > len(all) {
		end = len(all)
	}

	page := Page{Records: append([]Record(nil), all[offset:end]...)}
	if end < len(all) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// GetByName implements Client.
func (f *Fake) GetByName(ctx context.Context, kind schema.Kind, fqName string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failLookups[failKey(kind, fqName)]; err != nil {
		return Record{}, err
	}

	for _, rec := range f.records[kind] {
		if rec.FullyQualifiedName() == fqName {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

// Create implements Client, assigning an identifier to the stored record.
func (f *Fake) Create(ctx context.Context, kind schema.Kind, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++

	fqn := rec.FullyQualifiedName()
	if err := f.failWrites[failKey(kind, fqn)]; err != nil {
		return Record{}, err
	}

	for _, existing := range f.records[kind] {
		if existing.FullyQualifiedName() == fqn {
			return Record{}, &RemoteError{StatusCode: 409, Message: "record already exists"}
		}
	}

	payload := rec.clonePayload()
	payload["id"] = uuid.NewString()
	if _, ok := payload["fullyQualifiedName"]; !ok {
		payload["fullyQualifiedName"] = fqn
	}
	stored := NewRecord(payload)
	f.records[kind] = append(f.records[kind], stored)
	return stored, nil
}

// Update implements Client, replacing the record with the given identifier.
func (f *Fake) Update(ctx context.Context, kind schema.Kind, id string, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++

	if err := f.failWrites[failKey(kind, rec.FullyQualifiedName())]; err != nil {
		return Record{}, err
	}

	for i, existing := range f.records[kind] {
		if existing.ID() == id {
			payload := rec.clonePayload()
			payload["id"] = id
			stored := NewRecord(payload)
			f.records[kind][i] = stored
			return stored, nil
		}
	}
	return Record{}, &RemoteError{StatusCode: 404, Message: "no record with id " + id}
}

func failKey(kind schema.Kind, fqName string) string {
	return string(kind) + "/" + fqName
}

func isKnownKind(kind schema.Kind) bool {
	_, ok := restPaths[kind]
	return ok
}
