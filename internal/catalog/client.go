package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dbsmedya/metaport/internal/schema"
)

// ErrNotFound is returned by GetByName when no record with the given
// fully-qualified name exists. Absence is an expected answer during upserts,
// not a failure.
var ErrNotFound = errors.New("record not found")

// RemoteError is a failed remote call carrying enough status classification
// for the retry controller to bucket it.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("catalog request failed: status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the failure is transient: timeouts, rate limits,
// and server-side errors. Validation and other 4xx-class failures are
// terminal.
func (e *RemoteError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

// IsRetryable classifies an error for the retry controller. Unreachable
// hosts and deadline expiry count as one retryable failure; terminal remote
// errors and everything else are not retried.
func IsRetryable(err error) bool {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Transport-level failures (connection refused, reset) surface as
	// *url.Error and are worth retrying.
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// Page is one page of a kind listing.
type Page struct {
	Records       []Record
	NextPageToken string // empty when this is the last page
}

// Client is the capability surface metaport consumes from a catalog
// instance. All four operations report failures as *RemoteError where a
// status class is available.
type Client interface {
	// ListByKind pages through all records of a kind. Pagination is by
	// opaque page token so listings stay resumable under concurrent remote
	// mutation.
	ListByKind(ctx context.Context, kind schema.Kind, pageToken string, pageSize int) (Page, error)

	// GetByName looks up a record by fully-qualified name, returning
	// ErrNotFound when absent.
	GetByName(ctx context.Context, kind schema.Kind, fqName string) (Record, error)

	// Create writes a new record and returns the stored form.
	Create(ctx context.Context, kind schema.Kind, rec Record) (Record, error)

	// Update overwrites the record with the given identifier.
	Update(ctx context.Context, kind schema.Kind, id string, rec Record) (Record, error)

	// Endpoint identifies the instance for manifests and logs.
	Endpoint() string
}
