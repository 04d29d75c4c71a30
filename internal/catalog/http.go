package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dbsmedya/metaport/internal/schema"
)

// restPaths maps an entity kind to its REST collection path on the catalog
// service.
var restPaths = map[schema.Kind]string{
	schema.KindTeam:            "teams",
	schema.KindUser:            "users",
	schema.KindPolicy:          "policies",
	schema.KindDomain:          "domains",
	schema.KindDataProduct:     "dataProducts",
	schema.KindGlossary:        "glossaries",
	schema.KindGlossaryTerm:    "glossaryTerms",
	schema.KindClassification:  "classifications",
	schema.KindTag:             "tags",
	schema.KindDatabaseService: "services/databaseServices",
	schema.KindDatabase:        "databases",
	schema.KindDatabaseSchema:  "databaseSchemas",
	schema.KindTable:           "tables",
	schema.KindDashboard:       "dashboards",
	schema.KindChart:           "charts",
	schema.KindPipeline:        "pipelines",
}

// HTTPClient talks to one catalog instance over its REST API.
type HTTPClient struct {
	baseURL  string
	jwtToken string
	client   *http.Client
}

// NewHTTPClient creates a client for the given instance. The timeout bounds
// every individual request; retrying is the caller's concern.
func NewHTTPClient(serverURL, jwtToken string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimRight(serverURL, "/"),
		jwtToken: jwtToken,
		client:   &http.Client{Timeout: timeout},
	}
}

// Endpoint identifies the instance for manifests and logs.
func (c *HTTPClient) Endpoint() string {
	return c.baseURL
}

// Ping verifies the instance is reachable by listing a single domain.
func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.ListByKind(ctx, schema.KindDomain, "", 1)
	return err
}

// listResponse is the envelope the catalog wraps listings in.
type listResponse struct {
	Data   []json.RawMessage `json:"data"`
	Paging struct {
		After string `json:"after"`
	} `json:"paging"`
}

// ListByKind pages through records of a kind. The include=all parameter asks
// the catalog for soft-deleted records too; filtering them out is the
// selection filter's decision, not the transport's.
func (c *HTTPClient) ListByKind(ctx context.Context, kind schema.Kind, pageToken string, pageSize int) (Page, error) {
	path, err := c.collectionPath(kind)
	if err != nil {
		return Page{}, err
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(pageSize))
	query.Set("include", "all")
	if pageToken != "" {
		query.Set("after", pageToken)
	}

	body, err := c.do(ctx, http.MethodGet, path+"?"+query.Encode(), nil)
	if err != nil {
		return Page{}, err
	}

	var envelope listResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Page{}, fmt.Errorf("failed to decode %s listing: %w", kind, err)
	}

	page := Page{NextPageToken: envelope.Paging.After}
	for _, raw := range envelope.Data {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Page{}, fmt.Errorf("failed to decode %s record: %w", kind, err)
		}
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

// GetByName looks up a record by fully-qualified name.
func (c *HTTPClient) GetByName(ctx context.Context, kind schema.Kind, fqName string) (Record, error) {
	path, err := c.collectionPath(kind)
	if err != nil {
		return Record{}, err
	}

	body, err := c.do(ctx, http.MethodGet, path+"/name/"+url.PathEscape(fqName), nil)
	if err != nil {
		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusNotFound {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode %s record: %w", kind, err)
	}
	return rec, nil
}

// Create writes a new record.
func (c *HTTPClient) Create(ctx context.Context, kind schema.Kind, rec Record) (Record, error) {
	path, err := c.collectionPath(kind)
	if err != nil {
		return Record{}, err
	}
	return c.submit(ctx, http.MethodPost, path, kind, rec)
}

// Update overwrites an existing record.
func (c *HTTPClient) Update(ctx context.Context, kind schema.Kind, id string, rec Record) (Record, error) {
	path, err := c.collectionPath(kind)
	if err != nil {
		return Record{}, err
	}
	return c.submit(ctx, http.MethodPut, path+"/"+url.PathEscape(id), kind, rec)
}

func (c *HTTPClient) submit(ctx context.Context, method, path string, kind schema.Kind, rec Record) (Record, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode %s record: %w", kind, err)
	}

	body, err := c.do(ctx, method, path, payload)
	if err != nil {
		return Record{}, err
	}

	var stored Record
	if err := json.Unmarshal(body, &stored); err != nil {
		return Record{}, fmt.Errorf("failed to decode %s response: %w", kind, err)
	}
	return stored, nil
}

func (c *HTTPClient) collectionPath(kind schema.Kind) (string, error) {
	path, known := restPaths[kind]
	if !known {
		return "", &schema.UnknownKindError{Kind: kind}
	}
	return c.baseURL + "/v1/" + path, nil
}

// do performs one HTTP request and returns the response body. Non-2xx
// statuses become *RemoteError so callers can classify them.
func (c *HTTPClient) do(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.jwtToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.jwtToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
