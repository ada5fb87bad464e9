package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"
)

// Schema describes how a collection's index is created. Both fields are raw
// JSON fragments forwarded to the engine verbatim; nil means engine defaults.
type Schema struct {
	Settings json.RawMessage
	Mappings json.RawMessage
}

// Collection is the proxy through which document operations for one named
// collection are issued. Every call funnels through the store's retry loop,
// so a Collection stays valid across reconnects and credential rotations of
// its parent store.
type Collection struct {
	store  *Store
	name   string
	schema *Schema
}

// archiveSuffix names the archive index paired with a primary index.
const archiveSuffix = "-ma"

// Name returns the collection name, which is also the engine index name.
func (c *Collection) Name() string { return c.name }

// searchIndices returns the indices a search should span. Writes always go
// to the primary; reads include the archive index when the store grants
// archive access to this collection.
func (c *Collection) searchIndices() []string {
	if c.store.ArchiveEnabled(c.name) {
		return []string{c.name, c.name + archiveSuffix}
	}
	return []string{c.name}
}

// EnsureExists creates the collection's index when it is missing, applying
// the registered schema. Concurrent creators racing on the same index are
// tolerated.
func (c *Collection) EnsureExists(ctx context.Context) error {
	_, err := c.store.Execute(ctx, Operation{
		Name:  "indices.exists",
		Index: c.name,
		Do: func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
			return opensearchapi.IndicesExistsRequest{Index: []string{c.name}}.Do(ctx, client)
		},
	})
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		return err
	}

	_, err = c.store.Execute(ctx, Operation{
		Name:  "indices.create",
		Index: c.name,
		Do: func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
			req := opensearchapi.IndicesCreateRequest{Index: c.name}
			if body := c.createBody(); body != nil {
				req.Body = opensearchutil.NewJSONReader(body)
			}
			return req.Do(ctx, client)
		},
	})
	if err != nil {
		// Another writer created the index between the check and the create.
		if errors.As(err, &apiErr) && apiErr.Type == "resource_already_exists_exception" {
			return nil
		}
		return err
	}
	return nil
}

func (c *Collection) createBody() map[string]any {
	if c.schema == nil {
		return nil
	}
	body := make(map[string]any, 2)
	if len(c.schema.Settings) > 0 {
		body["settings"] = c.schema.Settings
	}
	if len(c.schema.Mappings) > 0 {
		body["mappings"] = c.schema.Mappings
	}
	if len(body) == 0 {
		return nil
	}
	return body
}

// Create inserts a new document under id, generating an id when empty, and
// returns the id the document was stored under. Writing over an existing
// document surfaces ErrVersionConflict.
func (c *Collection) Create(ctx context.Context, id string, doc any) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	_, err := c.store.Execute(ctx, Operation{
		Name:           "index",
		Index:          c.name,
		RaiseConflicts: true,
		Do: func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
			return opensearchapi.IndexRequest{
				Index:      c.name,
				DocumentID: id,
				OpType:     "create",
				Body:       opensearchutil.NewJSONReader(doc),
			}.Do(ctx, client)
		},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Read fetches the document stored under id and decodes it into out, which
// may be nil to only check existence. Missing documents surface
// ErrDocumentNotFound.
func (c *Collection) Read(ctx context.Context, id string, out any) error {
	res, err := c.store.Execute(ctx, Operation{
		Name:  "get",
		Index: c.name,
		Do: func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
			return opensearchapi.GetRequest{Index: c.name, DocumentID: id}.Do(ctx, client)
		},
	})
	if err != nil {
		return c.mapNotFound(err, id)
	}

	if out == nil {
		return nil
	}
	var envelope struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := res.Decode(&envelope); err != nil {
		return errors.Join(ErrUnexpectedResponse, err)
	}
	return json.Unmarshal(envelope.Source, out)
}

// Update applies a partial document to id. Conflicts with concurrent
// writers are absorbed and the update is retried until it lands. Missing
// documents surface ErrDocumentNotFound.
func (c *Collection) Update(ctx context.Context, id string, partial any) error {
	_, err := c.store.Execute(ctx, Operation{
		Name:  "update",
		Index: c.name,
		Do: func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
			return opensearchapi.UpdateRequest{
				Index:      c.name,
				DocumentID: id,
				Body:       opensearchutil.NewJSONReader(map[string]any{"doc": partial}),
			}.Do(ctx, client)
		},
	})
	return c.mapNotFound(err, id)
}

// Delete removes the document stored under id. Missing documents surface
// ErrDocumentNotFound.
func (c *Collection) Delete(ctx context.Context, id string) error {
	_, err := c.store.Execute(ctx, Operation{
		Name:  "delete",
		Index: c.name,
		Do: func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
			return opensearchapi.DeleteRequest{Index: c.name, DocumentID: id}.Do(ctx, client)
		},
	})
	return c.mapNotFound(err, id)
}

func (c *Collection) mapNotFound(err error, id string) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, c.name, id)
	}
	return err
}

// SearchResult is one page of query hits.
type SearchResult struct {
	// Total is the number of documents matching the query, which may exceed
	// the number of returned hits.
	Total int64
	Hits  []Hit
}

// Hit is a single matched document.
type Hit struct {
	ID     string
	Score  float64
	Source json.RawMessage
}

// Search runs a Lucene query-string search over the collection and returns
// up to size hits, or the engine default when size <= 0. Searches span the
// archive index when the store grants archive access, and survive indices
// rolling over mid-query.
func (c *Collection) Search(ctx context.Context, query string, size int) (*SearchResult, error) {
	res, err := c.store.Execute(ctx, Operation{
		Name:  "search",
		Index: c.name,
		Do: func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
			req := opensearchapi.SearchRequest{
				Index: c.searchIndices(),
				Query: query,
			}
			if size > 0 {
				req.Size = opensearchapi.IntPtr(size)
			}
			return req.Do(ctx, client)
		},
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string          `json:"_id"`
				Score  float64         `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := res.Decode(&envelope); err != nil {
		return nil, errors.Join(ErrUnexpectedResponse, err)
	}

	result := &SearchResult{
		Total: envelope.Hits.Total.Value,
		Hits:  make([]Hit, 0, len(envelope.Hits.Hits)),
	}
	for _, h := range envelope.Hits.Hits {
		result.Hits = append(result.Hits, Hit{ID: h.ID, Score: h.Score, Source: h.Source})
	}
	return result, nil
}

// UpdateByQuery applies script to every document matching the Lucene query
// and returns the number of updated documents. Conflicts with concurrent
// writers are absorbed: partial passes are retried and their counts folded
// into the returned total.
func (c *Collection) UpdateByQuery(ctx context.Context, query string, script json.RawMessage) (int64, error) {
	res, err := c.store.Execute(ctx, Operation{
		Name:  "update_by_query",
		Index: c.name,
		Do: func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
			req := opensearchapi.UpdateByQueryRequest{
				Index: []string{c.name},
				Query: query,
			}
			if len(script) > 0 {
				req.Body = opensearchutil.NewJSONReader(map[string]any{"script": script})
			}
			return req.Do(ctx, client)
		},
	})
	if err != nil {
		return 0, err
	}
	return res.Updated, nil
}

// DeleteByQuery removes every document matching the Lucene query and returns
// the number of deleted documents, counting deletions reported by absorbed
// partial passes.
func (c *Collection) DeleteByQuery(ctx context.Context, query string) (int64, error) {
	res, err := c.store.Execute(ctx, Operation{
		Name:  "delete_by_query",
		Index: c.name,
		Do: func(ctx context.Context, client *opensearchgo.Client) (*opensearchapi.Response, error) {
			return opensearchapi.DeleteByQueryRequest{
				Index: []string{c.name},
				Query: query,
			}.Do(ctx, client)
		},
	})
	if err != nil {
		return 0, err
	}
	return res.Deleted, nil
}
