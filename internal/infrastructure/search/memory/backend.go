// Package memory is an in-process search backend built on bleve. It mirrors
// the Elasticsearch bulk and search contracts closely enough for local runs
// and tests, and keeps the original JSON source of every record.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
)

const defaultSearchSize = 10

var errClosed = errors.New("memory backend is closed")

type collection struct {
	index   bleve.Index
	sources map[string]map[string]any
	version map[string]int64
}

type Backend struct {
	mu          sync.RWMutex
	collections map[string]*collection
	closed      bool
}

func New() *Backend {
	return &Backend{collections: make(map[string]*collection)}
}

func (b *Backend) Ping(context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return domain.WrapError(domain.ErrUnavailable, "ping", errClosed)
	}
	return nil
}

func (b *Backend) Bulk(_ context.Context, ops []domain.BulkOperation) (*domain.BulkResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errClosed
	}

	resp := &domain.BulkResponse{Items: make([]domain.BulkItemResult, 0, len(ops))}
	batches := make(map[string]*bleve.Batch)
	for _, op := range ops {
		item, source, err := b.prepare(op.Index, op.ID, op.Document)
		if err != nil {
			return nil, err
		}
		resp.Items = append(resp.Items, item)
		if item.Error != nil {
			resp.Errors = true
			continue
		}

		coll := b.collections[item.Index]
		batch, ok := batches[item.Index]
		if !ok {
			batch = coll.index.NewBatch()
			batches[item.Index] = batch
		}
		if err := batch.Index(item.ID, source); err != nil {
			return nil, fmt.Errorf("index %s/%s: %w", item.Index, item.ID, err)
		}
		coll.sources[item.ID] = source
		coll.version[item.ID]++
	}

	for name, batch := range batches {
		if err := b.collections[name].index.Batch(batch); err != nil {
			return nil, fmt.Errorf("execute batch for %s: %w", name, err)
		}
	}
	return resp, nil
}

func (b *Backend) IndexDocument(_ context.Context, index, id string, document map[string]any) (*domain.IndexDocumentResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errClosed
	}

	item, source, err := b.prepare(index, id, document)
	if err != nil {
		return nil, err
	}
	if item.Error != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "index document", errors.New(item.Error.Reason))
	}

	coll := b.collections[item.Index]
	if err := coll.index.Index(item.ID, source); err != nil {
		return nil, fmt.Errorf("index %s/%s: %w", item.Index, item.ID, err)
	}
	result := "created"
	if _, exists := coll.sources[item.ID]; exists {
		result = "updated"
	}
	coll.sources[item.ID] = source
	coll.version[item.ID]++

	return &domain.IndexDocumentResult{
		Index:   item.Index,
		ID:      item.ID,
		Result:  result,
		Version: coll.version[item.ID],
	}, nil
}

// prepare validates one write and converts its document into a JSON source.
// Validation failures are reported on the item, the way a bulk reply does.
func (b *Backend) prepare(index, id string, document any) (domain.BulkItemResult, map[string]any, error) {
	if id == "" {
		id = uuid.NewString()
	}
	item := domain.BulkItemResult{Index: index, ID: id, Status: 201}

	if reason := invalidIndexName(index); reason != "" {
		item.Status = 400
		item.Error = &domain.BulkItemError{Index: index, ID: id, Status: 400, Type: "invalid_index_name_exception", Reason: reason}
		return item, nil, nil
	}
	source, err := toSource(document)
	if err != nil {
		item.Status = 400
		item.Error = &domain.BulkItemError{Index: index, ID: id, Status: 400, Type: "mapper_parsing_exception", Reason: err.Error()}
		return item, nil, nil
	}

	coll, err := b.collection(index)
	if err != nil {
		return item, nil, err
	}
	if _, exists := coll.sources[id]; exists {
		item.Status = 200
	}
	return item, source, nil
}

func (b *Backend) collection(name string) (*collection, error) {
	if coll, ok := b.collections[name]; ok {
		return coll, nil
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", name, err)
	}
	coll := &collection{
		index:   idx,
		sources: make(map[string]map[string]any),
		version: make(map[string]int64),
	}
	b.collections[name] = coll
	return coll, nil
}

func (b *Backend) Search(ctx context.Context, index string, body map[string]any) (*domain.SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}

	coll, ok := b.collections[index]
	if !ok {
		return &domain.SearchResult{Hits: []domain.SearchHit{}}, nil
	}

	q, err := translateQuery(body["query"])
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", err)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = searchSize(body["size"])

	res, err := coll.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}

	out := &domain.SearchResult{
		Total: int64(res.Total),
		Hits:  make([]domain.SearchHit, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		out.Hits = append(out.Hits, domain.SearchHit{
			Index:  index,
			ID:     hit.ID,
			Score:  hit.Score,
			Source: coll.sources[hit.ID],
		})
	}
	return out, nil
}

// Close drops every collection. Later calls fail as if the backend were unreachable.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for name, coll := range b.collections {
		if err := coll.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index %s: %w", name, err))
		}
	}
	b.collections = nil
	return errors.Join(errs...)
}

// Indices lists the collections that received at least one write.
func (b *Backend) Indices() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.collections))
	for name := range b.collections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Source returns the stored record, if any.
func (b *Backend) Source(index, id string) (map[string]any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	coll, ok := b.collections[index]
	if !ok {
		return nil, false
	}
	source, ok := coll.sources[id]
	return source, ok
}

func toSource(document any) (map[string]any, error) {
	raw, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var source map[string]any
	if err := json.Unmarshal(raw, &source); err != nil {
		return nil, fmt.Errorf("document is not a json object: %w", err)
	}
	if source == nil {
		return nil, errors.New("document is empty")
	}
	return source, nil
}

func invalidIndexName(name string) string {
	switch {
	case name == "":
		return "index name must not be empty"
	case name != strings.ToLower(name):
		return fmt.Sprintf("index name [%s] must be lowercase", name)
	case strings.ContainsAny(name, `\/*?"<>| ,#:`):
		return fmt.Sprintf("index name [%s] contains an illegal character", name)
	case strings.HasPrefix(name, "-"), strings.HasPrefix(name, "_"), strings.HasPrefix(name, "+"):
		return fmt.Sprintf("index name [%s] must not start with '-', '_' or '+'", name)
	}
	return ""
}

// translateQuery supports the query clauses the service issues itself:
// match_all, match, term and query_string.
func translateQuery(raw any) (query.Query, error) {
	if raw == nil {
		return bleve.NewMatchAllQuery(), nil
	}
	clause, ok := raw.(map[string]any)
	if !ok || len(clause) != 1 {
		return nil, errors.New("query must be an object with exactly one clause")
	}

	for kind, body := range clause {
		switch kind {
		case "match_all":
			return bleve.NewMatchAllQuery(), nil
		case "match":
			field, value, err := singleField(body)
			if err != nil {
				return nil, fmt.Errorf("match: %w", err)
			}
			if nested, ok := value.(map[string]any); ok {
				value = nested["query"]
			}
			text, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("match: query for field %s must be a string", field)
			}
			q := bleve.NewMatchQuery(text)
			q.SetField(field)
			return q, nil
		case "term":
			field, value, err := singleField(body)
			if err != nil {
				return nil, fmt.Errorf("term: %w", err)
			}
			if nested, ok := value.(map[string]any); ok {
				value = nested["value"]
			}
			q := bleve.NewTermQuery(strings.ToLower(fmt.Sprint(value)))
			q.SetField(field)
			return q, nil
		case "query_string":
			params, ok := body.(map[string]any)
			if !ok {
				return nil, errors.New("query_string: expected an object")
			}
			text, _ := params["query"].(string)
			if strings.TrimSpace(text) == "" {
				return nil, errors.New("query_string: query is required")
			}
			return bleve.NewQueryStringQuery(text), nil
		default:
			return nil, fmt.Errorf("unsupported query clause %q", kind)
		}
	}
	return nil, errors.New("empty query")
}

func singleField(body any) (string, any, error) {
	fields, ok := body.(map[string]any)
	if !ok || len(fields) != 1 {
		return "", nil, errors.New("expected exactly one field")
	}
	for field, value := range fields {
		return field, value, nil
	}
	return "", nil, errors.New("expected exactly one field")
}

func searchSize(raw any) int {
	switch v := raw.(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return defaultSearchSize
}
