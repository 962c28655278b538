package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
)

func TestBulkStoresSourcesAndSearches(t *testing.T) {
	backend := New()
	defer backend.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ops := []domain.BulkOperation{
		{Index: "sentences", ID: "doc_p1_par1_s1", Document: domain.SentenceRecord{SentenceID: "doc_p1_par1_s1", DocumentID: "doc", Text: "the quick brown fox", Timestamp: now}},
		{Index: "sentences", ID: "doc_p1_par1_s2", Document: domain.SentenceRecord{SentenceID: "doc_p1_par1_s2", DocumentID: "doc", Text: "jumps over the lazy dog", Timestamp: now}},
		{Index: "documents", ID: "doc", Document: map[string]any{"title": "Fox report"}},
	}
	resp, err := backend.Bulk(context.Background(), ops)
	if err != nil {
		t.Fatalf("Bulk() error = %v", err)
	}
	if resp.Errors || len(resp.Items) != 3 {
		t.Fatalf("unexpected bulk response: %+v", resp)
	}

	source, ok := backend.Source("sentences", "doc_p1_par1_s1")
	if !ok || source["text"] != "the quick brown fox" || source["document_id"] != "doc" {
		t.Fatalf("unexpected stored source: %+v", source)
	}

	res, err := backend.Search(context.Background(), "sentences", map[string]any{
		"query": map[string]any{"match": map[string]any{"text": "lazy"}},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.Total != 1 || len(res.Hits) != 1 || res.Hits[0].ID != "doc_p1_par1_s2" {
		t.Fatalf("unexpected search result: %+v", res)
	}
	if res.Hits[0].Source["text"] != "jumps over the lazy dog" {
		t.Fatalf("expected source on hit, got %+v", res.Hits[0].Source)
	}

	all, err := backend.Search(context.Background(), "sentences", nil)
	if err != nil {
		t.Fatalf("match_all Search() error = %v", err)
	}
	if all.Total != 2 {
		t.Fatalf("expected 2 hits for match_all, got %d", all.Total)
	}

	if got := backend.Indices(); len(got) != 2 || got[0] != "documents" || got[1] != "sentences" {
		t.Fatalf("unexpected indices: %v", got)
	}
}

func TestBulkReportsItemFailures(t *testing.T) {
	backend := New()
	defer backend.Close()

	resp, err := backend.Bulk(context.Background(), []domain.BulkOperation{
		{Index: "pages", ID: "a", Document: map[string]any{"text": "ok"}},
		{Index: "Pages", ID: "b", Document: map[string]any{"text": "bad index"}},
		{Index: "pages", ID: "c", Document: "not an object"},
	})
	if err != nil {
		t.Fatalf("Bulk() error = %v", err)
	}
	if !resp.Errors {
		t.Fatalf("expected errors flag")
	}
	failed := resp.FailedItems()
	if len(failed) != 2 {
		t.Fatalf("expected 2 failed items, got %+v", failed)
	}
	if failed[0].Type != "invalid_index_name_exception" || failed[1].Type != "mapper_parsing_exception" {
		t.Fatalf("unexpected failure types: %+v", failed)
	}
	if _, ok := backend.Source("pages", "a"); !ok {
		t.Fatalf("valid item must still be stored")
	}
}

func TestBulkOverwritesByID(t *testing.T) {
	backend := New()
	defer backend.Close()

	op := domain.BulkOperation{Index: "pages", ID: "doc_p1", Document: map[string]any{"text": "first"}}
	if _, err := backend.Bulk(context.Background(), []domain.BulkOperation{op}); err != nil {
		t.Fatalf("first Bulk() error = %v", err)
	}
	op.Document = map[string]any{"text": "second"}
	resp, err := backend.Bulk(context.Background(), []domain.BulkOperation{op})
	if err != nil {
		t.Fatalf("second Bulk() error = %v", err)
	}
	if resp.Items[0].Status != 200 {
		t.Fatalf("expected overwrite status 200, got %d", resp.Items[0].Status)
	}

	res, err := backend.Search(context.Background(), "pages", nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.Total != 1 || res.Hits[0].Source["text"] != "second" {
		t.Fatalf("expected single overwritten record, got %+v", res)
	}
}

func TestIndexDocumentVersions(t *testing.T) {
	backend := New()
	defer backend.Close()

	first, err := backend.IndexDocument(context.Background(), "documents", "doc", map[string]any{"v": 1})
	if err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}
	second, err := backend.IndexDocument(context.Background(), "documents", "doc", map[string]any{"v": 2})
	if err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}
	if first.Result != "created" || second.Result != "updated" || second.Version != 2 {
		t.Fatalf("unexpected results: %+v %+v", first, second)
	}

	generated, err := backend.IndexDocument(context.Background(), "documents", "", map[string]any{"v": 3})
	if err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}
	if generated.ID == "" {
		t.Fatalf("expected generated id")
	}

	if _, err := backend.IndexDocument(context.Background(), "Bad", "x", map[string]any{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad index, got %v", err)
	}
}

func TestSearchQueries(t *testing.T) {
	backend := New()
	defer backend.Close()

	_, err := backend.Bulk(context.Background(), []domain.BulkOperation{
		{Index: "images", ID: "doc_img_1", Document: map[string]any{"caption": "a cat on a sofa", "labels": []string{"cat", "sofa"}}},
		{Index: "images", ID: "doc_img_2", Document: map[string]any{"caption": "a dog in a park", "labels": []string{"dog"}}},
	})
	if err != nil {
		t.Fatalf("Bulk() error = %v", err)
	}

	res, err := backend.Search(context.Background(), "images", map[string]any{
		"query": map[string]any{"term": map[string]any{"labels": "dog"}},
	})
	if err != nil {
		t.Fatalf("term Search() error = %v", err)
	}
	if res.Total != 1 || res.Hits[0].ID != "doc_img_2" {
		t.Fatalf("unexpected term result: %+v", res)
	}

	res, err = backend.Search(context.Background(), "images", map[string]any{
		"query": map[string]any{"query_string": map[string]any{"query": "sofa"}},
		"size":  float64(1),
	})
	if err != nil {
		t.Fatalf("query_string Search() error = %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].ID != "doc_img_1" {
		t.Fatalf("unexpected query_string result: %+v", res)
	}

	if _, err := backend.Search(context.Background(), "images", map[string]any{
		"query": map[string]any{"fuzzy": map[string]any{}},
	}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unsupported clause, got %v", err)
	}

	empty, err := backend.Search(context.Background(), "missing", nil)
	if err != nil || empty.Total != 0 {
		t.Fatalf("expected empty result for unknown index, got %+v, %v", empty, err)
	}
}

func TestClosedBackendIsUnavailable(t *testing.T) {
	backend := New()
	if err := backend.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := backend.Ping(context.Background()); !domain.IsKind(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable after close, got %v", err)
	}
	if _, err := backend.Bulk(context.Background(), nil); err == nil {
		t.Fatalf("expected error after close")
	}
}
