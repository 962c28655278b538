package usecase

import (
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
)

func TestParseLabels(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{raw: "a, b ,c", want: []string{"a", "b", "c"}},
		{raw: "", want: []string{}},
		{raw: "  ,  , ", want: []string{}},
		{raw: "cat,dog,cat, dog", want: []string{"cat", "dog"}},
		{raw: "single", want: []string{"single"}},
	}
	for _, tc := range cases {
		got := ParseLabels(tc.raw)
		if got == nil {
			t.Fatalf("ParseLabels(%q) returned nil", tc.raw)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseLabels(%q) = %#v, want %#v", tc.raw, got, tc.want)
		}
	}
}

func TestRecordIdentifiers(t *testing.T) {
	pageID := PageID("doc", 3)
	paragraphID := ParagraphID(pageID, 2)
	if got := SentenceID(paragraphID, 5); got != "doc_p3_par2_s5" {
		t.Fatalf("unexpected sentence id %q", got)
	}
	if got := ImageID("doc", 1); got != "doc_img_1" {
		t.Fatalf("unexpected image id %q", got)
	}
}

func TestBuildTextOperationsSharesTimestamp(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	text := domain.ExtractedText{
		Pages:      []string{"one"},
		Paragraphs: [][]string{{"par"}},
		Sentences:  [][][]string{{{"sentence"}}},
	}

	ops := buildTextOperations(DefaultIndices(), "doc", text, nil, now)
	if len(ops) != 4 {
		t.Fatalf("expected 4 operations, got %d", len(ops))
	}
	if ops[1].Document.(domain.PageRecord).Timestamp != now {
		t.Fatalf("page timestamp differs")
	}
	if ops[2].Document.(domain.ParagraphRecord).Timestamp != now {
		t.Fatalf("paragraph timestamp differs")
	}
	if ops[3].Document.(domain.SentenceRecord).Timestamp != now {
		t.Fatalf("sentence timestamp differs")
	}
}

func TestBuildTextOperationsCopiesMetadata(t *testing.T) {
	metadata := map[string]any{"author": "x"}
	ops := buildTextOperations(DefaultIndices(), "doc", domain.ExtractedText{}, metadata, time.Now())

	record := ops[0].Document.(map[string]any)
	record["author"] = "changed"
	if metadata["author"] != "x" {
		t.Fatalf("caller metadata was mutated")
	}
	if _, ok := metadata[domain.FieldDocumentID]; ok {
		t.Fatalf("caller metadata gained reserved key")
	}
}

func TestIndicesWithPrefix(t *testing.T) {
	indices := DefaultIndices().WithPrefix("test_")
	if indices.Pages != "test_pages" || indices.Images != "test_images" {
		t.Fatalf("unexpected prefixed indices: %+v", indices)
	}

	normalized := Indices{Pages: "custom"}.normalize()
	if normalized.Pages != "custom" || normalized.Documents != domain.IndexDocuments {
		t.Fatalf("unexpected normalized indices: %+v", normalized)
	}
}
