package ports

import (
	"context"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
)

// ExtractionIndexer is the inbound contract for indexing extracted content.
// The Save* operations fold every failure into the returned result.
type ExtractionIndexer interface {
	CheckConnection(ctx context.Context) bool
	SaveExtractedText(ctx context.Context, documentID string, text domain.ExtractedText, metadata map[string]any) domain.IndexResult
	SaveExtractedImage(ctx context.Context, documentID string, images []domain.ImageInput, pageNumbers []int) domain.IndexResult
	SaveExtractedVideo(ctx context.Context, documentID string) domain.IndexResult
	SaveExtractedEquations(ctx context.Context, documentID string) domain.IndexResult
	SaveMetadata(ctx context.Context, documentID string) domain.IndexResult
}

// DocumentStore is the inbound contract for single-document upserts and raw search.
type DocumentStore interface {
	IndexDocument(ctx context.Context, index, id string, document map[string]any) (*domain.IndexDocumentResult, error)
	Search(ctx context.Context, index string, query map[string]any) (*domain.SearchResult, error)
}

// RunReader is the inbound read model for the indexing run journal.
type RunReader interface {
	ListByDocument(ctx context.Context, documentID string, limit int) ([]domain.IndexingRun, error)
}
