package ports

import (
	"context"
	"time"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
)

// SearchBackend is the search engine the indexer writes into.
type SearchBackend interface {
	Ping(ctx context.Context) error
	Bulk(ctx context.Context, ops []domain.BulkOperation) (*domain.BulkResponse, error)
	IndexDocument(ctx context.Context, index, id string, document map[string]any) (*domain.IndexDocumentResult, error)
	Search(ctx context.Context, index string, query map[string]any) (*domain.SearchResult, error)
	Close() error
}

// RunRecorder persists the outcome of each indexing call.
type RunRecorder interface {
	Record(ctx context.Context, run domain.IndexingRun) error
}

// ExtractionEventHandler indexes one event and reports the outcome.
type ExtractionEventHandler func(ctx context.Context, event domain.ExtractionEvent) domain.IndexResult

// ExtractionEventSource delivers extraction-completed events to a handler
// until ctx is done.
type ExtractionEventSource interface {
	SubscribeExtractionCompleted(ctx context.Context, handler ExtractionEventHandler) error
}

// IndexingObserver receives one observation per indexing call.
type IndexingObserver interface {
	ObserveIndexing(kind domain.RunKind, status domain.IndexStatus, submitted, failed int, duration time.Duration)
}
