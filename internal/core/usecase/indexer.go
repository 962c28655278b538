package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
	"github.com/kirillkom/extraction-indexer/internal/core/ports"
)

type IndexerOptions struct {
	Indices  Indices
	Recorder ports.RunRecorder
	Observer ports.IndexingObserver
	Now      func() time.Time
}

// IndexExtractionUseCase flattens extracted content into per-granularity
// records and writes them with one bulk request per call. It holds no
// per-call state and is safe for concurrent use.
type IndexExtractionUseCase struct {
	backend  ports.SearchBackend
	indices  Indices
	recorder ports.RunRecorder
	observer ports.IndexingObserver
	now      func() time.Time
}

func NewIndexExtractionUseCase(backend ports.SearchBackend, options IndexerOptions) *IndexExtractionUseCase {
	now := options.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &IndexExtractionUseCase{
		backend:  backend,
		indices:  options.Indices.normalize(),
		recorder: options.Recorder,
		observer: options.Observer,
		now:      now,
	}
}

func (uc *IndexExtractionUseCase) CheckConnection(ctx context.Context) bool {
	if err := uc.backend.Ping(ctx); err != nil {
		slog.Warn("search_backend_unreachable", "error", err)
		return false
	}
	return true
}

func (uc *IndexExtractionUseCase) Close() error {
	return uc.backend.Close()
}

func (uc *IndexExtractionUseCase) SaveExtractedText(
	ctx context.Context,
	documentID string,
	text domain.ExtractedText,
	metadata map[string]any,
) (result domain.IndexResult) {
	start := time.Now()
	submitted := 0
	defer func() {
		if r := recover(); r != nil {
			result = unexpectedResult(documentID, fmt.Errorf("save extracted text: panic: %v", r))
		}
		uc.finish(ctx, domain.RunKindText, result, submitted, start)
	}()

	if err := validateDocumentID(documentID); err != nil {
		return invalidInputResult(documentID, err)
	}
	if err := validateMetadata(metadata); err != nil {
		return invalidInputResult(documentID, err)
	}
	if err := validateTextShape(text); err != nil {
		return invalidInputResult(documentID, err)
	}
	if !uc.CheckConnection(ctx) {
		return connectivityResult(documentID)
	}

	counts := countText(text)
	if counts.Total()-counts.Documents == 0 {
		return warningResult(documentID, msgNoText)
	}

	ops := buildTextOperations(uc.indices, documentID, text, metadata, uc.now())
	submitted = len(ops)
	resp, err := uc.backend.Bulk(ctx, ops)
	if err != nil {
		return unexpectedResult(documentID, fmt.Errorf("bulk index extracted text: %w", err))
	}

	result = classifyBulk(documentID, resp, submitted)
	if result.Status == domain.StatusSuccess {
		result.IndexedItems = &counts
	}
	return result
}

func (uc *IndexExtractionUseCase) SaveExtractedImage(
	ctx context.Context,
	documentID string,
	images []domain.ImageInput,
	pageNumbers []int,
) (result domain.IndexResult) {
	start := time.Now()
	submitted := 0
	defer func() {
		if r := recover(); r != nil {
			result = unexpectedResult(documentID, fmt.Errorf("save extracted image: panic: %v", r))
		}
		uc.finish(ctx, domain.RunKindImage, result, submitted, start)
	}()

	if err := validateDocumentID(documentID); err != nil {
		return invalidInputResult(documentID, err)
	}
	if !uc.CheckConnection(ctx) {
		return connectivityResult(documentID)
	}
	if len(images) == 0 {
		return warningResult(documentID, msgNoImages)
	}

	ops := buildImageOperations(uc.indices, documentID, images, pageNumbers, uc.now())
	submitted = len(ops)
	resp, err := uc.backend.Bulk(ctx, ops)
	if err != nil {
		return unexpectedResult(documentID, fmt.Errorf("bulk index extracted images: %w", err))
	}

	result = classifyBulk(documentID, resp, submitted)
	if result.Status == domain.StatusSuccess {
		result.ImagesIndexed = submitted
	}
	return result
}

func (uc *IndexExtractionUseCase) SaveExtractedVideo(_ context.Context, documentID string) domain.IndexResult {
	return unimplementedResult(documentID, "save extracted video")
}

func (uc *IndexExtractionUseCase) SaveExtractedEquations(_ context.Context, documentID string) domain.IndexResult {
	return unimplementedResult(documentID, "save extracted equations")
}

func (uc *IndexExtractionUseCase) SaveMetadata(_ context.Context, documentID string) domain.IndexResult {
	return unimplementedResult(documentID, "save metadata")
}

func (uc *IndexExtractionUseCase) IndexDocument(
	ctx context.Context,
	index, id string,
	document map[string]any,
) (*domain.IndexDocumentResult, error) {
	if strings.TrimSpace(index) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "index document", errors.New("index name is required"))
	}
	if document == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "index document", errors.New("document body is required"))
	}
	res, err := uc.backend.IndexDocument(ctx, index, id, document)
	if err != nil {
		return nil, fmt.Errorf("index document: %w", err)
	}
	return res, nil
}

func (uc *IndexExtractionUseCase) Search(ctx context.Context, index string, query map[string]any) (*domain.SearchResult, error) {
	if strings.TrimSpace(index) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("index name is required"))
	}
	if len(query) == 0 {
		query = map[string]any{"query": map[string]any{"match_all": map[string]any{}}}
	}
	res, err := uc.backend.Search(ctx, index, query)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return res, nil
}

func (uc *IndexExtractionUseCase) finish(
	ctx context.Context,
	kind domain.RunKind,
	result domain.IndexResult,
	submitted int,
	start time.Time,
) {
	duration := time.Since(start)
	failed := len(result.Errors)
	if result.Failure == domain.FailureUnexpected && submitted > 0 {
		// The bulk call never reported per-item outcomes, so none of the
		// submitted records count as written.
		failed = submitted
	}

	logAttrs := []any{
		"document_id", result.DocumentID,
		"kind", string(kind),
		"status", string(result.Status),
		"submitted", submitted,
		"failed_items", failed,
		"duration_ms", float64(duration.Microseconds()) / 1000.0,
	}
	switch result.Status {
	case domain.StatusError:
		slog.Error("extraction_indexed", append(logAttrs, "failure", string(result.Failure), "error", result.Message)...)
	case domain.StatusPartialSuccess, domain.StatusWarning:
		slog.Warn("extraction_indexed", append(logAttrs, "message", result.Message)...)
	default:
		slog.Info("extraction_indexed", logAttrs...)
	}

	if uc.observer != nil {
		uc.observer.ObserveIndexing(kind, result.Status, submitted, failed, duration)
	}
	if uc.recorder == nil {
		return
	}

	run := domain.IndexingRun{
		ID:          uuid.NewString(),
		DocumentID:  result.DocumentID,
		Kind:        kind,
		Status:      result.Status,
		Failure:     result.Failure,
		Message:     result.Message,
		Submitted:   submitted,
		FailedItems: failed,
		DurationMS:  float64(duration.Microseconds()) / 1000.0,
		CreatedAt:   time.Now().UTC(),
	}
	if err := uc.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		slog.Error("indexing_run_record_failed", "document_id", run.DocumentID, "run_id", run.ID, "error", err)
	}
}

func validateDocumentID(documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate document id", errors.New("document id is required"))
	}
	return nil
}

func validateMetadata(metadata map[string]any) error {
	for _, key := range []string{domain.FieldDocumentID, domain.FieldTimestamp} {
		if _, ok := metadata[key]; ok {
			return domain.WrapError(
				domain.ErrInvalidInput,
				"validate metadata",
				fmt.Errorf("metadata key %q is reserved", key),
			)
		}
	}
	return nil
}

// validateTextShape rejects paragraphs or sentences whose page or paragraph
// position has no record of its own. Empty trailing lists are fine.
func validateTextShape(text domain.ExtractedText) error {
	for i, paragraphs := range text.Paragraphs {
		if len(paragraphs) > 0 && i >= len(text.Pages) {
			return domain.WrapError(
				domain.ErrInvalidInput,
				"validate extracted text",
				fmt.Errorf("paragraphs given for page %d, only %d pages present", i+1, len(text.Pages)),
			)
		}
	}
	for i, pageSentences := range text.Sentences {
		for j, sentences := range pageSentences {
			if len(sentences) == 0 {
				continue
			}
			if i >= len(text.Paragraphs) || j >= len(text.Paragraphs[i]) {
				return domain.WrapError(
					domain.ErrInvalidInput,
					"validate extracted text",
					fmt.Errorf("sentences given for page %d paragraph %d, which is not present", i+1, j+1),
				)
			}
		}
	}
	return nil
}
