package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
)

// HandleExtractionEvent routes an extraction-completed event to the matching
// save operation.
func (uc *IndexExtractionUseCase) HandleExtractionEvent(ctx context.Context, event domain.ExtractionEvent) domain.IndexResult {
	switch event.Kind {
	case domain.EventKindText:
		return uc.SaveExtractedText(ctx, event.DocumentID, event.Text(), event.Metadata)
	case domain.EventKindImage:
		return uc.SaveExtractedImage(ctx, event.DocumentID, event.Images, event.PageNumbers)
	default:
		return invalidInputResult(event.DocumentID, domain.WrapError(
			domain.ErrInvalidInput,
			"handle extraction event",
			fmt.Errorf("unknown event kind %q", event.Kind),
		))
	}
}
