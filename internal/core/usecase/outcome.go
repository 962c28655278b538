package usecase

import (
	"fmt"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
)

const (
	msgCannotConnect = "cannot connect to search backend"
	msgNoText        = "no extracted text to index"
	msgNoImages      = "no images to index"
)

// classifyBulk maps a bulk response onto a result. The backend's top-level
// errors flag is trusted: when it is false, items are not inspected.
// Less than half of the submitted records failing is a partial success.
func classifyBulk(documentID string, resp *domain.BulkResponse, submitted int) domain.IndexResult {
	if resp == nil || !resp.Errors {
		return domain.IndexResult{
			Status:     domain.StatusSuccess,
			DocumentID: documentID,
		}
	}

	failed := resp.FailedItems()
	message := fmt.Sprintf("%d of %d records failed to index", len(failed), submitted)
	if len(failed)*2 < submitted {
		return domain.IndexResult{
			Status:     domain.StatusPartialSuccess,
			Message:    message,
			DocumentID: documentID,
			Errors:     failed,
		}
	}
	return domain.IndexResult{
		Status:     domain.StatusError,
		Message:    message,
		DocumentID: documentID,
		Errors:     failed,
		Failure:    domain.FailurePartialWrite,
	}
}

func connectivityResult(documentID string) domain.IndexResult {
	return domain.IndexResult{
		Status:     domain.StatusError,
		Message:    msgCannotConnect,
		DocumentID: documentID,
		Failure:    domain.FailureConnectivity,
		Cause:      domain.ErrUnavailable,
	}
}

func invalidInputResult(documentID string, err error) domain.IndexResult {
	return domain.IndexResult{
		Status:     domain.StatusError,
		Message:    err.Error(),
		DocumentID: documentID,
		Failure:    domain.FailureInvalidInput,
		Cause:      err,
	}
}

func unexpectedResult(documentID string, err error) domain.IndexResult {
	return domain.IndexResult{
		Status:     domain.StatusError,
		Message:    err.Error(),
		DocumentID: documentID,
		Failure:    domain.FailureUnexpected,
		Cause:      err,
	}
}

func warningResult(documentID, message string) domain.IndexResult {
	return domain.IndexResult{
		Status:     domain.StatusWarning,
		Message:    message,
		DocumentID: documentID,
	}
}

func unimplementedResult(documentID, operation string) domain.IndexResult {
	return domain.IndexResult{
		Status:     domain.StatusUnimplemented,
		Message:    operation + " is not implemented",
		DocumentID: documentID,
		Failure:    domain.FailureNotImplemented,
		Cause:      fmt.Errorf("%s: %w", operation, domain.ErrNotImplemented),
	}
}
