package httpadapter

import (
	"net/http"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotImplemented):
		return http.StatusNotImplemented
	case domain.IsKind(err, domain.ErrUnavailable), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// statusForResult picks the response code for an indexing outcome. Warnings
// are still 200: nothing was wrong with the request.
func statusForResult(result domain.IndexResult) int {
	switch result.Status {
	case domain.StatusSuccess, domain.StatusWarning:
		return http.StatusOK
	case domain.StatusPartialSuccess:
		return http.StatusMultiStatus
	case domain.StatusUnimplemented:
		return http.StatusNotImplemented
	}

	switch result.Failure {
	case domain.FailureInvalidInput:
		return http.StatusBadRequest
	case domain.FailureConnectivity:
		return http.StatusServiceUnavailable
	case domain.FailurePartialWrite:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
