package httpadapter

import (
	"net/http"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

// mapErrorToHTTPStatus translates domain error kinds into response codes.
// Temporary upstream failures (model backends answering with retryable
// statuses) surface as 502; an open breaker or exhausted retries mean the
// service is shedding load, which is 503.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrCircuitOpen),
		domain.IsKind(err, domain.ErrRetriesExhausted):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
