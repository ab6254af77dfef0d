package httpadapter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

func TestAskMapsDomainInvalidInputTo400(t *testing.T) {
	handler := newTestRouter(
		&questionsFake{err: domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("empty question"))},
		documentsFake{},
		nil,
	)

	res := postAsk(t, handler, map[string]any{"question": "test"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskMapsTemporaryUpstreamFailureTo502(t *testing.T) {
	handler := newTestRouter(
		&questionsFake{err: domain.WrapError(domain.ErrTemporary, "crossencoder rerank", errors.New("status: 503"))},
		documentsFake{},
		nil,
	)

	res := postAsk(t, handler, map[string]any{"question": "test"})
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
}

func TestAskMapsCircuitOpenTo503(t *testing.T) {
	handler := newTestRouter(
		&questionsFake{err: domain.WrapError(domain.ErrCircuitOpen, "ask", errors.New("retrieval rejected"))},
		documentsFake{},
		nil,
	)

	res := postAsk(t, handler, map[string]any{"question": "test"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	handler := newTestRouter(
		&questionsFake{},
		documentsFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id missing"))},
		nil,
	)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}
