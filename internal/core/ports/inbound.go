package ports

import (
	"context"
	"io"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType, category string, body io.Reader) (*domain.Document, error)
}

// QuestionService is the inbound contract for answering questions over the
// knowledge base, including the query-cache controls exposed to operators.
type QuestionService interface {
	Ask(ctx context.Context, question string, filter domain.SearchFilter) (*domain.Answer, error)
	CacheStats() domain.CacheStats
	ClearCache()
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
