package ports

import (
	"context"
	"io"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetPassageCount(ctx context.Context, id string, count int) error
}

// PassageRepository persists the chunked passages backing the keyword corpus.
type PassageRepository interface {
	ReplaceForDocument(ctx context.Context, documentID string, passages []domain.Passage) error
	ListAll(ctx context.Context) ([]domain.Passage, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue carries the ingestion lifecycle between binaries:
// ingested events feed the worker pool, processed events tell every
// query-serving replica to reload its corpus.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishDocumentProcessed(ctx context.Context, documentID string) error
	SubscribeDocumentProcessed(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts citable text segments from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) ([]domain.Segment, error)
}

// Embedder builds vectors for passages and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into semantically usable chunks.
type Chunker interface {
	Split(text string) []string
}

// VectorHit is one semantic search match. Payload resolution against the
// passage corpus happens downstream; unknown IDs are skipped there.
type VectorHit struct {
	PassageID string
	Score     float64
}

// VectorStore indexes passages and performs semantic search.
type VectorStore interface {
	IndexPassages(ctx context.Context, passages []domain.Passage, vectors [][]float32) error
	DeleteByDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]VectorHit, error)
}

// Retriever runs the resilient hybrid retrieval pipeline. The returned
// result is always usable: on total failure Mode is ModeError and Err is
// set, never a panic.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filter domain.SearchFilter) domain.RetrievalResult
	CacheStats() domain.CacheStats
	ClearCache()
}

// CrossEncoder scores query/text pairs in one call, higher is more relevant.
type CrossEncoder interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, passages []domain.ScoredPassage) (string, error)
}
