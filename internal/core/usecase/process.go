package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avoronov/compliance-kb/internal/core/domain"
	"github.com/avoronov/compliance-kb/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	passages  ports.PassageRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	passages ports.PassageRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		passages:  passages,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	count, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SetPassageCount(ctx, documentID, count); err != nil {
		return fmt.Errorf("save passage count: %w", err)
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (int, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}

	segments, err := uc.extractSegments(ctx, doc)
	if err != nil {
		return 0, err
	}

	passages, err := uc.buildPassages(doc, segments)
	if err != nil {
		return 0, err
	}

	vectors, err := uc.embed(ctx, passages)
	if err != nil {
		return 0, err
	}

	if err := uc.index(ctx, doc, passages, vectors); err != nil {
		return 0, err
	}

	if err := uc.persistPassages(ctx, doc.ID, passages); err != nil {
		return 0, err
	}

	return len(passages), nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractSegments(ctx context.Context, doc *domain.Document) ([]domain.Segment, error) {
	segments, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if len(segments) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("no extractable text"))
	}
	return segments, nil
}

func (uc *ProcessDocumentUseCase) buildPassages(doc *domain.Document, segments []domain.Segment) ([]domain.Passage, error) {
	var passages []domain.Passage
	for _, seg := range segments {
		for _, chunk := range uc.chunker.Split(seg.Text) {
			passages = append(passages, domain.Passage{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				Source:     doc.Filename,
				Page:       seg.Page,
				Section:    seg.Section,
				Category:   doc.Category,
				Text:       chunk,
			})
		}
	}
	if len(passages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero passages"))
	}
	return passages, nil
}

func (uc *ProcessDocumentUseCase) embed(ctx context.Context, passages []domain.Passage) ([][]float32, error) {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed passages",
			fmt.Errorf("vectors/passages mismatch: %d/%d", len(vectors), len(passages)),
		)
	}
	return vectors, nil
}

// index replaces the document's points wholesale: passage IDs are
// regenerated per run, stale vectors must not survive a reprocess.
func (uc *ProcessDocumentUseCase) index(ctx context.Context, doc *domain.Document, passages []domain.Passage, vectors [][]float32) error {
	if err := uc.vectorDB.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete stale vectors: %w", err)
	}
	if err := uc.vectorDB.IndexPassages(ctx, passages, vectors); err != nil {
		return fmt.Errorf("index passages in vector db: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) persistPassages(ctx context.Context, documentID string, passages []domain.Passage) error {
	if err := uc.passages.ReplaceForDocument(ctx, documentID, passages); err != nil {
		return fmt.Errorf("persist passages: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
