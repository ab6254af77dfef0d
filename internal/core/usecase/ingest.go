package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avoronov/compliance-kb/internal/core/domain"
	"github.com/avoronov/compliance-kb/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Upload stores the raw document, records its metadata row and hands the
// ID to the worker pool over the queue. The document stays in the
// uploaded state until a worker finishes extracting and indexing it.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType, category string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("empty filename"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Category:    strings.TrimSpace(category),
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		// Without its metadata row the blob is unreachable, remove it.
		_ = uc.storage.Delete(ctx, storageKey)
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

// sanitizeFilename reduces an upload name to something safe to embed in a
// flat storage key. Keys live on a filesystem with a 255-byte name limit,
// so long names keep their tail and lose their front.
func sanitizeFilename(name string) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, filepath.Base(name))
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	if strings.Trim(base, "._-") == "" {
		return "document.bin"
	}
	return base
}
