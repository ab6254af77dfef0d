package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/avoronov/compliance-kb/internal/core/domain"
	"github.com/avoronov/compliance-kb/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// Extract yields one segment per non-empty page so citations can point at
// the exact page of the source document.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) ([]domain.Segment, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}

	pdfReader, err := lpdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf %s: %w", doc.Filename, err)
	}

	total := pdfReader.NumPage()
	segments := make([]domain.Segment, 0, total)
	for pageNum := 1; pageNum <= total; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d of %s: %w", pageNum, doc.Filename, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Page: pageNum,
			Text: text,
		})
	}
	return segments, nil
}
