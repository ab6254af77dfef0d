package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/avoronov/compliance-kb/internal/core/domain"
	"github.com/avoronov/compliance-kb/internal/core/ports"
	"github.com/avoronov/compliance-kb/internal/infrastructure/extractor/pdf"
	"github.com/avoronov/compliance-kb/internal/infrastructure/extractor/plaintext"
	"github.com/avoronov/compliance-kb/internal/infrastructure/extractor/xlsx"
)

// Dispatcher routes extraction by file extension. Unknown extensions fall
// back to plaintext, which rejects binary content on its own.
type Dispatcher struct {
	fallback ports.TextExtractor
	byExt    map[string]ports.TextExtractor
}

func NewDispatcher(storage ports.ObjectStorage) *Dispatcher {
	xlsxExtractor := xlsx.NewExtractor(storage)
	return &Dispatcher{
		fallback: plaintext.NewExtractor(storage),
		byExt: map[string]ports.TextExtractor{
			".pdf":  pdf.NewExtractor(storage),
			".xlsx": xlsxExtractor,
			".xlsm": xlsxExtractor,
		},
	}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) ([]domain.Segment, error) {
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	if ex, ok := d.byExt[ext]; ok {
		return ex.Extract(ctx, doc)
	}
	return d.fallback.Extract(ctx, doc)
}
