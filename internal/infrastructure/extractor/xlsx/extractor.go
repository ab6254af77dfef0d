package xlsx

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/avoronov/compliance-kb/internal/core/domain"
	"github.com/avoronov/compliance-kb/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// Extract yields one segment per non-empty sheet, with the sheet name as
// the citation section.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) ([]domain.Segment, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	workbook, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parse workbook %s: %w", doc.Filename, err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	segments := make([]domain.Segment, 0, len(sheets))
	for idx, sheet := range sheets {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, doc.Filename, err)
		}

		var b strings.Builder
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}

		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Page:    idx + 1,
			Section: sheet,
			Text:    text,
		})
	}
	return segments, nil
}
