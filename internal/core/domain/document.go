package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID           string         `json:"id"`
	Filename     string         `json:"filename"`
	MimeType     string         `json:"mime_type"`
	StoragePath  string         `json:"storage_path"`
	Category     string         `json:"category,omitempty"`
	Status       DocumentStatus `json:"status"`
	Error        string         `json:"error,omitempty"`
	PassageCount int            `json:"passage_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Segment is a citable stretch of extracted text. Page is zero for
// formats without pagination; Section carries sheet or heading names.
type Segment struct {
	Page    int
	Section string
	Text    string
}

// Passage is the retrievable unit: one chunk of an ingested document
// together with the citation metadata carried through the pipeline.
type Passage struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Page       int    `json:"page,omitempty"`
	Section    string `json:"section,omitempty"`
	Category   string `json:"category,omitempty"`
	Text       string `json:"text"`
}
