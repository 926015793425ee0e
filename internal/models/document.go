// Package models defines core data structures for documents, chunks, clauses,
// queries, and history records.
package models

import "time"

// DocumentStatus is the pipeline stage a document is in. Statuses advance strictly
// in declaration order; StatusFailed is reachable from any non-terminal status.
type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusParsing    DocumentStatus = "parsing"
	StatusExtracting DocumentStatus = "extracting"
	StatusChunking   DocumentStatus = "chunking"
	StatusEmbedding  DocumentStatus = "embedding"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

// statusOrder maps each non-failed status to its position in the pipeline.
var statusOrder = map[DocumentStatus]int{
	StatusUploading:  0,
	StatusParsing:    1,
	StatusExtracting: 2,
	StatusChunking:   3,
	StatusEmbedding:  4,
	StatusProcessed:  5,
}

// Terminal reports whether s is a terminal status (processed or failed).
func (s DocumentStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// CanTransition reports whether a document may move from s to next.
// Valid moves are one step forward in pipeline order, or to failed from
// any non-terminal status.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	if next == StatusFailed {
		return !s.Terminal()
	}
	from, ok := statusOrder[s]
	if !ok {
		return false
	}
	to, ok := statusOrder[next]
	if !ok {
		return false
	}
	return to == from+1
}

// MimeKind is the recognized upload format of a document.
type MimeKind string

const (
	MimePDF  MimeKind = "pdf"
	MimeDOC  MimeKind = "doc"
	MimeDOCX MimeKind = "docx"
	MimeTXT  MimeKind = "txt"
	MimeXLSX MimeKind = "xlsx"
)

// Document represents an uploaded policy document and its pipeline state.
// Raw bytes are owned by the document store and not carried on this struct.
type Document struct {
	ID            string         `json:"id" db:"id"`
	Filename      string         `json:"filename" db:"filename"`
	Kind          MimeKind       `json:"kind" db:"kind"`
	Status        DocumentStatus `json:"status" db:"status"`
	NeedsOCR      bool           `json:"needs_ocr" db:"needs_ocr"`
	FailureReason string         `json:"failure_reason,omitempty" db:"failure_reason"`
	UploadedAt    time.Time      `json:"uploaded_at" db:"uploaded_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// Chunk is a bounded passage of a document's normalized text, the unit of
// embedding and retrieval. Start and End are rune offsets into the normalized
// text so that spans reconstruct the original exactly. A chunk is immutable
// once its embedding is set.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Text       string    `json:"text" db:"text"`
	Start      int       `json:"start" db:"start"`
	End        int       `json:"end" db:"end"`
	Position   int       `json:"position" db:"position"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
