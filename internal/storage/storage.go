// Package storage defines the persistence interface for documents, chunks,
// clauses, queries, and history records.
package storage

import (
	"context"

	"github.com/claimlens/claimlens/internal/models"
)

// Storage defines persistence operations for the intake and evaluation pipeline.
type Storage interface {
	// Document operations. Raw bytes are stored alongside the document row and
	// owned by the store; documents are never deleted automatically.
	CreateDocument(ctx context.Context, doc *models.Document, raw []byte) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetDocumentBytes(ctx context.Context, id string) ([]byte, error)
	// UpdateDocumentStatus advances a document's status. The transition must be
	// valid per models.DocumentStatus.CanTransition; reason is recorded when the
	// new status is failed.
	UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, reason string) error
	SetDocumentNeedsOCR(ctx context.Context, id string, needsOCR bool) error
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// Chunk operations.
	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error)
	DeleteChunksByDocumentID(ctx context.Context, docID string) error

	// Clause operations. Clauses are written once at indexing time.
	BatchCreateClauses(ctx context.Context, clauses []*models.Clause) error
	GetClause(ctx context.Context, id string) (*models.Clause, error)
	GetClausesByDocumentID(ctx context.Context, docID string) ([]*models.Clause, error)
	DeleteClausesByDocumentID(ctx context.Context, docID string) error

	// Query operations.
	CreateQuery(ctx context.Context, q *models.Query) error
	GetQuery(ctx context.Context, id string) (*models.Query, error)
	UpdateQuery(ctx context.Context, q *models.Query) error

	// History operations. Records are append-only.
	AppendHistory(ctx context.Context, rec *models.HistoryRecord) error
	ListHistory(ctx context.Context, filter *models.HistoryFilter) ([]*models.HistoryRecord, error)

	// Stats.
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	CountClauses(ctx context.Context) (int64, error)

	Close() error
}
