// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/claimlens/claimlens/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	// _foreign_keys applies per connection, so it has to ride the DSN to
	// cover the whole pool. It makes the ON DELETE CASCADE clauses effective.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		needs_ocr INTEGER NOT NULL DEFAULT 0,
		failure_reason TEXT,
		raw BLOB,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
	CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents(uploaded_at);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		text TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		position INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_document_position ON chunks(document_id, position);

	CREATE TABLE IF NOT EXISTS clauses (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		number TEXT NOT NULL,
		text TEXT NOT NULL,
		conditions TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_clauses_document_id ON clauses(document_id);

	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		submitted_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		entities TEXT,
		decision TEXT,
		amount INTEGER,
		justification TEXT,
		clause_ids TEXT,
		confidence REAL NOT NULL DEFAULT 0,
		failure_reason TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_queries_submitted_at ON queries(submitted_at);

	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		query_text TEXT,
		status TEXT NOT NULL,
		decision TEXT,
		amount INTEGER,
		justification TEXT,
		clause_ids TEXT,
		failure_reason TEXT,
		submitted_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_history_submitted_at ON history(submitted_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts a document together with its raw bytes.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document, raw []byte) error {
	now := time.Now()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = models.StatusUploading
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, kind, status, needs_ocr, failure_reason, raw, uploaded_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, string(doc.Kind), string(doc.Status), boolToInt(doc.NeedsOCR),
		doc.FailureReason, raw, doc.UploadedAt, doc.UpdatedAt,
	)
	return err
}

// GetDocument returns a document by ID (without raw bytes).
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	var needsOCR int
	var failureReason sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, kind, status, needs_ocr, failure_reason, uploaded_at, updated_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Filename, &doc.Kind, &doc.Status, &needsOCR, &failureReason, &doc.UploadedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	doc.NeedsOCR = needsOCR != 0
	doc.FailureReason = failureReason.String
	return &doc, nil
}

// GetDocumentBytes returns a document's raw bytes.
func (s *SQLiteStorage) GetDocumentBytes(ctx context.Context, id string) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT raw FROM documents WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// UpdateDocumentStatus advances a document's status, enforcing valid transitions.
func (s *SQLiteStorage) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current models.DocumentStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("document not found: %s", id)
	}
	if err != nil {
		return err
	}
	if !current.CanTransition(status) {
		return fmt.Errorf("document %s: invalid status transition %s -> %s", id, current, status)
	}
	if status != models.StatusFailed {
		reason = ""
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ?`,
		string(status), reason, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// SetDocumentNeedsOCR sets the OCR-required flag on a document.
func (s *SQLiteStorage) SetDocumentNeedsOCR(ctx context.Context, id string, needsOCR bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET needs_ocr = ?, updated_at = ? WHERE id = ?`,
		boolToInt(needsOCR), time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// DeleteDocument removes a document by ID. Chunks and clauses cascade.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// ListDocuments returns documents ordered by upload time descending.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, kind, status, needs_ocr, failure_reason, uploaded_at, updated_at
		 FROM documents ORDER BY uploaded_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var needsOCR int
		var failureReason sql.NullString
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.Kind, &doc.Status, &needsOCR, &failureReason, &doc.UploadedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		doc.NeedsOCR = needsOCR != 0
		doc.FailureReason = failureReason.String
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// BatchCreateChunks inserts multiple chunks in a transaction.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, text, start_offset, end_offset, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, ch := range chunks {
		ch.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, ch.ID, ch.DocumentID, ch.Text, ch.Start, ch.End, ch.Position, ch.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	var ch models.Chunk
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, text, start_offset, end_offset, position, created_at
		 FROM chunks WHERE id = ?`, id,
	).Scan(&ch.ID, &ch.DocumentID, &ch.Text, &ch.Start, &ch.End, &ch.Position, &ch.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetChunksByDocumentID returns all chunks for a document ordered by position.
func (s *SQLiteStorage) GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, text, start_offset, end_offset, position, created_at
		 FROM chunks WHERE document_id = ? ORDER BY position`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Text, &ch.Start, &ch.End, &ch.Position, &ch.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &ch)
	}
	return chunks, rows.Err()
}

// DeleteChunksByDocumentID removes all chunks for a document.
func (s *SQLiteStorage) DeleteChunksByDocumentID(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID)
	return err
}

// BatchCreateClauses inserts multiple clauses in a transaction.
func (s *SQLiteStorage) BatchCreateClauses(ctx context.Context, clauses []*models.Clause) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO clauses (id, document_id, number, text, conditions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, cl := range clauses {
		condJSON, err := json.Marshal(cl.Conditions)
		if err != nil {
			return fmt.Errorf("failed to marshal conditions: %w", err)
		}
		cl.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, cl.ID, cl.DocumentID, cl.Number, cl.Text, string(condJSON), cl.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetClause returns a clause by ID.
func (s *SQLiteStorage) GetClause(ctx context.Context, id string) (*models.Clause, error) {
	var cl models.Clause
	var condJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, number, text, conditions, created_at
		 FROM clauses WHERE id = ?`, id,
	).Scan(&cl.ID, &cl.DocumentID, &cl.Number, &cl.Text, &condJSON, &cl.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("clause not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(condJSON), &cl.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
	}
	return &cl, nil
}

// GetClausesByDocumentID returns all clauses for a document ordered by number.
func (s *SQLiteStorage) GetClausesByDocumentID(ctx context.Context, docID string) ([]*models.Clause, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, number, text, conditions, created_at
		 FROM clauses WHERE document_id = ? ORDER BY number`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clauses []*models.Clause
	for rows.Next() {
		var cl models.Clause
		var condJSON string
		if err := rows.Scan(&cl.ID, &cl.DocumentID, &cl.Number, &cl.Text, &condJSON, &cl.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(condJSON), &cl.Conditions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
		}
		clauses = append(clauses, &cl)
	}
	return clauses, rows.Err()
}

// DeleteClausesByDocumentID removes all clauses for a document.
func (s *SQLiteStorage) DeleteClausesByDocumentID(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM clauses WHERE document_id = ?`, docID)
	return err
}

// CreateQuery inserts a query.
func (s *SQLiteStorage) CreateQuery(ctx context.Context, q *models.Query) error {
	if q.SubmittedAt.IsZero() {
		q.SubmittedAt = time.Now()
	}
	if q.Status == "" {
		q.Status = models.QueryPending
	}
	if q.Decision == "" {
		q.Decision = models.DecisionPending
	}
	entJSON, clauseJSON, err := marshalQueryJSON(q)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO queries (id, text, submitted_at, status, entities, decision, amount, justification, clause_ids, confidence, failure_reason, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Text, q.SubmittedAt, string(q.Status), entJSON, string(q.Decision),
		amountValue(q.Amount), q.Justification, clauseJSON, q.Confidence, q.FailureReason,
		q.Duration.Milliseconds(),
	)
	return err
}

// GetQuery returns a query by ID.
func (s *SQLiteStorage) GetQuery(ctx context.Context, id string) (*models.Query, error) {
	var q models.Query
	var entJSON, clauseJSON sql.NullString
	var amount sql.NullInt64
	var durationMS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, submitted_at, status, entities, decision, amount, justification, clause_ids, confidence, failure_reason, duration_ms
		 FROM queries WHERE id = ?`, id,
	).Scan(&q.ID, &q.Text, &q.SubmittedAt, &q.Status, &entJSON, &q.Decision, &amount,
		&q.Justification, &clauseJSON, &q.Confidence, &q.FailureReason, &durationMS)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("query not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	q.Duration = time.Duration(durationMS) * time.Millisecond
	if amount.Valid {
		v := amount.Int64
		q.Amount = &v
	}
	if entJSON.Valid && entJSON.String != "" {
		if err := json.Unmarshal([]byte(entJSON.String), &q.Entities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entities: %w", err)
		}
	}
	if clauseJSON.Valid && clauseJSON.String != "" {
		if err := json.Unmarshal([]byte(clauseJSON.String), &q.ClauseIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal clause ids: %w", err)
		}
	}
	return &q, nil
}

// UpdateQuery persists an evaluated query, enforcing the status transition.
func (s *SQLiteStorage) UpdateQuery(ctx context.Context, q *models.Query) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current models.QueryStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM queries WHERE id = ?`, q.ID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("query not found: %s", q.ID)
	}
	if err != nil {
		return err
	}
	if current != q.Status && !current.CanTransition(q.Status) {
		return fmt.Errorf("query %s: invalid status transition %s -> %s", q.ID, current, q.Status)
	}
	entJSON, clauseJSON, err := marshalQueryJSON(q)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE queries SET status = ?, entities = ?, decision = ?, amount = ?, justification = ?,
		 clause_ids = ?, confidence = ?, failure_reason = ?, duration_ms = ? WHERE id = ?`,
		string(q.Status), entJSON, string(q.Decision), amountValue(q.Amount), q.Justification,
		clauseJSON, q.Confidence, q.FailureReason, q.Duration.Milliseconds(), q.ID,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// AppendHistory writes a history record. Records are never updated.
func (s *SQLiteStorage) AppendHistory(ctx context.Context, rec *models.HistoryRecord) error {
	clauseJSON, err := json.Marshal(rec.ClauseIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal clause ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO history (id, kind, query_text, status, decision, amount, justification, clause_ids, failure_reason, submitted_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.QueryText, string(rec.Status), string(rec.Decision),
		amountValue(rec.Amount), rec.Justification, string(clauseJSON), rec.FailureReason,
		rec.SubmittedAt, rec.DurationMS,
	)
	return err
}

// ListHistory returns history records matching filter, newest first. Status,
// decision, and date range are pushed into SQL; the free-text substring match
// runs on the scanned rows.
func (s *SQLiteStorage) ListHistory(ctx context.Context, filter *models.HistoryFilter) ([]*models.HistoryRecord, error) {
	query := `SELECT id, kind, query_text, status, decision, amount, justification, clause_ids, failure_reason, submitted_at, duration_ms FROM history`
	var conds []string
	var args []interface{}
	if filter != nil {
		if filter.Status != "" {
			conds = append(conds, "status = ?")
			args = append(args, string(filter.Status))
		}
		if filter.Decision != "" {
			conds = append(conds, "decision = ?")
			args = append(args, string(filter.Decision))
		}
		if !filter.From.IsZero() {
			conds = append(conds, "submitted_at >= ?")
			args = append(args, filter.From)
		}
		if !filter.To.IsZero() {
			conds = append(conds, "submitted_at <= ?")
			args = append(args, filter.To)
		}
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY submitted_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.HistoryRecord
	for rows.Next() {
		var rec models.HistoryRecord
		var decision sql.NullString
		var amount sql.NullInt64
		var clauseJSON, queryText, justification, failureReason sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Kind, &queryText, &rec.Status, &decision, &amount,
			&justification, &clauseJSON, &failureReason, &rec.SubmittedAt, &rec.DurationMS); err != nil {
			return nil, err
		}
		rec.QueryText = queryText.String
		rec.Decision = models.Decision(decision.String)
		rec.Justification = justification.String
		rec.FailureReason = failureReason.String
		if amount.Valid {
			v := amount.Int64
			rec.Amount = &v
		}
		if clauseJSON.Valid && clauseJSON.String != "" {
			_ = json.Unmarshal([]byte(clauseJSON.String), &rec.ClauseIDs)
		}
		if filter != nil && filter.Text != "" && !filter.Matches(&rec) {
			continue
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountClauses returns the total number of clauses.
func (s *SQLiteStorage) CountClauses(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clauses`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func marshalQueryJSON(q *models.Query) (entJSON, clauseJSON string, err error) {
	ent, err := json.Marshal(q.Entities)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal entities: %w", err)
	}
	cls, err := json.Marshal(q.ClauseIDs)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal clause ids: %w", err)
	}
	return string(ent), string(cls), nil
}

func amountValue(a *int64) interface{} {
	if a == nil {
		return nil
	}
	return *a
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
