// Package ingest runs uploaded policy documents through the intake pipeline:
// parse, extract, chunk, embed, and index.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/claimlens/claimlens/internal/chunk"
	"github.com/claimlens/claimlens/internal/clause"
	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/docid"
	"github.com/claimlens/claimlens/internal/embedding"
	"github.com/claimlens/claimlens/internal/extract"
	"github.com/claimlens/claimlens/internal/keyword"
	"github.com/claimlens/claimlens/internal/models"
	"github.com/claimlens/claimlens/internal/storage"
	"github.com/claimlens/claimlens/internal/vector"
)

// Pipeline moves documents through the intake stages and keeps storage, the
// vector index, and the keyword index consistent with each other.
type Pipeline struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.Index
	keywordIndex keyword.Index
	chunker      *chunk.Chunker
	extractor    *extract.Extractor
	workers      int
	logger       *zap.Logger

	// sem bounds concurrent background processing to the worker count.
	sem chan struct{}
	wg  sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for pipeline events.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline with the given dependencies.
func NewPipeline(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.Index,
	keywordIndex keyword.Index,
	cfg *config.PipelineConfig,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		storage:      store,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		chunker:      chunk.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		extractor:    extract.NewExtractor(),
		workers:      cfg.Workers,
		logger:       zap.NewNop(),
	}
	if p.workers <= 0 {
		p.workers = 1
	}
	p.sem = make(chan struct{}, p.workers)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Accept validates and records an uploaded document in the uploading state.
// The pipeline stages run separately, via Process or ProcessAsync. Only an
// unrecognized extension or a storage failure is returned to the caller, since
// at that point there is nothing to track.
func (p *Pipeline) Accept(ctx context.Context, id, filename string, content []byte) (*models.Document, error) {
	kind, err := extract.KindFromFilename(filename)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.New().String()
	}
	doc := &models.Document{
		ID:       id,
		Filename: filename,
		Kind:     kind,
		Status:   models.StatusUploading,
	}
	if err := p.storage.CreateDocument(ctx, doc, content); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	p.logger.Info("document accepted",
		zap.String("doc_id", id),
		zap.String("filename", filename),
		zap.String("kind", string(kind)))
	return doc, nil
}

// Ingest accepts an uploaded document and runs it through the full pipeline
// inline. The returned document reflects the final status; pipeline-stage
// failures mark the document failed rather than returning an error.
func (p *Pipeline) Ingest(ctx context.Context, id, filename string, content []byte) (*models.Document, error) {
	doc, err := p.Accept(ctx, id, filename, content)
	if err != nil {
		return nil, err
	}
	if err := p.Process(ctx, doc.ID); err != nil {
		p.logger.Warn("document processing failed",
			zap.String("doc_id", doc.ID),
			zap.Error(err))
	}
	return p.storage.GetDocument(ctx, doc.ID)
}

// ProcessAsync schedules Process for an accepted document on the bounded
// worker pool and returns immediately. Callers observe progress through the
// stored document's status.
func (p *Pipeline) ProcessAsync(id string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		if err := p.Process(context.Background(), id); err != nil {
			p.logger.Warn("document processing failed",
				zap.String("doc_id", id),
				zap.Error(err))
		}
	}()
}

// Wait blocks until all background processing scheduled so far has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Process runs the pipeline stages for a stored document currently in the
// uploading state. Each stage advances the status before doing its work; any
// stage error marks the document failed and appends an audit record.
func (p *Pipeline) Process(ctx context.Context, id string) error {
	doc, err := p.storage.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	// Parse: read raw bytes and extract the text layer.
	if err := p.advance(ctx, id, models.StatusParsing); err != nil {
		return err
	}
	raw, err := p.storage.GetDocumentBytes(ctx, id)
	if err != nil {
		return p.fail(ctx, doc, fmt.Errorf("read document bytes: %w", err))
	}
	result, err := p.extractor.Extract(raw, doc.Kind)
	if err != nil {
		return p.fail(ctx, doc, err)
	}
	if result.NeedsOCR {
		if err := p.storage.SetDocumentNeedsOCR(ctx, id, true); err != nil {
			return p.fail(ctx, doc, fmt.Errorf("flag needs OCR: %w", err))
		}
		p.logger.Info("document has no text layer, flagged for OCR", zap.String("doc_id", id))
	}

	// Extract: pull structured clauses out of the text.
	if err := p.advance(ctx, id, models.StatusExtracting); err != nil {
		return err
	}
	clauses := clause.Extract(id, result.Text)

	// Chunk: split text into retrieval units.
	if err := p.advance(ctx, id, models.StatusChunking); err != nil {
		return err
	}
	chunks := p.chunker.Chunk(id, result.Text)

	// Embed and index.
	if err := p.advance(ctx, id, models.StatusEmbedding); err != nil {
		return err
	}
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
		embeddings, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return p.fail(ctx, doc, err)
		}
		chunkIDs := make([]string, len(chunks))
		for i := range chunks {
			chunks[i].Embedding = embeddings[i]
			chunkIDs[i] = chunks[i].ID
		}
		if err := p.storage.BatchCreateChunks(ctx, chunks); err != nil {
			return p.fail(ctx, doc, fmt.Errorf("store chunks: %w", err))
		}
		if err := p.vectorIndex.Add(ctx, chunkIDs, embeddings); err != nil {
			return p.fail(ctx, doc, fmt.Errorf("index vectors: %w", err))
		}
	}
	if len(clauses) > 0 {
		if err := p.storage.BatchCreateClauses(ctx, clauses); err != nil {
			return p.fail(ctx, doc, fmt.Errorf("store clauses: %w", err))
		}
		if err := p.keywordIndex.IndexClauses(ctx, clauses); err != nil {
			return p.fail(ctx, doc, fmt.Errorf("index clauses: %w", err))
		}
	}

	if err := p.advance(ctx, id, models.StatusProcessed); err != nil {
		return err
	}
	p.logger.Info("document processed",
		zap.String("doc_id", id),
		zap.Int("chunks", len(chunks)),
		zap.Int("clauses", len(clauses)))
	return nil
}

func (p *Pipeline) advance(ctx context.Context, id string, status models.DocumentStatus) error {
	if err := p.storage.UpdateDocumentStatus(ctx, id, status, ""); err != nil {
		return fmt.Errorf("advance to %s: %w", status, err)
	}
	return nil
}

// fail marks the document failed, records the reason, and appends an audit
// record so ingestion failures show up in history alongside queries.
func (p *Pipeline) fail(ctx context.Context, doc *models.Document, cause error) error {
	if err := p.storage.UpdateDocumentStatus(ctx, doc.ID, models.StatusFailed, cause.Error()); err != nil {
		p.logger.Error("mark document failed", zap.String("doc_id", doc.ID), zap.Error(err))
	}
	rec := &models.HistoryRecord{
		ID:            doc.ID,
		Kind:          "document",
		QueryText:     doc.Filename,
		Status:        models.QueryFailed,
		FailureReason: cause.Error(),
		SubmittedAt:   time.Now(),
	}
	if err := p.storage.AppendHistory(ctx, rec); err != nil {
		p.logger.Error("append failure record", zap.String("doc_id", doc.ID), zap.Error(err))
	}
	return cause
}

// IngestFile ingests a file from disk. The document ID is derived from the
// absolute path, and any previous version of the same file is replaced.
func (p *Pipeline) IngestFile(ctx context.Context, path string, allowedExts []string) (*models.Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, fmt.Errorf("%w: extension %q not in allowed list", models.ErrUnsupportedFormat, ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	id := docid.FromPath(absPath)
	if _, err := p.storage.GetDocument(ctx, id); err == nil {
		if err := p.Remove(ctx, id); err != nil {
			return nil, fmt.Errorf("replace existing document: %w", err)
		}
	}
	return p.Ingest(ctx, id, filepath.Base(absPath), content)
}

// IngestDirectory walks dir and ingests each regular file with an allowed
// extension, using a bounded worker pool. Returns the number of documents that
// reached the processed state.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string, allowedExts []string) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		info, statErr := os.Stat(path)
		if statErr != nil || !info.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk directory: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	processed := make(chan struct{}, len(paths))
	for _, path := range paths {
		g.Go(func() error {
			doc, err := p.IngestFile(gctx, path, allowedExts)
			if err != nil {
				p.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
				return nil
			}
			if doc.Status == models.StatusProcessed {
				processed <- struct{}{}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return len(processed), err
	}
	return len(processed), nil
}

// Remove deletes a document and everything derived from it: chunks, clauses,
// and index entries.
func (p *Pipeline) Remove(ctx context.Context, id string) error {
	if err := p.vectorIndex.RemoveByDocument(ctx, id); err != nil {
		return fmt.Errorf("remove vectors: %w", err)
	}
	if err := p.keywordIndex.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("remove clauses from keyword index: %w", err)
	}
	if err := p.storage.DeleteChunksByDocumentID(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := p.storage.DeleteClausesByDocumentID(ctx, id); err != nil {
		return fmt.Errorf("delete clauses: %w", err)
	}
	if err := p.storage.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	p.logger.Info("document removed", zap.String("doc_id", id))
	return nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
