// Package keyword provides BM25 keyword search over policy clauses.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/claimlens/claimlens/internal/models"
)

// Result is a single keyword search hit. ID is the clause ID.
type Result struct {
	ID    string
	Score float64
}

// Index defines keyword search over indexed clauses.
type Index interface {
	IndexClauses(ctx context.Context, clauses []*models.Clause) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	DocCount() (uint64, error)
	Close() error
}

// clauseDoc is the flattened form of a clause stored in Bleve.
type clauseDoc struct {
	DocumentID string   `json:"document_id"`
	Number     string   `json:"number"`
	Text       string   `json:"text"`
	Categories []string `json:"categories"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// reused so unchanged documents are not re-indexed on restart. If the mapping
// changes in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "orthopedic"
	// matches exactly as written in policy text.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("categories", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("document_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("number", keywordFieldMapping)
	im.AddDocumentMapping("clause", docMapping)
	im.DefaultType = "clause"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryBleveIndex creates an in-memory Bleve index for tests.
func NewMemoryBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create in-memory bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexClauses indexes clauses in one batch keyed by clause ID.
func (b *BleveIndex) IndexClauses(ctx context.Context, clauses []*models.Clause) error {
	batch := b.index.NewBatch()
	for _, clause := range clauses {
		doc := clauseDoc{
			DocumentID: clause.DocumentID,
			Number:     clause.Number,
			Text:       clause.Text,
			Categories: clause.Conditions.Categories,
		}
		if err := batch.Index(clause.ID, doc); err != nil {
			return fmt.Errorf("batch index clause %s: %w", clause.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("execute index batch: %w", err)
	}
	return nil
}

// Search runs a match query over clause text and returns up to limit results.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(query)
	search := bleve.NewSearchRequest(q)
	search.Size = limit
	results, err := b.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DeleteByDocument removes all clauses belonging to documentID.
func (b *BleveIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	q := bleve.NewTermQuery(documentID)
	q.SetField("document_id")
	search := bleve.NewSearchRequest(q)
	search.Size = 10000
	results, err := b.index.Search(search)
	if err != nil {
		return fmt.Errorf("find clauses for document %s: %w", documentID, err)
	}
	batch := b.index.NewBatch()
	for _, hit := range results.Hits {
		batch.Delete(hit.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("delete clauses for document %s: %w", documentID, err)
	}
	return nil
}

// DocCount returns the number of indexed clauses.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the underlying Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
