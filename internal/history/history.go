// Package history exposes the append-only audit log of query evaluations and
// ingestion failures.
package history

import (
	"context"
	"iter"

	"github.com/claimlens/claimlens/internal/models"
	"github.com/claimlens/claimlens/internal/storage"
)

// Log reads the audit trail kept in storage. Records are returned newest
// first and are never mutated after being written.
type Log struct {
	storage storage.Storage
}

// NewLog creates a history log over the given storage.
func NewLog(store storage.Storage) *Log {
	return &Log{storage: store}
}

// List returns all records passing the filter, newest first. A nil filter
// matches everything.
func (l *Log) List(ctx context.Context, filter *models.HistoryFilter) ([]*models.HistoryRecord, error) {
	if filter == nil {
		filter = &models.HistoryFilter{}
	}
	return l.storage.ListHistory(ctx, filter)
}

// All returns a sequence over the filtered records. The sequence is loaded
// lazily on first iteration and can be restarted; each restart re-reads from
// storage so a restarted iteration sees records appended in between. Errors
// during a read end the sequence early and are reported through errp.
func (l *Log) All(ctx context.Context, filter *models.HistoryFilter, errp *error) iter.Seq[*models.HistoryRecord] {
	return func(yield func(*models.HistoryRecord) bool) {
		records, err := l.List(ctx, filter)
		if err != nil {
			if errp != nil {
				*errp = err
			}
			return
		}
		for _, rec := range records {
			if !yield(rec) {
				return
			}
		}
	}
}

// Summary aggregates decisions over the filtered records.
type Summary struct {
	Total       int   `json:"total"`
	Approved    int   `json:"approved"`
	Rejected    int   `json:"rejected"`
	Pending     int   `json:"pending"`
	Failed      int   `json:"failed"`
	TotalAmount int64 `json:"total_amount"`
}

// Summarize computes decision counts and the total approved amount.
func (l *Log) Summarize(ctx context.Context, filter *models.HistoryFilter) (*Summary, error) {
	records, err := l.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	s := &Summary{Total: len(records)}
	for _, r := range records {
		switch {
		case r.Status == models.QueryFailed:
			s.Failed++
		case r.Decision == models.DecisionApproved:
			s.Approved++
			if r.Amount != nil {
				s.TotalAmount += *r.Amount
			}
		case r.Decision == models.DecisionRejected:
			s.Rejected++
		default:
			s.Pending++
		}
	}
	return s, nil
}
