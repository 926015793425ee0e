// Package export serializes evaluation results and the audit log to JSON that
// can be re-imported without loss.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/claimlens/claimlens/internal/models"
	"github.com/claimlens/claimlens/internal/storage"
)

// Exporter reads evaluation data out of storage for export.
type Exporter struct {
	storage storage.Storage
}

// NewExporter creates an exporter over the given storage.
func NewExporter(store storage.Storage) *Exporter {
	return &Exporter{storage: store}
}

// QueryExport is a self-contained snapshot of one evaluated query, including
// the full text of every cited clause.
type QueryExport struct {
	ExportedAt    time.Time        `json:"exported_at"`
	Query         *models.Query    `json:"query"`
	Clauses       []*models.Clause `json:"clauses,omitempty"`
	AmountDisplay string           `json:"amount_display,omitempty"`
}

// HistoryExport is a snapshot of the audit log.
type HistoryExport struct {
	ExportedAt time.Time               `json:"exported_at"`
	Records    []*models.HistoryRecord `json:"records"`
}

// ExportQuery builds an export of the query and its cited clauses.
func (e *Exporter) ExportQuery(ctx context.Context, id string) (*QueryExport, error) {
	q, err := e.storage.GetQuery(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	out := &QueryExport{ExportedAt: time.Now().UTC(), Query: q}
	for _, clauseID := range q.ClauseIDs {
		c, err := e.storage.GetClause(ctx, clauseID)
		if err != nil {
			return nil, fmt.Errorf("load clause %s: %w", clauseID, err)
		}
		out.Clauses = append(out.Clauses, c)
	}
	if q.Amount != nil {
		out.AmountDisplay = FormatRupees(*q.Amount)
	}
	return out, nil
}

// ExportHistory builds an export of all history records passing the filter.
func (e *Exporter) ExportHistory(ctx context.Context, filter *models.HistoryFilter) (*HistoryExport, error) {
	if filter == nil {
		filter = &models.HistoryFilter{}
	}
	records, err := e.storage.ListHistory(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if records == nil {
		records = []*models.HistoryRecord{}
	}
	return &HistoryExport{ExportedAt: time.Now().UTC(), Records: records}, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ReadHistory parses a history export produced by WriteJSON.
func ReadHistory(r io.Reader) (*HistoryExport, error) {
	var out HistoryExport
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode history export: %w", err)
	}
	return &out, nil
}

// FormatRupees renders an amount with the rupee sign and Indian digit
// grouping: the last three digits form one group, every two digits after that
// form another, e.g. 100000 -> "₹1,00,000".
func FormatRupees(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var groups []string
	if len(digits) > 3 {
		head := digits[:len(digits)-3]
		groups = append(groups, digits[len(digits)-3:])
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		groups = append([]string{head}, groups...)
	} else {
		groups = []string{digits}
	}
	out := "₹" + strings.Join(groups, ",")
	if neg {
		out = "-" + out
	}
	return out
}
