package models

import (
	"strings"
	"time"
)

// HistoryRecord is a denormalized snapshot of a completed (or failed) query,
// written once to the audit log and never mutated. Ingestion failures are
// recorded with Kind "document" so pipeline errors are queryable too.
type HistoryRecord struct {
	ID            string      `json:"id" db:"id"`
	Kind          string      `json:"kind" db:"kind"` // "query" or "document"
	QueryText     string      `json:"query_text,omitempty" db:"query_text"`
	Status        QueryStatus `json:"status" db:"status"`
	Decision      Decision    `json:"decision,omitempty" db:"decision"`
	Amount        *int64      `json:"amount,omitempty" db:"amount"`
	Justification string      `json:"justification,omitempty" db:"justification"`
	ClauseIDs     []string    `json:"referenced_clauses,omitempty" db:"-"`
	FailureReason string      `json:"failure_reason,omitempty" db:"failure_reason"`
	SubmittedAt   time.Time   `json:"submitted_at" db:"submitted_at"`
	DurationMS    int64       `json:"duration_ms" db:"duration_ms"`
}

// HistoryFilter selects history records. Zero values match everything.
type HistoryFilter struct {
	Status   QueryStatus `json:"status,omitempty"`
	Decision Decision    `json:"decision,omitempty"`
	From     time.Time   `json:"from,omitempty"`
	To       time.Time   `json:"to,omitempty"`
	// Text matches a case-insensitive substring of the query text or record ID.
	Text string `json:"text,omitempty"`
}

// Matches reports whether r passes the filter.
func (f *HistoryFilter) Matches(r *HistoryRecord) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Decision != "" && r.Decision != f.Decision {
		return false
	}
	if !f.From.IsZero() && r.SubmittedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.SubmittedAt.After(f.To) {
		return false
	}
	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(r.QueryText), needle) &&
			!strings.Contains(strings.ToLower(r.ID), needle) {
			return false
		}
	}
	return true
}
