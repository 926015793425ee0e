package models

import "time"

// ClauseConditions are the structured coverage conditions extracted from a
// clause's text. Zero values mean the condition does not apply.
type ClauseConditions struct {
	// WaitingDays is the minimum policy age in days before coverage applies.
	WaitingDays int `json:"waiting_days,omitempty"`
	// CoverageLimit is the maximum payable amount in rupees (0 = no limit stated).
	CoverageLimit int64 `json:"coverage_limit,omitempty"`
	// Categories are the procedure categories the clause covers or excludes.
	Categories []string `json:"categories,omitempty"`
	// NetworkOnly requires the procedure to be performed at a network hospital.
	NetworkOnly bool `json:"network_only,omitempty"`
	// Exclusion marks the clause as excluding rather than authorizing coverage.
	Exclusion bool `json:"exclusion,omitempty"`
}

// Clause is a structured unit of policy text with explicit coverage conditions.
// Clauses are extracted once at indexing time and read-only thereafter.
type Clause struct {
	ID         string           `json:"id" db:"id"`
	DocumentID string           `json:"document_id" db:"document_id"`
	Number     string           `json:"number" db:"number"`
	Text       string           `json:"text" db:"text"`
	Conditions ClauseConditions `json:"conditions" db:"-"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}

// CoversCategory reports whether the clause's category list contains cat.
// A clause with no categories applies to any procedure.
func (c *Clause) CoversCategory(cat string) bool {
	if len(c.Conditions.Categories) == 0 {
		return true
	}
	for _, have := range c.Conditions.Categories {
		if have == cat {
			return true
		}
	}
	return false
}
