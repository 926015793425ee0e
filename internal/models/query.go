package models

import (
	"fmt"
	"time"
)

// QueryStatus is the evaluation state of a claim query.
// pending -> processing -> {completed | failed}, strictly forward.
type QueryStatus string

const (
	QueryPending    QueryStatus = "pending"
	QueryProcessing QueryStatus = "processing"
	QueryCompleted  QueryStatus = "completed"
	QueryFailed     QueryStatus = "failed"
)

var queryStatusOrder = map[QueryStatus]int{
	QueryPending:    0,
	QueryProcessing: 1,
	QueryCompleted:  2,
	QueryFailed:     2,
}

// CanTransition reports whether a query may move from s to next. Completed and
// failed are terminal.
func (s QueryStatus) CanTransition(next QueryStatus) bool {
	from, ok := queryStatusOrder[s]
	if !ok || s == QueryCompleted || s == QueryFailed {
		return false
	}
	to, ok := queryStatusOrder[next]
	if !ok {
		return false
	}
	return to == from+1
}

// Decision is the outcome of claim-query evaluation.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionPending  Decision = "pending"
)

// Entities holds structured fields extracted from a free-text claim query.
// Zero values mean the field was not found.
type Entities struct {
	Age            int    `json:"age,omitempty"`
	Gender         string `json:"gender,omitempty"`
	Procedure      string `json:"procedure,omitempty"`
	Location       string `json:"location,omitempty"`
	PolicyMonths   int    `json:"policy_months,omitempty"`
	PolicyDuration string `json:"policy_duration,omitempty"`
}

// Missing returns the names of required fields that were not extracted.
func (e *Entities) Missing() []string {
	var missing []string
	if e.Age == 0 {
		missing = append(missing, "age")
	}
	if e.Gender == "" {
		missing = append(missing, "gender")
	}
	if e.Procedure == "" {
		missing = append(missing, "procedure")
	}
	if e.Location == "" {
		missing = append(missing, "location")
	}
	if e.PolicyMonths == 0 {
		missing = append(missing, "policy_duration")
	}
	return missing
}

// Query is a claim query and its evaluation result. Immutable once completed.
// Amount is non-nil if and only if Decision is approved.
type Query struct {
	ID            string        `json:"id" db:"id"`
	Text          string        `json:"text" db:"text"`
	SubmittedAt   time.Time     `json:"submitted_at" db:"submitted_at"`
	Status        QueryStatus   `json:"status" db:"status"`
	Entities      Entities      `json:"entities" db:"-"`
	Decision      Decision      `json:"decision" db:"decision"`
	Amount        *int64        `json:"amount,omitempty" db:"amount"`
	Justification string        `json:"justification,omitempty" db:"justification"`
	ClauseIDs     []string      `json:"referenced_clauses,omitempty" db:"-"`
	Confidence    float64       `json:"confidence" db:"confidence"`
	FailureReason string        `json:"failure_reason,omitempty" db:"failure_reason"`
	Duration      time.Duration `json:"duration_ms" db:"duration_ms"`
}

// Validate checks the amount/decision invariant.
func (q *Query) Validate() error {
	if q.Decision == DecisionApproved && q.Amount == nil {
		return fmt.Errorf("query %s: approved without amount", q.ID)
	}
	if q.Decision != DecisionApproved && q.Amount != nil {
		return fmt.Errorf("query %s: amount set for %s decision", q.ID, q.Decision)
	}
	return nil
}
