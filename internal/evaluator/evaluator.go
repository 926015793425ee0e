// Package evaluator turns free-text claim queries into coverage decisions
// backed by retrieved policy clauses.
package evaluator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/embedding"
	"github.com/claimlens/claimlens/internal/keyword"
	"github.com/claimlens/claimlens/internal/models"
	"github.com/claimlens/claimlens/internal/payment"
	"github.com/claimlens/claimlens/internal/storage"
	"github.com/claimlens/claimlens/internal/vector"
)

// Evaluator evaluates claim queries against indexed policy clauses.
type Evaluator struct {
	storage        storage.Storage
	embedder       embedding.Embedder
	vectorIndex    vector.Index
	keywordIndex   keyword.Index
	payments       payment.Verifier
	topK           int
	minScore       float64
	requirePayment bool
	logger         *zap.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets a logger for evaluation events.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator creates an evaluator with the given dependencies.
func NewEvaluator(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.Index,
	keywordIndex keyword.Index,
	payments payment.Verifier,
	searchCfg *config.SearchConfig,
	paymentCfg *config.PaymentConfig,
	opts ...Option,
) *Evaluator {
	e := &Evaluator{
		storage:        store,
		embedder:       embedder,
		vectorIndex:    vectorIndex,
		keywordIndex:   keywordIndex,
		payments:       payments,
		topK:           searchCfg.TopK,
		minScore:       searchCfg.MinScore,
		requirePayment: paymentCfg.RequiredOrDefault(),
		logger:         zap.NewNop(),
	}
	if e.topK <= 0 {
		e.topK = 10
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit records a new claim query in the pending state. Evaluation does not
// start until the payment precondition is satisfied and Evaluate is called.
func (e *Evaluator) Submit(ctx context.Context, text string) (*models.Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("query text is required")
	}
	q := &models.Query{
		ID:          uuid.New().String(),
		Text:        text,
		SubmittedAt: time.Now(),
		Status:      models.QueryPending,
	}
	if err := e.storage.CreateQuery(ctx, q); err != nil {
		return nil, fmt.Errorf("store query: %w", err)
	}
	e.logger.Info("query submitted", zap.String("query_id", q.ID))
	return q, nil
}

// Evaluate runs the pending query through entity extraction, clause retrieval,
// and decision. If payment is required and unverified, the query is left
// pending and models.ErrPaymentRequired is returned. Incomplete entity
// extraction degrades the result's confidence instead of failing; hard
// evaluation problems (embedding outage after retries, cancellation) mark the
// query failed and are reported through its status rather than as an error.
func (e *Evaluator) Evaluate(ctx context.Context, id string) (*models.Query, error) {
	q, err := e.storage.GetQuery(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	if q.Status != models.QueryPending {
		return nil, fmt.Errorf("query %s is %s, only pending queries can be evaluated", id, q.Status)
	}

	if e.requirePayment {
		paid, err := e.payments.Verified(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check payment: %w", err)
		}
		if !paid {
			return q, fmt.Errorf("%w: query %s", models.ErrPaymentRequired, id)
		}
	}

	start := time.Now()
	q.Status = models.QueryProcessing
	if err := e.storage.UpdateQuery(ctx, q); err != nil {
		return nil, fmt.Errorf("start processing: %w", err)
	}

	q.Entities = ExtractEntities(q.Text)
	missingEntities := q.Entities.Missing()
	if len(missingEntities) > 0 {
		// Soft failure: evaluation continues with partial entities at
		// reduced confidence.
		e.logger.Warn("entity extraction incomplete",
			zap.String("query_id", q.ID),
			zap.Strings("missing", missingEntities),
			zap.Error(models.ErrEntityExtractionIncomplete))
	}
	if err := ctx.Err(); err != nil {
		return e.failQuery(ctx, q, start, err)
	}

	candidates, err := e.retrieve(ctx, q.Text)
	if err != nil {
		return e.failQuery(ctx, q, start, err)
	}
	if err := ctx.Err(); err != nil {
		return e.failQuery(ctx, q, start, err)
	}

	e.decide(q, candidates)
	if len(missingEntities) > 0 {
		q.Confidence /= 2
		q.Justification = strings.TrimSpace(q.Justification +
			fmt.Sprintf(" The query did not state: %s.", strings.Join(missingEntities, ", ")))
	}

	q.Status = models.QueryCompleted
	q.Duration = time.Since(start)
	if err := q.Validate(); err != nil {
		return e.failQuery(ctx, q, start, fmt.Errorf("%w: %v", models.ErrEvaluationFailed, err))
	}
	if err := e.storage.UpdateQuery(ctx, q); err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}
	e.appendHistory(ctx, q)
	e.logger.Info("query evaluated",
		zap.String("query_id", q.ID),
		zap.String("decision", string(q.Decision)),
		zap.Duration("duration", q.Duration))
	return q, nil
}

// Cancel aborts a query that has not completed. Cancelled queries end in the
// failed state with the reason recorded.
func (e *Evaluator) Cancel(ctx context.Context, id string) (*models.Query, error) {
	q, err := e.storage.GetQuery(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	if q.Status == models.QueryCompleted || q.Status == models.QueryFailed {
		return nil, fmt.Errorf("query %s is already %s", id, q.Status)
	}
	if q.Status == models.QueryPending {
		q.Status = models.QueryProcessing
		if err := e.storage.UpdateQuery(ctx, q); err != nil {
			return nil, fmt.Errorf("cancel query: %w", err)
		}
	}
	q.Status = models.QueryFailed
	q.FailureReason = "cancelled by user"
	if err := e.storage.UpdateQuery(ctx, q); err != nil {
		return nil, fmt.Errorf("cancel query: %w", err)
	}
	e.appendHistory(ctx, q)
	return q, nil
}

// retrieve gathers candidate clauses by combining semantic search over chunks
// with keyword search over clause text.
func (e *Evaluator) retrieve(ctx context.Context, text string) ([]*models.Clause, error) {
	seen := make(map[string]bool)
	var candidates []*models.Clause

	queryEmb, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w (embed query)", err)
	}
	hits, err := e.vectorIndex.Search(ctx, queryEmb, e.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	docSeen := make(map[string]bool)
	for _, hit := range hits {
		if hit.Score < e.minScore {
			continue
		}
		docID := documentIDFromChunk(hit.ID)
		if docID == "" || docSeen[docID] {
			continue
		}
		docSeen[docID] = true
		clauses, err := e.storage.GetClausesByDocumentID(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("load clauses for %s: %w", docID, err)
		}
		for _, c := range clauses {
			if !seen[c.ID] {
				seen[c.ID] = true
				candidates = append(candidates, c)
			}
		}
	}

	kwHits, err := e.keywordIndex.Search(ctx, text, e.topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	for _, hit := range kwHits {
		if seen[hit.ID] {
			continue
		}
		c, err := e.storage.GetClause(ctx, hit.ID)
		if err != nil {
			continue
		}
		seen[c.ID] = true
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// decide applies the candidate clauses to the query's entities and fills in
// decision, amount, justification, cited clauses, and confidence.
func (e *Evaluator) decide(q *models.Query, candidates []*models.Clause) {
	proc, ok := LookupProcedure(q.Text)
	if !ok {
		q.Decision = models.DecisionPending
		q.Justification = "Procedure could not be matched to a known category; manual review required."
		q.Confidence = 0.2
		return
	}

	var exclusionClause, coverageClause *models.Clause
	var supporting []*models.Clause
	for _, c := range candidates {
		cond := c.Conditions
		switch {
		case cond.Exclusion && categoryListed(cond.Categories, proc.Category):
			if exclusionClause == nil {
				exclusionClause = c
			}
		case !cond.Exclusion && categoryListed(cond.Categories, proc.Category):
			// Prefer the clause that states a limit; it is the operative one.
			if coverageClause == nil || (coverageClause.Conditions.CoverageLimit == 0 && cond.CoverageLimit > 0) {
				coverageClause = c
			}
		case cond.NetworkOnly && len(cond.Categories) == 0:
			supporting = append(supporting, c)
		}
	}

	policyDays := q.Entities.PolicyMonths * 30

	switch {
	case exclusionClause != nil:
		q.Decision = models.DecisionRejected
		q.Justification = fmt.Sprintf("%s (%s) is excluded from coverage under clause %s.",
			titleCase(proc.Name), proc.Category, exclusionClause.Number)
		q.ClauseIDs = []string{exclusionClause.ID}
		q.Confidence = 0.9

	case coverageClause == nil:
		// A known procedure with no authorizing clause is a rejection, not an
		// evaluation failure.
		q.Decision = models.DecisionRejected
		q.Justification = fmt.Sprintf("%s: the policy authorizes no coverage for %s procedures.",
			titleCase(models.ErrNoMatchingClause.Error()), proc.Category)
		q.Confidence = 0.6

	case coverageClause.Conditions.WaitingDays > 0 && policyDays < coverageClause.Conditions.WaitingDays:
		q.Decision = models.DecisionRejected
		q.Justification = fmt.Sprintf(
			"Clause %s covers %s procedures only after a waiting period of %d days; the policy is %d days old.",
			coverageClause.Number, proc.Category, coverageClause.Conditions.WaitingDays, policyDays)
		q.ClauseIDs = []string{coverageClause.ID}
		q.Confidence = 0.9

	default:
		amount := proc.Cost
		if limit := coverageClause.Conditions.CoverageLimit; limit > 0 && limit < amount {
			amount = limit
		}
		q.Decision = models.DecisionApproved
		q.Amount = &amount
		q.ClauseIDs = []string{coverageClause.ID}
		just := fmt.Sprintf("%s is covered under clause %s", titleCase(proc.Name), coverageClause.Number)
		if limit := coverageClause.Conditions.CoverageLimit; limit > 0 {
			just += fmt.Sprintf(" up to a limit of %d", limit)
		}
		for _, s := range supporting {
			q.ClauseIDs = append(q.ClauseIDs, s.ID)
			just += fmt.Sprintf("; clause %s requires treatment at a network hospital", s.Number)
		}
		q.Justification = just + "."
		q.Confidence = 0.9
	}
}

// failQuery marks the query failed with the cause, records it, and returns the
// query. The cause is not propagated as an error: the failure is the outcome.
func (e *Evaluator) failQuery(ctx context.Context, q *models.Query, start time.Time, cause error) (*models.Query, error) {
	q.Status = models.QueryFailed
	q.FailureReason = cause.Error()
	q.Decision = ""
	q.Amount = nil
	q.Duration = time.Since(start)
	if err := e.storage.UpdateQuery(ctx, q); err != nil {
		return nil, fmt.Errorf("store failed query: %w", err)
	}
	e.appendHistory(ctx, q)
	e.logger.Warn("query failed",
		zap.String("query_id", q.ID),
		zap.String("reason", q.FailureReason))
	return q, nil
}

func (e *Evaluator) appendHistory(ctx context.Context, q *models.Query) {
	rec := &models.HistoryRecord{
		ID:            q.ID,
		Kind:          "query",
		QueryText:     q.Text,
		Status:        q.Status,
		Decision:      q.Decision,
		Amount:        q.Amount,
		Justification: q.Justification,
		ClauseIDs:     q.ClauseIDs,
		FailureReason: q.FailureReason,
		SubmittedAt:   q.SubmittedAt,
		DurationMS:    q.Duration.Milliseconds(),
	}
	if err := e.storage.AppendHistory(ctx, rec); err != nil {
		e.logger.Error("append history", zap.String("query_id", q.ID), zap.Error(err))
	}
}

// categoryListed reports whether cat appears in the clause's explicit category
// list. Unlike Clause.CoversCategory, an empty list does not match: decisions
// only cite clauses that name the procedure's category.
func categoryListed(categories []string, cat string) bool {
	for _, c := range categories {
		if c == cat {
			return true
		}
	}
	return false
}

func documentIDFromChunk(chunkID string) string {
	i := strings.LastIndex(chunkID, "_")
	if i <= 0 {
		return ""
	}
	return chunkID[:i]
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
