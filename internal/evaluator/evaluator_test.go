package evaluator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/embedding"
	"github.com/claimlens/claimlens/internal/ingest"
	"github.com/claimlens/claimlens/internal/keyword"
	"github.com/claimlens/claimlens/internal/models"
	"github.com/claimlens/claimlens/internal/payment"
	"github.com/claimlens/claimlens/internal/storage"
	"github.com/claimlens/claimlens/internal/vector"
)

const policyText = `GROUP HEALTH POLICY

2.1 Planned treatment must be availed at a network hospital for
cashless settlement.

4.3 Orthopedic procedures, including knee replacement and knee
surgery, are covered after a waiting period of 90 days, up to a limit
of Rs 1,00,000.

6.2 Cosmetic surgery and aesthetic treatments are not covered under
this policy.
`

type testEnv struct {
	store  storage.Storage
	eval   *Evaluator
	verify payment.Verifier
	docID  string
}

func newTestEnv(t *testing.T, verifier payment.Verifier, requirePayment bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "claims.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	embedder := embedding.NewMockEmbedder(32)
	vectorIndex, err := vector.NewMemoryIndex(32)
	if err != nil {
		t.Fatalf("NewMemoryIndex error: %v", err)
	}
	keywordIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "clauses.bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex error: %v", err)
	}
	t.Cleanup(func() { _ = keywordIndex.Close() })

	pipeline := ingest.NewPipeline(store, embedder, vectorIndex, keywordIndex,
		&config.PipelineConfig{Workers: 1, ChunkSize: 200, ChunkOverlap: 40})
	doc, err := pipeline.Ingest(context.Background(), "", "policy.txt", []byte(policyText))
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if doc.Status != models.StatusProcessed {
		t.Fatalf("policy ingest did not complete: %s (%s)", doc.Status, doc.FailureReason)
	}

	required := requirePayment
	eval := NewEvaluator(store, embedder, vectorIndex, keywordIndex, verifier,
		&config.SearchConfig{TopK: 10, MinScore: 0},
		&config.PaymentConfig{Required: &required, UPIID: "claims@oksbi", Amount: 20})
	return &testEnv{store: store, eval: eval, verify: verifier, docID: doc.ID}
}

func TestEvaluateApprovesCoveredProcedure(t *testing.T) {
	env := newTestEnv(t, payment.AlwaysVerified{}, false)
	ctx := context.Background()

	q, err := env.eval.Submit(ctx, "46M, knee surgery in Pune, 3-month-old insurance policy")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	result, err := env.eval.Evaluate(ctx, q.ID)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}

	if result.Status != models.QueryCompleted {
		t.Fatalf("status = %s, want completed (reason: %s)", result.Status, result.FailureReason)
	}
	if result.Decision != models.DecisionApproved {
		t.Fatalf("decision = %s, want approved (justification: %s)", result.Decision, result.Justification)
	}
	if result.Amount == nil || *result.Amount != 75000 {
		t.Errorf("amount = %v, want 75000", result.Amount)
	}
	wantClauses := map[string]bool{env.docID + "_4.3": true, env.docID + "_2.1": true}
	if len(result.ClauseIDs) != 2 {
		t.Fatalf("cited clauses = %v, want 4.3 and 2.1", result.ClauseIDs)
	}
	for _, id := range result.ClauseIDs {
		if !wantClauses[id] {
			t.Errorf("unexpected cited clause %s", id)
		}
	}
	if result.Entities.Age != 46 || result.Entities.Gender != "male" {
		t.Errorf("entities = %+v, want age 46 male", result.Entities)
	}
	if result.Entities.Location != "Pune" {
		t.Errorf("location = %s, want Pune", result.Entities.Location)
	}
	if result.Entities.PolicyMonths != 3 {
		t.Errorf("policy months = %d, want 3", result.Entities.PolicyMonths)
	}
}

func TestEvaluateRejectsWithinWaitingPeriod(t *testing.T) {
	env := newTestEnv(t, payment.AlwaysVerified{}, false)
	ctx := context.Background()

	q, err := env.eval.Submit(ctx, "52F, knee replacement in Delhi, 2-month-old policy")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	result, err := env.eval.Evaluate(ctx, q.ID)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if result.Decision != models.DecisionRejected {
		t.Fatalf("decision = %s, want rejected (justification: %s)", result.Decision, result.Justification)
	}
	if result.Amount != nil {
		t.Error("rejected query must not carry an amount")
	}
	if len(result.ClauseIDs) != 1 || result.ClauseIDs[0] != env.docID+"_4.3" {
		t.Errorf("cited clauses = %v, want the waiting-period clause", result.ClauseIDs)
	}
}

func TestEvaluateRejectsExcludedProcedure(t *testing.T) {
	env := newTestEnv(t, payment.AlwaysVerified{}, false)
	ctx := context.Background()

	q, err := env.eval.Submit(ctx, "30F, cosmetic surgery in Mumbai, 12-month-old policy")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	result, err := env.eval.Evaluate(ctx, q.ID)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if result.Decision != models.DecisionRejected {
		t.Fatalf("decision = %s, want rejected (justification: %s)", result.Decision, result.Justification)
	}
	if result.Amount != nil {
		t.Error("rejected query must not carry an amount")
	}
	if len(result.ClauseIDs) != 1 || result.ClauseIDs[0] != env.docID+"_6.2" {
		t.Errorf("cited clauses = %v, want the exclusion clause", result.ClauseIDs)
	}
}

func TestEvaluateRequiresPayment(t *testing.T) {
	verifier := payment.NewMemoryVerifier(&config.PaymentConfig{UPIID: "claims@oksbi", Amount: 20})
	env := newTestEnv(t, verifier, true)
	ctx := context.Background()

	q, err := env.eval.Submit(ctx, "46M, knee surgery in Pune, 3-month-old insurance policy")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	_, err = env.eval.Evaluate(ctx, q.ID)
	if !errors.Is(err, models.ErrPaymentRequired) {
		t.Fatalf("error = %v, want ErrPaymentRequired", err)
	}
	stored, err := env.store.GetQuery(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuery error: %v", err)
	}
	if stored.Status != models.QueryPending {
		t.Fatalf("unpaid query status = %s, want pending", stored.Status)
	}

	order, err := verifier.CreateOrder(ctx, q.ID)
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if err := verifier.Confirm(ctx, order.ID); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}

	result, err := env.eval.Evaluate(ctx, q.ID)
	if err != nil {
		t.Fatalf("Evaluate after payment error: %v", err)
	}
	if result.Decision != models.DecisionApproved {
		t.Errorf("decision = %s, want approved", result.Decision)
	}
}

func TestEvaluateIncompleteEntitiesDegradesConfidence(t *testing.T) {
	env := newTestEnv(t, payment.AlwaysVerified{}, false)
	ctx := context.Background()

	q, err := env.eval.Submit(ctx, "surgery please")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	result, err := env.eval.Evaluate(ctx, q.ID)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if result.Status != models.QueryCompleted {
		t.Fatalf("status = %s, want completed (reason: %s)", result.Status, result.FailureReason)
	}
	if result.Decision != models.DecisionPending {
		t.Fatalf("decision = %s, want pending", result.Decision)
	}
	if result.Confidence >= 0.2 {
		t.Errorf("confidence = %v, want lowered below the normal floor", result.Confidence)
	}
	if !strings.Contains(result.Justification, "did not state") {
		t.Errorf("justification %q should name the missing fields", result.Justification)
	}
}

func TestEvaluateRejectsUncoveredCategory(t *testing.T) {
	env := newTestEnv(t, payment.AlwaysVerified{}, false)
	ctx := context.Background()

	q, err := env.eval.Submit(ctx, "50M, hernia surgery in Surat, 12-month-old policy")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	result, err := env.eval.Evaluate(ctx, q.ID)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if result.Decision != models.DecisionRejected {
		t.Fatalf("decision = %s, want rejected (justification: %s)", result.Decision, result.Justification)
	}
	if len(result.ClauseIDs) != 0 {
		t.Errorf("cited clauses = %v, want none for an uncovered category", result.ClauseIDs)
	}
	if result.Amount != nil {
		t.Error("rejected query must not carry an amount")
	}
}

func TestEvaluateOnlyPendingQueries(t *testing.T) {
	env := newTestEnv(t, payment.AlwaysVerified{}, false)
	ctx := context.Background()

	q, err := env.eval.Submit(ctx, "46M, knee surgery in Pune, 3-month-old insurance policy")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if _, err := env.eval.Evaluate(ctx, q.ID); err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if _, err := env.eval.Evaluate(ctx, q.ID); err == nil {
		t.Error("re-evaluating a completed query should fail")
	}
}

func TestCancelQuery(t *testing.T) {
	env := newTestEnv(t, payment.AlwaysVerified{}, false)
	ctx := context.Background()

	q, err := env.eval.Submit(ctx, "46M, knee surgery in Pune, 3-month-old insurance policy")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	cancelled, err := env.eval.Cancel(ctx, q.ID)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if cancelled.Status != models.QueryFailed {
		t.Errorf("status = %s, want failed", cancelled.Status)
	}
	if _, err := env.eval.Cancel(ctx, q.ID); err == nil {
		t.Error("cancelling a terminal query should fail")
	}
}
