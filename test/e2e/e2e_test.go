package e2e

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/embedding"
	"github.com/claimlens/claimlens/internal/evaluator"
	"github.com/claimlens/claimlens/internal/ingest"
	"github.com/claimlens/claimlens/internal/keyword"
	"github.com/claimlens/claimlens/internal/models"
	"github.com/claimlens/claimlens/internal/payment"
	"github.com/claimlens/claimlens/internal/storage"
	"github.com/claimlens/claimlens/internal/vector"
)

const e2eDimensions = 32

type e2eStack struct {
	store    storage.Storage
	pipeline *ingest.Pipeline
	eval     *evaluator.Evaluator
}

func newE2EStack(t *testing.T) *e2eStack {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "claims.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	embedder := embedding.NewMockEmbedder(e2eDimensions)
	vecIndex, err := vector.NewMemoryIndex(e2eDimensions)
	if err != nil {
		t.Fatal(err)
	}
	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "clauses.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kwIndex.Close() })

	pipeline := ingest.NewPipeline(store, embedder, vecIndex, kwIndex,
		&config.PipelineConfig{Workers: 2, ChunkSize: 200, ChunkOverlap: 40})

	disabled := false
	eval := evaluator.NewEvaluator(store, embedder, vecIndex, kwIndex,
		payment.AlwaysVerified{},
		&config.SearchConfig{TopK: 20, MinScore: 0},
		&config.PaymentConfig{Required: &disabled})

	return &e2eStack{store: store, pipeline: pipeline, eval: eval}
}

func runClaims(t *testing.T, eval *evaluator.Evaluator, claims []ClaimTestCase) {
	t.Helper()
	ctx := context.Background()
	for _, tc := range claims {
		t.Run(tc.Description, func(t *testing.T) {
			q, err := eval.Submit(ctx, tc.Query)
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			result, err := eval.Evaluate(ctx, q.ID)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if result.Status != models.QueryCompleted {
				t.Fatalf("status = %s, want completed (reason: %s)", result.Status, result.FailureReason)
			}
			if result.Decision != tc.Decision {
				t.Fatalf("decision = %s, want %s (justification: %s)",
					result.Decision, tc.Decision, result.Justification)
			}
			switch {
			case tc.Amount == nil && result.Amount != nil:
				t.Errorf("amount = %d, want none", *result.Amount)
			case tc.Amount != nil && result.Amount == nil:
				t.Errorf("amount missing, want %d", *tc.Amount)
			case tc.Amount != nil && *result.Amount != *tc.Amount:
				t.Errorf("amount = %d, want %d", *result.Amount, *tc.Amount)
			}
			if tc.CitedNumber != "" && !ContainsClauseNumber(result.ClauseIDs, tc.CitedNumber) {
				t.Errorf("cited clauses %v do not include clause %s", result.ClauseIDs, tc.CitedNumber)
			}
		})
	}
}

func TestE2E_ClaimDecisions(t *testing.T) {
	stack := newE2EStack(t)
	ctx := context.Background()
	corpus := BuildCorpus()

	for _, p := range corpus.Policies {
		doc, err := stack.pipeline.Ingest(ctx, p.ID, p.Filename+".txt", []byte(p.Text))
		if err != nil {
			t.Fatalf("ingest %s: %v", p.ID, err)
		}
		if doc.Status != models.StatusProcessed {
			t.Fatalf("policy %s did not process: %s (%s)", p.ID, doc.Status, doc.FailureReason)
		}
	}
	t.Logf("ingested %d policies; running %d claim test cases", len(corpus.Policies), len(corpus.Claims))

	runClaims(t, stack.eval, corpus.Claims)
}

// TestE2E_FileIntakeClaimDecisions writes the corpus as files of every
// generated format, ingests the directory, and expects the same decisions.
// Document IDs are path-derived here, so assertions rely on clause number
// suffixes rather than fixed IDs.
func TestE2E_FileIntakeClaimDecisions(t *testing.T) {
	stack := newE2EStack(t)
	ctx := context.Background()
	corpus := BuildCorpus()

	docDir := t.TempDir()
	for i, p := range corpus.Policies {
		ext := GeneratedExtensions[i%len(GeneratedExtensions)]
		content, err := BuildFile(ext, p.Text)
		if err != nil {
			t.Fatalf("build %s file: %v", ext, err)
		}
		if err := os.WriteFile(filepath.Join(docDir, p.Filename+ext), content, 0644); err != nil {
			t.Fatal(err)
		}
	}

	n, err := stack.pipeline.IngestDirectory(ctx, docDir, GeneratedExtensions)
	if err != nil {
		t.Fatalf("ingest directory: %v", err)
	}
	if n != len(corpus.Policies) {
		t.Fatalf("processed %d documents, want %d", n, len(corpus.Policies))
	}

	runClaims(t, stack.eval, corpus.Claims)
}
