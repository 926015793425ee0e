package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/claimlens/claimlens/internal/models"
)

func testStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "claims.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDocument_createAndGet(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()

	doc := &models.Document{ID: "d1", Filename: "Policy_Terms_2024.pdf", Kind: models.MimePDF}
	raw := []byte("%PDF-1.4 fake")
	if err := store.CreateDocument(ctx, doc, raw); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetDocument(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "Policy_Terms_2024.pdf" || got.Status != models.StatusUploading {
		t.Errorf("unexpected doc: %+v", got)
	}
	gotRaw, err := store.GetDocumentBytes(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if string(gotRaw) != string(raw) {
		t.Errorf("raw bytes mismatch: %q", gotRaw)
	}
}

func TestDocument_statusTransitions(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	doc := &models.Document{ID: "d1", Filename: "p.pdf", Kind: models.MimePDF}
	if err := store.CreateDocument(ctx, doc, nil); err != nil {
		t.Fatal(err)
	}

	path := []models.DocumentStatus{
		models.StatusParsing, models.StatusExtracting, models.StatusChunking,
		models.StatusEmbedding, models.StatusProcessed,
	}
	for _, next := range path {
		if err := store.UpdateDocumentStatus(ctx, "d1", next, ""); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	// Terminal: no further moves.
	if err := store.UpdateDocumentStatus(ctx, "d1", models.StatusFailed, "x"); err == nil {
		t.Error("expected error moving processed -> failed")
	}
}

func TestDocument_skipTransitionRejected(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	doc := &models.Document{ID: "d1", Filename: "p.pdf", Kind: models.MimePDF}
	if err := store.CreateDocument(ctx, doc, nil); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateDocumentStatus(ctx, "d1", models.StatusChunking, ""); err == nil {
		t.Error("expected error skipping from uploading to chunking")
	}
}

func TestDocument_failedRecordsReason(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	doc := &models.Document{ID: "d1", Filename: "p.pdf", Kind: models.MimePDF}
	if err := store.CreateDocument(ctx, doc, nil); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateDocumentStatus(ctx, "d1", models.StatusParsing, ""); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateDocumentStatus(ctx, "d1", models.StatusFailed, "embedding service unavailable"); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetDocument(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.FailureReason != "embedding service unavailable" {
		t.Errorf("failure reason = %q", got.FailureReason)
	}
}

func TestChunks_batchAndFetch(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	doc := &models.Document{ID: "d1", Filename: "p.txt", Kind: models.MimeTXT}
	if err := store.CreateDocument(ctx, doc, nil); err != nil {
		t.Fatal(err)
	}
	chunks := []*models.Chunk{
		{ID: "c1", DocumentID: "d1", Text: "first", Start: 0, End: 5, Position: 0},
		{ID: "c2", DocumentID: "d1", Text: "second", Start: 3, End: 9, Position: 1},
	}
	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetChunksByDocumentID(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Position != 0 || got[1].Position != 1 {
		t.Errorf("unexpected chunks: %+v", got)
	}
	if got[1].Start != 3 || got[1].End != 9 {
		t.Errorf("offsets lost: %+v", got[1])
	}
}

func TestClauses_roundTrip(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	doc := &models.Document{ID: "d1", Filename: "p.txt", Kind: models.MimeTXT}
	if err := store.CreateDocument(ctx, doc, nil); err != nil {
		t.Fatal(err)
	}
	clauses := []*models.Clause{{
		ID:         "d1_4.3",
		DocumentID: "d1",
		Number:     "4.3",
		Text:       "Orthopedic surgeries are covered after 90 days with a limit of 100000.",
		Conditions: models.ClauseConditions{
			WaitingDays:   90,
			CoverageLimit: 100000,
			Categories:    []string{"orthopedic"},
		},
	}}
	if err := store.BatchCreateClauses(ctx, clauses); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetClause(ctx, "d1_4.3")
	if err != nil {
		t.Fatal(err)
	}
	if got.Conditions.WaitingDays != 90 || got.Conditions.CoverageLimit != 100000 {
		t.Errorf("conditions lost: %+v", got.Conditions)
	}
	if len(got.Conditions.Categories) != 1 || got.Conditions.Categories[0] != "orthopedic" {
		t.Errorf("categories lost: %+v", got.Conditions.Categories)
	}
}

func TestDeleteDocument_cascadesChildren(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	doc := &models.Document{ID: "d1", Filename: "p.txt", Kind: models.MimeTXT}
	if err := store.CreateDocument(ctx, doc, nil); err != nil {
		t.Fatal(err)
	}
	chunks := []*models.Chunk{{ID: "c1", DocumentID: "d1", Text: "first", Start: 0, End: 5, Position: 0}}
	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	clauses := []*models.Clause{{ID: "d1_2.1", DocumentID: "d1", Number: "2.1", Text: "Network hospitals only."}}
	if err := store.BatchCreateClauses(ctx, clauses); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatalf("DeleteDocument error: %v", err)
	}
	gotChunks, err := store.GetChunksByDocumentID(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(gotChunks) != 0 {
		t.Errorf("chunks survived delete: %+v", gotChunks)
	}
	gotClauses, err := store.GetClausesByDocumentID(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(gotClauses) != 0 {
		t.Errorf("clauses survived delete: %+v", gotClauses)
	}
}

func TestQuery_statusEnforced(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	q := &models.Query{ID: "q1", Text: "46M, knee surgery in Pune, 3-month policy"}
	if err := store.CreateQuery(ctx, q); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetQuery(ctx, "q1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.QueryPending || got.Decision != models.DecisionPending {
		t.Errorf("initial state: %+v", got)
	}

	// pending -> completed skips processing.
	got.Status = models.QueryCompleted
	if err := store.UpdateQuery(ctx, got); err == nil {
		t.Error("expected error skipping processing")
	}

	got.Status = models.QueryProcessing
	if err := store.UpdateQuery(ctx, got); err != nil {
		t.Fatal(err)
	}
	amount := int64(75000)
	got.Status = models.QueryCompleted
	got.Decision = models.DecisionApproved
	got.Amount = &amount
	got.ClauseIDs = []string{"d1_4.3"}
	got.Duration = 1200 * time.Millisecond
	if err := store.UpdateQuery(ctx, got); err != nil {
		t.Fatal(err)
	}
	final, err := store.GetQuery(ctx, "q1")
	if err != nil {
		t.Fatal(err)
	}
	if final.Amount == nil || *final.Amount != 75000 {
		t.Errorf("amount = %v", final.Amount)
	}
	if len(final.ClauseIDs) != 1 || final.ClauseIDs[0] != "d1_4.3" {
		t.Errorf("clause ids = %v", final.ClauseIDs)
	}
	if final.Duration != 1200*time.Millisecond {
		t.Errorf("duration = %v", final.Duration)
	}
}

func TestHistory_filterAndOrder(t *testing.T) {
	store := testStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	amount := int64(75000)
	records := []*models.HistoryRecord{
		{ID: "h1", Kind: "query", QueryText: "knee surgery in Pune", Status: models.QueryCompleted, Decision: models.DecisionApproved, Amount: &amount, SubmittedAt: base},
		{ID: "h2", Kind: "query", QueryText: "cosmetic surgery Delhi", Status: models.QueryCompleted, Decision: models.DecisionRejected, SubmittedAt: base.Add(time.Hour)},
		{ID: "h3", Kind: "document", QueryText: "", Status: models.QueryFailed, FailureReason: "embedding service unavailable", SubmittedAt: base.Add(2 * time.Hour)},
	}
	for _, rec := range records {
		if err := store.AppendHistory(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.ListHistory(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d records", len(all))
	}
	// Newest first.
	if all[0].ID != "h3" || all[2].ID != "h1" {
		t.Errorf("order: %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}

	approved, err := store.ListHistory(ctx, &models.HistoryFilter{Decision: models.DecisionApproved})
	if err != nil {
		t.Fatal(err)
	}
	if len(approved) != 1 || approved[0].ID != "h1" {
		t.Errorf("approved filter: %+v", approved)
	}

	text, err := store.ListHistory(ctx, &models.HistoryFilter{Text: "pune"})
	if err != nil {
		t.Fatal(err)
	}
	if len(text) != 1 || text[0].ID != "h1" {
		t.Errorf("text filter: %+v", text)
	}

	ranged, err := store.ListHistory(ctx, &models.HistoryFilter{From: base.Add(30 * time.Minute)})
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 2 {
		t.Errorf("date range filter: %d records", len(ranged))
	}
}
