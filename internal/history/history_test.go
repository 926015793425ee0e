package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/claimlens/claimlens/internal/models"
	"github.com/claimlens/claimlens/internal/storage"
)

func newTestLog(t *testing.T) (*Log, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "claims.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewLog(store), store
}

func seedRecords(t *testing.T, store storage.Storage) {
	t.Helper()
	ctx := context.Background()
	amount := int64(75000)
	base := time.Now().Add(-time.Hour)
	records := []*models.HistoryRecord{
		{
			ID: "q1", Kind: "query", QueryText: "46M, knee surgery in Pune",
			Status: models.QueryCompleted, Decision: models.DecisionApproved,
			Amount: &amount, SubmittedAt: base,
		},
		{
			ID: "q2", Kind: "query", QueryText: "30F, cosmetic surgery in Mumbai",
			Status: models.QueryCompleted, Decision: models.DecisionRejected,
			SubmittedAt: base.Add(time.Minute),
		},
		{
			ID: "q3", Kind: "query", QueryText: "unparseable",
			Status: models.QueryFailed, FailureReason: "entity extraction incomplete",
			SubmittedAt: base.Add(2 * time.Minute),
		},
	}
	for _, r := range records {
		if err := store.AppendHistory(ctx, r); err != nil {
			t.Fatalf("AppendHistory error: %v", err)
		}
	}
}

func TestAllRestartable(t *testing.T) {
	log, store := newTestLog(t)
	seedRecords(t, store)
	ctx := context.Background()

	var seqErr error
	seq := log.All(ctx, &models.HistoryFilter{}, &seqErr)

	// First pass, stopped early.
	var first []string
	for rec := range seq {
		first = append(first, rec.ID)
		break
	}
	if seqErr != nil {
		t.Fatalf("sequence error: %v", seqErr)
	}
	if len(first) != 1 {
		t.Fatalf("stopped after %d records, want 1", len(first))
	}

	// A record appended between iterations shows up on restart.
	if err := store.AppendHistory(ctx, &models.HistoryRecord{
		ID: "q4", Kind: "query", QueryText: "new", Status: models.QueryCompleted,
		Decision: models.DecisionPending, SubmittedAt: time.Now(),
	}); err != nil {
		t.Fatalf("AppendHistory error: %v", err)
	}
	var second []string
	for rec := range seq {
		second = append(second, rec.ID)
	}
	if seqErr != nil {
		t.Fatalf("sequence error: %v", seqErr)
	}
	if len(second) != 4 {
		t.Errorf("restarted iteration saw %d records, want 4", len(second))
	}
}

func TestAllFiltered(t *testing.T) {
	log, store := newTestLog(t)
	seedRecords(t, store)

	var seqErr error
	var ids []string
	for rec := range log.All(context.Background(), &models.HistoryFilter{Decision: models.DecisionApproved}, &seqErr) {
		ids = append(ids, rec.ID)
	}
	if seqErr != nil {
		t.Fatalf("sequence error: %v", seqErr)
	}
	if len(ids) != 1 || ids[0] != "q1" {
		t.Errorf("filtered ids = %v, want [q1]", ids)
	}
}

func TestListTextFilter(t *testing.T) {
	log, store := newTestLog(t)
	seedRecords(t, store)

	records, err := log.List(context.Background(), &models.HistoryFilter{Text: "knee"})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(records) != 1 || records[0].ID != "q1" {
		t.Errorf("text filter matched %d records, want q1 only", len(records))
	}
}

func TestSummarize(t *testing.T) {
	log, store := newTestLog(t)
	seedRecords(t, store)

	s, err := log.Summarize(context.Background(), nil)
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if s.Total != 3 || s.Approved != 1 || s.Rejected != 1 || s.Failed != 1 {
		t.Errorf("summary = %+v, want 3 total, 1 approved, 1 rejected, 1 failed", s)
	}
	if s.TotalAmount != 75000 {
		t.Errorf("total amount = %d, want 75000", s.TotalAmount)
	}
}
