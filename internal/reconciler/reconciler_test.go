package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"settlement-ingestion-service/internal/models"
	"settlement-ingestion-service/internal/store"
	apperrors "settlement-ingestion-service/pkg/errors"

	"github.com/shopspring/decimal"
)

func testEntry(sourceKey string, amount float64) *models.LedgerEntry {
	return models.NewLedgerEntry("tenant-1", sourceKey,
		models.EntryKindReceivable, decimal.NewFromFloat(amount),
		time.Date(2024, 5, 24, 0, 0, 0, 0, time.UTC))
}

func TestReconcileCreatesNewEntries(t *testing.T) {
	mem := store.NewMemStore()
	entries := []*models.LedgerEntry{testEntry("k1", 100), testEntry("k2", 200)}

	outcome, err := NewReconciler(mem).Reconcile(context.Background(), "tenant-1", entries)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if outcome.Created != 2 || outcome.Updated != 0 || outcome.Skipped != 0 || outcome.Failed != 0 {
		t.Fatalf("outcome = %+v, want 2 created", outcome)
	}
	if mem.Len() != 2 {
		t.Fatalf("store holds %d entries, want 2", mem.Len())
	}
}

func TestReconcileUpdatesCapturedEntries(t *testing.T) {
	mem := store.NewMemStore()
	ctx := context.Background()

	if _, err := NewReconciler(mem).Reconcile(ctx, "tenant-1", []*models.LedgerEntry{testEntry("k1", 100)}); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	outcome, err := NewReconciler(mem).Reconcile(ctx, "tenant-1", []*models.LedgerEntry{testEntry("k1", 150)})
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if outcome.Updated != 1 || outcome.Created != 0 {
		t.Fatalf("outcome = %+v, want 1 updated", outcome)
	}

	stored := mem.Get("tenant-1", "k1")
	if !stored.Amount.Equal(decimal.NewFromFloat(150)) {
		t.Errorf("amount = %s, want the corrected 150", stored.Amount)
	}
}

func TestReconcileSkipsEntriesPastCapture(t *testing.T) {
	mem := store.NewMemStore()
	ctx := context.Background()

	if _, err := NewReconciler(mem).Reconcile(ctx, "tenant-1", []*models.LedgerEntry{testEntry("k1", 100)}); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	mem.SetStatus("tenant-1", "k1", models.StatusReconciled)

	outcome, err := NewReconciler(mem).Reconcile(ctx, "tenant-1", []*models.LedgerEntry{testEntry("k1", 999)})
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if outcome.Skipped != 1 || outcome.Updated != 0 {
		t.Fatalf("outcome = %+v, want 1 skipped", outcome)
	}

	stored := mem.Get("tenant-1", "k1")
	if !stored.Amount.Equal(decimal.NewFromFloat(100)) {
		t.Errorf("amount = %s, want the original 100 untouched", stored.Amount)
	}
}

// raceStore simulates a concurrent run that wins every insert.
type raceStore struct {
	store.EntryStore
}

func (raceStore) Snapshot(ctx context.Context, tenantID string) (map[string]store.EntryRef, error) {
	return map[string]store.EntryRef{}, nil
}

func (raceStore) Insert(ctx context.Context, entry *models.LedgerEntry) error {
	return store.ErrDuplicateKey
}

func TestReconcileTreatsInsertRaceAsSkip(t *testing.T) {
	outcome, err := NewReconciler(raceStore{}).Reconcile(context.Background(), "tenant-1",
		[]*models.LedgerEntry{testEntry("k1", 100)})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if outcome.Skipped != 1 || outcome.Failed != 0 {
		t.Fatalf("outcome = %+v, want the race counted as a skip", outcome)
	}
}

// flakyStore fails writes for one source key and delegates the rest.
type flakyStore struct {
	*store.MemStore
	failKey string
}

func (s *flakyStore) Insert(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.SourceKey == s.failKey {
		return errors.New("connection reset")
	}
	return s.MemStore.Insert(ctx, entry)
}

func TestReconcilePartialFailureDoesNotRollBack(t *testing.T) {
	flaky := &flakyStore{MemStore: store.NewMemStore(), failKey: "k2"}
	entries := []*models.LedgerEntry{
		testEntry("k1", 100),
		testEntry("k2", 200),
		testEntry("k3", 300),
	}

	outcome, err := NewReconciler(flaky).Reconcile(context.Background(), "tenant-1", entries)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if outcome.Created != 2 || outcome.Failed != 1 {
		t.Fatalf("outcome = %+v, want 2 created and 1 failed", outcome)
	}
	if len(outcome.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(outcome.Errors))
	}
	if outcome.Errors[0].Category != apperrors.CategoryPersistence {
		t.Errorf("error category = %s, want persistence", outcome.Errors[0].Category)
	}
	if flaky.Len() != 2 {
		t.Errorf("store holds %d entries, want the 2 successful writes kept", flaky.Len())
	}
}

// brokenStore fails the snapshot read.
type brokenStore struct {
	store.EntryStore
}

func (brokenStore) Snapshot(ctx context.Context, tenantID string) (map[string]store.EntryRef, error) {
	return nil, errors.New("connection refused")
}

func TestReconcileAbortsWhenSnapshotFails(t *testing.T) {
	_, err := NewReconciler(brokenStore{}).Reconcile(context.Background(), "tenant-1",
		[]*models.LedgerEntry{testEntry("k1", 100)})
	if err == nil {
		t.Fatal("expected an error when the snapshot read fails")
	}
	ingestErr, ok := apperrors.AsIngestError(err)
	if !ok {
		t.Fatalf("error type = %T, want *IngestError", err)
	}
	if ingestErr.Code != apperrors.CodeSnapshotFailed {
		t.Errorf("code = %s, want snapshot_failed", ingestErr.Code)
	}
}
