package store

import (
	"context"
	"testing"
	"time"

	"settlement-ingestion-service/internal/models"

	"github.com/shopspring/decimal"
)

func entry(sourceKey string, amount float64) *models.LedgerEntry {
	return models.NewLedgerEntry("tenant-1", sourceKey,
		models.EntryKindReceivable, decimal.NewFromFloat(amount),
		time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC))
}

func TestMemStoreInsertAndSnapshot(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Insert(ctx, entry("k1", 100)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.Insert(ctx, entry("k2", 200)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	snapshot, err := s.Snapshot(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("snapshot = %d keys, want 2", len(snapshot))
	}

	ref, ok := snapshot["k1"]
	if !ok {
		t.Fatal("k1 missing from snapshot")
	}
	if ref.ID != models.EntryID("k1") {
		t.Errorf("snapshot ID = %s, want the deterministic entry ID", ref.ID)
	}
	if ref.Status != models.StatusCaptured {
		t.Errorf("status = %s, want captured", ref.Status)
	}
}

func TestMemStoreSnapshotIsolatesTenants(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	first := entry("k1", 100)
	second := entry("k1", 100)
	second.TenantID = "tenant-2"

	if err := s.Insert(ctx, first); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.Insert(ctx, second); err != nil {
		t.Fatalf("insert for second tenant failed: %v", err)
	}

	snapshot, _ := s.Snapshot(ctx, "tenant-2")
	if len(snapshot) != 1 {
		t.Fatalf("tenant-2 snapshot = %d keys, want 1", len(snapshot))
	}
}

func TestMemStoreRejectsDuplicateKey(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Insert(ctx, entry("k1", 100)); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := s.Insert(ctx, entry("k1", 999)); err != ErrDuplicateKey {
		t.Fatalf("second insert = %v, want ErrDuplicateKey", err)
	}
}

func TestMemStoreUpdateRewritesCaptured(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Insert(ctx, entry("k1", 100)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	updated := entry("k1", 150)
	if err := s.Update(ctx, updated); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	stored := s.Get("tenant-1", "k1")
	if !stored.Amount.Equal(decimal.NewFromFloat(150)) {
		t.Errorf("amount = %s, want 150", stored.Amount)
	}
	if stored.Status != models.StatusCaptured {
		t.Errorf("status = %s, want captured preserved", stored.Status)
	}
}

func TestMemStoreUpdateRefusesPastCapture(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Insert(ctx, entry("k1", 100)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	s.SetStatus("tenant-1", "k1", models.StatusClassified)

	if err := s.Update(ctx, entry("k1", 150)); err != ErrImmutableEntry {
		t.Fatalf("update = %v, want ErrImmutableEntry", err)
	}

	stored := s.Get("tenant-1", "k1")
	if !stored.Amount.Equal(decimal.NewFromFloat(100)) {
		t.Errorf("amount = %s, want the original 100", stored.Amount)
	}
}

func TestMemStoreUpdateMissingKey(t *testing.T) {
	s := NewMemStore()
	if err := s.Update(context.Background(), entry("absent", 1)); err != ErrImmutableEntry {
		t.Fatalf("update of missing key = %v, want ErrImmutableEntry", err)
	}
}
