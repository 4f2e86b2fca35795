package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"settlement-ingestion-service/internal/fetcher"
	"settlement-ingestion-service/internal/models"
	"settlement-ingestion-service/internal/store"
	apperrors "settlement-ingestion-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// loadFixture reads the D-1 sample file: a Monday movement header, one
// normal credit batch with two vouchers, one already-liquidated batch with a
// dependent adjustment, and a trailer.
func loadFixture(t *testing.T) []byte {
	t.Helper()
	content, err := os.ReadFile(filepath.Join("testdata", "settlement_d1.txt"))
	if err != nil {
		t.Fatalf("fixture read failed: %v", err)
	}
	return content
}

func newTestService(mem *store.MemStore) *Service {
	config := DefaultServiceConfig()
	config.TenantID = "tenant-1"
	return NewService(config, mem)
}

func TestRunIngestsFixture(t *testing.T) {
	mem := store.NewMemStore()
	service := newTestService(mem)
	source := fetcher.NewBytesFetcher(loadFixture(t), "testdata")

	report, err := service.Run(context.Background(), source, RunActionIngest)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// One kept batch derives a receivable, a fee payable, an aggregate and
	// two vouchers. The liquidated batch and its adjustment are excluded.
	if report.Entries != 5 {
		t.Fatalf("derived %d entries, want 5", report.Entries)
	}
	if report.Outcome == nil || report.Outcome.Created != 5 {
		t.Fatalf("outcome = %+v, want 5 created", report.Outcome)
	}
	if mem.Len() != 5 {
		t.Fatalf("store holds %d entries, want 5", mem.Len())
	}

	key := "tenant-1:1234567890:rv:000000001:2024-05-24:gross"
	stored := mem.Get("tenant-1", key)
	if stored == nil {
		t.Fatalf("receivable %s not persisted", key)
	}
	if !stored.Amount.Equal(decimal.NewFromFloat(600.00)) {
		t.Errorf("receivable amount = %s, want 600.00", stored.Amount)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	mem := store.NewMemStore()
	service := newTestService(mem)
	content := loadFixture(t)
	ctx := context.Background()

	first, err := service.Run(ctx, fetcher.NewBytesFetcher(content, "testdata"), RunActionIngest)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := service.Run(ctx, fetcher.NewBytesFetcher(content, "testdata"), RunActionIngest)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.Outcome.Created != 5 {
		t.Fatalf("first run created %d, want 5", first.Outcome.Created)
	}
	if second.Outcome.Created != 0 {
		t.Errorf("second run created %d, want 0", second.Outcome.Created)
	}
	if second.Outcome.Updated != 5 {
		t.Errorf("second run updated %d, want 5", second.Outcome.Updated)
	}
	if mem.Len() != 5 {
		t.Errorf("store holds %d entries after re-ingestion, want 5", mem.Len())
	}
}

func TestRunLeavesProgressedEntriesAlone(t *testing.T) {
	mem := store.NewMemStore()
	service := newTestService(mem)
	content := loadFixture(t)
	ctx := context.Background()

	if _, err := service.Run(ctx, fetcher.NewBytesFetcher(content, "testdata"), RunActionIngest); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	key := "tenant-1:1234567890:rv:000000001:2024-05-24:gross"
	mem.SetStatus("tenant-1", key, models.StatusClassified)

	report, err := service.Run(ctx, fetcher.NewBytesFetcher(content, "testdata"), RunActionIngest)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if report.Outcome.Skipped != 1 || report.Outcome.Updated != 4 {
		t.Fatalf("outcome = %+v, want 1 skipped and 4 updated", report.Outcome)
	}
}

func TestRunRawStopsAfterDecode(t *testing.T) {
	mem := store.NewMemStore()
	service := newTestService(mem)

	report, err := service.Run(context.Background(), fetcher.NewBytesFetcher(loadFixture(t), "testdata"), RunActionRaw)
	if err != nil {
		t.Fatalf("raw run failed: %v", err)
	}
	if report.Records == nil {
		t.Fatal("raw run should return the decoded records")
	}
	if report.Records.Total() != 7 {
		t.Errorf("decoded %d records, want 7", report.Records.Total())
	}
	if report.Outcome != nil {
		t.Error("raw run must not reconcile")
	}
	if mem.Len() != 0 {
		t.Errorf("store holds %d entries after a raw run, want 0", mem.Len())
	}
}

func TestRunPreviewPersistsNothing(t *testing.T) {
	mem := store.NewMemStore()
	service := newTestService(mem)

	report, err := service.Run(context.Background(), fetcher.NewBytesFetcher(loadFixture(t), "testdata"), RunActionPreview)
	if err != nil {
		t.Fatalf("preview run failed: %v", err)
	}
	if len(report.PreviewEntries) != 5 {
		t.Fatalf("preview entries = %d, want 5", len(report.PreviewEntries))
	}
	if report.Outcome != nil {
		t.Error("preview run must not reconcile")
	}
	if mem.Len() != 0 {
		t.Errorf("store holds %d entries after a preview, want 0", mem.Len())
	}
}

func TestRunRejectsEmptyContent(t *testing.T) {
	service := newTestService(store.NewMemStore())

	for _, content := range []string{"", "   \n\n  "} {
		_, err := service.Run(context.Background(), fetcher.NewBytesFetcher([]byte(content), "empty"), RunActionIngest)
		if err == nil {
			t.Fatalf("content %q: expected an error", content)
		}
		ingestErr, ok := apperrors.AsIngestError(err)
		if !ok {
			t.Fatalf("error type = %T, want *IngestError", err)
		}
		if ingestErr.Code != apperrors.CodeEmptyContent {
			t.Errorf("code = %s, want empty_content", ingestErr.Code)
		}
		if ingestErr.Retryable() {
			t.Error("empty content is not retryable; the source published nothing")
		}
	}
}

func TestParseRunAction(t *testing.T) {
	tests := []struct {
		token   string
		want    RunAction
		wantErr bool
	}{
		{"", RunActionIngest, false},
		{"raw", RunActionRaw, false},
		{"listar", RunActionPreview, false},
		{"bogus", RunActionIngest, true},
	}

	for _, tt := range tests {
		got, err := ParseRunAction(tt.token)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRunAction(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseRunAction(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}
