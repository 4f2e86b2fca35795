package deriver

import (
	"testing"
	"time"

	"settlement-ingestion-service/internal/models"
	"settlement-ingestion-service/internal/rules"

	"github.com/shopspring/decimal"
)

var payday = time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)

func summary(rv string, gross, net, fee float64) *models.SalesSummary {
	return &models.SalesSummary{
		MerchantCode: "M1",
		ProductCode:  "CR",
		CardNetwork:  "VIS",
		BatchNumber:  rv,
		PaymentDate:  payday,
		GrossAmount:  decimal.NewFromFloat(gross),
		NetAmount:    decimal.NewFromFloat(net),
		FeeAmount:    decimal.NewFromFloat(fee),
	}
}

func voucher(rv, nsu string, amount float64) *models.SalesVoucher {
	return &models.SalesVoucher{
		MerchantCode:     "M1",
		BatchNumber:      rv,
		NSU:              nsu,
		Amount:           decimal.NewFromFloat(amount),
		InstallmentIndex: 1,
		InstallmentCount: 1,
		PaymentDate:      payday,
		CardNetwork:      "VIS",
	}
}

func byKind(entries []*models.LedgerEntry, kind models.EntryKind) []*models.LedgerEntry {
	var out []*models.LedgerEntry
	for _, e := range entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestDeriveSummaryEmitsTriple(t *testing.T) {
	records := &rules.FilterResult{
		Summaries: []*models.SalesSummary{summary("RV1", 600.00, 570.00, 30.00)},
	}

	result := NewEngine(nil).Derive("tenant-1", records)

	if result.Receivables != 1 || result.Payables != 1 || result.Aggregates != 1 {
		t.Fatalf("counts = %d/%d/%d, want 1 receivable, 1 payable, 1 aggregate",
			result.Receivables, result.Payables, result.Aggregates)
	}

	receivable := byKind(result.Entries, models.EntryKindReceivable)[0]
	if !receivable.Amount.Equal(decimal.NewFromFloat(600.00)) {
		t.Errorf("receivable amount = %s, want 600", receivable.Amount)
	}
	if !receivable.DueDate.Equal(payday) {
		t.Errorf("receivable due = %s, want payment date", receivable.DueDate)
	}
	if receivable.Status != models.StatusCaptured {
		t.Errorf("status = %s, want captured", receivable.Status)
	}

	payable := byKind(result.Entries, models.EntryKindPayable)[0]
	if !payable.Amount.Equal(decimal.NewFromFloat(30.00)) {
		t.Errorf("payable amount = %s, want 30", payable.Amount)
	}

	aggregate := byKind(result.Entries, models.EntryKindSalesAggregate)[0]
	if !aggregate.Metadata.BilledAmount.Equal(decimal.NewFromFloat(600.00)) {
		t.Errorf("billed = %s, want gross fallback 600", aggregate.Metadata.BilledAmount)
	}
}

func TestDeriveZeroFeeSkipsPayable(t *testing.T) {
	records := &rules.FilterResult{
		Summaries: []*models.SalesSummary{summary("RV1", 100.00, 100.00, 0)},
	}

	result := NewEngine(nil).Derive("tenant-1", records)

	if result.Payables != 0 {
		t.Fatalf("payables = %d, want 0 for a zero fee", result.Payables)
	}
}

func TestDeriveProportionalFeeAllocation(t *testing.T) {
	records := &rules.FilterResult{
		Summaries: []*models.SalesSummary{summary("RV1", 600.00, 570.00, 30.00)},
		Vouchers: []*models.SalesVoucher{
			voucher("RV1", "NSU1", 400.00),
			voucher("RV1", "NSU2", 200.00),
		},
	}

	result := NewEngine(nil).Derive("tenant-1", records)

	vouchers := byKind(result.Entries, models.EntryKindVoucher)
	if len(vouchers) != 2 {
		t.Fatalf("vouchers = %d, want 2", len(vouchers))
	}

	first := vouchers[0].Metadata.Allocation
	second := vouchers[1].Metadata.Allocation
	if !first.ProportionalFee.Equal(decimal.NewFromFloat(20.00)) {
		t.Errorf("first fee = %s, want 20.00", first.ProportionalFee)
	}
	if !second.ProportionalFee.Equal(decimal.NewFromFloat(10.00)) {
		t.Errorf("second fee = %s, want 10.00", second.ProportionalFee)
	}
	if !first.EstimatedNet.Equal(decimal.NewFromFloat(380.00)) {
		t.Errorf("first net = %s, want 380.00", first.EstimatedNet)
	}

	sum := first.ProportionalFee.Add(second.ProportionalFee)
	if !sum.Equal(decimal.NewFromFloat(30.00)) {
		t.Errorf("allocated sum = %s, want exactly the batch fee 30.00", sum)
	}
}

func TestDeriveAllocationRemainderGoesToLastVoucher(t *testing.T) {
	records := &rules.FilterResult{
		Summaries: []*models.SalesSummary{summary("RV1", 100.00, 90.00, 10.00)},
		Vouchers: []*models.SalesVoucher{
			voucher("RV1", "NSU1", 33.33),
			voucher("RV1", "NSU2", 33.33),
			voucher("RV1", "NSU3", 33.34),
		},
	}

	result := NewEngine(nil).Derive("tenant-1", records)

	vouchers := byKind(result.Entries, models.EntryKindVoucher)
	sum := decimal.Zero
	for _, v := range vouchers {
		sum = sum.Add(v.Metadata.Allocation.ProportionalFee)
	}
	if !sum.Equal(decimal.NewFromFloat(10.00)) {
		t.Fatalf("allocated sum = %s, want exactly 10.00", sum)
	}

	last := vouchers[2].Metadata.Allocation
	expected := decimal.NewFromFloat(10.00).
		Sub(vouchers[0].Metadata.Allocation.ProportionalFee).
		Sub(vouchers[1].Metadata.Allocation.ProportionalFee)
	if !last.ProportionalFee.Equal(expected) {
		t.Errorf("last fee = %s, want the remainder %s", last.ProportionalFee, expected)
	}
}

func TestDeriveZeroGrossAllocatesNoFee(t *testing.T) {
	records := &rules.FilterResult{
		Summaries: []*models.SalesSummary{summary("RV1", 0, 0, 0)},
		Vouchers:  []*models.SalesVoucher{voucher("RV1", "NSU1", 50.00)},
	}

	result := NewEngine(nil).Derive("tenant-1", records)

	allocation := byKind(result.Entries, models.EntryKindVoucher)[0].Metadata.Allocation
	if !allocation.ProportionalFee.IsZero() {
		t.Errorf("fee = %s, want 0 for a zero-gross batch", allocation.ProportionalFee)
	}
	if !allocation.EstimatedNet.Equal(decimal.NewFromFloat(50.00)) {
		t.Errorf("net = %s, want the voucher amount", allocation.EstimatedNet)
	}
}

func TestDeriveVouchersLinkToAggregate(t *testing.T) {
	records := &rules.FilterResult{
		Summaries: []*models.SalesSummary{summary("RV1", 600.00, 570.00, 30.00)},
		Vouchers: []*models.SalesVoucher{
			voucher("RV1", "NSU1", 400.00),
			voucher("RV1", "NSU2", 200.00),
		},
	}

	result := NewEngine(nil).Derive("tenant-1", records)

	aggregate := byKind(result.Entries, models.EntryKindSalesAggregate)[0]
	for _, v := range byKind(result.Entries, models.EntryKindVoucher) {
		if v.LinkedTo != aggregate.ID {
			t.Errorf("voucher %s linked to %s, want aggregate %s",
				v.Metadata.NSU, v.LinkedTo, aggregate.ID)
		}
	}

	if len(aggregate.Metadata.Vouchers) != 2 {
		t.Fatalf("aggregate voucher list = %d, want 2", len(aggregate.Metadata.Vouchers))
	}
	if !aggregate.Metadata.BilledAmount.Equal(decimal.NewFromFloat(600.00)) {
		t.Errorf("billed = %s, want 600.00", aggregate.Metadata.BilledAmount)
	}

	// The cached allocations are copies; mutating one must not reach the
	// standalone voucher entry.
	aggregate.Metadata.Vouchers[0].ProportionalFee = decimal.NewFromFloat(99)
	standalone := byKind(result.Entries, models.EntryKindVoucher)[0].Metadata.Allocation
	if standalone.ProportionalFee.Equal(decimal.NewFromFloat(99)) {
		t.Error("aggregate cache shares memory with the voucher entry")
	}
}

func TestDeriveAdjustmentSign(t *testing.T) {
	tests := []struct {
		name string
		sign string
		want models.EntryKind
	}{
		{"debit becomes payable", "-", models.EntryKindPayable},
		{"credit becomes receivable", "+", models.EntryKindReceivable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := &rules.FilterResult{
				Adjustments: []*models.FinancialAdjustment{{
					MerchantCode: "M1",
					BatchNumber:  "RV1",
					Sign:         tt.sign,
					Amount:       decimal.NewFromFloat(15.50),
					Reason:       "CHARGEBACK",
					PaymentDate:  payday,
				}},
			}

			result := NewEngine(nil).Derive("tenant-1", records)

			if len(result.Entries) != 1 {
				t.Fatalf("entries = %d, want 1", len(result.Entries))
			}
			entry := result.Entries[0]
			if entry.Kind != tt.want {
				t.Errorf("kind = %s, want %s", entry.Kind, tt.want)
			}
			if !entry.Amount.Equal(decimal.NewFromFloat(15.50)) {
				t.Errorf("amount = %s, want the absolute 15.50", entry.Amount)
			}
			if entry.Metadata.Reason != "CHARGEBACK" {
				t.Errorf("reason = %q, want CHARGEBACK", entry.Metadata.Reason)
			}
		})
	}
}

func TestDeriveAdvanceSplitsNetAndCost(t *testing.T) {
	records := &rules.FilterResult{
		Advances: []*models.AdvancePayment{{
			MerchantCode:    "M1",
			OperationNumber: "OP42",
			GrossAmount:     decimal.NewFromFloat(1000.00),
			FeeAmount:       decimal.NewFromFloat(12.00),
			NetAmount:       decimal.NewFromFloat(988.00),
			AdvanceDate:     payday,
		}},
	}

	result := NewEngine(nil).Derive("tenant-1", records)

	if result.Receivables != 1 || result.Payables != 1 {
		t.Fatalf("counts = %d/%d, want 1 receivable and 1 payable",
			result.Receivables, result.Payables)
	}

	receivable := byKind(result.Entries, models.EntryKindReceivable)[0]
	if !receivable.Amount.Equal(decimal.NewFromFloat(988.00)) {
		t.Errorf("receivable = %s, want the net 988.00", receivable.Amount)
	}

	payable := byKind(result.Entries, models.EntryKindPayable)[0]
	if !payable.Amount.Equal(decimal.NewFromFloat(12.00)) {
		t.Errorf("payable = %s, want gross minus net 12.00", payable.Amount)
	}
	if payable.Metadata.OperationNumber != "OP42" {
		t.Errorf("operation = %q, want OP42", payable.Metadata.OperationNumber)
	}
}

func TestDeriveAssignmentSplitsNetAndFee(t *testing.T) {
	records := &rules.FilterResult{
		Assignments: []*models.ReceivablesAssignment{{
			MerchantCode:    "M1",
			OperationNumber: "CS7",
			Indicator:       models.AssignmentIndicatorAssignable,
			GrossAmount:     decimal.NewFromFloat(500.00),
			FeeAmount:       decimal.NewFromFloat(5.00),
			NetAmount:       decimal.NewFromFloat(495.00),
			AssignmentDate:  payday,
		}},
	}

	result := NewEngine(nil).Derive("tenant-1", records)

	if result.Receivables != 1 || result.Payables != 1 {
		t.Fatalf("counts = %d/%d, want 1 receivable and 1 payable",
			result.Receivables, result.Payables)
	}
	receivable := byKind(result.Entries, models.EntryKindReceivable)[0]
	if !receivable.Amount.Equal(decimal.NewFromFloat(495.00)) {
		t.Errorf("receivable = %s, want 495.00", receivable.Amount)
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	records := &rules.FilterResult{
		Summaries: []*models.SalesSummary{summary("RV1", 600.00, 570.00, 30.00)},
		Vouchers: []*models.SalesVoucher{
			voucher("RV1", "NSU1", 400.00),
			voucher("RV1", "NSU2", 200.00),
		},
	}

	engine := NewEngine(nil)
	first := engine.Derive("tenant-1", records)
	second := engine.Derive("tenant-1", records)

	if len(first.Entries) != len(second.Entries) {
		t.Fatalf("entry counts differ: %d vs %d", len(first.Entries), len(second.Entries))
	}
	for i := range first.Entries {
		if first.Entries[i].ID != second.Entries[i].ID {
			t.Errorf("entry %d: IDs differ across runs", i)
		}
		if first.Entries[i].SourceKey != second.Entries[i].SourceKey {
			t.Errorf("entry %d: source keys differ across runs", i)
		}
	}
}
