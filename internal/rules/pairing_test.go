package rules

import (
	"testing"
	"time"

	"settlement-ingestion-service/internal/models"

	"github.com/shopspring/decimal"
)

func preDiscounted(rv string, payment time.Time) *models.SalesSummary {
	return &models.SalesSummary{
		MerchantCode: "M1",
		CardNetwork:  "MAE",
		BatchNumber:  rv,
		PaymentDate:  payment,
		GrossAmount:  decimal.NewFromFloat(97.61),
		NetAmount:    decimal.NewFromFloat(97.61),
		FeeAmount:    decimal.Zero,
	}
}

func donor(rv string, payment time.Time) *models.SalesSummary {
	return &models.SalesSummary{
		MerchantCode: "M1",
		CardNetwork:  "MAS",
		BatchNumber:  rv,
		PaymentDate:  payment,
		GrossAmount:  decimal.NewFromFloat(100.00),
		NetAmount:    decimal.NewFromFloat(97.61),
		FeeAmount:    decimal.NewFromFloat(2.39),
	}
}

func TestCorrectRewritesFromDonor(t *testing.T) {
	payment := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	summaries := []*models.SalesSummary{
		preDiscounted("RV1", payment),
		donor("RV2", payment),
	}

	corrected := NewCorrector(nil).Correct(summaries)

	if len(corrected) != 1 {
		t.Fatalf("corrected = %d records, want 1 (donor dropped)", len(corrected))
	}

	got := corrected[0]
	if got.BatchNumber != "RV1" {
		t.Fatalf("kept batch = %s, want RV1", got.BatchNumber)
	}
	if !got.GrossAmount.Equal(decimal.NewFromFloat(100.00)) {
		t.Errorf("gross = %s, want 100.00", got.GrossAmount)
	}
	if !got.FeeAmount.Equal(decimal.NewFromFloat(2.39)) {
		t.Errorf("fee = %s, want 2.39", got.FeeAmount)
	}
	if !got.Corrected {
		t.Error("expected the record to be marked corrected")
	}
	if got.FeeDiscounted {
		t.Error("a corrected record must not be flagged fee-discounted")
	}
}

func TestCorrectUnpairedKeepsAndFlags(t *testing.T) {
	payment := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	summaries := []*models.SalesSummary{
		preDiscounted("RV1", payment),
		// Donor with a different payment date must not match.
		donor("RV2", payment.AddDate(0, 0, 1)),
	}

	corrected := NewCorrector(nil).Correct(summaries)

	if len(corrected) != 2 {
		t.Fatalf("corrected = %d records, want 2", len(corrected))
	}

	got := corrected[0]
	if !got.GrossAmount.Equal(decimal.NewFromFloat(97.61)) {
		t.Errorf("gross = %s, want original 97.61", got.GrossAmount)
	}
	if !got.FeeDiscounted {
		t.Error("expected unpaired pre-discounted record to be flagged")
	}
	if got.Corrected {
		t.Error("unpaired record must not be marked corrected")
	}
}

func TestCorrectDonorNetAmountMustMatch(t *testing.T) {
	payment := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	other := donor("RV2", payment)
	other.NetAmount = decimal.NewFromFloat(50.00)

	corrected := NewCorrector(nil).Correct([]*models.SalesSummary{
		preDiscounted("RV1", payment),
		other,
	})

	if len(corrected) != 2 {
		t.Fatalf("corrected = %d records, want 2", len(corrected))
	}
	if !corrected[0].FeeDiscounted {
		t.Error("expected flag when net amounts differ")
	}
}

func TestCorrectLeavesOrdinaryRecordsUntouched(t *testing.T) {
	payment := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	ordinary := donor("RV5", payment)
	withFee := preDiscounted("RV6", payment)
	withFee.FeeAmount = decimal.NewFromFloat(1.00) // non-zero fee -> not a candidate

	corrected := NewCorrector(nil).Correct([]*models.SalesSummary{ordinary, withFee})

	if len(corrected) != 2 {
		t.Fatalf("corrected = %d records, want 2", len(corrected))
	}
	for _, s := range corrected {
		if s.Corrected || s.FeeDiscounted {
			t.Errorf("batch %s should pass through untouched", s.BatchNumber)
		}
	}
}

func TestCorrectEachDonorConsumedOnce(t *testing.T) {
	payment := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	summaries := []*models.SalesSummary{
		preDiscounted("RV1", payment),
		preDiscounted("RV2", payment),
		donor("RV3", payment),
	}

	corrected := NewCorrector(nil).Correct(summaries)

	if len(corrected) != 2 {
		t.Fatalf("corrected = %d records, want 2", len(corrected))
	}
	if !corrected[0].Corrected {
		t.Error("first pre-discounted record should consume the donor")
	}
	if !corrected[1].FeeDiscounted {
		t.Error("second pre-discounted record has no donor left and must be flagged")
	}
}
