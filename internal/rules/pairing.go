package rules

import (
	"settlement-ingestion-service/internal/models"
	"settlement-ingestion-service/pkg/logger"
)

// Corrector repairs pre-discounted settlement summaries.
//
// Summaries for the pre-discounted card network arrive with gross == net and
// fee == 0 because the acquirer subtracted the fee upstream. When a donor
// sibling with the true network code shares the same net amount and payment
// date, the sibling carries the true gross/fee split: the pre-discounted
// record is rewritten from it and the donor is dropped, having served only
// as a correction source. Without a donor the record keeps its figures and
// is flagged FeeDiscounted so consumers know the gross is not to be trusted.
type Corrector struct {
	config *Config
	logger logger.Logger
}

// NewCorrector creates a corrector with the given rule configuration.
func NewCorrector(config *Config) *Corrector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Corrector{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("corrector"),
	}
}

// Correct applies the pairing correction to the filtered summaries,
// preserving order and dropping consumed donors. Non-flagged records pass
// through untouched.
func (c *Corrector) Correct(summaries []*models.SalesSummary) []*models.SalesSummary {
	consumed := make(map[int]bool)

	for i, summary := range summaries {
		if consumed[i] {
			continue
		}
		if summary.CardNetwork != c.config.PreDiscountedNetwork || !summary.FeeAmount.IsZero() {
			continue
		}

		donorIdx := c.findDonor(summaries, consumed, summary)
		if donorIdx < 0 {
			summary.FeeDiscounted = true
			c.logger.WithFields(logger.Fields{
				"batch":    summary.BatchNumber,
				"merchant": summary.MerchantCode,
			}).Warn("No donor sibling found; gross amount is fee-discounted")
			continue
		}

		donor := summaries[donorIdx]
		summary.GrossAmount = donor.GrossAmount
		summary.FeeAmount = donor.FeeAmount
		summary.Corrected = true
		consumed[donorIdx] = true

		c.logger.WithFields(logger.Fields{
			"batch":       summary.BatchNumber,
			"donor_batch": donor.BatchNumber,
			"gross":       summary.GrossAmount.String(),
			"fee":         summary.FeeAmount.String(),
		}).Debug("Rewrote pre-discounted summary from donor sibling")
	}

	corrected := make([]*models.SalesSummary, 0, len(summaries))
	for i, summary := range summaries {
		if consumed[i] {
			continue
		}
		corrected = append(corrected, summary)
	}
	return corrected
}

// findDonor locates an unconsumed donor sibling sharing the net amount and
// payment date of the pre-discounted summary.
func (c *Corrector) findDonor(summaries []*models.SalesSummary, consumed map[int]bool, target *models.SalesSummary) int {
	for i, candidate := range summaries {
		if consumed[i] || candidate == target {
			continue
		}
		if candidate.CardNetwork != c.config.DonorNetwork {
			continue
		}
		if !candidate.NetAmount.Equal(target.NetAmount) {
			continue
		}
		if !models.SameDay(candidate.PaymentDate, target.PaymentDate) {
			continue
		}
		return i
	}
	return -1
}
