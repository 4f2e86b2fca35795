package rules

import (
	"time"

	"settlement-ingestion-service/internal/models"
	"settlement-ingestion-service/pkg/logger"
)

// FilterResult holds the records that survived business-rule filtering.
type FilterResult struct {
	Summaries   []*models.SalesSummary
	Vouchers    []*models.SalesVoucher
	Adjustments []*models.FinancialAdjustment
	Advances    []*models.AdvancePayment
	Assignments []*models.ReceivablesAssignment

	// LiquidatedBatches maps the RVs excluded as already-liquidated, so
	// adjustments referencing them can be excluded too.
	LiquidatedBatches map[string]bool
}

// Filter selects, per product category, the records relevant to the current
// processing window (D-1 of the file's movement date) and removes records
// whose authoritative state is superseded.
type Filter struct {
	config *Config
	logger logger.Logger
}

// NewFilter creates a filter with the given rule configuration.
func NewFilter(config *Config) *Filter {
	if config == nil {
		config = DefaultConfig()
	}
	return &Filter{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("filter"),
	}
}

// Apply filters a decoded record set. merchant optionally restricts every
// record type to a single merchant code; an empty merchant keeps all.
func (f *Filter) Apply(set *models.RecordSet, merchant string) *FilterResult {
	result := &FilterResult{
		LiquidatedBatches: make(map[string]bool),
	}

	// The D-1 window is anchored on the header's movement date. When the
	// header is missing or carries no usable date, the date filter is
	// skipped and records pass on the remaining rules alone.
	var windowDay time.Time
	dateFilter := false
	if set.Header != nil && !set.Header.MovementDate.IsZero() {
		windowDay = models.PreviousBusinessDay(set.Header.MovementDate)
		dateFilter = true
	} else {
		f.logger.Warn("Movement date unavailable; skipping the D-1 window filter")
	}

	for _, summary := range set.Summaries {
		if !matchesMerchant(summary.MerchantCode, merchant) {
			continue
		}

		if summary.IsDebit(f.config.DebitProductCode) {
			// Debit always settles as already-liquidated, so the
			// liquidated code does not exclude it; only the window
			// applies.
			if dateFilter && !models.SameDay(summary.SettlementDate, windowDay) {
				continue
			}
			result.Summaries = append(result.Summaries, summary)
			continue
		}

		// Credit: an already-liquidated batch was settled on an earlier
		// day; reprocessing it would double-count. Its RV is remembered
		// so dependent adjustments follow it out.
		if summary.PaymentType == f.config.LiquidatedPaymentType {
			result.LiquidatedBatches[summary.BatchNumber] = true
			continue
		}
		if dateFilter && !models.SameDay(summary.SettlementDate, windowDay) {
			continue
		}
		result.Summaries = append(result.Summaries, summary)
	}

	for _, voucher := range set.Vouchers {
		if !matchesMerchant(voucher.MerchantCode, merchant) {
			continue
		}
		result.Vouchers = append(result.Vouchers, voucher)
	}

	for _, adjustment := range set.Adjustments {
		if !matchesMerchant(adjustment.MerchantCode, merchant) {
			continue
		}
		if result.LiquidatedBatches[adjustment.BatchNumber] {
			continue
		}
		result.Adjustments = append(result.Adjustments, adjustment)
	}

	for _, advance := range set.Advances {
		if !matchesMerchant(advance.MerchantCode, merchant) {
			continue
		}
		result.Advances = append(result.Advances, advance)
	}

	for _, assignment := range set.Assignments {
		if !matchesMerchant(assignment.MerchantCode, merchant) {
			continue
		}
		// "CL" records are informational and must not contribute.
		if !assignment.IsAssignable() {
			continue
		}
		result.Assignments = append(result.Assignments, assignment)
	}

	f.logger.WithFields(logger.Fields{
		"summaries":   len(result.Summaries),
		"vouchers":    len(result.Vouchers),
		"adjustments": len(result.Adjustments),
		"advances":    len(result.Advances),
		"assignments": len(result.Assignments),
		"liquidated":  len(result.LiquidatedBatches),
	}).Debug("Applied business-rule filter")

	return result
}

func matchesMerchant(code, merchant string) bool {
	return merchant == "" || code == merchant
}
