// Package enricher resolves cross-record relationships after derivation.
//
// Advance payments and receivables assignments arrive as standalone records
// referencing no vouchers. The enricher matches them back to the voucher
// entries they cover, allocates the operation fee across the matched vouchers
// proportionally to their amounts, and mirrors the result into the aggregate
// voucher caches so both views stay consistent.
package enricher

import (
	"fmt"
	"time"

	"settlement-ingestion-service/internal/models"
	"settlement-ingestion-service/internal/rules"
	"settlement-ingestion-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config holds configuration options for the enricher.
type Config struct {
	// MatchAdvanceNetwork requires the voucher's card network to match the
	// advance operation's network. Assignments never carry a network and
	// match on date and merchant alone.
	MatchAdvanceNetwork bool
}

// DefaultConfig returns a default enricher configuration.
func DefaultConfig() *Config {
	return &Config{
		MatchAdvanceNetwork: true,
	}
}

// Stats reports what the enrichment pass matched.
type Stats struct {
	AdvancesMatched      int `json:"advances_matched"`
	AdvancesUnmatched    int `json:"advances_unmatched"`
	AssignmentsMatched   int `json:"assignments_matched"`
	AssignmentsUnmatched int `json:"assignments_unmatched"`
	VouchersEnriched     int `json:"vouchers_enriched"`
}

// Enricher links advance and assignment operations to the voucher entries
// they cover.
type Enricher struct {
	config *Config
	logger logger.Logger
}

// NewEnricher creates an enricher with the given configuration.
func NewEnricher(config *Config) *Enricher {
	if config == nil {
		config = DefaultConfig()
	}
	return &Enricher{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("enricher"),
	}
}

// Enrich mutates the voucher entries in place and returns matching stats.
// Entries of other kinds are only touched through aggregate cache updates.
func (e *Enricher) Enrich(entries []*models.LedgerEntry, records *rules.FilterResult) *Stats {
	stats := &Stats{}

	vouchers := collectVouchers(entries)
	aggregates := collectAggregates(entries)

	for _, advance := range records.Advances {
		matched := matchVouchers(vouchers, advance.OriginalPaymentDate, advance.MerchantCode, advance.CardNetwork, e.config.MatchAdvanceNetwork)
		if len(matched) == 0 {
			stats.AdvancesUnmatched++
			e.logger.WithFields(logger.Fields{
				"operation":     advance.OperationNumber,
				"original_date": models.FormatISODate(advance.OriginalPaymentDate),
			}).Warn("Advance payment matched no vouchers")
			continue
		}
		stats.AdvancesMatched++

		shares := allocateShares(advance.FeeAmount, matched)
		for i, entry := range matched {
			allocation := entry.Metadata.Allocation
			allocation.Advance = &models.AdvanceEnrichment{
				OperationNumber: advance.OperationNumber,
				AdvanceDate:     advance.AdvanceDate,
				AdvanceFee:      shares[i],
				NetAfterAdvance: models.Round2(allocation.EstimatedNet.Sub(shares[i])),
			}
			syncAggregate(aggregates, entry)
			stats.VouchersEnriched++
		}
	}

	for _, assignment := range records.Assignments {
		matched := matchVouchers(vouchers, assignment.PaymentDate, assignment.MerchantCode, "", false)
		if len(matched) == 0 {
			stats.AssignmentsUnmatched++
			e.logger.WithFields(logger.Fields{
				"operation":    assignment.OperationNumber,
				"payment_date": models.FormatISODate(assignment.PaymentDate),
			}).Warn("Receivables assignment matched no vouchers")
			continue
		}
		stats.AssignmentsMatched++

		shares := allocateShares(assignment.FeeAmount, matched)
		for i, entry := range matched {
			allocation := entry.Metadata.Allocation
			allocation.Assignment = &models.AssignmentEnrichment{
				OperationNumber:    assignment.OperationNumber,
				AssignmentDate:     assignment.AssignmentDate,
				AssignmentFee:      shares[i],
				NetAfterAssignment: models.Round2(allocation.EstimatedNet.Sub(shares[i])),
			}
			syncAggregate(aggregates, entry)
			stats.VouchersEnriched++
		}
	}

	e.logger.WithFields(logger.Fields{
		"advances_matched":      stats.AdvancesMatched,
		"advances_unmatched":    stats.AdvancesUnmatched,
		"assignments_matched":   stats.AssignmentsMatched,
		"assignments_unmatched": stats.AssignmentsUnmatched,
	}).Debug("Enrichment pass complete")

	return stats
}

// collectVouchers returns the voucher entries carrying an allocation,
// preserving derivation order.
func collectVouchers(entries []*models.LedgerEntry) []*models.LedgerEntry {
	var out []*models.LedgerEntry
	for _, entry := range entries {
		if entry.Kind == models.EntryKindVoucher && entry.Metadata.Allocation != nil {
			out = append(out, entry)
		}
	}
	return out
}

// collectAggregates indexes aggregate entries by ID for cache propagation.
func collectAggregates(entries []*models.LedgerEntry) map[uuid.UUID]*models.LedgerEntry {
	out := make(map[uuid.UUID]*models.LedgerEntry)
	for _, entry := range entries {
		if entry.Kind == models.EntryKindSalesAggregate {
			out[entry.ID] = entry
		}
	}
	return out
}

// matchVouchers selects vouchers settling on the given date for the given
// merchant, optionally restricted to one card network.
func matchVouchers(vouchers []*models.LedgerEntry, date time.Time, merchant, network string, matchNetwork bool) []*models.LedgerEntry {
	var matched []*models.LedgerEntry
	for _, entry := range vouchers {
		allocation := entry.Metadata.Allocation
		if entry.Metadata.MerchantCode != merchant {
			continue
		}
		if !models.SameDay(allocation.PaymentDate, date) {
			continue
		}
		if matchNetwork && network != "" && allocation.CardNetwork != network {
			continue
		}
		matched = append(matched, entry)
	}
	return matched
}

// allocateShares splits a fee across the matched vouchers proportionally to
// their amounts. The last voucher takes the rounding remainder so the shares
// sum exactly to the fee. A zero total amount degenerates to an even split.
func allocateShares(fee decimal.Decimal, matched []*models.LedgerEntry) []decimal.Decimal {
	total := decimal.Zero
	for _, entry := range matched {
		total = total.Add(entry.Metadata.Allocation.Amount)
	}

	shares := make([]decimal.Decimal, len(matched))
	allocated := decimal.Zero
	count := decimal.NewFromInt(int64(len(matched)))

	for i, entry := range matched {
		if i == len(matched)-1 {
			shares[i] = fee.Sub(allocated)
			break
		}
		var share decimal.Decimal
		if total.IsPositive() {
			share = models.Round2(fee.Mul(entry.Metadata.Allocation.Amount).Div(total))
		} else {
			share = models.Round2(fee.Div(count))
		}
		shares[i] = share
		allocated = allocated.Add(share)
	}
	return shares
}

// syncAggregate mirrors an enriched voucher allocation into its aggregate's
// cached voucher list.
func syncAggregate(aggregates map[uuid.UUID]*models.LedgerEntry, voucher *models.LedgerEntry) {
	aggregate, ok := aggregates[voucher.LinkedTo]
	if !ok {
		return
	}
	allocation := voucher.Metadata.Allocation
	for i, cached := range aggregate.Metadata.Vouchers {
		if cached.NSU == allocation.NSU && cached.InstallmentIndex == allocation.InstallmentIndex {
			aggregate.Metadata.Vouchers[i] = allocation.Clone()
			return
		}
	}
}

// String implements fmt.Stringer for run reporting.
func (s *Stats) String() string {
	return fmt.Sprintf("advances %d/%d, assignments %d/%d, vouchers enriched %d",
		s.AdvancesMatched, s.AdvancesMatched+s.AdvancesUnmatched,
		s.AssignmentsMatched, s.AssignmentsMatched+s.AssignmentsUnmatched,
		s.VouchersEnriched)
}
