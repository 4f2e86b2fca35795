// Package deriver expands filtered and corrected settlement records into
// ledger entries.
//
// Each settlement batch yields a gross receivable, a fee payable, an
// informational sales aggregate, and one voucher entry per underlying card
// transaction, with the batch fee allocated to vouchers proportionally to
// their amounts. Adjustments, advance payments and receivables assignments
// yield their own receivable/payable pairs.
//
// Allocation arithmetic runs on decimal values and rounds at each step; the
// final voucher of a batch takes the rounding remainder so the allocated
// fees of one batch always sum exactly to the batch fee.
package deriver

import (
	"fmt"

	"settlement-ingestion-service/internal/models"
	"settlement-ingestion-service/internal/rules"
	"settlement-ingestion-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Config holds configuration options for the derivation engine.
type Config struct {
	// Counterparty is the label stamped on every derived entry; ledger
	// consumers group receivables and payables by it.
	Counterparty string
}

// DefaultConfig returns a default derivation configuration.
func DefaultConfig() *Config {
	return &Config{
		Counterparty: "CARD_ACQUIRER",
	}
}

// Result carries the derived entries and their per-kind counts.
type Result struct {
	Entries     []*models.LedgerEntry
	Receivables int
	Payables    int
	Aggregates  int
	Vouchers    int
}

// Engine derives ledger entries from a filtered record set.
type Engine struct {
	config *Config
	logger logger.Logger
}

// NewEngine creates a derivation engine with the given configuration.
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("deriver"),
	}
}

// Derive expands the filtered records into ledger entries for one tenant.
// The input collections are not modified; derivation is pure.
func (e *Engine) Derive(tenantID string, records *rules.FilterResult) *Result {
	result := &Result{}

	vouchersByBatch := indexVouchers(records.Vouchers)

	for _, summary := range records.Summaries {
		e.deriveSummary(tenantID, summary, vouchersByBatch[summary.BatchNumber], result)
	}
	for _, adjustment := range records.Adjustments {
		e.deriveAdjustment(tenantID, adjustment, result)
	}
	for _, advance := range records.Advances {
		e.deriveAdvance(tenantID, advance, result)
	}
	for _, assignment := range records.Assignments {
		e.deriveAssignment(tenantID, assignment, result)
	}

	e.logger.WithFields(logger.Fields{
		"receivables": result.Receivables,
		"payables":    result.Payables,
		"aggregates":  result.Aggregates,
		"vouchers":    result.Vouchers,
	}).Debug("Derived ledger entries")

	return result
}

// deriveSummary emits the receivable, the fee payable, the sales aggregate
// and the per-voucher entries of one settlement batch.
func (e *Engine) deriveSummary(tenantID string, summary *models.SalesSummary, vouchers []*models.SalesVoucher, result *Result) {
	base := fmt.Sprintf("%s:%s:rv:%s:%s",
		tenantID, summary.MerchantCode, summary.BatchNumber, models.FormatISODate(summary.PaymentDate))

	meta := models.EntryMetadata{
		BatchNumber:   summary.BatchNumber,
		MerchantCode:  summary.MerchantCode,
		CardNetwork:   summary.CardNetwork,
		ProductCode:   summary.ProductCode,
		PaymentType:   summary.PaymentType,
		GrossAmount:   summary.GrossAmount,
		NetAmount:     summary.NetAmount,
		FeeAmount:     summary.FeeAmount,
		Corrected:     summary.Corrected,
		FeeDiscounted: summary.FeeDiscounted,
	}

	receivable := models.NewLedgerEntry(tenantID, base+":gross", models.EntryKindReceivable, summary.GrossAmount, summary.PaymentDate)
	receivable.Counterparty = e.config.Counterparty
	receivable.Metadata = meta
	result.Entries = append(result.Entries, receivable)
	result.Receivables++

	if !summary.FeeAmount.IsZero() {
		payable := models.NewLedgerEntry(tenantID, base+":fee", models.EntryKindPayable, summary.FeeAmount, summary.PaymentDate)
		payable.Counterparty = e.config.Counterparty
		payable.Metadata = meta
		result.Entries = append(result.Entries, payable)
		result.Payables++
	}

	aggregate := models.NewLedgerEntry(tenantID, base+":aggregate", models.EntryKindSalesAggregate, summary.GrossAmount, summary.PaymentDate)
	aggregate.Counterparty = e.config.Counterparty
	aggregate.Metadata = meta
	result.Entries = append(result.Entries, aggregate)
	result.Aggregates++

	billed := decimal.Zero
	allocated := decimal.Zero
	grossPositive := summary.GrossAmount.IsPositive()

	for i, voucher := range vouchers {
		weight := decimal.Zero
		if grossPositive {
			weight = voucher.Amount.Div(summary.GrossAmount)
		}

		var proportionalFee decimal.Decimal
		if grossPositive && i == len(vouchers)-1 {
			// Last voucher takes the remainder so the batch's
			// allocations sum exactly to the batch fee.
			proportionalFee = summary.FeeAmount.Sub(allocated)
		} else {
			proportionalFee = models.Round2(summary.FeeAmount.Mul(weight))
		}
		allocated = allocated.Add(proportionalFee)

		network := voucher.CardNetwork
		if network == "" {
			network = summary.CardNetwork
		}

		allocation := &models.VoucherAllocation{
			NSU:              voucher.NSU,
			Amount:           voucher.Amount,
			ProportionalFee:  proportionalFee,
			EstimatedNet:     models.Round2(voucher.Amount.Sub(proportionalFee)),
			InstallmentIndex: voucher.InstallmentIndex,
			InstallmentCount: voucher.InstallmentCount,
			PaymentDate:      voucher.PaymentDate,
			CardNetwork:      network,
		}

		entry := models.NewLedgerEntry(
			tenantID,
			fmt.Sprintf("%s:nsu:%s:%d", base, voucher.NSU, voucher.InstallmentIndex),
			models.EntryKindVoucher,
			voucher.Amount,
			voucher.PaymentDate,
		)
		entry.Counterparty = e.config.Counterparty
		entry.LinkedTo = aggregate.ID
		entry.Metadata = models.EntryMetadata{
			BatchNumber:  summary.BatchNumber,
			NSU:          voucher.NSU,
			MerchantCode: voucher.MerchantCode,
			CardNetwork:  network,
			Allocation:   allocation,
		}
		result.Entries = append(result.Entries, entry)
		result.Vouchers++

		// The aggregate caches its own copy of the breakdown; the
		// enricher keeps both in sync by NSU.
		aggregate.Metadata.Vouchers = append(aggregate.Metadata.Vouchers, allocation.Clone())
		billed = billed.Add(voucher.Amount)
	}

	if len(vouchers) == 0 {
		billed = summary.GrossAmount
	}
	aggregate.Metadata.BilledAmount = billed
}

// deriveAdjustment emits a payable for a negative adjustment, a receivable
// otherwise, always for the absolute amount.
func (e *Engine) deriveAdjustment(tenantID string, adjustment *models.FinancialAdjustment, result *Result) {
	kind := models.EntryKindReceivable
	if adjustment.IsDebit() {
		kind = models.EntryKindPayable
	}

	key := fmt.Sprintf("%s:%s:adjustment:%s:%s:%s%s",
		tenantID, adjustment.MerchantCode, adjustment.BatchNumber,
		models.FormatISODate(adjustment.PaymentDate), adjustment.Sign, adjustment.Amount.String())

	entry := models.NewLedgerEntry(tenantID, key, kind, adjustment.Amount.Abs(), adjustment.PaymentDate)
	entry.Counterparty = e.config.Counterparty
	entry.Metadata = models.EntryMetadata{
		BatchNumber:  adjustment.BatchNumber,
		MerchantCode: adjustment.MerchantCode,
		Reason:       adjustment.Reason,
		Sign:         adjustment.Sign,
	}
	result.Entries = append(result.Entries, entry)

	if kind == models.EntryKindPayable {
		result.Payables++
	} else {
		result.Receivables++
	}
}

// deriveAdvance emits a receivable for the advanced net amount and a payable
// for the advance cost (gross minus net), each only when positive.
func (e *Engine) deriveAdvance(tenantID string, advance *models.AdvancePayment, result *Result) {
	base := fmt.Sprintf("%s:%s:advance:%s", tenantID, advance.MerchantCode, advance.OperationNumber)
	meta := models.EntryMetadata{
		MerchantCode:    advance.MerchantCode,
		CardNetwork:     advance.CardNetwork,
		OperationNumber: advance.OperationNumber,
		GrossAmount:     advance.GrossAmount,
		NetAmount:       advance.NetAmount,
		FeeAmount:       advance.FeeAmount,
	}

	if advance.NetAmount.IsPositive() {
		receivable := models.NewLedgerEntry(tenantID, base+":net", models.EntryKindReceivable, advance.NetAmount, advance.AdvanceDate)
		receivable.Counterparty = e.config.Counterparty
		receivable.Metadata = meta
		result.Entries = append(result.Entries, receivable)
		result.Receivables++
	}

	cost := advance.GrossAmount.Sub(advance.NetAmount)
	if cost.IsPositive() {
		payable := models.NewLedgerEntry(tenantID, base+":fee", models.EntryKindPayable, cost, advance.AdvanceDate)
		payable.Counterparty = e.config.Counterparty
		payable.Metadata = meta
		result.Entries = append(result.Entries, payable)
		result.Payables++
	}
}

// deriveAssignment emits a receivable for the assigned net amount and a
// payable for the assignment fee, each only when positive. Only assignable
// records reach this point; the filter already dropped the rest.
func (e *Engine) deriveAssignment(tenantID string, assignment *models.ReceivablesAssignment, result *Result) {
	base := fmt.Sprintf("%s:%s:assignment:%s", tenantID, assignment.MerchantCode, assignment.OperationNumber)
	meta := models.EntryMetadata{
		MerchantCode:    assignment.MerchantCode,
		OperationNumber: assignment.OperationNumber,
		GrossAmount:     assignment.GrossAmount,
		NetAmount:       assignment.NetAmount,
		FeeAmount:       assignment.FeeAmount,
	}

	if assignment.NetAmount.IsPositive() {
		receivable := models.NewLedgerEntry(tenantID, base+":net", models.EntryKindReceivable, assignment.NetAmount, assignment.AssignmentDate)
		receivable.Counterparty = e.config.Counterparty
		receivable.Metadata = meta
		result.Entries = append(result.Entries, receivable)
		result.Receivables++
	}

	if assignment.FeeAmount.IsPositive() {
		payable := models.NewLedgerEntry(tenantID, base+":fee", models.EntryKindPayable, assignment.FeeAmount, assignment.AssignmentDate)
		payable.Counterparty = e.config.Counterparty
		payable.Metadata = meta
		result.Entries = append(result.Entries, payable)
		result.Payables++
	}
}

// indexVouchers groups vouchers by their settlement batch number,
// preserving file order within each batch.
func indexVouchers(vouchers []*models.SalesVoucher) map[string][]*models.SalesVoucher {
	index := make(map[string][]*models.SalesVoucher)
	for _, voucher := range vouchers {
		index[voucher.BatchNumber] = append(index[voucher.BatchNumber], voucher)
	}
	return index
}
