// Package models defines the data model shared by every stage of the
// settlement pipeline: the typed records decoded from the acquirer's
// positional file, and the ledger entries derived from them.
//
// Raw records live only for the duration of one file run. Ledger entries are
// the durable output unit, owned by the persistence layer once reconciled.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordType is the 1-character type discriminator at the start of each
// settlement file line.
type RecordType byte

const (
	RecordTypeHeader                RecordType = '0'
	RecordTypeSalesSummary          RecordType = '1'
	RecordTypeSalesVoucher          RecordType = '2'
	RecordTypeFinancialAdjustment   RecordType = '3'
	RecordTypeAdvancePayment        RecordType = '4'
	RecordTypeReceivablesAssignment RecordType = '5'
	RecordTypeReceivableUnit        RecordType = '6'
	RecordTypeTrailer               RecordType = '9'
)

// String returns a human-readable name for the record type.
func (rt RecordType) String() string {
	switch rt {
	case RecordTypeHeader:
		return "header"
	case RecordTypeSalesSummary:
		return "sales_summary"
	case RecordTypeSalesVoucher:
		return "sales_voucher"
	case RecordTypeFinancialAdjustment:
		return "financial_adjustment"
	case RecordTypeAdvancePayment:
		return "advance_payment"
	case RecordTypeReceivablesAssignment:
		return "receivables_assignment"
	case RecordTypeReceivableUnit:
		return "receivable_unit"
	case RecordTypeTrailer:
		return "trailer"
	default:
		return "unknown"
	}
}

// Known reports whether the type code is one of the eight documented record
// types. Lines with unknown codes are silently skipped by the decoder.
func (rt RecordType) Known() bool {
	switch rt {
	case RecordTypeHeader, RecordTypeSalesSummary, RecordTypeSalesVoucher,
		RecordTypeFinancialAdjustment, RecordTypeAdvancePayment,
		RecordTypeReceivablesAssignment, RecordTypeReceivableUnit,
		RecordTypeTrailer:
		return true
	}
	return false
}

// Header is the type-0 record opening the file. Its movement date anchors
// the D-1 processing window used by the business-rule filter.
type Header struct {
	MovementDate time.Time `json:"movement_date"`
	MerchantCode string    `json:"merchant_code"`
	CNPJ         string    `json:"cnpj"`
}

// SalesSummary is the type-1 record: one acquirer settlement batch (RV)
// with its gross/net/fee split.
type SalesSummary struct {
	MerchantCode   string          `json:"merchant_code"`
	ProductCode    string          `json:"product_code"`
	CardNetwork    string          `json:"card_network"`
	BatchNumber    string          `json:"batch_number"`
	SettlementDate time.Time       `json:"settlement_date"`
	PaymentDate    time.Time       `json:"payment_date"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	NetAmount      decimal.Decimal `json:"net_amount"`
	FeeAmount      decimal.Decimal `json:"fee_amount"`
	PaymentType    string          `json:"payment_type"`
	Bank           string          `json:"bank"`
	Agency         string          `json:"agency"`
	Account        string          `json:"account"`

	// Corrected is set by the pairing corrector when gross and fee were
	// rewritten from a donor sibling record.
	Corrected bool `json:"corrected,omitempty"`
	// FeeDiscounted marks a pre-discounted summary for which no donor
	// sibling was found: its gross amount already has the fee subtracted.
	FeeDiscounted bool `json:"fee_discounted,omitempty"`
}

// IsDebit reports whether the summary belongs to the debit product family.
func (s *SalesSummary) IsDebit(debitProductCode string) bool {
	return s.ProductCode == debitProductCode
}

// SalesVoucher is the type-2 record: one card transaction underlying a
// settlement batch, identified by its NSU.
type SalesVoucher struct {
	MerchantCode      string          `json:"merchant_code"`
	BatchNumber       string          `json:"batch_number"`
	NSU               string          `json:"nsu"`
	Amount            decimal.Decimal `json:"amount"`
	InstallmentIndex  int             `json:"installment_index"`
	InstallmentCount  int             `json:"installment_count"`
	TransactionDate   time.Time       `json:"transaction_date"`
	PaymentDate       time.Time       `json:"payment_date"`
	AuthorizationCode string          `json:"authorization_code"`
	CardNetwork       string          `json:"card_network"`
}

// FinancialAdjustment is the type-3 record: a signed credit or debit applied
// to a settlement batch outside the normal gross/fee flow.
type FinancialAdjustment struct {
	MerchantCode string          `json:"merchant_code"`
	BatchNumber  string          `json:"batch_number"`
	Sign         string          `json:"sign"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason"`
	PaymentDate  time.Time       `json:"payment_date"`
}

// IsDebit reports whether the adjustment reduces the merchant's balance.
func (a *FinancialAdjustment) IsDebit() bool {
	return a.Sign == "-"
}

// AdvancePayment is the type-4 record: early disbursement of a future-dated
// receivable, charged a separate fee. OriginalPaymentDate is the date the
// advanced receivables would otherwise have settled, which is the key used
// to match the advance back to its vouchers.
type AdvancePayment struct {
	MerchantCode        string          `json:"merchant_code"`
	OperationNumber     string          `json:"operation_number"`
	GrossAmount         decimal.Decimal `json:"gross_amount"`
	FeeAmount           decimal.Decimal `json:"fee_amount"`
	NetAmount           decimal.Decimal `json:"net_amount"`
	AdvanceDate         time.Time       `json:"advance_date"`
	OriginalPaymentDate time.Time       `json:"original_payment_date"`
	CardNetwork         string          `json:"card_network"`
}

// Receivables-assignment indicator values.
const (
	AssignmentIndicatorAssignable    = "CS"
	AssignmentIndicatorInformational = "CL"
)

// ReceivablesAssignment is the type-5 record: a sale of future receivables
// to a third party. Only assignable ("CS") records contribute to totals.
type ReceivablesAssignment struct {
	MerchantCode    string          `json:"merchant_code"`
	OperationNumber string          `json:"operation_number"`
	Indicator       string          `json:"indicator"`
	GrossAmount     decimal.Decimal `json:"gross_amount"`
	FeeAmount       decimal.Decimal `json:"fee_amount"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	AssignmentDate  time.Time       `json:"assignment_date"`
	PaymentDate     time.Time       `json:"payment_date"`
}

// IsAssignable reports whether the assignment contributes to totals.
func (r *ReceivablesAssignment) IsAssignable() bool {
	return r.Indicator == AssignmentIndicatorAssignable
}

// ReceivableUnit is the type-6 record. It is decoded for counting purposes
// and always discarded: the acquirer publishes it for information only.
type ReceivableUnit struct {
	MerchantCode string `json:"merchant_code"`
}

// Trailer is the type-9 record closing the file.
type Trailer struct {
	TotalRecords int `json:"total_records"`
}

// RecordSet holds the typed records decoded from one settlement file,
// preserving file order within each type so downstream grouping stays
// deterministic.
type RecordSet struct {
	Header      *Header                  `json:"header,omitempty"`
	Summaries   []*SalesSummary          `json:"summaries"`
	Vouchers    []*SalesVoucher          `json:"vouchers"`
	Adjustments []*FinancialAdjustment   `json:"adjustments"`
	Advances    []*AdvancePayment        `json:"advances"`
	Assignments []*ReceivablesAssignment `json:"assignments"`
	Units       []*ReceivableUnit        `json:"units"`
	Trailer     *Trailer                 `json:"trailer,omitempty"`
}

// NewRecordSet creates an empty record set.
func NewRecordSet() *RecordSet {
	return &RecordSet{}
}

// Total returns the number of decoded records, header and trailer included.
func (rs *RecordSet) Total() int {
	total := len(rs.Summaries) + len(rs.Vouchers) + len(rs.Adjustments) +
		len(rs.Advances) + len(rs.Assignments) + len(rs.Units)
	if rs.Header != nil {
		total++
	}
	if rs.Trailer != nil {
		total++
	}
	return total
}

// CountsByType returns the per-type record counts keyed by type name.
func (rs *RecordSet) CountsByType() map[string]int {
	counts := map[string]int{
		RecordTypeSalesSummary.String():          len(rs.Summaries),
		RecordTypeSalesVoucher.String():          len(rs.Vouchers),
		RecordTypeFinancialAdjustment.String():   len(rs.Adjustments),
		RecordTypeAdvancePayment.String():        len(rs.Advances),
		RecordTypeReceivablesAssignment.String(): len(rs.Assignments),
		RecordTypeReceivableUnit.String():        len(rs.Units),
	}
	if rs.Header != nil {
		counts[RecordTypeHeader.String()] = 1
	}
	if rs.Trailer != nil {
		counts[RecordTypeTrailer.String()] = 1
	}
	return counts
}
