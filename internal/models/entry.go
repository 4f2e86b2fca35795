package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind classifies a derived ledger entry.
type EntryKind string

const (
	// EntryKindReceivable is a gross amount owed to the merchant.
	EntryKindReceivable EntryKind = "RECEIVABLE"
	// EntryKindPayable is a fee or negative adjustment owed by the merchant.
	EntryKindPayable EntryKind = "PAYABLE"
	// EntryKindSalesAggregate is the informational batch-level sales record.
	EntryKindSalesAggregate EntryKind = "SALES_AGGREGATE"
	// EntryKindVoucher is one card transaction underlying an aggregate.
	EntryKindVoucher EntryKind = "VOUCHER"
)

// IsValid checks if the entry kind is valid
func (k EntryKind) IsValid() bool {
	switch k {
	case EntryKindReceivable, EntryKindPayable, EntryKindSalesAggregate, EntryKindVoucher:
		return true
	}
	return false
}

// EntryStatus is the lifecycle state of a persisted entry. The ingestion
// engine only ever writes StatusCaptured; the later states belong to
// downstream consumers and are never regressed here.
type EntryStatus string

const (
	StatusCaptured   EntryStatus = "captured"
	StatusClassified EntryStatus = "classified"
	StatusReconciled EntryStatus = "reconciled"
)

// PastCapture reports whether downstream work has already progressed the
// entry beyond raw capture. Such entries must never be overwritten.
func (s EntryStatus) PastCapture() bool {
	return s == StatusClassified || s == StatusReconciled
}

// AdvanceEnrichment records the share of an advance-payment operation
// allocated to one voucher.
type AdvanceEnrichment struct {
	OperationNumber string          `json:"operation_number"`
	AdvanceDate     time.Time       `json:"advance_date"`
	AdvanceFee      decimal.Decimal `json:"advance_fee"`
	NetAfterAdvance decimal.Decimal `json:"net_after_advance"`
}

// AssignmentEnrichment records the share of a receivables-assignment
// operation allocated to one voucher.
type AssignmentEnrichment struct {
	OperationNumber    string          `json:"operation_number"`
	AssignmentDate     time.Time       `json:"assignment_date"`
	AssignmentFee      decimal.Decimal `json:"assignment_fee"`
	NetAfterAssignment decimal.Decimal `json:"net_after_assignment"`
}

// VoucherAllocation is the proportional-fee breakdown for one voucher of a
// settlement batch. The same breakdown appears on the standalone voucher
// entry and inside its aggregate's voucher list; the enricher keeps the two
// in sync by NSU.
type VoucherAllocation struct {
	NSU              string                `json:"nsu"`
	Amount           decimal.Decimal       `json:"amount"`
	ProportionalFee  decimal.Decimal       `json:"proportional_fee"`
	EstimatedNet     decimal.Decimal       `json:"estimated_net"`
	InstallmentIndex int                   `json:"installment_index"`
	InstallmentCount int                   `json:"installment_count"`
	PaymentDate      time.Time             `json:"payment_date"`
	CardNetwork      string                `json:"card_network"`
	Advance          *AdvanceEnrichment    `json:"advance,omitempty"`
	Assignment       *AssignmentEnrichment `json:"assignment,omitempty"`
}

// Clone returns a deep copy of the allocation.
func (va *VoucherAllocation) Clone() *VoucherAllocation {
	clone := *va
	if va.Advance != nil {
		advance := *va.Advance
		clone.Advance = &advance
	}
	if va.Assignment != nil {
		assignment := *va.Assignment
		clone.Assignment = &assignment
	}
	return &clone
}

// EntryMetadata carries the traceability fields linking a ledger entry back
// to its source records. Typed sub-structures are used instead of a free-form
// map so the aggregate's voucher cache cannot drift from the voucher entries.
type EntryMetadata struct {
	BatchNumber  string `json:"batch_number,omitempty"`
	NSU          string `json:"nsu,omitempty"`
	MerchantCode string `json:"merchant_code,omitempty"`
	CardNetwork  string `json:"card_network,omitempty"`
	ProductCode  string `json:"product_code,omitempty"`
	PaymentType  string `json:"payment_type,omitempty"`

	GrossAmount decimal.Decimal `json:"gross_amount,omitempty"`
	NetAmount   decimal.Decimal `json:"net_amount,omitempty"`
	FeeAmount   decimal.Decimal `json:"fee_amount,omitempty"`

	// BilledAmount is the sum of voucher amounts of an aggregate, falling
	// back to the summary gross when the batch carried no vouchers.
	BilledAmount decimal.Decimal `json:"billed_amount,omitempty"`

	Corrected     bool `json:"corrected,omitempty"`
	FeeDiscounted bool `json:"fee_discounted,omitempty"`

	// Adjustment fields
	Reason string `json:"reason,omitempty"`
	Sign   string `json:"sign,omitempty"`

	// Advance / assignment operation reference
	OperationNumber string `json:"operation_number,omitempty"`

	// Voucher entries only
	Allocation *VoucherAllocation `json:"allocation,omitempty"`

	// Aggregate entries only
	Vouchers []*VoucherAllocation `json:"vouchers,omitempty"`
}

// LedgerEntry is the engine's output unit: one receivable, payable,
// informational aggregate, or voucher derived from the settlement file.
type LedgerEntry struct {
	ID           uuid.UUID       `json:"id"`
	SourceKey    string          `json:"source_key"`
	TenantID     string          `json:"tenant_id"`
	Kind         EntryKind       `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
	Counterparty string          `json:"counterparty"`
	LinkedTo     uuid.UUID       `json:"linked_to,omitempty"`
	Status       EntryStatus     `json:"status"`
	Metadata     EntryMetadata   `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// entryNamespace is the UUIDv5 namespace under which entry identities are
// derived. Fixed so that re-runs of the same file produce the same IDs.
var entryNamespace = uuid.MustParse("9b1fe6cf-2c47-4b0d-a4be-5c6f8d21a7e3")

// EntryID derives the deterministic identity for a source key. The same key
// always yields the same UUID, which is what makes re-ingestion recognizable.
func EntryID(sourceKey string) uuid.UUID {
	return uuid.NewSHA1(entryNamespace, []byte(sourceKey))
}

// NewLedgerEntry creates a captured ledger entry with its deterministic
// identity derived from the source key.
func NewLedgerEntry(tenantID, sourceKey string, kind EntryKind, amount decimal.Decimal, dueDate time.Time) *LedgerEntry {
	return &LedgerEntry{
		ID:        EntryID(sourceKey),
		SourceKey: sourceKey,
		TenantID:  tenantID,
		Kind:      kind,
		Amount:    amount,
		DueDate:   dueDate,
		Status:    StatusCaptured,
	}
}
