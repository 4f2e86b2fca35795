package parsers

// Byte ranges of the positional settlement file, 0-indexed and end-exclusive.
// Each line is exactly LineLength characters, space-padded, with the record
// type discriminator at position 0.
const LineLength = 401

// span is one fixed-width field slice.
type span struct {
	from, to int
}

func (s span) cut(line string) string {
	return line[s.from:s.to]
}

// Header (type 0)
var (
	headerMovementDate = span{1, 9}
	headerMerchantCode = span{31, 46}
	headerCNPJ         = span{46, 60}
)

// Sales summary (type 1)
var (
	summaryMerchantCode   = span{1, 16}
	summaryProductCode    = span{16, 18}
	summaryCardNetwork    = span{18, 21}
	summaryBatchNumber    = span{21, 30}
	summarySettlementDate = span{30, 38}
	summaryPaymentDate    = span{38, 46}
	summaryGrossAmount    = span{84, 96}
	summaryNetAmount      = span{96, 108}
	summaryFeeAmount      = span{120, 132}
	summaryBank           = span{132, 136}
	summaryAgency         = span{136, 142}
	summaryAccount        = span{142, 153}
	summaryPaymentType    = span{168, 170}
)

// Sales voucher (type 2)
var (
	voucherMerchantCode     = span{1, 16}
	voucherBatchNumber      = span{16, 25}
	voucherNSU              = span{25, 37}
	voucherAmount           = span{70, 82}
	voucherAuthorization    = span{96, 102}
	voucherInstallmentIndex = span{106, 108}
	voucherInstallmentCount = span{108, 110}
	voucherTransactionDate  = span{114, 122}
	voucherPaymentDate      = span{122, 130}
	voucherCardNetwork      = span{130, 133}
)

// Financial adjustment (type 3)
var (
	adjustmentMerchantCode = span{1, 16}
	adjustmentBatchNumber  = span{16, 25}
	adjustmentSign         = span{62, 63}
	adjustmentAmount       = span{63, 75}
	adjustmentReason       = span{75, 105}
	adjustmentPaymentDate  = span{105, 113}
)

// Advance payment (type 4)
var (
	advanceMerchantCode    = span{1, 16}
	advanceOperationNumber = span{21, 35}
	advanceGrossAmount     = span{51, 66}
	advanceFeeAmount       = span{66, 81}
	advanceNetAmount       = span{81, 96}
	advanceDate            = span{96, 104}
	advanceOriginalPayDate = span{104, 112}
	advanceCardNetwork     = span{112, 115}
)

// Receivables assignment (type 5)
var (
	assignmentMerchantCode    = span{1, 16}
	assignmentOperationNumber = span{32, 52}
	assignmentIndicator       = span{52, 54}
	assignmentGrossAmount     = span{54, 69}
	assignmentFeeAmount       = span{69, 84}
	assignmentNetAmount       = span{84, 99}
	assignmentDate            = span{99, 107}
	assignmentPaymentDate     = span{107, 115}
)

// Receivable unit (type 6)
var (
	unitMerchantCode = span{1, 16}
)

// Trailer (type 9)
var (
	trailerTotalRecords = span{1, 7}
)
