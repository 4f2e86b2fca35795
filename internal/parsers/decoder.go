// Package parsers decodes the acquirer's positional settlement file into
// typed records.
//
// The file is plain text, one record per line, each line exactly 401
// characters, space-padded, with a 1-character type discriminator at the
// start. Blank lines are skipped, unknown discriminators are silently
// ignored, and a line that fails to decode is dropped and counted rather
// than aborting the batch: a single corrupt voucher must never cost the
// whole settlement day.
//
// Example usage:
//
//	decoder := parsers.NewDecoder(nil)
//	records, stats, err := decoder.Decode(content)
//	if err != nil {
//		// only configuration problems reach here
//	}
//	if stats.HasErrors() {
//		// inspect stats.LineErrors for dropped lines
//	}
package parsers

import (
	"strings"

	"settlement-ingestion-service/internal/models"
	"settlement-ingestion-service/pkg/errors"
	"settlement-ingestion-service/pkg/logger"
)

// DecoderConfig holds configuration for the positional decoder.
type DecoderConfig struct {
	// LineLength is the exact expected line width. Lines of any other
	// length (after stripping the line terminator) are dropped as
	// malformed.
	LineLength int
}

// DefaultDecoderConfig returns a configuration matching the acquirer layout.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{LineLength: LineLength}
}

// Validate validates the decoder configuration.
func (c *DecoderConfig) Validate() error {
	if c.LineLength <= 0 {
		return errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"line_length",
			c.LineLength,
			nil,
		)
	}
	return nil
}

// Decoder turns settlement file content into a typed RecordSet.
type Decoder struct {
	config *DecoderConfig
	logger logger.Logger
}

// NewDecoder creates a decoder with the given configuration.
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("decoder"),
	}
}

// Decode parses the full file content into typed records, preserving file
// order within each record type. It never fails on individual lines; the
// returned stats carry the per-line errors of dropped records.
func (d *Decoder) Decode(content []byte) (*models.RecordSet, *ParseStats, error) {
	if err := d.config.Validate(); err != nil {
		return nil, nil, err
	}

	set := models.NewRecordSet()
	stats := NewParseStats()

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		lineNumber := i + 1
		line = strings.TrimRight(line, "\r")

		if strings.TrimSpace(line) == "" {
			stats.BlankLines++
			continue
		}
		stats.LinesRead++

		if len(line) != d.config.LineLength {
			decodeErr := errors.DecodeError(
				errors.CodeInvalidLineLength,
				lineNumber,
				"line",
				"",
				nil,
			).WithContext("length", len(line))
			stats.AddLineError(decodeErr)
			d.logger.WithFields(logger.Fields{
				"line":   lineNumber,
				"length": len(line),
			}).Warn("Dropped line with invalid length")
			continue
		}

		recordType := models.RecordType(line[0])
		if !recordType.Known() {
			stats.UnknownTypes++
			continue
		}

		if err := d.decodeLine(recordType, line, lineNumber, set); err != nil {
			stats.AddLineError(err)
			d.logger.WithError(err).WithFields(logger.Fields{
				"line": lineNumber,
				"type": recordType.String(),
			}).Warn("Dropped malformed record")
			continue
		}
		stats.RecordsDecoded++
	}

	d.checkTrailer(set, stats)

	d.logger.WithFields(logger.Fields{
		"lines_read":      stats.LinesRead,
		"records_decoded": stats.RecordsDecoded,
		"malformed":       stats.MalformedLines,
		"unknown_types":   stats.UnknownTypes,
	}).Info("Decoded settlement file")

	return set, stats, nil
}

// decodeLine dispatches one line to its per-type decoder. The switch is
// exhaustive over the known record types.
func (d *Decoder) decodeLine(recordType models.RecordType, line string, lineNumber int, set *models.RecordSet) *errors.IngestError {
	switch recordType {
	case models.RecordTypeHeader:
		header, err := d.decodeHeader(line, lineNumber)
		if err != nil {
			return err
		}
		set.Header = header
	case models.RecordTypeSalesSummary:
		summary, err := d.decodeSummary(line, lineNumber)
		if err != nil {
			return err
		}
		set.Summaries = append(set.Summaries, summary)
	case models.RecordTypeSalesVoucher:
		voucher, err := d.decodeVoucher(line, lineNumber)
		if err != nil {
			return err
		}
		set.Vouchers = append(set.Vouchers, voucher)
	case models.RecordTypeFinancialAdjustment:
		adjustment, err := d.decodeAdjustment(line, lineNumber)
		if err != nil {
			return err
		}
		set.Adjustments = append(set.Adjustments, adjustment)
	case models.RecordTypeAdvancePayment:
		advance, err := d.decodeAdvance(line, lineNumber)
		if err != nil {
			return err
		}
		set.Advances = append(set.Advances, advance)
	case models.RecordTypeReceivablesAssignment:
		assignment, err := d.decodeAssignment(line, lineNumber)
		if err != nil {
			return err
		}
		set.Assignments = append(set.Assignments, assignment)
	case models.RecordTypeReceivableUnit:
		set.Units = append(set.Units, &models.ReceivableUnit{
			MerchantCode: trimmed(unitMerchantCode, line),
		})
	case models.RecordTypeTrailer:
		trailer, err := d.decodeTrailer(line, lineNumber)
		if err != nil {
			return err
		}
		set.Trailer = trailer
	}
	return nil
}

func (d *Decoder) decodeHeader(line string, lineNumber int) (*models.Header, *errors.IngestError) {
	movementDate, err := models.ParseSettlementDate(headerMovementDate.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidDate, lineNumber, "movement_date", headerMovementDate.cut(line), err)
	}
	return &models.Header{
		MovementDate: movementDate,
		MerchantCode: trimmed(headerMerchantCode, line),
		CNPJ:         trimmed(headerCNPJ, line),
	}, nil
}

func (d *Decoder) decodeSummary(line string, lineNumber int) (*models.SalesSummary, *errors.IngestError) {
	gross, err := models.ParseCents(summaryGrossAmount.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidAmount, lineNumber, "gross_amount", summaryGrossAmount.cut(line), err)
	}
	net, err := models.ParseCents(summaryNetAmount.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidAmount, lineNumber, "net_amount", summaryNetAmount.cut(line), err)
	}
	fee, err := models.ParseCents(summaryFeeAmount.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidAmount, lineNumber, "fee_amount", summaryFeeAmount.cut(line), err)
	}
	settlementDate, err := models.ParseSettlementDate(summarySettlementDate.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidDate, lineNumber, "settlement_date", summarySettlementDate.cut(line), err)
	}
	paymentDate, err := models.ParseSettlementDate(summaryPaymentDate.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidDate, lineNumber, "payment_date", summaryPaymentDate.cut(line), err)
	}

	return &models.SalesSummary{
		MerchantCode:   trimmed(summaryMerchantCode, line),
		ProductCode:    trimmed(summaryProductCode, line),
		CardNetwork:    trimmed(summaryCardNetwork, line),
		BatchNumber:    trimmed(summaryBatchNumber, line),
		SettlementDate: settlementDate,
		PaymentDate:    paymentDate,
		GrossAmount:    gross,
		NetAmount:      net,
		FeeAmount:      fee,
		PaymentType:    trimmed(summaryPaymentType, line),
		Bank:           trimmed(summaryBank, line),
		Agency:         trimmed(summaryAgency, line),
		Account:        trimmed(summaryAccount, line),
	}, nil
}

func (d *Decoder) decodeVoucher(line string, lineNumber int) (*models.SalesVoucher, *errors.IngestError) {
	amount, err := models.ParseCents(voucherAmount.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidAmount, lineNumber, "amount", voucherAmount.cut(line), err)
	}
	paymentDate, err := models.ParseSettlementDate(voucherPaymentDate.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidDate, lineNumber, "payment_date", voucherPaymentDate.cut(line), err)
	}
	// Transaction date can be absent on some voucher variants.
	transactionDate, _ := models.ParseSettlementDate(voucherTransactionDate.cut(line))

	return &models.SalesVoucher{
		MerchantCode:      trimmed(voucherMerchantCode, line),
		BatchNumber:       trimmed(voucherBatchNumber, line),
		NSU:               trimmed(voucherNSU, line),
		Amount:            amount,
		InstallmentIndex:  numeric(voucherInstallmentIndex, line),
		InstallmentCount:  numeric(voucherInstallmentCount, line),
		TransactionDate:   transactionDate,
		PaymentDate:       paymentDate,
		AuthorizationCode: trimmed(voucherAuthorization, line),
		CardNetwork:       trimmed(voucherCardNetwork, line),
	}, nil
}

func (d *Decoder) decodeAdjustment(line string, lineNumber int) (*models.FinancialAdjustment, *errors.IngestError) {
	amount, err := models.ParseCents(adjustmentAmount.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidAmount, lineNumber, "amount", adjustmentAmount.cut(line), err)
	}
	paymentDate, err := models.ParseSettlementDate(adjustmentPaymentDate.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidDate, lineNumber, "payment_date", adjustmentPaymentDate.cut(line), err)
	}

	return &models.FinancialAdjustment{
		MerchantCode: trimmed(adjustmentMerchantCode, line),
		BatchNumber:  trimmed(adjustmentBatchNumber, line),
		Sign:         adjustmentSign.cut(line),
		Amount:       amount,
		Reason:       trimmed(adjustmentReason, line),
		PaymentDate:  paymentDate,
	}, nil
}

func (d *Decoder) decodeAdvance(line string, lineNumber int) (*models.AdvancePayment, *errors.IngestError) {
	gross, err := models.ParseCents(advanceGrossAmount.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidAmount, lineNumber, "gross_amount", advanceGrossAmount.cut(line), err)
	}
	fee, err := models.ParseCents(advanceFeeAmount.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidAmount, lineNumber, "fee_amount", advanceFeeAmount.cut(line), err)
	}
	net, err := models.ParseCents(advanceNetAmount.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidAmount, lineNumber, "net_amount", advanceNetAmount.cut(line), err)
	}
	advDate, err := models.ParseSettlementDate(advanceDate.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidDate, lineNumber, "advance_date", advanceDate.cut(line), err)
	}
	originalDate, err := models.ParseSettlementDate(advanceOriginalPayDate.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidDate, lineNumber, "original_payment_date", advanceOriginalPayDate.cut(line), err)
	}

	return &models.AdvancePayment{
		MerchantCode:        trimmed(advanceMerchantCode, line),
		OperationNumber:     trimmed(advanceOperationNumber, line),
		GrossAmount:         gross,
		FeeAmount:           fee,
		NetAmount:           net,
		AdvanceDate:         advDate,
		OriginalPaymentDate: originalDate,
		CardNetwork:         trimmed(advanceCardNetwork, line),
	}, nil
}

func (d *Decoder) decodeAssignment(line string, lineNumber int) (*models.ReceivablesAssignment, *errors.IngestError) {
	gross, err := models.ParseCents(assignmentGrossAmount.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidAmount, lineNumber, "gross_amount", assignmentGrossAmount.cut(line), err)
	}
	fee, err := models.ParseCents(assignmentFeeAmount.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidAmount, lineNumber, "fee_amount", assignmentFeeAmount.cut(line), err)
	}
	net, err := models.ParseCents(assignmentNetAmount.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidAmount, lineNumber, "net_amount", assignmentNetAmount.cut(line), err)
	}
	assignDate, err := models.ParseSettlementDate(assignmentDate.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidDate, lineNumber, "assignment_date", assignmentDate.cut(line), err)
	}
	paymentDate, err := models.ParseSettlementDate(assignmentPaymentDate.cut(line))
	if err != nil {
		return nil, errors.DecodeError(errors.CodeInvalidDate, lineNumber, "payment_date", assignmentPaymentDate.cut(line), err)
	}

	return &models.ReceivablesAssignment{
		MerchantCode:    trimmed(assignmentMerchantCode, line),
		OperationNumber: trimmed(assignmentOperationNumber, line),
		Indicator:       trimmed(assignmentIndicator, line),
		GrossAmount:     gross,
		FeeAmount:       fee,
		NetAmount:       net,
		AssignmentDate:  assignDate,
		PaymentDate:     paymentDate,
	}, nil
}

func (d *Decoder) decodeTrailer(line string, lineNumber int) (*models.Trailer, *errors.IngestError) {
	total := numeric(trailerTotalRecords, line)
	if total < 0 {
		return nil, errors.DecodeError(errors.CodeMalformedRecord, lineNumber, "total_records", trailerTotalRecords.cut(line), nil)
	}
	return &models.Trailer{TotalRecords: total}, nil
}

// checkTrailer compares the trailer's declared record count against the
// lines actually seen. A mismatch is a warning only: the acquirer counts
// every line including header and trailer.
func (d *Decoder) checkTrailer(set *models.RecordSet, stats *ParseStats) {
	if set.Trailer == nil {
		return
	}
	seen := stats.LinesRead
	if set.Trailer.TotalRecords != seen {
		stats.TrailerMismatch = true
		d.logger.WithFields(logger.Fields{
			"declared": set.Trailer.TotalRecords,
			"seen":     seen,
		}).Warn("Trailer record count does not match lines read")
	}
}

// trimmed returns the field with surrounding spaces removed.
func trimmed(s span, line string) string {
	return strings.TrimSpace(s.cut(line))
}

// numeric parses a small fixed-width unsigned integer field, returning -1
// when the field does not hold digits.
func numeric(s span, line string) int {
	raw := strings.TrimSpace(s.cut(line))
	if raw == "" {
		return 0
	}
	value := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return -1
		}
		value = value*10 + int(r-'0')
	}
	return value
}
