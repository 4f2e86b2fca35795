// Package rules applies the acquirer-specific business rules to a decoded
// record set: the D-1 processing-window filter, the already-liquidated
// exclusions, and the pre-discounted pairing correction.
package rules

import (
	"settlement-ingestion-service/pkg/errors"
)

// Config holds the acquirer-specific codes the rules reason about.
type Config struct {
	// DebitProductCode marks summaries belonging to the debit family,
	// which always settle as already-liquidated.
	DebitProductCode string `json:"debit_product_code"`

	// LiquidatedPaymentType is the payment-type code stamped on batches
	// the acquirer already settled on an earlier day.
	LiquidatedPaymentType string `json:"liquidated_payment_type"`

	// PreDiscountedNetwork is the card-network code whose summaries
	// arrive with the fee already subtracted from the gross amount.
	PreDiscountedNetwork string `json:"pre_discounted_network"`

	// DonorNetwork is the card-network code of the sibling record
	// carrying the true gross/fee split for the same batch context.
	DonorNetwork string `json:"donor_network"`
}

// DefaultConfig returns the configuration for the current acquirer layout.
func DefaultConfig() *Config {
	return &Config{
		DebitProductCode:      "SE",
		LiquidatedPaymentType: "LQ",
		PreDiscountedNetwork:  "MAE",
		DonorNetwork:          "MAS",
	}
}

// Validate validates the rule configuration.
func (c *Config) Validate() error {
	if c.DebitProductCode == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "debit_product_code", nil, nil)
	}
	if c.LiquidatedPaymentType == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "liquidated_payment_type", nil, nil)
	}
	if c.PreDiscountedNetwork == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "pre_discounted_network", nil, nil)
	}
	if c.DonorNetwork == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "donor_network", nil, nil)
	}
	if c.PreDiscountedNetwork == c.DonorNetwork {
		return errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"donor_network",
			c.DonorNetwork,
			nil,
		).WithSuggestion("the pre-discounted and donor network codes must differ")
	}
	return nil
}
