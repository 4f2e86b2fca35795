package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for dates in the settlement file.
const DateLayout = "02012006" // DDMMYYYY

// ISODateLayout is the normalized date format used everywhere downstream.
const ISODateLayout = "2006-01-02"

// ParseCents parses a fixed-width zero-padded cents field into a decimal
// value with two fractional digits ("000100000" -> 1000.00).
func ParseCents(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount field is empty")
	}

	var cents int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return decimal.Zero, fmt.Errorf("amount field contains non-digit %q", r)
		}
		cents = cents*10 + int64(r-'0')
	}

	return decimal.New(cents, -2), nil
}

// FormatCents renders a decimal amount back into a zero-padded cents field
// of the given width. It is the inverse of ParseCents for well-formed values.
func FormatCents(d decimal.Decimal, width int) string {
	cents := d.Shift(2).IntPart()
	return fmt.Sprintf("%0*d", width, cents)
}

// ParseSettlementDate parses a DDMMYYYY date field.
func ParseSettlementDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == strings.Repeat("0", len(s)) {
		return time.Time{}, fmt.Errorf("date field is empty")
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid DDMMYYYY date %q: %w", s, err)
	}
	return t, nil
}

// FormatISODate renders a date in the normalized YYYY-MM-DD form.
// A zero time renders as the empty string.
func FormatISODate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(ISODateLayout)
}

// PreviousBusinessDay returns the business day before t, skipping weekends.
// Acquirer settlement cycles reference D-1 relative to the file's movement
// date.
func PreviousBusinessDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Round2 rounds a decimal amount to two fractional digits, the resolution of
// every monetary figure in the ledger.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
