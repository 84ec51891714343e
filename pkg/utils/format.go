// Package utils provides display formatting for cryptodash.
package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.New(1, 3)
	million  = decimal.New(1, 6)
	billion  = decimal.New(1, 9)
	trillion = decimal.New(1, 12)
)

// FormatUSD formats an amount with thousands separators ($66,123.46).
// Amounts under $1 keep up to six decimals so small-cap prices stay readable.
func FormatUSD(amount decimal.Decimal) string {
	prefix := "$"
	if amount.IsNegative() {
		prefix = "-$"
		amount = amount.Abs()
	}

	places := int32(2)
	if amount.LessThan(decimal.NewFromInt(1)) && !amount.IsZero() {
		places = 6
	}

	s := amount.StringFixed(places)
	intPart, frac, _ := strings.Cut(s, ".")
	return prefix + groupThousands(intPart) + "." + frac
}

// FormatUSDCompact formats an amount with a magnitude suffix.
// e.g., 1300000000000 → "$1.30T", 35000000000 → "$35.00B"
func FormatUSDCompact(amount decimal.Decimal) string {
	prefix := "$"
	if amount.IsNegative() {
		prefix = "-$"
		amount = amount.Abs()
	}

	switch {
	case amount.GreaterThanOrEqual(trillion):
		return prefix + amount.Div(trillion).StringFixed(2) + "T"
	case amount.GreaterThanOrEqual(billion):
		return prefix + amount.Div(billion).StringFixed(2) + "B"
	case amount.GreaterThanOrEqual(million):
		return prefix + amount.Div(million).StringFixed(2) + "M"
	case amount.GreaterThanOrEqual(thousand):
		return prefix + amount.Div(thousand).StringFixed(2) + "K"
	default:
		return prefix + amount.StringFixed(2)
	}
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct decimal.Decimal) string {
	s := pct.StringFixed(2)
	if !pct.IsNegative() {
		s = "+" + s
	}
	return s + "%"
}

// groupThousands inserts commas every three digits.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
