// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals with two fractional digits, matching the
// numeric(12,2) columns they are stored in.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount is the first value that no longer fits numeric(12,2).
var maxAmount = decimal.New(1, 10)

var (
	plainAmount   = regexp.MustCompile(`^\d+(\.\d+)?$`)
	groupedAmount = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
)

// ParseAmount converts a user supplied amount into a decimal rounded to two places.
//
// It accepts plain numbers (1234, 12.5), thousands separated numbers (1,234,567)
// and an optional leading yen sign. Signs are rejected: the transaction kind
// carries the direction of money, never the amount.
//
// Examples:
//
//	ParseAmount("1234")    -> 1234, nil
//	ParseAmount("¥1,234")  -> 1234, nil
//	ParseAmount("12.345")  -> 12.35, nil (half-up)
//	ParseAmount("-5")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "￥")
	switch {
	case plainAmount.MatchString(s):
	case groupedAmount.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	default:
		return decimal.Zero, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = RoundAmount(d)
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// RoundAmount rounds d half-up to the two places amounts are stored with.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatYen renders an amount as ¥1,234 (or ¥1,234.50 when it has a fractional part).
func FormatYen(d decimal.Decimal) string {
	neg := d.IsNegative()
	d = d.Abs()

	var s string
	if d.Equal(d.Truncate(0)) {
		s = d.StringFixed(0)
	} else {
		s = d.StringFixed(2)
	}

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}

	if neg {
		return "-¥" + b.String()
	}
	return "¥" + b.String()
}
