package billing

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// NormalizeCurrency upper-cases and validates an ISO 4217 code.
func NormalizeCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return "", NewError(ErrValidation, "unknown currency "+code)
	}
	return unit.String(), nil
}

// minorScale returns the number of decimals of the currency's minor unit.
// Unknown codes fall back to two.
func minorScale(code string) int32 {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// FromMinor converts an amount in minor units (cents) to major units.
func FromMinor(minor int64, code string) decimal.Decimal {
	return decimal.New(minor, -minorScale(code))
}

// ToMinor converts a major-unit amount to minor units, rounding half away
// from zero.
func ToMinor(amount decimal.Decimal, code string) int64 {
	return amount.Shift(minorScale(code)).Round(0).IntPart()
}
