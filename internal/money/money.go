package money

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// DefaultExponent is the number of minor units per major unit expressed as a power of ten (cents).
const DefaultExponent int32 = 2

// ToMinor converts a major-unit amount into integer minor units, rounding half away from zero.
func ToMinor(amount decimal.Decimal, exponent int32) int64 {
	return RoundMinor(amount.Shift(exponent))
}

// FromMinor converts integer minor units back into a major-unit amount.
func FromMinor(minor int64, exponent int32) decimal.Decimal {
	return decimal.New(minor, -exponent)
}

// RoundMinor rounds a fractional minor-unit amount to the nearest whole unit, half away from zero.
func RoundMinor(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// RoundCurrency rounds a major-unit amount to whole minor units.
func RoundCurrency(d decimal.Decimal, exponent int32) decimal.Decimal {
	return d.Round(exponent)
}

// FormatMajor renders a major-unit amount with thousands separators and two decimals.
func FormatMajor(d decimal.Decimal) string {
	return humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}

// FormatMinor renders minor units as a major-unit string.
func FormatMinor(minor int64, exponent int32) string {
	return FromMinor(minor, exponent).StringFixed(exponent)
}
