// Package money centralises the decimal arithmetic conventions used for
// currency amounts and discount percentages. Every amount that leaves a
// calculation is rounded half-up to two places; settled amounts compare
// equal when their two-place roundings match.
package money

import "github.com/shopspring/decimal"

// Cent is the smallest representable currency step.
var Cent = decimal.New(1, -2)

// Hundred is used for percentage conversions.
var Hundred = decimal.NewFromInt(100)

// Round2 rounds half-up to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Clamp returns d bounded to the inclusive range [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// NonNegative floors d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// EqualCents reports whether two amounts are equal once rounded to cents.
func EqualCents(a, b decimal.Decimal) bool {
	return a.Round(2).Equal(b.Round(2))
}

// PercentOf derives the percentage that amount represents of unit,
// rounded to two places. Zero when unit is not positive.
func PercentOf(amount, unit decimal.Decimal) decimal.Decimal {
	if !unit.IsPositive() {
		return decimal.Zero
	}
	return amount.Div(unit).Mul(Hundred).Round(2)
}

// FromPercent converts a percentage of unit into an amount rounded to
// two places.
func FromPercent(unit, pct decimal.Decimal) decimal.Decimal {
	return unit.Mul(pct).Div(Hundred).Round(2)
}
