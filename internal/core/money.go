// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Parsing from user text is a coercion:
// anything that is not a finite, non-negative number becomes zero.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a decimal string to Money with half-up rounding to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Empty,
// malformed, negative or overflowing input yields zero; it never fails.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("12,345") -> 1235 (rounds up)
//	ParseAmount("-5")     -> 0
//	ParseAmount("abc")    -> 0
func ParseAmount(s string) Money {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}
	}
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return Money{}
	}
	return FromDecimal(d)
}

// FromDecimal converts a decimal amount to cents, rounding half up.
// Negative and overflowing values become zero.
func FromDecimal(d decimal.Decimal) Money {
	cents := d.Shift(2).Round(0)
	if cents.IsNegative() || cents.GreaterThan(maxCents) {
		return Money{}
	}
	return Money{Cents: cents.IntPart()}
}

// Decimal returns the amount as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float64 returns the amount for display and spreadsheet cells.
// Use cents for calculations.
func (m Money) Float64() float64 {
	return m.Decimal().InexactFloat64()
}

// Add sums two amounts, saturating at the largest representable value.
func (m Money) Add(o Money) Money {
	if o.Cents > 0 && m.Cents > math.MaxInt64-o.Cents {
		return Money{Cents: math.MaxInt64}
	}
	if o.Cents < 0 && m.Cents < math.MinInt64-o.Cents {
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// String formats the amount with exactly two decimals, e.g. "150.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number, a numeric string or null.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*m = Money{}
		return nil
	}
	*m = ParseAmount(s)
	return nil
}
