// Package core provides the grocery domain types.
//
// This file contains the exact decimal Money type and the parsing of monetary
// amounts typed into forms.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount. The zero value is 0.
type Money struct {
	d decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money { return Money{d: d} }

// MustMoney parses s and panics on failure. Intended for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoney converts a positive decimal string into Money.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Signs,
// zero, fractions of a cent, empty input and malformed numbers return
// ErrInvalidPrice.
//
// Examples:
//
//	ParseMoney("1.50") -> 1.50, nil
//	ParseMoney("1,5")  -> 1.50, nil
//	ParseMoney("-1")   -> error
//	ParseMoney("0.005") -> error
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidPrice
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidPrice
	}
	if strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidPrice
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidPrice
	}
	if !d.IsPositive() || !d.Equal(d.Round(2)) {
		return Money{}, ErrInvalidPrice
	}
	return Money{d: d}, nil
}

func (m Money) Add(n Money) Money       { return Money{d: m.d.Add(n.d)} }
func (m Money) Mul(q int) Money         { return Money{d: m.d.Mul(decimal.NewFromInt(int64(q)))} }
func (m Money) Equal(n Money) bool      { return m.d.Equal(n.d) }
func (m Money) IsZero() bool            { return m.d.IsZero() }
func (m Money) IsPositive() bool        { return m.d.IsPositive() }
func (m Money) Decimal() decimal.Decimal { return m.d }

// Cents returns the amount rounded half-up to whole cents.
func (m Money) Cents() int64 {
	return m.d.Shift(2).Round(0).IntPart()
}

// Float64 is for display code such as charts; sums are kept in decimals.
func (m Money) Float64() float64 {
	return m.d.InexactFloat64()
}

// String formats the amount with exactly two decimals, rounding half-up.
func (m Money) String() string {
	return m.d.StringFixed(2)
}

// MarshalJSON writes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	return m.d.UnmarshalJSON(b)
}
