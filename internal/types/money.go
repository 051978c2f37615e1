// README: Common money value object used across modules.
package types

import "github.com/shopspring/decimal"

// Money is an exact decimal amount in the platform's operating currency.
// Arithmetic stays exact; RoundMoney is applied once per derived value.
type Money = decimal.Decimal

// NewMoney builds a Money from a whole number of currency units.
func NewMoney(units int64) Money {
	return decimal.NewFromInt(units)
}

// MoneyFromString parses a decimal amount. Panics on malformed input, so it
// is only for constants and trusted configuration values.
func MoneyFromString(s string) Money {
	return decimal.RequireFromString(s)
}

// ParseMoney parses a decimal amount from untrusted input.
func ParseMoney(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// RoundMoney applies the platform rounding rule: two decimal places, halves
// rounded up. Each derived value is rounded exactly once, never cumulatively.
func RoundMoney(m Money) Money {
	return m.Round(2)
}
