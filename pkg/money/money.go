// Package money provides currency-safe amounts using integer minor units.
// It wraps go-money for arithmetic and display and shopspring/decimal for
// conversion from the decimal amounts the database stores.
package money

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// CNY is the currency of every supported export format.
const CNY = "CNY"

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates Money from minor units (fen for CNY) and a currency code.
func New(minorUnits int64, currencyCode string) *Money {
	return &Money{m: money.New(minorUnits, currencyCode)}
}

// NewFromDecimal converts a decimal amount to Money, rounding to the
// currency's fraction.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(CNY)
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()
	return New(cents, currency.Code)
}

// Zero returns a zero Money value for the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the amount in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero reports whether the amount is zero.
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Abs returns the absolute value.
func (m *Money) Abs() *Money {
	if m == nil || m.m == nil {
		return Zero(CNY)
	}
	return &Money{m: m.m.Absolute()}
}

// Add sums two amounts of the same currency.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil || other == nil || other.m == nil {
		return nil, fmt.Errorf("cannot add nil money")
	}
	sum, err := m.m.Add(other.m)
	if err != nil {
		return nil, fmt.Errorf("failed to add amounts: %w", err)
	}
	return &Money{m: sum}, nil
}

// Display renders the amount with its currency grapheme.
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}

// DisplayDecimal is a shorthand for formatting a stored decimal amount.
func DisplayDecimal(amount decimal.Decimal, currencyCode string) string {
	return NewFromDecimal(amount, currencyCode).Display()
}
