// Package money provides currency-safe arithmetic for revenue figures using
// integer minor units and ISO-4217 currency codes.
package money

import (
	"fmt"
	"sort"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	BRL = "BRL"
	JPY = "JPY"
	CAD = "CAD"
	INR = "INR"
)

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a new Money value from minor units and a currency code.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// NewFromDecimal creates Money from a decimal, rounding to the currency's
// minor unit. Unknown currency codes fall back to USD.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currencyCode = USD
		currency = money.GetCurrency(USD)
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()

	return New(cents, currencyCode)
}

// Zero returns a zero Money value for the given currency
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the amount in minor units
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// Add adds two Money values. Returns error if currencies don't match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}

	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Display returns a formatted string for display (e.g., "$1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "$0.00"
	}
	return m.m.Display()
}

// String returns the amount as a fixed-point decimal string (e.g., "1234.56")
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	d := decimal.NewFromInt(m.m.Amount())
	divisor := decimal.New(1, int32(currency.Fraction))
	return d.Div(divisor)
}

// Totals accumulates revenue per currency. The zero value is not usable; use NewTotals.
type Totals struct {
	fallback string
	sums     map[string]*Money
}

// NewTotals creates an accumulator. Amounts without a currency are booked
// under fallback.
func NewTotals(fallback string) *Totals {
	if fallback == "" {
		fallback = USD
	}
	return &Totals{fallback: fallback, sums: map[string]*Money{}}
}

// Add books amount under currencyCode.
func (t *Totals) Add(amount decimal.Decimal, currencyCode string) error {
	if currencyCode == "" {
		currencyCode = t.fallback
	}
	m := NewFromDecimal(amount, currencyCode)
	code := m.Currency()

	sum, err := t.sums[code].Add(m)
	if err != nil {
		return fmt.Errorf("failed to add %s revenue: %w", code, err)
	}
	t.sums[code] = sum
	return nil
}

// ParseTotals rebuilds an accumulator from the output of Strings.
func ParseTotals(totals map[string]string) (*Totals, error) {
	t := NewTotals("")
	for code, amount := range totals {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid %s total %q: %w", code, amount, err)
		}
		if err := t.Add(d, code); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Display formats every total for people, in currency order (e.g. "$1,234.56").
func (t *Totals) Display() []string {
	out := make([]string, 0, len(t.sums))
	for _, code := range t.Currencies() {
		out = append(out, t.Get(code).Display())
	}
	return out
}

// Currencies returns the booked currency codes in sorted order.
func (t *Totals) Currencies() []string {
	codes := make([]string, 0, len(t.sums))
	for code := range t.sums {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Get returns the total for a currency, or zero.
func (t *Totals) Get(currencyCode string) *Money {
	if sum, ok := t.sums[currencyCode]; ok {
		return sum
	}
	return Zero(currencyCode)
}

// Strings renders every total as a fixed-point decimal string keyed by currency.
func (t *Totals) Strings() map[string]string {
	if len(t.sums) == 0 {
		return nil
	}
	out := make(map[string]string, len(t.sums))
	for code, sum := range t.sums {
		out[code] = sum.String()
	}
	return out
}

// Merge folds other into t.
func (t *Totals) Merge(other *Totals) error {
	if other == nil {
		return nil
	}
	for code, m := range other.sums {
		sum, err := t.sums[code].Add(m)
		if err != nil {
			return fmt.Errorf("failed to merge %s revenue: %w", code, err)
		}
		t.sums[code] = sum
	}
	return nil
}
