// Package money implements the monetary value type used for list prices and
// offers.  A Money value is an exact decimal amount tagged with an ISO 4217
// currency code.  Values are immutable; every operation returns a new value.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	// ErrInvalidAmount is returned when an amount is not a finite positive number.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidCurrency is returned for codes that are not ISO 4217 currencies.
	ErrInvalidCurrency = errors.New("invalid currency")
	// ErrCurrencyMismatch is returned when comparing values of different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// Money is a positive amount in a single currency.  The zero value is not a
// valid amount and is reported by IsZero.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New validates the currency code and amount and returns a Money rounded to
// the currency's standard number of minor units.
func New(amount decimal.Decimal, code string) (Money, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	rounded := amount.Round(int32(scale))
	if !rounded.IsPositive() {
		return Money{}, fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, amount.String())
	}
	return Money{amount: rounded, currency: unit.String()}, nil
}

// FromFloat is New for float input.  NaN and infinities are rejected.
func FromFloat(amount float64, code string) (Money, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Money{}, fmt.Errorf("%w: not a finite number", ErrInvalidAmount)
	}
	return New(decimal.NewFromFloat(amount), code)
}

// Parse is New for a decimal string such as "150.00".
func Parse(amount, code string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return New(d, code)
}

// MustParse is like Parse but panics on error.  Intended for tests and constants.
func MustParse(amount, code string) Money {
	m, err := Parse(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the upper-case ISO 4217 code.
func (m Money) Currency() string { return m.currency }

// IsZero reports whether m is the zero value, i.e. was never constructed.
func (m Money) IsZero() bool { return m.currency == "" }

// SameCurrency reports whether both values carry the same currency code.
func (m Money) SameCurrency(o Money) bool { return m.currency == o.currency }

// Compare returns -1, 0 or +1.  It fails with ErrCurrencyMismatch when the
// currencies differ.
func (m Money) Compare(o Money) (int, error) {
	if !m.SameCurrency(o) {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return m.amount.Cmp(o.amount), nil
}

// Equals reports whether both values denote the same amount.
func (m Money) Equals(o Money) (bool, error) {
	c, err := m.Compare(o)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

// String renders the canonical "<amount> <code>" form, e.g. "150.00 BRL".
func (m Money) String() string {
	if m.IsZero() {
		return "0"
	}
	return m.amount.StringFixed(m.scale()) + " " + m.currency
}

// Format renders m for display in the given locale: the currency symbol, a
// space, and the locale-formatted number, e.g. "R$ 150.00".
func (m Money) Format(tag language.Tag) string {
	if m.IsZero() {
		return ""
	}
	unit := currency.MustParseISO(m.currency)
	p := message.NewPrinter(tag)
	symbol := p.Sprint(currency.Symbol(unit))
	f, _ := m.amount.Float64()
	digits := int(m.scale())
	amount := p.Sprint(number.Decimal(f, number.MinFractionDigits(digits), number.MaxFractionDigits(digits)))
	return symbol + " " + amount
}

func (m Money) scale() int32 {
	unit, err := currency.ParseISO(m.currency)
	if err != nil {
		return 2
	}
	s, _ := currency.Standard.Rounding(unit)
	return int32(s)
}

type jsonMoney struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes m as {"amount":"150.00","currency":"BRL"}.
func (m Money) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(jsonMoney{Amount: m.amount.StringFixed(m.scale()), Currency: m.currency})
}

// UnmarshalJSON decodes and validates the object form written by MarshalJSON.
func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = Money{}
		return nil
	}
	var raw jsonMoney
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := Parse(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
