package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places every stored amount carries.
const MoneyScale int32 = 2

var (
	half    = decimal.New(5, -1)
	hundred = decimal.NewFromInt(100)
)

var ErrCurrencyMismatch = errors.New("currency mismatch")

// Money is an immutable decimal amount tagged with its currency.
// Arithmetic never rounds; callers round derived amounts explicitly with Round or Floor.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// NewMoneyFromMinorUnits builds an amount from a count of cents.
func NewMoneyFromMinorUnits(cents int64, currency Currency) (Money, error) {
	return NewMoney(decimal.New(cents, -MoneyScale), currency)
}

func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, currency)
}

// MustMoney is NewMoneyFromString for literals; it panics on bad input.
func MustMoney(amount string, currency Currency) Money {
	m, err := NewMoneyFromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }
func (m Money) IsZero() bool            { return m.amount.IsZero() }
func (m Money) IsPositive() bool        { return m.amount.IsPositive() }
func (m Money) IsNegative() bool        { return m.amount.IsNegative() }

// MinorUnits is the amount in cents after Round.
func (m Money) MinorUnits() int64 {
	return m.Round().amount.Shift(MoneyScale).IntPart()
}

// HasSubMinorPrecision reports digits beyond MoneyScale, such as the 5 in 10.005.
func (m Money) HasSubMinorPrecision() bool {
	return !m.amount.Equal(m.amount.Truncate(MoneyScale))
}

func (m Money) with(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: m.currency}
}

// combine applies op to both amounts once the currencies agree.
func (m Money) combine(verb string, other Money, op func(a, b decimal.Decimal) decimal.Decimal) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot %s %s and %s: %w", verb, m.currency, other.currency, ErrCurrencyMismatch)
	}
	return m.with(op(m.amount, other.amount)), nil
}

func (m Money) Add(other Money) (Money, error) {
	return m.combine("add", other, decimal.Decimal.Add)
}

func (m Money) Subtract(other Money) (Money, error) {
	return m.combine("subtract", other, decimal.Decimal.Sub)
}

// MustAdd is Add for amounts already known to share a currency.
func (m Money) MustAdd(other Money) Money {
	return must(m.Add(other))
}

// MustSubtract is Subtract for amounts already known to share a currency.
func (m Money) MustSubtract(other Money) Money {
	return must(m.Subtract(other))
}

func must(m Money, err error) Money {
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Multiply(factor decimal.Decimal) Money {
	return m.with(m.amount.Mul(factor))
}

// Percentage returns percent/100 of m, unrounded.
func (m Money) Percentage(percent decimal.Decimal) Money {
	return m.with(m.amount.Mul(percent).Div(hundred))
}

// RoundHalfUp rounds to places with halves going towards positive infinity,
// so 0.125 becomes 0.13 and -0.125 becomes -0.12.
func (m Money) RoundHalfUp(places int32) Money {
	return m.with(m.amount.Shift(places).Add(half).Floor().Shift(-places))
}

// Round is RoundHalfUp at MoneyScale, the rounding rule for every derived amount.
func (m Money) Round() Money {
	return m.RoundHalfUp(MoneyScale)
}

// Floor drops sub-cent digits towards negative infinity.
func (m Money) Floor() Money {
	return m.with(m.amount.Shift(MoneyScale).Floor().Shift(-MoneyScale))
}

func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// Cmp returns -1, 0 or +1; amounts in different currencies are not ordered.
func (m Money) Cmp(other Money) (int, error) {
	if m.currency != other.currency {
		return 0, fmt.Errorf("cannot compare %s and %s: %w", m.currency, other.currency, ErrCurrencyMismatch)
	}
	return m.amount.Cmp(other.amount), nil
}

func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c < 0, err
}

func (m Money) LessThanOrEqual(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c <= 0, err
}

func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c > 0, err
}

// Sum totals amounts that must all be in currency.
func Sum(currency Currency, amounts ...Money) (Money, error) {
	total := Zero(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// String renders "12.50 USD".
func (m Money) String() string {
	return m.StringFixed() + " " + string(m.currency)
}

// StringFixed renders the amount with exactly MoneyScale places.
func (m Money) StringFixed() string {
	return m.amount.StringFixed(MoneyScale)
}

// StringExact renders at least MoneyScale places and keeps any finer digits,
// so 0.001 stays "0.001" where StringFixed would print "0.00".
func (m Money) StringExact() string {
	return m.amount.StringFixed(max(MoneyScale, -m.amount.Exponent()))
}
