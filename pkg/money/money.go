package money

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Currency is an ISO 4217 code together with the number of decimal places
// amounts in that currency are kept at.
type Currency struct {
	code          string
	decimalPlaces int32
}

// NewCurrency validates the code and the decimal places.
func NewCurrency(code string, decimalPlaces int32) (Currency, error) {
	if !currencyCodeRe.MatchString(code) {
		return Currency{}, fmt.Errorf("invalid currency code %q: must be exactly 3 uppercase letters", code)
	}
	if decimalPlaces < 0 || decimalPlaces > 8 {
		return Currency{}, fmt.Errorf("invalid decimal places %d for currency %s", decimalPlaces, code)
	}
	return Currency{code: code, decimalPlaces: decimalPlaces}, nil
}

// MustCurrency creates a Currency and panics on error. Intended for package-level variable
// initialization only.
func MustCurrency(code string, decimalPlaces int32) Currency {
	c, err := NewCurrency(code, decimalPlaces)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Currency) Code() string {
	return c.code
}

func (c Currency) DecimalPlaces() int32 {
	return c.decimalPlaces
}

func (c Currency) String() string {
	return c.code
}

// Common currencies.
var (
	USD = MustCurrency("USD", 2)
	EUR = MustCurrency("EUR", 2)
	IDR = MustCurrency("IDR", 2)
)

// MismatchError reports arithmetic between two currencies. It is raised as a
// panic because it can only come from a programming error.
type MismatchError struct {
	Op          string
	Left, Right Currency
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: cannot %s %s and %s", e.Op, e.Left, e.Right)
}

// Money is an immutable amount in a currency, rounded to the currency's
// decimal places with the rounding mode of its MathContext.
type Money struct {
	amount   decimal.Decimal
	currency Currency
	mc       MathContext
}

// Of creates a Money value, rounding amount to the currency scale.
func Of(currency Currency, amount decimal.Decimal, mc MathContext) Money {
	return Money{
		amount:   mc.Mode.RoundTo(amount, currency.decimalPlaces),
		currency: currency,
		mc:       mc,
	}
}

// Zero returns a zero amount in the given currency.
func Zero(currency Currency, mc MathContext) Money {
	return Money{amount: decimal.Zero, currency: currency, mc: mc}
}

func (m Money) Amount() decimal.Decimal {
	return m.amount
}

func (m Money) Currency() Currency {
	return m.currency
}

func (m Money) MathContext() MathContext {
	return m.mc
}

// Zero returns a zero amount in the same currency and context as m.
func (m Money) Zero() Money {
	return Zero(m.currency, m.mc)
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// unset reports a zero-value Money that was never given a currency.
func (m Money) unset() bool {
	return m.currency.code == "" && m.amount.IsZero()
}

func (m Money) compatible(op string, other Money) Money {
	switch {
	case other.unset():
		return m
	case m.unset():
		return Money{amount: decimal.Zero, currency: other.currency, mc: other.mc}
	case m.currency != other.currency:
		panic(&MismatchError{Op: op, Left: m.currency, Right: other.currency})
	}
	return m
}

// Plus adds other to m under m's MathContext.
func (m Money) Plus(other Money) Money {
	base := m.compatible("add", other)
	return Of(base.currency, base.mc.Add(base.amount, other.amount), base.mc)
}

// Minus subtracts other from m under m's MathContext.
func (m Money) Minus(other Money) Money {
	base := m.compatible("subtract", other)
	return Of(base.currency, base.mc.Sub(base.amount, other.amount), base.mc)
}

// PlusAmount adds a raw decimal in m's currency.
func (m Money) PlusAmount(amount decimal.Decimal) Money {
	return Of(m.currency, m.mc.Add(m.amount, amount), m.mc)
}

// MinusAmount subtracts a raw decimal in m's currency.
func (m Money) MinusAmount(amount decimal.Decimal) Money {
	return Of(m.currency, m.mc.Sub(m.amount, amount), m.mc)
}

// Multiply returns m multiplied by factor.
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Of(m.currency, m.mc.Mul(m.amount, factor), m.mc)
}

func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency, mc: m.mc}
}

// GreaterThan compares amounts; currencies must match.
func (m Money) GreaterThan(other Money) bool {
	base := m.compatible("compare", other)
	return base.amount.GreaterThan(other.amount)
}

// LessThan compares amounts; currencies must match.
func (m Money) LessThan(other Money) bool {
	base := m.compatible("compare", other)
	return base.amount.LessThan(other.amount)
}

// Equal returns true if both the amount and currency are equal.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String formats the value as "<amount> <currency>", e.g. "986.30 USD".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(m.currency.decimalPlaces), m.currency.code)
}

// NegativeToZero clamps negative amounts to zero.
func NegativeToZero(m Money) Money {
	if m.IsNegative() {
		return m.Zero()
	}
	return m
}

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if b.LessThan(a) {
		return b
	}
	return a
}

// Max returns the larger of a and b.
func Max(a, b Money) Money {
	if b.GreaterThan(a) {
		return b
	}
	return a
}

// NegativeToZeroDecimal clamps a raw decimal at zero.
func NegativeToZeroDecimal(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
