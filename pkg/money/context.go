package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundingMode selects how a decimal is rounded when digits are dropped.
type RoundingMode string

const (
	HalfEven RoundingMode = "HALF_EVEN"
	HalfUp   RoundingMode = "HALF_UP"
	Up       RoundingMode = "UP"
	Down     RoundingMode = "DOWN"
	Ceiling  RoundingMode = "CEILING"
	Floor    RoundingMode = "FLOOR"
)

// ParseRoundingMode converts a configuration value into a RoundingMode.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch mode := RoundingMode(strings.ToUpper(strings.TrimSpace(s))); mode {
	case HalfEven, HalfUp, Up, Down, Ceiling, Floor:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown rounding mode %q", s)
	}
}

// RoundTo rounds d to the given number of decimal places.
func (m RoundingMode) RoundTo(d decimal.Decimal, places int32) decimal.Decimal {
	switch m {
	case HalfUp:
		return d.Round(places)
	case Up:
		return d.RoundUp(places)
	case Down:
		return d.RoundDown(places)
	case Ceiling:
		return d.RoundCeil(places)
	case Floor:
		return d.RoundFloor(places)
	default:
		return d.RoundBank(places)
	}
}

// MathContext bounds the number of significant digits kept by an operation.
// A zero Precision means unlimited.
type MathContext struct {
	Precision int32
	Mode      RoundingMode
}

// DefaultMathContext is used when a caller does not configure one.
var DefaultMathContext = MathContext{Precision: 12, Mode: HalfEven}

// guardDigits are the extra places requested from a division before the
// significant-digit rounding is applied.
const guardDigits = 10

// Round rounds d to mc.Precision significant digits.
func (mc MathContext) Round(d decimal.Decimal) decimal.Decimal {
	if mc.Precision <= 0 || d.IsZero() {
		return d
	}
	mostSignificant := d.Exponent() + int32(d.NumDigits()) - 1
	places := mc.Precision - 1 - mostSignificant
	if -d.Exponent() <= places {
		return d
	}
	return mc.Mode.RoundTo(d, places)
}

func (mc MathContext) Add(a, b decimal.Decimal) decimal.Decimal {
	return mc.Round(a.Add(b))
}

func (mc MathContext) Sub(a, b decimal.Decimal) decimal.Decimal {
	return mc.Round(a.Sub(b))
}

func (mc MathContext) Mul(a, b decimal.Decimal) decimal.Decimal {
	return mc.Round(a.Mul(b))
}

// Quo divides a by b. Division by zero yields zero; callers that must treat it
// as an error check the divisor first.
func (mc MathContext) Quo(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	places := mc.Precision + guardDigits
	if mc.Precision <= 0 {
		places = int32(decimal.DivisionPrecision)
	}
	// keep enough places for quotients far below one
	if lead := b.Exponent() + int32(b.NumDigits()) - (a.Exponent() + int32(a.NumDigits())); lead > 0 {
		places += lead
	}
	return mc.Round(a.DivRound(b, places))
}
