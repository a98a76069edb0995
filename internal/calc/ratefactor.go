package calc

import (
	"time"

	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/segyhp/progressive-loan-engine/pkg/money"
	"github.com/segyhp/progressive-loan-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SupportedDayCount reports whether c is a convention the calculator knows.
func SupportedDayCount(c domain.DayCountConvention) bool {
	switch c {
	case domain.DayCountActual365, domain.DayCountActual360, domain.DayCountActual364,
		domain.DayCountActualActual, domain.DayCountThirty360:
		return true
	}
	return false
}

// RateFactor returns annualRatePercent/100 * days/yearDays for [from, to) under
// the given convention. An empty or inverted range yields zero.
func RateFactor(from, to time.Time, annualRatePercent decimal.Decimal, convention domain.DayCountConvention, mc money.MathContext) decimal.Decimal {
	if !to.After(from) || annualRatePercent.IsZero() {
		return decimal.Zero
	}

	switch convention {
	case domain.DayCountActualActual:
		// each calendar year contributes its own days over its own length
		factor := decimal.Zero
		for start := from; start.Before(to); {
			yearEnd := time.Date(start.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
			end := utils.MinDate(yearEnd, to)
			factor = mc.Add(factor, fraction(annualRatePercent, utils.DaysBetween(start, end), yearDays(start.Year()), mc))
			start = end
		}
		return factor
	case domain.DayCountThirty360:
		return fraction(annualRatePercent, days360US(from, to), 360, mc)
	case domain.DayCountActual360:
		return fraction(annualRatePercent, utils.DaysBetween(from, to), 360, mc)
	case domain.DayCountActual364:
		return fraction(annualRatePercent, utils.DaysBetween(from, to), 364, mc)
	default:
		return fraction(annualRatePercent, utils.DaysBetween(from, to), 365, mc)
	}
}

func fraction(annualRatePercent decimal.Decimal, days, year int, mc money.MathContext) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	numerator := annualRatePercent.Mul(decimal.NewFromInt(int64(days)))
	return mc.Quo(numerator, hundred.Mul(decimal.NewFromInt(int64(year))))
}

func yearDays(year int) int {
	if utils.IsLeapYear(year) {
		return 366
	}
	return 365
}

// days360US counts days under 30/360 US (bond basis), including the
// end-of-February adjustments.
func days360US(start, end time.Time) int {
	y1, m1, d1 := start.Date()
	y2, m2, d2 := end.Date()

	startFebEnd := isLastOfFebruary(start)
	if startFebEnd && isLastOfFebruary(end) {
		d2 = 30
	}
	if startFebEnd {
		d1 = 30
	}
	if d2 == 31 && d1 >= 30 {
		d2 = 30
	}
	if d1 == 31 {
		d1 = 30
	}
	return (y2-y1)*360 + int(m2-m1)*30 + (d2 - d1)
}

func isLastOfFebruary(t time.Time) bool {
	return t.Month() == time.February && t.AddDate(0, 0, 1).Month() == time.March
}
