package calc

import (
	"sort"
	"time"

	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/segyhp/progressive-loan-engine/pkg/utils"
)

// dueDateGenerator produces installment due dates at a fixed frequency.
// Every date is computed from an anchor rather than from its predecessor so
// that month-end clamping does not drift (Jan 31, Feb 29, Mar 31).
type dueDateGenerator struct {
	unit  domain.FrequencyType
	every int
}

func (g dueDateGenerator) after(anchor time.Time, steps int) time.Time {
	return utils.AddFrequency(anchor, string(g.unit), g.every*steps)
}

// droppedVariation is a due-date variation that could not be placed.
type droppedVariation struct {
	variation domain.TermVariation
	reason    string
}

// dueDates returns n due dates for a loan starting at start. A due-date
// variation {ApplicableFrom: A, DateValue: Y} moves the first installment due
// after A to Y; later installments follow from Y. When several variations
// target the same installment the one with the latest ApplicableFrom wins.
func (g dueDateGenerator) dueDates(start time.Time, first *time.Time, n int, variations []domain.TermVariation) ([]time.Time, []droppedVariation) {
	anchor := g.after(start, 1)
	if first != nil {
		anchor = utils.DateOnly(*first)
	}
	anchorIdx := 0

	pending := make([]domain.TermVariation, len(variations))
	copy(pending, variations)
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].ApplicableFrom.Before(pending[j].ApplicableFrom)
	})

	var dropped []droppedVariation
	dates := make([]time.Time, 0, n)
	prev := start
	for k := 0; k < n; k++ {
		d := g.after(anchor, k-anchorIdx)

		var chosen *domain.TermVariation
		for len(pending) > 0 && pending[0].ApplicableFrom.Before(d) {
			if chosen != nil {
				dropped = append(dropped, droppedVariation{*chosen, "superseded by a later due date variation"})
			}
			v := pending[0]
			chosen = &v
			pending = pending[1:]
		}

		if chosen != nil {
			switch {
			case chosen.DateValue == nil:
				dropped = append(dropped, droppedVariation{*chosen, "missing date value"})
			case !utils.DateOnly(*chosen.DateValue).After(prev):
				dropped = append(dropped, droppedVariation{*chosen, "new due date is not after the previous due date"})
			default:
				d = utils.DateOnly(*chosen.DateValue)
				anchor = d
				anchorIdx = k
			}
		}

		dates = append(dates, d)
		prev = d
	}

	for _, v := range pending {
		dropped = append(dropped, droppedVariation{v, "applicable after the last installment"})
	}
	return dates, dropped
}

// dueDatesForTerms generates the due dates of terms, including its due-date
// variations and extensions.
func dueDatesForTerms(terms domain.LoanTerms) ([]time.Time, []droppedVariation) {
	n := terms.NumberOfInstallments
	var variations []domain.TermVariation
	for _, v := range terms.TermVariations {
		switch v.Type {
		case domain.VariationDueDate:
			v.ApplicableFrom = utils.DateOnly(v.ApplicableFrom)
			variations = append(variations, v)
		case domain.VariationExtendRepaymentPeriod:
			n += v.Count
		}
	}
	gen := dueDateGenerator{unit: terms.RepaymentFrequency, every: terms.RepaymentEvery}
	return gen.dueDates(utils.DateOnly(terms.ExpectedDisbursementDate), terms.FirstRepaymentDate, n, variations)
}

// dateRange is the half-open range [start, end).
type dateRange struct {
	start time.Time
	end   time.Time
}

func (r dateRange) contains(t time.Time) bool {
	return !t.Before(r.start) && t.Before(r.end)
}

// covers reports whether [from, to) lies inside r.
func (r dateRange) covers(from, to time.Time) bool {
	return !from.Before(r.start) && !to.After(r.end)
}
