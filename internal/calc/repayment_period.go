package calc

import (
	"time"

	"github.com/segyhp/progressive-loan-engine/pkg/money"
	"github.com/shopspring/decimal"
)

// RepaymentPeriod is one billing cycle. It owns its interest periods, which
// always cover [From, Due) without gaps and are ordered by due date.
type RepaymentPeriod struct {
	index int
	from  time.Time
	due   time.Time

	emi           money.Money
	duePrincipal  money.Money
	paidPrincipal money.Money
	paidInterest  money.Money
	// prepaidPrincipal is principal paid ahead of the installment. It is owed
	// by this period on top of its scheduled principal.
	prepaidPrincipal money.Money
	// principalPortion is the scheduled principal of equal principal loans.
	principalPortion money.Money

	// interestOnly periods collect no scheduled principal (grace on principal).
	interestOnly bool
	// fixedEmi periods keep an installment set by an EMI_AMOUNT variation.
	fixedEmi bool

	interestPeriods []InterestPeriod
	zero            money.Money
}

func newRepaymentPeriod(index int, from, due time.Time, zero money.Money) RepaymentPeriod {
	return RepaymentPeriod{
		index:            index,
		from:             from,
		due:              due,
		emi:              zero,
		duePrincipal:     zero,
		paidPrincipal:    zero,
		paidInterest:     zero,
		prepaidPrincipal: zero,
		principalPortion: zero,
		interestPeriods:  []InterestPeriod{newInterestPeriod(index, from, due, zero, false)},
		zero:             zero,
	}
}

func (p *RepaymentPeriod) Index() int                           { return p.index }
func (p *RepaymentPeriod) From() time.Time                      { return p.from }
func (p *RepaymentPeriod) Due() time.Time                       { return p.due }
func (p *RepaymentPeriod) Emi() money.Money                     { return p.emi }
func (p *RepaymentPeriod) DuePrincipal() money.Money            { return p.duePrincipal }
func (p *RepaymentPeriod) PaidPrincipal() money.Money           { return p.paidPrincipal }
func (p *RepaymentPeriod) PaidInterest() money.Money            { return p.paidInterest }
func (p *RepaymentPeriod) PrepaidPrincipal() money.Money        { return p.prepaidPrincipal }
func (p *RepaymentPeriod) InterestOnly() bool                   { return p.interestOnly }
func (p *RepaymentPeriod) InterestPeriodCount() int             { return len(p.interestPeriods) }
func (p *RepaymentPeriod) InterestPeriod(j int) *InterestPeriod { return &p.interestPeriods[j] }

// InterestPeriods returns a copy of the interest periods.
func (p *RepaymentPeriod) InterestPeriods() []InterestPeriod {
	out := make([]InterestPeriod, len(p.interestPeriods))
	copy(out, p.interestPeriods)
	return out
}

func (p *RepaymentPeriod) FirstInterestPeriod() *InterestPeriod {
	return &p.interestPeriods[0]
}

func (p *RepaymentPeriod) LastInterestPeriod() *InterestPeriod {
	return &p.interestPeriods[len(p.interestPeriods)-1]
}

// DueInterest sums the interest of the interest periods, rounded to the currency.
func (p *RepaymentPeriod) DueInterest() money.Money {
	mc := p.zero.MathContext()
	total := decimal.Zero
	for j := range p.interestPeriods {
		total = mc.Add(total, p.interestPeriods[j].CalculatedDueInterest(p.due))
	}
	return money.Of(p.zero.Currency(), total, mc)
}

func (p *RepaymentPeriod) CreditedPrincipal() money.Money {
	total := p.zero
	for j := range p.interestPeriods {
		total = total.Plus(p.interestPeriods[j].creditedPrincipal)
	}
	return total
}

func (p *RepaymentPeriod) CreditedInterest() money.Money {
	total := p.zero
	for j := range p.interestPeriods {
		total = total.Plus(p.interestPeriods[j].creditedInterest)
	}
	return total
}

// OutstandingPrincipal is the due principal not yet paid.
func (p *RepaymentPeriod) OutstandingPrincipal() money.Money {
	return money.NegativeToZero(p.duePrincipal.Minus(p.paidPrincipal))
}

// OutstandingInterest is the due interest not yet paid.
func (p *RepaymentPeriod) OutstandingInterest() money.Money {
	return money.NegativeToZero(p.DueInterest().Minus(p.paidInterest))
}

// IsFullyPaid reports whether both due principal and due interest are settled.
func (p *RepaymentPeriod) IsFullyPaid() bool {
	return p.OutstandingPrincipal().IsZero() && p.OutstandingInterest().IsZero()
}

// owedPrincipal is the most principal this period can collect.
func (p *RepaymentPeriod) owedPrincipal() money.Money {
	return money.NegativeToZero(p.LastInterestPeriod().ClosingBalance().Plus(p.paidPrincipal))
}

// ClosingBalance is the loan balance carried into the next period.
func (p *RepaymentPeriod) ClosingBalance() money.Money {
	return money.NegativeToZero(p.LastInterestPeriod().ClosingBalance().Minus(p.duePrincipal).Plus(p.paidPrincipal))
}

// rateFactor is the period's compounding rate; paused interest periods do not contribute.
func (p *RepaymentPeriod) rateFactor() decimal.Decimal {
	mc := p.zero.MathContext()
	total := decimal.Zero
	for j := range p.interestPeriods {
		if !p.interestPeriods[j].paused {
			total = mc.Add(total, p.interestPeriods[j].rateFactor)
		}
	}
	return total
}

func (p *RepaymentPeriod) clone() RepaymentPeriod {
	c := *p
	c.interestPeriods = make([]InterestPeriod, len(p.interestPeriods))
	copy(c.interestPeriods, p.interestPeriods)
	return c
}
