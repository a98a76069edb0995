package calc

import (
	"time"

	"github.com/segyhp/progressive-loan-engine/pkg/money"
	"github.com/segyhp/progressive-loan-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

// InterestPeriod is a sub-range of a repayment period over which the rate
// factor basis and the period-local balance events are constant.
type InterestPeriod struct {
	parent int
	from   time.Time
	due    time.Time
	paused bool

	rateFactor              decimal.Decimal
	rateFactorTillParentDue decimal.Decimal

	outstandingLoanBalance     money.Money
	disbursementAmount         money.Money
	creditedPrincipal          money.Money
	creditedInterest           money.Money
	balanceCorrectionAmount    money.Money
	capitalizedIncomePrincipal money.Money

	mc money.MathContext
}

func newInterestPeriod(parent int, from, due time.Time, zero money.Money, paused bool) InterestPeriod {
	return InterestPeriod{
		parent:                     parent,
		from:                       from,
		due:                        due,
		paused:                     paused,
		rateFactor:                 decimal.Zero,
		rateFactorTillParentDue:    decimal.Zero,
		outstandingLoanBalance:     zero,
		disbursementAmount:         zero,
		creditedPrincipal:          zero,
		creditedInterest:           zero,
		balanceCorrectionAmount:    zero,
		capitalizedIncomePrincipal: zero,
		mc:                         zero.MathContext(),
	}
}

func (ip *InterestPeriod) Parent() int                 { return ip.parent }
func (ip *InterestPeriod) From() time.Time             { return ip.from }
func (ip *InterestPeriod) Due() time.Time              { return ip.due }
func (ip *InterestPeriod) Paused() bool                { return ip.paused }
func (ip *InterestPeriod) Length() int                 { return utils.DaysBetween(ip.from, ip.due) }
func (ip *InterestPeriod) RateFactor() decimal.Decimal { return ip.rateFactor }

func (ip *InterestPeriod) RateFactorTillParentDue() decimal.Decimal {
	return ip.rateFactorTillParentDue
}

func (ip *InterestPeriod) OutstandingLoanBalance() money.Money     { return ip.outstandingLoanBalance }
func (ip *InterestPeriod) DisbursementAmount() money.Money         { return ip.disbursementAmount }
func (ip *InterestPeriod) CreditedPrincipal() money.Money          { return ip.creditedPrincipal }
func (ip *InterestPeriod) CreditedInterest() money.Money           { return ip.creditedInterest }
func (ip *InterestPeriod) BalanceCorrectionAmount() money.Money    { return ip.balanceCorrectionAmount }
func (ip *InterestPeriod) CapitalizedIncomePrincipal() money.Money { return ip.capitalizedIncomePrincipal }

func (ip *InterestPeriod) AddDisbursementAmount(m money.Money) {
	ip.disbursementAmount = ip.disbursementAmount.Plus(m)
}

func (ip *InterestPeriod) AddCreditedPrincipalAmount(m money.Money) {
	ip.creditedPrincipal = ip.creditedPrincipal.Plus(m)
}

func (ip *InterestPeriod) AddCreditedInterestAmount(m money.Money) {
	ip.creditedInterest = ip.creditedInterest.Plus(m)
}

func (ip *InterestPeriod) AddCapitalizedIncomePrincipalAmount(m money.Money) {
	ip.capitalizedIncomePrincipal = ip.capitalizedIncomePrincipal.Plus(m)
}

func (ip *InterestPeriod) AddBalanceCorrectionAmount(m money.Money) {
	ip.balanceCorrectionAmount = ip.balanceCorrectionAmount.Plus(m)
}

// ClosingBalance is the balance carried out of this interest period before
// any principal collected at the repayment period boundary.
func (ip *InterestPeriod) ClosingBalance() money.Money {
	return ip.outstandingLoanBalance.
		Plus(ip.balanceCorrectionAmount).
		Plus(ip.capitalizedIncomePrincipal).
		Plus(ip.disbursementAmount)
}

// CreditedAmounts are the principal-like amounts added in this period.
func (ip *InterestPeriod) CreditedAmounts() money.Money {
	return ip.disbursementAmount.Plus(ip.creditedPrincipal).Plus(ip.capitalizedIncomePrincipal)
}

// CalculatedDueInterest returns the unrounded interest accrued over this
// period. A paused period yields its credited interest only.
func (ip *InterestPeriod) CalculatedDueInterest(parentDue time.Time) decimal.Decimal {
	if ip.paused {
		return ip.creditedInterest.Amount()
	}
	accrued := decimal.Zero
	if lengthTillDue := utils.DaysBetween(ip.from, parentDue); lengthTillDue > 0 {
		perDay := ip.mc.Quo(
			ip.mc.Mul(ip.outstandingLoanBalance.Amount(), ip.rateFactorTillParentDue),
			decimal.NewFromInt(int64(lengthTillDue)),
		)
		accrued = ip.mc.Mul(perDay, decimal.NewFromInt(int64(ip.Length())))
	}
	return money.NegativeToZeroDecimal(ip.mc.Add(ip.creditedInterest.Amount(), accrued))
}

// Compare orders interest periods by due date.
func (ip *InterestPeriod) Compare(other *InterestPeriod) int {
	return ip.due.Compare(other.due)
}

// ByDueDate sorts interest periods by ascending due date.
type ByDueDate []InterestPeriod

func (s ByDueDate) Len() int           { return len(s) }
func (s ByDueDate) Less(i, j int) bool { return s[i].due.Before(s[j].due) }
func (s ByDueDate) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
