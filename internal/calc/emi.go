package calc

import (
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/segyhp/progressive-loan-engine/pkg/money"
	"github.com/shopspring/decimal"
)

// amortizedPrincipal is the principal to amortize from period k: its opening
// balance plus the principal added within it. Amounts on the last interest
// period fall on the due date and belong to the next period.
func (s *Schedule) amortizedPrincipal(k int) money.Money {
	s.UpdateOutstandingLoanBalance(k)
	rp := &s.periods[k]
	principal := rp.FirstInterestPeriod().outstandingLoanBalance
	for j := 0; j < len(rp.interestPeriods)-1; j++ {
		ip := &rp.interestPeriods[j]
		principal = principal.Plus(ip.disbursementAmount).Plus(ip.capitalizedIncomePrincipal)
	}
	return principal
}

// recalculateEmi re-amortizes the balance of period k over periods k..n-1.
// Balances of the periods before k must be final. Interest-only periods keep
// the balance unchanged and are left out of the annuity; fixed installments
// are not overwritten.
func (s *Schedule) recalculateEmi(k int) {
	if k < s.frozen || k >= len(s.periods) {
		return
	}
	principal := s.amortizedPrincipal(k)

	var amortizing []int
	for i := k; i < len(s.periods); i++ {
		if !s.periods[i].interestOnly {
			amortizing = append(amortizing, i)
		}
	}
	if len(amortizing) == 0 {
		return
	}

	if s.plan.terms.EmiMethod == domain.EmiEqualPrincipal {
		portion := s.plan.money(s.plan.mc.Quo(principal.Amount(), decimal.NewFromInt(int64(len(amortizing)))))
		for _, i := range amortizing {
			s.periods[i].principalPortion = portion
		}
		return
	}

	rates := make([]decimal.Decimal, len(amortizing))
	for n, i := range amortizing {
		rates[n] = s.periods[i].rateFactor()
	}
	emi := s.plan.money(annuity(principal.Amount(), rates, s.plan.mc))
	for _, i := range amortizing {
		if !s.periods[i].fixedEmi {
			s.periods[i].emi = emi
		}
	}
}

// annuity returns the equal installment repaying principal over periods with
// the given rate factors:
//
//	E = P * prod(1+r_i) / sum_k prod_{j>k}(1+r_j)
func annuity(principal decimal.Decimal, rates []decimal.Decimal, mc money.MathContext) decimal.Decimal {
	one := decimal.NewFromInt(1)
	growth := one
	denominator := decimal.Zero
	for k := len(rates) - 1; k >= 0; k-- {
		denominator = mc.Add(denominator, growth)
		growth = mc.Mul(growth, one.Add(rates[k]))
	}
	if denominator.IsZero() {
		return principal
	}
	return mc.Quo(mc.Mul(principal, growth), denominator)
}
