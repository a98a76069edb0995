package calc

import (
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	apperrors "github.com/segyhp/progressive-loan-engine/pkg/errors"
	"github.com/segyhp/progressive-loan-engine/pkg/money"
	"github.com/segyhp/progressive-loan-engine/pkg/utils"
)

// State is the lifecycle state of a schedule.
type State string

const (
	StateInitial              State = "INITIAL"
	StateGenerated            State = "GENERATED"
	StatePartiallyRescheduled State = "PARTIALLY_RESCHEDULED"
)

const (
	overpaymentPeriod  = -1
	maxPrincipalRounds = 16
)

// Allocation records the part of a transaction settled against one period.
// Period is -1 for the part recorded as overpayment.
type Allocation struct {
	TransactionID uuid.UUID
	Period        int
	Principal     money.Money
	Interest      money.Money
}

// Schedule is the arena of repayment periods of one loan. It exclusively owns
// its periods; relations between periods are indices into the arena.
type Schedule struct {
	plan    *plan
	state   State
	periods []RepaymentPeriod
	// frozen leading periods are never modified again
	frozen      int
	overpaid    money.Money
	allocations []Allocation
}

func newSchedule(p *plan) *Schedule {
	return &Schedule{
		plan:     p,
		state:    StateInitial,
		overpaid: p.zero,
	}
}

func (s *Schedule) LoanID() string           { return s.plan.loanID }
func (s *Schedule) State() State             { return s.state }
func (s *Schedule) Len() int                 { return len(s.periods) }
func (s *Schedule) Frozen() int              { return s.frozen }
func (s *Schedule) Overpaid() money.Money    { return s.overpaid }
func (s *Schedule) Currency() money.Currency { return s.plan.currency }

// Terms returns the terms the schedule was built from, including the term
// variations resolved by a reschedule.
func (s *Schedule) Terms() domain.LoanTerms {
	terms := s.plan.terms
	terms.TermVariations = append([]domain.TermVariation(nil), s.plan.terms.TermVariations...)
	return terms
}

// Period returns the repayment period at index i.
func (s *Schedule) Period(i int) *RepaymentPeriod {
	return &s.periods[i]
}

// Periods returns a deep copy of the repayment periods.
func (s *Schedule) Periods() []RepaymentPeriod {
	out := make([]RepaymentPeriod, len(s.periods))
	for i := range s.periods {
		out[i] = s.periods[i].clone()
	}
	return out
}

// Allocations returns the recorded transaction allocations.
func (s *Schedule) Allocations() []Allocation {
	out := make([]Allocation, len(s.allocations))
	copy(out, s.allocations)
	return out
}

func (s *Schedule) Previous(i int) (int, bool) {
	if i <= 0 || i >= len(s.periods) {
		return 0, false
	}
	return i - 1, true
}

func (s *Schedule) Next(i int) (int, bool) {
	if i < 0 || i+1 >= len(s.periods) {
		return 0, false
	}
	return i + 1, true
}

// MaturityDate is the due date of the last installment.
func (s *Schedule) MaturityDate() time.Time {
	return s.periods[len(s.periods)-1].due
}

// OutstandingPrincipal is the principal not yet repaid across the schedule.
func (s *Schedule) OutstandingPrincipal() money.Money {
	return s.principalOwedFrom(0)
}

// principalOwedFrom is the principal not yet repaid by periods i..n-1.
func (s *Schedule) principalOwedFrom(i int) money.Money {
	total := s.plan.zero
	for ; i < len(s.periods); i++ {
		total = total.Plus(s.periods[i].duePrincipal).Minus(s.periods[i].paidPrincipal)
	}
	return money.NegativeToZero(total)
}

func (s *Schedule) appendPeriods(from time.Time, dueDates []time.Time) {
	for _, due := range dueDates {
		s.periods = append(s.periods, newRepaymentPeriod(len(s.periods), from, due, s.plan.zero))
		from = due
	}
}

// applyVariations splits and flags the periods from index `from` according
// to the rate changes, pauses and fixed installments of the plan.
func (s *Schedule) applyVariations(from int) {
	p := s.plan
	for _, c := range p.rates {
		s.splitInside(c.from, from)
	}
	for _, r := range p.interestPauses {
		s.splitInside(r.start, from)
		s.splitInside(r.end, from)
	}

	for i := from; i < len(s.periods); i++ {
		rp := &s.periods[i]
		for j := range rp.interestPeriods {
			ip := &rp.interestPeriods[j]
			for _, r := range p.interestPauses {
				if r.covers(ip.from, ip.due) {
					ip.paused = true
				}
			}
		}
		for _, r := range p.principalPauses {
			if r.contains(rp.due) {
				rp.interestOnly = true
			}
		}
		for _, f := range p.fixedEmis {
			if rp.due.After(f.after) {
				rp.fixedEmi = true
				rp.emi = f.amount
			}
		}
		s.refreshRateFactors(i)
	}
}

// splitInside splits the interest period strictly containing date, if any,
// ignoring periods before index from.
func (s *Schedule) splitInside(date time.Time, from int) {
	if from >= len(s.periods) || !date.After(s.periods[from].from) || !date.Before(s.MaturityDate()) {
		return
	}
	_, _, _ = s.interestPeriodEndingAt(date)
}

func (s *Schedule) refreshRateFactors(i int) {
	rp := &s.periods[i]
	for j := range rp.interestPeriods {
		ip := &rp.interestPeriods[j]
		rate := s.plan.rateAt(ip.from)
		ip.rateFactor = RateFactor(ip.from, ip.due, rate, s.plan.terms.DayCount, s.plan.mc)
		ip.rateFactorTillParentDue = RateFactor(ip.from, rp.due, rate, s.plan.terms.DayCount, s.plan.mc)
	}
}

// interestPeriodEndingAt returns the interest period whose due date is date,
// splitting the interest period that strictly contains it. Events at a date
// belong to the interest period ending on that date.
func (s *Schedule) interestPeriodEndingAt(date time.Time) (int, int, bool) {
	for i := range s.periods {
		rp := &s.periods[i]
		if date.After(rp.due) {
			continue
		}
		if !date.After(rp.from) {
			if i == 0 {
				return 0, 0, false
			}
			prev := &s.periods[i-1]
			return i - 1, len(prev.interestPeriods) - 1, true
		}
		for j := range rp.interestPeriods {
			ip := &rp.interestPeriods[j]
			if ip.due.Equal(date) {
				return i, j, true
			}
			if date.Before(ip.due) {
				s.split(i, j, date)
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// split cuts interest period j of repayment period i at date. Event amounts
// stay with the right part because they happen at its due date.
func (s *Schedule) split(i, j int, date time.Time) {
	rp := &s.periods[i]
	original := rp.interestPeriods[j]

	left := newInterestPeriod(i, original.from, date, s.plan.zero, original.paused)
	left.outstandingLoanBalance = original.outstandingLoanBalance
	right := original
	right.from = date

	ips := make([]InterestPeriod, 0, len(rp.interestPeriods)+1)
	ips = append(ips, rp.interestPeriods[:j]...)
	ips = append(ips, left, right)
	ips = append(ips, rp.interestPeriods[j+1:]...)
	rp.interestPeriods = ips
	s.refreshRateFactors(i)
}

// UpdateOutstandingLoanBalance chains the opening balance of every interest
// period of repayment period i. The first interest period continues from the
// previous repayment period net of its due and paid principal; the others
// continue from their predecessor within the period. The very first interest
// period of the loan keeps its opening balance.
func (s *Schedule) UpdateOutstandingLoanBalance(i int) {
	rp := &s.periods[i]
	for j := range rp.interestPeriods {
		ip := &rp.interestPeriods[j]
		if j == 0 {
			prevIdx, ok := s.Previous(i)
			if !ok {
				continue
			}
			prev := &s.periods[prevIdx]
			last := prev.LastInterestPeriod()
			ip.outstandingLoanBalance = money.NegativeToZero(last.outstandingLoanBalance.
				Plus(last.disbursementAmount).
				Plus(last.capitalizedIncomePrincipal).
				Plus(last.balanceCorrectionAmount).
				Minus(prev.duePrincipal).
				Plus(prev.paidPrincipal))
			continue
		}
		ip.outstandingLoanBalance = money.NegativeToZero(rp.interestPeriods[j-1].ClosingBalance())
	}
}

// propagate recomputes balances and due principal forward from period i in a
// single ordered pass.
func (s *Schedule) propagate(i int) {
	if i < s.frozen {
		i = s.frozen
	}
	for ; i < len(s.periods); i++ {
		s.UpdateOutstandingLoanBalance(i)
		s.updateDuePrincipal(i)
	}
}

func (s *Schedule) updateDuePrincipal(i int) {
	rp := &s.periods[i]
	dueInterest := rp.DueInterest()
	owed := rp.owedPrincipal()

	if i == len(s.periods)-1 {
		rp.duePrincipal = owed
		rp.emi = owed.Plus(dueInterest)
		return
	}

	credited := rp.CreditedPrincipal()
	// due is the scheduled principal; prepaid principal comes on top
	var due money.Money
	switch {
	case rp.interestOnly:
		due = credited
	case rp.fixedEmi || s.plan.terms.EmiMethod != domain.EmiEqualPrincipal:
		due = rp.emi.Plus(credited).Plus(rp.CreditedInterest()).Minus(dueInterest)
	default:
		due = rp.principalPortion.Plus(credited)
	}
	rp.duePrincipal = money.Min(money.NegativeToZero(due).Plus(rp.prepaidPrincipal), owed)

	if rp.interestOnly || (!rp.fixedEmi && s.plan.terms.EmiMethod == domain.EmiEqualPrincipal) {
		rp.emi = money.NegativeToZero(rp.duePrincipal.Minus(rp.prepaidPrincipal)).Plus(dueInterest)
	}
}

// firstPeriodDueAfter returns the index of the first period due after date.
func (s *Schedule) firstPeriodDueAfter(date time.Time) (int, bool) {
	for i := range s.periods {
		if s.periods[i].due.After(date) {
			return i, true
		}
	}
	return 0, false
}

func (s *Schedule) apply(tx domain.Transaction) error {
	amount := s.plan.money(tx.Amount)
	if amount.IsNegative() {
		return apperrors.WrapInvalidTransaction("%s on %s has a negative amount", tx.Type, utils.FormatDate(tx.Date))
	}

	switch tx.Type {
	case domain.TransactionDisbursement, domain.TransactionCapitalizedIncome:
		return s.addPrincipal(tx, amount)
	case domain.TransactionRepayment:
		return s.applyRepayment(tx, amount)
	case domain.TransactionChargeback:
		return s.applyChargeback(tx, amount)
	case domain.TransactionCreditBalanceRefund:
		return s.applyCreditBalanceRefund(tx, amount)
	case domain.TransactionCapitalizedIncomeAmortization:
		// recognized income does not move principal
		return nil
	default:
		return apperrors.WrapInvalidTransaction("unsupported transaction type %q", tx.Type)
	}
}

// addPrincipal places a disbursement or capitalized income on the interest
// period ending at its date and re-amortizes from the first period it affects.
func (s *Schedule) addPrincipal(tx domain.Transaction, amount money.Money) error {
	i, j, ok := s.interestPeriodEndingAt(tx.Date)
	if !ok || i < s.frozen {
		return apperrors.WrapInvalidTransaction("%s on %s is outside the schedule", tx.Type, utils.FormatDate(tx.Date))
	}
	affected, ok := s.firstPeriodDueAfter(tx.Date)
	if !ok {
		return apperrors.WrapInvalidTransaction("%s on %s is on or after maturity", tx.Type, utils.FormatDate(tx.Date))
	}

	ip := &s.periods[i].interestPeriods[j]
	if tx.Type == domain.TransactionDisbursement {
		ip.AddDisbursementAmount(amount)
	} else {
		ip.AddCapitalizedIncomePrincipalAmount(amount)
	}

	s.propagate(i)
	s.recalculateEmi(affected)
	s.propagate(affected)
	return nil
}

// applyRepayment settles the interest and principal of the periods already
// due, then prepays principal from the payment date on. Money left once no
// principal is owed pays the interest accrued so far; the rest is overpaid.
func (s *Schedule) applyRepayment(tx domain.Transaction, amount money.Money) error {
	ledger := &allocationLedger{transactionID: tx.ID}
	remaining := amount

	for i := s.frozen; i < len(s.periods) && remaining.IsPositive() && !s.periods[i].due.After(tx.Date); i++ {
		rp := &s.periods[i]
		pay := money.Min(rp.OutstandingInterest(), remaining)
		rp.paidInterest = rp.paidInterest.Plus(pay)
		remaining = remaining.Minus(pay)
		ledger.add(i, s.plan.zero, pay)

		// late principal lowers the balance from the due date
		pay = money.Min(rp.OutstandingPrincipal(), remaining)
		if pay.IsPositive() {
			if err := s.bookPrincipal(i, rp.due, pay, false); err != nil {
				return err
			}
			remaining = remaining.Minus(pay)
			ledger.add(i, pay, s.plan.zero)
		}
	}

	if remaining.IsPositive() {
		var err error
		if remaining, err = s.prepay(tx.Date, remaining, ledger); err != nil {
			return err
		}
	}

	if remaining.IsPositive() && s.OutstandingPrincipal().IsZero() {
		for i := s.frozen; i < len(s.periods) && remaining.IsPositive(); i++ {
			rp := &s.periods[i]
			pay := money.Min(rp.OutstandingInterest(), remaining)
			rp.paidInterest = rp.paidInterest.Plus(pay)
			remaining = remaining.Minus(pay)
			ledger.add(i, s.plan.zero, pay)
		}
	}

	if remaining.IsPositive() {
		s.overpaid = s.overpaid.Plus(remaining)
		ledger.add(overpaymentPeriod, remaining, s.plan.zero)
	}
	s.allocations = append(s.allocations, ledger.entries...)
	return nil
}

// prepay pays principal ahead of schedule at date and returns what is left.
// The installment of the period running at date is settled first. Principal
// beyond it is owed by the period the balance drops in, and the periods after
// it are re-amortized over the lower balance. Paying early lowers interest and
// so raises the due principal; prepay settles until the schedule converges.
func (s *Schedule) prepay(date time.Time, remaining money.Money, ledger *allocationLedger) (money.Money, error) {
	current, ok := s.firstPeriodDueAfter(date)
	if !ok {
		return remaining, nil
	}

	// booked owes the prepaid principal; reamortize is the first period whose
	// installment is recalculated
	booked, reamortize := current, current+1
	switch {
	case date.Equal(s.plan.start) && s.frozen == 0:
		reamortize = 0
	case date.Equal(s.periods[current].from):
		booked, reamortize = current-1, current
	}

	for round := 0; round < maxPrincipalRounds && remaining.IsPositive(); round++ {
		progressed := false

		if reamortize > current {
			if pay := money.Min(s.periods[current].OutstandingPrincipal(), remaining); pay.IsPositive() {
				if err := s.bookPrincipal(current, date, pay, false); err != nil {
					return remaining, err
				}
				remaining = remaining.Minus(pay)
				ledger.add(current, pay, s.plan.zero)
				progressed = true
			}
		}

		if pay := money.Min(s.principalOwedFrom(reamortize), remaining); pay.IsPositive() {
			if err := s.bookPrincipal(booked, date, pay, true); err != nil {
				return remaining, err
			}
			s.recalculateEmi(reamortize)
			s.propagate(reamortize)
			remaining = remaining.Minus(pay)
			ledger.add(booked, pay, s.plan.zero)
			progressed = true
		}

		if !progressed {
			break
		}
	}
	return remaining, nil
}

// bookPrincipal records pay as principal paid to period i and lowers the
// balance from at. Prepaid principal is owed by period i on top of its
// installment.
func (s *Schedule) bookPrincipal(i int, at time.Time, pay money.Money, prepaid bool) error {
	from := i
	if at.Equal(s.plan.start) && s.frozen == 0 {
		first := s.periods[0].FirstInterestPeriod()
		first.outstandingLoanBalance = money.NegativeToZero(first.outstandingLoanBalance.Minus(pay))
		from = 0
	} else {
		ci, cj, ok := s.interestPeriodEndingAt(at)
		if !ok || ci < s.frozen {
			return apperrors.WrapInconsistentState("no open interest period ends on %s", utils.FormatDate(at))
		}
		s.periods[ci].interestPeriods[cj].AddBalanceCorrectionAmount(pay.Negate())
		if ci < from {
			from = ci
		}
	}

	rp := &s.periods[i]
	rp.paidPrincipal = rp.paidPrincipal.Plus(pay)
	if prepaid {
		rp.prepaidPrincipal = rp.prepaidPrincipal.Plus(pay)
	}
	s.propagate(from)
	return nil
}

// allocationLedger merges the allocations of one transaction per period.
type allocationLedger struct {
	transactionID uuid.UUID
	entries       []Allocation
}

func (l *allocationLedger) add(period int, principal, interest money.Money) {
	if !principal.IsPositive() && !interest.IsPositive() {
		return
	}
	for k := range l.entries {
		if l.entries[k].Period == period {
			l.entries[k].Principal = l.entries[k].Principal.Plus(principal)
			l.entries[k].Interest = l.entries[k].Interest.Plus(interest)
			return
		}
	}
	l.entries = append(l.entries, Allocation{
		TransactionID: l.transactionID,
		Period:        period,
		Principal:     principal,
		Interest:      interest,
	})
}

// applyChargeback credits principal (and interest) back to the period in
// which the chargeback happens.
func (s *Schedule) applyChargeback(tx domain.Transaction, amount money.Money) error {
	principal := s.plan.money(tx.PrincipalPortion)
	interest := s.plan.money(tx.InterestPortion)
	if principal.IsZero() && interest.IsZero() {
		principal = amount
	}
	return s.credit(tx, principal, interest)
}

// applyCreditBalanceRefund pays back an overpayment first; the rest is owed
// again as principal.
func (s *Schedule) applyCreditBalanceRefund(tx domain.Transaction, amount money.Money) error {
	refunded := money.Min(s.overpaid, amount)
	if refunded.IsPositive() {
		s.overpaid = s.overpaid.Minus(refunded)
		s.allocations = append(s.allocations, Allocation{
			TransactionID: tx.ID, Period: overpaymentPeriod, Principal: refunded.Negate(), Interest: s.plan.zero,
		})
	}
	rest := amount.Minus(refunded)
	if !rest.IsPositive() {
		return nil
	}
	return s.credit(tx, rest, s.plan.zero)
}

func (s *Schedule) credit(tx domain.Transaction, principal, interest money.Money) error {
	date := utils.MinDate(tx.Date, s.MaturityDate())
	i, j, ok := s.interestPeriodEndingAt(date)
	if !ok || i < s.frozen {
		return apperrors.WrapInvalidTransaction("%s on %s is outside the schedule", tx.Type, utils.FormatDate(tx.Date))
	}
	ip := &s.periods[i].interestPeriods[j]
	ip.AddCreditedPrincipalAmount(principal)
	ip.AddBalanceCorrectionAmount(principal)
	ip.AddCreditedInterestAmount(interest)
	s.propagate(i)
	return nil
}

// ToSchedulePeriods projects the schedule for persistence.
func (s *Schedule) ToSchedulePeriods() []*domain.SchedulePeriod {
	out := make([]*domain.SchedulePeriod, 0, len(s.periods))
	now := time.Now().UTC()
	for i := range s.periods {
		rp := &s.periods[i]
		out = append(out, &domain.SchedulePeriod{
			ID:                 uuid.New(),
			LoanID:             s.plan.loanID,
			InstallmentNumber:  i + 1,
			FromDate:           rp.from,
			DueDate:            rp.due,
			Emi:                rp.emi.Amount(),
			DuePrincipal:       rp.duePrincipal.Amount(),
			PaidPrincipal:      rp.paidPrincipal.Amount(),
			DueInterest:        rp.DueInterest().Amount(),
			PaidInterest:       rp.paidInterest.Amount(),
			OutstandingBalance: rp.ClosingBalance().Amount(),
			InterestPeriods:    len(rp.interestPeriods),
			CreatedAt:          now,
		})
	}
	return out
}
