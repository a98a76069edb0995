package calc

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	apperrors "github.com/segyhp/progressive-loan-engine/pkg/errors"
	"github.com/segyhp/progressive-loan-engine/pkg/money"
	"github.com/segyhp/progressive-loan-engine/pkg/utils"
	"go.uber.org/zap"
)

// Rescheduler regenerates the part of a schedule after a cut-off date while
// keeping every period due on or before it unchanged.
type Rescheduler struct {
	generator *Generator
	logger    *zap.Logger
}

func NewRescheduler(generator *Generator, logger *zap.Logger) *Rescheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if generator == nil {
		generator = NewGenerator(logger)
	}
	return &Rescheduler{generator: generator, logger: logger}
}

// Resolution is the outcome of folding a reschedule request into the terms.
type Resolution struct {
	RescheduleFrom time.Time
	Terms          domain.LoanTerms
	Dropped        []domain.TermVariation
}

// Resolve computes the cut-off date and the term variations the regenerated
// schedule is built with:
//
//  1. an existing due-date variation whose date value equals the request's
//     due-date applicable-from is folded into the request and removed;
//     the cut-off becomes that variation's applicable-from
//  2. otherwise the cut-off is the request's reschedule-from date
//  3. existing due-date variations after the cut-off are moved to the
//     installment at the same position in the regenerated schedule; those
//     without a matching installment are dropped
func (r *Rescheduler) Resolve(existing *Schedule, terms domain.LoanTerms, request domain.RescheduleRequest) Resolution {
	var existingDue, others []domain.TermVariation
	for _, v := range terms.TermVariations {
		v.ApplicableFrom = utils.DateOnly(v.ApplicableFrom)
		if v.Type == domain.VariationDueDate {
			existingDue = append(existingDue, v)
		} else {
			others = append(others, v)
		}
	}

	requested := make([]domain.TermVariation, len(request.TermVariations))
	copy(requested, request.TermVariations)
	reqDueIdx := -1
	for i := range requested {
		requested[i].ApplicableFrom = utils.DateOnly(requested[i].ApplicableFrom)
		if requested[i].Type == domain.VariationDueDate && reqDueIdx < 0 {
			reqDueIdx = i
		}
	}

	var cutoff *time.Time
	if reqDueIdx >= 0 {
		kept := existingDue[:0:0]
		for _, v := range existingDue {
			if v.DateValue != nil && utils.DateOnly(*v.DateValue).Equal(requested[reqDueIdx].ApplicableFrom) {
				from := v.ApplicableFrom
				cutoff = &from
				continue
			}
			kept = append(kept, v)
		}
		existingDue = kept
	}
	if cutoff == nil {
		from := utils.DateOnly(request.RescheduleFromDate)
		cutoff = &from
	}
	if reqDueIdx >= 0 {
		requested[reqDueIdx].ApplicableFrom = *cutoff
	}

	// variations on or before the cut-off shaped the frozen periods
	var before, after []domain.TermVariation
	for _, v := range existingDue {
		if v.ApplicableFrom.After(*cutoff) {
			after = append(after, v)
		} else {
			before = append(before, v)
		}
	}

	frozen := 0
	for i := range existing.periods {
		if !existing.periods[i].due.After(*cutoff) {
			frozen = i + 1
		}
	}

	type positioned struct {
		variation domain.TermVariation
		offset    int
	}
	var moves []positioned
	var dropped []domain.TermVariation
	for _, v := range after {
		target := -1
		for i := range existing.periods {
			if existing.periods[i].due.After(v.ApplicableFrom) {
				target = i
				break
			}
		}
		offset := target - frozen
		switch {
		case target < 0:
			dropped = append(dropped, v)
		case offset == 0 && reqDueIdx >= 0:
			// the request moves the same installment
			dropped = append(dropped, v)
		default:
			moves = append(moves, positioned{variation: v, offset: offset})
		}
	}
	sort.SliceStable(moves, func(i, j int) bool { return moves[i].offset < moves[j].offset })

	resolved := terms
	resolved.TermVariations = append(append(append([]domain.TermVariation{}, others...), before...), requested...)
	for _, m := range moves {
		dates, _ := dueDatesForTerms(resolved)
		idx := frozen + m.offset
		if idx >= len(dates) {
			dropped = append(dropped, m.variation)
			continue
		}
		anchor := *cutoff
		if idx > 0 {
			anchor = utils.MaxDate(anchor, dates[idx-1])
		}
		if m.variation.DateValue == nil || !utils.DateOnly(*m.variation.DateValue).After(anchor) {
			dropped = append(dropped, m.variation)
			continue
		}
		moved := m.variation
		moved.ApplicableFrom = anchor
		resolved.TermVariations = append(resolved.TermVariations, moved)
	}

	for _, v := range dropped {
		r.logger.Warn("dropping unmappable due date variation",
			zap.String("op", "calc.Rescheduler.Resolve"),
			zap.String("loan_id", existing.LoanID()),
			zap.String("applicable_from", utils.FormatDate(v.ApplicableFrom)),
			zap.String("reschedule_from", utils.FormatDate(*cutoff)),
		)
	}

	return Resolution{RescheduleFrom: *cutoff, Terms: resolved, Dropped: dropped}
}

// Reschedule regenerates existing from the resolved cut-off date. Periods due
// on or before the cut-off are copied unchanged; the remaining periods are
// rebuilt from the new terms and every transaction dated after the last
// copied due date is applied to them again.
func (r *Rescheduler) Reschedule(existing *Schedule, snapshot domain.LoanSnapshot, request domain.RescheduleRequest) (schedule *Schedule, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			schedule, err = nil, recoverMismatch(rec)
		}
	}()

	loanID := snapshot.Loan.LoanID
	if existing == nil || existing.state == StateInitial || len(existing.periods) == 0 {
		return nil, apperrors.WrapInconsistentState("loan %s has no generated schedule to reschedule", loanID)
	}
	if request.LoanID != "" && request.LoanID != loanID {
		return nil, apperrors.WrapInconsistentState("reschedule request %s belongs to loan %s, not %s",
			request.RequestID, request.LoanID, loanID)
	}

	resolution := r.Resolve(existing, snapshot.Loan.LoanTerms, request)
	cutoff := resolution.RescheduleFrom

	frozen := 0
	for i := range existing.periods {
		if !existing.periods[i].due.After(cutoff) {
			frozen = i + 1
		}
	}
	if frozen >= len(existing.periods) {
		return nil, apperrors.WrapInvalidLoanTerms("reschedule from %s is on or after maturity %s",
			utils.FormatDate(cutoff), utils.FormatDate(existing.MaturityDate()))
	}

	newSnapshot := snapshot
	newSnapshot.Loan.LoanTerms = resolution.Terms
	if frozen == 0 {
		s, err := r.generator.Generate(newSnapshot)
		if err != nil {
			return nil, err
		}
		s.state = StatePartiallyRescheduled
		return s, nil
	}

	p, err := newPlan(loanID, resolution.Terms, r.logger)
	if err != nil {
		return nil, err
	}
	lastFrozenDue := existing.periods[frozen-1].due
	if len(p.dueDates) <= frozen || !p.dueDates[frozen].After(lastFrozenDue) {
		return nil, apperrors.WrapInvalidLoanTerms("rescheduled installments must fall after %s", utils.FormatDate(lastFrozenDue))
	}

	s := newSchedule(p)
	for i := 0; i < frozen; i++ {
		s.periods = append(s.periods, existing.periods[i].clone())
	}
	s.frozen = frozen
	s.appendPeriods(lastFrozenDue, p.dueDates[frozen:])
	s.applyVariations(frozen)

	settled, leftover := r.carryAllocations(s, existing, snapshot.Transactions, lastFrozenDue)

	s.recalculateEmi(frozen)
	s.propagate(frozen)

	// transactions up to the last frozen due date keep their principal on the
	// frozen periods; whatever they paid to later periods is settled again
	for _, tx := range chronological(snapshot.Transactions) {
		if amount, ok := leftover[tx.ID]; ok {
			s.settleLeftover(tx.ID, amount)
		}
	}

	for _, tx := range chronological(snapshot.Transactions) {
		if !tx.Date.After(lastFrozenDue) {
			continue
		}
		if tx.Type == domain.TransactionRepayment {
			tx.Amount = tx.Amount.Sub(settled[tx.ID].Amount())
			if !tx.Amount.IsPositive() {
				continue
			}
		}
		if err := s.apply(tx); err != nil {
			return nil, err
		}
	}
	s.state = StatePartiallyRescheduled

	r.logger.Info("schedule rescheduled",
		zap.String("op", "calc.Rescheduler.Reschedule"),
		zap.String("loan_id", loanID),
		zap.String("reschedule_from", utils.FormatDate(cutoff)),
		zap.Int("frozen_periods", frozen),
		zap.Int("periods", len(s.periods)),
	)
	return s, nil
}

// carryAllocations keeps the allocations against frozen periods and the
// overpayments of transactions dated up to the last frozen due date. It
// returns, per transaction, the amount already settled by frozen periods and
// the amount those early transactions paid to periods being rebuilt.
func (r *Rescheduler) carryAllocations(s, existing *Schedule, txs []domain.Transaction, lastFrozenDue time.Time) (settled, leftover map[uuid.UUID]money.Money) {
	dates := make(map[uuid.UUID]time.Time, len(txs))
	for _, tx := range txs {
		dates[tx.ID] = utils.DateOnly(tx.Date)
	}

	settled = make(map[uuid.UUID]money.Money)
	leftover = make(map[uuid.UUID]money.Money)
	for _, a := range existing.allocations {
		early := !dates[a.TransactionID].After(lastFrozenDue)
		switch {
		case a.Period >= 0 && a.Period < s.frozen:
			s.allocations = append(s.allocations, a)
			settled[a.TransactionID] = settled[a.TransactionID].Plus(a.Principal).Plus(a.Interest)
		case a.Period == overpaymentPeriod && early:
			s.allocations = append(s.allocations, a)
			s.overpaid = s.overpaid.Plus(a.Principal)
		case a.Period >= s.frozen && early:
			leftover[a.TransactionID] = leftover[a.TransactionID].Plus(a.Principal).Plus(a.Interest)
		}
	}
	return settled, leftover
}

// settleLeftover pays amount to the interest of the rebuilt periods and
// records the rest as overpayment.
func (s *Schedule) settleLeftover(txID uuid.UUID, amount money.Money) {
	ledger := &allocationLedger{transactionID: txID}
	remaining := amount
	for i := s.frozen; i < len(s.periods) && remaining.IsPositive(); i++ {
		rp := &s.periods[i]
		pay := money.Min(rp.OutstandingInterest(), remaining)
		rp.paidInterest = rp.paidInterest.Plus(pay)
		remaining = remaining.Minus(pay)
		ledger.add(i, s.plan.zero, pay)
	}
	if remaining.IsPositive() {
		s.overpaid = s.overpaid.Plus(remaining)
		ledger.add(overpaymentPeriod, remaining, s.plan.zero)
	}
	s.allocations = append(s.allocations, ledger.entries...)
}
