package calc

import (
	"sort"
	"time"

	"github.com/segyhp/progressive-loan-engine/internal/domain"
	apperrors "github.com/segyhp/progressive-loan-engine/pkg/errors"
	"github.com/segyhp/progressive-loan-engine/pkg/money"
	"github.com/segyhp/progressive-loan-engine/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// plan is the validated, resolved form of a loan's terms.
type plan struct {
	loanID   string
	terms    domain.LoanTerms
	currency money.Currency
	mc       money.MathContext
	zero     money.Money
	start    time.Time
	dueDates []time.Time

	rates           []rateChange
	interestPauses  []dateRange
	principalPauses []dateRange
	fixedEmis       []fixedEmi
}

type rateChange struct {
	from time.Time
	rate decimal.Decimal
}

type fixedEmi struct {
	after  time.Time
	amount money.Money
}

func (p *plan) rateAt(t time.Time) decimal.Decimal {
	rate := p.terms.AnnualInterestRate
	for _, c := range p.rates {
		if c.from.After(t) {
			break
		}
		rate = c.rate
	}
	return rate
}

func (p *plan) money(amount decimal.Decimal) money.Money {
	return money.Of(p.currency, amount, p.mc)
}

// MathContextFor resolves the rounding context configured on the terms.
func MathContextFor(terms domain.LoanTerms) (money.MathContext, error) {
	mc := money.DefaultMathContext
	if terms.Precision > 0 {
		mc.Precision = terms.Precision
	}
	if terms.RoundingMode != "" {
		mode, err := money.ParseRoundingMode(terms.RoundingMode)
		if err != nil {
			return money.MathContext{}, err
		}
		mc.Mode = mode
	}
	return mc, nil
}

// newPlan validates terms. Malformed terms are rejected before anything is
// generated; due-date variations that cannot be placed are dropped with a warning.
func newPlan(loanID string, terms domain.LoanTerms, logger *zap.Logger) (*plan, error) {
	if err := validateTerms(terms); err != nil {
		return nil, err
	}

	currency, err := money.NewCurrency(terms.CurrencyCode, terms.CurrencyDigits)
	if err != nil {
		return nil, apperrors.WrapInvalidLoanTerms("%v", err)
	}
	mc, err := MathContextFor(terms)
	if err != nil {
		return nil, apperrors.WrapInvalidLoanTerms("%v", err)
	}
	if terms.EmiMethod == "" {
		terms.EmiMethod = domain.EmiEqualInstallment
	}

	p := &plan{
		loanID:   loanID,
		terms:    terms,
		currency: currency,
		mc:       mc,
		zero:     money.Zero(currency, mc),
		start:    utils.DateOnly(terms.ExpectedDisbursementDate),
	}

	for _, v := range terms.TermVariations {
		v.ApplicableFrom = utils.DateOnly(v.ApplicableFrom)
		switch v.Type {
		case domain.VariationInterestRate:
			p.rates = append(p.rates, rateChange{from: v.ApplicableFrom, rate: v.DecimalValue})
		case domain.VariationInterestPause:
			p.interestPauses = append(p.interestPauses, dateRange{
				start: v.ApplicableFrom,
				end:   utils.DateOnly(*v.EndDate).AddDate(0, 0, 1),
			})
		case domain.VariationPrincipalPause:
			p.principalPauses = append(p.principalPauses, dateRange{
				start: v.ApplicableFrom,
				end:   utils.DateOnly(*v.EndDate).AddDate(0, 0, 1),
			})
		case domain.VariationEmiAmount:
			p.fixedEmis = append(p.fixedEmis, fixedEmi{after: v.ApplicableFrom, amount: p.money(v.DecimalValue)})
		}
	}
	sort.SliceStable(p.rates, func(i, j int) bool { return p.rates[i].from.Before(p.rates[j].from) })
	sort.SliceStable(p.fixedEmis, func(i, j int) bool { return p.fixedEmis[i].after.Before(p.fixedEmis[j].after) })

	dates, dropped := dueDatesForTerms(terms)
	for _, d := range dropped {
		logger.Warn("dropping due date variation",
			zap.String("op", "calc.newPlan"),
			zap.String("loan_id", loanID),
			zap.String("applicable_from", utils.FormatDate(d.variation.ApplicableFrom)),
			zap.String("reason", d.reason),
		)
	}
	if !dates[0].After(p.start) {
		return nil, apperrors.WrapInvalidLoanTerms("first due date %s is not after disbursement %s",
			utils.FormatDate(dates[0]), utils.FormatDate(p.start))
	}
	p.dueDates = dates
	return p, nil
}

func validateTerms(terms domain.LoanTerms) error {
	switch {
	case !terms.Principal.IsPositive():
		return apperrors.WrapInvalidLoanTerms("principal must be positive, got %s", terms.Principal)
	case terms.AnnualInterestRate.IsNegative():
		return apperrors.WrapInvalidLoanTerms("annual interest rate must not be negative, got %s", terms.AnnualInterestRate)
	case terms.NumberOfInstallments <= 0:
		return apperrors.WrapInvalidLoanTerms("number of installments must be positive, got %d", terms.NumberOfInstallments)
	case terms.RepaymentEvery <= 0:
		return apperrors.WrapInvalidLoanTerms("repayment frequency must be positive, got %d", terms.RepaymentEvery)
	case terms.ExpectedDisbursementDate.IsZero():
		return apperrors.WrapInvalidLoanTerms("expected disbursement date is required")
	case !SupportedDayCount(terms.DayCount):
		return apperrors.WrapInvalidLoanTerms("unsupported day count convention %q", terms.DayCount)
	}

	switch terms.RepaymentFrequency {
	case domain.FrequencyDays, domain.FrequencyWeeks, domain.FrequencyMonths:
	default:
		return apperrors.WrapInvalidLoanTerms("unsupported repayment frequency %q", terms.RepaymentFrequency)
	}
	switch terms.EmiMethod {
	case "", domain.EmiEqualInstallment, domain.EmiEqualPrincipal:
	default:
		return apperrors.WrapInvalidLoanTerms("unsupported EMI method %q", terms.EmiMethod)
	}
	if terms.FirstRepaymentDate != nil && !utils.DateOnly(*terms.FirstRepaymentDate).After(utils.DateOnly(terms.ExpectedDisbursementDate)) {
		return apperrors.WrapInvalidLoanTerms("first repayment date must be after the disbursement date")
	}

	for _, v := range terms.TermVariations {
		if err := validateVariation(v); err != nil {
			return err
		}
	}
	return nil
}

func validateVariation(v domain.TermVariation) error {
	switch v.Type {
	case domain.VariationDueDate:
		if v.DateValue == nil {
			return apperrors.WrapInvalidLoanTerms("due date variation from %s has no date value", utils.FormatDate(v.ApplicableFrom))
		}
	case domain.VariationInterestRate:
		if v.DecimalValue.IsNegative() {
			return apperrors.WrapInvalidLoanTerms("interest rate variation must not be negative, got %s", v.DecimalValue)
		}
	case domain.VariationInterestPause, domain.VariationPrincipalPause:
		if v.EndDate == nil || utils.DateOnly(*v.EndDate).Before(utils.DateOnly(v.ApplicableFrom)) {
			return apperrors.WrapInvalidLoanTerms("%s variation from %s needs an end date on or after its start",
				v.Type, utils.FormatDate(v.ApplicableFrom))
		}
	case domain.VariationEmiAmount:
		if !v.DecimalValue.IsPositive() {
			return apperrors.WrapInvalidLoanTerms("EMI amount variation must be positive, got %s", v.DecimalValue)
		}
	case domain.VariationExtendRepaymentPeriod:
		if v.Count <= 0 {
			return apperrors.WrapInvalidLoanTerms("extension must add at least one installment, got %d", v.Count)
		}
	default:
		return apperrors.WrapInvalidLoanTerms("unknown term variation type %q", v.Type)
	}
	return nil
}

// Generator builds repayment schedules from loan snapshots.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a Generator; a nil logger discards output.
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger}
}

// Generate builds the full schedule of a loan from disbursement to maturity
// and applies its transaction history in chronological order. The same
// snapshot always yields the same schedule.
func (g *Generator) Generate(snapshot domain.LoanSnapshot) (schedule *Schedule, err error) {
	defer func() {
		if r := recover(); r != nil {
			schedule, err = nil, recoverMismatch(r)
		}
	}()

	loanID := snapshot.Loan.LoanID
	p, err := newPlan(loanID, snapshot.Loan.LoanTerms, g.logger)
	if err != nil {
		return nil, err
	}

	s := newSchedule(p)
	s.appendPeriods(p.start, p.dueDates)
	s.applyVariations(0)

	txs := chronological(snapshot.Transactions)
	opening, rest, err := openingBalance(p, txs)
	if err != nil {
		return nil, err
	}
	first := s.periods[0].FirstInterestPeriod()
	first.outstandingLoanBalance = opening

	s.recalculateEmi(0)
	s.propagate(0)

	for _, tx := range rest {
		if err := s.apply(tx); err != nil {
			return nil, err
		}
	}
	s.state = StateGenerated

	g.logger.Debug("schedule generated",
		zap.String("op", "calc.Generate"),
		zap.String("loan_id", loanID),
		zap.Int("periods", len(s.periods)),
		zap.Int("transactions", len(txs)),
	)
	return s, nil
}

// openingBalance sums the disbursements made on the start date. A loan
// without any disbursement transaction is projected on its principal.
func openingBalance(p *plan, txs []domain.Transaction) (money.Money, []domain.Transaction, error) {
	opening := p.zero
	disbursed := false
	rest := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.Before(p.start) {
			return money.Money{}, nil, apperrors.WrapInvalidTransaction("%s on %s is before the disbursement date %s",
				tx.Type, utils.FormatDate(tx.Date), utils.FormatDate(p.start))
		}
		if tx.Type != domain.TransactionDisbursement {
			rest = append(rest, tx)
			continue
		}
		disbursed = true
		if tx.Date.Equal(p.start) {
			opening = opening.Plus(p.money(tx.Amount))
			continue
		}
		rest = append(rest, tx)
	}
	if !disbursed {
		opening = p.money(p.terms.Principal)
	}
	return opening, rest, nil
}

// chronological returns the non-reversed transactions ordered by date,
// keeping the input order for transactions on the same day.
func chronological(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Reversed {
			continue
		}
		tx.Date = utils.DateOnly(tx.Date)
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// recoverMismatch turns a currency mismatch panic into an inconsistent-state
// error. Any other panic is re-raised.
func recoverMismatch(r any) error {
	if mismatch, ok := r.(*money.MismatchError); ok {
		return apperrors.WrapInconsistentState("%v", mismatch)
	}
	panic(r)
}
