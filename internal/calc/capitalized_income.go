package calc

import (
	"time"

	"github.com/segyhp/progressive-loan-engine/internal/domain"
	apperrors "github.com/segyhp/progressive-loan-engine/pkg/errors"
	"github.com/segyhp/progressive-loan-engine/pkg/money"
	"github.com/segyhp/progressive-loan-engine/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AmortizationStrategy decides how much of an unrecognized capitalized-income
// amount is recognized on a business date.
type AmortizationStrategy interface {
	Name() string
	DailyAmount(unrecognized money.Money, businessDate, maturity time.Time) money.Money
}

// EqualAmortization spreads the unrecognized amount evenly over the days left
// until maturity.
type EqualAmortization struct{}

func (EqualAmortization) Name() string { return domain.AmortizationStrategyEqual }

func (EqualAmortization) DailyAmount(unrecognized money.Money, businessDate, maturity time.Time) money.Money {
	days := utils.DaysBetween(businessDate, maturity)
	if days <= 0 {
		return unrecognized
	}
	daily := unrecognized.MathContext().Quo(unrecognized.Amount(), decimal.NewFromInt(int64(days)))
	return money.Min(money.Of(unrecognized.Currency(), daily, unrecognized.MathContext()), unrecognized)
}

// StrategyFor returns the strategy registered under name; empty selects the default.
func StrategyFor(name string) (AmortizationStrategy, error) {
	switch name {
	case "", domain.AmortizationStrategyEqual:
		return EqualAmortization{}, nil
	default:
		return nil, apperrors.WrapInvalidLoanTerms("unknown capitalized income strategy %q", name)
	}
}

// CapitalizedIncomeAmortizer recognizes capitalized income balances.
type CapitalizedIncomeAmortizer struct {
	currency money.Currency
	mc       money.MathContext
	logger   *zap.Logger
}

func NewCapitalizedIncomeAmortizer(currency money.Currency, mc money.MathContext, logger *zap.Logger) *CapitalizedIncomeAmortizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapitalizedIncomeAmortizer{currency: currency, mc: mc, logger: logger}
}

// AmortizerFor builds an amortizer in the currency of terms.
func AmortizerFor(terms domain.LoanTerms, logger *zap.Logger) (*CapitalizedIncomeAmortizer, error) {
	currency, err := money.NewCurrency(terms.CurrencyCode, terms.CurrencyDigits)
	if err != nil {
		return nil, apperrors.WrapInvalidLoanTerms("%v", err)
	}
	mc, err := MathContextFor(terms)
	if err != nil {
		return nil, apperrors.WrapInvalidLoanTerms("%v", err)
	}
	return NewCapitalizedIncomeAmortizer(currency, mc, logger), nil
}

func (a *CapitalizedIncomeAmortizer) money(d decimal.Decimal) money.Money {
	return money.Of(a.currency, d, a.mc)
}

// AmortizeDaily recognizes one day of every balance, reducing its
// unrecognized amount, and returns the total recognized.
func (a *CapitalizedIncomeAmortizer) AmortizeDaily(balances []*domain.CapitalizedIncomeBalance, businessDate, maturity time.Time, strategy AmortizationStrategy) money.Money {
	if strategy == nil {
		strategy = EqualAmortization{}
	}
	total := money.Zero(a.currency, a.mc)
	for _, b := range balances {
		if b.Deleted {
			continue
		}
		unrecognized := a.money(b.UnrecognizedAmount)
		if !unrecognized.IsPositive() {
			continue
		}
		amount := strategy.DailyAmount(unrecognized, businessDate, maturity)
		b.UnrecognizedAmount = unrecognized.Minus(amount).Amount()
		total = total.Plus(amount)
	}
	a.logger.Debug("capitalized income amortized",
		zap.String("op", "calc.AmortizeDaily"),
		zap.String("business_date", utils.FormatDate(businessDate)),
		zap.String("amount", total.Amount().String()),
		zap.String("strategy", strategy.Name()),
	)
	return total
}

// ClosureDate is the date the remaining income is recognized on for a loan
// in a terminal status.
func ClosureDate(loan domain.Loan) (time.Time, error) {
	var date *time.Time
	switch loan.Status {
	case domain.LoanStatusClosedObligationsMet:
		date = loan.ClosedOn
	case domain.LoanStatusOverpaid:
		date = loan.OverpaidOn
	case domain.LoanStatusClosedWrittenOff:
		date = loan.WrittenOffOn
	default:
		return time.Time{}, apperrors.WrapInconsistentState("loan %s in status %s has no closure date", loan.LoanID, loan.Status)
	}
	if date == nil {
		return time.Time{}, apperrors.WrapInconsistentState("loan %s is %s without a %s date", loan.LoanID, loan.Status, closureField(loan.Status))
	}
	return utils.DateOnly(*date), nil
}

func closureField(status domain.LoanStatus) string {
	switch status {
	case domain.LoanStatusOverpaid:
		return "overpaid"
	case domain.LoanStatusClosedWrittenOff:
		return "written-off"
	default:
		return "closed"
	}
}

// AmortizeOnClosure recognizes everything that is left, dated at the closure.
func (a *CapitalizedIncomeAmortizer) AmortizeOnClosure(loan domain.Loan, balances []*domain.CapitalizedIncomeBalance) (money.Money, time.Time, error) {
	date, err := ClosureDate(loan)
	if err != nil {
		return money.Money{}, time.Time{}, err
	}
	return a.amortizeAll(balances, false), date, nil
}

// AmortizeOnChargeOff recognizes everything that is left and remembers the
// charged-off portion so it can be restored.
func (a *CapitalizedIncomeAmortizer) AmortizeOnChargeOff(balances []*domain.CapitalizedIncomeBalance) money.Money {
	return a.amortizeAll(balances, true)
}

func (a *CapitalizedIncomeAmortizer) amortizeAll(balances []*domain.CapitalizedIncomeBalance, chargeOff bool) money.Money {
	total := money.Zero(a.currency, a.mc)
	for _, b := range balances {
		if b.Deleted {
			continue
		}
		unrecognized := a.money(b.UnrecognizedAmount)
		if chargeOff {
			b.ChargedOffAmount = a.money(b.ChargedOffAmount).Plus(unrecognized).Amount()
		}
		b.UnrecognizedAmount = decimal.Zero
		total = total.Plus(unrecognized)
	}
	return total
}

// UndoChargeOff restores the charged-off portion into the unrecognized
// amount and returns the total restored.
func (a *CapitalizedIncomeAmortizer) UndoChargeOff(balances []*domain.CapitalizedIncomeBalance) money.Money {
	total := money.Zero(a.currency, a.mc)
	for _, b := range balances {
		if b.Deleted {
			continue
		}
		chargedOff := a.money(b.ChargedOffAmount)
		b.UnrecognizedAmount = a.money(b.UnrecognizedAmount).Plus(chargedOff).Amount()
		b.ChargedOffAmount = decimal.Zero
		total = total.Plus(chargedOff)
	}
	return total
}

// ShouldResetBalances reports whether a status transition resets the
// capitalized income balances: a loan that becomes approved again from any
// status other than submitted-and-pending-approval.
func ShouldResetBalances(oldStatus, newStatus domain.LoanStatus) bool {
	return oldStatus != domain.LoanStatusSubmittedPendingApproval && newStatus == domain.LoanStatusApproved
}

// RemainingUnrecognized sums the unrecognized amounts.
func (a *CapitalizedIncomeAmortizer) RemainingUnrecognized(balances []*domain.CapitalizedIncomeBalance) money.Money {
	total := money.Zero(a.currency, a.mc)
	for _, b := range balances {
		if !b.Deleted {
			total = total.Plus(a.money(b.UnrecognizedAmount))
		}
	}
	return total
}
