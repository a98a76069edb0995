package calc

import (
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/segyhp/progressive-loan-engine/pkg/money"
	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := day(y, m, d)
	return &t
}

func usd(s string) money.Money {
	return money.Of(money.USD, decimal.RequireFromString(s), money.DefaultMathContext)
}

// baseTerms is a 100,000 USD loan at 12% disbursed on 2024-04-01 and repaid
// in 12 monthly installments.
func baseTerms() domain.LoanTerms {
	return domain.LoanTerms{
		Principal:                decimal.NewFromInt(100000),
		AnnualInterestRate:       decimal.NewFromInt(12),
		DayCount:                 domain.DayCountActual365,
		ExpectedDisbursementDate: day(2024, time.April, 1),
		NumberOfInstallments:     12,
		RepaymentEvery:           1,
		RepaymentFrequency:       domain.FrequencyMonths,
		EmiMethod:                domain.EmiEqualInstallment,
		CurrencyCode:             "USD",
		CurrencyDigits:           2,
		Precision:                12,
	}
}

func snapshotOf(terms domain.LoanTerms, txs ...domain.Transaction) domain.LoanSnapshot {
	return domain.LoanSnapshot{
		Loan: domain.Loan{
			ID:        uuid.New(),
			LoanID:    "LOAN-1",
			Status:    domain.LoanStatusActive,
			LoanTerms: terms,
		},
		Transactions: txs,
	}
}

func tx(typ domain.TransactionType, date time.Time, amount string) domain.Transaction {
	return domain.Transaction{
		ID:     uuid.New(),
		LoanID: "LOAN-1",
		Type:   typ,
		Date:   date,
		Amount: decimal.RequireFromString(amount),
	}
}

// testPlan is a bare plan for schedules assembled by hand.
func testPlan() *plan {
	mc := money.DefaultMathContext
	return &plan{
		loanID:   "LOAN-1",
		currency: money.USD,
		mc:       mc,
		zero:     money.Zero(money.USD, mc),
		terms:    domain.LoanTerms{DayCount: domain.DayCountActual365, AnnualInterestRate: decimal.NewFromInt(12)},
	}
}
