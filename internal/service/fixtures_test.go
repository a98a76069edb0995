package service_test

import (
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/progressive-loan-engine/internal/config"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/shopspring/decimal"
)

func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			DefaultCurrency:       "USD",
			DefaultCurrencyDigits: 2,
			Precision:             12,
			RoundingMode:          "HALF_EVEN",
			DayCount:              string(domain.DayCountActual365),
		},
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// newLoan is a 100,000 loan at 12% disbursed on 2024-04-01 over 12 months.
// Currency and rounding are left to the configured defaults.
func newLoan(loanID string, status domain.LoanStatus) *domain.Loan {
	return &domain.Loan{
		ID:     uuid.New(),
		LoanID: loanID,
		Status: status,
		LoanTerms: domain.LoanTerms{
			Principal:                decimal.NewFromInt(100000),
			AnnualInterestRate:       decimal.NewFromInt(12),
			ExpectedDisbursementDate: day(2024, time.April, 1),
			NumberOfInstallments:     12,
			RepaymentEvery:           1,
			RepaymentFrequency:       domain.FrequencyMonths,
		},
	}
}

func disbursement(loanID string) []domain.Transaction {
	return []domain.Transaction{{
		ID:     uuid.New(),
		LoanID: loanID,
		Type:   domain.TransactionDisbursement,
		Date:   day(2024, time.April, 1),
		Amount: decimal.NewFromInt(100000),
	}}
}

func incomeBalance(loanID, unrecognized string) *domain.CapitalizedIncomeBalance {
	amount := decimal.RequireFromString(unrecognized)
	return &domain.CapitalizedIncomeBalance{
		ID:                 uuid.New(),
		LoanID:             loanID,
		TransactionID:      uuid.New(),
		Amount:             amount,
		UnrecognizedAmount: amount,
	}
}
