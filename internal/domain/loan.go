package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle status of a loan.
type LoanStatus string

const (
	LoanStatusSubmittedPendingApproval LoanStatus = "submitted_pending_approval"
	LoanStatusApproved                 LoanStatus = "approved"
	LoanStatusActive                   LoanStatus = "active"
	LoanStatusClosedObligationsMet     LoanStatus = "closed_obligations_met"
	LoanStatusClosedWrittenOff         LoanStatus = "closed_written_off"
	LoanStatusOverpaid                 LoanStatus = "overpaid"
)

// IsClosed reports the statuses on which the remaining capitalized income is recognized at once.
func (s LoanStatus) IsClosed() bool {
	switch s {
	case LoanStatusClosedObligationsMet, LoanStatusClosedWrittenOff, LoanStatusOverpaid:
		return true
	}
	return false
}

// DayCountConvention determines the year length a rate factor is computed over.
type DayCountConvention string

const (
	DayCountActual365    DayCountConvention = "ACTUAL_365"
	DayCountActual360    DayCountConvention = "ACTUAL_360"
	DayCountActual364    DayCountConvention = "ACTUAL_364"
	DayCountActualActual DayCountConvention = "ACTUAL_ACTUAL"
	DayCountThirty360    DayCountConvention = "THIRTY_360"
)

// FrequencyType is the unit of the repayment frequency.
type FrequencyType string

const (
	FrequencyDays   FrequencyType = "DAYS"
	FrequencyWeeks  FrequencyType = "WEEKS"
	FrequencyMonths FrequencyType = "MONTHS"
)

// EmiMethod selects how the installment amount is derived.
type EmiMethod string

const (
	EmiEqualInstallment EmiMethod = "EQUAL_INSTALLMENT"
	EmiEqualPrincipal   EmiMethod = "EQUAL_PRINCIPAL"
)

// AmortizationStrategyEqual spreads capitalized income linearly until maturity.
const AmortizationStrategyEqual = "EQUAL_AMORTIZATION"

// LoanTerms are the contractual terms a schedule is generated from.
type LoanTerms struct {
	Principal                 decimal.Decimal    `json:"principal" db:"principal"`
	AnnualInterestRate        decimal.Decimal    `json:"annual_interest_rate" db:"annual_interest_rate"`
	DayCount                  DayCountConvention `json:"day_count" db:"day_count"`
	ExpectedDisbursementDate  time.Time          `json:"expected_disbursement_date" db:"expected_disbursement_date"`
	FirstRepaymentDate        *time.Time         `json:"first_repayment_date,omitempty" db:"first_repayment_date"`
	NumberOfInstallments      int                `json:"number_of_installments" db:"number_of_installments"`
	RepaymentEvery            int                `json:"repayment_every" db:"repayment_every"`
	RepaymentFrequency        FrequencyType      `json:"repayment_frequency" db:"repayment_frequency"`
	EmiMethod                 EmiMethod          `json:"emi_method" db:"emi_method"`
	CurrencyCode              string             `json:"currency_code" db:"currency_code"`
	CurrencyDigits            int32              `json:"currency_digits" db:"currency_digits"`
	Precision                 int32              `json:"precision" db:"precision"`
	RoundingMode              string             `json:"rounding_mode" db:"rounding_mode"`
	CapitalizedIncomeStrategy string             `json:"capitalized_income_strategy" db:"capitalized_income_strategy"`
	TermVariations            []TermVariation    `json:"term_variations" db:"-"`
}

// Loan represents a loan entity
type Loan struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	LoanID       string     `json:"loan_id" db:"loan_id"`
	Status       LoanStatus `json:"status" db:"status"`
	ClosedOn     *time.Time `json:"closed_on,omitempty" db:"closed_on"`
	OverpaidOn   *time.Time `json:"overpaid_on,omitempty" db:"overpaid_on"`
	WrittenOffOn *time.Time `json:"written_off_on,omitempty" db:"written_off_on"`
	ChargedOffOn *time.Time `json:"charged_off_on,omitempty" db:"charged_off_on"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`

	LoanTerms
}

// LoanSnapshot is the fully materialized input of a recalculation pass.
type LoanSnapshot struct {
	Loan         Loan          `json:"loan"`
	Transactions []Transaction `json:"transactions"`
	BusinessDate time.Time     `json:"business_date"`
}

// DTOs for requests and responses

type GenerateScheduleResponse struct {
	LoanID   string            `json:"loan_id"`
	State    string            `json:"state"`
	Schedule []*SchedulePeriod `json:"schedule"`
}

type StatusTransitionRequest struct {
	OldStatus LoanStatus `json:"old_status" validate:"required"`
	NewStatus LoanStatus `json:"new_status" validate:"required"`
}
