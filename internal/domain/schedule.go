package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SchedulePeriod is the persisted projection of one repayment period.
type SchedulePeriod struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	LoanID             string          `json:"loan_id" db:"loan_id"`
	InstallmentNumber  int             `json:"installment_number" db:"installment_number"`
	FromDate           time.Time       `json:"from_date" db:"from_date"`
	DueDate            time.Time       `json:"due_date" db:"due_date"`
	Emi                decimal.Decimal `json:"emi" db:"emi"`
	DuePrincipal       decimal.Decimal `json:"due_principal" db:"due_principal"`
	PaidPrincipal      decimal.Decimal `json:"paid_principal" db:"paid_principal"`
	DueInterest        decimal.Decimal `json:"due_interest" db:"due_interest"`
	PaidInterest       decimal.Decimal `json:"paid_interest" db:"paid_interest"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance" db:"outstanding_balance"`
	InterestPeriods    int             `json:"interest_periods" db:"interest_periods"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

type ScheduleResponse struct {
	LoanID   string            `json:"loan_id"`
	Schedule []*SchedulePeriod `json:"schedule"`
}
