package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CapitalizedIncomeBalance tracks how much of one capitalized-income
// transaction is still to be recognized.
type CapitalizedIncomeBalance struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	LoanID             string          `json:"loan_id" db:"loan_id"`
	TransactionID      uuid.UUID       `json:"transaction_id" db:"transaction_id"`
	Date               time.Time       `json:"date" db:"balance_date"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	UnrecognizedAmount decimal.Decimal `json:"unrecognized_amount" db:"unrecognized_amount"`
	ChargedOffAmount   decimal.Decimal `json:"charged_off_amount" db:"charged_off_amount"`
	Deleted            bool            `json:"deleted" db:"deleted"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

type AmortizationResponse struct {
	LoanID        string          `json:"loan_id"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
}

type AmortizeRequest struct {
	BusinessDate string `json:"business_date" validate:"required,datetime=2006-01-02"`
}
