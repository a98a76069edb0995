package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a loan transaction.
type TransactionType string

const (
	TransactionDisbursement                  TransactionType = "DISBURSEMENT"
	TransactionRepayment                     TransactionType = "REPAYMENT"
	TransactionChargeback                    TransactionType = "CHARGEBACK"
	TransactionCreditBalanceRefund           TransactionType = "CREDIT_BALANCE_REFUND"
	TransactionCapitalizedIncome             TransactionType = "CAPITALIZED_INCOME"
	TransactionCapitalizedIncomeAmortization TransactionType = "CAPITALIZED_INCOME_AMORTIZATION"
)

// Transaction is a monetary event on a loan.
type Transaction struct {
	ID     uuid.UUID       `json:"id" db:"id"`
	LoanID string          `json:"loan_id" db:"loan_id"`
	Type   TransactionType `json:"type" db:"type"`
	Date   time.Time       `json:"date" db:"transaction_date"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
	// Principal and interest portions of a chargeback. When both are zero the
	// whole amount is credited as principal.
	PrincipalPortion decimal.Decimal `json:"principal_portion" db:"principal_portion"`
	InterestPortion  decimal.Decimal `json:"interest_portion" db:"interest_portion"`
	Reversed         bool            `json:"reversed" db:"reversed"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

func (Transaction) TableName() string {
	return "loan_transactions"
}

// NewAmortizationTransaction builds the transaction recognizing capitalized income.
func NewAmortizationTransaction(loanID string, date time.Time, amount decimal.Decimal) *Transaction {
	return &Transaction{
		ID:        uuid.New(),
		LoanID:    loanID,
		Type:      TransactionCapitalizedIncomeAmortization,
		Date:      date,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
}
