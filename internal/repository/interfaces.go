package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
)

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// GetByLoanID retrieves a loan with its term variations
	GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error)

	// UpdateStatus stores the loan status and its closure dates
	UpdateStatus(ctx context.Context, loan *domain.Loan) error

	// ReplaceTermVariations swaps the stored term variations of a loan
	ReplaceTermVariations(ctx context.Context, loanID string, variations []domain.TermVariation) error

	// ListActiveLoanIDs returns the loans close-of-business processes
	ListActiveLoanIDs(ctx context.Context) ([]string, error)
}

// TransactionRepository defines the interface for loan transaction operations
type TransactionRepository interface {
	// GetByLoanID retrieves all transactions of a loan in chronological order
	GetByLoanID(ctx context.Context, loanID string) ([]domain.Transaction, error)

	// Create stores a new transaction
	Create(ctx context.Context, tx *domain.Transaction) error

	// Reverse marks the given transactions reversed
	Reverse(ctx context.Context, ids []uuid.UUID) error
}

// ScheduleRepository defines the interface for persisted repayment schedules
type ScheduleRepository interface {
	// GetByLoanID retrieves the schedule ordered by installment number
	GetByLoanID(ctx context.Context, loanID string) ([]*domain.SchedulePeriod, error)

	// ReplaceFrom deletes the installments after keep and inserts periods
	// numbered after keep. Installments 1..keep are never rewritten.
	ReplaceFrom(ctx context.Context, loanID string, keep int, periods []*domain.SchedulePeriod) error
}

// RescheduleRequestRepository defines the interface for reschedule requests
type RescheduleRequestRepository interface {
	// GetByRequestID retrieves a request with its term variations
	GetByRequestID(ctx context.Context, requestID string) (*domain.RescheduleRequest, error)

	// MarkApproved records that the request was applied
	MarkApproved(ctx context.Context, requestID string, approvedAt time.Time) error
}

// CapitalizedIncomeRepository defines the interface for capitalized income balances
type CapitalizedIncomeRepository interface {
	// GetByLoanID retrieves the balances that are not deleted
	GetByLoanID(ctx context.Context, loanID string) ([]*domain.CapitalizedIncomeBalance, error)

	// SaveAll stores the unrecognized and charged-off amounts
	SaveAll(ctx context.Context, balances []*domain.CapitalizedIncomeBalance) error

	// DeleteByLoanID soft-deletes every balance of a loan
	DeleteByLoanID(ctx context.Context, loanID string) error
}
