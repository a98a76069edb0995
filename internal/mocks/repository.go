package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) UpdateStatus(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) ReplaceTermVariations(ctx context.Context, loanID string, variations []domain.TermVariation) error {
	args := m.Called(ctx, loanID, variations)
	return args.Error(0)
}

func (m *MockLoanRepository) ListActiveLoanIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) GetByLoanID(ctx context.Context, loanID string) ([]domain.Transaction, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) Reverse(ctx context.Context, ids []uuid.UUID) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

type MockScheduleRepository struct {
	mock.Mock
}

func (m *MockScheduleRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.SchedulePeriod, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SchedulePeriod), args.Error(1)
}

func (m *MockScheduleRepository) ReplaceFrom(ctx context.Context, loanID string, keep int, periods []*domain.SchedulePeriod) error {
	args := m.Called(ctx, loanID, keep, periods)
	return args.Error(0)
}

type MockRescheduleRequestRepository struct {
	mock.Mock
}

func (m *MockRescheduleRequestRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.RescheduleRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RescheduleRequest), args.Error(1)
}

func (m *MockRescheduleRequestRepository) MarkApproved(ctx context.Context, requestID string, approvedAt time.Time) error {
	args := m.Called(ctx, requestID, approvedAt)
	return args.Error(0)
}

type MockCapitalizedIncomeRepository struct {
	mock.Mock
}

func (m *MockCapitalizedIncomeRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.CapitalizedIncomeBalance, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CapitalizedIncomeBalance), args.Error(1)
}

func (m *MockCapitalizedIncomeRepository) SaveAll(ctx context.Context, balances []*domain.CapitalizedIncomeBalance) error {
	args := m.Called(ctx, balances)
	return args.Error(0)
}

func (m *MockCapitalizedIncomeRepository) DeleteByLoanID(ctx context.Context, loanID string) error {
	args := m.Called(ctx, loanID)
	return args.Error(0)
}
