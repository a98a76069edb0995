package mocks

import (
	"context"
	"time"

	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockScheduleService struct {
	mock.Mock
}

func (m *MockScheduleService) Generate(ctx context.Context, loanID string) (*domain.GenerateScheduleResponse, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerateScheduleResponse), args.Error(1)
}

func (m *MockScheduleService) GetSchedule(ctx context.Context, loanID string) (*domain.ScheduleResponse, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Error(1)
}

func (m *MockScheduleService) PreviewReschedule(ctx context.Context, requestID string) (*domain.GenerateScheduleResponse, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerateScheduleResponse), args.Error(1)
}

func (m *MockScheduleService) ApplyReschedule(ctx context.Context, requestID string) (*domain.GenerateScheduleResponse, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerateScheduleResponse), args.Error(1)
}

type MockCapitalizedIncomeService struct {
	mock.Mock
}

func (m *MockCapitalizedIncomeService) amortization(args mock.Arguments) (*domain.AmortizationResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AmortizationResponse), args.Error(1)
}

func (m *MockCapitalizedIncomeService) RunDailyAmortization(ctx context.Context, loanID string, businessDate time.Time) (*domain.AmortizationResponse, error) {
	return m.amortization(m.Called(ctx, loanID, businessDate))
}

func (m *MockCapitalizedIncomeService) AmortizeOnClosure(ctx context.Context, loanID string) (*domain.AmortizationResponse, error) {
	return m.amortization(m.Called(ctx, loanID))
}

func (m *MockCapitalizedIncomeService) AmortizeOnChargeOff(ctx context.Context, loanID string) (*domain.AmortizationResponse, error) {
	return m.amortization(m.Called(ctx, loanID))
}

func (m *MockCapitalizedIncomeService) UndoChargeOff(ctx context.Context, loanID string) (*domain.AmortizationResponse, error) {
	return m.amortization(m.Called(ctx, loanID))
}

func (m *MockCapitalizedIncomeService) HandleStatusTransition(ctx context.Context, loanID string, oldStatus, newStatus domain.LoanStatus) (*domain.AmortizationResponse, error) {
	return m.amortization(m.Called(ctx, loanID, oldStatus, newStatus))
}
