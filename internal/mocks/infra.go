package mocks

import (
	"context"

	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockScheduleCache struct {
	mock.Mock
}

func (m *MockScheduleCache) Get(ctx context.Context, loanID string) ([]*domain.SchedulePeriod, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SchedulePeriod), args.Error(1)
}

func (m *MockScheduleCache) Set(ctx context.Context, loanID string, periods []*domain.SchedulePeriod) error {
	args := m.Called(ctx, loanID, periods)
	return args.Error(0)
}

func (m *MockScheduleCache) Invalidate(ctx context.Context, loanID string) error {
	args := m.Called(ctx, loanID)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishTransaction(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}
