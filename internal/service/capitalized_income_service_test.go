package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/segyhp/progressive-loan-engine/internal/mocks"
	"github.com/segyhp/progressive-loan-engine/internal/service"
	customError "github.com/segyhp/progressive-loan-engine/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type incomeMocks struct {
	loans     *mocks.MockLoanRepository
	txs       *mocks.MockTransactionRepository
	balances  *mocks.MockCapitalizedIncomeRepository
	publisher *mocks.MockPublisher
}

func newIncomeService() (*service.CapitalizedIncomeService, *incomeMocks) {
	m := &incomeMocks{
		loans:     new(mocks.MockLoanRepository),
		txs:       new(mocks.MockTransactionRepository),
		balances:  new(mocks.MockCapitalizedIncomeRepository),
		publisher: new(mocks.MockPublisher),
	}
	svc := service.NewCapitalizedIncomeService(m.loans, m.txs, m.balances, m.publisher, testConfig(), nil)
	return svc, m
}

func (m *incomeMocks) assertExpectations(t *testing.T) {
	m.loans.AssertExpectations(t)
	m.txs.AssertExpectations(t)
	m.balances.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func amortizationTx(amount string, date time.Time) interface{} {
	return mock.MatchedBy(func(tx *domain.Transaction) bool {
		return tx.Type == domain.TransactionCapitalizedIncomeAmortization &&
			tx.Amount.Equal(decimal.RequireFromString(amount)) &&
			tx.Date.Equal(date)
	})
}

func TestCapitalizedIncomeService_RunDailyAmortization(t *testing.T) {
	businessDate := day(2024, time.April, 1)
	closedOn := day(2024, time.July, 15)
	chargedOffOn := day(2024, time.June, 1)

	tests := []struct {
		name           string
		setupMocks     func(*incomeMocks)
		expectedCode   string
		expectedAmount string
		recorded       bool
	}{
		{
			name: "Success - One day of the remaining days until maturity",
			setupMocks: func(m *incomeMocks) {
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(newLoan("LOAN123", domain.LoanStatusActive), nil)
				m.txs.On("GetByLoanID", mock.Anything, "LOAN123").Return(disbursement("LOAN123"), nil)
				// 365 days from 2024-04-01 to the 2025-04-01 maturity
				m.balances.On("GetByLoanID", mock.Anything, "LOAN123").Return([]*domain.CapitalizedIncomeBalance{incomeBalance("LOAN123", "365")}, nil)
				m.txs.On("Create", mock.Anything, amortizationTx("1", businessDate)).Return(nil)
				m.balances.On("SaveAll", mock.Anything, mock.MatchedBy(func(bs []*domain.CapitalizedIncomeBalance) bool {
					return len(bs) == 1 && bs[0].UnrecognizedAmount.Equal(decimal.NewFromInt(364))
				})).Return(nil)
				m.publisher.On("PublishTransaction", mock.Anything, amortizationTx("1", businessDate)).Return(nil)
			},
			expectedAmount: "1",
			recorded:       true,
		},
		{
			name: "Success - Closed loan recognizes everything at its closure date",
			setupMocks: func(m *incomeMocks) {
				loan := newLoan("LOAN123", domain.LoanStatusClosedObligationsMet)
				loan.ClosedOn = &closedOn
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(loan, nil)
				m.txs.On("GetByLoanID", mock.Anything, "LOAN123").Return(disbursement("LOAN123"), nil)
				m.balances.On("GetByLoanID", mock.Anything, "LOAN123").Return([]*domain.CapitalizedIncomeBalance{
					incomeBalance("LOAN123", "120.50"), incomeBalance("LOAN123", "79.50"),
				}, nil)
				m.txs.On("Create", mock.Anything, amortizationTx("200", closedOn)).Return(nil)
				m.balances.On("SaveAll", mock.Anything, mock.MatchedBy(func(bs []*domain.CapitalizedIncomeBalance) bool {
					return bs[0].UnrecognizedAmount.IsZero() && bs[1].UnrecognizedAmount.IsZero()
				})).Return(nil)
				m.publisher.On("PublishTransaction", mock.Anything, amortizationTx("200", closedOn)).Return(nil)
			},
			expectedAmount: "200",
			recorded:       true,
		},
		{
			name: "Success - Charged-off loan recognizes nothing",
			setupMocks: func(m *incomeMocks) {
				loan := newLoan("LOAN123", domain.LoanStatusActive)
				loan.ChargedOffOn = &chargedOffOn
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(loan, nil)
				m.txs.On("GetByLoanID", mock.Anything, "LOAN123").Return(disbursement("LOAN123"), nil)
			},
			expectedAmount: "0",
		},
		{
			name: "Success - No balances",
			setupMocks: func(m *incomeMocks) {
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(newLoan("LOAN123", domain.LoanStatusActive), nil)
				m.txs.On("GetByLoanID", mock.Anything, "LOAN123").Return(disbursement("LOAN123"), nil)
				m.balances.On("GetByLoanID", mock.Anything, "LOAN123").Return([]*domain.CapitalizedIncomeBalance{}, nil)
			},
			expectedAmount: "0",
		},
		{
			name: "Failure - Closed loan without a closure date",
			setupMocks: func(m *incomeMocks) {
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(newLoan("LOAN123", domain.LoanStatusOverpaid), nil)
				m.txs.On("GetByLoanID", mock.Anything, "LOAN123").Return(disbursement("LOAN123"), nil)
				m.balances.On("GetByLoanID", mock.Anything, "LOAN123").Return([]*domain.CapitalizedIncomeBalance{incomeBalance("LOAN123", "10")}, nil)
			},
			expectedCode: customError.ErrCodeInconsistentState,
		},
		{
			name: "Failure - Loan not found",
			setupMocks: func(m *incomeMocks) {
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(nil, sql.ErrNoRows)
			},
			expectedCode: customError.ErrCodeLoanNotFound,
		},
		{
			name: "Failure - Publish error",
			setupMocks: func(m *incomeMocks) {
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(newLoan("LOAN123", domain.LoanStatusActive), nil)
				m.txs.On("GetByLoanID", mock.Anything, "LOAN123").Return(disbursement("LOAN123"), nil)
				m.balances.On("GetByLoanID", mock.Anything, "LOAN123").Return([]*domain.CapitalizedIncomeBalance{incomeBalance("LOAN123", "365")}, nil)
				m.txs.On("Create", mock.Anything, mock.Anything).Return(nil)
				m.balances.On("SaveAll", mock.Anything, mock.Anything).Return(nil)
				m.publisher.On("PublishTransaction", mock.Anything, mock.Anything).Return(errors.New("redis down"))
			},
			expectedCode: customError.ErrCodePublishError,
		},
		{
			name: "Failure - Database error on create",
			setupMocks: func(m *incomeMocks) {
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(newLoan("LOAN123", domain.LoanStatusActive), nil)
				m.txs.On("GetByLoanID", mock.Anything, "LOAN123").Return(disbursement("LOAN123"), nil)
				m.balances.On("GetByLoanID", mock.Anything, "LOAN123").Return([]*domain.CapitalizedIncomeBalance{incomeBalance("LOAN123", "365")}, nil)
				m.txs.On("Create", mock.Anything, mock.Anything).Return(errors.New("unique violation"))
			},
			expectedCode: customError.ErrCodeDatabaseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newIncomeService()
			tt.setupMocks(m)

			resp, err := svc.RunDailyAmortization(context.Background(), "LOAN123", businessDate)

			if tt.expectedCode != "" {
				assert.Nil(t, resp)
				assert.Equal(t, tt.expectedCode, customError.CodeOf(err))
			} else {
				require.NoError(t, err)
				assert.True(t, resp.Amount.Equal(decimal.RequireFromString(tt.expectedAmount)), "got %s", resp.Amount)
				assert.Equal(t, tt.recorded, resp.TransactionID != nil)
			}
			m.assertExpectations(t)
		})
	}
}

func TestCapitalizedIncomeService_ChargeOff(t *testing.T) {
	chargedOffOn := day(2024, time.June, 1)

	t.Run("Success - Recognizes and remembers the charged-off portion", func(t *testing.T) {
		svc, m := newIncomeService()
		loan := newLoan("LOAN123", domain.LoanStatusActive)
		loan.ChargedOffOn = &chargedOffOn
		b := incomeBalance("LOAN123", "300")
		b.UnrecognizedAmount = decimal.NewFromInt(120)

		m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(loan, nil)
		m.balances.On("GetByLoanID", mock.Anything, "LOAN123").Return([]*domain.CapitalizedIncomeBalance{b}, nil)
		m.txs.On("Create", mock.Anything, amortizationTx("120", chargedOffOn)).Return(nil)
		m.balances.On("SaveAll", mock.Anything, mock.Anything).Return(nil)
		m.publisher.On("PublishTransaction", mock.Anything, mock.Anything).Return(nil)

		resp, err := svc.AmortizeOnChargeOff(context.Background(), "LOAN123")

		require.NoError(t, err)
		assert.True(t, resp.Amount.Equal(decimal.NewFromInt(120)))
		assert.True(t, b.ChargedOffAmount.Equal(decimal.NewFromInt(120)))
		m.assertExpectations(t)
	})

	t.Run("Failure - Loan is not charged off", func(t *testing.T) {
		svc, m := newIncomeService()
		m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(newLoan("LOAN123", domain.LoanStatusActive), nil)

		_, err := svc.AmortizeOnChargeOff(context.Background(), "LOAN123")

		assert.True(t, errors.Is(err, customError.ErrInconsistentState))
		m.balances.AssertNotCalled(t, "GetByLoanID", mock.Anything, mock.Anything)
	})

	t.Run("Success - Undo reverses the charge-off amortization and restores the portion", func(t *testing.T) {
		svc, m := newIncomeService()
		loan := newLoan("LOAN123", domain.LoanStatusActive)
		loan.ChargedOffOn = &chargedOffOn
		b := incomeBalance("LOAN123", "300")
		b.UnrecognizedAmount = decimal.Zero
		b.ChargedOffAmount = decimal.NewFromInt(40)

		onChargeOff := domain.NewAmortizationTransaction("LOAN123", chargedOffOn, decimal.NewFromInt(40))
		daily := domain.NewAmortizationTransaction("LOAN123", day(2024, time.May, 31), decimal.NewFromInt(1))
		alreadyReversed := domain.NewAmortizationTransaction("LOAN123", chargedOffOn, decimal.NewFromInt(7))
		alreadyReversed.Reversed = true
		txs := append(disbursement("LOAN123"), *daily, *onChargeOff, *alreadyReversed)

		m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(loan, nil)
		m.balances.On("GetByLoanID", mock.Anything, "LOAN123").Return([]*domain.CapitalizedIncomeBalance{b}, nil)
		m.txs.On("GetByLoanID", mock.Anything, "LOAN123").Return(txs, nil)
		m.txs.On("Reverse", mock.Anything, []uuid.UUID{onChargeOff.ID}).Return(nil)
		m.publisher.On("PublishTransaction", mock.Anything, mock.MatchedBy(func(tx *domain.Transaction) bool {
			return tx.ID == onChargeOff.ID && tx.Reversed
		})).Return(nil).Once()
		m.balances.On("SaveAll", mock.Anything, mock.Anything).Return(nil)

		resp, err := svc.UndoChargeOff(context.Background(), "LOAN123")

		require.NoError(t, err)
		assert.True(t, resp.Amount.Equal(decimal.NewFromInt(40)))
		assert.Nil(t, resp.TransactionID)
		assert.True(t, b.UnrecognizedAmount.Equal(decimal.NewFromInt(40)))
		m.assertExpectations(t)
	})

	t.Run("Success - Undo without amortization on the charge-off date", func(t *testing.T) {
		svc, m := newIncomeService()
		loan := newLoan("LOAN123", domain.LoanStatusActive)
		loan.ChargedOffOn = &chargedOffOn
		b := incomeBalance("LOAN123", "300")
		b.ChargedOffAmount = decimal.Zero

		m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(loan, nil)
		m.balances.On("GetByLoanID", mock.Anything, "LOAN123").Return([]*domain.CapitalizedIncomeBalance{b}, nil)
		m.txs.On("GetByLoanID", mock.Anything, "LOAN123").Return(disbursement("LOAN123"), nil)

		resp, err := svc.UndoChargeOff(context.Background(), "LOAN123")

		require.NoError(t, err)
		assert.True(t, resp.Amount.IsZero())
		m.txs.AssertNotCalled(t, "Reverse", mock.Anything, mock.Anything)
		m.publisher.AssertNotCalled(t, "PublishTransaction", mock.Anything, mock.Anything)
		m.balances.AssertNotCalled(t, "SaveAll", mock.Anything, mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("Failure - Undo on a loan that is not charged off", func(t *testing.T) {
		svc, m := newIncomeService()
		m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(newLoan("LOAN123", domain.LoanStatusActive), nil)

		_, err := svc.UndoChargeOff(context.Background(), "LOAN123")

		assert.Equal(t, customError.ErrCodeInconsistentState, customError.CodeOf(err))
		m.txs.AssertNotCalled(t, "Reverse", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Database error on reverse", func(t *testing.T) {
		svc, m := newIncomeService()
		loan := newLoan("LOAN123", domain.LoanStatusActive)
		loan.ChargedOffOn = &chargedOffOn
		onChargeOff := domain.NewAmortizationTransaction("LOAN123", chargedOffOn, decimal.NewFromInt(40))

		m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(loan, nil)
		m.balances.On("GetByLoanID", mock.Anything, "LOAN123").Return([]*domain.CapitalizedIncomeBalance{incomeBalance("LOAN123", "300")}, nil)
		m.txs.On("GetByLoanID", mock.Anything, "LOAN123").Return([]domain.Transaction{*onChargeOff}, nil)
		m.txs.On("Reverse", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		_, err := svc.UndoChargeOff(context.Background(), "LOAN123")

		assert.Equal(t, customError.ErrCodeDatabaseError, customError.CodeOf(err))
		m.publisher.AssertNotCalled(t, "PublishTransaction", mock.Anything, mock.Anything)
		m.balances.AssertNotCalled(t, "SaveAll", mock.Anything, mock.Anything)
	})
}

func TestCapitalizedIncomeService_HandleStatusTransition(t *testing.T) {
	closedOn := day(2024, time.July, 15)

	tests := []struct {
		name           string
		oldStatus      domain.LoanStatus
		newStatus      domain.LoanStatus
		setupMocks     func(*incomeMocks)
		expectedCode   string
		expectedAmount string
	}{
		{
			name:      "Success - Approved again resets the balances",
			oldStatus: domain.LoanStatusActive,
			newStatus: domain.LoanStatusApproved,
			setupMocks: func(m *incomeMocks) {
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(newLoan("LOAN123", domain.LoanStatusApproved), nil)
				m.balances.On("DeleteByLoanID", mock.Anything, "LOAN123").Return(nil)
			},
			expectedAmount: "0",
		},
		{
			name:      "Success - First approval keeps the balances",
			oldStatus: domain.LoanStatusSubmittedPendingApproval,
			newStatus: domain.LoanStatusApproved,
			setupMocks: func(m *incomeMocks) {
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(newLoan("LOAN123", domain.LoanStatusApproved), nil)
			},
			expectedAmount: "0",
		},
		{
			name:      "Success - Closing recognizes what is left",
			oldStatus: domain.LoanStatusActive,
			newStatus: domain.LoanStatusClosedObligationsMet,
			setupMocks: func(m *incomeMocks) {
				loan := newLoan("LOAN123", domain.LoanStatusClosedObligationsMet)
				loan.ClosedOn = &closedOn
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(loan, nil)
				m.balances.On("GetByLoanID", mock.Anything, "LOAN123").Return([]*domain.CapitalizedIncomeBalance{incomeBalance("LOAN123", "50")}, nil)
				m.txs.On("Create", mock.Anything, amortizationTx("50", closedOn)).Return(nil)
				m.balances.On("SaveAll", mock.Anything, mock.Anything).Return(nil)
				m.publisher.On("PublishTransaction", mock.Anything, mock.Anything).Return(nil)
			},
			expectedAmount: "50",
		},
		{
			name:      "Failure - Stored status differs from the transition",
			oldStatus: domain.LoanStatusActive,
			newStatus: domain.LoanStatusClosedObligationsMet,
			setupMocks: func(m *incomeMocks) {
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(newLoan("LOAN123", domain.LoanStatusActive), nil)
			},
			expectedCode: customError.ErrCodeInconsistentState,
		},
		{
			name:      "Failure - Database error on reset",
			oldStatus: domain.LoanStatusActive,
			newStatus: domain.LoanStatusApproved,
			setupMocks: func(m *incomeMocks) {
				m.loans.On("GetByLoanID", mock.Anything, "LOAN123").Return(newLoan("LOAN123", domain.LoanStatusApproved), nil)
				m.balances.On("DeleteByLoanID", mock.Anything, "LOAN123").Return(errors.New("connection reset"))
			},
			expectedCode: customError.ErrCodeDatabaseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newIncomeService()
			tt.setupMocks(m)

			resp, err := svc.HandleStatusTransition(context.Background(), "LOAN123", tt.oldStatus, tt.newStatus)

			if tt.expectedCode != "" {
				assert.Nil(t, resp)
				assert.Equal(t, tt.expectedCode, customError.CodeOf(err))
			} else {
				require.NoError(t, err)
				assert.True(t, resp.Amount.Equal(decimal.RequireFromString(tt.expectedAmount)), "got %s", resp.Amount)
			}
			m.assertExpectations(t)
		})
	}
}
