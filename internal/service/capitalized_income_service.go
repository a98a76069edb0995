package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/progressive-loan-engine/internal/calc"
	"github.com/segyhp/progressive-loan-engine/internal/config"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/segyhp/progressive-loan-engine/internal/events"
	"github.com/segyhp/progressive-loan-engine/internal/repository"
	customError "github.com/segyhp/progressive-loan-engine/pkg/errors"
	"github.com/segyhp/progressive-loan-engine/pkg/money"
	"github.com/segyhp/progressive-loan-engine/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CapitalizedIncomeService recognizes capitalized income and records the
// resulting amortization transactions.
type CapitalizedIncomeService struct {
	loanRepo        repository.LoanRepository
	transactionRepo repository.TransactionRepository
	balanceRepo     repository.CapitalizedIncomeRepository
	publisher       events.Publisher
	generator       *calc.Generator
	config          *config.Config
	logger          *zap.Logger
}

func NewCapitalizedIncomeService(
	loanRepo repository.LoanRepository,
	transactionRepo repository.TransactionRepository,
	balanceRepo repository.CapitalizedIncomeRepository,
	publisher events.Publisher,
	config *config.Config,
	logger *zap.Logger,
) *CapitalizedIncomeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapitalizedIncomeService{
		loanRepo:        loanRepo,
		transactionRepo: transactionRepo,
		balanceRepo:     balanceRepo,
		publisher:       publisher,
		generator:       calc.NewGenerator(logger),
		config:          config,
		logger:          logger,
	}
}

// RunDailyAmortization is the close-of-business step of one loan. Closed
// loans recognize everything left at their closure date; charged-off loans
// have nothing left to recognize.
func (s *CapitalizedIncomeService) RunDailyAmortization(ctx context.Context, loanID string, businessDate time.Time) (*domain.AmortizationResponse, error) {
	snapshot, err := loadSnapshot(ctx, s.loanRepo, s.transactionRepo, s.config, loanID, businessDate)
	if err != nil {
		return nil, err
	}
	loan := snapshot.Loan
	if loan.Status.IsClosed() {
		return s.amortizeOnClosure(ctx, loan)
	}
	if loan.ChargedOffOn != nil {
		return &domain.AmortizationResponse{LoanID: loanID, Amount: decimal.Zero}, nil
	}

	balances, err := s.balances(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if len(balances) == 0 {
		return &domain.AmortizationResponse{LoanID: loanID, Amount: decimal.Zero}, nil
	}

	schedule, err := s.generator.Generate(*snapshot)
	if err != nil {
		return nil, err
	}
	amortizer, err := calc.AmortizerFor(loan.LoanTerms, s.logger)
	if err != nil {
		return nil, err
	}
	strategy, err := calc.StrategyFor(loan.CapitalizedIncomeStrategy)
	if err != nil {
		return nil, err
	}

	total := amortizer.AmortizeDaily(balances, snapshot.BusinessDate, schedule.MaturityDate(), strategy)
	return s.record(ctx, loanID, snapshot.BusinessDate, total, balances)
}

// AmortizeOnClosure recognizes the whole remaining income of a closed loan.
func (s *CapitalizedIncomeService) AmortizeOnClosure(ctx context.Context, loanID string) (*domain.AmortizationResponse, error) {
	loan, err := s.loan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return s.amortizeOnClosure(ctx, *loan)
}

func (s *CapitalizedIncomeService) amortizeOnClosure(ctx context.Context, loan domain.Loan) (*domain.AmortizationResponse, error) {
	balances, err := s.balances(ctx, loan.LoanID)
	if err != nil {
		return nil, err
	}
	amortizer, err := calc.AmortizerFor(loan.LoanTerms, s.logger)
	if err != nil {
		return nil, err
	}

	total, date, err := amortizer.AmortizeOnClosure(loan, balances)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, loan.LoanID, date, total, balances)
}

// AmortizeOnChargeOff recognizes everything left at the charge-off date and
// remembers the charged-off portion of every balance.
func (s *CapitalizedIncomeService) AmortizeOnChargeOff(ctx context.Context, loanID string) (*domain.AmortizationResponse, error) {
	loan, err := s.loan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.ChargedOffOn == nil {
		return nil, customError.WrapInconsistentState("loan %s is not charged off", loanID)
	}

	balances, err := s.balances(ctx, loanID)
	if err != nil {
		return nil, err
	}
	amortizer, err := calc.AmortizerFor(loan.LoanTerms, s.logger)
	if err != nil {
		return nil, err
	}

	total := amortizer.AmortizeOnChargeOff(balances)
	return s.record(ctx, loanID, utils.DateOnly(*loan.ChargedOffOn), total, balances)
}

// UndoChargeOff reverses the amortization recognized on the charge-off date
// and puts the charged-off portion back to be recognized again.
func (s *CapitalizedIncomeService) UndoChargeOff(ctx context.Context, loanID string) (*domain.AmortizationResponse, error) {
	loan, err := s.loan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.ChargedOffOn == nil {
		return nil, customError.WrapInconsistentState("loan %s is not charged off", loanID)
	}
	balances, err := s.balances(ctx, loanID)
	if err != nil {
		return nil, err
	}
	amortizer, err := calc.AmortizerFor(loan.LoanTerms, s.logger)
	if err != nil {
		return nil, err
	}

	if err := s.reverseAmortizationOn(ctx, loanID, utils.DateOnly(*loan.ChargedOffOn)); err != nil {
		return nil, err
	}

	restored := amortizer.UndoChargeOff(balances)
	if restored.IsPositive() {
		if err := s.balanceRepo.SaveAll(ctx, balances); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
	}
	return &domain.AmortizationResponse{LoanID: loanID, Amount: restored.Amount()}, nil
}

// reverseAmortizationOn reverses the live amortization transactions dated
// date and publishes each of them as reversed.
func (s *CapitalizedIncomeService) reverseAmortizationOn(ctx context.Context, loanID string, date time.Time) error {
	txs, err := s.transactionRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	var reversed []domain.Transaction
	for _, tx := range txs {
		if tx.Type == domain.TransactionCapitalizedIncomeAmortization && !tx.Reversed && utils.DateOnly(tx.Date).Equal(date) {
			tx.Reversed = true
			reversed = append(reversed, tx)
		}
	}
	if len(reversed) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(reversed))
	for i, tx := range reversed {
		ids[i] = tx.ID
	}
	if err := s.transactionRepo.Reverse(ctx, ids); err != nil {
		return customError.WrapDatabaseError(err)
	}
	for i := range reversed {
		if err := s.publisher.PublishTransaction(ctx, &reversed[i]); err != nil {
			return customError.WrapPublishError(err)
		}
	}

	s.logger.Info("charge-off amortization reversed",
		zap.String("op", "service.UndoChargeOff"),
		zap.String("loan_id", loanID),
		zap.String("date", utils.FormatDate(date)),
		zap.Int("count", len(reversed)),
	)
	return nil
}

// HandleStatusTransition is run by the workflow after a loan changed status.
// A loan approved again from any status other than pending approval starts
// with fresh balances; a loan entering a closed status recognizes what is left.
func (s *CapitalizedIncomeService) HandleStatusTransition(ctx context.Context, loanID string, oldStatus, newStatus domain.LoanStatus) (*domain.AmortizationResponse, error) {
	loan, err := s.loan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != newStatus {
		return nil, customError.WrapInconsistentState("loan %s is %s, expected %s", loanID, loan.Status, newStatus)
	}

	if calc.ShouldResetBalances(oldStatus, newStatus) {
		if err := s.balanceRepo.DeleteByLoanID(ctx, loanID); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		s.logger.Debug("capitalized income balances reset",
			zap.String("op", "service.HandleStatusTransition"),
			zap.String("loan_id", loanID),
			zap.String("old_status", string(oldStatus)),
		)
	}

	if newStatus.IsClosed() && !oldStatus.IsClosed() {
		return s.amortizeOnClosure(ctx, *loan)
	}
	return &domain.AmortizationResponse{LoanID: loanID, Amount: decimal.Zero}, nil
}

// record stores the balances and, for a positive amount, the amortization
// transaction, then publishes it.
func (s *CapitalizedIncomeService) record(ctx context.Context, loanID string, date time.Time, total money.Money, balances []*domain.CapitalizedIncomeBalance) (*domain.AmortizationResponse, error) {
	resp := &domain.AmortizationResponse{LoanID: loanID, Amount: total.Amount()}
	if !total.IsPositive() {
		return resp, nil
	}

	tx := domain.NewAmortizationTransaction(loanID, date, total.Amount())
	if err := s.transactionRepo.Create(ctx, tx); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if err := s.balanceRepo.SaveAll(ctx, balances); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if err := s.publisher.PublishTransaction(ctx, tx); err != nil {
		return nil, customError.WrapPublishError(err)
	}
	resp.TransactionID = &tx.ID

	s.logger.Info("capitalized income amortized",
		zap.String("op", "service.record"),
		zap.String("loan_id", loanID),
		zap.String("date", utils.FormatDate(date)),
		zap.String("amount", total.Amount().String()),
	)
	return resp, nil
}

func (s *CapitalizedIncomeService) loan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.loanRepo.GetByLoanID(ctx, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(loanID)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if s.config != nil {
		s.config.ApplyDefaults(&loan.LoanTerms)
	}
	return loan, nil
}

func (s *CapitalizedIncomeService) balances(ctx context.Context, loanID string) ([]*domain.CapitalizedIncomeBalance, error) {
	balances, err := s.balanceRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return balances, nil
}
