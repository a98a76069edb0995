package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/progressive-loan-engine/internal/cache"
	"github.com/segyhp/progressive-loan-engine/internal/calc"
	"github.com/segyhp/progressive-loan-engine/internal/config"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/segyhp/progressive-loan-engine/internal/repository"
	customError "github.com/segyhp/progressive-loan-engine/pkg/errors"
	"github.com/segyhp/progressive-loan-engine/pkg/utils"
	"go.uber.org/zap"
)

type ScheduleService struct {
	loanRepo        repository.LoanRepository
	transactionRepo repository.TransactionRepository
	scheduleRepo    repository.ScheduleRepository
	requestRepo     repository.RescheduleRequestRepository
	cache           cache.ScheduleCache
	generator       *calc.Generator
	rescheduler     *calc.Rescheduler
	config          *config.Config
	logger          *zap.Logger
}

func NewScheduleService(
	loanRepo repository.LoanRepository,
	transactionRepo repository.TransactionRepository,
	scheduleRepo repository.ScheduleRepository,
	requestRepo repository.RescheduleRequestRepository,
	scheduleCache cache.ScheduleCache,
	config *config.Config,
	logger *zap.Logger,
) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	generator := calc.NewGenerator(logger)
	return &ScheduleService{
		loanRepo:        loanRepo,
		transactionRepo: transactionRepo,
		scheduleRepo:    scheduleRepo,
		requestRepo:     requestRepo,
		cache:           scheduleCache,
		generator:       generator,
		rescheduler:     calc.NewRescheduler(generator, logger),
		config:          config,
		logger:          logger,
	}
}

// Snapshot materializes everything a recalculation pass needs.
func (s *ScheduleService) Snapshot(ctx context.Context, loanID string, businessDate time.Time) (*domain.LoanSnapshot, error) {
	return loadSnapshot(ctx, s.loanRepo, s.transactionRepo, s.config, loanID, businessDate)
}

func loadSnapshot(
	ctx context.Context,
	loanRepo repository.LoanRepository,
	transactionRepo repository.TransactionRepository,
	cfg *config.Config,
	loanID string,
	businessDate time.Time,
) (*domain.LoanSnapshot, error) {
	loan, err := loanRepo.GetByLoanID(ctx, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(loanID)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	txs, err := transactionRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	if cfg != nil {
		cfg.ApplyDefaults(&loan.LoanTerms)
	}
	return &domain.LoanSnapshot{
		Loan:         *loan,
		Transactions: txs,
		BusinessDate: utils.DateOnly(businessDate),
	}, nil
}

// Generate rebuilds the whole schedule of a loan and stores it.
func (s *ScheduleService) Generate(ctx context.Context, loanID string) (*domain.GenerateScheduleResponse, error) {
	snapshot, err := s.Snapshot(ctx, loanID, time.Now())
	if err != nil {
		return nil, err
	}

	schedule, err := s.generator.Generate(*snapshot)
	if err != nil {
		return nil, err
	}

	periods := schedule.ToSchedulePeriods()
	if err := s.scheduleRepo.ReplaceFrom(ctx, loanID, 0, periods); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	s.cacheSchedule(ctx, loanID, periods)

	return &domain.GenerateScheduleResponse{
		LoanID:   loanID,
		State:    string(schedule.State()),
		Schedule: periods,
	}, nil
}

// GetSchedule returns the stored schedule, from the cache when possible.
func (s *ScheduleService) GetSchedule(ctx context.Context, loanID string) (*domain.ScheduleResponse, error) {
	periods, err := s.cache.Get(ctx, loanID)
	if err == nil {
		return &domain.ScheduleResponse{LoanID: loanID, Schedule: periods}, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("schedule cache read failed",
			zap.String("op", "service.GetSchedule"),
			zap.String("loan_id", loanID),
			zap.Error(err),
		)
	}

	periods, err = s.scheduleRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if len(periods) == 0 {
		return nil, customError.WrapScheduleNotFound(loanID)
	}
	s.cacheSchedule(ctx, loanID, periods)

	return &domain.ScheduleResponse{LoanID: loanID, Schedule: periods}, nil
}

// PreviewReschedule computes the schedule a reschedule request would produce
// without storing anything.
func (s *ScheduleService) PreviewReschedule(ctx context.Context, requestID string) (*domain.GenerateScheduleResponse, error) {
	_, schedule, err := s.reschedule(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return &domain.GenerateScheduleResponse{
		LoanID:   schedule.LoanID(),
		State:    string(schedule.State()),
		Schedule: schedule.ToSchedulePeriods(),
	}, nil
}

// ApplyReschedule regenerates the schedule from the request's cut-off date and
// stores the installments after it together with the resolved term variations.
func (s *ScheduleService) ApplyReschedule(ctx context.Context, requestID string) (*domain.GenerateScheduleResponse, error) {
	request, schedule, err := s.reschedule(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status == domain.RescheduleStatusApproved {
		return nil, customError.WrapInvalidRequest(fmt.Errorf("reschedule request %s is already applied", requestID))
	}

	loanID := schedule.LoanID()
	periods := schedule.ToSchedulePeriods()
	if err := s.scheduleRepo.ReplaceFrom(ctx, loanID, schedule.Frozen(), periods); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	variations := schedule.Terms().TermVariations
	for i := range variations {
		if variations[i].ID == uuid.Nil {
			variations[i].ID = uuid.New()
		}
	}
	if err := s.loanRepo.ReplaceTermVariations(ctx, loanID, variations); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if err := s.requestRepo.MarkApproved(ctx, requestID, time.Now().UTC()); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	if err := s.cache.Invalidate(ctx, loanID); err != nil {
		s.logger.Warn("schedule cache invalidation failed",
			zap.String("op", "service.ApplyReschedule"),
			zap.String("loan_id", loanID),
			zap.Error(err),
		)
	}

	s.logger.Info("reschedule applied",
		zap.String("op", "service.ApplyReschedule"),
		zap.String("loan_id", loanID),
		zap.String("request_id", requestID),
		zap.Int("frozen_periods", schedule.Frozen()),
	)

	return &domain.GenerateScheduleResponse{
		LoanID:   loanID,
		State:    string(schedule.State()),
		Schedule: periods,
	}, nil
}

func (s *ScheduleService) reschedule(ctx context.Context, requestID string) (*domain.RescheduleRequest, *calc.Schedule, error) {
	request, err := s.requestRepo.GetByRequestID(ctx, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, customError.WrapRescheduleRequestNotFound(requestID)
	}
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	snapshot, err := s.Snapshot(ctx, request.LoanID, time.Now())
	if err != nil {
		return nil, nil, err
	}

	// the current schedule is rebuilt from the snapshot rather than read back,
	// generation being deterministic for an unchanged snapshot
	existing, err := s.generator.Generate(*snapshot)
	if err != nil {
		return nil, nil, err
	}

	schedule, err := s.rescheduler.Reschedule(existing, *snapshot, *request)
	if err != nil {
		return nil, nil, err
	}
	return request, schedule, nil
}

func (s *ScheduleService) cacheSchedule(ctx context.Context, loanID string, periods []*domain.SchedulePeriod) {
	if err := s.cache.Set(ctx, loanID, periods); err != nil {
		s.logger.Warn("schedule cache write failed",
			zap.String("op", "service.cacheSchedule"),
			zap.String("loan_id", loanID),
			zap.Error(err),
		)
	}
}
