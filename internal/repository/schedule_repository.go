package repository

import (
	"context"

	"github.com/segyhp/progressive-loan-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

type scheduleRepository struct {
	db *sqlx.DB
}

func NewScheduleRepository(db *sqlx.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.SchedulePeriod, error) {
	query := `
		SELECT id, loan_id, installment_number, from_date, due_date, emi, due_principal, paid_principal,
		       due_interest, paid_interest, outstanding_balance, interest_periods, created_at
		FROM loan_repayment_schedule
		WHERE loan_id = $1
		ORDER BY installment_number
	`

	var periods []*domain.SchedulePeriod
	if err := r.db.SelectContext(ctx, &periods, query, loanID); err != nil {
		return nil, err
	}

	return periods, nil
}

func (r *scheduleRepository) ReplaceFrom(ctx context.Context, loanID string, keep int, periods []*domain.SchedulePeriod) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM loan_repayment_schedule WHERE loan_id = $1 AND installment_number > $2`,
		loanID, keep,
	)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO loan_repayment_schedule (id, loan_id, installment_number, from_date, due_date, emi, due_principal,
			paid_principal, due_interest, paid_interest, outstanding_balance, interest_periods, created_at)
		VALUES (:id, :loan_id, :installment_number, :from_date, :due_date, :emi, :due_principal,
			:paid_principal, :due_interest, :paid_interest, :outstanding_balance, :interest_periods, :created_at)
	`
	for _, period := range periods {
		if period.InstallmentNumber <= keep {
			continue
		}
		if _, err = tx.NamedExecContext(ctx, query, period); err != nil {
			return err
		}
	}

	return tx.Commit()
}
