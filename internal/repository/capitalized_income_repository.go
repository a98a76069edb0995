package repository

import (
	"context"
	"time"

	"github.com/segyhp/progressive-loan-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

type capitalizedIncomeRepository struct {
	db *sqlx.DB
}

func NewCapitalizedIncomeRepository(db *sqlx.DB) CapitalizedIncomeRepository {
	return &capitalizedIncomeRepository{db: db}
}

func (r *capitalizedIncomeRepository) GetByLoanID(ctx context.Context, loanID string) ([]*domain.CapitalizedIncomeBalance, error) {
	query := `
		SELECT id, loan_id, transaction_id, balance_date, amount, unrecognized_amount, charged_off_amount, deleted, updated_at
		FROM loan_capitalized_income_balances
		WHERE loan_id = $1 AND deleted = FALSE
		ORDER BY balance_date, id
	`

	var balances []*domain.CapitalizedIncomeBalance
	if err := r.db.SelectContext(ctx, &balances, query, loanID); err != nil {
		return nil, err
	}

	return balances, nil
}

func (r *capitalizedIncomeRepository) SaveAll(ctx context.Context, balances []*domain.CapitalizedIncomeBalance) error {
	query := `
		UPDATE loan_capitalized_income_balances
		SET unrecognized_amount = $2, charged_off_amount = $3, updated_at = $4
		WHERE id = $1
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, b := range balances {
		if _, err = tx.ExecContext(ctx, query, b.ID, b.UnrecognizedAmount, b.ChargedOffAmount, now); err != nil {
			return err
		}
		b.UpdatedAt = now
	}

	return tx.Commit()
}

func (r *capitalizedIncomeRepository) DeleteByLoanID(ctx context.Context, loanID string) error {
	query := `
		UPDATE loan_capitalized_income_balances
		SET deleted = TRUE, updated_at = $2
		WHERE loan_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, loanID, time.Now())
	return err
}
