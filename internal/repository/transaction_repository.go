package repository

import (
	"context"

	"github.com/segyhp/progressive-loan-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type transactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) GetByLoanID(ctx context.Context, loanID string) ([]domain.Transaction, error) {
	query := `
		SELECT id, loan_id, type, transaction_date, amount, principal_portion, interest_portion, reversed, created_at
		FROM loan_transactions
		WHERE loan_id = $1
		ORDER BY transaction_date, created_at
	`

	txs := []domain.Transaction{}
	if err := r.db.SelectContext(ctx, &txs, query, loanID); err != nil {
		return nil, err
	}

	return txs, nil
}

func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO loan_transactions (id, loan_id, type, transaction_date, amount, principal_portion, interest_portion, reversed, created_at)
		VALUES (:id, :loan_id, :type, :transaction_date, :amount, :principal_portion, :interest_portion, :reversed, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, tx)
	return err
}

func (r *transactionRepository) Reverse(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE loan_transactions
		SET reversed = TRUE
		WHERE id = ANY($1::uuid[])
	`

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	_, err := r.db.ExecContext(ctx, query, pq.Array(keys))
	return err
}
