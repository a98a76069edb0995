package repository

import (
	"context"
	"time"

	"github.com/segyhp/progressive-loan-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

const loanColumns = `
	id, loan_id, status, principal, annual_interest_rate, day_count, expected_disbursement_date,
	first_repayment_date, number_of_installments, repayment_every, repayment_frequency, emi_method,
	currency_code, currency_digits, precision, rounding_mode, capitalized_income_strategy,
	closed_on, overpaid_on, written_off_on, charged_off_on, created_at, updated_at`

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE loan_id = $1`

	var loan domain.Loan
	if err := r.db.GetContext(ctx, &loan, query, loanID); err != nil {
		return nil, err
	}

	variations := []domain.TermVariation{}
	err := r.db.SelectContext(ctx, &variations, `
		SELECT id, loan_id, type, applicable_from, date_value, decimal_value, end_date, count
		FROM loan_term_variations
		WHERE loan_id = $1
		ORDER BY applicable_from, id
	`, loanID)
	if err != nil {
		return nil, err
	}
	loan.TermVariations = variations

	return &loan, nil
}

func (r *loanRepository) UpdateStatus(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET status = $2, closed_on = $3, overpaid_on = $4, written_off_on = $5, charged_off_on = $6, updated_at = $7
		WHERE loan_id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		loan.LoanID,
		loan.Status,
		loan.ClosedOn,
		loan.OverpaidOn,
		loan.WrittenOffOn,
		loan.ChargedOffOn,
		time.Now(),
	)

	return err
}

func (r *loanRepository) ReplaceTermVariations(ctx context.Context, loanID string, variations []domain.TermVariation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM loan_term_variations WHERE loan_id = $1`, loanID); err != nil {
		return err
	}

	query := `
		INSERT INTO loan_term_variations (id, loan_id, type, applicable_from, date_value, decimal_value, end_date, count)
		VALUES (:id, :loan_id, :type, :applicable_from, :date_value, :decimal_value, :end_date, :count)
	`
	for _, v := range variations {
		v.LoanID = loanID
		if _, err = tx.NamedExecContext(ctx, query, v); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *loanRepository) ListActiveLoanIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT loan_id
		FROM loans
		WHERE status IN ($1, $2, $3, $4)
		ORDER BY loan_id
	`

	var ids []string
	err := r.db.SelectContext(ctx, &ids, query,
		domain.LoanStatusActive,
		domain.LoanStatusClosedObligationsMet,
		domain.LoanStatusOverpaid,
		domain.LoanStatusClosedWrittenOff,
	)
	if err != nil {
		return nil, err
	}

	return ids, nil
}
