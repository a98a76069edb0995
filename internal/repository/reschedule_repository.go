package repository

import (
	"context"
	"time"

	"github.com/segyhp/progressive-loan-engine/internal/domain"

	"github.com/jmoiron/sqlx"
)

type rescheduleRequestRepository struct {
	db *sqlx.DB
}

func NewRescheduleRequestRepository(db *sqlx.DB) RescheduleRequestRepository {
	return &rescheduleRequestRepository{db: db}
}

func (r *rescheduleRequestRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.RescheduleRequest, error) {
	query := `
		SELECT id, request_id, loan_id, reschedule_from_date, status, created_at, approved_at
		FROM loan_reschedule_requests
		WHERE request_id = $1
	`

	var request domain.RescheduleRequest
	if err := r.db.GetContext(ctx, &request, query, requestID); err != nil {
		return nil, err
	}

	variations := []domain.TermVariation{}
	err := r.db.SelectContext(ctx, &variations, `
		SELECT id, loan_id, type, applicable_from, date_value, decimal_value, end_date, count
		FROM loan_reschedule_request_variations
		WHERE request_id = $1
		ORDER BY applicable_from, id
	`, requestID)
	if err != nil {
		return nil, err
	}
	request.TermVariations = variations

	return &request, nil
}

func (r *rescheduleRequestRepository) MarkApproved(ctx context.Context, requestID string, approvedAt time.Time) error {
	query := `
		UPDATE loan_reschedule_requests
		SET status = $2, approved_at = $3
		WHERE request_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, requestID, domain.RescheduleStatusApproved, approvedAt)
	return err
}
