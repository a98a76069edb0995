package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RescheduleStatusPending  = "pending"
	RescheduleStatusApproved = "approved"
)

// RescheduleRequest asks for the schedule to be regenerated from a cut-off date
// with a new set of term variations.
type RescheduleRequest struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	RequestID          string          `json:"request_id" db:"request_id"`
	LoanID             string          `json:"loan_id" db:"loan_id"`
	RescheduleFromDate time.Time       `json:"reschedule_from_date" db:"reschedule_from_date"`
	Status             string          `json:"status" db:"status"`
	TermVariations     []TermVariation `json:"term_variations" db:"-"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
}
