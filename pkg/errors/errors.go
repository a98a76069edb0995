package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrLoanNotFound              = errors.New("loan not found")
	ErrRescheduleRequestNotFound = errors.New("reschedule request not found")
	ErrScheduleNotFound          = errors.New("schedule not found")
	ErrInvalidLoanTerms          = errors.New("invalid loan terms")
	ErrInvalidTransaction        = errors.New("invalid transaction")
	ErrInconsistentState         = errors.New("inconsistent state")
	ErrInvalidRequest            = errors.New("invalid request")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidLoanTerms          = "INVALID_LOAN_TERMS"
	ErrCodeInvalidTransaction        = "INVALID_TRANSACTION"
	ErrCodeLoanNotFound              = "LOAN_NOT_FOUND"
	ErrCodeRescheduleRequestNotFound = "RESCHEDULE_REQUEST_NOT_FOUND"
	ErrCodeScheduleNotFound          = "SCHEDULE_NOT_FOUND"
	ErrCodeInconsistentState         = "INCONSISTENT_STATE"
	ErrCodeDatabaseError             = "DATABASE_ERROR"
	ErrCodeCacheError                = "CACHE_ERROR"
	ErrCodeInvalidRequest            = "INVALID_REQUEST"
	ErrCodePublishError              = "PUBLISH_ERROR"
)

// Wrap common errors with business context
func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapRescheduleRequestNotFound(requestID string) *BusinessError {
	return NewBusinessError(
		ErrCodeRescheduleRequestNotFound,
		fmt.Sprintf("Reschedule request with ID %s not found", requestID),
		ErrRescheduleRequestNotFound,
	)
}

func WrapScheduleNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeScheduleNotFound,
		fmt.Sprintf("No schedule generated for loan %s", loanID),
		ErrScheduleNotFound,
	)
}

// WrapInvalidLoanTerms reports terms rejected before generation.
func WrapInvalidLoanTerms(format string, args ...any) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidLoanTerms,
		fmt.Sprintf(format, args...),
		ErrInvalidLoanTerms,
	)
}

// WrapInvalidTransaction reports a transaction that cannot be placed on the schedule.
func WrapInvalidTransaction(format string, args ...any) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransaction,
		fmt.Sprintf(format, args...),
		ErrInvalidTransaction,
	)
}

func WrapInconsistentState(format string, args ...any) *BusinessError {
	return NewBusinessError(
		ErrCodeInconsistentState,
		fmt.Sprintf(format, args...),
		ErrInconsistentState,
	)
}

func WrapInvalidRequest(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidRequest,
		"invalid request",
		fmt.Errorf("%w: %v", ErrInvalidRequest, err),
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

func WrapPublishError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodePublishError,
		"event publish failed",
		err,
	)
}

// CodeOf returns the business code carried by err, or "" when err is not a BusinessError.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
