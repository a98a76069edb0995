package handler

import (
	"errors"
	"net/http"

	customError "github.com/segyhp/progressive-loan-engine/pkg/errors"
	"github.com/segyhp/progressive-loan-engine/pkg/response"
	"go.uber.org/zap"
)

// statusFor maps the business errors of the service layer to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, customError.ErrLoanNotFound),
		errors.Is(err, customError.ErrRescheduleRequestNotFound),
		errors.Is(err, customError.ErrScheduleNotFound):
		return http.StatusNotFound
	case errors.Is(err, customError.ErrInvalidLoanTerms),
		errors.Is(err, customError.ErrInvalidTransaction),
		errors.Is(err, customError.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	code := customError.CodeOf(err)

	message := http.StatusText(status)
	var be *customError.BusinessError
	if errors.As(err, &be) {
		message = be.Message
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("op", "handler.writeError"),
			zap.String("code", code),
			zap.Error(err),
		)
		// internal details stay in the log
		response.ErrorWithCode(w, status, code, message, nil)
		return
	}
	response.ErrorWithCode(w, status, code, message, err)
}
