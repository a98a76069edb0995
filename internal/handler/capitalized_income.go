package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	customError "github.com/segyhp/progressive-loan-engine/pkg/errors"
	"github.com/segyhp/progressive-loan-engine/pkg/response"
	"github.com/segyhp/progressive-loan-engine/pkg/utils"
	"go.uber.org/zap"
)

// CapitalizedIncomeService is the part of the service layer the capitalized
// income routes use.
type CapitalizedIncomeService interface {
	RunDailyAmortization(ctx context.Context, loanID string, businessDate time.Time) (*domain.AmortizationResponse, error)
	AmortizeOnClosure(ctx context.Context, loanID string) (*domain.AmortizationResponse, error)
	AmortizeOnChargeOff(ctx context.Context, loanID string) (*domain.AmortizationResponse, error)
	UndoChargeOff(ctx context.Context, loanID string) (*domain.AmortizationResponse, error)
	HandleStatusTransition(ctx context.Context, loanID string, oldStatus, newStatus domain.LoanStatus) (*domain.AmortizationResponse, error)
}

type CapitalizedIncomeHandler struct {
	service   CapitalizedIncomeService
	validator *validator.Validate
	logger    *zap.Logger
}

func NewCapitalizedIncomeHandler(service CapitalizedIncomeService, logger *zap.Logger) *CapitalizedIncomeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapitalizedIncomeHandler{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Amortize handles POST /loans/{loanId}/capitalized-income/amortize
func (h *CapitalizedIncomeHandler) Amortize(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	var req domain.AmortizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, h.logger, customError.WrapInvalidRequest(err))
		return
	}
	businessDate, err := utils.ParseDate(req.BusinessDate)
	if err != nil {
		writeError(w, h.logger, customError.WrapInvalidRequest(err))
		return
	}

	result, err := h.service.RunDailyAmortization(r.Context(), loanID, businessDate)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, result)
}

// AmortizeOnClosure handles POST /loans/{loanId}/capitalized-income/close
func (h *CapitalizedIncomeHandler) AmortizeOnClosure(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.AmortizeOnClosure)
}

// ChargeOff handles POST /loans/{loanId}/capitalized-income/charge-off
func (h *CapitalizedIncomeHandler) ChargeOff(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.AmortizeOnChargeOff)
}

// UndoChargeOff handles POST /loans/{loanId}/capitalized-income/undo-charge-off
func (h *CapitalizedIncomeHandler) UndoChargeOff(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.UndoChargeOff)
}

// StatusTransition handles POST /loans/{loanId}/status-transitions
func (h *CapitalizedIncomeHandler) StatusTransition(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	var req domain.StatusTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, h.logger, customError.WrapInvalidRequest(err))
		return
	}

	result, err := h.service.HandleStatusTransition(r.Context(), loanID, req.OldStatus, req.NewStatus)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, result)
}

func (h *CapitalizedIncomeHandler) run(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*domain.AmortizationResponse, error)) {
	result, err := fn(r.Context(), mux.Vars(r)["loanId"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, result)
}
