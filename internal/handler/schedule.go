package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
	"github.com/segyhp/progressive-loan-engine/pkg/response"
	"go.uber.org/zap"
)

// ScheduleService is the part of the service layer the schedule routes use.
type ScheduleService interface {
	Generate(ctx context.Context, loanID string) (*domain.GenerateScheduleResponse, error)
	GetSchedule(ctx context.Context, loanID string) (*domain.ScheduleResponse, error)
	PreviewReschedule(ctx context.Context, requestID string) (*domain.GenerateScheduleResponse, error)
	ApplyReschedule(ctx context.Context, requestID string) (*domain.GenerateScheduleResponse, error)
}

type ScheduleHandler struct {
	service ScheduleService
	logger  *zap.Logger
}

func NewScheduleHandler(service ScheduleService, logger *zap.Logger) *ScheduleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleHandler{service: service, logger: logger}
}

// Generate handles POST /loans/{loanId}/schedule
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	result, err := h.service.Generate(r.Context(), loanID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Created(w, result)
}

// GetSchedule handles GET /loans/{loanId}/schedule
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	result, err := h.service.GetSchedule(r.Context(), loanID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, result)
}

// PreviewReschedule handles GET /reschedule-requests/{requestId}/preview
func (h *ScheduleHandler) PreviewReschedule(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]

	result, err := h.service.PreviewReschedule(r.Context(), requestID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, result)
}

// ApplyReschedule handles POST /reschedule-requests/{requestId}/apply
func (h *ScheduleHandler) ApplyReschedule(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]

	result, err := h.service.ApplyReschedule(r.Context(), requestID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, result)
}
