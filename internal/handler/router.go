package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter wires every route of the API. metrics may be nil.
func NewRouter(
	schedules *ScheduleHandler,
	income *CapitalizedIncomeHandler,
	health *HealthHandler,
	metrics http.Handler,
	logger *zap.Logger,
) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(LoggingMiddleware(logger))

	// Health check
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/loans/{loanId}/schedule", schedules.Generate).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/schedule", schedules.GetSchedule).Methods(http.MethodGet)
	api.HandleFunc("/reschedule-requests/{requestId}/preview", schedules.PreviewReschedule).Methods(http.MethodGet)
	api.HandleFunc("/reschedule-requests/{requestId}/apply", schedules.ApplyReschedule).Methods(http.MethodPost)

	api.HandleFunc("/loans/{loanId}/capitalized-income/amortize", income.Amortize).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/capitalized-income/close", income.AmortizeOnClosure).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/capitalized-income/charge-off", income.ChargeOff).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/capitalized-income/undo-charge-off", income.UndoChargeOff).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/status-transitions", income.StatusTransition).Methods(http.MethodPost)

	return router
}
