package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// DashboardHandler handles report endpoints.
type DashboardHandler struct {
	svc LedgerService
	log zerolog.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(svc LedgerService, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		svc: svc,
		log: log,
	}
}

// Monthly handles GET /api/dashboard/monthly?year=&month=
func (h *DashboardHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	for _, name := range []string{"year", "month"} {
		if r.URL.Query().Get(name) == "" {
			middleware.WriteJSON(w, http.StatusBadRequest, validationBody{
				Error: name + " is required",
				Field: name,
				Code:  string(domain.CodeRequired),
			})
			return
		}
	}
	year, ok := queryInt(w, r, "year", 0)
	if !ok {
		return
	}
	month, ok := queryInt(w, r, "month", 0)
	if !ok {
		return
	}

	summary, err := h.svc.MonthlySummary(r.Context(), userID, year, month)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to build monthly summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}
