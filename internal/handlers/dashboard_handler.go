package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/services/jobs"
)

// DashboardHandler serves the aggregate metrics API
type DashboardHandler struct {
	jobs   *jobs.Service
	logger arbor.ILogger
}

func NewDashboardHandler(jobService *jobs.Service, logger arbor.ILogger) *DashboardHandler {
	return &DashboardHandler{
		jobs:   jobService,
		logger: logger,
	}
}

// MetricsHandler returns the dashboard metrics, computed on demand.
func (h *DashboardHandler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	metrics, err := h.jobs.Metrics(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute dashboard metrics")
		WriteError(w, http.StatusInternalServerError, "Failed to compute metrics")
		return
	}

	WriteJSON(w, http.StatusOK, metrics)
}
