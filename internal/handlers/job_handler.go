package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/jobs"
)

// JobHandler serves the job submission and inspection API
type JobHandler struct {
	jobs   *jobs.Service
	logger arbor.ILogger
}

func NewJobHandler(jobService *jobs.Service, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobs:   jobService,
		logger: logger,
	}
}

// submitRequest is the POST /api/jobs body
type submitRequest struct {
	URL string `json:"url"`
}

// JobsHandler routes /api/jobs: POST submits, GET lists recent jobs.
func (h *JobHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submit(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *JobHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	job, err := h.jobs.Submit(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, jobs.ErrInvalidURL) {
			WriteError(w, http.StatusBadRequest, "Invalid URL")
			return
		}
		h.logger.Error().Err(err).Str("url", req.URL).Msg("Job submission failed")
		WriteError(w, http.StatusInternalServerError, "Failed to submit job")
		return
	}

	WriteJSON(w, http.StatusAccepted, job)
}

func (h *JobHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	recent, err := h.jobs.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  recent,
		"count": len(recent),
	})
}

// JobRoutes handles /api/jobs/{id}: GET returns the job detail, DELETE
// removes the job and its artifacts.
func (h *JobHandler) JobRoutes(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	idStr = strings.TrimSuffix(idStr, "/")
	jobID, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || jobID == 0 {
		WriteError(w, http.StatusBadRequest, "Invalid job id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.detail(w, r, jobID)
	case http.MethodDelete:
		h.delete(w, r, jobID)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *JobHandler) detail(w http.ResponseWriter, r *http.Request, jobID uint64) {
	renderRaw := r.URL.Query().Get("render") == "markdown"

	detail, err := h.jobs.Detail(r.Context(), jobID, renderRaw)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Int64("job_id", int64(jobID)).Msg("Failed to load job detail")
		WriteError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}

	WriteJSON(w, http.StatusOK, detail)
}

func (h *JobHandler) delete(w http.ResponseWriter, r *http.Request, jobID uint64) {
	if err := h.jobs.Delete(r.Context(), jobID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Int64("job_id", int64(jobID)).Msg("Failed to delete job")
		WriteError(w, http.StatusInternalServerError, "Failed to delete job")
		return
	}

	WriteSuccess(w, "Job deleted")
}
