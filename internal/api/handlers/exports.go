package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ExportsHandler enqueues export jobs and reports their status. Jobs are
// only visible to the user who created them.
type ExportsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewExportsHandler creates a new exports handler.
func NewExportsHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *ExportsHandler {
	return &ExportsHandler{
		publisher: publisher,
		store:     store,
		log:       log,
	}
}

// EnqueueExport handles POST /api/exports
func (h *ExportsHandler) EnqueueExport(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		Target string `json:"target"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	target, err := jobs.ParseExportTarget(req.Target)
	if err != nil {
		writeInvalid(w, "target", err.Error())
		return
	}

	job := &jobs.ExportJob{
		UserID: userID.String(),
		Target: target,
	}
	if err := h.publisher.PublishExport(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue export job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue export job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("user_id", job.UserID).
		Str("target", string(job.Target)).
		Msg("Export job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"target": string(job.Target),
		"status": string(job.Status),
	})
}

// GetExport handles GET /api/exports/{id}
func (h *ExportsHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil && !errors.Is(err, jobs.ErrJobNotFound) {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	if err != nil || job.UserID != userID.String() {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListExports handles GET /api/exports
func (h *ExportsHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}

	filter := jobs.JobFilter{
		UserID: userID.String(),
		Status: jobs.JobStatus(r.URL.Query().Get("status")),
	}
	if filter.Limit, ok = queryInt(w, r, "limit", 0); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, r, "offset", 0); !ok {
		return
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
