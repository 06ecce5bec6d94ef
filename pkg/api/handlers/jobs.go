package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitchsight/pitchsight/pkg/api/auth"
	"github.com/pitchsight/pitchsight/pkg/export"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
	"github.com/pitchsight/pitchsight/pkg/models"
)

// JobHandler serves analysis job reads and PDF export.
type JobHandler struct {
	store    *jobstore.GORMStore
	exporter *export.Service
}

// NewJobHandler creates a job handler.
func NewJobHandler(store *jobstore.GORMStore, exporter *export.Service) *JobHandler {
	return &JobHandler{store: store, exporter: exporter}
}

// Get returns the full job row, artifacts included. Clients poll this to
// track status, stage and progress.
//
// GET /api/v1/analysis-jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetOwnedJob(r.Context(), jobID, auth.OwnerID(r.Context()))
	if err != nil {
		// Jobs owned by someone else read as absent.
		if errors.Is(err, models.ErrNotOwner) {
			NotFound(w, models.ErrJobNotFound.Error())
			return
		}
		WriteError(w, err)
		return
	}

	WriteJSONOK(w, job)
}

// ExportPDF renders the job's consolidated report. Non-terminal jobs get a
// 409 carrying the current status.
//
// POST /api/v1/analysis-jobs/{id}/export-pdf
func (h *JobHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	pdf, err := h.exporter.Export(r.Context(), auth.OwnerID(r.Context()), jobID)
	if err != nil {
		if errors.Is(err, models.ErrNotOwner) {
			NotFound(w, models.ErrJobNotFound.Error())
			return
		}
		WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "analysis-report-"+jobID+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
