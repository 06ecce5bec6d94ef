package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pitchsight/pitchsight/pkg/api/auth"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
	"github.com/pitchsight/pitchsight/pkg/models"
	"github.com/pitchsight/pitchsight/pkg/upload"
)

// maxListLimit caps the session page size.
const maxListLimit = 100

// SessionHandler serves session CRUD and bulk purge.
type SessionHandler struct {
	coordinator *upload.Coordinator
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(coordinator *upload.Coordinator) *SessionHandler {
	return &SessionHandler{coordinator: coordinator}
}

type createSessionRequest struct {
	Title           string `json:"title"`
	AnalysisContext string `json:"analysis_context,omitempty"`
}

// Create persists a new session for the caller.
//
// POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	session, err := h.coordinator.CreateSession(r.Context(), auth.OwnerID(r.Context()), req.Title, req.AnalysisContext)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSONCreated(w, session)
}

// Get returns one owned session with its jobs.
//
// GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.coordinator.GetSession(r.Context(), auth.OwnerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSONOK(w, session)
}

// List pages through the caller's sessions, newest first. Failed sessions are
// excluded unless exclude_failed=false or an explicit status_filter is given.
//
// GET /api/v1/sessions?limit=&offset=&status_filter=&exclude_failed=
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := jobstore.ListSessionsOptions{
		Status: models.SessionStatus(q.Get("status_filter")),
		Limit:  parseIntParam(q.Get("limit"), 50),
		Offset: parseIntParam(q.Get("offset"), 0),
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if q.Get("exclude_failed") == "false" {
		opts.IncludeFailed = true
	}

	sessions, err := h.coordinator.ListSessions(r.Context(), auth.OwnerID(r.Context()), opts)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSONOK(w, map[string]interface{}{
		"sessions": sessions,
		"limit":    opts.Limit,
		"offset":   opts.Offset,
	})
}

// Delete cascade-deletes one owned session.
//
// DELETE /api/v1/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.coordinator.DeleteSession(r.Context(), auth.OwnerID(r.Context()), chi.URLParam(r, "id")); err != nil {
		WriteError(w, err)
		return
	}

	WriteNoContent(w)
}

// BulkDelete purges every caller session matching the filter.
//
// DELETE /api/v1/sessions/bulk?status_filter=&older_than_days=
func (h *SessionHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	result, err := h.coordinator.BulkDelete(r.Context(), auth.OwnerID(r.Context()), upload.BulkDeleteOptions{
		Status:        models.SessionStatus(q.Get("status_filter")),
		OlderThanDays: parseIntParam(q.Get("older_than_days"), 0),
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSONOK(w, result)
}

// parseIntParam parses a query integer, falling back on empty or bad input.
func parseIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
