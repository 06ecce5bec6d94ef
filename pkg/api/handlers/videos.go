package handlers

import (
	"net/http"

	"github.com/pitchsight/pitchsight/pkg/api/auth"
	"github.com/pitchsight/pitchsight/pkg/upload"
)

// VideoHandler serves the two-phase upload handshake.
type VideoHandler struct {
	coordinator *upload.Coordinator
}

// NewVideoHandler creates a video upload handler.
func NewVideoHandler(coordinator *upload.Coordinator) *VideoHandler {
	return &VideoHandler{coordinator: coordinator}
}

type initiateUploadRequest struct {
	SessionID     string `json:"session_id"`
	AnalysisMode  string `json:"analysis_mode,omitempty"`
	SampleFPS     int    `json:"sample_fps,omitempty"`
	IncludeFrames bool   `json:"include_frames,omitempty"`
}

// InitiateUpload creates an analysis job and returns a presigned PUT URL.
//
// POST /api/v1/videos/upload/initiate
func (h *VideoHandler) InitiateUpload(w http.ResponseWriter, r *http.Request) {
	var req initiateUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		BadRequest(w, "session_id is required")
		return
	}

	result, err := h.coordinator.Initiate(r.Context(), auth.OwnerID(r.Context()), req.SessionID, upload.InitiateRequest{
		AnalysisMode:  req.AnalysisMode,
		SampleFPS:     req.SampleFPS,
		IncludeFrames: req.IncludeFrames,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSONOK(w, result)
}

type completeUploadRequest struct {
	JobID string `json:"job_id"`
}

// CompleteUpload verifies the uploaded object and dispatches the job.
// Idempotent: repeating the call for an already-dispatched job succeeds
// without a second dispatch.
//
// POST /api/v1/videos/upload/complete
func (h *VideoHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	var req completeUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.JobID == "" {
		BadRequest(w, "job_id is required")
		return
	}

	job, err := h.coordinator.Complete(r.Context(), auth.OwnerID(r.Context()), req.JobID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSONOK(w, job)
}
