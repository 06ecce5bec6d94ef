package handlers

import (
	"net/http"
	"time"

	"github.com/pitchsight/pitchsight/pkg/jobstore"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store *jobstore.GORMStore
}

// NewHealthHandler creates a health handler. store may be nil for liveness-only
// deployments.
func NewHealthHandler(store *jobstore.GORMStore) *HealthHandler {
	return &HealthHandler{store: store}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Liveness reports that the process is up. It never touches dependencies.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// Readiness reports whether the job store is reachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		sqlDB, err := h.store.DB().DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status:    "unhealthy",
				Timestamp: time.Now().UTC(),
				Error:     err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}
