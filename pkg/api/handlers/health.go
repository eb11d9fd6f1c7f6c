package handlers

import (
	"net/http"
	"time"

	"github.com/dtn-bard/bard/pkg/bard"
)

// HealthHandler serves the unauthenticated liveness/readiness probes.
type HealthHandler struct {
	owner *bard.BARD
	start time.Time
}

// NewHealthHandler creates a health handler bound to the daemon's BARD
// instance. owner may be nil before startup completes, in which case
// readiness reports unhealthy.
func NewHealthHandler(owner *bard.BARD) *HealthHandler {
	return &HealthHandler{owner: owner, start: time.Now()}
}

// Liveness handles GET /health: always 200 once the process is serving.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{"service": "bardd"}))
}

// Readiness handles GET /health/ready: 200 once BARD has a usage table
// to serve queries against, 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.owner == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("bard not initialized"))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"quotas":     len(h.owner.Quotas()),
		"rescanning": h.owner.Rescanning(),
		"started_at": h.start.Format(time.RFC3339),
		"uptime":     time.Since(h.start).Round(time.Second).String(),
	}))
}
