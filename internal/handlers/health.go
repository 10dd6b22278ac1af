package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-encoder/internal/catalog"
	"media-encoder/internal/logging"
	"media-encoder/internal/startup"
)

const statusHealthy = "healthy"

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Engine state
	ActiveJobs int `json:"activeJobs"`
	QueueDepth int `json:"queueDepth"`

	// Catalog summary
	Movies   int `json:"movies,omitempty"`
	Episodes int `json:"episodes,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		ActiveJobs:   h.scheduler.Running(),
		QueueDepth:   h.scheduler.QueueDepth(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if counts, err := h.store.Counts(r.Context()); err == nil {
		response.Movies = counts[catalog.TypeMovie]
		response.Episodes = counts[catalog.TypeEpisode]
	} else {
		logging.Debug("Health check could not read catalog counts: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if the
// server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 when the service accepts work. The registry
// and scheduler are always live once constructed, so readiness does not
// gate on catalog population: transcode submissions for known media work
// even while the first scan is still running.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]string{"status": "ready"})
}
