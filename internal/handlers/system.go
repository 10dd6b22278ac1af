package handlers

import (
	"net/http"

	"media-encoder/internal/logging"
	"media-encoder/internal/system"
)

// GetSystem returns a host CPU/RAM snapshot so operators can judge
// whether the encode host has headroom for more jobs.
func (h *Handlers) GetSystem(w http.ResponseWriter, r *http.Request) {
	snap, err := system.Current(r.Context())
	if err != nil {
		logging.Error("Failed to sample system stats: %v", err)
		writeJSONError(w, "Failed to sample system stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, snap)
}
