package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"media-encoder/internal/catalog"
	"media-encoder/internal/logging"
	"media-encoder/internal/transcode"
)

// presetResponse is one named preset in the listing.
type presetResponse struct {
	Name          string `json:"name"`
	Codec         string `json:"codec"`
	Scale         string `json:"scale"`
	Container     string `json:"container"`
	AudioCodec    string `json:"audio_codec"`
	AudioBitrate  string `json:"audio_bitrate"`
	CRF           int    `json:"crf"`
	AllowFallback bool   `json:"allow_fallback"`
}

// ListPresets returns the configured presets, sorted by name.
func (h *Handlers) ListPresets(w http.ResponseWriter, _ *http.Request) {
	out := make([]presetResponse, 0, len(h.presets))
	for _, name := range h.resolver.Names() {
		p := h.presets[name]
		out = append(out, presetResponse{
			Name:          name,
			Codec:         p.Codec,
			Scale:         p.Scale,
			Container:     p.Container,
			AudioCodec:    p.AudioCodec,
			AudioBitrate:  p.AudioBitrate,
			CRF:           p.CRF,
			AllowFallback: p.AllowFallback,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, out)
}

type transcodeRequest struct {
	MediaID string `json:"media_id"`
	Preset  string `json:"preset"`
}

// SubmitTranscode creates a transcode job for a catalog item. The only
// synchronous rejections are an unknown media ID and an unknown preset;
// everything that can fail later is captured into the job itself.
func (h *Handlers) SubmitTranscode(w http.ResponseWriter, r *http.Request) {
	var req transcodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.MediaID == "" || req.Preset == "" {
		writeJSONError(w, "media_id and preset are required", http.StatusBadRequest)
		return
	}

	item, err := h.store.Media(r.Context(), req.MediaID)
	if errors.Is(err, catalog.ErrMediaNotFound) {
		writeJSONError(w, "Media not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to look up media %s: %v", req.MediaID, err)
		writeJSONError(w, "Failed to look up media", http.StatusInternalServerError)
		return
	}

	job, err := h.scheduler.Submit(transcode.Media{
		ID:          item.ID,
		Path:        item.Path,
		DisplayName: item.DisplayName(),
	}, req.Preset)
	if errors.Is(err, transcode.ErrUnknownPreset) {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		logging.Error("Failed to submit job for %s: %v", req.MediaID, err)
		writeJSONError(w, "Failed to submit job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, job)
}

// ListJobs returns the registry grouped by state: active (pending and
// processing), completed, and failed (failed and cancelled).
func (h *Handlers) ListJobs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.registry.Grouped())
}

// GetJob returns one job by ID.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, ok := h.registry.Get(id)
	if !ok {
		writeJSONError(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, job)
}

// CancelJob requests job cancellation. Cancelling a job that is already
// terminal (or unknown) is reported as a failure, not an error state.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if h.scheduler.Cancel(id) {
		writeJSONStatus(w, "cancellation requested")
		return
	}
	writeJSONError(w, "Job could not be cancelled", http.StatusBadRequest)
}

// RemoveJob deletes a terminal job from the registry.
func (h *Handlers) RemoveJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.registry.Remove(id)
	switch {
	case errors.Is(err, transcode.ErrJobNotFound):
		writeJSONError(w, "Job not found", http.StatusNotFound)
	case errors.Is(err, transcode.ErrJobNotRemovable):
		writeJSONError(w, "Only finished jobs can be removed", http.StatusBadRequest)
	case err != nil:
		logging.Error("Failed to remove job %s: %v", id, err)
		writeJSONError(w, "Failed to remove job", http.StatusInternalServerError)
	default:
		writeJSONStatus(w, "removed")
	}
}
