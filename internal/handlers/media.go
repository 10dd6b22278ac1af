package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"media-encoder/internal/catalog"
	"media-encoder/internal/logging"
)

// mediaResponse decorates a catalog item with its display name, which the
// engine also uses to derive the output filename.
type mediaResponse struct {
	catalog.MediaItem
	DisplayName string `json:"display_name"`
}

func toMediaResponse(item catalog.MediaItem) mediaResponse {
	return mediaResponse{MediaItem: item, DisplayName: item.DisplayName()}
}

// ListMedia returns every catalog entry.
func (h *Handlers) ListMedia(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.AllMedia(r.Context())
	if err != nil {
		logging.Error("Failed to list media: %v", err)
		writeJSONError(w, "Failed to list media", http.StatusInternalServerError)
		return
	}

	out := make([]mediaResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toMediaResponse(item))
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, out)
}

// GetMedia returns one catalog entry by ID.
func (h *Handlers) GetMedia(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	item, err := h.store.Media(r.Context(), id)
	if errors.Is(err, catalog.ErrMediaNotFound) {
		writeJSONError(w, "Media not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to get media %s: %v", id, err)
		writeJSONError(w, "Failed to get media", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, toMediaResponse(item))
}

// ListShows returns every series in the catalog.
func (h *Handlers) ListShows(w http.ResponseWriter, r *http.Request) {
	shows, err := h.store.Shows(r.Context())
	if err != nil {
		logging.Error("Failed to list shows: %v", err)
		writeJSONError(w, "Failed to list shows", http.StatusInternalServerError)
		return
	}
	if shows == nil {
		shows = []catalog.Show{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, shows)
}

// GetShow returns a series with its episodes grouped into seasons.
func (h *Handlers) GetShow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	show, seasons, err := h.store.Show(r.Context(), id)
	if errors.Is(err, catalog.ErrShowNotFound) {
		writeJSONError(w, "Show not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to get show %s: %v", id, err)
		writeJSONError(w, "Failed to get show", http.StatusInternalServerError)
		return
	}
	if seasons == nil {
		seasons = []catalog.Season{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"show":    show,
		"seasons": seasons,
	})
}

// GetPoster serves a cached poster thumbnail for a media item or show.
func (h *Handlers) GetPoster(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	data, err := h.posters.Poster(r.Context(), id)
	if errors.Is(err, catalog.ErrMediaNotFound) {
		writeJSONError(w, "Media not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Debug("Poster for %s unavailable: %v", id, err)
		writeJSONError(w, "Poster unavailable", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(data); err != nil {
		logging.Debug("Failed to write poster response: %v", err)
	}
}

// TriggerScan requests a catalog rescan.
func (h *Handlers) TriggerScan(w http.ResponseWriter, _ *http.Request) {
	if h.scanner.TriggerRescan() {
		writeJSONStatus(w, "scan scheduled")
		return
	}
	writeJSONStatus(w, "scan already scheduled")
}
