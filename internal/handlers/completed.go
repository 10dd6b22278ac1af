package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"media-encoder/internal/logging"
	"media-encoder/internal/streaming"
	"media-encoder/internal/transcode"
)

// ListCompleted returns completed artifacts, newest first.
func (h *Handlers) ListCompleted(w http.ResponseWriter, _ *http.Request) {
	records, err := h.completed.List()
	if err != nil {
		logging.Error("Failed to list completed transcodes: %v", err)
		writeJSONError(w, "Failed to list completed transcodes", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []transcode.CompletedRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, records)
}

// DeleteCompleted removes an artifact and its metadata sidecar.
func (h *Handlers) DeleteCompleted(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	ok, message := h.completed.Delete(filename)
	if !ok {
		writeJSONError(w, message, http.StatusNotFound)
		return
	}
	writeJSONStatus(w, message)
}

// DownloadCompleted streams an artifact to the client with timeout
// protection, so a stalled download cannot pin the file handle forever.
func (h *Handlers) DownloadCompleted(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	path, err := h.completed.ArtifactPath(filename)
	if err != nil {
		writeJSONError(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		writeJSONError(w, "Artifact not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to open artifact %s: %v", filename, err)
		writeJSONError(w, "Failed to open artifact", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		logging.Error("Failed to stat artifact %s: %v", filename, err)
		writeJSONError(w, "Failed to open artifact", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := streaming.Stream(r.Context(), w, f, streaming.DefaultConfig()); err != nil {
		// Headers are gone by now; log and let the connection die.
		logging.Debug("Artifact download of %s aborted: %v", filename, err)
	}
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mkv":
		return "video/x-matroska"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}
