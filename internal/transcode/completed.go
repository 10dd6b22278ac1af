package transcode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"media-encoder/internal/logging"
)

// CompletedRecord is the persisted metadata for one finished artifact. It
// lives in a JSON sidecar next to the output file (<artifact>.json) and has
// a lifecycle independent of the job registry: it survives job removal and
// process restarts, and is deleted only together with the artifact.
type CompletedRecord struct {
	MediaID         string    `json:"media_id"`
	DisplayName     string    `json:"display_name"`
	Preset          string    `json:"preset"`
	SourcePath      string    `json:"source_path"`
	SourceSize      int64     `json:"source_size"`
	FilePath        string    `json:"file_path"`
	FileName        string    `json:"file_name"`
	OutputSize      int64     `json:"output_size"`
	DurationSeconds float64   `json:"duration_seconds"`
	CompletedAt     time.Time `json:"completed_at"`
}

// CompletedStore persists completed-transcode records under the transcode
// output root.
type CompletedStore struct {
	root string
}

// NewCompletedStore creates a store rooted at the transcode output
// directory.
func NewCompletedStore(root string) *CompletedStore {
	return &CompletedStore{root: root}
}

// Root returns the transcode output root.
func (s *CompletedStore) Root() string {
	return s.root
}

// ArtifactPath resolves a bare artifact filename inside the root,
// rejecting anything that would escape it.
func (s *CompletedStore) ArtifactPath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid artifact filename %q", filename)
	}
	return filepath.Join(s.root, filename), nil
}

// Record writes the sidecar metadata file for a completed artifact.
func (s *CompletedStore) Record(rec CompletedRecord) error {
	rec.FileName = filepath.Base(rec.FilePath)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sidecar for %s: %w", rec.FileName, err)
	}

	sidecar := rec.FilePath + ".json"
	if err := os.WriteFile(sidecar, data, 0644); err != nil {
		return fmt.Errorf("failed to write sidecar %s: %w", sidecar, err)
	}

	logging.Debug("Wrote completed-transcode sidecar %s", sidecar)
	return nil
}

// List enumerates all persisted records, newest first. Sidecars whose
// artifact has disappeared are skipped; sizes are refreshed from disk at
// read time so the listing reflects reality rather than record state.
func (s *CompletedStore) List() ([]CompletedRecord, error) {
	sidecars, err := filepath.Glob(filepath.Join(s.root, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan transcode root: %w", err)
	}

	records := make([]CompletedRecord, 0, len(sidecars))
	for _, sidecar := range sidecars {
		artifact := strings.TrimSuffix(sidecar, ".json")
		info, err := os.Stat(artifact)
		if err != nil {
			// Orphaned sidecar; the artifact was removed out of band.
			continue
		}

		data, err := os.ReadFile(sidecar)
		if err != nil {
			logging.Error("Failed to read sidecar %s: %v", sidecar, err)
			continue
		}

		var rec CompletedRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			logging.Error("Failed to parse sidecar %s: %v", sidecar, err)
			continue
		}

		rec.FilePath = artifact
		rec.FileName = filepath.Base(artifact)
		rec.OutputSize = info.Size()
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CompletedAt.After(records[j].CompletedAt)
	})
	return records, nil
}

// Delete removes an artifact and its sidecar metadata. The result is a
// (success, message) pair rather than an error: partial outcomes such as a
// missing sidecar are legitimate and reportable, not exceptional.
func (s *CompletedStore) Delete(filename string) (bool, string) {
	artifact, err := s.ArtifactPath(filename)
	if err != nil {
		return false, err.Error()
	}

	if _, err := os.Stat(artifact); err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Sprintf("file %s does not exist", filename)
		}
		return false, fmt.Sprintf("cannot access %s: %v", filename, err)
	}

	if err := os.Remove(artifact); err != nil {
		return false, fmt.Sprintf("failed to remove %s: %v", filename, err)
	}

	sidecar := artifact + ".json"
	if err := os.Remove(sidecar); err != nil {
		if os.IsNotExist(err) {
			logging.Warn("Deleted %s which had no metadata sidecar", filename)
			return true, fmt.Sprintf("removed %s (no metadata was tracked for it)", filename)
		}
		return true, fmt.Sprintf("removed %s but could not remove its metadata: %v", filename, err)
	}

	logging.Info("Deleted completed transcode %s", filename)
	return true, fmt.Sprintf("removed %s", filename)
}
