package transcode

import "time"

// Status is the closed set of job lifecycle states.
type Status string

const (
	// StatusPending means the job is queued and waiting for a slot.
	StatusPending Status = "pending"
	// StatusProcessing means a worker owns the job and ffmpeg is running.
	StatusProcessing Status = "processing"
	// StatusCompleted means the encode finished and the artifact verified.
	StatusCompleted Status = "completed"
	// StatusFailed means the encode failed; Job.Error holds the diagnostic.
	StatusFailed Status = "failed"
	// StatusCancelled means the job was cancelled before or during encoding.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	case StatusPending, StatusProcessing:
		return false
	}
	return false
}

// Valid reports whether s is one of the recognized states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Media is the engine's view of a catalog item: a lookup key, the path the
// catalog reports, and a name for output files. The catalog owns everything
// else about the item.
type Media struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	DisplayName string `json:"display_name"`
}

// Job is one tracked attempt to transcode a single media item with a named
// preset. Jobs live in the Registry; callers always receive copies, never
// the registry's own pointer.
type Job struct {
	ID         string     `json:"id"`
	MediaID    string     `json:"media_id"`
	PresetName string     `json:"preset"`
	Status     Status     `json:"status"`
	OutputPath string     `json:"output_path,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration returns how long the encode ran, or zero if it never started.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}
