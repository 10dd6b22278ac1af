package transcode

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-encoder/internal/logging"
	"media-encoder/internal/metrics"
)

// Registry is the authoritative in-memory table of all jobs, past and
// present, for one running instance. It is volatile by design: restarts
// clear it, completed artifacts survive via the CompletedStore.
//
// Concurrency discipline: one registry-wide mutex; every status field has
// exactly one legitimate writer at any instant. The scheduler performs
// pending→processing, the owning worker performs processing→terminal, and
// the registry itself performs pending→cancelled on behalf of Cancel.
type Registry struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	order    []string
	onChange func(Job)
}

// GroupedJobs is the display grouping the presentation layer renders.
type GroupedJobs struct {
	Active    []Job `json:"active"`
	Completed []Job `json:"completed"`
	Failed    []Job `json:"failed"`
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
	}
}

// SetOnChange installs a hook invoked with a snapshot of every job after a
// state change. Used for push-notification delivery; the hook runs outside
// the registry lock and must not call back into the registry synchronously
// from another goroutine it blocks on.
func (r *Registry) SetOnChange(fn func(Job)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Create adds a new job in the pending state and returns a copy of it.
func (r *Registry) Create(mediaID, presetName string) Job {
	job := &Job{
		ID:         uuid.NewString(),
		MediaID:    mediaID,
		PresetName: presetName,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.order = append(r.order, job.ID)
	snapshot := *job
	r.mu.Unlock()

	metrics.JobsCreated.Inc()
	logging.Info("Created job %s for media %s with preset %s", job.ID, mediaID, presetName)
	r.notify(snapshot)
	return snapshot
}

// Get returns a copy of the job with the given ID.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns copies of all jobs in creation order.
func (r *Registry) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Job, 0, len(r.order))
	for _, id := range r.order {
		if job, ok := r.jobs[id]; ok {
			out = append(out, *job)
		}
	}
	return out
}

// Grouped returns all jobs grouped for display: active (processing and
// pending), completed, and failed/cancelled.
func (r *Registry) Grouped() GroupedJobs {
	var g GroupedJobs
	for _, job := range r.List() {
		switch job.Status {
		case StatusPending, StatusProcessing:
			g.Active = append(g.Active, job)
		case StatusCompleted:
			g.Completed = append(g.Completed, job)
		case StatusFailed, StatusCancelled:
			g.Failed = append(g.Failed, job)
		}
	}
	return g
}

// Counts returns the number of jobs per status.
func (r *Registry) Counts() map[Status]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[Status]int)
	for _, job := range r.jobs {
		counts[job.Status]++
	}
	return counts
}

// statusCounts reports every status, zeros included, for the job gauges.
func (r *Registry) statusCounts() map[string]int {
	counts := map[string]int{
		string(StatusPending):    0,
		string(StatusProcessing): 0,
		string(StatusCompleted):  0,
		string(StatusFailed):     0,
		string(StatusCancelled):  0,
	}
	for status, n := range r.Counts() {
		counts[string(status)] = n
	}
	return counts
}

// Remove deletes a job from the registry. Only terminal jobs may be
// removed; removing a pending or processing job would silently abandon a
// queued or running process.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if !job.Status.Terminal() {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrJobNotRemovable, id, job.Status)
	}
	delete(r.jobs, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	logging.Info("Removed job %s from registry", id)
	return nil
}

// markProcessing performs the pending→processing transition on behalf of
// the scheduler. Returns false if the job is gone or no longer pending
// (e.g. cancelled while queued).
func (r *Registry) markProcessing(id string) bool {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok || job.Status != StatusPending {
		r.mu.Unlock()
		return false
	}
	now := time.Now()
	job.Status = StatusProcessing
	job.StartedAt = &now
	snapshot := *job
	r.mu.Unlock()

	metrics.SetJobGauges(r.statusCounts())
	r.notify(snapshot)
	return true
}

// cancelPending performs the pending→cancelled transition for jobs that
// were never admitted. No process was ever started for them.
func (r *Registry) cancelPending(id string) bool {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok || job.Status != StatusPending {
		r.mu.Unlock()
		return false
	}
	now := time.Now()
	job.Status = StatusCancelled
	job.FinishedAt = &now
	snapshot := *job
	r.mu.Unlock()

	metrics.SetJobGauges(r.statusCounts())
	logging.Info("Cancelled pending job %s before admission", id)
	r.notify(snapshot)
	return true
}

// finish performs the processing→terminal transition on behalf of the
// worker that owns the job. Illegal transitions are logged and dropped
// rather than applied; terminal states accept no further writes.
func (r *Registry) finish(id string, status Status, outputPath, errMsg string) {
	if !status.Terminal() {
		logging.Error("finish called with non-terminal status %s for job %s", status, id)
		return
	}

	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if job.Status != StatusProcessing {
		r.mu.Unlock()
		logging.Warn("Dropping %s transition for job %s in state %s", status, id, job.Status)
		return
	}
	now := time.Now()
	job.Status = status
	job.FinishedAt = &now
	job.OutputPath = outputPath
	job.Error = errMsg
	snapshot := *job
	r.mu.Unlock()

	metrics.SetJobGauges(r.statusCounts())
	r.notify(snapshot)
}

func (r *Registry) notify(job Job) {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn(job)
	}
}
