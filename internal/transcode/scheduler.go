package transcode

import (
	"fmt"
	"sync"
	"time"

	"media-encoder/internal/logging"
	"media-encoder/internal/metrics"
)

// Options configures a Scheduler.
type Options struct {
	Registry      *Registry
	Resolver      *Resolver
	Mapper        MappingTable
	Store         *CompletedStore
	FFmpegPath    string
	OutputRoot    string
	MaxConcurrent int
	// Grace overrides the SIGTERM→SIGKILL grace period (tests).
	Grace time.Duration
}

type queued struct {
	jobID      string
	media      Media
	presetName string
}

// cancelSignal is a one-shot cancellation channel. Cancel may be called
// repeatedly for the same job; only the first close is delivered.
type cancelSignal struct {
	once sync.Once
	ch   chan struct{}
}

func (c *cancelSignal) fire() {
	c.once.Do(func() { close(c.ch) })
}

// Scheduler admits pending jobs into execution respecting the concurrency
// ceiling, and reclaims capacity as workers terminate. Admission order is
// FIFO among pending jobs; jobs already processing run independently.
type Scheduler struct {
	registry      *Registry
	resolver      *Resolver
	mapper        MappingTable
	store         *CompletedStore
	ffmpegPath    string
	outputRoot    string
	maxConcurrent int
	grace         time.Duration

	mu      sync.Mutex
	queue   []queued
	running map[string]*cancelSignal

	wake chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler creates a scheduler. MaxConcurrent below 1 is clamped to 1.
func NewScheduler(opts Options) *Scheduler {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		registry:      opts.Registry,
		resolver:      opts.Resolver,
		mapper:        opts.Mapper,
		store:         opts.Store,
		ffmpegPath:    opts.FFmpegPath,
		outputRoot:    opts.OutputRoot,
		maxConcurrent: maxConcurrent,
		grace:         opts.Grace,
		running:       make(map[string]*cancelSignal),
		wake:          make(chan struct{}, 1),
		quit:          make(chan struct{}),
	}
}

// Start launches the admission loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
	logging.Info("Scheduler started with %d concurrent encode slots", s.maxConcurrent)
}

// Stop cancels all running workers, drains the queue and stops the
// admission loop. Blocks until every worker has reaped its process.
func (s *Scheduler) Stop() {
	close(s.quit)

	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	for _, sig := range s.running {
		sig.fire()
	}
	s.mu.Unlock()

	for _, q := range pending {
		s.registry.cancelPending(q.jobID)
	}

	s.wg.Wait()
	logging.Info("Scheduler stopped")
}

// Submit validates the preset name, creates a job in the pending state and
// enqueues it for admission. The only synchronous failure is an unknown
// preset; everything that can go wrong later is captured into the job.
func (s *Scheduler) Submit(media Media, presetName string) (Job, error) {
	if !s.resolver.Has(presetName) {
		return Job{}, fmt.Errorf("%w: %q", ErrUnknownPreset, presetName)
	}

	job := s.registry.Create(media.ID, presetName)

	s.mu.Lock()
	s.queue = append(s.queue, queued{jobID: job.ID, media: media, presetName: presetName})
	depth := len(s.queue)
	s.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))
	s.signalWake()
	return job, nil
}

// Cancel requests cancellation of a job. Pending jobs are cancelled
// directly without ever entering processing; processing jobs have the
// signal delivered to their worker, which owns the terminal transition.
// Returns false for terminal or unknown jobs: cancellation is idempotent
// and "could not cancel" is an answer, not an error.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	for i, q := range s.queue {
		if q.jobID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.mu.Unlock()
			return s.registry.cancelPending(id)
		}
	}
	if sig, ok := s.running[id]; ok {
		s.mu.Unlock()
		sig.fire()
		return true
	}
	s.mu.Unlock()
	return false
}

// Running returns the number of jobs currently processing.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// QueueDepth returns the number of jobs waiting for admission.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
			s.admit()
		}
	}
}

// admit moves queued jobs into execution while slots are free. Holding the
// scheduler lock across the whole pass keeps the ceiling race-free:
// exactly one worker is ever spawned per job and len(running) never
// exceeds maxConcurrent.
func (s *Scheduler) admit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.running) < s.maxConcurrent && len(s.queue) > 0 {
		q := s.queue[0]
		s.queue = s.queue[1:]

		// The job may have been cancelled while queued.
		if !s.registry.markProcessing(q.jobID) {
			continue
		}

		resolved, err := s.resolver.Resolve(q.presetName)
		if err != nil {
			s.registry.finish(q.jobID, StatusFailed, "", err.Error())
			continue
		}

		sig := &cancelSignal{ch: make(chan struct{})}
		s.running[q.jobID] = sig
		metrics.ActiveWorkers.Set(float64(len(s.running)))

		w := &worker{
			jobID:      q.jobID,
			media:      q.media,
			resolved:   resolved,
			registry:   s.registry,
			mapper:     s.mapper,
			store:      s.store,
			ffmpegPath: s.ffmpegPath,
			outputRoot: s.outputRoot,
			grace:      s.grace,
			cancel:     sig.ch,
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.run()
			s.release(w.jobID)
		}()
	}

	metrics.QueueDepth.Set(float64(len(s.queue)))
}

// release frees the worker's slot and re-evaluates admission.
func (s *Scheduler) release(jobID string) {
	s.mu.Lock()
	delete(s.running, jobID)
	metrics.ActiveWorkers.Set(float64(len(s.running)))
	s.mu.Unlock()
	s.signalWake()
}
