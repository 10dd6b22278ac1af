package transcode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// gatedEncoder writes a fake ffmpeg that blocks until the gate file
// appears, then writes its output. Lets tests hold workers in the
// processing state deterministically.
func gatedEncoder(t *testing.T, gate string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := fmt.Sprintf(`#!/bin/sh
for arg in "$@"; do out="$arg"; done
while [ ! -f %q ]; do sleep 0.02; done
printf 'encoded' > "$out"
`, gate)
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write fake encoder: %v", err)
	}
	return path
}

func openGate(t *testing.T, gate string) {
	t.Helper()
	if err := os.WriteFile(gate, []byte("go"), 0644); err != nil {
		t.Fatalf("Failed to open gate: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func testScheduler(t *testing.T, ffmpeg string, maxConcurrent int) (*Scheduler, *Registry) {
	t.Helper()
	reg := NewRegistry()
	s := NewScheduler(Options{
		Registry:      reg,
		Resolver:      NewResolver(testPresets(), "", "", Capabilities{}),
		Mapper:        NewMappingTable(nil),
		Store:         NewCompletedStore(t.TempDir()),
		FFmpegPath:    ffmpeg,
		OutputRoot:    t.TempDir(),
		MaxConcurrent: maxConcurrent,
		Grace:         200 * time.Millisecond,
	})
	return s, reg
}

func testMedia(t *testing.T, dir, name string) Media {
	t.Helper()
	path := writeSource(t, dir, name+".mkv")
	return Media{ID: name, Path: path, DisplayName: name}
}

func TestSchedulerRejectsUnknownPreset(t *testing.T) {
	s, reg := testScheduler(t, "/bin/false", 1)

	_, err := s.Submit(Media{ID: "m1", Path: "/tmp/x.mkv"}, "nope")
	if !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("Expected ErrUnknownPreset, got %v", err)
	}
	// Rejected submissions must leave no job behind.
	if len(reg.List()) != 0 {
		t.Error("Rejected submission created a job")
	}
}

func TestSchedulerRunsJobToCompletion(t *testing.T) {
	dir := t.TempDir()
	gate := filepath.Join(dir, "gate")
	s, reg := testScheduler(t, gatedEncoder(t, gate), 1)
	s.Start()
	defer s.Stop()

	job, err := s.Submit(testMedia(t, dir, "film"), "low")
	if err != nil {
		t.Fatalf("Submit() returned error: %v", err)
	}
	if job.Status != StatusPending {
		t.Errorf("Submitted job status = %s, want pending", job.Status)
	}

	waitFor(t, "job to start", func() bool {
		j, _ := reg.Get(job.ID)
		return j.Status == StatusProcessing
	})

	openGate(t, gate)
	waitFor(t, "job to complete", func() bool {
		j, _ := reg.Get(job.ID)
		return j.Status == StatusCompleted
	})

	j, _ := reg.Get(job.ID)
	if _, err := os.Stat(j.OutputPath); err != nil {
		t.Errorf("Output artifact missing: %v", err)
	}
}

func TestSchedulerConcurrencyCeiling(t *testing.T) {
	dir := t.TempDir()
	gate := filepath.Join(dir, "gate")
	s, reg := testScheduler(t, gatedEncoder(t, gate), 2)
	s.Start()
	defer s.Stop()

	var jobs []Job
	for i := 0; i < 3; i++ {
		job, err := s.Submit(testMedia(t, dir, fmt.Sprintf("film-%d", i)), "low")
		if err != nil {
			t.Fatalf("Submit() returned error: %v", err)
		}
		jobs = append(jobs, job)
	}

	waitFor(t, "two workers running", func() bool { return s.Running() == 2 })

	// The third job must stay queued while both slots are taken.
	time.Sleep(200 * time.Millisecond)
	if got := s.Running(); got != 2 {
		t.Fatalf("Running() = %d, want 2", got)
	}
	if got := s.QueueDepth(); got != 1 {
		t.Fatalf("QueueDepth() = %d, want 1", got)
	}

	openGate(t, gate)
	waitFor(t, "all jobs to complete", func() bool {
		for _, job := range jobs {
			j, _ := reg.Get(job.ID)
			if j.Status != StatusCompleted {
				return false
			}
		}
		return true
	})
}

func TestSchedulerAdmissionOrder(t *testing.T) {
	dir := t.TempDir()
	gate := filepath.Join(dir, "gate")
	s, reg := testScheduler(t, gatedEncoder(t, gate), 1)

	var mu sync.Mutex
	var started []string
	reg.SetOnChange(func(j Job) {
		if j.Status == StatusProcessing {
			mu.Lock()
			started = append(started, j.MediaID)
			mu.Unlock()
		}
	})

	s.Start()
	defer s.Stop()
	openGate(t, gate)

	var jobs []Job
	for _, name := range []string{"first", "second", "third"} {
		job, err := s.Submit(testMedia(t, dir, name), "low")
		if err != nil {
			t.Fatalf("Submit() returned error: %v", err)
		}
		jobs = append(jobs, job)
	}

	waitFor(t, "all jobs to complete", func() bool {
		for _, job := range jobs {
			j, _ := reg.Get(job.ID)
			if !j.Status.Terminal() {
				return false
			}
		}
		return true
	})

	want := []string{"first", "second", "third"}
	mu.Lock()
	defer mu.Unlock()
	if len(started) != len(want) {
		t.Fatalf("Started %d jobs, want %d", len(started), len(want))
	}
	for i, name := range want {
		if started[i] != name {
			t.Errorf("started[%d] = %s, want %s", i, started[i], name)
		}
	}
}

func TestSchedulerCancelPending(t *testing.T) {
	dir := t.TempDir()
	gate := filepath.Join(dir, "gate")
	s, reg := testScheduler(t, gatedEncoder(t, gate), 1)
	s.Start()
	defer s.Stop()

	blocker, err := s.Submit(testMedia(t, dir, "blocker"), "low")
	if err != nil {
		t.Fatalf("Submit() returned error: %v", err)
	}
	waitFor(t, "blocker to start", func() bool { return s.Running() == 1 })

	queued, err := s.Submit(testMedia(t, dir, "queued"), "low")
	if err != nil {
		t.Fatalf("Submit() returned error: %v", err)
	}

	if !s.Cancel(queued.ID) {
		t.Fatal("Cancel() returned false for a queued job")
	}

	j, _ := reg.Get(queued.ID)
	if j.Status != StatusCancelled {
		t.Errorf("Status = %s, want cancelled", j.Status)
	}
	if j.StartedAt != nil {
		t.Error("Cancelled-before-admission job must never start")
	}

	openGate(t, gate)
	waitFor(t, "blocker to complete", func() bool {
		j, _ := reg.Get(blocker.ID)
		return j.Status == StatusCompleted
	})

	// The cancelled job must never have been admitted.
	j, _ = reg.Get(queued.ID)
	if j.Status != StatusCancelled {
		t.Errorf("Cancelled job reached %s", j.Status)
	}
}

func TestSchedulerCancelProcessing(t *testing.T) {
	dir := t.TempDir()
	// Gate never opens: the worker blocks until it is terminated.
	gate := filepath.Join(dir, "never")
	s, reg := testScheduler(t, gatedEncoder(t, gate), 1)
	s.Start()
	defer s.Stop()

	job, err := s.Submit(testMedia(t, dir, "film"), "low")
	if err != nil {
		t.Fatalf("Submit() returned error: %v", err)
	}
	waitFor(t, "job to start", func() bool { return s.Running() == 1 })

	if !s.Cancel(job.ID) {
		t.Fatal("Cancel() returned false for a processing job")
	}

	waitFor(t, "job to be cancelled", func() bool {
		j, _ := reg.Get(job.ID)
		return j.Status == StatusCancelled
	})
	waitFor(t, "slot to be released", func() bool { return s.Running() == 0 })
}

func TestSchedulerCancelUnknown(t *testing.T) {
	s, reg := testScheduler(t, "/bin/false", 1)

	if s.Cancel("no-such-job") {
		t.Error("Cancel() returned true for an unknown job")
	}

	// Terminal jobs are not cancellable either.
	job := reg.Create("m1", "low")
	reg.markProcessing(job.ID)
	reg.finish(job.ID, StatusCompleted, "/out/a.mkv", "")
	if s.Cancel(job.ID) {
		t.Error("Cancel() returned true for a terminal job")
	}
}

func TestSchedulerStopDrainsQueue(t *testing.T) {
	dir := t.TempDir()
	gate := filepath.Join(dir, "never")
	s, reg := testScheduler(t, gatedEncoder(t, gate), 1)
	s.Start()

	running, err := s.Submit(testMedia(t, dir, "running"), "low")
	if err != nil {
		t.Fatalf("Submit() returned error: %v", err)
	}
	waitFor(t, "first job to start", func() bool { return s.Running() == 1 })

	queued, err := s.Submit(testMedia(t, dir, "queued"), "low")
	if err != nil {
		t.Fatalf("Submit() returned error: %v", err)
	}

	s.Stop()

	j, _ := reg.Get(running.ID)
	if j.Status != StatusCancelled {
		t.Errorf("Running job status after Stop = %s, want cancelled", j.Status)
	}
	j, _ = reg.Get(queued.ID)
	if j.Status != StatusCancelled {
		t.Errorf("Queued job status after Stop = %s, want cancelled", j.Status)
	}
}
