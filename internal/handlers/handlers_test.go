package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"media-encoder/internal/catalog"
	"media-encoder/internal/config"
	"media-encoder/internal/transcode"
)

func testRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/media", h.ListMedia).Methods("GET")
	api.HandleFunc("/media/{id}", h.GetMedia).Methods("GET")
	api.HandleFunc("/shows", h.ListShows).Methods("GET")
	api.HandleFunc("/shows/{id}", h.GetShow).Methods("GET")
	api.HandleFunc("/presets", h.ListPresets).Methods("GET")
	api.HandleFunc("/transcode", h.SubmitTranscode).Methods("POST")
	api.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/cancel", h.CancelJob).Methods("POST")
	api.HandleFunc("/jobs/{id}", h.RemoveJob).Methods("DELETE")
	api.HandleFunc("/completed", h.ListCompleted).Methods("GET")
	api.HandleFunc("/completed/{filename}", h.DeleteCompleted).Methods("DELETE")
	api.HandleFunc("/completed/{filename}/download", h.DownloadCompleted).Methods("GET")
	api.HandleFunc("/scan", h.TriggerScan).Methods("POST")
	return r
}

type fixture struct {
	handlers  *Handlers
	router    *mux.Router
	registry  *transcode.Registry
	scheduler *transcode.Scheduler
	completed *transcode.CompletedStore
	outputDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := catalog.NewStore(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to create catalog store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	items := []catalog.MediaItem{
		{ID: "m1", Title: "Test Film", Year: 2020, Type: catalog.TypeMovie,
			Path: "/media/test_film.mkv", Server: catalog.SourceJellyfin},
	}
	shows := []catalog.Show{
		{ID: "s1", Title: "Test Show", Year: 2021, Server: catalog.SourceJellyfin},
	}
	if err := store.ReplaceAll(context.Background(), catalog.SourceJellyfin, items, shows); err != nil {
		t.Fatalf("Failed to seed catalog: %v", err)
	}

	presets := config.DefaultPresets()
	resolver := transcode.NewResolver(presets, "", "", transcode.Capabilities{})
	registry := transcode.NewRegistry()
	outputDir := t.TempDir()
	completed := transcode.NewCompletedStore(outputDir)

	// The scheduler is deliberately not started: submitted jobs stay
	// pending, which keeps handler tests independent of any encoder.
	scheduler := transcode.NewScheduler(transcode.Options{
		Registry:      registry,
		Resolver:      resolver,
		Mapper:        transcode.NewMappingTable(nil),
		Store:         completed,
		FFmpegPath:    "/bin/false",
		OutputRoot:    outputDir,
		MaxConcurrent: 1,
		Grace:         time.Second,
	})

	h := New(store,
		catalog.NewPosterCache(t.TempDir(), store),
		catalog.NewScanner(store, 0),
		registry, scheduler, resolver, completed, presets)

	return &fixture{
		handlers:  h,
		router:    testRouter(h),
		registry:  registry,
		scheduler: scheduler,
		completed: completed,
		outputDir: outputDir,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestListMedia(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/media", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	var items []mediaResponse
	decode(t, rec, &items)
	if len(items) != 1 {
		t.Fatalf("Got %d items, want 1", len(items))
	}
	if items[0].DisplayName != "Test Film (2020)" {
		t.Errorf("DisplayName = %q", items[0].DisplayName)
	}
}

func TestGetMedia(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/media/m1", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}

	rec = f.do(t, "GET", "/api/media/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rec.Code)
	}
}

func TestGetShow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/shows", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}

	rec = f.do(t, "GET", "/api/shows/s1", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}

	rec = f.do(t, "GET", "/api/shows/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rec.Code)
	}
}

func TestListPresets(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/presets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	var presets []presetResponse
	decode(t, rec, &presets)
	if len(presets) != 3 {
		t.Fatalf("Got %d presets, want 3", len(presets))
	}
	// Names() sorts, so the listing is deterministic.
	if presets[0].Name != "high" || presets[2].Name != "medium" {
		t.Errorf("Preset order = %s, %s, %s", presets[0].Name, presets[1].Name, presets[2].Name)
	}
}

func TestSubmitTranscode(t *testing.T) {
	f := newFixture(t)

	t.Run("Success", func(t *testing.T) {
		rec := f.do(t, "POST", "/api/transcode", `{"media_id": "m1", "preset": "low"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Status = %d, want 201: %s", rec.Code, rec.Body.String())
		}

		var job transcode.Job
		decode(t, rec, &job)
		if job.Status != transcode.StatusPending {
			t.Errorf("Status = %s, want pending", job.Status)
		}
		if job.MediaID != "m1" || job.PresetName != "low" {
			t.Errorf("Job = %+v", job)
		}
	})

	t.Run("UnknownMedia", func(t *testing.T) {
		rec := f.do(t, "POST", "/api/transcode", `{"media_id": "nope", "preset": "low"}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want 404", rec.Code)
		}
	})

	t.Run("UnknownPreset", func(t *testing.T) {
		rec := f.do(t, "POST", "/api/transcode", `{"media_id": "m1", "preset": "nope"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", rec.Code)
		}
	})

	t.Run("BadBody", func(t *testing.T) {
		rec := f.do(t, "POST", "/api/transcode", `{not json`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", rec.Code)
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		rec := f.do(t, "POST", "/api/transcode", `{"media_id": "m1"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", rec.Code)
		}
	})
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/transcode", `{"media_id": "m1", "preset": "low"}`)
	var job transcode.Job
	decode(t, rec, &job)

	t.Run("Get", func(t *testing.T) {
		rec := f.do(t, "GET", "/api/jobs/"+job.ID, "")
		if rec.Code != http.StatusOK {
			t.Errorf("Status = %d, want 200", rec.Code)
		}
	})

	t.Run("GetUnknown", func(t *testing.T) {
		rec := f.do(t, "GET", "/api/jobs/nope", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want 404", rec.Code)
		}
	})

	t.Run("RemoveNonTerminal", func(t *testing.T) {
		rec := f.do(t, "DELETE", "/api/jobs/"+job.ID, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", rec.Code)
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		rec := f.do(t, "POST", "/api/jobs/"+job.ID+"/cancel", "")
		if rec.Code != http.StatusOK {
			t.Errorf("Status = %d, want 200", rec.Code)
		}

		got, _ := f.registry.Get(job.ID)
		if got.Status != transcode.StatusCancelled {
			t.Errorf("Status = %s, want cancelled", got.Status)
		}
	})

	t.Run("CancelTerminal", func(t *testing.T) {
		rec := f.do(t, "POST", "/api/jobs/"+job.ID+"/cancel", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", rec.Code)
		}
	})

	t.Run("RemoveTerminal", func(t *testing.T) {
		rec := f.do(t, "DELETE", "/api/jobs/"+job.ID, "")
		if rec.Code != http.StatusOK {
			t.Errorf("Status = %d, want 200", rec.Code)
		}
		if _, ok := f.registry.Get(job.ID); ok {
			t.Error("Job still present after removal")
		}
	})

	t.Run("RemoveUnknown", func(t *testing.T) {
		rec := f.do(t, "DELETE", "/api/jobs/"+job.ID, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want 404", rec.Code)
		}
	})
}

func TestListJobsGrouped(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/transcode", `{"media_id": "m1", "preset": "low"}`)
	var job transcode.Job
	decode(t, rec, &job)

	rec = f.do(t, "GET", "/api/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	var grouped struct {
		Active    []transcode.Job `json:"active"`
		Completed []transcode.Job `json:"completed"`
		Failed    []transcode.Job `json:"failed"`
	}
	decode(t, rec, &grouped)
	if len(grouped.Active) != 1 {
		t.Errorf("Active = %d, want 1", len(grouped.Active))
	}
}

func TestCompletedEndpoints(t *testing.T) {
	f := newFixture(t)

	artifact := filepath.Join(f.outputDir, "Test_Film_low.mkv")
	if err := os.WriteFile(artifact, []byte("encoded-bytes"), 0644); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}
	if err := f.completed.Record(transcode.CompletedRecord{
		MediaID:     "m1",
		DisplayName: "Test Film (2020)",
		Preset:      "low",
		FilePath:    artifact,
		CompletedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	t.Run("List", func(t *testing.T) {
		rec := f.do(t, "GET", "/api/completed", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", rec.Code)
		}
		var records []transcode.CompletedRecord
		decode(t, rec, &records)
		if len(records) != 1 || records[0].FileName != "Test_Film_low.mkv" {
			t.Errorf("Records = %+v", records)
		}
	})

	t.Run("Download", func(t *testing.T) {
		rec := f.do(t, "GET", "/api/completed/Test_Film_low.mkv/download", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", rec.Code)
		}
		if rec.Body.String() != "encoded-bytes" {
			t.Errorf("Body = %q", rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "video/x-matroska" {
			t.Errorf("Content-Type = %s", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Test_Film_low.mkv") {
			t.Errorf("Content-Disposition = %s", cd)
		}
	})

	t.Run("DownloadMissing", func(t *testing.T) {
		rec := f.do(t, "GET", "/api/completed/nope.mkv/download", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want 404", rec.Code)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		rec := f.do(t, "DELETE", "/api/completed/Test_Film_low.mkv", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		if _, err := os.Stat(artifact); !os.IsNotExist(err) {
			t.Error("Artifact still exists after deletion")
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		rec := f.do(t, "DELETE", "/api/completed/nope.mkv", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want 404", rec.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	var health HealthResponse
	decode(t, rec, &health)
	if health.Status != statusHealthy {
		t.Errorf("Status = %s", health.Status)
	}
	if health.Movies != 1 {
		t.Errorf("Movies = %d, want 1", health.Movies)
	}

	for _, path := range []string{"/livez", "/readyz", "/version"} {
		rec := f.do(t, "GET", path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("Status for %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestTriggerScan(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/scan", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	// The loop is not running, so the second trigger reports the queued
	// scan instead of scheduling another.
	rec = f.do(t, "POST", "/api/scan", "")
	var status map[string]string
	decode(t, rec, &status)
	if status["status"] != "scan already scheduled" {
		t.Errorf("status = %q", status["status"])
	}
}
