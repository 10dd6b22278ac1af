package startup

import (
	"net/http"
	"testing"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.GoVersion == "" {
		t.Error("GoVersion should not be empty")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("OS and Arch should be populated")
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/media", func(http.ResponseWriter, *http.Request) {}).Methods("GET")
	router.HandleFunc("/api/transcode", func(http.ResponseWriter, *http.Request) {}).Methods("POST")
	router.HandleFunc("/healthz", func(http.ResponseWriter, *http.Request) {}).Methods("GET")

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() returned error: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("GetRoutes() returned %d routes, want 3", len(routes))
	}

	found := false
	for _, route := range routes {
		if route.Path == "/api/transcode" && route.Method == "POST" {
			found = true
		}
	}
	if !found {
		t.Error("POST /api/transcode not found in routes")
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/media", "api/media"},
		{"/api/jobs/{id}", "api/jobs"},
		{"/healthz", "healthz"},
		{"/", ""},
	}

	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestEnsureDirectory(t *testing.T) {
	dir := t.TempDir()

	t.Run("Existing", func(t *testing.T) {
		if err := ensureDirectory(dir, "test"); err != nil {
			t.Errorf("ensureDirectory() returned error: %v", err)
		}
	})

	t.Run("Created", func(t *testing.T) {
		if err := ensureDirectory(dir+"/nested/deep", "test"); err != nil {
			t.Errorf("ensureDirectory() returned error: %v", err)
		}
	})
}

func TestTestWriteAccess(t *testing.T) {
	if err := testWriteAccess(t.TempDir()); err != nil {
		t.Errorf("testWriteAccess() returned error: %v", err)
	}
	if err := testWriteAccess("/nonexistent/path"); err == nil {
		t.Error("Expected error for a missing directory")
	}
}
