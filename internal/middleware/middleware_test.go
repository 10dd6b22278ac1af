package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK) // second call ignored
	if _, err := rw.Write([]byte("not found")); err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want 404", rw.statusCode)
	}
	if rw.bytesWritten != int64(len("not found")) {
		t.Errorf("bytesWritten = %d", rw.bytesWritten)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Recorded code = %d", rec.Code)
	}
}

func TestResponseWriterImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	if _, err := rw.Write([]byte("ok")); err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}
	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200", rw.statusCode)
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Clean", "/api/media", "/api/media"},
		{"Newline", "line1\nline2", "line1 line2"},
		{"CarriageReturn", "a\rb", "a b"},
		{"NullByte", "a\x00b", "ab"},
		{"ANSIEscape", "a\x1b[31mb", "a[31mb"},
		{"TabKept", "a\tb", "a\tb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogField(tt.input); got != tt.want {
				t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestShouldSkip(t *testing.T) {
	config := LoggingConfig{
		SkipPaths:       []string{"/static"},
		LogHealthChecks: false,
	}

	tests := []struct {
		path string
		want bool
	}{
		{"/api/media", false},
		{"/static/app.css", true},
		{"/healthz", true},
		{"/health", true},
		{"/api/jobs", false},
	}

	for _, tt := range tests {
		if got := shouldSkip(tt.path, config); got != tt.want {
			t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	config.LogHealthChecks = true
	if shouldSkip("/healthz", config) {
		t.Error("Health checks should be logged when enabled")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*http.Request)
		remote string
		want   string
	}{
		{
			name:   "RemoteAddr",
			setup:  func(r *http.Request) {},
			remote: "192.0.2.1:1234",
			want:   "192.0.2.1",
		},
		{
			name: "XForwardedFor",
			setup: func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
			},
			remote: "192.0.2.1:1234",
			want:   "203.0.113.5",
		},
		{
			name: "XRealIP",
			setup: func(r *http.Request) {
				r.Header.Set("X-Real-IP", "203.0.113.9")
			},
			remote: "192.0.2.1:1234",
			want:   "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			tt.setup(r)
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoggerMiddlewarePassthrough(t *testing.T) {
	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/media", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("Status = %d, want 418", rec.Code)
	}
}

func TestMetricsMiddlewarePassthrough(t *testing.T) {
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	for _, path := range []string{"/api/jobs", "/metrics"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusCreated {
			t.Errorf("Status for %s = %d, want 201", path, rec.Code)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/media", "/api/media"},
		{"/api/jobs/abc-123/cancel", "/api/jobs/{id}"},
		{"/api/completed/Some_Film_low.mkv", "/api/completed/{id}"},
		{"/healthz", "/healthz"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
