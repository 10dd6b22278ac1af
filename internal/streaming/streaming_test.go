package streaming

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		WriteTimeout: time.Second,
		IdleTimeout:  2 * time.Second,
		ChunkSize:    8,
	}
}

func TestStreamCopiesEverything(t *testing.T) {
	rec := httptest.NewRecorder()
	payload := strings.Repeat("0123456789", 100)

	err := Stream(context.Background(), rec, strings.NewReader(payload), testConfig())
	if err != nil {
		t.Fatalf("Stream() returned error: %v", err)
	}
	if rec.Body.String() != payload {
		t.Errorf("Body is %d bytes, want %d", rec.Body.Len(), len(payload))
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Expected nosniff header")
	}
}

func TestTimeoutWriterChunking(t *testing.T) {
	rec := httptest.NewRecorder()
	tw := NewTimeoutWriter(context.Background(), rec, testConfig())
	defer tw.Close()

	payload := bytes.Repeat([]byte("x"), 100)
	n, err := tw.Write(payload)
	if err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}
	if n != len(payload) {
		t.Errorf("Write() = %d, want %d", n, len(payload))
	}

	written, _ := tw.Stats()
	if written != int64(len(payload)) {
		t.Errorf("Stats() = %d bytes, want %d", written, len(payload))
	}
}

func TestTimeoutWriterClosed(t *testing.T) {
	tw := NewTimeoutWriter(context.Background(), httptest.NewRecorder(), testConfig())

	if err := tw.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}
	// Close is idempotent.
	if err := tw.Close(); err != nil {
		t.Fatalf("Second Close() returned error: %v", err)
	}

	if _, err := tw.Write([]byte("data")); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Write() after Close = %v, want ErrStreamCanceled", err)
	}
}

func TestTimeoutWriterClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tw := NewTimeoutWriter(ctx, httptest.NewRecorder(), testConfig())
	defer tw.Close()

	cancel()
	if _, err := tw.Write([]byte("data")); !errors.Is(err, ErrClientGone) {
		t.Errorf("Write() after disconnect = %v, want ErrClientGone", err)
	}
}

func TestStreamClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Stream(ctx, httptest.NewRecorder(), strings.NewReader("payload"), testConfig())
	if !errors.Is(err, ErrClientGone) {
		t.Errorf("Stream() = %v, want ErrClientGone", err)
	}
}
