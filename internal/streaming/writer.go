package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"media-encoder/internal/logging"
)

// Sentinel errors for artifact streaming.
var (
	// ErrWriteTimeout indicates a single write exceeded the configured
	// timeout, usually a client draining the artifact too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates the client disconnected mid-download.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates the stream was canceled
	// programmatically.
	ErrStreamCanceled = errors.New("stream canceled")
)

// Config controls timeout protection for artifact downloads. Transcoded
// artifacts are large; without write timeouts a stalled client pins the
// file handle and the goroutine indefinitely.
type Config struct {
	// WriteTimeout is the maximum time for a single chunk write.
	WriteTimeout time.Duration
	// IdleTimeout is the maximum time between successful writes.
	IdleTimeout time.Duration
	// ChunkSize bounds individual writes (0 = write as received).
	ChunkSize int
}

// DefaultConfig returns the defaults used for artifact downloads.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter with per-write and idle
// timeout protection.
type TimeoutWriter struct {
	w            http.ResponseWriter
	ctx          context.Context
	cancel       context.CancelFunc
	config       Config
	startTime    time.Time
	lastWrite    time.Time
	bytesWritten int64
	mu           sync.Mutex
	closed       bool
	flusher      http.Flusher
}

// NewTimeoutWriter creates a timeout-protected writer bound to the
// request context.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config Config) *TimeoutWriter {
	writerCtx, cancel := context.WithCancel(ctx)

	tw := &TimeoutWriter{
		w:         w,
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		startTime: time.Now(),
		lastWrite: time.Now(),
	}
	if flusher, ok := w.(http.Flusher); ok {
		tw.flusher = flusher
	}

	go tw.idleChecker()
	return tw
}

// Write implements io.Writer with timeout protection.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	if tw.closed {
		tw.mu.Unlock()
		return 0, ErrStreamCanceled
	}
	tw.mu.Unlock()

	select {
	case <-tw.ctx.Done():
		return 0, tw.contextError()
	default:
	}

	if tw.config.ChunkSize > 0 && len(p) > tw.config.ChunkSize {
		return tw.writeChunked(p)
	}
	return tw.writeWithTimeout(p)
}

func (tw *TimeoutWriter) writeChunked(p []byte) (int, error) {
	totalWritten := 0

	for len(p) > 0 {
		select {
		case <-tw.ctx.Done():
			return totalWritten, tw.contextError()
		default:
		}

		chunkSize := tw.config.ChunkSize
		if len(p) < chunkSize {
			chunkSize = len(p)
		}

		n, err := tw.writeWithTimeout(p[:chunkSize])
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}

		p = p[chunkSize:]
		if tw.flusher != nil {
			tw.flusher.Flush()
		}
	}
	return totalWritten, nil
}

func (tw *TimeoutWriter) writeWithTimeout(p []byte) (int, error) {
	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := tw.w.Write(p)
		resultCh <- writeResult{n, err}
	}()

	select {
	case result := <-resultCh:
		if result.err == nil {
			tw.mu.Lock()
			tw.lastWrite = time.Now()
			tw.bytesWritten += int64(result.n)
			tw.mu.Unlock()
		}
		return result.n, result.err

	case <-time.After(tw.config.WriteTimeout):
		tw.cancel()
		return 0, ErrWriteTimeout

	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			tw.mu.Unlock()

			if closed {
				return
			}
			if idle > tw.config.IdleTimeout {
				logging.Warn("Artifact stream idle timeout exceeded: %v", idle)
				tw.cancel()
				return
			}

		case <-tw.ctx.Done():
			return
		}
	}
}

func (tw *TimeoutWriter) contextError() error {
	if errors.Is(tw.ctx.Err(), context.Canceled) {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close marks the writer as closed and stops the idle checker.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}
	tw.closed = true
	tw.cancel()
	return nil
}

// Stats returns bytes written and elapsed time.
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.startTime)
}

// Stream copies an artifact to the HTTP response with timeout
// protection.
func Stream(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) error {
	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("Failed to close timeout writer: %v", err)
		}
	}()

	w.Header().Set("X-Content-Type-Options", "nosniff")

	_, err := io.Copy(tw, r)

	bytesWritten, duration := tw.Stats()
	logging.Debug("Artifact stream finished: %d bytes in %v", bytesWritten, duration)
	return err
}
