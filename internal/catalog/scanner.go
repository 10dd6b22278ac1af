package catalog

import (
	"context"
	"sync"
	"time"

	"media-encoder/internal/logging"
	"media-encoder/internal/metrics"
)

// Source is a media server that can be scanned into catalog models.
type Source interface {
	Name() string
	Scan(ctx context.Context) ([]MediaItem, []Show, error)
}

// Scanner refreshes the catalog store from the configured sources on an
// interval, and on demand through TriggerRescan. One scan runs at a time;
// triggers arriving during a scan collapse into a single follow-up run.
type Scanner struct {
	store    *Store
	sources  []Source
	interval time.Duration

	trigger chan struct{}
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewScanner creates a scanner. An interval of zero disables periodic
// scans; TriggerRescan still works.
func NewScanner(store *Store, interval time.Duration, sources ...Source) *Scanner {
	return &Scanner{
		store:    store,
		sources:  sources,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
}

// Start runs an initial scan synchronously so the catalog is populated
// before the HTTP API comes up, then launches the background loop.
func (s *Scanner) Start(ctx context.Context) {
	s.ScanNow(ctx)

	s.wg.Add(1)
	go s.loop()
}

// Stop terminates the background loop and waits for a running scan to
// finish.
func (s *Scanner) Stop() {
	close(s.quit)
	s.wg.Wait()
}

// TriggerRescan requests a scan without blocking. Returns false when a
// rescan request is already queued.
func (s *Scanner) TriggerRescan() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Scanner) loop() {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.quit:
			return
		case <-tick:
			s.ScanNow(context.Background())
		case <-s.trigger:
			s.ScanNow(context.Background())
		}
	}
}

// ScanNow scans every configured source and replaces its store
// contribution. A failing source keeps its previous catalog rows; other
// sources are unaffected.
func (s *Scanner) ScanNow(ctx context.Context) {
	if len(s.sources) == 0 {
		logging.Debug("No catalog sources configured, skipping scan")
		return
	}

	start := time.Now()
	metrics.ScanRunsTotal.Inc()

	for _, source := range s.sources {
		items, shows, err := source.Scan(ctx)
		if err != nil {
			logging.Error("Catalog scan of %s failed: %v", source.Name(), err)
			continue
		}
		if err := s.store.ReplaceAll(ctx, source.Name(), items, shows); err != nil {
			logging.Error("Failed to store %s catalog: %v", source.Name(), err)
		}
	}

	elapsed := time.Since(start)
	metrics.ScanDuration.Set(elapsed.Seconds())
	logging.Info("Catalog scan finished in %s", elapsed.Round(time.Millisecond))
}
