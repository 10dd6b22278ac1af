package catalog

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/hashicorp/go-retryablehttp"

	"media-encoder/internal/logging"
)

const (
	posterWidth   = 300
	posterHeight  = 450
	posterQuality = 80
)

// PosterCache serves poster thumbnails for catalog entries. Posters are
// fetched from the upstream server's poster URL on first request, resized
// and cached on disk keyed by media ID.
type PosterCache struct {
	cacheDir   string
	store      *Store
	httpClient *http.Client
	mu         sync.Mutex
}

// NewPosterCache creates the cache directory if needed.
func NewPosterCache(cacheDir string, store *Store) *PosterCache {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		logging.Warn("Failed to create poster cache dir %s: %v", cacheDir, err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 3 * time.Second
	retryClient.Logger = nil

	return &PosterCache{
		cacheDir:   cacheDir,
		store:      store,
		httpClient: retryClient.StandardClient(),
	}
}

// Poster returns JPEG thumbnail bytes for a media item or show ID.
func (p *PosterCache) Poster(ctx context.Context, id string) ([]byte, error) {
	if strings.ContainsAny(id, "/\\") || id == "" {
		return nil, fmt.Errorf("invalid poster id %q", id)
	}

	cachePath := filepath.Join(p.cacheDir, id+".jpg")
	if data, err := os.ReadFile(cachePath); err == nil {
		logging.Debug("Poster cache hit: %s", id)
		return data, nil
	}

	// Only one fetch at a time; re-check the cache under the lock so
	// concurrent requests for the same poster fetch it once.
	p.mu.Lock()
	defer p.mu.Unlock()
	if data, err := os.ReadFile(cachePath); err == nil {
		return data, nil
	}

	posterURL, err := p.posterSource(ctx, id)
	if err != nil {
		return nil, err
	}

	img, err := p.fetch(ctx, posterURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch poster for %s: %w", id, err)
	}

	thumb := imaging.Fit(img, posterWidth, posterHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: posterQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode poster: %w", err)
	}

	if err := os.WriteFile(cachePath, buf.Bytes(), 0644); err != nil {
		logging.Warn("Failed to cache poster %s: %v", cachePath, err)
	}
	return buf.Bytes(), nil
}

// posterSource resolves the upstream poster URL for a media item or show.
func (p *PosterCache) posterSource(ctx context.Context, id string) (string, error) {
	if item, err := p.store.Media(ctx, id); err == nil {
		if item.PosterURL == "" {
			return "", fmt.Errorf("no poster available for %s", id)
		}
		return item.PosterURL, nil
	}

	show, _, err := p.store.Show(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrMediaNotFound, id)
	}
	if show.PosterURL == "" {
		return "", fmt.Errorf("no poster available for %s", id)
	}
	return show.PosterURL, nil
}

func (p *PosterCache) fetch(ctx context.Context, posterURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, posterURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode poster image: %w", err)
	}
	return img, nil
}
