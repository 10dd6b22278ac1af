package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"media-encoder/internal/logging"
)

// JellyfinClient scans a Jellyfin server's library into catalog models
// using the Items API with recursive type filters.
type JellyfinClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewJellyfinClient creates a client with retries for transient upstream
// failures.
func NewJellyfinClient(baseURL, apiKey string) *JellyfinClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	return &JellyfinClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: retryClient.StandardClient(),
	}
}

// Name identifies this source in logs and store rows.
func (c *JellyfinClient) Name() string { return SourceJellyfin }

type jellyfinItemsResponse struct {
	Items []jellyfinItem `json:"Items"`
}

type jellyfinItem struct {
	ID                string `json:"Id"`
	Name              string `json:"Name"`
	Path              string `json:"Path"`
	ProductionYear    int    `json:"ProductionYear"`
	SeriesID          string `json:"SeriesId"`
	ParentIndexNumber int    `json:"ParentIndexNumber"`
	IndexNumber       int    `json:"IndexNumber"`
}

// Scan fetches movies, series and episodes. Items without a Path are not
// transcodable and are skipped; episodes whose series was not seen are
// skipped too.
func (c *JellyfinClient) Scan(ctx context.Context) ([]MediaItem, []Show, error) {
	movies, err := c.items(ctx, "Movie", "Path,Year")
	if err != nil {
		return nil, nil, fmt.Errorf("jellyfin movie scan failed: %w", err)
	}

	var items []MediaItem
	for _, m := range movies {
		if m.Path == "" {
			continue
		}
		items = append(items, MediaItem{
			ID:        m.ID,
			Title:     m.Name,
			Year:      m.ProductionYear,
			Type:      TypeMovie,
			Path:      m.Path,
			PosterURL: c.posterURL(m.ID),
			Server:    SourceJellyfin,
		})
	}

	series, err := c.items(ctx, "Series", "Path,Year")
	if err != nil {
		return nil, nil, fmt.Errorf("jellyfin series scan failed: %w", err)
	}

	var shows []Show
	known := make(map[string]bool, len(series))
	for _, s := range series {
		known[s.ID] = true
		shows = append(shows, Show{
			ID:        s.ID,
			Title:     s.Name,
			Year:      s.ProductionYear,
			PosterURL: c.posterURL(s.ID),
			Server:    SourceJellyfin,
		})
	}

	episodes, err := c.items(ctx, "Episode", "Path,SeriesName,SeasonName,ParentIndexNumber,IndexNumber,Year")
	if err != nil {
		return nil, nil, fmt.Errorf("jellyfin episode scan failed: %w", err)
	}

	for _, e := range episodes {
		if e.Path == "" || !known[e.SeriesID] {
			continue
		}
		items = append(items, MediaItem{
			ID:            e.ID,
			Title:         e.Name,
			Year:          e.ProductionYear,
			Type:          TypeEpisode,
			Path:          e.Path,
			PosterURL:     c.posterURL(e.ID),
			ShowID:        e.SeriesID,
			SeasonNumber:  e.ParentIndexNumber,
			EpisodeNumber: e.IndexNumber,
			Server:        SourceJellyfin,
		})
	}

	logging.Info("Jellyfin scan found %d items across %d shows", len(items), len(shows))
	return items, shows, nil
}

func (c *JellyfinClient) items(ctx context.Context, itemType, fields string) ([]jellyfinItem, error) {
	query := url.Values{
		"IncludeItemTypes": {itemType},
		"Recursive":        {"true"},
		"Fields":           {fields},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/Items?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-MediaBrowser-Token", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var body jellyfinItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return body.Items, nil
}

func (c *JellyfinClient) posterURL(itemID string) string {
	return fmt.Sprintf("%s/Items/%s/Images/Primary?api_key=%s", c.baseURL, itemID, c.apiKey)
}
