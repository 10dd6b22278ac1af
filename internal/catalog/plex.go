package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"media-encoder/internal/logging"
)

// PlexClient scans a Plex server's library sections into catalog models.
// Movies come from each movie section's listing; episodes come from the
// allLeaves listing of each show.
type PlexClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewPlexClient creates a client with retries for transient upstream
// failures.
func NewPlexClient(baseURL, token string) *PlexClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	return &PlexClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: retryClient.StandardClient(),
	}
}

// Name identifies this source in logs and store rows.
func (c *PlexClient) Name() string { return SourcePlex }

type plexContainer struct {
	MediaContainer struct {
		Directory []plexDirectory `json:"Directory"`
		Metadata  []plexMetadata  `json:"Metadata"`
	} `json:"MediaContainer"`
}

type plexDirectory struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

type plexMetadata struct {
	RatingKey   string      `json:"ratingKey"`
	Title       string      `json:"title"`
	Year        int         `json:"year"`
	Thumb       string      `json:"thumb"`
	ParentIndex int         `json:"parentIndex"`
	Index       int         `json:"index"`
	Media       []plexMedia `json:"Media"`
}

type plexMedia struct {
	Part []plexPart `json:"Part"`
}

type plexPart struct {
	File string `json:"file"`
}

// filePath returns the first part's file path, or "" when the metadata
// carries no playable media.
func (m plexMetadata) filePath() string {
	for _, media := range m.Media {
		for _, part := range media.Part {
			if part.File != "" {
				return part.File
			}
		}
	}
	return ""
}

// Scan walks every library section: movie sections contribute movies,
// show sections contribute the shows and their episodes.
func (c *PlexClient) Scan(ctx context.Context) ([]MediaItem, []Show, error) {
	var sections plexContainer
	if err := c.get(ctx, "/library/sections", &sections); err != nil {
		return nil, nil, fmt.Errorf("plex section listing failed: %w", err)
	}

	var items []MediaItem
	var shows []Show

	for _, section := range sections.MediaContainer.Directory {
		switch section.Type {
		case "movie":
			movies, err := c.sectionItems(ctx, section.Key)
			if err != nil {
				return nil, nil, err
			}
			items = append(items, movies...)

		case "show":
			sectionShows, episodes, err := c.sectionShows(ctx, section.Key)
			if err != nil {
				return nil, nil, err
			}
			shows = append(shows, sectionShows...)
			items = append(items, episodes...)
		}
	}

	logging.Info("Plex scan found %d items across %d shows", len(items), len(shows))
	return items, shows, nil
}

func (c *PlexClient) sectionItems(ctx context.Context, sectionKey string) ([]MediaItem, error) {
	var listing plexContainer
	path := fmt.Sprintf("/library/sections/%s/all", sectionKey)
	if err := c.get(ctx, path, &listing); err != nil {
		return nil, fmt.Errorf("plex movie listing failed: %w", err)
	}

	var items []MediaItem
	for _, meta := range listing.MediaContainer.Metadata {
		file := meta.filePath()
		if file == "" {
			continue
		}
		items = append(items, MediaItem{
			ID:        meta.RatingKey,
			Title:     meta.Title,
			Year:      meta.Year,
			Type:      TypeMovie,
			Path:      file,
			PosterURL: c.posterURL(meta.Thumb),
			Server:    SourcePlex,
		})
	}
	return items, nil
}

func (c *PlexClient) sectionShows(ctx context.Context, sectionKey string) ([]Show, []MediaItem, error) {
	var listing plexContainer
	path := fmt.Sprintf("/library/sections/%s/all", sectionKey)
	if err := c.get(ctx, path, &listing); err != nil {
		return nil, nil, fmt.Errorf("plex show listing failed: %w", err)
	}

	var shows []Show
	var episodes []MediaItem

	for _, meta := range listing.MediaContainer.Metadata {
		show := Show{
			ID:        meta.RatingKey,
			Title:     meta.Title,
			Year:      meta.Year,
			PosterURL: c.posterURL(meta.Thumb),
			Server:    SourcePlex,
		}
		shows = append(shows, show)

		var leaves plexContainer
		leafPath := fmt.Sprintf("/library/metadata/%s/allLeaves", meta.RatingKey)
		if err := c.get(ctx, leafPath, &leaves); err != nil {
			return nil, nil, fmt.Errorf("plex episode listing for %s failed: %w", meta.Title, err)
		}

		for _, ep := range leaves.MediaContainer.Metadata {
			file := ep.filePath()
			if file == "" {
				continue
			}
			episodes = append(episodes, MediaItem{
				ID:            ep.RatingKey,
				Title:         ep.Title,
				Year:          ep.Year,
				Type:          TypeEpisode,
				Path:          file,
				PosterURL:     c.posterURL(ep.Thumb),
				ShowID:        show.ID,
				SeasonNumber:  ep.ParentIndex,
				EpisodeNumber: ep.Index,
				Server:        SourcePlex,
			})
		}
	}
	return shows, episodes, nil
}

func (c *PlexClient) get(ctx context.Context, path string, out *plexContainer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *PlexClient) posterURL(thumb string) string {
	if thumb == "" {
		return ""
	}
	return fmt.Sprintf("%s%s?X-Plex-Token=%s", c.baseURL, thumb, c.token)
}
