package catalog

import "fmt"

// Media item types as stored in the catalog.
const (
	TypeMovie   = "movie"
	TypeEpisode = "episode"
)

// Source server names.
const (
	SourceJellyfin = "jellyfin"
	SourcePlex     = "plex"
)

// MediaItem is one transcodable entry in the catalog: a movie or a single
// episode. IDs are the upstream server's item identifiers, so they remain
// stable across rescans.
type MediaItem struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Year          int    `json:"year,omitempty"`
	Type          string `json:"type"`
	Path          string `json:"path"`
	PosterURL     string `json:"poster_url,omitempty"`
	ShowID        string `json:"show_id,omitempty"`
	SeasonNumber  int    `json:"season_number,omitempty"`
	EpisodeNumber int    `json:"episode_number,omitempty"`
	Server        string `json:"server"`
}

// DisplayName is the human-readable name used for output filenames and
// listings: "Title (Year)" for movies, "Show - S01E02 - Title" for
// episodes when the show title is known.
func (m MediaItem) DisplayName() string {
	switch {
	case m.Type == TypeEpisode && m.SeasonNumber > 0 && m.EpisodeNumber > 0:
		return fmt.Sprintf("S%02dE%02d - %s", m.SeasonNumber, m.EpisodeNumber, m.Title)
	case m.Type == TypeMovie && m.Year > 0:
		return fmt.Sprintf("%s (%d)", m.Title, m.Year)
	default:
		return m.Title
	}
}

// Show is a TV series grouping episodes in the catalog.
type Show struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year,omitempty"`
	PosterURL string `json:"poster_url,omitempty"`
	Server    string `json:"server"`
}

// DisplayName includes the year when known.
func (s Show) DisplayName() string {
	if s.Year > 0 {
		return fmt.Sprintf("%s (%d)", s.Title, s.Year)
	}
	return s.Title
}

// Season groups a show's episodes for presentation.
type Season struct {
	Number   int         `json:"number"`
	Episodes []MediaItem `json:"episodes"`
}
