package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-encoder/internal/logging"
	"media-encoder/internal/metrics"
)

// ErrMediaNotFound is returned when a media ID is absent from the catalog.
var ErrMediaNotFound = errors.New("media item not found")

// ErrShowNotFound is returned when a show ID is absent from the catalog.
var ErrShowNotFound = errors.New("show not found")

const defaultTimeout = 5 * time.Second

// Store persists the scanned media catalog in SQLite so the service can
// answer media queries (and resolve transcode submissions) without a
// round-trip to the upstream server. The catalog is a cache: a rescan
// replaces everything a source contributed.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (or creates) the catalog database at dbPath. The parent
// directory must already exist and be writable.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Catalog database path: %s", dbPath)

	// WAL mode and busy_timeout keep concurrent scans and reads from
	// tripping "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to catalog database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog database after schema failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS media_items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		year INTEGER NOT NULL DEFAULT 0,
		type TEXT NOT NULL,
		path TEXT NOT NULL,
		poster_url TEXT,
		show_id TEXT,
		season_number INTEGER NOT NULL DEFAULT 0,
		episode_number INTEGER NOT NULL DEFAULT 0,
		server TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_media_type ON media_items(type);
	CREATE INDEX IF NOT EXISTS idx_media_show ON media_items(show_id, season_number, episode_number);
	CREATE INDEX IF NOT EXISTS idx_media_server ON media_items(server);
	CREATE INDEX IF NOT EXISTS idx_media_title ON media_items(title COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS shows (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		year INTEGER NOT NULL DEFAULT 0,
		poster_url TEXT,
		server TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_shows_server ON shows(server);
	CREATE INDEX IF NOT EXISTS idx_shows_title ON shows(title COLLATE NOCASE);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceAll swaps the given server's catalog contribution for the scan
// results in one transaction, so readers never observe a half-replaced
// catalog.
func (s *Store) ReplaceAll(ctx context.Context, server string, items []MediaItem, shows []Show) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin catalog transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logging.Error("catalog rollback failed: %v", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM media_items WHERE server = ?`, server); err != nil {
		return fmt.Errorf("failed to clear media items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM shows WHERE server = ?`, server); err != nil {
		return fmt.Errorf("failed to clear shows: %w", err)
	}

	itemStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO media_items
		(id, title, year, type, path, poster_url, show_id, season_number, episode_number, server)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare media insert: %w", err)
	}
	defer itemStmt.Close()

	for _, item := range items {
		if _, err := itemStmt.ExecContext(ctx,
			item.ID, item.Title, item.Year, item.Type, item.Path, item.PosterURL,
			item.ShowID, item.SeasonNumber, item.EpisodeNumber, server); err != nil {
			return fmt.Errorf("failed to insert media item %s: %w", item.ID, err)
		}
	}

	showStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO shows (id, title, year, poster_url, server)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare show insert: %w", err)
	}
	defer showStmt.Close()

	for _, show := range shows {
		if _, err := showStmt.ExecContext(ctx,
			show.ID, show.Title, show.Year, show.PosterURL, server); err != nil {
			return fmt.Errorf("failed to insert show %s: %w", show.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog replacement: %w", err)
	}

	s.updateGauges(ctx)
	return nil
}

// Media returns one media item by ID.
func (s *Store) Media(ctx context.Context, id string) (MediaItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, year, type, path, COALESCE(poster_url, ''),
		       COALESCE(show_id, ''), season_number, episode_number, server
		FROM media_items WHERE id = ?`, id)

	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return MediaItem{}, fmt.Errorf("%w: %s", ErrMediaNotFound, id)
	}
	if err != nil {
		return MediaItem{}, fmt.Errorf("failed to query media item: %w", err)
	}
	return item, nil
}

// AllMedia returns every catalog entry, movies and episodes alike, sorted
// by title.
func (s *Store) AllMedia(ctx context.Context) ([]MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, year, type, path, COALESCE(poster_url, ''),
		       COALESCE(show_id, ''), season_number, episode_number, server
		FROM media_items
		ORDER BY title COLLATE NOCASE, season_number, episode_number`)
	if err != nil {
		return nil, fmt.Errorf("failed to query media items: %w", err)
	}
	defer rows.Close()

	return collectMediaItems(rows)
}

// Movies returns only the movie entries, sorted by title.
func (s *Store) Movies(ctx context.Context) ([]MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, year, type, path, COALESCE(poster_url, ''),
		       COALESCE(show_id, ''), season_number, episode_number, server
		FROM media_items WHERE type = ?
		ORDER BY title COLLATE NOCASE`, TypeMovie)
	if err != nil {
		return nil, fmt.Errorf("failed to query movies: %w", err)
	}
	defer rows.Close()

	return collectMediaItems(rows)
}

// Shows returns all series sorted by title.
func (s *Store) Shows(ctx context.Context) ([]Show, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, year, COALESCE(poster_url, ''), server
		FROM shows ORDER BY title COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shows: %w", err)
	}
	defer rows.Close()

	var shows []Show
	for rows.Next() {
		var show Show
		if err := rows.Scan(&show.ID, &show.Title, &show.Year, &show.PosterURL, &show.Server); err != nil {
			return nil, fmt.Errorf("failed to scan show: %w", err)
		}
		shows = append(shows, show)
	}
	return shows, rows.Err()
}

// Show returns one series with its episodes grouped into seasons.
func (s *Store) Show(ctx context.Context, id string) (Show, []Season, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, year, COALESCE(poster_url, ''), server
		FROM shows WHERE id = ?`, id)

	var show Show
	err := row.Scan(&show.ID, &show.Title, &show.Year, &show.PosterURL, &show.Server)
	if errors.Is(err, sql.ErrNoRows) {
		return Show{}, nil, fmt.Errorf("%w: %s", ErrShowNotFound, id)
	}
	if err != nil {
		return Show{}, nil, fmt.Errorf("failed to query show: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, year, type, path, COALESCE(poster_url, ''),
		       COALESCE(show_id, ''), season_number, episode_number, server
		FROM media_items WHERE show_id = ?
		ORDER BY season_number, episode_number`, id)
	if err != nil {
		return Show{}, nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	episodes, err := collectMediaItems(rows)
	if err != nil {
		return Show{}, nil, err
	}

	var seasons []Season
	for _, ep := range episodes {
		if len(seasons) == 0 || seasons[len(seasons)-1].Number != ep.SeasonNumber {
			seasons = append(seasons, Season{Number: ep.SeasonNumber})
		}
		last := &seasons[len(seasons)-1]
		last.Episodes = append(last.Episodes, ep)
	}
	return show, seasons, nil
}

// Counts returns the number of catalog entries per type.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM media_items GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count media items: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{TypeMovie: 0, TypeEpisode: 0}
	for rows.Next() {
		var mediaType string
		var count int
		if err := rows.Scan(&mediaType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[mediaType] = count
	}
	return counts, rows.Err()
}

func (s *Store) updateGauges(ctx context.Context) {
	counts, err := s.Counts(ctx)
	if err != nil {
		logging.Warn("Failed to refresh catalog gauges: %v", err)
		return
	}
	for mediaType, count := range counts {
		metrics.CatalogItems.WithLabelValues(mediaType).Set(float64(count))
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMediaItem(row rowScanner) (MediaItem, error) {
	var item MediaItem
	err := row.Scan(&item.ID, &item.Title, &item.Year, &item.Type, &item.Path,
		&item.PosterURL, &item.ShowID, &item.SeasonNumber, &item.EpisodeNumber, &item.Server)
	return item, err
}

func collectMediaItems(rows *sql.Rows) ([]MediaItem, error) {
	var items []MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
