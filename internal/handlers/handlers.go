package handlers

import (
	"time"

	"media-encoder/internal/catalog"
	"media-encoder/internal/config"
	"media-encoder/internal/transcode"
)

// Handlers bundles the HTTP API's dependencies: the catalog for media
// queries, the transcode engine for job operations and the completed
// store for artifacts.
type Handlers struct {
	store     *catalog.Store
	posters   *catalog.PosterCache
	scanner   *catalog.Scanner
	registry  *transcode.Registry
	scheduler *transcode.Scheduler
	resolver  *transcode.Resolver
	completed *transcode.CompletedStore
	presets   map[string]config.Preset
	startTime time.Time
}

// New creates the handler set.
func New(
	store *catalog.Store,
	posters *catalog.PosterCache,
	scanner *catalog.Scanner,
	registry *transcode.Registry,
	scheduler *transcode.Scheduler,
	resolver *transcode.Resolver,
	completed *transcode.CompletedStore,
	presets map[string]config.Preset,
) *Handlers {
	return &Handlers{
		store:     store,
		posters:   posters,
		scanner:   scanner,
		registry:  registry,
		scheduler: scheduler,
		resolver:  resolver,
		completed: completed,
		presets:   presets,
		startTime: time.Now(),
	}
}
