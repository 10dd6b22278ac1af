// Package handlers implements the HTTP JSON API: catalog queries,
// transcode job submission and lifecycle operations, completed-artifact
// management and downloads, and the health, version and system
// endpoints.
package handlers
