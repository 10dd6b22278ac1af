// Package transcode implements the transcode job engine: an in-memory job
// registry with a closed status state machine, a FIFO scheduler that bounds
// concurrent encodes, workers that drive one ffmpeg process each, preset
// resolution with hardware-acceleration fallback, prefix-based path mapping
// between catalog and encoder filesystem views, and a sidecar-file store
// for completed artifacts.
//
// The registry is volatile: it is scoped to one running instance and not
// persisted. Completed artifacts and their metadata survive restarts
// through the CompletedStore.
package transcode
