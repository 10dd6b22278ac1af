// Package metrics defines the Prometheus instrumentation for the media
// encoder: HTTP request metrics, job engine gauges and counters, and
// catalog scan metrics. Metrics are registered via promauto at package
// initialization and served on /metrics.
package metrics
