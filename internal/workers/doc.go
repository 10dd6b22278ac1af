// Package workers derives sensible concurrency defaults from the host CPU
// count, respecting container CPU limits via GOMAXPROCS.
package workers
