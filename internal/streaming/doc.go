// Package streaming provides timeout-protected writing of large
// transcode artifacts to HTTP clients. A slow or stalled client trips
// the write or idle timeout instead of pinning server resources for the
// lifetime of a multi-gigabyte download.
package streaming
