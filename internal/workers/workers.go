package workers

import (
	"os"
	"runtime"
	"strconv"
)

// ForEncode returns the default number of concurrent encode slots when the
// configuration does not pin max_concurrent_jobs. Encoding is CPU-bound, but
// a single ffmpeg process already parallelizes across cores, so the default
// is a quarter of the available CPUs rather than one slot per CPU.
//
// GOMAXPROCS respects container CPU limits (Go 1.19+). The limit parameter
// caps the result; use 0 for no cap. Can be overridden with the
// ENCODE_SLOTS environment variable.
func ForEncode(limit int) int {
	if override := os.Getenv("ENCODE_SLOTS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return capped(count, limit)
		}
	}

	available := runtime.GOMAXPROCS(0)
	slots := available / 4
	if slots < 1 {
		slots = 1
	}
	return capped(slots, limit)
}

func capped(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}
