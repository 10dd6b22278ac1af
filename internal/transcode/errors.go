package transcode

import "errors"

// Sentinel errors for engine operations. Handlers map these to HTTP
// statuses with errors.Is; job-internal failures never surface as errors
// and are captured into the job's failed state instead.
var (
	// ErrUnknownPreset indicates a requested preset name is not configured.
	ErrUnknownPreset = errors.New("unknown preset")

	// ErrHardwareUnavailable indicates hardware acceleration was required
	// by a preset (allow_fallback=false) but no usable encoder was found.
	ErrHardwareUnavailable = errors.New("hardware acceleration unavailable")

	// ErrJobNotFound indicates the referenced job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotRemovable indicates removal was attempted on a job that is
	// not in a terminal state.
	ErrJobNotRemovable = errors.New("job is not in a terminal state")
)
