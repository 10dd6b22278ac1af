package transcode

import (
	"bytes"
	"os/exec"
	"strings"

	"media-encoder/internal/logging"
)

// Capabilities records which encoders the host's ffmpeg build offers.
// A failed or skipped probe yields a zero value that supports nothing,
// which pushes every hardware preset down its fallback path.
type Capabilities struct {
	encoders map[string]bool
	probed   bool
}

// Probed reports whether the capability probe succeeded.
func (c Capabilities) Probed() bool {
	return c.probed
}

// Supports reports whether the named encoder is available.
func (c Capabilities) Supports(encoder string) bool {
	return c.probed && c.encoders[encoder]
}

// CapabilitiesFromEncoders builds Capabilities from an explicit encoder
// list. Used by tests and by configuration overrides.
func CapabilitiesFromEncoders(encoders ...string) Capabilities {
	m := make(map[string]bool, len(encoders))
	for _, e := range encoders {
		m[e] = true
	}
	return Capabilities{encoders: m, probed: true}
}

// ProbeCapabilities asks ffmpeg which encoders it supports. Checking the
// encoder list rather than drivers proves ffmpeg can actually use the
// hardware. Probe failure is not fatal: the engine runs software-only.
func ProbeCapabilities(ffmpegPath string) Capabilities {
	cmd := exec.Command(ffmpegPath, "-hide_banner", "-encoders")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		logging.Warn("Encoder capability probe failed: %v", err)
		return Capabilities{}
	}

	known := []string{
		"h264_nvenc", "hevc_nvenc",
		"h264_vaapi", "hevc_vaapi",
		"h264_qsv", "hevc_qsv",
		"h264_videotoolbox", "hevc_videotoolbox",
		"libx264", "libx265",
	}

	output := out.String()
	encoders := make(map[string]bool)
	for _, name := range known {
		if strings.Contains(output, name) {
			encoders[name] = true
		}
	}

	logging.Info("Probed %d usable encoders", len(encoders))
	return Capabilities{encoders: encoders, probed: true}
}
