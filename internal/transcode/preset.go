package transcode

import (
	"fmt"

	"media-encoder/internal/config"
)

// Resolved is the concrete parameter bundle a worker encodes with: the
// preset as configured plus the selected video encoder and any hardware
// acceleration arguments. Degraded is set when hardware acceleration was
// configured but the resolver fell back to software encoding.
type Resolved struct {
	Name        string
	Preset      config.Preset
	VideoCodec  string
	HWAccelArgs []string
	Degraded    bool
}

// Resolver turns a preset name plus the global hardware-acceleration
// configuration into a Resolved parameter bundle.
type Resolver struct {
	presets  map[string]config.Preset
	hwAccel  string
	hwDevice string
	caps     Capabilities
}

// NewResolver creates a resolver over the configured presets. caps should
// come from ProbeCapabilities; a zero Capabilities behaves as if every
// hardware probe failed.
func NewResolver(presets map[string]config.Preset, hwAccel, hwDevice string, caps Capabilities) *Resolver {
	return &Resolver{
		presets:  presets,
		hwAccel:  hwAccel,
		hwDevice: hwDevice,
		caps:     caps,
	}
}

// Has reports whether a preset with the given name is configured.
func (r *Resolver) Has(name string) bool {
	_, ok := r.presets[name]
	return ok
}

// Names returns the configured preset names.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	return names
}

// Preset returns the raw preset configuration by name.
func (r *Resolver) Preset(name string) (config.Preset, bool) {
	p, ok := r.presets[name]
	return p, ok
}

// Resolve selects the concrete encoder for a named preset.
//
// If a hardware-acceleration method is configured and the capability probe
// saw the matching encoder, the hardware variant is selected. Otherwise the
// software codec is used when the preset allows fallback (recorded as a
// degradation for the worker to log), or resolution fails with
// ErrHardwareUnavailable when it does not.
func (r *Resolver) Resolve(name string) (Resolved, error) {
	preset, ok := r.presets[name]
	if !ok {
		return Resolved{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}

	resolved := Resolved{
		Name:       name,
		Preset:     preset,
		VideoCodec: softwareEncoder(preset.Codec),
	}

	if r.hwAccel == "" {
		return resolved, nil
	}

	hwEncoder := hardwareEncoder(preset.Codec, r.hwAccel)
	if hwEncoder != "" && r.caps.Supports(hwEncoder) {
		resolved.VideoCodec = hwEncoder
		resolved.HWAccelArgs = hwAccelArgs(r.hwAccel, r.hwDevice)
		return resolved, nil
	}

	if !preset.AllowFallback {
		return Resolved{}, fmt.Errorf("%w: %s encoder %q not usable and preset %q forbids fallback",
			ErrHardwareUnavailable, r.hwAccel, hwEncoder, name)
	}

	resolved.Degraded = true
	return resolved, nil
}

// softwareEncoder maps a preset codec to its software ffmpeg encoder.
// Unrecognized codecs default to libx264, matching the most widely
// supported output.
func softwareEncoder(codec string) string {
	switch codec {
	case "hevc", "h265":
		return "libx265"
	case "h264", "":
		return "libx264"
	default:
		return "libx264"
	}
}

// hardwareEncoder returns the ffmpeg encoder name for a codec/method pair,
// or "" when the method has no variant for the codec.
func hardwareEncoder(codec, method string) string {
	base := "h264"
	switch codec {
	case "hevc", "h265":
		base = "hevc"
	}

	switch method {
	case "nvenc", "vaapi", "qsv", "videotoolbox":
		return base + "_" + method
	default:
		return ""
	}
}

// hwAccelArgs builds the input-side acceleration arguments for a method.
func hwAccelArgs(method, device string) []string {
	switch method {
	case "vaapi":
		args := []string{"-hwaccel", "vaapi"}
		if device != "" {
			args = append(args, "-vaapi_device", device)
		}
		return args
	case "nvenc":
		return []string{"-hwaccel", "cuda"}
	case "qsv":
		return []string{"-hwaccel", "qsv"}
	case "videotoolbox":
		return []string{"-hwaccel", "videotoolbox"}
	default:
		return nil
	}
}
