package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"media-encoder/internal/workers"
)

// PathMapping rewrites a filesystem prefix seen by the media catalog into
// the prefix the encoder host observes. Order matters: the first matching
// source prefix wins, so mappings are configured as an ordered array.
type PathMapping struct {
	Source string `mapstructure:"source" json:"source"`
	Dest   string `mapstructure:"dest" json:"dest"`
}

// Preset is a named encode configuration. Presets are configuration data:
// the engine reads them by name and never mutates them.
type Preset struct {
	Codec         string `mapstructure:"codec" json:"codec"`
	Scale         string `mapstructure:"scale" json:"scale"`
	Container     string `mapstructure:"container" json:"container"`
	AudioCodec    string `mapstructure:"audio_codec" json:"audio_codec"`
	AudioBitrate  string `mapstructure:"audio_bitrate" json:"audio_bitrate"`
	CRF           int    `mapstructure:"crf" json:"crf"`
	AllowFallback bool   `mapstructure:"allow_fallback" json:"allow_fallback"`
}

// Config holds all the settings for the encoder service.
type Config struct {
	MediaPath         string            `mapstructure:"media_path"`
	TranscodePath     string            `mapstructure:"transcode_path"`
	FFmpegPath        string            `mapstructure:"ffmpeg_path"`
	FFprobePath       string            `mapstructure:"ffprobe_path"`
	JellyfinURL       string            `mapstructure:"jellyfin_url"`
	JellyfinAPIKey    string            `mapstructure:"jellyfin_api_key"`
	PlexURL           string            `mapstructure:"plex_url"`
	PlexToken         string            `mapstructure:"plex_token"`
	PathMappings      []PathMapping     `mapstructure:"path_mappings"`
	Presets           map[string]Preset `mapstructure:"presets"`
	MaxConcurrentJobs int               `mapstructure:"max_concurrent_jobs"`
	HWAccel           string            `mapstructure:"hw_accel"`
	HWDevice          string            `mapstructure:"hw_device"`
	ScanIntervalMin   int               `mapstructure:"scan_interval_minutes"`
	PosterCacheDir    string            `mapstructure:"poster_cache_dir"`
	DatabasePath      string            `mapstructure:"database_path"`
	Port              string            `mapstructure:"port"`
	LogLevel          string            `mapstructure:"log_level"`
}

// HasJellyfin reports whether a Jellyfin source is configured.
func (c *Config) HasJellyfin() bool {
	return c.JellyfinURL != "" && c.JellyfinAPIKey != ""
}

// HasPlex reports whether a Plex source is configured.
func (c *Config) HasPlex() bool {
	return c.PlexURL != "" && c.PlexToken != ""
}

// DefaultPresets are used when the config document defines none.
func DefaultPresets() map[string]Preset {
	return map[string]Preset{
		"high": {
			Codec:         "hevc",
			Scale:         "1080p",
			Container:     ".mkv",
			AudioCodec:    "aac",
			AudioBitrate:  "192k",
			CRF:           20,
			AllowFallback: true,
		},
		"medium": {
			Codec:         "hevc",
			Scale:         "720p",
			Container:     ".mkv",
			AudioCodec:    "aac",
			AudioBitrate:  "128k",
			CRF:           24,
			AllowFallback: true,
		},
		"low": {
			Codec:         "hevc",
			Scale:         "480p",
			Container:     ".mkv",
			AudioCodec:    "aac",
			AudioBitrate:  "96k",
			CRF:           28,
			AllowFallback: true,
		},
	}
}

// Load initializes viper and merges all config sources. The config file is
// a JSON document; any key can be overridden with an ENCODER_* environment
// variable. A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("media_path", "/media")
	v.SetDefault("transcode_path", "/transcodes")
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("ffprobe_path", "ffprobe")
	v.SetDefault("max_concurrent_jobs", 0)
	v.SetDefault("scan_interval_minutes", 60)
	v.SetDefault("database_path", "")
	v.SetDefault("port", "5101")
	v.SetDefault("log_level", "info")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
		// A missing config file is fine: defaults plus env apply.
	}

	v.SetEnvPrefix("ENCODER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(cfg.Presets) == 0 {
		cfg.Presets = DefaultPresets()
	}
	if cfg.MaxConcurrentJobs < 1 {
		cfg.MaxConcurrentJobs = workers.ForEncode(0)
	}
	if cfg.PosterCacheDir == "" {
		cfg.PosterCacheDir = filepath.Join(cfg.TranscodePath, ".posters")
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.TranscodePath, ".catalog.db")
	}

	return &cfg, nil
}
