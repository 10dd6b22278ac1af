package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"media-encoder/internal/config"
	"media-encoder/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// LogStartup prints the banner, system information and the resolved
// configuration.
func LogStartup(cfg *config.Config) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  media_path:           %s", cfg.MediaPath)
	logging.Info("  transcode_path:       %s", cfg.TranscodePath)
	logging.Info("  ffmpeg_path:          %s", cfg.FFmpegPath)
	logging.Info("  ffprobe_path:         %s", cfg.FFprobePath)
	logging.Info("  max_concurrent_jobs:  %d", cfg.MaxConcurrentJobs)
	logging.Info("  scan_interval:        %dm", cfg.ScanIntervalMin)
	logging.Info("  port:                 %s", cfg.Port)
	logging.Info("  log_level:            %s", logging.GetLevel())
	if cfg.HWAccel != "" {
		logging.Info("  hw_accel:             %s (device: %s)", cfg.HWAccel, orNone(cfg.HWDevice))
	} else {
		logging.Info("  hw_accel:             none (software encoding)")
	}
	logging.Info("  path_mappings:        %d", len(cfg.PathMappings))
	logging.Info("  presets:              %s", presetNames(cfg))
	logging.Info("")
	logging.Info("  Catalog sources:")
	logging.Info("    Jellyfin: %s", enabledString(cfg.HasJellyfin()))
	logging.Info("    Plex:     %s", enabledString(cfg.HasPlex()))
	logging.Info("")
}

// ValidateDirectories checks the transcode output directory is writable
// (required) and warns about an unreadable media path.
func ValidateDirectories(cfg *config.Config) error {
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := ensureDirectory(cfg.TranscodePath, "transcode"); err != nil {
		return fmt.Errorf("transcode directory error: %w", err)
	}
	if err := testWriteAccess(cfg.TranscodePath); err != nil {
		return fmt.Errorf("transcode directory is not writable: %w", err)
	}
	logging.Info("  [OK] Transcode directory is writable")

	if _, err := os.Stat(cfg.MediaPath); err != nil {
		logging.Warn("  Media path issue: %v", err)
		logging.Warn("  Encodes of local media may fail until it is mounted")
	}

	logging.Info("")
	return nil
}

// CheckEncoders verifies the ffmpeg and ffprobe binaries are runnable.
// A broken ffmpeg is fatal; ffprobe only degrades media inspection.
func CheckEncoders(cfg *config.Config) error {
	logging.Info("------------------------------------------------------------")
	logging.Info("ENCODER SETUP")
	logging.Info("------------------------------------------------------------")

	if err := checkBinary(cfg.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg check failed: %w", err)
	}
	logging.Info("  [OK] ffmpeg is available")

	if err := checkBinary(cfg.FFprobePath); err != nil {
		logging.Warn("  ffprobe check failed: %v", err)
	} else {
		logging.Info("  [OK] ffprobe is available")
	}

	logging.Info("")
	return nil
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified
			methods = []string{"*"}
		}

		name := route.GetName()
		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(port string, startupDuration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:  %v", startupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:       http://0.0.0.0:%s/api", port)
	logging.Info("    Metrics:   http://0.0.0.0:%s/metrics", port)
	logging.Info("    Health:    http://0.0.0.0:%s/healthz", port)
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
                   ___
  __ _  ___ ___/ (_)__ ________ ___  _______  ___/ /__ ____
 /  ' \/ -_) _  / / _ '/___/ -_) _ \/ __/ _ \/ _  / -_) __/
/_/_/_/\__/\_,_/_/\_,_/    \__/_//_/\__/\___/\_,_/\__/_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if hostname, err := os.Hostname(); err == nil {
		logging.Debug("  Hostname:        %s", hostname)
	}
	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Write access was confirmed regardless
	}
	return nil
}

func checkBinary(path string) error {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return fmt.Errorf("%s not found", path)
	}
	logging.Debug("  Binary path: %s", resolved)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, resolved, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  Version: %s", strings.TrimSpace(lines[0]))
	}
	return nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func presetNames(cfg *config.Config) string {
	names := make([]string, 0, len(cfg.Presets))
	for name := range cfg.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
