package transcode

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"media-encoder/internal/logging"
	"media-encoder/internal/metrics"
)

// killGracePeriod is how long a cancelled worker waits after SIGTERM
// before force-killing ffmpeg.
const killGracePeriod = 5 * time.Second

// worker owns exactly one job's external-process lifecycle: build the
// ffmpeg invocation, launch it, wait for exit or cancellation, classify
// the outcome and hand successful artifacts to the completed store. The
// worker is the sole writer of its job's processing→terminal transition.
type worker struct {
	jobID      string
	media      Media
	resolved   Resolved
	registry   *Registry
	mapper     MappingTable
	store      *CompletedStore
	ffmpegPath string
	outputRoot string
	grace      time.Duration
	cancel     <-chan struct{}
}

func (w *worker) run() {
	start := time.Now()

	if w.resolved.Degraded {
		logging.Warn("Job %s: hardware acceleration unavailable, falling back to %s",
			w.jobID, w.resolved.VideoCodec)
	}

	input := w.mapper.Apply(w.media.Path)
	if input != w.media.Path {
		logging.Debug("Job %s: mapped source path %s -> %s", w.jobID, w.media.Path, input)
	}

	sourceInfo, err := os.Stat(input)
	if err != nil {
		w.fail(fmt.Sprintf("source file not found: %s", input))
		return
	}

	if err := os.MkdirAll(w.outputRoot, 0755); err != nil {
		w.fail(fmt.Sprintf("cannot create output directory %s: %v", w.outputRoot, err))
		return
	}

	outputPath := filepath.Join(w.outputRoot, outputFilename(w.media.DisplayName, w.resolved.Name, w.resolved.Preset.Container))
	args := buildArgs(w.resolved, input, outputPath)
	logging.Debug("Job %s: %s %s", w.jobID, w.ffmpegPath, strings.Join(args, " "))

	cmd := exec.Command(w.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		w.fail(fmt.Sprintf("failed to start encoder: %v", err))
		return
	}
	logging.Info("Job %s: encoder started (pid %d)", w.jobID, cmd.Process.Pid)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			w.fail(diagnostic(&stderr, err))
			removePartial(outputPath)
			return
		}
		w.complete(input, sourceInfo.Size(), outputPath, time.Since(start))

	case <-w.cancel:
		logging.Info("Job %s: cancellation requested, terminating encoder", w.jobID)
		w.terminate(cmd, done)
		removePartial(outputPath)
		w.registry.finish(w.jobID, StatusCancelled, "", "")
	}
}

// complete verifies the artifact and records the result. A zero-byte or
// missing output file is a failure regardless of the process exit code.
func (w *worker) complete(input string, sourceSize int64, outputPath string, elapsed time.Duration) {
	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		w.fail("encoder exited cleanly but produced no usable output")
		removePartial(outputPath)
		return
	}

	w.registry.finish(w.jobID, StatusCompleted, outputPath, "")

	rec := CompletedRecord{
		MediaID:         w.media.ID,
		DisplayName:     w.media.DisplayName,
		Preset:          w.resolved.Name,
		SourcePath:      input,
		SourceSize:      sourceSize,
		FilePath:        outputPath,
		OutputSize:      info.Size(),
		DurationSeconds: elapsed.Seconds(),
		CompletedAt:     time.Now(),
	}
	if err := w.store.Record(rec); err != nil {
		logging.Error("Job %s: completed but sidecar write failed: %v", w.jobID, err)
	}

	metrics.EncodeCompleted(elapsed.Seconds(), sourceSize, info.Size())
	logging.Info("Job %s: completed in %s, %d -> %d bytes (%s)",
		w.jobID, elapsed.Round(time.Second), sourceSize, info.Size(), outputPath)
}

func (w *worker) fail(msg string) {
	metrics.EncodesFailed.Inc()
	logging.Error("Job %s: %s", w.jobID, msg)
	w.registry.finish(w.jobID, StatusFailed, "", msg)
}

// terminate delivers SIGTERM and escalates to SIGKILL after the grace
// period. It always reaps the process so no zombie is left behind.
func (w *worker) terminate(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}

	grace := w.grace
	if grace <= 0 {
		grace = killGracePeriod
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = cmd.Process.Kill()
	}

	select {
	case <-done:
	case <-time.After(grace):
		logging.Warn("Job %s: encoder ignored SIGTERM, killing", w.jobID)
		_ = cmd.Process.Kill()
		<-done
	}
}

// diagnostic derives a human-readable failure cause from the captured
// stderr stream, falling back to the process error.
func diagnostic(stderr *bytes.Buffer, err error) string {
	out := strings.TrimSpace(stderr.String())
	if out == "" {
		return fmt.Sprintf("encoder failed: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return fmt.Sprintf("encoder failed: %v: %s", err, strings.TrimSpace(strings.Join(lines, " ")))
}

func removePartial(outputPath string) {
	if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
		logging.Warn("Failed to remove partial output %s: %v", outputPath, err)
	}
}

// outputFilename derives the artifact name from the media display name,
// preset and container, with characters unsafe for paths replaced.
func outputFilename(displayName, presetName, container string) string {
	name := displayName
	if name == "" {
		name = "transcode"
	}
	name = name + "_" + presetName

	replacer := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")
	name = replacer.Replace(name)

	if container == "" {
		container = ".mkv"
	}
	if !strings.HasPrefix(container, ".") {
		container = "." + container
	}
	return name + container
}

// buildArgs constructs the ffmpeg invocation. Quality (crf), scale,
// container and codec selections are passed through from the resolved
// preset unmodified.
func buildArgs(resolved Resolved, input, output string) []string {
	args := []string{"-y", "-hide_banner", "-nostats", "-loglevel", "error"}
	args = append(args, resolved.HWAccelArgs...)
	args = append(args, "-i", input)
	args = append(args, "-c:v", resolved.VideoCodec)

	if resolved.Preset.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(resolved.Preset.CRF))
	}
	if height := scaleHeight(resolved.Preset.Scale); height > 0 {
		// -2 keeps the aspect ratio and an even width, required by
		// most encoders.
		args = append(args, "-vf", fmt.Sprintf("scale=-2:%d", height))
	}
	if resolved.Preset.AudioCodec != "" {
		args = append(args, "-c:a", resolved.Preset.AudioCodec)
	}
	if resolved.Preset.AudioBitrate != "" {
		args = append(args, "-b:a", resolved.Preset.AudioBitrate)
	}

	return append(args, output)
}

// scaleHeight parses a resolution class like "1080p" or "480" into a
// target height. Zero means no scaling.
func scaleHeight(scale string) int {
	if scale == "" {
		return 0
	}
	height, err := strconv.Atoi(strings.TrimSuffix(scale, "p"))
	if err != nil || height <= 0 {
		return 0
	}
	return height
}
