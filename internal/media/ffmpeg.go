package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"evidentia/internal/services"
)

// CommandRunner executes an external command and returns its combined output.
// Tests substitute a fake to exercise extraction without a real ffmpeg.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// FFmpegExtractor shells out to ffmpeg to decode any container format into a
// mono 16kHz PCM WAV file.
type FFmpegExtractor struct {
	binary string
	run    CommandRunner
}

// NewFFmpegExtractor builds an extractor invoking the given ffmpeg binary.
func NewFFmpegExtractor(binary string) *FFmpegExtractor {
	return &FFmpegExtractor{binary: binary, run: defaultRunner}
}

// WithRunner replaces the command runner. Intended for tests.
func (e *FFmpegExtractor) WithRunner(run CommandRunner) *FFmpegExtractor {
	e.run = run
	return e
}

// Name identifies the backend.
func (e *FFmpegExtractor) Name() string { return "ffmpeg" }

// Extract decodes the audio track of source into dest. A failed run removes
// any partial output before returning.
func (e *FFmpegExtractor) Extract(ctx context.Context, source, dest string) error {
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(services.ErrExtraction, "extract", "stat source", "", err)
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", TargetSampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
	if output, err := e.run(ctx, e.binary, args...); err != nil {
		_ = os.Remove(dest)
		detail := strings.TrimSpace(string(output))
		return services.Wrap(services.ErrExtraction, "extract", "ffmpeg", detail, err)
	}
	return nil
}
