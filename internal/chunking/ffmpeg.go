package chunking

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// FFmpegExtractor cuts chunks with ffmpeg, re-encoding to mono 16 kHz MP3 so
// every chunk stays far below provider upload limits.
type FFmpegExtractor struct {
	binary string
	run    CommandRunner
}

// NewFFmpegExtractor returns an extractor for binary (default "ffmpeg").
func NewFFmpegExtractor(binary string) *FFmpegExtractor {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegExtractor{binary: binary, run: runCombined}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *FFmpegExtractor) WithCommandRunner(run CommandRunner) *FFmpegExtractor {
	if run != nil {
		e.run = run
	}
	return e
}

// Extract implements Extractor.
func (e *FFmpegExtractor) Extract(ctx context.Context, source string, startSec, durationSec float64, dest string) error {
	if durationSec <= 0 {
		return fmt.Errorf("extract segment: invalid duration %v", durationSec)
	}
	return e.run(ctx, e.binary, buildExtractArgs(source, startSec, durationSec, dest)...)
}

func buildExtractArgs(source string, startSec, durationSec float64, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(startSec),
		"-t", formatSeconds(durationSec),
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-b:a", "64k",
		dest,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func runCombined(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
