// Package ffprobe wraps the ffprobe CLI to read audio duration and container
// metadata. The command runner is swappable so callers can be tested without
// the binary installed.
package ffprobe
