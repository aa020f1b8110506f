package chunking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"podsearch/internal/logging"
	"podsearch/internal/services"
)

const bytesPerMB = 1024 * 1024

// Limits bounds what a single provider request may carry.
type Limits struct {
	MaxSizeMB   float64
	MaxDuration time.Duration
	// TargetChunk is the preferred chunk length when a file must be split.
	TargetChunk time.Duration
}

// DurationProbe reports the playback length of an audio file in seconds.
type DurationProbe interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Extractor writes the [start, start+duration) range of source to dest.
type Extractor interface {
	Extract(ctx context.Context, source string, startSec, durationSec float64, dest string) error
}

// Chunk is one unit of audio sent to the provider.
type Chunk struct {
	Index        int
	StartSeconds float64
	EndSeconds   float64
	Path         string
	temporary    bool
}

// Cleanup deletes the chunk file if the planner created it. The original
// source is never removed.
func (c Chunk) Cleanup() error {
	if !c.temporary {
		return nil
	}
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Plan is the ordered, contiguous chunk list covering one source file.
type Plan struct {
	Source          string
	SizeMB          float64
	DurationSeconds float64
	Chunks          []Chunk
	dir             string
}

// Split reports whether the source was cut into temporary chunk files.
func (p *Plan) Split() bool { return p != nil && p.dir != "" }

// Cleanup removes the plan's temporary directory and any chunks left in it.
func (p *Plan) Cleanup() error {
	if p == nil || p.dir == "" {
		return nil
	}
	return os.RemoveAll(p.dir)
}

// Planner decides whether a file needs splitting and produces its chunks.
type Planner struct {
	limits    Limits
	probe     DurationProbe
	extractor Extractor
	workDir   string
	logger    *slog.Logger
}

// NewPlanner constructs a planner. Temporary chunk directories are created
// under workDir, one per plan, named after the current process.
func NewPlanner(limits Limits, probe DurationProbe, extractor Extractor, workDir string, logger *slog.Logger) *Planner {
	return &Planner{
		limits:    limits,
		probe:     probe,
		extractor: extractor,
		workDir:   workDir,
		logger:    logging.NewComponentLogger(logger, "chunking"),
	}
}

// Plan measures source and returns its chunk plan. Files within both limits
// become a single chunk that points at the source itself.
func (p *Planner) Plan(ctx context.Context, source string) (*Plan, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "chunking", "stat", source, err)
	}
	sizeMB := float64(info.Size()) / bytesPerMB

	duration, err := p.duration(ctx, source)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "chunking", "probe duration", source, err)
	}
	if duration <= 0 {
		return nil, services.Wrap(services.ErrDataIntegrity, "chunking", "probe duration", fmt.Sprintf("%s reports no audio", source), nil)
	}

	plan := &Plan{Source: source, SizeMB: sizeMB, DurationSeconds: duration}
	maxDuration := p.limits.MaxDuration.Seconds()
	if sizeMB <= p.limits.MaxSizeMB && (maxDuration <= 0 || duration <= maxDuration) {
		plan.Chunks = []Chunk{{Index: 0, StartSeconds: 0, EndSeconds: duration, Path: source}}
		return plan, nil
	}

	target := p.limits.TargetChunk.Seconds()
	if maxDuration > 0 && (target <= 0 || target > maxDuration) {
		target = maxDuration
	}
	target = TargetSeconds(duration, sizeMB, p.limits.MaxSizeMB, target)
	spans := Spans(duration, target)

	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, "chunking", "prepare work dir", p.workDir, err)
	}
	dir, err := os.MkdirTemp(p.workDir, fmt.Sprintf("chunks-%d-", os.Getpid()))
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "chunking", "create temp dir", p.workDir, err)
	}
	plan.dir = dir

	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	for i, span := range spans {
		dest := filepath.Join(dir, fmt.Sprintf("%s.part%03d.mp3", base, i))
		if err := p.extractor.Extract(ctx, source, span.Start, span.Duration(), dest); err != nil {
			_ = plan.Cleanup()
			return nil, services.Wrap(services.ErrExternalTool, "chunking", "extract", fmt.Sprintf("chunk %d of %s", i, source), err)
		}
		plan.Chunks = append(plan.Chunks, Chunk{
			Index:        i,
			StartSeconds: span.Start,
			EndSeconds:   span.End,
			Path:         dest,
			temporary:    true,
		})
	}

	p.logger.Info("audio split into chunks",
		logging.String("source", filepath.Base(source)),
		logging.Float64("size_mb", sizeMB),
		logging.Float64("duration_seconds", duration),
		logging.Int("chunks", len(plan.Chunks)),
		logging.Float64("target_seconds", target),
	)
	return plan, nil
}

// duration reads WAV headers directly and asks the probe for everything else.
func (p *Planner) duration(ctx context.Context, source string) (float64, error) {
	if strings.EqualFold(filepath.Ext(source), ".wav") {
		if d, err := wavDuration(source); err == nil && d > 0 {
			return d, nil
		}
	}
	if p.probe == nil {
		return 0, errors.New("no duration probe configured")
	}
	return p.probe.Duration(ctx, source)
}

func wavDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return 0, errors.New("not a valid wav file")
	}
	d, err := decoder.Duration()
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}
