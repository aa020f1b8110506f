package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"podsearch/internal/blobstore"
	"podsearch/internal/chunking"
	"podsearch/internal/config"
	"podsearch/internal/deps"
	"podsearch/internal/lockfile"
	"podsearch/internal/logging"
	"podsearch/internal/media/ffprobe"
	"podsearch/internal/metrics"
	"podsearch/internal/progress"
	"podsearch/internal/runlog"
	"podsearch/internal/services"
	"podsearch/internal/services/refresh"
	"podsearch/internal/spelling"
	"podsearch/internal/transcribe"
)

// Stage names used in summaries, logs and metrics.
const (
	StageTranscribe = "transcribe"
	StageIndex      = "index"
	StageCorrect    = "correct"
)

// Transcriber turns one audio chunk into subtitle text.
type Transcriber interface {
	Transcribe(ctx context.Context, chunkPath, prompt, responseFormat string) (string, error)
}

// ChunkPlanner cuts a local audio file into provider-sized chunks.
type ChunkPlanner interface {
	Plan(ctx context.Context, source string) (*chunking.Plan, error)
}

// Pipeline runs the transcription and indexing stages for one collection
// at a time against a shared blob store.
type Pipeline struct {
	cfg         *config.Config
	store       blobstore.Store
	locks       *lockfile.Coordinator
	planner     ChunkPlanner
	transcriber Transcriber
	rules       *spelling.RuleFile
	progress    *progress.Reporter
	metrics     *metrics.Recorder
	notifier    refresh.Notifier
	history     *runlog.Store
	owner       string
	logger      *slog.Logger
	now         func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithTranscriber replaces the configured provider client.
func WithTranscriber(t Transcriber) Option { return func(p *Pipeline) { p.transcriber = t } }

// WithPlanner replaces the ffmpeg-backed chunk planner.
func WithPlanner(planner ChunkPlanner) Option { return func(p *Pipeline) { p.planner = planner } }

// WithLocks replaces the lock coordinator.
func WithLocks(c *lockfile.Coordinator) Option { return func(p *Pipeline) { p.locks = c } }

// WithRules sets the spelling rules. Without it rules load from spelling.rules_file.
func WithRules(r *spelling.RuleFile) Option { return func(p *Pipeline) { p.rules = r } }

// WithProgress attaches a progress event reporter.
func WithProgress(r *progress.Reporter) Option { return func(p *Pipeline) { p.progress = r } }

// WithMetrics attaches a metrics recorder.
func WithMetrics(m *metrics.Recorder) Option { return func(p *Pipeline) { p.metrics = m } }

// WithNotifier replaces the refresh notifier.
func WithNotifier(n refresh.Notifier) Option { return func(p *Pipeline) { p.notifier = n } }

// WithHistory records every summary in the run ledger.
func WithHistory(h *runlog.Store) Option { return func(p *Pipeline) { p.history = h } }

// WithOwner sets the lock owner id used when the coordinator is built from
// config. It has no effect together with WithLocks.
func WithOwner(owner string) Option { return func(p *Pipeline) { p.owner = owner } }

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New assembles a pipeline. Collaborators that are not supplied are built
// from cfg when a stage first needs them.
func New(cfg *config.Config, store blobstore.Store, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "pipeline")
	if p.notifier == nil {
		p.notifier = refresh.NewFromConfig(cfg, p.logger)
	}
	if p.locks == nil {
		var lockOpts []lockfile.Option
		lockOpts = append(lockOpts, lockfile.WithLogger(p.logger))
		if p.owner != "" {
			lockOpts = append(lockOpts, lockfile.WithOwner(p.owner))
		}
		if cfg.Lock.LocalGuard && cfg.Storage.Backend == config.StorageLocal {
			lockOpts = append(lockOpts, lockfile.WithLocalGuard(lockGuardPath(cfg)))
		}
		p.locks = lockfile.New(store, lockOpts...)
	}
	return p
}

// Locks exposes the coordinator, for the locks command.
func (p *Pipeline) Locks() *lockfile.Coordinator { return p.locks }

func lockGuardPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.WorkDir, "transcription-lockfile.lock")
}

func (p *Pipeline) ensureTranscriber() error {
	if p.transcriber != nil {
		return nil
	}
	client, err := transcribe.NewClientFromConfig(p.cfg, p.logger, transcribe.WithAttemptObserver(p.observeAttempt))
	if err != nil {
		return err
	}
	p.transcriber = client
	return nil
}

func (p *Pipeline) ensurePlanner() error {
	if p.planner != nil {
		return nil
	}
	if missing := deps.Missing(deps.CheckBinaries(deps.Requirements(p.cfg))); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, m := range missing {
			names = append(names, m.Name+" ("+m.Detail+")")
		}
		return services.Wrap(services.ErrConfiguration, StageTranscribe, "check binaries", "missing binaries: "+strings.Join(names, ", "), nil)
	}
	limits := chunking.Limits{
		MaxSizeMB:   p.cfg.Chunking.MaxSizeMB,
		MaxDuration: time.Duration(p.cfg.Chunking.MaxDurationMinutes) * time.Minute,
		TargetChunk: time.Duration(p.cfg.Chunking.TargetChunkMinutes) * time.Minute,
	}
	p.planner = chunking.NewPlanner(limits,
		ffprobe.NewProber(p.cfg.FFprobeBinary()),
		chunking.NewFFmpegExtractor(p.cfg.FFmpegBinary()),
		p.cfg.Paths.WorkDir, p.logger)
	return nil
}

func (p *Pipeline) ensureRules() error {
	if p.rules != nil {
		return nil
	}
	rules, err := spelling.LoadRules(p.cfg.Spelling.RulesFile)
	if err != nil {
		return err
	}
	p.rules = rules
	return nil
}

func (p *Pipeline) observeAttempt(a transcribe.Attempt) {
	outcome := "success"
	switch {
	case a.Err == nil:
	case errors.Is(a.Err, services.ErrTimeout):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	p.metrics.RecordAttempt(a.Provider, outcome, a.Elapsed)
}

func (p *Pipeline) newSummary(stage, collection string) *Summary {
	return &Summary{
		RunID:      uuid.NewString(),
		Stage:      stage,
		Collection: collection,
		Owner:      p.locks.Owner(),
		StartedAt:  p.now(),
		Status:     StatusCompleted,
	}
}

// finish stamps the summary, exports metrics and records history. It never
// fails the run.
func (p *Pipeline) finish(ctx context.Context, s *Summary) {
	s.FinishedAt = p.now()
	s.settle()
	p.metrics.FinishStage(s.Stage, s.Collection, s.Duration(), s.Status != StatusFailed && s.Status != StatusInterrupted)
	if err := p.metrics.WriteTextfile(p.cfg.Metrics.Textfile); err != nil {
		logging.WarnWithContext(p.logger, "metrics export failed", "metrics_export_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "dashboards show the previous run"),
			logging.String(logging.FieldErrorHint, "check metrics.textfile is writable"),
		)
	}
	if p.history != nil {
		// Interrupted runs still get recorded, so detach from cancellation.
		recordCtx := context.WithoutCancel(ctx)
		if _, err := p.history.Record(recordCtx, s.Run()); err != nil {
			logging.WarnWithContext(p.logger, "run history not recorded", "run_history_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "podsearch history will not list this run"),
				logging.String(logging.FieldErrorHint, "check the state directory is writable"),
			)
		}
	}
}

// tally guards summary counters shared by concurrent file workers.
type tally struct {
	mu      sync.Mutex
	summary *Summary
}

func (t *tally) update(fn func(*Summary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.summary)
}
