package indexer

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"podsearch/internal/logging"
	"podsearch/internal/searchentry"
	"podsearch/internal/searchindex"
)

// DefaultBatchSize is used when no batch size is configured.
const DefaultBatchSize = 500

// ErrFinished is returned when entries are added to a finished builder.
var ErrFinished = errors.New("index builder already finished")

// Duplicate is an id that occurs more than once in the input.
type Duplicate struct {
	ID    string
	Count int
}

// BuildReport summarizes one build.
type BuildReport struct {
	Inserted   int
	Rejected   int
	Batches    int
	Duplicates []Duplicate
	Elapsed    time.Duration
}

// Builder populates a fresh index in batches. A builder goes from empty to
// populated exactly once; after Finish it accepts nothing more.
type Builder struct {
	index     *searchindex.Index
	batchSize int
	pending   []searchentry.Entry
	counts    map[string]int
	report    BuildReport
	started   time.Time
	finished  bool
	logger    *slog.Logger
}

// NewBuilder returns a builder over a new, empty index.
func NewBuilder(batchSize int, logger *slog.Logger) *Builder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Builder{
		index:     searchindex.New(),
		batchSize: batchSize,
		pending:   make([]searchentry.Entry, 0, batchSize),
		counts:    make(map[string]int),
		started:   time.Now(),
		logger:    logging.NewComponentLogger(logger, "indexer"),
	}
}

// Add queues entries, flushing full batches into the index.
func (b *Builder) Add(entries ...searchentry.Entry) error {
	if b.finished {
		return ErrFinished
	}
	for _, e := range entries {
		b.counts[e.ID]++
		b.pending = append(b.pending, e)
		if len(b.pending) >= b.batchSize {
			b.flush()
		}
	}
	return nil
}

func (b *Builder) flush() {
	if len(b.pending) == 0 {
		return
	}
	inserted, dupes := b.index.InsertBatch(b.pending)
	b.report.Inserted += inserted
	b.report.Rejected += len(dupes)
	b.report.Batches++
	b.pending = b.pending[:0]
}

// Finish flushes the last batch, reports duplicate ids, and returns the
// populated index.
func (b *Builder) Finish() (*searchindex.Index, BuildReport) {
	if !b.finished {
		b.flush()
		b.finished = true
		b.report.Duplicates = duplicatesFromCounts(b.counts)
		b.counts = nil
		b.report.Elapsed = time.Since(b.started)
		if len(b.report.Duplicates) > 0 {
			logging.ErrorWithContext(b.logger, "duplicate search entry ids detected", "index_duplicate_ids",
				logging.Int("duplicate_ids", len(b.report.Duplicates)),
				logging.Int("rejected_entries", b.report.Rejected),
				logging.String("first_duplicate", b.report.Duplicates[0].ID),
				logging.String(logging.FieldErrorHint, "an episode was transcribed twice or two cues share a start time"),
			)
		}
		b.logger.Info("index built",
			logging.Int("documents", b.index.Len()),
			logging.Int("terms", b.index.Terms()),
			logging.Int("batches", b.report.Batches),
			logging.Duration("elapsed", b.report.Elapsed),
		)
	}
	return b.index, b.report
}

// Build indexes entries in one call.
func Build(entries []searchentry.Entry, batchSize int, logger *slog.Logger) (*searchindex.Index, BuildReport) {
	b := NewBuilder(batchSize, logger)
	_ = b.Add(entries...)
	return b.Finish()
}

// FindDuplicateIDs lists ids occurring more than once, sorted by id.
func FindDuplicateIDs(entries []searchentry.Entry) []Duplicate {
	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		counts[e.ID]++
	}
	return duplicatesFromCounts(counts)
}

func duplicatesFromCounts(counts map[string]int) []Duplicate {
	var out []Duplicate
	for id, n := range counts {
		if n > 1 {
			out = append(out, Duplicate{ID: id, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
