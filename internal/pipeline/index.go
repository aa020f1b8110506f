package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"podsearch/internal/episode"
	"podsearch/internal/indexcodec"
	"podsearch/internal/indexer"
	"podsearch/internal/logging"
	"podsearch/internal/manifest"
	"podsearch/internal/searchentry"
	"podsearch/internal/services"
	"podsearch/internal/subtitles"
	"podsearch/internal/textutil"
	"podsearch/internal/versions"
)

// ErrIndexBusy reports that another local process is rebuilding the same
// collection's index.
var ErrIndexBusy = errors.New("index rebuild already running for this collection")

// IndexOptions controls an indexing run.
type IndexOptions struct {
	// Force re-extracts search entries even when a cached document exists.
	Force bool
}

// Index rebuilds a collection's search index from scratch. Transcripts
// without cached search entries are extracted first; those entries count as
// new. The persisted index is replaced only after a complete rebuild, and a
// failed upload is the one per-run error that marks the summary failed.
func (p *Pipeline) Index(ctx context.Context, collection string, opts IndexOptions) (*Summary, error) {
	s := p.newSummary(StageIndex, collection)
	ctx = services.WithRequestID(services.WithStage(services.WithCollection(ctx, collection), StageIndex), s.RunID)
	logger := logging.WithContext(ctx, p.logger)
	defer p.finish(ctx, s)

	if err := episode.ValidateCollection(collection); err != nil {
		return p.abort(s, logger, services.Wrap(services.ErrConfiguration, StageIndex, "validate", "invalid collection", err))
	}
	codec, err := indexcodec.Lookup(p.cfg.Index.Compression)
	if err != nil {
		return p.abort(s, logger, err)
	}

	unlock, err := p.lockIndex(collection)
	if err != nil {
		return p.abort(s, logger, err)
	}
	defer unlock()

	p.progress.Start("indexing started", map[string]any{"collection": collection, "runId": s.RunID})

	m, found, err := manifest.Load(ctx, p.store, collection)
	switch {
	case err != nil:
		logging.ErrorWithContext(logger, "manifest unreadable", "manifest_unreadable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "transcripts without cached entries are skipped"),
			logging.String(logging.FieldErrorHint, "run 'podsearch manifest sync' to rebuild it"),
		)
		m = nil
	case !found:
		logging.WarnWithContext(logger, "manifest missing", "manifest_missing",
			logging.String(logging.FieldImpact, "transcripts without cached entries are skipped"),
			logging.String(logging.FieldErrorHint, "run 'podsearch manifest sync' first"),
		)
	}

	keys, err := p.store.ListFiles(ctx, episode.TranscriptsPrefix(collection))
	if err != nil {
		return p.abort(s, logger, services.Wrap(services.ErrStorage, StageIndex, "list transcripts", collection, err))
	}
	var parsed []episode.SourceFileKey
	for _, raw := range keys {
		s.Total++
		k, err := episode.ParseTranscriptKey(raw)
		if err != nil {
			s.Skipped++
			logging.WarnWithContext(logger, "skipping unrecognized transcript", "transcript_key_invalid",
				logging.String(logging.FieldFileKey, raw),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file is not indexed"),
				logging.String(logging.FieldErrorHint, "remove stray files from the transcripts prefix"),
			)
			continue
		}
		parsed = append(parsed, k)
	}
	current, stale := versions.Partition(parsed)
	for _, k := range stale {
		s.Skipped++
		logger.Info("skipping superseded transcript",
			logging.String(logging.FieldFileKey, k.TranscriptKey()),
			logging.String("newer_key", versions.Resolve(k, parsed).NewerKey),
		)
	}

	builder := indexer.NewBuilder(p.cfg.Index.BatchSize, p.logger)
	for _, k := range current {
		if ctx.Err() != nil {
			break
		}
		fileCtx := services.WithFileKey(ctx, k.TranscriptKey())
		fileLogger := logging.WithContext(fileCtx, p.logger)
		entries, fresh, err := p.entriesFor(fileCtx, fileLogger, k, m, opts.Force)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.fail(k.TranscriptKey(), "extract", err)
			p.metrics.RecordFile(StageIndex, "failed")
			logging.ErrorWithContext(fileLogger, "transcript not indexed", "index_file_skipped",
				logging.Error(err),
				logging.String(logging.FieldErrorCategory, services.Classify(err)),
				logging.String(logging.FieldImpact, "episode is missing from search results"),
				logging.String(logging.FieldErrorHint, hintFor(err)),
			)
			continue
		}
		if err := builder.Add(entries...); err != nil {
			return p.abort(s, logger, err)
		}
		if fresh {
			s.Processed++
			s.NewEntries += len(entries)
			p.metrics.RecordFile(StageIndex, "processed")
		} else {
			s.Cached++
			p.metrics.RecordFile(StageIndex, "cached")
		}
	}

	ix, report := builder.Finish()
	s.Documents = ix.Len()
	s.Duplicates = len(report.Duplicates)

	if err := ctx.Err(); err != nil {
		s.Status = StatusInterrupted
		s.Err = err.Error()
		logger.Info("indexing interrupted; persisted index left unchanged")
		p.progress.Error("indexing interrupted", err, map[string]any{"documents": s.Documents})
		return s, err
	}

	p.progress.Progress("index built", map[string]any{"documents": s.Documents, "newEntries": s.NewEntries})
	stats, err := indexcodec.Persist(ctx, p.store, episode.IndexKey(collection), ix, codec, p.logger)
	if err != nil {
		return p.abort(s, logger, services.Wrap(services.ErrStorage, StageIndex, "persist", episode.IndexKey(collection), err))
	}
	s.Index = &stats
	p.metrics.SetIndex(collection, stats.Documents, stats.EncodedBytes, stats.CompressedBytes)

	if s.NewEntries > 0 {
		s.Refresh = p.notifier.Signal(context.WithoutCancel(ctx), collection)
	}

	p.progress.Complete("indexing finished", map[string]any{
		"documents":       s.Documents,
		"newEntries":      s.NewEntries,
		"compressedBytes": stats.CompressedBytes,
		"failed":          s.Failed,
	})
	logger.Info("indexing finished",
		logging.Int("documents", s.Documents),
		logging.Int("new_entries", s.NewEntries),
		logging.Int("duplicates", s.Duplicates),
		logging.Int("failed", s.Failed),
		logging.Int64("compressed_bytes", stats.CompressedBytes),
	)
	return s, nil
}

// lockIndex refuses a second local rebuild of the same collection.
func (p *Pipeline) lockIndex(collection string) (func(), error) {
	if err := os.MkdirAll(p.cfg.Paths.WorkDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, StageIndex, "prepare work dir", p.cfg.Paths.WorkDir, err)
	}
	lock := flock.New(filepath.Join(p.cfg.Paths.WorkDir, "index-"+textutil.SanitizeToken(collection)+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, StageIndex, "lock", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s (lock %s)", ErrIndexBusy, collection, lock.Path())
	}
	return func() { _ = lock.Unlock() }, nil
}

// entriesFor returns the search entries of one transcript, reusing the cached
// document unless force is set. fresh reports whether they were extracted now.
func (p *Pipeline) entriesFor(ctx context.Context, logger *slog.Logger, k episode.SourceFileKey, m *manifest.Manifest, force bool) ([]searchentry.Entry, bool, error) {
	if !force {
		data, err := p.store.GetFile(ctx, k.EntriesKey())
		switch {
		case err == nil:
			entries, derr := searchentry.Unmarshal(data)
			if derr == nil {
				return entries, false, nil
			}
			logging.WarnWithContext(logger, "cached search entries corrupt; extracting again", "entries_cache_corrupt",
				logging.Error(derr),
				logging.String(logging.FieldImpact, "none; the cache is rebuilt"),
				logging.String(logging.FieldErrorHint, "no action needed"),
			)
		case errors.Is(err, services.ErrNotFound):
		default:
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			logger.Debug("search entry cache unreadable; extracting", logging.Error(err))
		}
	}

	if m == nil {
		return nil, false, fmt.Errorf("%w: %s", searchentry.ErrManifestMissing, k.EpisodeKey())
	}
	data, err := p.store.GetFile(ctx, k.TranscriptKey())
	if err != nil {
		return nil, false, services.Wrap(services.ErrStorage, StageIndex, "read transcript", k.TranscriptKey(), err)
	}
	cues, dropped := subtitles.Parse(string(data))
	if dropped > 0 {
		logging.WarnWithContext(logger, "transcript has unparseable cues", "subtitle_cues_dropped",
			logging.Int("dropped", dropped),
			logging.String(logging.FieldImpact, "dropped lines are not searchable"),
			logging.String(logging.FieldErrorHint, "retranscribe with --force"),
		)
	}
	entries, err := searchentry.ExtractFor(cues, m, k.EpisodeKey())
	if err != nil {
		return nil, false, err
	}
	encoded, err := searchentry.Marshal(entries)
	if err != nil {
		return nil, false, err
	}
	if err := p.store.SaveFile(ctx, k.EntriesKey(), encoded); err != nil {
		return nil, false, services.Wrap(services.ErrStorage, StageIndex, "save entries", k.EntriesKey(), err)
	}
	logger.Debug("search entries extracted", logging.Int("entries", len(entries)))
	return entries, true, nil
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, searchentry.ErrManifestMissing):
		return "run 'podsearch manifest sync' to register the episode"
	case errors.Is(err, services.ErrStorage):
		return "check blob store connectivity and rerun"
	default:
		return "inspect the transcript and rerun with --force"
	}
}
