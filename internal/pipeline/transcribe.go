package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"podsearch/internal/blobstore"
	"podsearch/internal/episode"
	"podsearch/internal/logging"
	"podsearch/internal/services"
	"podsearch/internal/spelling"
	"podsearch/internal/subtitles"
	"podsearch/internal/versions"
)

// TranscribeOptions controls a transcription run.
type TranscribeOptions struct {
	// Force re-transcribes files whose transcript already exists.
	Force bool
}

// Transcribe produces a transcript for every authoritative audio file of
// collection that does not have one yet. Per-file failures are recorded in
// the summary and never stop the run; the returned error is non-nil only for
// configuration problems, an unreadable audio listing, or interruption.
func (p *Pipeline) Transcribe(ctx context.Context, collection string, opts TranscribeOptions) (*Summary, error) {
	s := p.newSummary(StageTranscribe, collection)
	ctx = services.WithRequestID(services.WithStage(services.WithCollection(ctx, collection), StageTranscribe), s.RunID)
	logger := logging.WithContext(ctx, p.logger)
	defer p.finish(ctx, s)

	if err := p.prepareTranscription(collection); err != nil {
		return p.abort(s, logger, err)
	}
	rules := p.rules.For(collection)

	p.progress.Start("transcription started", map[string]any{"collection": collection, "runId": s.RunID})

	if pruned, err := p.locks.PruneStale(ctx, p.cfg.StaleLockAge()); err != nil {
		logging.WarnWithContext(logger, "stale lock pruning failed", "lock_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "abandoned claims keep their files locked until the next run"),
			logging.String(logging.FieldErrorHint, "check blob store write access"),
		)
	} else if pruned > 0 {
		logger.Info("stale lock entries pruned", logging.Int("pruned", pruned))
	}

	keys, err := p.store.ListFiles(ctx, episode.AudioPrefix(collection))
	if err != nil {
		return p.abort(s, logger, services.Wrap(services.ErrStorage, StageTranscribe, "list audio", collection, err))
	}

	var parsed []episode.SourceFileKey
	for _, raw := range keys {
		s.Total++
		k, err := episode.ParseSourceFileKey(raw)
		if err != nil {
			s.Skipped++
			logging.WarnWithContext(logger, "skipping unrecognized audio file", "audio_key_invalid",
				logging.String(logging.FieldFileKey, raw),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file is not transcribed"),
				logging.String(logging.FieldErrorHint, "rename to {YYYY-MM-DD}__{slug}[__{YYYYMMDDTHHMMSSZ}].{ext}"),
			)
			continue
		}
		parsed = append(parsed, k)
	}

	current, stale := versions.Partition(parsed)
	s.Skipped += len(stale)

	logger.Info("transcription queue ready",
		logging.Int("audio_files", len(keys)),
		logging.Int("authoritative", len(current)),
		logging.Int("superseded", len(stale)),
		logging.Bool("force", opts.Force),
	)

	t := &tally{summary: s}
	var g errgroup.Group
	g.SetLimit(max(1, p.cfg.Transcription.MaxConcurrentFiles))
	for _, k := range current {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			p.transcribeFile(ctx, k, opts, rules, t)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		s.Status = StatusInterrupted
		s.Err = err.Error()
		p.progress.Error("transcription interrupted", err, map[string]any{"processed": s.Processed, "total": s.Total})
		return s, err
	}
	for _, k := range stale {
		p.removeSuperseded(ctx, logger, k, versions.Resolve(k, parsed).NewerKey)
	}

	p.progress.Complete("transcription finished", map[string]any{
		"processed": s.Processed,
		"cached":    s.Cached,
		"skipped":   s.Skipped,
		"failed":    s.Failed,
	})
	logger.Info("transcription finished",
		logging.Int("processed", s.Processed),
		logging.Int("cached", s.Cached),
		logging.Int("skipped", s.Skipped),
		logging.Int("failed", s.Failed),
	)
	return s, nil
}

func (p *Pipeline) prepareTranscription(collection string) error {
	if err := episode.ValidateCollection(collection); err != nil {
		return services.Wrap(services.ErrConfiguration, StageTranscribe, "validate", "invalid collection", err)
	}
	if err := p.cfg.RequireTranscription(); err != nil {
		return services.Wrap(services.ErrConfiguration, StageTranscribe, "validate", "", err)
	}
	if err := p.ensureRules(); err != nil {
		return err
	}
	if err := p.ensureTranscriber(); err != nil {
		return err
	}
	return p.ensurePlanner()
}

// abort ends a run that could not start or could not continue.
func (p *Pipeline) abort(s *Summary, logger *slog.Logger, err error) (*Summary, error) {
	s.Err = err.Error()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.Status = StatusInterrupted
		logger.Info(s.Stage+" interrupted", logging.Error(err))
		p.progress.Error(s.Stage+" interrupted", err, map[string]any{"collection": s.Collection})
		return s, err
	}
	s.Status = StatusFailed
	logging.ErrorWithContext(logger, s.Stage+" aborted", s.Stage+"_aborted",
		logging.Error(err),
		logging.String(logging.FieldErrorCategory, services.Classify(err)),
		logging.String(logging.FieldErrorHint, "fix the reported problem and rerun"),
	)
	p.progress.Error(s.Stage+" aborted", err, map[string]any{"collection": s.Collection})
	return s, err
}

// removeSuperseded deletes artifacts produced from an older download of an
// episode once the newer copy has a transcript. Until then the older
// transcript stays so the episode remains searchable.
func (p *Pipeline) removeSuperseded(ctx context.Context, logger *slog.Logger, k episode.SourceFileKey, newer string) {
	p.metrics.RecordFile(StageTranscribe, "superseded")
	winner, err := episode.ParseSourceFileKey(newer)
	if err != nil {
		return
	}
	if ok, err := p.store.FileExists(ctx, winner.TranscriptKey()); err != nil || !ok {
		logger.Info("keeping superseded transcript until the newer download is transcribed",
			logging.String(logging.FieldFileKey, k.String()),
			logging.String("newer_key", newer),
		)
		return
	}
	removed := 0
	for _, key := range []string{k.TranscriptKey(), k.EntriesKey()} {
		exists, err := p.store.FileExists(ctx, key)
		if err != nil || !exists {
			continue
		}
		if err := p.store.DeleteFile(ctx, key); err != nil {
			logging.WarnWithContext(logger, "could not delete superseded artifact", "superseded_delete_failed",
				logging.String(logging.FieldFileKey, key),
				logging.Error(err),
				logging.String(logging.FieldImpact, "index skips it but the artifact stays in storage"),
				logging.String(logging.FieldErrorHint, "delete it manually or rerun"),
			)
			continue
		}
		removed++
	}
	logger.Info("skipping superseded download",
		logging.String(logging.FieldFileKey, k.String()),
		logging.String("newer_key", newer),
		logging.Int("artifacts_removed", removed),
	)
}

func (p *Pipeline) transcribeFile(ctx context.Context, k episode.SourceFileKey, opts TranscribeOptions, rules []spelling.Rule, t *tally) {
	fileKey := k.String()
	ctx = services.WithFileKey(ctx, fileKey)
	logger := logging.WithContext(ctx, p.logger)

	if !opts.Force {
		exists, err := p.store.FileExists(ctx, k.TranscriptKey())
		switch {
		case err != nil:
			logger.Debug("transcript cache check failed; transcribing anyway", logging.Error(err))
		case exists:
			t.update(func(s *Summary) { s.Cached++ })
			p.metrics.RecordFile(StageTranscribe, "cached")
			logger.Debug("transcript already exists")
			return
		}
	}

	acquired, err := p.locks.TryAcquire(ctx, fileKey)
	if err != nil {
		p.fileFailed(logger, t, fileKey, "lock", err)
		return
	}
	if !acquired {
		t.update(func(s *Summary) { s.Skipped++ })
		p.metrics.RecordFile(StageTranscribe, "locked")
		logger.Info("file claimed by another worker; skipping")
		return
	}
	defer func() {
		if err := p.locks.Release(context.WithoutCancel(ctx), fileKey); err != nil {
			logging.WarnWithContext(logger, "lock release failed", "lock_release_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the file stays claimed until the entry goes stale"),
				logging.String(logging.FieldErrorHint, "run 'podsearch locks prune' after fixing storage"),
			)
		}
	}()

	p.progress.Progress("file started", map[string]any{"fileKey": fileKey})
	out, err := p.transcribeAudio(ctx, logger, k, rules)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("transcription interrupted")
			return
		}
		p.fileFailed(logger, t, fileKey, out.step, err)
		return
	}

	t.update(func(s *Summary) {
		s.Processed++
		s.Chunks += out.chunks
		s.Corrections += out.corrections
	})
	p.metrics.RecordFile(StageTranscribe, "processed")
	p.metrics.AddChunks(out.chunks)
	p.metrics.AddCorrections(out.corrections)
	p.progress.Progress("file transcribed", map[string]any{
		"fileKey":     fileKey,
		"chunks":      out.chunks,
		"cues":        out.cues,
		"corrections": out.corrections,
	})
	logger.Info("transcript saved",
		logging.Int("chunks", out.chunks),
		logging.Int("cues", out.cues),
		logging.Int("corrections", out.corrections),
	)
}

func (p *Pipeline) fileFailed(logger *slog.Logger, t *tally, fileKey, step string, err error) {
	t.update(func(s *Summary) { s.fail(fileKey, step, err) })
	p.metrics.RecordFile(StageTranscribe, "failed")
	logging.ErrorWithContext(logger, "file failed", "file_failed",
		logging.String("step", step),
		logging.Error(err),
		logging.String(logging.FieldErrorCategory, services.Classify(err)),
		logging.String(logging.FieldImpact, "file has no transcript until the next run"),
		logging.String(logging.FieldErrorHint, "the next run retries it"),
	)
	p.progress.Error("file failed", err, map[string]any{"fileKey": fileKey, "step": step})
}

type fileOutcome struct {
	step        string
	chunks      int
	cues        int
	corrections int
}

func (p *Pipeline) transcribeAudio(ctx context.Context, logger *slog.Logger, k episode.SourceFileKey, rules []spelling.Rule) (fileOutcome, error) {
	out := fileOutcome{step: "download"}
	local, cleanup, err := p.download(ctx, k)
	if err != nil {
		return out, err
	}
	defer cleanup()

	out.step = "chunk"
	plan, err := p.planner.Plan(ctx, local)
	if err != nil {
		return out, err
	}
	defer func() {
		if err := plan.Cleanup(); err != nil {
			logger.Debug("chunk directory cleanup failed", logging.Error(err))
		}
	}()

	out.step = "transcribe"
	prompt := p.cfg.Transcription.Prompt
	format := p.cfg.Transcription.ResponseFormat
	results := make([]subtitles.ChunkResult, 0, len(plan.Chunks))
	for _, chunk := range plan.Chunks {
		text, err := p.transcriber.Transcribe(ctx, chunk.Path, prompt, format)
		if cerr := chunk.Cleanup(); cerr != nil {
			logger.Debug("chunk cleanup failed", logging.String("chunk", chunk.Path), logging.Error(cerr))
		}
		if err != nil {
			return out, fmt.Errorf("chunk %d/%d: %w", chunk.Index+1, len(plan.Chunks), err)
		}
		results = append(results, subtitles.ChunkResult{Text: text, OffsetSeconds: chunk.StartSeconds})
		out.chunks++
		if len(plan.Chunks) > 1 {
			p.progress.Progress("chunk transcribed", map[string]any{
				"fileKey": k.String(),
				"chunk":   chunk.Index + 1,
				"chunks":  len(plan.Chunks),
			})
		}
	}

	out.step = "combine"
	doc := subtitles.Combine(results)
	out.cues = len(doc.Entries)
	if doc.Dropped > 0 {
		logging.WarnWithContext(logger, "dropped cues with unparseable timestamps", "subtitle_cues_dropped",
			logging.Int("dropped", doc.Dropped),
			logging.Int("kept", len(doc.Entries)),
			logging.String(logging.FieldImpact, "dropped lines are not searchable"),
			logging.String(logging.FieldErrorHint, "provider output was malformed; rerun with --force to retry"),
		)
	}

	corrected := spelling.ApplySubtitles(doc.Text, rules)
	out.corrections = corrected.CorrectionsApplied

	out.step = "save"
	if err := p.store.SaveFile(ctx, k.TranscriptKey(), []byte(corrected.Text)); err != nil {
		return out, services.Wrap(services.ErrStorage, StageTranscribe, "save transcript", k.TranscriptKey(), err)
	}
	p.invalidateEntries(ctx, logger, k)
	return out, nil
}

// invalidateEntries drops cached search entries derived from an older
// transcript so the next index run extracts them again.
func (p *Pipeline) invalidateEntries(ctx context.Context, logger *slog.Logger, k episode.SourceFileKey) {
	err := p.store.DeleteFile(ctx, k.EntriesKey())
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		logging.WarnWithContext(logger, "stale search entries not removed", "entries_invalidate_failed",
			logging.String("entries_key", k.EntriesKey()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "index keeps serving the previous transcript's lines"),
			logging.String(logging.FieldErrorHint, "rerun index with --force"),
		)
	}
}

// download copies the audio to the work directory for ffmpeg.
func (p *Pipeline) download(ctx context.Context, k episode.SourceFileKey) (string, func(), error) {
	noop := func() {}
	if err := os.MkdirAll(p.cfg.Paths.WorkDir, 0o755); err != nil {
		return "", noop, services.Wrap(services.ErrStorage, StageTranscribe, "prepare work dir", p.cfg.Paths.WorkDir, err)
	}
	src, err := blobstore.Open(ctx, p.store, k.String())
	if err != nil {
		return "", noop, services.Wrap(services.ErrStorage, StageTranscribe, "open audio", k.String(), err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(p.cfg.Paths.WorkDir, k.BaseName()+"-*."+k.Ext)
	if err != nil {
		return "", noop, services.Wrap(services.ErrStorage, StageTranscribe, "create temp audio", k.String(), err)
	}
	cleanup := func() { _ = os.Remove(dst.Name()) }
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		cleanup()
		return "", noop, services.Wrap(services.ErrStorage, StageTranscribe, "download audio", k.String(), err)
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", noop, services.Wrap(services.ErrStorage, StageTranscribe, "download audio", k.String(), err)
	}
	return dst.Name(), cleanup, nil
}
