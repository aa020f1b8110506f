package pipeline

import (
	"context"

	"podsearch/internal/episode"
	"podsearch/internal/logging"
	"podsearch/internal/services"
	"podsearch/internal/spelling"
)

// Correct re-applies the spelling rules to every stored transcript of
// collection. Only transcripts that change are rewritten, and their cached
// search entries are dropped so the next index run picks up the fix.
func (p *Pipeline) Correct(ctx context.Context, collection string) (*Summary, error) {
	s := p.newSummary(StageCorrect, collection)
	ctx = services.WithRequestID(services.WithStage(services.WithCollection(ctx, collection), StageCorrect), s.RunID)
	logger := logging.WithContext(ctx, p.logger)
	defer p.finish(ctx, s)

	if err := episode.ValidateCollection(collection); err != nil {
		return p.abort(s, logger, services.Wrap(services.ErrConfiguration, StageCorrect, "validate", "invalid collection", err))
	}
	if err := p.ensureRules(); err != nil {
		return p.abort(s, logger, err)
	}
	rules := p.rules.For(collection)
	if len(rules) == 0 {
		logger.Info("no spelling rules apply to this collection")
		return s, nil
	}

	keys, err := p.store.ListFiles(ctx, episode.TranscriptsPrefix(collection))
	if err != nil {
		return p.abort(s, logger, services.Wrap(services.ErrStorage, StageCorrect, "list transcripts", collection, err))
	}
	for _, raw := range keys {
		if err := ctx.Err(); err != nil {
			s.Status = StatusInterrupted
			s.Err = err.Error()
			return s, err
		}
		s.Total++
		k, err := episode.ParseTranscriptKey(raw)
		if err != nil {
			s.Skipped++
			continue
		}
		n, err := p.correctTranscript(ctx, k, rules)
		if err != nil {
			s.fail(raw, "correct", err)
			logging.ErrorWithContext(logger, "transcript not corrected", "correct_failed",
				logging.String(logging.FieldFileKey, raw),
				logging.Error(err),
				logging.String(logging.FieldImpact, "transcript keeps its previous spelling"),
				logging.String(logging.FieldErrorHint, "check blob store connectivity and rerun"),
			)
			continue
		}
		if n == 0 {
			s.Cached++
			continue
		}
		s.Processed++
		s.Corrections += n
		p.invalidateEntries(ctx, logger, k)
		logger.Info("transcript corrected", logging.String(logging.FieldFileKey, raw), logging.Int("corrections", n))
	}
	p.metrics.AddCorrections(s.Corrections)
	logger.Info("correction pass finished",
		logging.Int("rewritten", s.Processed),
		logging.Int("unchanged", s.Cached),
		logging.Int("corrections", s.Corrections),
	)
	return s, nil
}

func (p *Pipeline) correctTranscript(ctx context.Context, k episode.SourceFileKey, rules []spelling.Rule) (int, error) {
	data, err := p.store.GetFile(ctx, k.TranscriptKey())
	if err != nil {
		return 0, err
	}
	result := spelling.ApplySubtitles(string(data), rules)
	if result.CorrectionsApplied == 0 {
		return 0, nil
	}
	if err := p.store.SaveFile(ctx, k.TranscriptKey(), []byte(result.Text)); err != nil {
		return 0, services.Wrap(services.ErrStorage, StageCorrect, "save transcript", k.TranscriptKey(), err)
	}
	return result.CorrectionsApplied, nil
}
