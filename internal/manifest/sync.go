package manifest

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"podsearch/internal/blobstore"
	"podsearch/internal/episode"
	"podsearch/internal/logging"
	"podsearch/internal/services"
)

// FeedSource supplies exact publish times keyed by title slug.
type FeedSource interface {
	PublishTimes(ctx context.Context) (map[string]FeedItem, error)
}

// SyncReport summarizes a manifest sync.
type SyncReport struct {
	Existing   int
	Added      int
	FromFeed   int
	SkippedKey int
}

// Syncer registers new episodes found in a collection's audio listing.
type Syncer struct {
	store  blobstore.Store
	feed   FeedSource
	now    func() time.Time
	logger *slog.Logger
}

// NewSyncer constructs a syncer. feed may be nil.
func NewSyncer(store blobstore.Store, feed FeedSource, logger *slog.Logger) *Syncer {
	return &Syncer{
		store:  store,
		feed:   feed,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "manifest"),
	}
}

// Sync adds every episode present in audio/{collection}/ but missing from the
// manifest. Existing ids never change; new episodes get the next ids in
// publish order.
func (s *Syncer) Sync(ctx context.Context, collection string) (*Manifest, SyncReport, error) {
	var report SyncReport
	m, _, err := Load(ctx, s.store, collection)
	if err != nil {
		return nil, report, err
	}
	report.Existing = len(m.Episodes)

	keys, err := s.store.ListFiles(ctx, episode.AudioPrefix(collection))
	if err != nil {
		return nil, report, services.Wrap(services.ErrStorage, "manifest", "list audio", collection, err)
	}

	var feedItems map[string]FeedItem
	if s.feed != nil {
		feedItems, err = s.feed.PublishTimes(ctx)
		if err != nil {
			logging.WarnWithContext(s.logger, "feed unavailable; using file-name dates", "manifest_feed_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the feed URL"),
				logging.String(logging.FieldImpact, "publish times fall back to midnight UTC"),
			)
		}
	}

	pending := map[string]Entry{}
	for _, key := range keys {
		parsed, err := episode.ParseSourceFileKey(key)
		if err != nil {
			report.SkippedKey++
			s.logger.Debug("ignoring non-episode key", logging.String("key", key))
			continue
		}
		ek := parsed.EpisodeKey()
		if _, ok := m.Lookup(ek); ok {
			continue
		}
		if _, ok := pending[ek]; ok {
			continue
		}
		entry := Entry{FileKey: ek, PublishedAt: parsed.PublishDate.UTC()}
		if item, ok := feedItems[parsed.Slug]; ok {
			entry.PublishedAt = item.Published.UTC()
			entry.Title = item.Title
			report.FromFeed++
		}
		pending[ek] = entry
	}

	added := make([]Entry, 0, len(pending))
	for _, e := range pending {
		added = append(added, e)
	}
	sort.Slice(added, func(i, j int) bool {
		if !added[i].PublishedAt.Equal(added[j].PublishedAt) {
			return added[i].PublishedAt.Before(added[j].PublishedAt)
		}
		return added[i].FileKey < added[j].FileKey
	})
	next := m.NextID()
	for _, e := range added {
		e.SequentialID = next
		next++
		m.add(e)
	}
	report.Added = len(added)

	if report.Added > 0 {
		m.UpdatedAt = s.now().UTC()
		if err := Save(ctx, s.store, m); err != nil {
			return nil, report, err
		}
	}
	s.logger.Info("manifest synced",
		logging.String(logging.FieldCollection, collection),
		logging.Int("existing", report.Existing),
		logging.Int("added", report.Added),
		logging.Int("from_feed", report.FromFeed),
	)
	return m, report, nil
}
