package manifest

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"podsearch/internal/textutil"
)

// FeedItem is the publish metadata taken from a podcast feed.
type FeedItem struct {
	Title     string
	Published time.Time
}

// RSSFeed reads publish times from an RSS/Atom feed. Audio enclosures are
// ignored; downloading is handled elsewhere.
type RSSFeed struct {
	url        string
	feedParser *gofeed.Parser
}

// NewRSSFeed creates a feed source for url.
func NewRSSFeed(url string) *RSSFeed {
	return &RSSFeed{url: url, feedParser: gofeed.NewParser()}
}

// PublishTimes fetches the feed and indexes items by the slug of their title.
func (f *RSSFeed) PublishTimes(ctx context.Context) (map[string]FeedItem, error) {
	feed, err := f.feedParser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}
	if feed == nil || len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed contains no items")
	}
	items := make(map[string]FeedItem, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Title == "" {
			continue
		}
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published == nil {
			continue
		}
		slug := textutil.Slugify(item.Title)
		if _, dup := items[slug]; dup {
			continue
		}
		items[slug] = FeedItem{Title: item.Title, Published: *published}
	}
	return items, nil
}
