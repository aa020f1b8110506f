package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"podsearch/internal/blobstore"
	"podsearch/internal/episode"
	"podsearch/internal/services"
)

// Entry is one logical episode. FileKey is the episode key
// ({publishDate}__{titleSlug}), shared by every downloaded copy.
type Entry struct {
	SequentialID int       `json:"sequentialId"`
	FileKey      string    `json:"fileKey"`
	PublishedAt  time.Time `json:"publishedAt"`
	Title        string    `json:"title,omitempty"`
}

// Manifest is a collection's episode registry, the source of truth for
// episode identity during indexing.
type Manifest struct {
	Collection string    `json:"collection"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Episodes   []Entry   `json:"episodes"`

	byKey map[string]int
}

// Lookup returns the manifest entry for an episode key.
func (m *Manifest) Lookup(episodeKey string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	if m.byKey == nil {
		m.reindex()
	}
	i, ok := m.byKey[episodeKey]
	if !ok {
		return Entry{}, false
	}
	return m.Episodes[i], true
}

// NextID is the sequential id the next new episode receives.
func (m *Manifest) NextID() int {
	next := 1
	for _, e := range m.Episodes {
		if e.SequentialID >= next {
			next = e.SequentialID + 1
		}
	}
	return next
}

func (m *Manifest) reindex() {
	m.byKey = make(map[string]int, len(m.Episodes))
	for i, e := range m.Episodes {
		m.byKey[e.FileKey] = i
	}
}

func (m *Manifest) add(e Entry) {
	if m.byKey == nil {
		m.reindex()
	}
	m.byKey[e.FileKey] = len(m.Episodes)
	m.Episodes = append(m.Episodes, e)
}

// Load reads a collection's manifest. A missing manifest loads as empty with
// found=false; a corrupt one is a data-integrity error.
func Load(ctx context.Context, store blobstore.Store, collection string) (*Manifest, bool, error) {
	data, err := store.GetFile(ctx, episode.ManifestKey(collection))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return &Manifest{Collection: collection}, false, nil
		}
		return nil, false, services.Wrap(services.ErrStorage, "manifest", "load", collection, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, services.Wrap(services.ErrDataIntegrity, "manifest", "decode", collection, err)
	}
	if m.Collection == "" {
		m.Collection = collection
	}
	m.reindex()
	if len(m.byKey) != len(m.Episodes) {
		return nil, false, services.Wrap(services.ErrDataIntegrity, "manifest", "decode", fmt.Sprintf("%s lists an episode twice", collection), nil)
	}
	return &m, true, nil
}

// Save writes the manifest.
func Save(ctx context.Context, store blobstore.Store, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := store.SaveFile(ctx, episode.ManifestKey(m.Collection), data); err != nil {
		return services.Wrap(services.ErrStorage, "manifest", "save", m.Collection, err)
	}
	return nil
}
