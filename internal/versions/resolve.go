package versions

import (
	"podsearch/internal/episode"
)

// Decision says whether a downloaded copy is the one to process.
type Decision struct {
	Authoritative bool
	Stale         bool
	// NewerKey is the storage key of the copy that supersedes a stale target.
	NewerKey string
}

// Resolve compares target with the other copies of the same episode. A copy
// is superseded by a sibling with the same episode key and a later download
// stamp; a copy without a stamp is older than any stamped copy. Identical
// stamps fall back to comparing storage keys so exactly one copy wins.
func Resolve(target episode.SourceFileKey, siblings []episode.SourceFileKey) Decision {
	var newest *episode.SourceFileKey
	for i := range siblings {
		s := siblings[i]
		if s.Collection != target.Collection || s.EpisodeKey() != target.EpisodeKey() {
			continue
		}
		if s.String() == target.String() {
			continue
		}
		if !newer(s, target) {
			continue
		}
		if newest == nil || newer(s, *newest) {
			newest = &siblings[i]
		}
	}
	if newest == nil {
		return Decision{Authoritative: true}
	}
	return Decision{Stale: true, NewerKey: newest.String()}
}

func newer(a, b episode.SourceFileKey) bool {
	if !a.DownloadedAt.Equal(b.DownloadedAt) {
		return a.DownloadedAt.After(b.DownloadedAt)
	}
	return a.String() > b.String()
}

// Partition splits keys into the authoritative copy of each episode and the
// stale copies, preserving input order within each list.
func Partition(keys []episode.SourceFileKey) (current, stale []episode.SourceFileKey) {
	for _, k := range keys {
		if Resolve(k, keys).Stale {
			stale = append(stale, k)
		} else {
			current = append(current, k)
		}
	}
	return current, stale
}
