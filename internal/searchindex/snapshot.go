package searchindex

import (
	"fmt"

	"podsearch/internal/searchentry"
)

// SnapshotVersion identifies the snapshot layout.
const SnapshotVersion = 1

// Snapshot is the exportable form of an index. Postings are derived data and
// are rebuilt on import, so a snapshot only carries documents in insertion
// order; this keeps ranking identical across export and import.
type Snapshot struct {
	Version   int
	Documents []searchentry.Entry
}

// Snapshot exports the index. The returned documents share storage with the
// index and must not be modified.
func (ix *Index) Snapshot() Snapshot {
	return Snapshot{Version: SnapshotVersion, Documents: ix.docs}
}

// Each calls fn for every document in insertion order, stopping at the first
// error.
func (ix *Index) Each(fn func(searchentry.Entry) error) error {
	for _, d := range ix.docs {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// FromSnapshot rebuilds an index. A snapshot containing duplicate ids is
// rejected.
func FromSnapshot(s Snapshot) (*Index, error) {
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	ix := New()
	for _, d := range s.Documents {
		if err := ix.Insert(d); err != nil {
			return nil, err
		}
	}
	return ix, nil
}
