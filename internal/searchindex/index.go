package searchindex

import (
	"fmt"
	"math"
	"sort"

	"podsearch/internal/searchentry"
	"podsearch/internal/services"
)

// BM25 parameters.
const (
	k1 = 1.2
	b  = 0.75
)

// ErrDuplicateID is returned when a document id is already indexed. The
// existing document is kept.
var ErrDuplicateID = fmt.Errorf("%w: duplicate document id", services.ErrDataIntegrity)

type posting struct {
	doc int32
	tf  int32
}

// Index is an in-memory inverted index over search entries. It is not safe
// for concurrent mutation; a built index may be queried concurrently.
type Index struct {
	docs     []searchentry.Entry
	docLen   []int32
	ids      map[string]int32
	postings map[string][]posting
	totalLen int64
}

// New returns an empty index.
func New() *Index {
	return &Index{
		ids:      make(map[string]int32),
		postings: make(map[string][]posting),
	}
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return len(ix.docs) }

// Terms returns the number of distinct indexed terms.
func (ix *Index) Terms() int { return len(ix.postings) }

// Insert adds one entry. Duplicate ids are rejected with ErrDuplicateID.
func (ix *Index) Insert(entry searchentry.Entry) error {
	if _, exists := ix.ids[entry.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, entry.ID)
	}
	doc := int32(len(ix.docs))
	ix.ids[entry.ID] = doc
	ix.docs = append(ix.docs, entry)

	tokens := Tokenize(entry.Text)
	ix.docLen = append(ix.docLen, int32(len(tokens)))
	ix.totalLen += int64(len(tokens))

	counts := make(map[string]int32, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}
	for _, t := range order {
		ix.postings[t] = append(ix.postings[t], posting{doc: doc, tf: counts[t]})
	}
	return nil
}

// InsertBatch inserts entries in order and returns the ids it rejected as
// duplicates.
func (ix *Index) InsertBatch(entries []searchentry.Entry) (inserted int, duplicates []string) {
	for _, e := range entries {
		if err := ix.Insert(e); err != nil {
			duplicates = append(duplicates, e.ID)
			continue
		}
		inserted++
	}
	return inserted, duplicates
}

// Get returns the document with id.
func (ix *Index) Get(id string) (searchentry.Entry, bool) {
	doc, ok := ix.ids[id]
	if !ok {
		return searchentry.Entry{}, false
	}
	return ix.docs[doc], true
}

// Hit is one ranked search result.
type Hit struct {
	Entry searchentry.Entry
	Score float64
}

// Search returns documents containing every query term, ranked by BM25 with
// insertion order breaking ties. limit <= 0 returns all matches.
func (ix *Index) Search(query string, limit int) []Hit {
	terms := uniqueTerms(Tokenize(query))
	if len(terms) == 0 || len(ix.docs) == 0 {
		return nil
	}
	lists := make([][]posting, 0, len(terms))
	for _, t := range terms {
		list, ok := ix.postings[t]
		if !ok {
			return nil
		}
		lists = append(lists, list)
	}
	sort.Slice(lists, func(i, j int) bool { return len(lists[i]) < len(lists[j]) })

	n := float64(len(ix.docs))
	avgLen := float64(ix.totalLen) / n
	if avgLen == 0 {
		avgLen = 1
	}
	idf := make([]float64, len(lists))
	for i, list := range lists {
		df := float64(len(list))
		idf[i] = math.Log(1 + (n-df+0.5)/(df+0.5))
	}

	scores := map[int32]float64{}
	for _, p := range lists[0] {
		scores[p.doc] = 0
	}
	for i, list := range lists {
		next := make(map[int32]float64, len(scores))
		for _, p := range list {
			acc, ok := scores[p.doc]
			if !ok {
				continue
			}
			tf := float64(p.tf)
			norm := 1 - b + b*float64(ix.docLen[p.doc])/avgLen
			next[p.doc] = acc + idf[i]*(tf*(k1+1))/(tf+k1*norm)
		}
		scores = next
		if len(scores) == 0 {
			return nil
		}
	}

	hits := make([]Hit, 0, len(scores))
	docs := make([]int32, 0, len(scores))
	for doc := range scores {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		si, sj := scores[docs[i]], scores[docs[j]]
		if si != sj {
			return si > sj
		}
		return docs[i] < docs[j]
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	for _, doc := range docs {
		hits = append(hits, Hit{Entry: ix.docs[doc], Score: scores[doc]})
	}
	return hits
}
