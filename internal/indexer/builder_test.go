package indexer

import (
	"errors"
	"fmt"
	"testing"

	"podsearch/internal/searchentry"
)

func entries(n int) []searchentry.Entry {
	out := make([]searchentry.Entry, n)
	for i := range out {
		out[i] = searchentry.Entry{ID: fmt.Sprintf("1_%d", i*1000), Text: fmt.Sprintf("line %d", i)}
	}
	return out
}

func TestBuildBatches(t *testing.T) {
	ix, report := Build(entries(25), 10, nil)
	if ix.Len() != 25 || report.Inserted != 25 || report.Batches != 3 {
		t.Fatalf("unexpected build %d %+v", ix.Len(), report)
	}
	if len(report.Duplicates) != 0 || report.Rejected != 0 {
		t.Fatalf("no duplicates expected: %+v", report)
	}
}

func TestBuildReportsDuplicatesWithoutAborting(t *testing.T) {
	input := entries(3)
	input = append(input, searchentry.Entry{ID: "1_0", Text: "again"}, searchentry.Entry{ID: "1_0", Text: "and again"})
	ix, report := Build(input, 2, nil)
	if ix.Len() != 3 {
		t.Fatalf("duplicates must be rejected, not overwrite: %d docs", ix.Len())
	}
	if report.Rejected != 2 || len(report.Duplicates) != 1 || report.Duplicates[0] != (Duplicate{ID: "1_0", Count: 3}) {
		t.Fatalf("unexpected report %+v", report)
	}
	if got, _ := ix.Get("1_0"); got.Text != "line 0" {
		t.Fatalf("first occurrence should win, got %q", got.Text)
	}
}

func TestBuilderIsOneWay(t *testing.T) {
	b := NewBuilder(0, nil)
	if err := b.Add(entries(2)...); err != nil {
		t.Fatal(err)
	}
	first, _ := b.Finish()
	if err := b.Add(entries(1)...); !errors.Is(err, ErrFinished) {
		t.Fatalf("expected ErrFinished, got %v", err)
	}
	second, _ := b.Finish()
	if first != second || first.Len() != 2 {
		t.Fatal("Finish should be idempotent")
	}
}

func TestFindDuplicateIDs(t *testing.T) {
	input := []searchentry.Entry{{ID: "b"}, {ID: "a"}, {ID: "b"}, {ID: "a"}, {ID: "c"}}
	got := FindDuplicateIDs(input)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" || got[1].Count != 2 {
		t.Fatalf("unexpected duplicates %+v", got)
	}
}
