package spelling

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"podsearch/internal/services"
)

var k8s = Rule{Correct: "Kubernetes", Misspellings: []string{"cooper netties", "kubernetties", "kubernetes"}}

func TestApplyIsCaseInsensitiveAndWholeWord(t *testing.T) {
	in := "We run Cooper Netties. KUBERNETTIES rocks; kubernettiesque is not a word."
	got := Apply(in, []Rule{k8s})
	want := "We run Kubernetes. Kubernetes rocks; kubernettiesque is not a word."
	if got.Text != want {
		t.Fatalf("Apply text = %q, want %q", got.Text, want)
	}
	if got.CorrectionsApplied != 2 {
		t.Fatalf("expected 2 corrections, got %d", got.CorrectionsApplied)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	rules := []Rule{
		k8s,
		{Correct: "Cooper Netties Inc", Misspellings: []string{"cooper netties"}},
		{Correct: "café", Misspellings: []string{"cafe"}},
	}
	first := Apply("cooper netties and a cafe, kubernetes", rules)
	if first.CorrectionsApplied == 0 {
		t.Fatal("first pass should correct something")
	}
	second := Apply(first.Text, rules)
	if second.CorrectionsApplied != 0 || second.Text != first.Text {
		t.Fatalf("second pass changed %q into %q (%d corrections)", first.Text, second.Text, second.CorrectionsApplied)
	}
}

func TestApplyUnicodeBoundaries(t *testing.T) {
	rules := []Rule{{Correct: "Zoë", Misspellings: []string{"zoe"}}}
	got := Apply("zoe, zoeé and Zoë", rules)
	if got.Text != "Zoë, zoeé and Zoë" || got.CorrectionsApplied != 1 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestApplyNoRulesNoChange(t *testing.T) {
	got := Apply("untouched", nil)
	if got.Text != "untouched" || got.CorrectionsApplied != 0 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestMergeGlobalOverridesSite(t *testing.T) {
	site := []Rule{
		{Correct: "kubernetes", Misspellings: []string{"site-only"}},
		{Correct: "Jane Doe", Misspellings: []string{"jane dough"}},
	}
	global := []Rule{k8s, {Correct: "Go", Misspellings: []string{"golang"}}}
	merged := Merge(site, global)
	if len(merged) != 3 {
		t.Fatalf("expected 3 rules, got %+v", merged)
	}
	if merged[0].Correct != "Kubernetes" || len(merged[0].Misspellings) != 3 {
		t.Fatalf("global rule should replace the site rule in place: %+v", merged[0])
	}
	if merged[1].Correct != "Jane Doe" || merged[2].Correct != "Go" {
		t.Fatalf("unexpected order %+v", merged)
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := `global:
  - correct: Kubernetes
    misspellings: [cooper netties]
collections:
  show:
    - correct: Jane Doe
      misspellings: [jane dough]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	file, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if rules := file.For("show"); len(rules) != 2 {
		t.Fatalf("expected merged rules, got %+v", rules)
	}
	if rules := file.For("other"); len(rules) != 1 {
		t.Fatalf("expected only global rules, got %+v", rules)
	}

	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing file should be a configuration error, got %v", err)
	}
	if _, err := ParseRules([]byte("global:\n  - misspellings: [x]\n")); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("rule without correct spelling should fail, got %v", err)
	}
	empty, err := LoadRules("")
	if err != nil || len(empty.For("x")) != 0 {
		t.Fatalf("empty path should yield no rules: %v", err)
	}
}

func TestApplySubtitlesLeavesTimingLinesAlone(t *testing.T) {
	srt := "1\n00:00:20,000 --> 00:00:22,000\nwe shipped 20 builds with kubernetties\n\n20\n00:01:00,000 --> 00:01:02,000\n20 more\n"
	rules := []Rule{k8s, {Correct: "twenty", Misspellings: []string{"20"}}}

	got := ApplySubtitles(srt, rules)
	want := "1\n00:00:20,000 --> 00:00:22,000\nwe shipped twenty builds with Kubernetes\n\n20\n00:01:00,000 --> 00:01:02,000\ntwenty more\n"
	if got.Text != want {
		t.Fatalf("ApplySubtitles text = %q, want %q", got.Text, want)
	}
	if got.CorrectionsApplied != 3 {
		t.Fatalf("expected 3 corrections, got %d", got.CorrectionsApplied)
	}
	if again := ApplySubtitles(got.Text, rules); again.CorrectionsApplied != 0 || again.Text != got.Text {
		t.Fatalf("second pass changed the document: %+v", again)
	}
}
