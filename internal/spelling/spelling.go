package spelling

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule maps any of its misspellings to Correct.
type Rule struct {
	Correct      string   `yaml:"correct"`
	Misspellings []string `yaml:"misspellings"`
}

// Result is the outcome of one correction pass.
type Result struct {
	Text               string
	CorrectionsApplied int
}

// Apply rewrites whole-word, case-insensitive occurrences of each rule's
// misspellings with the rule's correct spelling. Rules run in order. Text that
// already reads exactly as the correct spelling is neither counted nor
// rewritten, so a second pass over the output applies zero corrections.
func Apply(text string, rules []Rule) Result {
	result := Result{Text: text}
	for _, rule := range rules {
		if rule.Correct == "" {
			continue
		}
		for _, misspelling := range rule.Misspellings {
			misspelling = strings.TrimSpace(misspelling)
			if misspelling == "" {
				continue
			}
			var n int
			result.Text, n = replaceWord(result.Text, misspelling, rule.Correct)
			result.CorrectionsApplied += n
		}
	}
	return result
}

// ApplySubtitles is Apply restricted to the cue text of an SRT document.
// Sequence numbers and timing lines are copied unchanged, so rules whose
// misspellings look like numbers cannot rewrite timestamps. A cue line made
// only of digits is indistinguishable from a sequence number and is left alone.
func ApplySubtitles(srt string, rules []Rule) Result {
	lines := strings.Split(srt, "\n")
	total := 0
	for i, line := range lines {
		if structuralLine(line) {
			continue
		}
		r := Apply(line, rules)
		lines[i] = r.Text
		total += r.CorrectionsApplied
	}
	if total == 0 {
		return Result{Text: srt}
	}
	return Result{Text: strings.Join(lines, "\n"), CorrectionsApplied: total}
}

func structuralLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.Contains(trimmed, "-->") {
		return true
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func replaceWord(text, misspelling, correct string) (string, int) {
	pattern, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(misspelling))
	if err != nil {
		return text, 0
	}
	matches := pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text, 0
	}
	protected := exactOccurrences(text, correct)

	var b strings.Builder
	last := 0
	count := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if !wordBoundary(text, start, end) || overlaps(protected, start, end) {
			continue
		}
		if text[start:end] == correct {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(correct)
		last = end
		count++
	}
	if count == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), count
}

// wordBoundary reports whether text[start:end] is not glued to a letter or
// digit on either side.
func wordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func exactOccurrences(text, needle string) [][2]int {
	var spans [][2]int
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], needle)
		if idx < 0 {
			break
		}
		start := offset + idx
		spans = append(spans, [2]int{start, start + len(needle)})
		offset = start + len(needle)
	}
	return spans
}

func overlaps(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

// Merge combines collection-specific rules with global ones. A global rule
// replaces the site rule with the same correct spelling (case-insensitive) in
// place; other global rules are appended.
func Merge(site, global []Rule) []Rule {
	merged := make([]Rule, len(site), len(site)+len(global))
	copy(merged, site)
	index := make(map[string]int, len(merged))
	for i, r := range merged {
		index[strings.ToLower(r.Correct)] = i
	}
	for _, g := range global {
		key := strings.ToLower(g.Correct)
		if i, ok := index[key]; ok {
			merged[i] = g
			continue
		}
		index[key] = len(merged)
		merged = append(merged, g)
	}
	return merged
}
