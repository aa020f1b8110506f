package searchindex

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"podsearch/internal/textutil"
)

// Tokenize folds compatibility forms and diacritics, case-folds, and splits
// on anything that is not a letter or digit.
func Tokenize(text string) []string {
	folded := cases.Fold().String(textutil.FoldDiacritics(text))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// uniqueTerms returns tokens in first-seen order without repeats.
func uniqueTerms(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
