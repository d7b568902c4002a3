package company

import (
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// Similarity scores two strings in [0, 1] as one minus the edit distance
// over the longer rune length. Two empty strings score 1; one empty string
// scores 0.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	switch {
	case la == 0 && lb == 0:
		return 1
	case la == 0 || lb == 0:
		return 0
	}

	longest := max(la, lb)
	return 1 - float64(levenshtein.Distance(a, b, nil))/float64(longest)
}
