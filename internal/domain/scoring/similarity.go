package scoring

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// TextSimilarity returns a case-insensitive similarity in [0,1] derived from
// the Levenshtein distance normalized by the longer input.
func TextSimilarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1
	}

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}

	distance := levenshtein.ComputeDistance(a, b)
	similarity := 1 - float64(distance)/float64(longest)
	if similarity < 0 {
		return 0
	}
	return similarity
}
