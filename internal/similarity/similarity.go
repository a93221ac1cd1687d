// Package similarity provides the text and duration scoring used by
// duplicate detection. Scores are normalized to [0,1].
package similarity

import (
	"strings"
	"unicode"

	edlib "github.com/hbollon/go-edlib"
)

// NormalizeText lowercases the input, keeps only CJK, Latin, digit and space
// runes, and collapses runs of whitespace into single spaces.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.Is(unicode.Han, r),
			unicode.Is(unicode.Latin, r),
			unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Levenshtein returns the classic unit-cost edit distance between a and b.
func Levenshtein(a, b string) int {
	return edlib.LevenshteinDistance(a, b)
}

// StringSimilarity scores two strings after normalization. Equal strings score
// 1, a string that normalizes to empty scores 0 against anything non-equal,
// and everything else scores 1 - distance/maxLen.
func StringSimilarity(a, b string) float64 {
	na := NormalizeText(a)
	nb := NormalizeText(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}

	la := len([]rune(na))
	lb := len([]rune(nb))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1 - float64(Levenshtein(na, nb))/float64(maxLen)
}

// DurationSimilarity scores two track durations in seconds. A missing duration
// (zero) scores 0.5 rather than a full mismatch. The step thresholds are fixed
// at 10%, 20% and 50% of the average duration.
func DurationSimilarity(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0.5
	}
	if a == b {
		return 1
	}

	diff := float64(a - b)
	if diff < 0 {
		diff = -diff
	}
	avg := float64(a+b) / 2

	switch {
	case diff <= 0.1*avg:
		return 0.9
	case diff <= 0.2*avg:
		return 0.7
	case diff <= 0.5*avg:
		return 0.3
	default:
		return 0
	}
}
