package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "晴天", NormalizeText("  晴天 "))
	assert.Equal(t, "hello world 2", NormalizeText("Hello,   World! (2)"))
	assert.Equal(t, "周杰伦 jay", NormalizeText("周杰伦 - 【Jay】"))
	assert.Equal(t, "", NormalizeText("!!!???"))
}

func TestStringSimilarityIdentity(t *testing.T) {
	for _, s := range []string{"晴天", "Hello World", "a", "七里香 周杰伦"} {
		assert.Equal(t, 1.0, StringSimilarity(s, s), "identical strings must score 1: %q", s)
	}

	// Equal-string short circuit also covers two empty strings.
	assert.Equal(t, 1.0, StringSimilarity("", ""))
}

func TestStringSimilaritySymmetry(t *testing.T) {
	pairs := [][2]string{
		{"晴天", "晴天 (Live)"},
		{"Seven Nation Army", "Seven Nation"},
		{"周杰伦", "周杰倫"},
	}
	for _, p := range pairs {
		assert.Equal(t, StringSimilarity(p[0], p[1]), StringSimilarity(p[1], p[0]))
	}
}

func TestStringSimilarityEmptyAgainstNonEmpty(t *testing.T) {
	assert.Equal(t, 0.0, StringSimilarity("", "晴天"))
	assert.Equal(t, 0.0, StringSimilarity("!!!", "晴天"))
}

func TestStringSimilarityNormalizationEquality(t *testing.T) {
	// Punctuation and whitespace differences normalize away entirely.
	assert.Equal(t, 1.0, StringSimilarity("晴天 ", "晴天"))
	assert.Equal(t, 1.0, StringSimilarity("Hello World", "hello,world"))
}

func TestLevenshteinIdentityAndTriangle(t *testing.T) {
	words := []string{"", "晴天", "晴天 live", "seven", "sever", "severn"}

	for _, a := range words {
		assert.Equal(t, 0, Levenshtein(a, a))
	}
	for _, a := range words {
		for _, b := range words {
			if a != b {
				assert.Greater(t, Levenshtein(a, b), 0)
			}
			for _, c := range words {
				ab := Levenshtein(a, b)
				bc := Levenshtein(b, c)
				ac := Levenshtein(a, c)
				assert.LessOrEqual(t, ac, ab+bc, "triangle inequality %q %q %q", a, b, c)
			}
		}
	}
}

func TestDurationSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, DurationSimilarity(180, 180))
	assert.Equal(t, 0.5, DurationSimilarity(180, 0))
	assert.Equal(t, 0.5, DurationSimilarity(0, 180))
	assert.Equal(t, 0.5, DurationSimilarity(100, 0))

	// Fixed step thresholds at 10%, 20% and 50% of the average.
	assert.Equal(t, 0.9, DurationSimilarity(269, 270))
	assert.Equal(t, 0.7, DurationSimilarity(200, 240))
	assert.Equal(t, 0.3, DurationSimilarity(200, 300))
	assert.Equal(t, 0.0, DurationSimilarity(60, 300))
}
