package company

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"acme", "", 0},
		{"", "acme", 0},
		{"acme", "acme", 1},
		{"kitten", "sitting", 1 - 3.0/7},
		{"microsft", "microsoft", 1 - 1.0/9},
		{"café", "cafe", 0.75},
		{"abc", "xyz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilarity_Properties(t *testing.T) {
	words := []string{"", "a", "acme", "acne", "globex", "initech", "umbrella", "nestle sa"}
	for _, a := range words {
		assert.InDelta(t, 1.0, Similarity(a, a), 1e-9)
		for _, b := range words {
			s := Similarity(a, b)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
			assert.InDelta(t, s, Similarity(b, a), 1e-9, "%q vs %q", a, b)
		}
	}
}

func TestSimilarity_DecreasesWithDistance(t *testing.T) {
	base := "abcdefgh"
	prev := 1.0
	for _, other := range []string{"abcdefgx", "abcdefxx", "abcdexxx", "abcdxxxx"} {
		s := Similarity(base, other)
		assert.Less(t, s, prev)
		prev = s
	}
}
