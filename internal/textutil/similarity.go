package textutil

import (
	"math"
	"regexp"
	"strings"
)

var tokenSplitPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// termVector is a term-frequency vector over tokens of three or more bytes.
type termVector struct {
	counts map[string]float64
	norm   float64
}

func newTermVector(text string) termVector {
	counts := make(map[string]float64)
	for _, token := range tokenSplitPattern.Split(strings.ToLower(text), -1) {
		if len(token) < 3 {
			continue
		}
		counts[token]++
	}
	var sum float64
	for _, c := range counts {
		sum += c * c
	}
	return termVector{counts: counts, norm: math.Sqrt(sum)}
}

// Similarity returns the cosine similarity of the term-frequency vectors of a
// and b, in [0, 1]. Text without usable tokens scores 0.
func Similarity(a, b string) float64 {
	va, vb := newTermVector(a), newTermVector(b)
	if va.norm == 0 || vb.norm == 0 {
		return 0
	}
	if len(vb.counts) < len(va.counts) {
		va, vb = vb, va
	}
	var dot float64
	for token, c := range va.counts {
		dot += c * vb.counts[token]
	}
	return math.Min(1, dot/(va.norm*vb.norm))
}
