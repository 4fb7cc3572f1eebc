package textutil

import (
	"math"
	"testing"
)

func TestWordCount(t *testing.T) {
	tests := map[string]int{
		"":                            0,
		"   ":                         0,
		"one":                         1,
		"Best running shoes\nfor you": 5,
		"tabs\tand  spaces":           3,
	}
	for in, want := range tests {
		if got := WordCount(in); got != want {
			t.Errorf("WordCount(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("hello wonderful world", 15); got != "hello wonderful" {
		t.Fatalf("expected cut at word boundary, got %q", got)
	}
	if got := Truncate("abcdefghij", 4); got != "abcd" {
		t.Fatalf("expected hard cut, got %q", got)
	}
	if got := Truncate("héllo wörld", 5); got != "héllo" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Best Running Shoes (2025)!": "best-running-shoes-2025",
		"  --  ":                     "untitled",
		"Café au lait":               "café-au-lait",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog"
	if got := Similarity(text, text); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical text scored %v", got)
	}
	if got := Similarity("apple banana cherry", "dog elephant frog"); got != 0 {
		t.Fatalf("disjoint text scored %v", got)
	}
	partial := Similarity("the quick brown fox", "the slow brown cat")
	if partial <= 0 || partial >= 1 {
		t.Fatalf("partial overlap scored %v", partial)
	}
	if Similarity("a b", "c d") != 0 {
		t.Fatal("expected short tokens to be ignored")
	}
	if Similarity("brown fox jumps", "jumps fox brown") != Similarity("jumps fox brown", "brown fox jumps") {
		t.Fatal("expected symmetric score")
	}
}
