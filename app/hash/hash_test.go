package hash

import (
	"testing"
)

func TestText_Determinism(t *testing.T) {
	first := Text(AlgorithmMD5, "Some Article Title")
	second := Text(AlgorithmMD5, "Some Article Title")

	if first != second {
		t.Errorf("Expected identical hashes for identical input, got %s and %s", first, second)
	}
}

func TestText_Normalization(t *testing.T) {
	base := Text(AlgorithmSHA256, "hello world")

	variants := []string{
		"Hello World",
		"  hello   world  ",
		"HELLO\t\nWORLD",
	}

	for _, variant := range variants {
		if got := Text(AlgorithmSHA256, variant); got != base {
			t.Errorf("Expected %q to normalize to same hash as base, got %s vs %s", variant, got, base)
		}
	}
}

func TestText_DigestLengths(t *testing.T) {
	if got := Text(AlgorithmMD5, "test"); len(got) != 32 {
		t.Errorf("Expected 32 hex chars for MD5, got %d", len(got))
	}
	if got := Text(AlgorithmSHA256, "test"); len(got) != 64 {
		t.Errorf("Expected 64 hex chars for SHA-256, got %d", len(got))
	}
}

func TestText_EmptyInput(t *testing.T) {
	if got := Text(AlgorithmMD5, ""); got != "" {
		t.Errorf("Expected empty hash for empty input, got %s", got)
	}
	if got := Text(AlgorithmMD5, "   \t\n  "); got != "" {
		t.Errorf("Expected empty hash for whitespace-only input, got %s", got)
	}
}

func TestLink_TrailingSlash(t *testing.T) {
	base := Link("https://example.com/article")
	withSlash := Link("https://example.com/article/")

	if base == "" {
		t.Fatal("Expected non-empty hash for valid URL")
	}
	if base != withSlash {
		t.Errorf("Expected trailing slash to be ignored, got %s vs %s", base, withSlash)
	}
}

func TestLink_TrackingParams(t *testing.T) {
	base := Link("https://example.com/article")

	variants := []string{
		"https://example.com/article?utm_source=x",
		"https://example.com/article?utm_source=x&utm_medium=email",
		"https://example.com/article?fbclid=abc123",
		"https://example.com/article/?utm_campaign=spring&gclid=z",
	}

	for _, variant := range variants {
		if got := Link(variant); got != base {
			t.Errorf("Expected %q to hash same as base URL, got %s vs %s", variant, got, base)
		}
	}
}

func TestLink_PreservesMeaningfulParams(t *testing.T) {
	base := Link("https://example.com/article?page=2")
	other := Link("https://example.com/article")

	if base == other {
		t.Error("Expected meaningful query parameters to change the hash")
	}
}

func TestLink_CaseFolding(t *testing.T) {
	if Link("HTTPS://Example.COM/path") != Link("https://example.com/path") {
		t.Error("Expected scheme and host case to be ignored")
	}

	// Path case is significant
	if Link("https://example.com/Path") == Link("https://example.com/path") {
		t.Error("Expected path case to be significant")
	}
}

func TestLink_InvalidInput(t *testing.T) {
	invalid := []string{
		"",
		"not-a-url",
		"://missing-scheme",
		"relative/path",
	}

	for _, input := range invalid {
		if got := Link(input); got != "" {
			t.Errorf("Expected empty hash for %q, got %s", input, got)
		}
	}
}

func TestTitle_UsesMD5(t *testing.T) {
	got := Title("An Article Title")
	if len(got) != 32 {
		t.Errorf("Expected 32 hex chars for title hash, got %d", len(got))
	}
	if Title("an  article   title") != got {
		t.Error("Expected whitespace and case differences to be ignored")
	}
}

func TestContent_PrefixFingerprint(t *testing.T) {
	prefix := make([]byte, 600)
	for i := range prefix {
		prefix[i] = 'a' + byte(i%26)
	}

	first := Content(string(prefix) + " tail one")
	second := Content(string(prefix) + " completely different tail")

	if first == "" {
		t.Fatal("Expected non-empty content hash")
	}
	if first != second {
		t.Error("Expected content differing only beyond 500 chars to share a fingerprint")
	}

	third := Content("x" + string(prefix))
	if third == first {
		t.Error("Expected content differing within the first 500 chars to hash differently")
	}
}

func TestContent_EmptyInput(t *testing.T) {
	if got := Content(""); got != "" {
		t.Errorf("Expected empty hash for empty content, got %s", got)
	}
}

func TestSketch_EmptyInput(t *testing.T) {
	if got := Sketch(""); got != nil {
		t.Errorf("Expected nil sketch for empty input, got %v", got)
	}
}

func TestSketch_BoundedSize(t *testing.T) {
	long := ""
	for i := 0; i < 5000; i++ {
		long += "word" + string(rune('a'+i%26)) + " "
	}

	sketch := Sketch(long)
	if len(sketch) == 0 {
		t.Fatal("Expected non-empty sketch for long input")
	}
	if len(sketch) > sketchSampleSize {
		t.Errorf("Expected sketch bounded to %d words, got %d", sketchSampleSize, len(sketch))
	}
}

func TestSimilarity(t *testing.T) {
	a := Sketch("the quick brown fox jumps over the lazy dog")
	b := Sketch("the quick brown fox jumps over the lazy dog")
	c := Sketch("completely unrelated text about markets")

	if got := Similarity(a, b); got != 1.0 {
		t.Errorf("Expected identical sketches to have similarity 1.0, got %f", got)
	}
	if got := Similarity(a, c); got > 0.2 {
		t.Errorf("Expected unrelated sketches to have low similarity, got %f", got)
	}
	if got := Similarity(nil, a); got != 0 {
		t.Errorf("Expected nil sketch to have zero similarity, got %f", got)
	}
}

func TestParseAlgorithm(t *testing.T) {
	if algo, ok := ParseAlgorithm("MD5"); !ok || algo != AlgorithmMD5 {
		t.Errorf("Expected md5 to parse, got %v %v", algo, ok)
	}
	if algo, ok := ParseAlgorithm("sha-256"); !ok || algo != AlgorithmSHA256 {
		t.Errorf("Expected sha-256 to parse, got %v %v", algo, ok)
	}
	if _, ok := ParseAlgorithm("crc32"); ok {
		t.Error("Expected unknown algorithm to be rejected")
	}
}
