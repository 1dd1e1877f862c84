// Package hash computes normalized fingerprints for feed entry fields.
// Fingerprints are lookup keys for duplicate detection, not security
// hashes. All functions are pure: empty or invalid input yields an
// empty result, identical normalized input yields identical output.
package hash

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

type Algorithm string

const (
	AlgorithmMD5    Algorithm = "md5"
	AlgorithmSHA256 Algorithm = "sha256"
)

// ParseAlgorithm maps a configuration string to an Algorithm. Unknown
// names return false so callers can fall back to their default.
func ParseAlgorithm(s string) (Algorithm, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md5":
		return AlgorithmMD5, true
	case "sha256", "sha-256":
		return AlgorithmSHA256, true
	default:
		return "", false
	}
}

// contentFingerprintLength bounds the content hash to a prefix of the
// normalized text. Long articles get a cheap fingerprint instead of a
// full-content digest; collisions on identical openings are accepted.
const contentFingerprintLength = 500

// trackingParams are query parameters stripped during link
// normalization, in addition to the utm_* family.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"yclid":  true,
	"igshid": true,
	"mc_cid": true,
	"mc_eid": true,
}

// Normalize lower-cases text, collapses internal whitespace to single
// spaces and trims the ends.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Text digests normalized text with the requested algorithm. Empty
// input (or input that normalizes to empty) yields "".
func Text(algo Algorithm, s string) string {
	normalized := Normalize(s)
	if normalized == "" {
		return ""
	}

	switch algo {
	case AlgorithmMD5:
		sum := md5.Sum([]byte(normalized))
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256([]byte(normalized))
		return hex.EncodeToString(sum[:])
	}
}

// Link canonicalizes a URL and SHA-256-digests it. Scheme and host are
// lower-cased, the trailing slash is stripped and tracking query
// parameters are removed, so two links differing only in those hash
// identically. Unparseable input or input without a scheme and host
// yields "".
func Link(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""

	query := u.Query()
	for param := range query {
		if strings.HasPrefix(strings.ToLower(param), "utm_") || trackingParams[strings.ToLower(param)] {
			query.Del(param)
		}
	}
	u.RawQuery = query.Encode()

	sum := sha256.Sum256([]byte(u.String()))
	return hex.EncodeToString(sum[:])
}

// Title fingerprints a title with MD5 after normalization.
func Title(s string) string {
	return Text(AlgorithmMD5, s)
}

// Content fingerprints the first 500 characters of normalized content
// with SHA-256.
func Content(s string) string {
	return ContentWith(AlgorithmSHA256, s)
}

// ContentWith is Content with an explicit digest algorithm.
func ContentWith(algo Algorithm, s string) string {
	normalized := Normalize(s)
	if normalized == "" {
		return ""
	}

	runes := []rune(normalized)
	if len(runes) > contentFingerprintLength {
		runes = runes[:contentFingerprintLength]
	}

	return Text(algo, string(runes))
}

// sketchSampleSize caps how many words a sketch carries.
const sketchSampleSize = 32

// Sketch produces a coarse word sample of normalized text for
// near-duplicate comparison. Long text is sampled at a fixed stride so
// cost stays bounded. Empty input yields nil.
func Sketch(s string) []string {
	words := strings.Fields(strings.ToLower(s))
	if len(words) == 0 {
		return nil
	}

	if len(words) <= sketchSampleSize {
		return dedupeWords(words)
	}

	stride := len(words) / sketchSampleSize
	sampled := make([]string, 0, sketchSampleSize)
	for i := 0; i < len(words) && len(sampled) < sketchSampleSize; i += stride {
		sampled = append(sampled, words[i])
	}
	return dedupeWords(sampled)
}

// Similarity returns the Jaccard similarity of two sketches in [0, 1].
// Two nil sketches are not considered similar.
func Similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	seen := make(map[string]bool, len(a))
	for _, w := range a {
		seen[w] = true
	}

	intersection := 0
	union := len(seen)
	for _, w := range b {
		if seen[w] {
			intersection++
		} else {
			union++
		}
	}

	return float64(intersection) / float64(union)
}

func dedupeWords(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
