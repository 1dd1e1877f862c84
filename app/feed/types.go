package feed

import (
	"time"
)

// Feed processing types

type Metadata struct {
	Title           string
	Link            string
	Description     string
	ImageURL        string
	Language        string
	FeedPublishedAt *time.Time
	FeedUpdatedAt   *time.Time
}

// RawEntry is the untyped bag of fields produced by feed parsing,
// before normalization. It only lives between fetch and ParseEntry.
type RawEntry struct {
	GUID            string
	Title           string
	Link            string
	AuthorName      string
	AuthorEmail     string
	Summary         string
	Content         string
	Published       string
	PublishedParsed *time.Time
	Updated         string
	UpdatedParsed   *time.Time
	Tags            []string
	Categories      []string
	Language        string
	EnclosureURL    string
	EnclosureLength int64
	EnclosureType   string
}

// Entry is the canonical, normalized representation of a feed item:
// HTML-stripped, whitespace-normalized, with fingerprints attached.
// Immutable once produced by the parser.
type Entry struct {
	GUID               string
	Title              string
	Link               string
	Author             string
	Summary            string
	Content            string
	PublishedAt        *time.Time
	UpdatedAt          *time.Time
	Tags               []string
	Language           string
	ReadingTimeSeconds int

	LinkHash    string
	TitleHash   string
	ContentHash string

	IsFiltered   bool
	FilterReason string
	MatchedRules []string

	EnclosureURL    string
	EnclosureLength int64
	EnclosureType   string
}

// Strategy controls which fingerprint combinations count as a
// duplicate. Link matches are authoritative under every strategy.
type Strategy string

const (
	StrategyStrict  Strategy = "strict"  // title AND content must both match
	StrategyMedium  Strategy = "medium"  // title match, or content match when enabled
	StrategyRelaxed Strategy = "relaxed" // title match alone, content ignored
)

// ParseStrategy maps a configuration string to a Strategy. Unknown
// names return false so callers can fall back to their default.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case StrategyStrict, StrategyMedium, StrategyRelaxed:
		return Strategy(s), true
	default:
		return "", false
	}
}

// DedupResult is the outcome of a duplicate check. Reason is
// informational only; callers must never branch on its exact text.
type DedupResult struct {
	IsDuplicate bool
	Reason      string
	ExistingID  string
}

// Fingerprint bundles the lookup hashes derived from one entry.
type Fingerprint struct {
	LinkHash    string
	TitleHash   string
	ContentHash string
}

type RuleType string

const (
	RuleTypeKeyword  RuleType = "keyword"
	RuleTypeRegex    RuleType = "regex"
	RuleTypeTag      RuleType = "tag"
	RuleTypeLanguage RuleType = "language"
)

type MatchType string

const (
	MatchInclude MatchType = "include"
	MatchExclude MatchType = "exclude"
)

// Rule is a named, prioritized predicate with include/exclude
// polarity. Higher priority rules are evaluated first.
type Rule struct {
	ID       string
	Name     string
	Enabled  bool
	Type     RuleType
	Match    MatchType
	Pattern  string
	Priority int
}

// FilterResult is the outcome of evaluating one entry against a rule
// set. ExcludedBy is the excluding rule's name, or "no_include_match"
// when include rules exist and none matched.
type FilterResult struct {
	Passed       bool
	MatchedRules []string
	ExcludedBy   string
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigRule   `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxEntries      int  `yaml:"max_entries"`
	Timeout         int  `yaml:"timeout"`         // seconds
	ExtractContent  bool `yaml:"extract_content"` // enable full content extraction
}

type ConfigRule struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Enabled  *bool  `yaml:"enabled"` // omitted means enabled
	Type     string `yaml:"type"`
	Match    string `yaml:"match"`
	Pattern  string `yaml:"pattern"`
	Priority int    `yaml:"priority"`
}

// Rule converts the YAML form into the engine form.
func (cr ConfigRule) Rule() Rule {
	enabled := true
	if cr.Enabled != nil {
		enabled = *cr.Enabled
	}

	return Rule{
		ID:       cr.ID,
		Name:     cr.Name,
		Enabled:  enabled,
		Type:     RuleType(cr.Type),
		Match:    MatchType(cr.Match),
		Pattern:  cr.Pattern,
		Priority: cr.Priority,
	}
}
