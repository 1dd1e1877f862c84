package feed

import (
	"cmp"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// ExcludedByNoIncludeMatch is reported when include rules exist and
// none of them matched the entry.
const ExcludedByNoIncludeMatch = "no_include_match"

type compiledRule struct {
	Rule
	re *regexp.Regexp // set for regex rules only
}

// predicates dispatches rule evaluation by type. The table is closed:
// an unknown rule type never matches.
var predicates = map[RuleType]func(*Filterer, compiledRule, *Entry) bool{
	RuleTypeKeyword:  (*Filterer).matchKeyword,
	RuleTypeRegex:    (*Filterer).matchRegex,
	RuleTypeTag:      (*Filterer).matchTag,
	RuleTypeLanguage: (*Filterer).matchLanguage,
}

// Filterer evaluates a fixed, prioritized rule set against entries.
// The rule set is immutable after construction and safe to share
// across workers; a rule change requires constructing a new instance.
type Filterer struct {
	rules           []compiledRule
	hasIncludeRules bool
	keywordCache    *lruCache
}

// NewFilterer compiles and orders the rule set: descending priority,
// stable on ties so evaluation order is deterministic. A rule with an
// invalid regex pattern or unknown type/polarity is dropped with a
// warning, never a crash. cacheSize bounds the keyword match cache;
// zero or negative disables it.
func NewFilterer(rules []Rule, cacheSize int) *Filterer {
	f := &Filterer{}

	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	for _, rule := range ordered {
		if _, ok := predicates[rule.Type]; !ok {
			slog.Warn("Dropping filter rule with unknown type", "rule", rule.Name, "type", string(rule.Type))
			continue
		}
		if rule.Match != MatchInclude && rule.Match != MatchExclude {
			slog.Warn("Dropping filter rule with unknown match polarity", "rule", rule.Name, "match", string(rule.Match))
			continue
		}

		compiled := compiledRule{Rule: rule}
		if rule.Type == RuleTypeRegex {
			re, err := regexp.Compile("(?i)" + rule.Pattern)
			if err != nil {
				slog.Warn("Dropping filter rule with invalid regex", "rule", rule.Name, "pattern", rule.Pattern, "error", err)
				continue
			}
			compiled.re = re
		}

		f.rules = append(f.rules, compiled)
		if rule.Enabled && rule.Match == MatchInclude {
			f.hasIncludeRules = true
		}
	}

	if cacheSize > 0 {
		f.keywordCache = newLRUCache(cacheSize)
	}

	return f
}

// FilterEntry evaluates the entry against the rule set. Disabled rules
// are skipped entirely. A matching exclude rule short-circuits
// immediately regardless of any include matches; priority order only
// decides which exclude rule gets reported when several would match.
// With include rules present and none matching, the entry fails closed.
func (f *Filterer) FilterEntry(entry *Entry) FilterResult {
	var matched []string
	includeMatched := false

	for i := range f.rules {
		rule := f.rules[i]
		if !rule.Enabled {
			continue
		}
		if !f.matches(rule, entry) {
			continue
		}

		matched = append(matched, rule.Name)

		if rule.Match == MatchExclude {
			return FilterResult{Passed: false, MatchedRules: matched, ExcludedBy: rule.Name}
		}
		includeMatched = true
	}

	if f.hasIncludeRules && !includeMatched {
		return FilterResult{Passed: false, MatchedRules: matched, ExcludedBy: ExcludedByNoIncludeMatch}
	}

	return FilterResult{Passed: true, MatchedRules: matched}
}

// FilterEntries applies FilterEntry to each entry independently,
// returning the passing entries in input order plus a full audit trail
// of matched rule names per entry, keyed by GUID (entries that passed
// included).
func (f *Filterer) FilterEntries(entries []Entry) ([]Entry, map[string][]string) {
	passed := make([]Entry, 0, len(entries))
	report := make(map[string][]string, len(entries))

	for _, entry := range entries {
		result := f.FilterEntry(&entry)
		report[entryKey(entry)] = result.MatchedRules
		if result.Passed {
			passed = append(passed, entry)
		}
	}

	return passed, report
}

// Run annotates entries with their filter verdict for persistence,
// preserving order and keeping excluded entries in the result.
func (f *Filterer) Run(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		result := f.FilterEntry(&entry)
		entry.IsFiltered = !result.Passed
		entry.MatchedRules = result.MatchedRules
		entry.FilterReason = result.Reason()
		out = append(out, entry)
	}
	return out
}

// Reason renders the verdict for storage and logs. Informational only;
// callers must not branch on its text.
func (r FilterResult) Reason() string {
	switch {
	case r.Passed:
		return ""
	case r.ExcludedBy == ExcludedByNoIncludeMatch:
		return "No include rule matched"
	default:
		return fmt.Sprintf("Excluded by rule '%s'", r.ExcludedBy)
	}
}

func (f *Filterer) matches(rule compiledRule, entry *Entry) bool {
	predicate, ok := predicates[rule.Type]
	if !ok {
		return false
	}
	return predicate(f, rule, entry)
}

// matchKeyword does a case-insensitive substring search over title,
// content and summary. Outcomes are memoized in the bounded cache.
func (f *Filterer) matchKeyword(rule compiledRule, entry *Entry) bool {
	cacheKey := ""
	if key := entryKey(*entry); key != "" && f.keywordCache != nil {
		cacheKey = rule.Name + "\x00" + rule.Pattern + "\x00" + key
		if hit, ok := f.keywordCache.get(cacheKey); ok {
			return hit
		}
	}

	pattern := strings.ToLower(rule.Pattern)
	match := pattern != "" &&
		(strings.Contains(strings.ToLower(entry.Title), pattern) ||
			strings.Contains(strings.ToLower(entry.Content), pattern) ||
			strings.Contains(strings.ToLower(entry.Summary), pattern))

	if cacheKey != "" {
		f.keywordCache.set(cacheKey, match)
	}
	return match
}

// matchRegex runs a case-insensitive search (not a full match) over
// title, content and summary.
func (f *Filterer) matchRegex(rule compiledRule, entry *Entry) bool {
	if rule.re == nil {
		return false
	}
	return rule.re.MatchString(entry.Title) ||
		rule.re.MatchString(entry.Content) ||
		rule.re.MatchString(entry.Summary)
}

// matchTag does a case-insensitive substring match against each tag.
// Entries without tags fail closed.
func (f *Filterer) matchTag(rule compiledRule, entry *Entry) bool {
	pattern := strings.ToLower(rule.Pattern)
	if pattern == "" {
		return false
	}

	for _, tag := range entry.Tags {
		if strings.Contains(strings.ToLower(tag), pattern) {
			return true
		}
	}
	return false
}

func (f *Filterer) matchLanguage(rule compiledRule, entry *Entry) bool {
	return entry.Language != "" && strings.EqualFold(entry.Language, rule.Pattern)
}

func entryKey(entry Entry) string {
	return cmp.Or(entry.LinkHash, entry.GUID, entry.Link, entry.TitleHash)
}
