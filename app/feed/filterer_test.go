package feed

import (
	"testing"
)

func TestFilterer_NoRules(t *testing.T) {
	filterer := NewFilterer(nil, 0)

	entries := []Entry{
		{GUID: "1", Title: "Test Entry 1", Summary: "Test description"},
		{GUID: "2", Title: "Test Entry 2", Summary: "Another description"},
	}

	result := filterer.Run(entries)

	if len(result) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(result))
	}
	for i, entry := range result {
		if entry.IsFiltered {
			t.Errorf("Entry %d should not be filtered when no rules are configured", i)
		}
		if entry.FilterReason != "" {
			t.Errorf("Entry %d should have empty filter reason, got %q", i, entry.FilterReason)
		}
	}
}

func TestFilterer_ExcludeKeyword(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Name: "no-sponsored", Enabled: true, Type: RuleTypeKeyword, Match: MatchExclude, Pattern: "sponsored"},
	}, 0)

	pass := Entry{GUID: "1", Title: "Regular news item"}
	blockTitle := Entry{GUID: "2", Title: "Sponsored: buy our product"}
	blockBody := Entry{GUID: "3", Title: "Harmless title", Content: "This SPONSORED post is an ad"}

	if result := filterer.FilterEntry(&pass); !result.Passed {
		t.Errorf("Entry without keyword should pass, got %+v", result)
	}
	if result := filterer.FilterEntry(&blockTitle); result.Passed {
		t.Errorf("Keyword in title should exclude")
	}
	if result := filterer.FilterEntry(&blockBody); result.Passed {
		t.Errorf("Keyword match should be case-insensitive and search content")
	}
}

func TestFilterer_ExcludeKeywordCJK(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Name: "no-ads", Enabled: true, Type: RuleTypeKeyword, Match: MatchExclude, Pattern: "广告"},
	}, 0)

	blocked := Entry{GUID: "1", Title: "本文是广告内容"}
	if result := filterer.FilterEntry(&blocked); result.Passed {
		t.Errorf("CJK keyword should match without word boundaries")
	}
}

func TestFilterer_ExcludeWinsOverInclude(t *testing.T) {
	// Exclude short-circuits even when a higher-priority include
	// already matched.
	filterer := NewFilterer([]Rule{
		{Name: "want-go", Enabled: true, Type: RuleTypeKeyword, Match: MatchInclude, Pattern: "golang", Priority: 10},
		{Name: "no-jobs", Enabled: true, Type: RuleTypeKeyword, Match: MatchExclude, Pattern: "hiring", Priority: 5},
	}, 0)

	entry := Entry{GUID: "1", Title: "Golang team is hiring"}
	result := filterer.FilterEntry(&entry)

	if result.Passed {
		t.Errorf("Exclude rule must win over a matching include rule")
	}
	if result.ExcludedBy != "no-jobs" {
		t.Errorf("Expected exclusion by no-jobs, got %q", result.ExcludedBy)
	}
	if len(result.MatchedRules) != 2 {
		t.Errorf("Both matching rules should be recorded, got %v", result.MatchedRules)
	}
}

func TestFilterer_IncludeFailsClosed(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Name: "want-go", Enabled: true, Type: RuleTypeKeyword, Match: MatchInclude, Pattern: "golang"},
	}, 0)

	miss := Entry{GUID: "1", Title: "Rust 2.0 released"}
	result := filterer.FilterEntry(&miss)

	if result.Passed {
		t.Errorf("Entry matching no include rule must fail closed")
	}
	if result.ExcludedBy != ExcludedByNoIncludeMatch {
		t.Errorf("Expected %q, got %q", ExcludedByNoIncludeMatch, result.ExcludedBy)
	}
	if result.Reason() == "" {
		t.Errorf("Fail-closed verdict should carry a reason")
	}

	hit := Entry{GUID: "2", Title: "Golang 1.25 released"}
	if result := filterer.FilterEntry(&hit); !result.Passed {
		t.Errorf("Entry matching the include rule should pass, got %+v", result)
	}
}

func TestFilterer_DisabledRulesSkipped(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Name: "off", Enabled: false, Type: RuleTypeKeyword, Match: MatchExclude, Pattern: "news"},
	}, 0)

	entry := Entry{GUID: "1", Title: "Big news today"}
	if result := filterer.FilterEntry(&entry); !result.Passed {
		t.Errorf("Disabled rule must not exclude")
	}
}

func TestFilterer_DisabledIncludeDoesNotFailClosed(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Name: "off-include", Enabled: false, Type: RuleTypeKeyword, Match: MatchInclude, Pattern: "golang"},
	}, 0)

	entry := Entry{GUID: "1", Title: "Rust 2.0 released"}
	if result := filterer.FilterEntry(&entry); !result.Passed {
		t.Errorf("A disabled include rule must not trigger fail-closed behavior")
	}
}

func TestFilterer_InvalidRegexDropped(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Name: "broken", Enabled: true, Type: RuleTypeRegex, Match: MatchExclude, Pattern: "[unclosed"},
		{Name: "working", Enabled: true, Type: RuleTypeRegex, Match: MatchExclude, Pattern: `crypto\s+scam`},
	}, 0)

	// Broken rule is gone; entry matching only it passes.
	entry := Entry{GUID: "1", Title: "[unclosed bracket in title"}
	if result := filterer.FilterEntry(&entry); !result.Passed {
		t.Errorf("Invalid regex rule should have been dropped at construction")
	}

	blocked := Entry{GUID: "2", Title: "Another Crypto   scam exposed"}
	if result := filterer.FilterEntry(&blocked); result.Passed {
		t.Errorf("Valid regex rule should match case-insensitively")
	}
}

func TestFilterer_UnknownTypeDropped(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Name: "future", Enabled: true, Type: RuleType("embedding"), Match: MatchExclude, Pattern: "x"},
	}, 0)

	entry := Entry{GUID: "1", Title: "x marks the spot"}
	if result := filterer.FilterEntry(&entry); !result.Passed {
		t.Errorf("Unknown rule type must never match")
	}
}

func TestFilterer_TagRule(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Name: "no-promos", Enabled: true, Type: RuleTypeTag, Match: MatchExclude, Pattern: "promo"},
	}, 0)

	tagged := Entry{GUID: "1", Title: "Deal of the day", Tags: []string{"shopping", "promotions"}}
	if result := filterer.FilterEntry(&tagged); result.Passed {
		t.Errorf("Tag substring should match 'promotions'")
	}

	// Entries without tags fail closed for tag rules.
	untagged := Entry{GUID: "2", Title: "Deal of the day"}
	if result := filterer.FilterEntry(&untagged); !result.Passed {
		t.Errorf("Exclude tag rule should not match entries without tags")
	}
}

func TestFilterer_LanguageRule(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Name: "english-only", Enabled: true, Type: RuleTypeLanguage, Match: MatchInclude, Pattern: "en"},
	}, 0)

	english := Entry{GUID: "1", Title: "Hello", Language: "EN"}
	if result := filterer.FilterEntry(&english); !result.Passed {
		t.Errorf("Language match should be case-insensitive")
	}

	japanese := Entry{GUID: "2", Title: "こんにちは", Language: "ja"}
	if result := filterer.FilterEntry(&japanese); result.Passed {
		t.Errorf("Non-matching language should fail the include rule")
	}

	unknown := Entry{GUID: "3", Title: "No language"}
	if result := filterer.FilterEntry(&unknown); result.Passed {
		t.Errorf("Empty language must not satisfy a language include rule")
	}
}

func TestFilterer_PriorityOrderDecidesReportedRule(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Name: "low", Enabled: true, Type: RuleTypeKeyword, Match: MatchExclude, Pattern: "news", Priority: 1},
		{Name: "high", Enabled: true, Type: RuleTypeKeyword, Match: MatchExclude, Pattern: "breaking", Priority: 9},
	}, 0)

	entry := Entry{GUID: "1", Title: "Breaking news"}
	result := filterer.FilterEntry(&entry)

	if result.Passed {
		t.Fatalf("Entry should be excluded")
	}
	if result.ExcludedBy != "high" {
		t.Errorf("Higher priority exclude should be reported, got %q", result.ExcludedBy)
	}
}

func TestFilterer_FilterEntriesReport(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Name: "no-ads", Enabled: true, Type: RuleTypeKeyword, Match: MatchExclude, Pattern: "advert"},
	}, 0)

	entries := []Entry{
		{GUID: "keep", Title: "Plain story"},
		{GUID: "drop", Title: "An advert for socks"},
	}

	passed, report := filterer.FilterEntries(entries)

	if len(passed) != 1 || passed[0].GUID != "keep" {
		t.Errorf("Expected only the plain story to pass, got %v", passed)
	}
	if len(report["drop"]) != 1 || report["drop"][0] != "no-ads" {
		t.Errorf("Report should name the matching rule for excluded entries, got %v", report["drop"])
	}
	if len(report["keep"]) != 0 {
		t.Errorf("Report for passing entry should have no matches, got %v", report["keep"])
	}
}

func TestFilterer_KeywordCacheConsistency(t *testing.T) {
	filterer := NewFilterer([]Rule{
		{Name: "no-spam", Enabled: true, Type: RuleTypeKeyword, Match: MatchExclude, Pattern: "spam"},
	}, 4)

	entry := Entry{GUID: "1", Title: "Spam sandwich recipe"}

	first := filterer.FilterEntry(&entry)
	second := filterer.FilterEntry(&entry)

	if first.Passed != second.Passed || first.ExcludedBy != second.ExcludedBy {
		t.Errorf("Cached evaluation diverged: first %+v, second %+v", first, second)
	}
	if first.Passed {
		t.Errorf("Entry should be excluded")
	}
}
