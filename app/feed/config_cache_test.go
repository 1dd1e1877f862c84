package feed

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFeedConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
}

func TestConfigCache_LoadAndDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFeedConfig(t, dir, "news", `
url: https://example.com/feed.xml
settings:
  enabled: true
`)

	cc := NewConfigCache(dir)
	if err := cc.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if cc.GetConfigCount() != 1 {
		t.Fatalf("Expected 1 config, got %d", cc.GetConfigCount())
	}

	config, err := cc.GetConfig("news")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if config.Name != "news" {
		t.Errorf("Feed name should derive from the filename, got %q", config.Name)
	}
	if config.Settings.RefreshInterval != 3600 {
		t.Errorf("Default refresh interval should be 3600, got %d", config.Settings.RefreshInterval)
	}
	if config.Settings.MaxEntries != 100 {
		t.Errorf("Default max entries should be 100, got %d", config.Settings.MaxEntries)
	}
	if config.Settings.Timeout != 30 {
		t.Errorf("Default timeout should be 30, got %d", config.Settings.Timeout)
	}
}

func TestConfigCache_MissingDirIsEmpty(t *testing.T) {
	cc := NewConfigCache(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := cc.Run(); err != nil {
		t.Fatalf("Missing feeds dir should not be an error: %v", err)
	}
	if cc.GetConfigCount() != 0 {
		t.Errorf("Expected no configs, got %d", cc.GetConfigCount())
	}
}

func TestConfigCache_RulesConversion(t *testing.T) {
	dir := t.TempDir()
	writeFeedConfig(t, dir, "tech", `
url: https://example.com/feed.xml
settings:
  enabled: true
filters:
  - name: no-ads
    type: keyword
    match: exclude
    pattern: sponsored
    priority: 10
  - name: want-go
    type: keyword
    match: include
    pattern: golang
`)

	cc := NewConfigCache(dir)
	if err := cc.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	config, err := cc.GetConfig("tech")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}

	rules := config.Rules()
	if len(rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(rules))
	}
	if rules[0].Name != "no-ads" || rules[0].Type != RuleTypeKeyword ||
		rules[0].Match != MatchExclude || rules[0].Priority != 10 {
		t.Errorf("First rule converted wrong: %+v", rules[0])
	}
	if !rules[1].Enabled {
		t.Errorf("Omitted enabled flag should default to true")
	}
}

func TestConfigCache_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing-url", `
settings:
  enabled: true
`},
		{"bad-rule-type", `
url: https://example.com/feed.xml
filters:
  - name: r1
    type: sentiment
    match: exclude
    pattern: x
`},
		{"bad-match", `
url: https://example.com/feed.xml
filters:
  - name: r1
    type: keyword
    match: maybe
    pattern: x
`},
		{"empty-pattern", `
url: https://example.com/feed.xml
filters:
  - name: r1
    type: keyword
    match: exclude
    pattern: ""
`},
		{"duplicate-names", `
url: https://example.com/feed.xml
filters:
  - name: r1
    type: keyword
    match: exclude
    pattern: a
  - name: r1
    type: keyword
    match: exclude
    pattern: b
`},
	}

	for _, tc := range cases {
		dir := t.TempDir()
		writeFeedConfig(t, dir, tc.name, tc.content)

		cc := NewConfigCache(dir)
		if _, err := cc.LoadConfig(tc.name); err == nil {
			t.Errorf("Case %s: expected validation error, got nil", tc.name)
		}
	}
}

func TestConfigCache_GetEnabledConfigs(t *testing.T) {
	dir := t.TempDir()
	writeFeedConfig(t, dir, "on", `
url: https://example.com/on.xml
settings:
  enabled: true
`)
	writeFeedConfig(t, dir, "off", `
url: https://example.com/off.xml
settings:
  enabled: false
`)

	cc := NewConfigCache(dir)
	if err := cc.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	enabled := cc.GetEnabledConfigs()
	if len(enabled) != 1 {
		t.Fatalf("Expected 1 enabled config, got %d", len(enabled))
	}
	if _, ok := enabled["on"]; !ok {
		t.Errorf("Enabled config 'on' missing from %v", enabled)
	}
}

func TestConfigCache_ReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	writeFeedConfig(t, dir, "news", `
url: https://example.com/feed.xml
settings:
  enabled: true
`)

	cc := NewConfigCache(dir)
	if err := cc.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	writeFeedConfig(t, dir, "news", `
url: https://example.com/new-feed.xml
settings:
  enabled: true
`)

	config, err := cc.LoadConfig("news")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.URL != "https://example.com/new-feed.xml" {
		t.Errorf("Reload should pick up the new URL, got %q", config.URL)
	}

	cached, err := cc.GetConfig("news")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if cached.URL != "https://example.com/new-feed.xml" {
		t.Errorf("Cache should serve the reloaded config, got %q", cached.URL)
	}
}
