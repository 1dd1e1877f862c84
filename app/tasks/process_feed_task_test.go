package tasks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feedsift/app/database"
	"feedsift/app/feed"
)

type fakeFeedStore struct {
	feed *database.Feed

	metadataUpdated  bool
	headersUpdated   bool
	nextFetchUpdated bool
	recordedErrors   []string
	disabledSet      bool
	lastETag         string
	lastLastModified string
}

func (s *fakeFeedStore) GetFeed(feedName string) (*database.Feed, error) { return s.feed, nil }
func (s *fakeFeedStore) UpsertFeed(feedName, feedURL string) error       { return nil }

func (s *fakeFeedStore) UpdateFeedMetadata(feedName string, title, link, description, imageURL, language string,
	feedPublishedAt *time.Time, nextFetch time.Time) error {
	s.metadataUpdated = true
	return nil
}

func (s *fakeFeedStore) UpdateConditionalHeaders(feedName, etag, lastModified string) error {
	s.headersUpdated = true
	s.lastETag = etag
	s.lastLastModified = lastModified
	return nil
}

func (s *fakeFeedStore) UpdateNextFetch(feedName string, nextFetch time.Time) error {
	s.nextFetchUpdated = true
	return nil
}

func (s *fakeFeedStore) RecordFetchError(feedName, message string) (int, error) {
	s.recordedErrors = append(s.recordedErrors, message)
	return len(s.recordedErrors), nil
}

func (s *fakeFeedStore) SetFeedEnabled(feedName string, enabled bool) error {
	if !enabled {
		s.disabledSet = true
	}
	return nil
}

type fakeEntryStore struct {
	inserted   []feed.Entry
	insertErrs map[string]error // keyed by entry GUID
}

func (s *fakeEntryStore) InsertEntry(feedID string, e feed.Entry) (string, error) {
	if err := s.insertErrs[e.GUID]; err != nil {
		return "", err
	}
	s.inserted = append(s.inserted, e)
	return "new-id", nil
}

func (s *fakeEntryStore) GetAllEntries(feedName string) ([]database.Entry, error) { return nil, nil }

func (s *fakeEntryStore) UpdateEntryFilterStatus(entryID string, isFiltered bool, reason string, matchedRules []string) error {
	return nil
}

func (s *fakeEntryStore) GetEntriesForExtraction(feedName string, limit int) ([]database.EntryForExtraction, error) {
	return nil, nil
}

func (s *fakeEntryStore) UpdateExtractedContent(entryID, content, status string, extractedAt *time.Time, errorMsg string) error {
	return nil
}

func testConfig(url string) *feed.Config {
	return &feed.Config{
		Name: "test-feed",
		URL:  url,
		Settings: feed.ConfigSettings{
			Enabled:         true,
			RefreshInterval: 3600,
			MaxEntries:      100,
			Timeout:         5,
		},
	}
}

func newPipelineTask(config *feed.Config, rules []feed.Rule, feedStore *fakeFeedStore, entryStore *fakeEntryStore) *ProcessFeedTask {
	fetcher := NewFetcher(&http.Client{}, "feedsift-test/1.0")
	fetcher.backoff = time.Millisecond
	parser := feed.NewParser(feed.ParserOpts{})
	dedup := feed.NewDeduplicator(nil, feed.DedupOpts{Strategy: feed.StrategyMedium})
	filterer := feed.NewFilterer(rules, 0)

	return NewProcessFeedTask(config.Name, config, fetcher, parser, dedup, filterer, feedStore, entryStore, 3)
}

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <item>
      <guid>p1</guid>
      <title>Regular story</title>
      <link>https://example.com/p1</link>
      <description>A story</description>
    </item>
    <item>
      <guid>p2</guid>
      <title>Sponsored content here</title>
      <link>https://example.com/p2</link>
      <description>An ad</description>
    </item>
  </channel>
</rss>`

func TestProcessFeedTask_FullPipeline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	feedStore := &fakeFeedStore{feed: &database.Feed{ID: "feed-1", Name: "test-feed", Enabled: true}}
	entryStore := &fakeEntryStore{}
	rules := []feed.Rule{
		{Name: "no-ads", Enabled: true, Type: feed.RuleTypeKeyword, Match: feed.MatchExclude, Pattern: "sponsored"},
	}

	task := newPipelineTask(testConfig(server.URL), rules, feedStore, entryStore)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !feedStore.metadataUpdated {
		t.Errorf("Feed metadata should be stored")
	}
	if !feedStore.headersUpdated || feedStore.lastETag != `"v1"` {
		t.Errorf("Conditional headers should be stored, got etag %q", feedStore.lastETag)
	}

	if len(entryStore.inserted) != 2 {
		t.Fatalf("Both entries should be persisted, got %d", len(entryStore.inserted))
	}

	first := entryStore.inserted[0]
	if first.LinkHash == "" || first.TitleHash == "" || first.ContentHash == "" {
		t.Errorf("Fingerprints should be attached before persistence: %+v", first)
	}
	if first.IsFiltered {
		t.Errorf("Regular story should pass the filter")
	}

	second := entryStore.inserted[1]
	if !second.IsFiltered {
		t.Errorf("Sponsored entry should be persisted as filtered")
	}
	if second.FilterReason == "" {
		t.Errorf("Filtered entry should carry a reason")
	}
}

func TestProcessFeedTask_InsertRaceCountsAsDuplicate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	feedStore := &fakeFeedStore{feed: &database.Feed{ID: "feed-1", Name: "test-feed", Enabled: true}}
	entryStore := &fakeEntryStore{
		insertErrs: map[string]error{"p1": database.ErrDuplicateEntry},
	}

	// Another worker inserted p1 between our duplicate check and our
	// insert; the task must treat that like any other duplicate skip.
	task := newPipelineTask(testConfig(server.URL), nil, feedStore, entryStore)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Duplicate insert race must not fail the task: %v", err)
	}

	if len(entryStore.inserted) != 1 {
		t.Fatalf("Only the unraced entry should be persisted, got %d", len(entryStore.inserted))
	}
	if entryStore.inserted[0].GUID != "p2" {
		t.Errorf("Expected the second entry to survive, got %q", entryStore.inserted[0].GUID)
	}
	if len(feedStore.recordedErrors) != 0 {
		t.Errorf("Duplicate skip must not count as a fetch error, got %v", feedStore.recordedErrors)
	}
}

func TestProcessFeedTask_InsertFailureFailsTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	feedStore := &fakeFeedStore{feed: &database.Feed{ID: "feed-1", Name: "test-feed", Enabled: true}}
	entryStore := &fakeEntryStore{
		insertErrs: map[string]error{"p1": errors.New("disk I/O error")},
	}

	task := newPipelineTask(testConfig(server.URL), nil, feedStore, entryStore)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatalf("Non-duplicate insert error should fail the task")
	}
}

func TestProcessFeedTask_NotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	feedStore := &fakeFeedStore{feed: &database.Feed{ID: "feed-1", Name: "test-feed", Enabled: true, ETag: `"v1"`}}
	entryStore := &fakeEntryStore{}

	task := newPipelineTask(testConfig(server.URL), nil, feedStore, entryStore)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !feedStore.nextFetchUpdated {
		t.Errorf("304 should still advance the next fetch time")
	}
	if feedStore.metadataUpdated {
		t.Errorf("304 must not touch metadata")
	}
	if len(entryStore.inserted) != 0 {
		t.Errorf("304 must not insert entries, got %d", len(entryStore.inserted))
	}
}

func TestProcessFeedTask_FetchFailureRecorded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	feedStore := &fakeFeedStore{feed: &database.Feed{ID: "feed-1", Name: "test-feed", Enabled: true}}
	entryStore := &fakeEntryStore{}

	task := newPipelineTask(testConfig(server.URL), nil, feedStore, entryStore)
	// errorLimit is 3; first failure records but does not disable
	if err := task.Execute(context.Background()); err == nil {
		t.Fatalf("Expected fetch error to propagate")
	}

	if len(feedStore.recordedErrors) != 1 {
		t.Errorf("Fetch failure should be recorded, got %v", feedStore.recordedErrors)
	}
	if feedStore.disabledSet {
		t.Errorf("Feed must not be disabled before reaching the error limit")
	}
}

func TestProcessFeedTask_AutoDisableAtErrorLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	feedStore := &fakeFeedStore{feed: &database.Feed{ID: "feed-1", Name: "test-feed", Enabled: true}}
	entryStore := &fakeEntryStore{}

	task := newPipelineTask(testConfig(server.URL), nil, feedStore, entryStore)
	for i := 0; i < 3; i++ {
		if err := task.Execute(context.Background()); err == nil {
			t.Fatalf("Expected fetch error on attempt %d", i+1)
		}
	}

	if !feedStore.disabledSet {
		t.Errorf("Feed should be disabled after reaching the error limit")
	}
}

func TestProcessFeedTask_DisabledConfigSkips(t *testing.T) {
	config := testConfig("http://unused.invalid")
	config.Settings.Enabled = false

	feedStore := &fakeFeedStore{feed: &database.Feed{ID: "feed-1", Name: "test-feed", Enabled: true}}
	entryStore := &fakeEntryStore{}

	task := newPipelineTask(config, nil, feedStore, entryStore)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Disabled feed should be a no-op, got %v", err)
	}
	if len(entryStore.inserted) != 0 || feedStore.metadataUpdated {
		t.Errorf("Disabled feed must not do any work")
	}
}
