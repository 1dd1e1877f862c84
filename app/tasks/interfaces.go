package tasks

import (
	"time"

	"feedsift/app/database"
	"feedsift/app/feed"
)

// FeedStore is the slice of the feed repository the tasks need.
type FeedStore interface {
	GetFeed(feedName string) (*database.Feed, error)
	UpsertFeed(feedName, feedURL string) error
	UpdateFeedMetadata(feedName string, title, link, description, imageURL, language string,
		feedPublishedAt *time.Time, nextFetch time.Time) error
	UpdateConditionalHeaders(feedName, etag, lastModified string) error
	UpdateNextFetch(feedName string, nextFetch time.Time) error
	RecordFetchError(feedName, message string) (int, error)
	SetFeedEnabled(feedName string, enabled bool) error
}

// EntryStore is the slice of the entry repository the tasks need.
type EntryStore interface {
	InsertEntry(feedID string, e feed.Entry) (string, error)
	GetAllEntries(feedName string) ([]database.Entry, error)
	UpdateEntryFilterStatus(entryID string, isFiltered bool, reason string, matchedRules []string) error
	GetEntriesForExtraction(feedName string, limit int) ([]database.EntryForExtraction, error)
	UpdateExtractedContent(entryID, content, status string, extractedAt *time.Time, errorMsg string) error
}

var _ FeedStore = (*database.FeedRepository)(nil)
var _ EntryStore = (*database.EntryRepository)(nil)

// TaskSchedulerInterface provides task queue management and worker pool
// control for background feed processing.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
