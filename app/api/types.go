package api

import (
	"context"
	"time"

	"feedsift/app/cache"
	"feedsift/app/database"
	"feedsift/app/feed"
	"feedsift/app/tasks"
)

type GeneratorInterface interface {
	Run(feed database.Feed, entries []database.Entry) (string, error)
}

var _ GeneratorInterface = (*Generator)(nil)

// SchedulerInterface is the slice of the task scheduler the handlers
// need: ad-hoc task submission plus refilter shortcuts.
type SchedulerInterface interface {
	EnqueueTask(task tasks.TaskInterface) error
	EnqueueSync(feedConfig *feed.Config) error
	EnqueueRefilter(feedConfig *feed.Config) error
}

var _ SchedulerInterface = (*tasks.Scheduler)(nil)

// FeedReader is the read side of the feed repository used by handlers.
type FeedReader interface {
	GetFeed(feedName string) (*database.Feed, error)
	GetFeedCount() (int, error)
	GetEnabledFeedCount() (int, error)
}

var _ FeedReader = (*database.FeedRepository)(nil)

// EntryReader is the read side of the entry repository used by handlers.
type EntryReader interface {
	GetVisibleEntries(feedName string, limit int) ([]database.Entry, error)
	GetEntryCount(feedName string) (int, error)
	GetEntryStats(feedName string) (total, visible, filtered int, err error)
}

var _ EntryReader = (*database.EntryRepository)(nil)

// CacheInterface caches rendered feed documents. A nil cache disables
// caching; handlers treat cache errors as misses.
type CacheInterface interface {
	GetFeedData(ctx context.Context, feedName string) (string, bool, error)
	SetFeedData(ctx context.Context, feedName, content string, ttl time.Duration) error
	InvalidateFeed(ctx context.Context, feedName string) error
	Ping(ctx context.Context) error
}

var _ CacheInterface = (*cache.Cache)(nil)

type Handler struct {
	feedRepo     FeedReader
	entryRepo    EntryReader
	generator    GeneratorInterface
	configCache  *feed.ConfigCache
	deduplicator *feed.Deduplicator
	scheduler    SchedulerInterface
	cache        CacheInterface
}
