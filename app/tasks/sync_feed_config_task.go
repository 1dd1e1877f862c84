package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"feedsift/app/feed"
)

// SyncFeedConfigTask registers a configured feed in the database, or
// updates its source URL if the configuration changed.
type SyncFeedConfigTask struct {
	Task
	FeedConfig *feed.Config
	feedRepo   FeedStore
}

func NewSyncFeedConfigTask(feedName string, feedConfig *feed.Config, feedRepo FeedStore) *SyncFeedConfigTask {
	return &SyncFeedConfigTask{
		Task:       NewTask(TaskTypeSyncFeedConfig, feedName),
		FeedConfig: feedConfig,
		feedRepo:   feedRepo,
	}
}

func (t *SyncFeedConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.feedRepo.UpsertFeed(t.FeedConfig.Name, t.FeedConfig.URL)
	if err != nil {
		return fmt.Errorf("failed to sync feed config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncFeedConfig",
		"feed", t.FeedName,
		"duration", t.GetDuration())

	return nil
}
