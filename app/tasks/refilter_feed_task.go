package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"feedsift/app/feed"
)

// RefilterFeedTask re-evaluates stored entries against the feed's
// current rule set and persists verdicts that changed.
type RefilterFeedTask struct {
	Task
	FeedConfig *feed.Config
	filterer   *feed.Filterer
	entryRepo  EntryStore
}

func NewRefilterFeedTask(feedName string, feedConfig *feed.Config, filterer *feed.Filterer, entryRepo EntryStore) *RefilterFeedTask {
	return &RefilterFeedTask{
		Task:       NewTask(TaskTypeRefilterFeed, feedName),
		FeedConfig: feedConfig,
		filterer:   filterer,
		entryRepo:  entryRepo,
	}
}

func (t *RefilterFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := t.entryRepo.GetAllEntries(t.FeedName)
	if err != nil {
		return fmt.Errorf("failed to get feed entries: %w", err)
	}

	updatedCount := 0
	errorCount := 0

	for _, stored := range entries {
		entry := feed.Entry{
			GUID:     stored.GUID,
			Title:    stored.Title,
			Link:     stored.Link,
			Summary:  stored.Summary,
			Content:  stored.Content,
			Tags:     stored.Tags,
			Language: stored.Language,
		}

		verdict := t.filterer.FilterEntry(&entry)
		isFiltered := !verdict.Passed
		reason := verdict.Reason()

		if stored.IsFiltered == isFiltered && stored.FilterReason == reason &&
			slices.Equal(stored.MatchedRules, verdict.MatchedRules) {
			continue
		}

		err := t.entryRepo.UpdateEntryFilterStatus(stored.ID, isFiltered, reason, verdict.MatchedRules)
		if err != nil {
			slog.Error("Failed to update entry filter status", "entry_id", stored.ID, "error", err)
			errorCount++
		} else {
			updatedCount++
		}
	}

	slog.Info("Task completed",
		"type", "RefilterFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"total", len(entries),
		"updated", updatedCount,
		"errors", errorCount)

	return nil
}
