package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feedsift/app/database"
	"feedsift/app/feed"
)

// ProcessFeedTask runs the full pipeline for one feed: fetch, parse,
// hash, deduplicate, filter, persist.
type ProcessFeedTask struct {
	Task
	FeedConfig   *feed.Config
	fetcher      *Fetcher
	parser       *feed.Parser
	deduplicator *feed.Deduplicator
	filterer     *feed.Filterer
	feedRepo     FeedStore
	entryRepo    EntryStore
	errorLimit   int
}

func NewProcessFeedTask(feedName string, feedConfig *feed.Config, fetcher *Fetcher, parser *feed.Parser,
	deduplicator *feed.Deduplicator, filterer *feed.Filterer, feedRepo FeedStore, entryRepo EntryStore,
	errorLimit int) *ProcessFeedTask {
	return &ProcessFeedTask{
		Task:         NewTask(TaskTypeProcessFeed, feedName),
		FeedConfig:   feedConfig,
		fetcher:      fetcher,
		parser:       parser,
		deduplicator: deduplicator,
		filterer:     filterer,
		feedRepo:     feedRepo,
		entryRepo:    entryRepo,
		errorLimit:   errorLimit,
	}
}

func (t *ProcessFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	dbFeed, err := t.feedRepo.GetFeed(t.FeedName)
	if err != nil {
		return fmt.Errorf("failed to get feed: %w", err)
	}
	if dbFeed == nil {
		return fmt.Errorf("feed %q not registered", t.FeedName)
	}
	if !dbFeed.Enabled {
		slog.Debug("Feed disabled after repeated errors, skipping", "feed", t.FeedName)
		return nil
	}

	result, err := t.fetcher.Fetch(ctx, FetchRequest{
		URL:          t.FeedConfig.URL,
		Timeout:      time.Duration(t.FeedConfig.Settings.Timeout) * time.Second,
		ETag:         dbFeed.ETag,
		LastModified: dbFeed.LastModified,
	})
	if err != nil {
		return t.recordFailure(fmt.Errorf("failed to fetch feed: %w", err))
	}

	nextFetch := time.Now().UTC().Add(time.Duration(t.FeedConfig.Settings.RefreshInterval) * time.Second)

	if result.NotModified {
		if err := t.feedRepo.UpdateNextFetch(t.FeedName, nextFetch); err != nil {
			return fmt.Errorf("failed to update next fetch time: %w", err)
		}
		slog.Info("Task completed",
			"type", "ProcessFeed",
			"feed", t.FeedName,
			"duration", t.GetDuration(),
			"not_modified", true)
		return nil
	}

	metadata, entries, err := t.parser.Run(result.Body)
	if err != nil {
		return t.recordFailure(fmt.Errorf("failed to parse feed: %w", err))
	}

	err = t.feedRepo.UpdateFeedMetadata(t.FeedName, metadata.Title, metadata.Link,
		metadata.Description, metadata.ImageURL, metadata.Language, metadata.FeedPublishedAt, nextFetch)
	if err != nil {
		return fmt.Errorf("failed to store feed metadata: %w", err)
	}

	if err := t.feedRepo.UpdateConditionalHeaders(t.FeedName, result.ETag, result.LastModified); err != nil {
		return fmt.Errorf("failed to store conditional headers: %w", err)
	}

	duplicateCount := 0
	filteredCount := 0
	newCount := 0

	for _, entry := range entries {
		fp := t.deduplicator.ComputeHashes(entry)
		entry.LinkHash = fp.LinkHash
		entry.TitleHash = fp.TitleHash
		entry.ContentHash = fp.ContentHash

		dedup, err := t.deduplicator.CheckDuplicate(entry, dbFeed.ID)
		if err != nil {
			return fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if dedup.IsDuplicate {
			duplicateCount++
			continue
		}

		verdict := t.filterer.FilterEntry(&entry)
		entry.IsFiltered = !verdict.Passed
		entry.FilterReason = verdict.Reason()
		entry.MatchedRules = verdict.MatchedRules

		_, err = t.entryRepo.InsertEntry(dbFeed.ID, entry)
		if errors.Is(err, database.ErrDuplicateEntry) {
			// Lost the race against another worker; same outcome as
			// the lookup above finding a match.
			duplicateCount++
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to store entry: %w", err)
		}

		if entry.IsFiltered {
			filteredCount++
		} else {
			newCount++
		}
	}

	slog.Info("Task completed",
		"type", "ProcessFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"total", len(entries),
		"duplicates", duplicateCount,
		"filtered", filteredCount,
		"new", newCount)

	return nil
}

// recordFailure bumps the feed's consecutive error counter and disables
// the feed once the limit is reached. The original error still
// propagates so the scheduler's retry policy applies.
func (t *ProcessFeedTask) recordFailure(cause error) error {
	count, err := t.feedRepo.RecordFetchError(t.FeedName, cause.Error())
	if err != nil {
		slog.Error("Failed to record fetch error", "feed", t.FeedName, "error", err)
		return cause
	}

	if t.errorLimit > 0 && count >= t.errorLimit {
		if err := t.feedRepo.SetFeedEnabled(t.FeedName, false); err != nil {
			slog.Error("Failed to disable feed", "feed", t.FeedName, "error", err)
		} else {
			slog.Warn("Feed disabled after consecutive errors", "feed", t.FeedName, "error_count", count)
		}
	}

	return cause
}
