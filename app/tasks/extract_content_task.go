package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedsift/app/database"
	"feedsift/app/feed"
)

// ExtractContentTask fetches the web page behind each pending entry and
// replaces its content with the readable article body.
type ExtractContentTask struct {
	Task
	FeedConfig       *feed.Config
	fetcher          *Fetcher
	parser           *feed.Parser
	contentExtractor *feed.ContentExtractor
	entryRepo        EntryStore
	maxLength        int
}

func NewExtractContentTask(feedName string, feedConfig *feed.Config, fetcher *Fetcher, parser *feed.Parser,
	contentExtractor *feed.ContentExtractor, entryRepo EntryStore, maxLength int) *ExtractContentTask {
	return &ExtractContentTask{
		Task:             NewTask(TaskTypeExtractContent, feedName),
		FeedConfig:       feedConfig,
		fetcher:          fetcher,
		parser:           parser,
		contentExtractor: contentExtractor,
		entryRepo:        entryRepo,
		maxLength:        maxLength,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.ExtractContent {
		slog.Debug("Content extraction disabled for feed", "feed", t.FeedName)
		return nil
	}

	entries, err := t.entryRepo.GetEntriesForExtraction(t.FeedName, t.FeedConfig.Settings.MaxEntries)
	if err != nil {
		return fmt.Errorf("failed to get entries for content extraction: %w", err)
	}

	if len(entries) == 0 {
		slog.Debug("No entries need content extraction", "feed", t.FeedName)
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := t.extractContentForEntry(ctx, entry)
		if err != nil {
			slog.Error("Failed to extract content for entry", "entry_id", entry.ID, "url", entry.Link, "error", err)
			errorCount++

			now := time.Now().UTC()
			err = t.entryRepo.UpdateExtractedContent(entry.ID, "", "failed", &now, err.Error())
			if err != nil {
				slog.Error("Failed to update content extraction status", "entry_id", entry.ID, "error", err)
			}
		} else {
			successCount++
		}
	}

	slog.Info("Task completed",
		"type", "ExtractContent",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *ExtractContentTask) extractContentForEntry(ctx context.Context, entry database.EntryForExtraction) error {
	if entry.Link == "" {
		return fmt.Errorf("entry has no link")
	}

	result, err := t.fetcher.Fetch(ctx, FetchRequest{
		URL:     entry.Link,
		Timeout: time.Duration(t.FeedConfig.Settings.Timeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch article: %w", err)
	}

	if !strings.Contains(strings.ToLower(result.ContentType), "text/html") {
		return fmt.Errorf("content type is not HTML: %s", result.ContentType)
	}

	extracted, err := t.contentExtractor.Run(result.Body)
	if err != nil {
		return fmt.Errorf("failed to extract content: %w", err)
	}

	content := t.parser.NormalizeExtracted(extracted, t.maxLength)
	if content == "" {
		return fmt.Errorf("extraction produced no content")
	}

	now := time.Now().UTC()
	err = t.entryRepo.UpdateExtractedContent(entry.ID, content, "success", &now, "")
	if err != nil {
		return fmt.Errorf("failed to store extracted content: %w", err)
	}

	slog.Debug("Content extracted", "entry_id", entry.ID, "url", entry.Link, "content_length", len(content))
	return nil
}
