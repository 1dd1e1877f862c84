package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FeedRepository handles database operations for feeds
type FeedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepository {
	return &FeedRepository{db: db}
}

const feedColumns = `id, name, feed_url, link, title, description, image_url, language,
	etag, last_modified, error_count, last_error, enabled,
	last_fetched_at, next_fetch_at, feed_published_at, created_at, updated_at`

// UpsertFeed registers a feed from its configuration, re-enabling it
// and clearing the error counter when the URL changed (a moved feed
// deserves a fresh start).
func (r *FeedRepository) UpsertFeed(feedName, feedURL string) error {
	existing, err := r.GetFeed(feedName)
	if err != nil {
		return fmt.Errorf("failed to check existing feed: %w", err)
	}

	if existing == nil {
		_, err = r.db.Exec(`
			INSERT INTO feeds (id, name, feed_url) VALUES (?, ?, ?)
		`, uuid.NewString(), feedName, feedURL)
	} else if existing.FeedURL != feedURL {
		_, err = r.db.Exec(`
			UPDATE feeds
			SET feed_url = ?, error_count = 0, last_error = '', enabled = 1, updated_at = CURRENT_TIMESTAMP
			WHERE name = ?
		`, feedURL, feedName)
	}

	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}

	return nil
}

func (r *FeedRepository) GetFeed(feedName string) (*Feed, error) {
	query := fmt.Sprintf(`SELECT %s FROM feeds WHERE name = ?`, feedColumns)
	return r.scanFeed(r.db.QueryRow(query, feedName))
}

func (r *FeedRepository) GetFeedByID(feedID string) (*Feed, error) {
	query := fmt.Sprintf(`SELECT %s FROM feeds WHERE id = ?`, feedColumns)
	return r.scanFeed(r.db.QueryRow(query, feedID))
}

func (r *FeedRepository) scanFeed(row *sql.Row) (*Feed, error) {
	var feed Feed
	err := row.Scan(
		&feed.ID, &feed.Name, &feed.FeedURL, &feed.Link, &feed.Title, &feed.Description,
		&feed.ImageURL, &feed.Language, &feed.ETag, &feed.LastModified,
		&feed.ErrorCount, &feed.LastError, &feed.Enabled,
		&feed.LastFetchedAt, &feed.NextFetchAt, &feed.FeedPublishedAt,
		&feed.CreatedAt, &feed.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return &feed, nil
}

// UpdateFeedMetadata stores feed-level metadata after a successful
// parse, schedules the next fetch and clears the error counter.
func (r *FeedRepository) UpdateFeedMetadata(feedName string, title, link, description, imageURL, language string,
	feedPublishedAt *time.Time, nextFetch time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET title = ?, link = ?, description = ?, image_url = ?, language = ?,
		    feed_published_at = ?, next_fetch_at = ?, last_fetched_at = CURRENT_TIMESTAMP,
		    error_count = 0, last_error = '', updated_at = CURRENT_TIMESTAMP
		WHERE name = ?
	`, title, link, description, imageURL, language, feedPublishedAt, nextFetch, feedName)

	if err != nil {
		return fmt.Errorf("failed to update feed metadata: %w", err)
	}

	return nil
}

// UpdateConditionalHeaders stores the validators for the next
// conditional fetch.
func (r *FeedRepository) UpdateConditionalHeaders(feedName, etag, lastModified string) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET etag = ?, last_modified = ?, updated_at = CURRENT_TIMESTAMP
		WHERE name = ?
	`, etag, lastModified, feedName)

	if err != nil {
		return fmt.Errorf("failed to update conditional headers: %w", err)
	}

	return nil
}

// UpdateNextFetch reschedules a feed without touching its metadata,
// used after an unmodified (304) response.
func (r *FeedRepository) UpdateNextFetch(feedName string, nextFetch time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET next_fetch_at = ?, last_fetched_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE name = ?
	`, nextFetch, feedName)

	if err != nil {
		return fmt.Errorf("failed to update next fetch time: %w", err)
	}

	return nil
}

// RecordFetchError increments the feed's consecutive failure counter,
// retaining the triggering message, and returns the new count so the
// caller can decide whether to auto-disable.
func (r *FeedRepository) RecordFetchError(feedName, message string) (int, error) {
	var count int
	err := r.db.QueryRow(`
		UPDATE feeds
		SET error_count = error_count + 1, last_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE name = ?
		RETURNING error_count
	`, message, feedName).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to record fetch error: %w", err)
	}

	return count, nil
}

// SetFeedEnabled flips a feed's enabled flag.
func (r *FeedRepository) SetFeedEnabled(feedName string, enabled bool) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE name = ?
	`, enabled, feedName)

	if err != nil {
		return fmt.Errorf("failed to set feed enabled status: %w", err)
	}

	return nil
}

// GetFeedCount returns the total number of feeds
func (r *FeedRepository) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// GetEnabledFeedCount returns the count of enabled feeds
func (r *FeedRepository) GetEnabledFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds WHERE enabled = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get enabled feed count: %w", err)
	}
	return count, nil
}
