package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"

	"feedsift/app/feed"
)

// ErrDuplicateEntry reports an insert that lost the race against
// another worker storing the same link in the same feed. Callers are
// expected to reclassify it as a duplicate skip, not a failure.
var ErrDuplicateEntry = errors.New("duplicate entry")

const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// EntryRepository handles database operations for feed entries. It
// also implements feed.EntryLookup for the deduplication engine.
type EntryRepository struct {
	db *DB
}

var _ feed.EntryLookup = (*EntryRepository)(nil)

func NewEntryRepository(db *DB) *EntryRepository {
	return &EntryRepository{db: db}
}

const entryColumns = `id, feed_id, guid, link, title, author, summary, content,
	published_at, updated_at, tags, language, reading_time_seconds,
	link_hash, title_hash, content_hash,
	is_filtered, filter_reason, matched_rules,
	enclosure_url, enclosure_length, enclosure_type,
	content_extracted_at, content_extraction_status, content_extraction_error, extraction_attempts,
	created_at`

// InsertEntry stores a canonical entry with its fingerprints and
// filter verdict. A unique-constraint violation on (feed_id,
// link_hash) is returned as ErrDuplicateEntry.
func (r *EntryRepository) InsertEntry(feedID string, e feed.Entry) (string, error) {
	id := uuid.NewString()

	_, err := r.db.Exec(`
		INSERT INTO entries (
			id, feed_id, guid, link, title, author, summary, content,
			published_at, updated_at, tags, language, reading_time_seconds,
			link_hash, title_hash, content_hash,
			is_filtered, filter_reason, matched_rules,
			enclosure_url, enclosure_length, enclosure_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, feedID, e.GUID, e.Link, e.Title, e.Author, e.Summary, e.Content,
		e.PublishedAt, e.UpdatedAt, marshalStringList(e.Tags), e.Language, e.ReadingTimeSeconds,
		e.LinkHash, e.TitleHash, e.ContentHash,
		e.IsFiltered, e.FilterReason, marshalStringList(e.MatchedRules),
		e.EnclosureURL, e.EnclosureLength, e.EnclosureType)

	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: link_hash %s in feed %s", ErrDuplicateEntry, e.LinkHash, feedID)
		}
		return "", fmt.Errorf("failed to insert entry: %w", err)
	}

	return id, nil
}

// feed.EntryLookup implementation. A nil StoredEntry with nil error
// means no match.

func (r *EntryRepository) FindEntryByLinkHash(linkHash, feedID string) (*feed.StoredEntry, error) {
	return r.findByHash("link_hash", linkHash, feedID)
}

func (r *EntryRepository) FindEntryByTitleHash(titleHash, feedID string) (*feed.StoredEntry, error) {
	return r.findByHash("title_hash", titleHash, feedID)
}

func (r *EntryRepository) FindEntryByContentHash(contentHash, feedID string) (*feed.StoredEntry, error) {
	return r.findByHash("content_hash", contentHash, feedID)
}

func (r *EntryRepository) FindEntryByLinkHashInFeeds(linkHash string, feedIDs []string) (*feed.StoredEntry, error) {
	return r.findByHashInFeeds("link_hash", linkHash, feedIDs)
}

func (r *EntryRepository) FindEntryByTitleHashInFeeds(titleHash string, feedIDs []string) (*feed.StoredEntry, error) {
	return r.findByHashInFeeds("title_hash", titleHash, feedIDs)
}

func (r *EntryRepository) FindEntryByContentHashInFeeds(contentHash string, feedIDs []string) (*feed.StoredEntry, error) {
	return r.findByHashInFeeds("content_hash", contentHash, feedIDs)
}

func (r *EntryRepository) findByHash(column, hash, feedID string) (*feed.StoredEntry, error) {
	if hash == "" {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, feed_id, title, link FROM entries
		WHERE feed_id = ? AND %s = ?
		LIMIT 1
	`, column)

	return r.scanStoredEntry(r.db.QueryRow(query, feedID, hash))
}

func (r *EntryRepository) findByHashInFeeds(column, hash string, feedIDs []string) (*feed.StoredEntry, error) {
	if hash == "" {
		return nil, nil
	}

	var query string
	args := []interface{}{hash}

	if len(feedIDs) == 0 {
		// nil feed list searches globally
		query = fmt.Sprintf(`SELECT id, feed_id, title, link FROM entries WHERE %s = ? LIMIT 1`, column)
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(feedIDs)), ", ")
		query = fmt.Sprintf(`SELECT id, feed_id, title, link FROM entries WHERE %s = ? AND feed_id IN (%s) LIMIT 1`,
			column, placeholders)
		for _, feedID := range feedIDs {
			args = append(args, feedID)
		}
	}

	return r.scanStoredEntry(r.db.QueryRow(query, args...))
}

func (r *EntryRepository) scanStoredEntry(row *sql.Row) (*feed.StoredEntry, error) {
	var stored feed.StoredEntry
	err := row.Scan(&stored.ID, &stored.FeedID, &stored.Title, &stored.Link)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up entry by hash: %w", err)
	}
	return &stored, nil
}

// GetRecentTitles returns the most recently stored entries for a feed,
// newest first, for near-duplicate title comparison.
func (r *EntryRepository) GetRecentTitles(feedID string, limit int) ([]feed.StoredEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_id, title, link FROM entries
		WHERE feed_id = ? AND title != ''
		ORDER BY created_at DESC
		LIMIT ?
	`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent titles: %w", err)
	}
	defer rows.Close()

	var entries []feed.StoredEntry
	for rows.Next() {
		var stored feed.StoredEntry
		if err := rows.Scan(&stored.ID, &stored.FeedID, &stored.Title, &stored.Link); err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, stored)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	return entries, nil
}

// GetVisibleEntries returns non-filtered entries for a feed, newest
// first.
func (r *EntryRepository) GetVisibleEntries(feedName string, limit int) ([]Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM entries
		WHERE feed_id = (SELECT id FROM feeds WHERE name = ?)
		  AND is_filtered = 0
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT ?
	`, entryColumns)

	return r.queryEntries(query, feedName, limit)
}

// GetAllEntries returns all entries for a feed, filtered ones included.
func (r *EntryRepository) GetAllEntries(feedName string) ([]Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM entries
		WHERE feed_id = (SELECT id FROM feeds WHERE name = ?)
		ORDER BY COALESCE(published_at, created_at) DESC
	`, entryColumns)

	return r.queryEntries(query, feedName)
}

func (r *EntryRepository) queryEntries(query string, args ...interface{}) ([]Entry, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var tags, matchedRules string
		err := rows.Scan(
			&e.ID, &e.FeedID, &e.GUID, &e.Link, &e.Title, &e.Author, &e.Summary, &e.Content,
			&e.PublishedAt, &e.UpdatedAt, &tags, &e.Language, &e.ReadingTimeSeconds,
			&e.LinkHash, &e.TitleHash, &e.ContentHash,
			&e.IsFiltered, &e.FilterReason, &matchedRules,
			&e.EnclosureURL, &e.EnclosureLength, &e.EnclosureType,
			&e.ContentExtractedAt, &e.ContentExtractionStatus, &e.ContentExtractionError, &e.ExtractionAttempts,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		e.Tags = unmarshalStringList(tags)
		e.MatchedRules = unmarshalStringList(matchedRules)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	return entries, nil
}

// GetEntryCount returns the total number of entries for a feed
func (r *EntryRepository) GetEntryCount(feedName string) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM entries
		WHERE feed_id = (SELECT id FROM feeds WHERE name = ?)
	`, feedName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get entry count: %w", err)
	}
	return count, nil
}

// GetEntryStats returns total, visible and filtered entry counts for a feed
func (r *EntryRepository) GetEntryStats(feedName string) (total, visible, filtered int, err error) {
	err = r.db.QueryRow(`
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN is_filtered = 0 THEN 1 ELSE 0 END), 0) as visible,
			COALESCE(SUM(CASE WHEN is_filtered = 1 THEN 1 ELSE 0 END), 0) as filtered
		FROM entries
		WHERE feed_id = (SELECT id FROM feeds WHERE name = ?)
	`, feedName).Scan(&total, &visible, &filtered)

	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get entry stats: %w", err)
	}

	return total, visible, filtered, nil
}

// UpdateEntryFilterStatus rewrites the filter verdict of a stored
// entry, used when a feed's rule set changes.
func (r *EntryRepository) UpdateEntryFilterStatus(entryID string, isFiltered bool, reason string, matchedRules []string) error {
	_, err := r.db.Exec(`
		UPDATE entries
		SET is_filtered = ?, filter_reason = ?, matched_rules = ?
		WHERE id = ?
	`, isFiltered, reason, marshalStringList(matchedRules), entryID)

	if err != nil {
		return fmt.Errorf("failed to update entry filter status: %w", err)
	}

	return nil
}

type EntryForExtraction struct {
	ID   string
	Link string
}

// GetEntriesForExtraction returns entries still awaiting full content
// extraction, oldest first, capped at three attempts.
func (r *EntryRepository) GetEntriesForExtraction(feedName string, limit int) ([]EntryForExtraction, error) {
	rows, err := r.db.Query(`
		SELECT id, link FROM entries
		WHERE feed_id = (SELECT id FROM feeds WHERE name = ?)
		  AND is_filtered = 0
		  AND link != ''
		  AND content_extraction_status IN ('', 'pending')
		  AND extraction_attempts < 3
		ORDER BY created_at ASC
		LIMIT ?
	`, feedName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries for extraction: %w", err)
	}
	defer rows.Close()

	var entries []EntryForExtraction
	for rows.Next() {
		var e EntryForExtraction
		if err := rows.Scan(&e.ID, &e.Link); err != nil {
			return nil, fmt.Errorf("failed to scan extraction row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating extraction rows: %w", err)
	}

	return entries, nil
}

// UpdateExtractedContent stores the extraction outcome, replacing the
// entry content on success.
func (r *EntryRepository) UpdateExtractedContent(entryID, content, status string, extractedAt *time.Time, errorMsg string) error {
	var err error
	if content != "" {
		_, err = r.db.Exec(`
			UPDATE entries
			SET content = ?, content_extraction_status = ?, content_extracted_at = ?,
			    content_extraction_error = ?, extraction_attempts = extraction_attempts + 1
			WHERE id = ?
		`, content, status, extractedAt, errorMsg, entryID)
	} else {
		_, err = r.db.Exec(`
			UPDATE entries
			SET content_extraction_status = ?, content_extracted_at = ?,
			    content_extraction_error = ?, extraction_attempts = extraction_attempts + 1
			WHERE id = ?
		`, status, extractedAt, errorMsg, entryID)
	}

	if err != nil {
		return fmt.Errorf("failed to update extraction status: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqliteConstraintUnique || se.Code() == sqliteConstraintPrimaryKey
	}
	return false
}

func marshalStringList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	data, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalStringList(data string) []string {
	if data == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}
