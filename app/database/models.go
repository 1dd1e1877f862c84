package database

import (
	"time"
)

type Feed struct {
	ID              string // Database UUID
	Name            string // Configuration feed identifier derived from filename
	FeedURL         string // RSS/Atom feed URL from configuration
	Link            string // Homepage URL from feed's <link> element
	Title           string
	Description     string
	ImageURL        string
	Language        string
	ETag            string // Conditional request validators from the last fetch
	LastModified    string
	ErrorCount      int    // Consecutive fetch failures; reset on success
	LastError       string // Message of the most recent fetch failure
	Enabled         bool
	LastFetchedAt   *time.Time
	NextFetchAt     *time.Time
	FeedPublishedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Entry struct {
	ID                 string
	FeedID             string
	GUID               string
	Link               string
	Title              string
	Author             string
	Summary            string
	Content            string
	PublishedAt        *time.Time
	UpdatedAt          *time.Time
	Tags               []string
	Language           string
	ReadingTimeSeconds int

	LinkHash    string
	TitleHash   string
	ContentHash string

	IsFiltered   bool
	FilterReason string
	MatchedRules []string

	EnclosureURL    string
	EnclosureLength int64
	EnclosureType   string

	ContentExtractedAt      *time.Time
	ContentExtractionStatus string // pending, success, failed, skipped
	ContentExtractionError  string
	ExtractionAttempts      int

	CreatedAt time.Time
}
