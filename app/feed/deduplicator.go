package feed

import (
	"sync/atomic"

	"feedsift/app/hash"
)

// StoredEntry is the minimal view of a persisted entry the
// deduplicator needs for hash lookups.
type StoredEntry struct {
	ID     string
	FeedID string
	Title  string
	Link   string
}

// EntryLookup is the storage collaborator for duplicate checks. A nil
// result with nil error means no match. The feed-list variants accept
// nil to search globally.
type EntryLookup interface {
	FindEntryByLinkHash(linkHash, feedID string) (*StoredEntry, error)
	FindEntryByTitleHash(titleHash, feedID string) (*StoredEntry, error)
	FindEntryByContentHash(contentHash, feedID string) (*StoredEntry, error)
	FindEntryByLinkHashInFeeds(linkHash string, feedIDs []string) (*StoredEntry, error)
	FindEntryByTitleHashInFeeds(titleHash string, feedIDs []string) (*StoredEntry, error)
	FindEntryByContentHashInFeeds(contentHash string, feedIDs []string) (*StoredEntry, error)
	GetRecentTitles(feedID string, limit int) ([]StoredEntry, error)
}

type DedupOpts struct {
	Strategy                 Strategy
	TitleAlgorithm           hash.Algorithm
	ContentAlgorithm         hash.Algorithm
	DisableLinkCheck         bool
	DisableTitleCheck        bool
	DisableContentCheck      bool
	TitleSimilarityThreshold float64 // 0 disables the near-title check
}

// DedupStats is a snapshot of the engine's running counters.
type DedupStats struct {
	Checks          int64
	DuplicatesFound int64
	LinkMatches     int64
	TitleMatches    int64
	ContentMatches  int64
}

// recentTitleWindow bounds how many stored titles the near-duplicate
// sketch comparison scans per check.
const recentTitleWindow = 50

// Deduplicator decides whether a candidate entry duplicates an already
// stored one. The engine itself never fails for business reasons: a
// detached engine (nil lookup) fails open, missing fields degrade to
// empty hashes that simply never match. Only storage errors propagate.
type Deduplicator struct {
	lookup EntryLookup
	opts   DedupOpts

	checks          atomic.Int64
	duplicatesFound atomic.Int64
	linkMatches     atomic.Int64
	titleMatches    atomic.Int64
	contentMatches  atomic.Int64
}

// NewDeduplicator creates an engine against the given lookup. A nil
// lookup yields a detached engine that reports every candidate as
// non-duplicate.
func NewDeduplicator(lookup EntryLookup, opts DedupOpts) *Deduplicator {
	if _, ok := ParseStrategy(string(opts.Strategy)); !ok {
		opts.Strategy = StrategyMedium
	}
	if opts.TitleAlgorithm == "" {
		opts.TitleAlgorithm = hash.AlgorithmMD5
	}
	if opts.ContentAlgorithm == "" {
		opts.ContentAlgorithm = hash.AlgorithmSHA256
	}

	return &Deduplicator{
		lookup: lookup,
		opts:   opts,
	}
}

func (d *Deduplicator) Strategy() Strategy {
	return d.opts.Strategy
}

// ComputeHashes derives the candidate's fingerprints. The content hash
// prefers the content field and falls back to the summary; it is empty
// only when both are absent.
func (d *Deduplicator) ComputeHashes(entry Entry) Fingerprint {
	fp := Fingerprint{
		LinkHash:  hash.Link(entry.Link),
		TitleHash: hash.Text(d.opts.TitleAlgorithm, entry.Title),
	}

	if entry.Content != "" {
		fp.ContentHash = hash.ContentWith(d.opts.ContentAlgorithm, entry.Content)
	} else if entry.Summary != "" {
		fp.ContentHash = hash.ContentWith(d.opts.ContentAlgorithm, entry.Summary)
	}

	return fp
}

// CheckDuplicate decides whether the candidate duplicates an entry
// already stored for the same feed. The link hash is authoritative and
// checked first regardless of strategy; title and content lookups
// follow the strategy table.
func (d *Deduplicator) CheckDuplicate(entry Entry, feedID string) (DedupResult, error) {
	d.checks.Add(1)

	if d.lookup == nil {
		return DedupResult{IsDuplicate: false, Reason: "No database session"}, nil
	}

	result, err := d.check(entry, lookupScope{
		byLink:    func(h string) (*StoredEntry, error) { return d.lookup.FindEntryByLinkHash(h, feedID) },
		byTitle:   func(h string) (*StoredEntry, error) { return d.lookup.FindEntryByTitleHash(h, feedID) },
		byContent: func(h string) (*StoredEntry, error) { return d.lookup.FindEntryByContentHash(h, feedID) },
	})
	if err != nil || result.IsDuplicate {
		return result, err
	}

	return d.checkSimilarTitle(entry, feedID)
}

// CheckDuplicateAcrossFeeds repeats the hash lookups without the
// same-feed restriction. feedIDs nil searches globally; a non-nil list
// restricts the search to those feeds. Reasons carry an "across feeds"
// suffix so intra-feed and cross-feed collisions stay distinguishable
// in logs.
func (d *Deduplicator) CheckDuplicateAcrossFeeds(entry Entry, feedIDs []string) (DedupResult, error) {
	d.checks.Add(1)

	if d.lookup == nil {
		return DedupResult{IsDuplicate: false, Reason: "No database session"}, nil
	}

	return d.check(entry, lookupScope{
		byLink:    func(h string) (*StoredEntry, error) { return d.lookup.FindEntryByLinkHashInFeeds(h, feedIDs) },
		byTitle:   func(h string) (*StoredEntry, error) { return d.lookup.FindEntryByTitleHashInFeeds(h, feedIDs) },
		byContent: func(h string) (*StoredEntry, error) { return d.lookup.FindEntryByContentHashInFeeds(h, feedIDs) },
		suffix:    " across feeds",
	})
}

// Stats returns a snapshot of the running counters.
func (d *Deduplicator) Stats() DedupStats {
	return DedupStats{
		Checks:          d.checks.Load(),
		DuplicatesFound: d.duplicatesFound.Load(),
		LinkMatches:     d.linkMatches.Load(),
		TitleMatches:    d.titleMatches.Load(),
		ContentMatches:  d.contentMatches.Load(),
	}
}

type lookupScope struct {
	byLink    func(string) (*StoredEntry, error)
	byTitle   func(string) (*StoredEntry, error)
	byContent func(string) (*StoredEntry, error)
	suffix    string
}

func (d *Deduplicator) check(entry Entry, scope lookupScope) (DedupResult, error) {
	fp := d.ComputeHashes(entry)

	if !d.opts.DisableLinkCheck && fp.LinkHash != "" {
		existing, err := scope.byLink(fp.LinkHash)
		if err != nil {
			return DedupResult{}, err
		}
		if existing != nil {
			return d.duplicate(&d.linkMatches, "Duplicate link"+scope.suffix, existing), nil
		}
	}

	var titleMatch *StoredEntry
	if !d.opts.DisableTitleCheck && fp.TitleHash != "" {
		existing, err := scope.byTitle(fp.TitleHash)
		if err != nil {
			return DedupResult{}, err
		}
		titleMatch = existing

		// Under strict, a title match alone is not sufficient; the
		// content lookup below must corroborate it.
		if titleMatch != nil && d.opts.Strategy != StrategyStrict {
			return d.duplicate(&d.titleMatches, "Duplicate title"+scope.suffix, titleMatch), nil
		}
	}

	// Relaxed ignores content entirely.
	if d.opts.Strategy != StrategyRelaxed && !d.opts.DisableContentCheck && fp.ContentHash != "" {
		contentMatch, err := scope.byContent(fp.ContentHash)
		if err != nil {
			return DedupResult{}, err
		}

		if contentMatch != nil {
			switch d.opts.Strategy {
			case StrategyStrict:
				// Both fingerprints must point at the same stored
				// entry; title matching entry A while content matches
				// entry B is not a duplicate.
				if titleMatch != nil && titleMatch.ID == contentMatch.ID {
					return d.duplicate(&d.contentMatches, "Duplicate title and content"+scope.suffix, contentMatch), nil
				}
			case StrategyMedium:
				return d.duplicate(&d.contentMatches, "Duplicate content"+scope.suffix, contentMatch), nil
			}
		}
	}

	return DedupResult{IsDuplicate: false, Reason: "No duplicate"}, nil
}

// checkSimilarTitle compares title sketches against recently stored
// titles when the exact hash missed. Only active with a configured
// threshold, and never under strict.
func (d *Deduplicator) checkSimilarTitle(entry Entry, feedID string) (DedupResult, error) {
	if d.opts.TitleSimilarityThreshold <= 0 || d.opts.DisableTitleCheck ||
		d.opts.Strategy == StrategyStrict || entry.Title == "" {
		return DedupResult{IsDuplicate: false, Reason: "No duplicate"}, nil
	}

	recent, err := d.lookup.GetRecentTitles(feedID, recentTitleWindow)
	if err != nil {
		return DedupResult{}, err
	}

	sketch := hash.Sketch(entry.Title)
	for i := range recent {
		if hash.Similarity(sketch, hash.Sketch(recent[i].Title)) >= d.opts.TitleSimilarityThreshold {
			return d.duplicate(&d.titleMatches, "Similar title", &recent[i]), nil
		}
	}

	return DedupResult{IsDuplicate: false, Reason: "No duplicate"}, nil
}

func (d *Deduplicator) duplicate(counter *atomic.Int64, reason string, existing *StoredEntry) DedupResult {
	d.duplicatesFound.Add(1)
	counter.Add(1)

	return DedupResult{
		IsDuplicate: true,
		Reason:      reason,
		ExistingID:  existing.ID,
	}
}
