package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
)

const (
	maxTitleLength   = 500
	maxSummaryLength = 1000

	defaultMaxContentLength = 100000

	// Reading speed assumed for the reading time estimate.
	wordsPerMinute = 200

	// Entries with any content at all read for at least this long.
	minReadingSeconds = 10
)

// allowedLinkSchemes restricts entry links; anything else normalizes
// to empty.
var allowedLinkSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
}

// authorPrefixes are stripped from the front of author names,
// case-insensitively.
var authorPrefixes = []string{"posted by ", "by "}

type ParserOpts struct {
	MaxContentLength   int
	KeepHTML           bool
	PreserveParagraphs bool
}

// Parser normalizes raw feed documents into canonical entries.
type Parser struct {
	gofeedParser *gofeed.Parser
	opts         ParserOpts
}

func NewParser(opts ParserOpts) *Parser {
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = defaultMaxContentLength
	}

	return &Parser{
		gofeedParser: gofeed.NewParser(),
		opts:         opts,
	}
}

// Run parses feed bytes and returns feed metadata plus canonical
// entries in document order.
func (p *Parser) Run(data []byte) (*Metadata, []Entry, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
	}

	if parsed.Image != nil {
		metadata.ImageURL = parsed.Image.URL
	}
	if parsed.PublishedParsed != nil {
		metadata.FeedPublishedAt = parsed.PublishedParsed
	}
	if parsed.UpdatedParsed != nil {
		metadata.FeedUpdatedAt = parsed.UpdatedParsed
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		raw := rawFromItem(item, parsed.Language)
		entries = append(entries, p.ParseEntry(raw))
	}

	return metadata, entries, nil
}

// rawFromItem flattens a gofeed item into the untyped field bag the
// normalizer consumes.
func rawFromItem(item *gofeed.Item, feedLanguage string) RawEntry {
	raw := RawEntry{
		GUID:            item.GUID,
		Title:           item.Title,
		Link:            item.Link,
		Summary:         item.Description,
		Content:         item.Content,
		Published:       item.Published,
		PublishedParsed: item.PublishedParsed,
		Updated:         item.Updated,
		UpdatedParsed:   item.UpdatedParsed,
		Categories:      item.Categories,
		Language:        feedLanguage,
	}

	if len(item.Authors) > 0 && item.Authors[0] != nil {
		raw.AuthorName = item.Authors[0].Name
		raw.AuthorEmail = item.Authors[0].Email
	} else if item.Author != nil {
		raw.AuthorName = item.Author.Name
		raw.AuthorEmail = item.Author.Email
	}

	// First enclosure only (RSS 2.0 allows one per item)
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		enclosure := item.Enclosures[0]
		raw.EnclosureURL = enclosure.URL
		raw.EnclosureType = enclosure.Type
		if enclosure.Length != "" {
			if length, err := strconv.ParseInt(enclosure.Length, 10, 64); err == nil {
				raw.EnclosureLength = length
			}
		}
	}

	return raw
}

// ParseEntry normalizes one raw entry into its canonical form. It
// never fails: malformed fields degrade to their zero value.
func (p *Parser) ParseEntry(raw RawEntry) Entry {
	entry := Entry{
		Title:   p.normalizeTitle(raw.Title),
		Link:    p.normalizeLink(raw.Link),
		Author:  p.normalizeAuthor(raw.AuthorName, raw.AuthorEmail),
		Summary: p.normalizeSummary(raw.Summary),
		Content: p.normalizeContent(raw.Content),
		Tags:    normalizeTags(raw.Tags, raw.Categories),

		EnclosureURL:    raw.EnclosureURL,
		EnclosureLength: raw.EnclosureLength,
		EnclosureType:   raw.EnclosureType,
	}

	entry.GUID = cmp.Or(raw.GUID, entry.Link)

	if raw.PublishedParsed != nil {
		utc := raw.PublishedParsed.UTC()
		entry.PublishedAt = &utc
	} else {
		entry.PublishedAt = parseDate(raw.Published)
	}

	if raw.UpdatedParsed != nil {
		utc := raw.UpdatedParsed.UTC()
		entry.UpdatedAt = &utc
	} else {
		entry.UpdatedAt = parseDate(raw.Updated)
	}

	entry.Language = detectLanguage(raw.Language, cmp.Or(entry.Summary, entry.Content))
	entry.ReadingTimeSeconds = readingTime(cmp.Or(entry.Content, entry.Summary))

	return entry
}

func (p *Parser) normalizeTitle(title string) string {
	title = collapseText(html.UnescapeString(title), false)
	return truncate(title, maxTitleLength, "title")
}

func (p *Parser) normalizeLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}

	u, err := url.Parse(link)
	if err != nil || !allowedLinkSchemes[strings.ToLower(u.Scheme)] {
		slog.Warn("Dropping entry link with unsupported scheme", "link", link)
		return ""
	}

	return link
}

func (p *Parser) normalizeAuthor(name, email string) string {
	author := strings.TrimSpace(html.UnescapeString(cmp.Or(name, email)))

	for _, prefix := range authorPrefixes {
		if len(author) > len(prefix) && strings.EqualFold(author[:len(prefix)], prefix) {
			author = strings.TrimSpace(author[len(prefix):])
			break
		}
	}

	return author
}

func (p *Parser) normalizeSummary(summary string) string {
	summary = stripHTML(summary, true)
	return truncate(summary, maxSummaryLength, "summary")
}

func (p *Parser) normalizeContent(content string) string {
	if p.opts.KeepHTML {
		content = strings.TrimSpace(content)
	} else {
		content = stripHTML(content, p.opts.PreserveParagraphs)
	}
	return truncate(content, p.opts.MaxContentLength, "content")
}

// NormalizeExtracted cleans article content recovered from an entry's
// web page, applying the same HTML handling as regular entry content.
func (p *Parser) NormalizeExtracted(content string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = p.opts.MaxContentLength
	}

	if p.opts.KeepHTML {
		content = strings.TrimSpace(content)
	} else {
		content = stripHTML(content, p.opts.PreserveParagraphs)
	}
	return truncate(content, maxLength, "extracted content")
}

// normalizeTags prefers an explicit tags field over categories. Tags
// are lower-cased, trimmed and de-duplicated preserving first-seen
// order; an empty result is nil, not an empty slice.
func normalizeTags(tags, categories []string) []string {
	source := tags
	if len(source) == 0 {
		source = categories
	}
	if len(source) == 0 {
		return nil
	}

	// A single comma-separated value is treated as a tag list
	if len(source) == 1 && strings.Contains(source[0], ",") {
		source = strings.Split(source[0], ",")
	}

	seen := make(map[string]bool, len(source))
	var out []string
	for _, tag := range source {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}

	return out
}

// readingTime estimates seconds to read, floor-clamped so even short
// entries register.
func readingTime(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}

	seconds := words * 60 / wordsPerMinute
	if seconds < minReadingSeconds {
		return minReadingSeconds
	}
	return seconds
}
