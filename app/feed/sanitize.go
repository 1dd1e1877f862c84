package feed

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stripHTML removes markup from a fragment and returns plain text.
// With preserveParagraphs, block-level boundaries become blank-line
// separators; otherwise all whitespace collapses to single spaces.
// Malformed markup never fails: the input is returned as-is on parse
// errors.
func stripHTML(s string, preserveParagraphs bool) string {
	if s == "" {
		return ""
	}

	if !strings.ContainsAny(s, "<&") {
		return collapseText(s, preserveParagraphs)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseText(s, preserveParagraphs)
	}

	doc.Find("script, style, noscript").Remove()

	// Block boundaries become newlines so adjacent elements never fuse;
	// collapseText then keeps them as paragraph breaks or folds them
	// into spaces depending on the mode.
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, blockquote, h1, h2, h3, h4, h5, h6, pre, tr").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n\n")
	})

	return collapseText(doc.Text(), preserveParagraphs)
}

// collapseText normalizes whitespace. With preserveParagraphs, runs of
// blank lines collapse to a single blank line; within a paragraph,
// whitespace collapses to single spaces.
func collapseText(s string, preserveParagraphs bool) string {
	if !preserveParagraphs {
		return strings.Join(strings.Fields(s), " ")
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}

	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			flush()
			continue
		}
		current = append(current, strings.Join(fields, " "))
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}

// ellipsis marks truncated fields so consumers can tell a short field
// from a cut one.
const ellipsis = "…"

// truncate cuts text to max characters, appending an ellipsis marker
// when anything was removed.
func truncate(s string, max int, field string) string {
	if max <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	slog.Debug("Field truncated", "field", field, "original_length", len(runes), "max_length", max)
	return string(runes[:max]) + ellipsis
}
