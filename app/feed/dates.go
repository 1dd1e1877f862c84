package feed

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// dateLayouts are tried in order after the lenient parser gives up.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02 Jan 2006",
	"January 2, 2006",
	"20060102",
}

// trailingTimezone matches a dangling timezone token such as " GMT",
// " +0300" or " (Europe/Moscow)" that defeats the layout list.
var trailingTimezone = regexp.MustCompile(`\s+(?:[A-Z]{2,5}|[+-]\d{2}:?\d{2}|\([^)]*\))$`)

// parseDate runs the date cascade: lenient parse first, then explicit
// layouts, then one more layout pass with any trailing timezone token
// stripped. Exhaustion yields nil; dates are never invented.
func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if parsed, err := dateparse.ParseAny(value); err == nil {
		utc := parsed.UTC()
		return &utc
	}

	if parsed := parseDateLayouts(value); parsed != nil {
		return parsed
	}

	if stripped := trailingTimezone.ReplaceAllString(value, ""); stripped != value {
		if parsed := parseDateLayouts(stripped); parsed != nil {
			return parsed
		}
	}

	slog.Warn("Unparseable date, leaving entry undated", "value", value)
	return nil
}

func parseDateLayouts(value string) *time.Time {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}
