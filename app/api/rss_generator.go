package api

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"feedsift/app/database"
)

type GeneratorOpts struct {
	BaseURL string
	Port    string
	Version string
}

// Generator renders a feed and its visible entries as RSS 2.0.
type Generator struct {
	opts GeneratorOpts
}

func NewGenerator(opts GeneratorOpts) *Generator {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Generator{opts: opts}
}

func (g *Generator) Run(feed database.Feed, entries []database.Entry) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", cmp.Or(feed.Title, feed.Name), 4)
	g.writeElement(&buf, "link", cmp.Or(feed.Link, feed.FeedURL), 4)
	description := feed.Description
	if description == "" {
		description = fmt.Sprintf("Processed feed from %s", feed.FeedURL)
	}
	g.writeElement(&buf, "description", description, 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(g.selfLink(feed.Name))))

	if feed.FeedPublishedAt != nil {
		g.writeElement(&buf, "pubDate", feed.FeedPublishedAt.Format(time.RFC1123Z), 4)
	}

	lastBuildDate := time.Now().UTC()
	if len(entries) > 0 {
		if entries[0].PublishedAt != nil {
			lastBuildDate = *entries[0].PublishedAt
		} else {
			lastBuildDate = entries[0].CreatedAt
		}
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("feedsift/%s", g.opts.Version), 4)
	if feed.Language != "" {
		g.writeElement(&buf, "language", feed.Language, 4)
	}

	if feed.ImageURL != "" {
		buf.WriteString("    <image>\n")
		g.writeElement(&buf, "url", feed.ImageURL, 6)
		g.writeElement(&buf, "title", cmp.Or(feed.Title, feed.Name), 6)
		g.writeElement(&buf, "link", cmp.Or(feed.Link, feed.FeedURL), 6)
		buf.WriteString("    </image>\n")
	}

	for _, entry := range entries {
		g.writeEntry(&buf, entry)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) selfLink(feedName string) string {
	if g.opts.BaseURL != "" {
		return fmt.Sprintf("%s/feeds/%s", strings.TrimSuffix(g.opts.BaseURL, "/"), feedName)
	}
	return fmt.Sprintf("http://localhost:%s/feeds/%s", g.opts.Port, feedName)
}

func (g *Generator) writeEntry(buf *bytes.Buffer, entry database.Entry) {
	buf.WriteString("    <item>\n")

	if entry.GUID != "" {
		buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(entry.GUID)))
		xml.EscapeText(buf, []byte(entry.GUID))
		buf.WriteString("</guid>\n")
	}

	if entry.Title != "" {
		g.writeElement(buf, "title", entry.Title, 6)
	}

	if entry.Link != "" {
		g.writeElement(buf, "link", entry.Link, 6)
	}

	g.writeElement(buf, "description", cmp.Or(entry.Summary, "No description available"), 6)

	if entry.Content != "" && entry.Content != entry.Summary {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(entry.Content)
		buf.WriteString("]]></content:encoded>\n")
	}

	if entry.PublishedAt != nil {
		g.writeElement(buf, "pubDate", entry.PublishedAt.Format(time.RFC1123Z), 6)
	}

	if entry.Author != "" {
		g.writeElement(buf, "author", entry.Author, 6)
	}

	for _, tag := range entry.Tags {
		if tag != "" {
			g.writeElement(buf, "category", tag, 6)
		}
	}

	// RSS 2.0 requires url, length and type on enclosures
	if entry.EnclosureURL != "" && entry.EnclosureType != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"%d\" type=\"%s\" />\n",
			html.EscapeString(entry.EnclosureURL),
			entry.EnclosureLength,
			html.EscapeString(entry.EnclosureType)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")

	xml.EscapeText(buf, []byte(content))

	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
