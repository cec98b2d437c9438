// Package source fetches RSS, Atom and JSON feeds and normalizes their entries
// into reader items.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/glabrego/newsreader/internal/reader"
)

const (
	DefaultUserAgent   = "StartPage/1.0"
	DefaultLimit       = 20
	MaxLimit           = 50
	maxDescription     = 2000
	maxFeedBodyBytes   = 10 << 20
	defaultHTTPTimeout = 30 * time.Second
)

type RSSFetcher struct {
	httpClient *http.Client
	userAgent  string
}

func NewRSSFetcher(httpClient *http.Client, userAgent string) *RSSFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	return &RSSFetcher{httpClient: httpClient, userAgent: userAgent}
}

// FetchFeed downloads url and returns at most limit items in feed order.
// Limits outside [1, MaxLimit] fall back to DefaultLimit or are capped.
func (f *RSSFetcher) FetchFeed(ctx context.Context, url string, limit int) ([]reader.Item, error) {
	limit = clampLimit(limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// gofeed.Parser keeps per-parse state, so each fetch gets its own.
	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	if feed == nil || len(feed.Items) == 0 {
		return []reader.Item{}, nil
	}

	n := min(limit, len(feed.Items))
	items := make([]reader.Item, 0, n)
	for _, it := range feed.Items[:n] {
		if it == nil {
			continue
		}
		items = append(items, toItem(it))
	}
	return items, nil
}

func clampLimit(limit int) int {
	if limit < 1 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

func toItem(it *gofeed.Item) reader.Item {
	published := strings.TrimSpace(it.Published)
	if published == "" {
		published = strings.TrimSpace(it.Updated)
	}
	var publishedAt time.Time
	switch {
	case it.PublishedParsed != nil:
		publishedAt = it.PublishedParsed.UTC()
	case it.UpdatedParsed != nil:
		publishedAt = it.UpdatedParsed.UTC()
	}
	description := it.Content
	if strings.TrimSpace(description) == "" {
		description = it.Description
	}
	return reader.Item{
		Title:       strings.TrimSpace(it.Title),
		Link:        strings.TrimSpace(it.Link),
		Published:   published,
		PublishedAt: publishedAt,
		Description: truncateRunes(description, maxDescription),
		Thumbnail:   thumbnail(it),
		Author:      author(it),
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// thumbnail prefers media:thumbnail, then media:content, then the item image
// and finally the first image enclosure.
func thumbnail(it *gofeed.Item) string {
	if media, ok := it.Extensions["media"]; ok {
		if url := firstURL(media["thumbnail"]); url != "" {
			return url
		}
		if url := firstURL(media["content"]); url != "" {
			return url
		}
		for _, group := range media["group"] {
			if url := firstURL(group.Children["thumbnail"]); url != "" {
				return url
			}
			if url := firstURL(group.Children["content"]); url != "" {
				return url
			}
		}
	}
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	for _, enc := range it.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

func firstURL(exts []ext.Extension) string {
	for _, e := range exts {
		if url := strings.TrimSpace(e.Attrs["url"]); url != "" {
			return url
		}
	}
	return ""
}

func author(it *gofeed.Item) string {
	for _, p := range it.Authors {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			return strings.TrimSpace(p.Name)
		}
	}
	if it.Author != nil {
		if name := strings.TrimSpace(it.Author.Name); name != "" {
			return name
		}
		return strings.TrimSpace(it.Author.Email)
	}
	if dc := it.DublinCoreExt; dc != nil && len(dc.Creator) > 0 {
		return strings.TrimSpace(dc.Creator[0])
	}
	return ""
}
