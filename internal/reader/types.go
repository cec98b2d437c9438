package reader

import (
	"context"
	"time"
)

// Feed is a subscribed source. Identity is ID; URL is unique within a registry.
type Feed struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Item is a normalized record as returned by a FeedFetcher.
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Published   string `json:"published"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Author      string `json:"author,omitempty"`

	// PublishedAt is the fetcher's parsed form of Published. When zero the
	// engine parses Published itself.
	PublishedAt time.Time `json:"-"`
}

// Article is one story attributed to the feed that produced it. Articles are
// replaced wholesale on refresh and never mutated in place.
type Article struct {
	FeedID      string
	FeedName    string
	Title       string
	Link        string
	Published   string
	ParsedDate  time.Time
	Description string
	Thumbnail   string
	Author      string
}

// Detail is the enriched content returned by a DetailFetcher.
type Detail struct {
	Text     string   `json:"text,omitempty"`
	HTML     string   `json:"html,omitempty"`
	TopImage string   `json:"top_image,omitempty"`
	Authors  []string `json:"authors,omitempty"`
}

type FeedFetcher interface {
	FetchFeed(ctx context.Context, url string, limit int) ([]Item, error)
}

type DetailFetcher interface {
	FetchDetail(ctx context.Context, url string) (Detail, error)
}

// SettingsStore is a durable key/value store holding JSON documents.
type SettingsStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Scope selects which part of the article collection a view shows: every
// article, saved articles, or one feed (by feed id).
type Scope string

const (
	ScopeAll   Scope = "all"
	ScopeSaved Scope = "saved"
)

func FeedScope(feedID string) Scope {
	return Scope(feedID)
}

// FeedID returns the feed id for a per-feed scope.
func (s Scope) FeedID() (string, bool) {
	if s == ScopeAll || s == ScopeSaved || s == "" {
		return "", false
	}
	return string(s), true
}

type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

func (o SortOrder) Valid() bool {
	return o == SortNewest || o == SortOldest
}

// Preferences are the durable view settings.
type Preferences struct {
	SortOrder          SortOrder
	GridView           bool
	ArticleLimit       int
	AutoRefreshMinutes int
}

type Counts struct {
	All     int
	Saved   int
	PerFeed map[string]int
}

type ReadingStatus int

const (
	// StatusPreview means the RSS preview is shown and the detail fetch is pending.
	StatusPreview ReadingStatus = iota
	// StatusLoaded means fetched content replaced the preview.
	StatusLoaded
	// StatusPreviewOnly means the detail fetch failed and the preview stays.
	StatusPreviewOnly
	// StatusUnavailable means the detail fetch failed and there was no preview.
	StatusUnavailable
)

func (s ReadingStatus) String() string {
	switch s {
	case StatusPreview:
		return "preview"
	case StatusLoaded:
		return "loaded"
	case StatusPreviewOnly:
		return "preview-only"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Reading is what the reading pane shows for the selected article. Body is
// sanitized HTML.
type Reading struct {
	Article    Article
	Generation uint64
	Status     ReadingStatus
	HeroImage  string
	Authors    []string
	Body       string
	SourceLink string
}

func (r Reading) Loading() bool {
	return r.Status == StatusPreview
}

// DetailRequest identifies a detail fetch for one selection generation.
type DetailRequest struct {
	Generation uint64
	Link       string
}

type DetailResult struct {
	Generation uint64
	Link       string
	Detail     Detail
	Err        error
}

// RefreshReport summarizes a refresh. Failures is keyed by feed id.
type RefreshReport struct {
	Feeds    int
	Articles int
	Failures map[string]error
	Duration time.Duration
}

type EventKind int

const (
	EventRefreshed EventKind = iota
	EventFeedsChanged
	EventSelectionChanged
	EventDetailLoaded
	EventSavedChanged
	EventPreferencesChanged
)

type Event struct {
	Kind   EventKind
	Report *RefreshReport
}
