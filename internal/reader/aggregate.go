package reader

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glabrego/newsreader/internal/sanitize"
)

const noTitle = "(no title)"

// RefreshAll fetches every registered feed concurrently and replaces the
// article collection once all fetches have finished. A failing feed
// contributes no articles and is reported in RefreshReport.Failures; the
// refresh as a whole never fails. Calls that overlap an in-flight refresh
// share its result.
func (e *Engine) RefreshAll(ctx context.Context) RefreshReport {
	v, _, _ := e.refreshGroup.Do("all", func() (any, error) {
		return e.refreshAll(ctx), nil
	})
	return v.(RefreshReport)
}

func (e *Engine) refreshAll(ctx context.Context) RefreshReport {
	start := time.Now()
	e.mu.Lock()
	feeds := slices.Clone(e.registry)
	limit := e.prefs.ArticleLimit
	e.mu.Unlock()

	results := make([][]Article, len(feeds))
	var (
		mu       sync.Mutex
		failures = make(map[string]error)
		g        errgroup.Group
	)
	g.SetLimit(e.maxConcurrent)
	for i, feed := range feeds {
		g.Go(func() error {
			articles, err := e.fetchFeed(ctx, feed, limit)
			if err != nil {
				mu.Lock()
				failures[feed.ID] = err
				mu.Unlock()
			}
			results[i] = articles
			return nil
		})
	}
	_ = g.Wait()

	// A cancelled refresh only saw ctx errors; keep the prior collection.
	if err := ctx.Err(); err != nil {
		report := RefreshReport{Feeds: len(feeds), Failures: failures, Duration: time.Since(start)}
		e.logger.Warn("refresh cancelled", "feeds", report.Feeds, "err", err)
		return report
	}

	merged := slices.Concat(results...)

	e.mu.Lock()
	merged = registeredOnly(merged, e.registry)
	sortArticles(merged, e.prefs.SortOrder)
	e.articles = merged
	e.mu.Unlock()

	report := RefreshReport{
		Feeds:    len(feeds),
		Articles: len(merged),
		Failures: failures,
		Duration: time.Since(start),
	}
	e.logger.Info("refresh finished", "feeds", report.Feeds, "articles", report.Articles, "failures", len(failures), "took", report.Duration)
	e.notify(Event{Kind: EventRefreshed, Report: &report})
	return report
}

// RefreshOne fetches a single feed and merges its articles into the current
// collection, replacing whatever that feed contributed before.
func (e *Engine) RefreshOne(ctx context.Context, feed Feed) []Article {
	e.mu.Lock()
	limit := e.prefs.ArticleLimit
	e.mu.Unlock()

	fetched, err := e.fetchFeed(ctx, feed, limit)

	e.mu.Lock()
	if feedIndex(e.registry, feed.ID) < 0 {
		e.mu.Unlock()
		return nil
	}
	merged := append(withoutFeed(e.articles, feed.ID), fetched...)
	sortArticles(merged, e.prefs.SortOrder)
	e.articles = merged
	e.mu.Unlock()

	report := RefreshReport{Feeds: 1, Articles: len(fetched)}
	if err != nil {
		report.Failures = map[string]error{feed.ID: err}
	}
	e.notify(Event{Kind: EventRefreshed, Report: &report})
	return fetched
}

// fetchFeed never lets an error escape as anything but a FeedFetchError; the
// caller treats it as an empty result.
func (e *Engine) fetchFeed(ctx context.Context, feed Feed, limit int) ([]Article, error) {
	if e.feeds == nil {
		return nil, &FeedFetchError{FeedID: feed.ID, FeedName: feed.Name, Err: errors.New("no feed fetcher configured")}
	}
	ctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	items, err := e.feeds.FetchFeed(ctx, feed.URL, limit)
	if err != nil {
		ferr := &FeedFetchError{FeedID: feed.ID, FeedName: feed.Name, Err: err}
		e.logger.Warn("feed fetch failed", "feed", feed.Name, "url", feed.URL, "err", err)
		return nil, ferr
	}
	return articlesFromItems(feed, items), nil
}

// articlesFromItems keeps fetch order and drops repeated links within the one
// feed. Articles without a link are all kept.
func articlesFromItems(feed Feed, items []Item) []Article {
	out := make([]Article, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Link != "" {
			if _, dup := seen[item.Link]; dup {
				continue
			}
			seen[item.Link] = struct{}{}
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = noTitle
		}
		out = append(out, Article{
			FeedID:      feed.ID,
			FeedName:    feed.Name,
			Title:       title,
			Link:        item.Link,
			Published:   item.Published,
			ParsedDate:  itemDate(item),
			Description: item.Description,
			Thumbnail:   item.Thumbnail,
			Author:      item.Author,
		})
	}
	return out
}

func itemDate(item Item) time.Time {
	if !item.PublishedAt.IsZero() {
		return item.PublishedAt.UTC()
	}
	return ParseDate(item.Published)
}

func registeredOnly(articles []Article, feeds []Feed) []Article {
	ids := make(map[string]struct{}, len(feeds))
	for _, f := range feeds {
		ids[f.ID] = struct{}{}
	}
	out := articles[:0]
	for _, a := range articles {
		if _, ok := ids[a.FeedID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// sortArticles orders by ParsedDate; ties keep merge order.
func sortArticles(articles []Article, order SortOrder) {
	slices.SortStableFunc(articles, func(a, b Article) int {
		if order == SortOldest {
			return a.ParsedDate.Compare(b.ParsedDate)
		}
		return b.ParsedDate.Compare(a.ParsedDate)
	})
}

// Articles returns the whole collection in its current order.
func (e *Engine) Articles() []Article {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.articles)
}

// FilteredView yields the articles in scope whose title, feed name or
// markup-free description contains query, case-insensitively. It works on a
// snapshot taken at call time.
func (e *Engine) FilteredView(scope Scope, query string) iter.Seq[Article] {
	e.mu.Lock()
	articles := e.articles
	var saved map[string]struct{}
	if scope == ScopeSaved {
		saved = make(map[string]struct{}, len(e.savedSet))
		for link := range e.savedSet {
			saved[link] = struct{}{}
		}
	}
	e.mu.Unlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	return func(yield func(Article) bool) {
		for _, a := range articles {
			if !inScope(a, scope, saved) || !matchesQuery(a, needle) {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

// View is FilteredView over the engine's own scope and search query.
func (e *Engine) View() []Article {
	e.mu.Lock()
	scope, query := e.scope, e.query
	e.mu.Unlock()
	return slices.Collect(e.FilteredView(scope, query))
}

func inScope(a Article, scope Scope, saved map[string]struct{}) bool {
	switch scope {
	case ScopeAll, "":
		return true
	case ScopeSaved:
		_, ok := saved[a.Link]
		return ok
	default:
		return a.FeedID == string(scope)
	}
}

func matchesQuery(a Article, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(a.Title), needle) ||
		strings.Contains(strings.ToLower(a.FeedName), needle) {
		return true
	}
	if a.Description == "" {
		return false
	}
	return strings.Contains(strings.ToLower(sanitize.Text(a.Description)), needle)
}

// Counts reports article totals for the all and saved scopes and per feed.
// The saved count only includes saved articles present in the collection.
func (e *Engine) Counts() Counts {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := Counts{All: len(e.articles), PerFeed: make(map[string]int, len(e.registry))}
	for _, f := range e.registry {
		c.PerFeed[f.ID] = 0
	}
	for _, a := range e.articles {
		if _, ok := e.savedSet[a.Link]; ok {
			c.Saved++
		}
		if _, ok := c.PerFeed[a.FeedID]; ok {
			c.PerFeed[a.FeedID]++
		}
	}
	return c
}

func (e *Engine) Count(scope Scope) int {
	c := e.Counts()
	switch scope {
	case ScopeAll, "":
		return c.All
	case ScopeSaved:
		return c.Saved
	default:
		return c.PerFeed[string(scope)]
	}
}
