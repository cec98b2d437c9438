package reader

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// ListFeeds returns a snapshot of the registry in subscription order.
func (e *Engine) ListFeeds() []Feed {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.registry)
}

// Feed looks a registered feed up by id.
func (e *Engine) Feed(id string) (Feed, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := feedIndex(e.registry, id)
	if idx < 0 {
		return Feed{}, false
	}
	return e.registry[idx], true
}

// AddFeed registers a feed, persists the registry and fetches just that feed
// into the existing collection. Name and url are trimmed; duplicate urls are
// compared as exact strings.
func (e *Engine) AddFeed(ctx context.Context, name, url string) (Feed, error) {
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if name == "" || url == "" {
		return Feed{}, fmt.Errorf("%w: feed name and url are required", ErrInvalidInput)
	}

	e.mu.Lock()
	for _, f := range e.registry {
		if f.URL == url {
			e.mu.Unlock()
			return Feed{}, fmt.Errorf("%w: %s", ErrDuplicateFeed, url)
		}
	}
	feed := Feed{ID: e.uniqueID(), Name: name, URL: url}
	e.registry = append(slices.Clone(e.registry), feed)
	e.saveSetting(ctx, keyFeeds, e.registry)
	e.mu.Unlock()

	e.logger.Info("feed added", "feed", feed.Name, "url", feed.URL)
	e.notify(Event{Kind: EventFeedsChanged})

	e.RefreshOne(ctx, feed)
	return feed, nil
}

// RemoveFeed drops a feed and every article it contributed. If the feed was
// the active scope the scope falls back to all.
func (e *Engine) RemoveFeed(ctx context.Context, id string) error {
	e.mu.Lock()
	idx := feedIndex(e.registry, id)
	if idx < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownFeed, id)
	}
	removed := e.registry[idx]
	e.registry = slices.Delete(slices.Clone(e.registry), idx, idx+1)
	e.saveSetting(ctx, keyFeeds, e.registry)
	e.articles = withoutFeed(e.articles, id)
	if e.scope == FeedScope(id) {
		e.scope = ScopeAll
		e.clearSelectionLocked()
	}
	e.mu.Unlock()

	e.logger.Info("feed removed", "feed", removed.Name)
	e.notify(Event{Kind: EventFeedsChanged})
	return nil
}

// uniqueID must be called with e.mu held.
func (e *Engine) uniqueID() string {
	for {
		id := e.newID()
		if id == "" || id == string(ScopeAll) || id == string(ScopeSaved) {
			continue
		}
		if feedIndex(e.registry, id) < 0 {
			return id
		}
	}
}

func feedIndex(feeds []Feed, id string) int {
	return slices.IndexFunc(feeds, func(f Feed) bool { return f.ID == id })
}

func withoutFeed(articles []Article, feedID string) []Article {
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if a.FeedID != feedID {
			out = append(out, a)
		}
	}
	return out
}
