package reader

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

func (e *Engine) Scope() Scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scope
}

// SetScope switches the active scope and clears the selection. Unknown feed
// scopes are rejected.
func (e *Engine) SetScope(scope Scope) error {
	if scope == "" {
		scope = ScopeAll
	}
	e.mu.Lock()
	if id, ok := scope.FeedID(); ok && feedIndex(e.registry, id) < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownFeed, id)
	}
	e.scope = scope
	e.clearSelectionLocked()
	e.mu.Unlock()
	e.notify(Event{Kind: EventSelectionChanged})
	return nil
}

func (e *Engine) SearchQuery() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query
}

func (e *Engine) SetSearchQuery(query string) {
	e.mu.Lock()
	e.query = strings.TrimSpace(query)
	e.mu.Unlock()
}

func (e *Engine) Preferences() Preferences {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prefs
}

// SetSortOrder persists the order and re-sorts the collection.
func (e *Engine) SetSortOrder(ctx context.Context, order SortOrder) error {
	if !order.Valid() {
		return fmt.Errorf("%w: sort order %q", ErrInvalidInput, order)
	}
	e.mu.Lock()
	e.prefs.SortOrder = order
	e.saveSetting(ctx, keySortOrder, order)
	sorted := slices.Clone(e.articles)
	sortArticles(sorted, order)
	e.articles = sorted
	e.mu.Unlock()
	e.notify(Event{Kind: EventPreferencesChanged})
	return nil
}

func (e *Engine) SetGridView(ctx context.Context, grid bool) {
	e.mu.Lock()
	e.prefs.GridView = grid
	e.saveSetting(ctx, keyGridView, grid)
	e.mu.Unlock()
	e.notify(Event{Kind: EventPreferencesChanged})
}

// SetArticleLimit persists the per-feed limit and runs a full refresh with it.
// Limits above MaxArticleLimit are clamped.
func (e *Engine) SetArticleLimit(ctx context.Context, limit int) (RefreshReport, error) {
	if limit < 1 {
		return RefreshReport{}, fmt.Errorf("%w: article limit %d", ErrInvalidInput, limit)
	}
	limit = clampLimit(limit)
	e.mu.Lock()
	e.prefs.ArticleLimit = limit
	e.saveSetting(ctx, keyArticleLimit, limit)
	e.mu.Unlock()
	return e.refreshAll(ctx), nil
}

// SetAutoRefreshInterval persists the interval and replaces the running
// schedule. Zero disables auto refresh.
func (e *Engine) SetAutoRefreshInterval(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("%w: auto refresh interval %d", ErrInvalidInput, minutes)
	}
	e.mu.Lock()
	e.prefs.AutoRefreshMinutes = minutes
	e.saveSetting(ctx, keyAutoRefresh, minutes)
	e.mu.Unlock()
	e.scheduler.Configure(minutes)
	e.notify(Event{Kind: EventPreferencesChanged})
	return nil
}
