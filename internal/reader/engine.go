// Package reader is the feed aggregation and reading-state engine behind the
// news reader. One Engine owns all state for a session: the feed registry, the
// merged article collection, the read/saved sets, view filters and the
// selected article.
package reader

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultArticleLimit       = 20
	MaxArticleLimit           = 50
	DefaultAutoRefreshMinutes = 5
	DefaultFetchTimeout       = 15 * time.Second
	DefaultMaxConcurrent      = 8

	readSetLimit  = 500
	readSetRetain = 300
)

// Setting keys, prefixed with settingPrefix in the store.
const (
	settingPrefix       = "nr_"
	keyFeeds            = "feeds"
	keySaved            = "saved"
	keyRead             = "read"
	keyGridView         = "gridView"
	keySortOrder        = "sortOrder"
	keyAutoRefresh      = "autoRefresh"
	keyArticleLimit     = "articleLimit"
	settingWriteTimeout = 5 * time.Second
)

// DefaultFeeds bootstraps a registry with no persisted feed list.
var DefaultFeeds = []Feed{
	{ID: "hn", Name: "Hacker News", URL: "https://hnrss.org/frontpage"},
	{ID: "bbc", Name: "BBC World", URL: "https://feeds.bbci.co.uk/news/world/rss.xml"},
}

type Engine struct {
	feeds   FeedFetcher
	details DetailFetcher
	store   SettingsStore
	logger  *log.Logger

	fetchTimeout  time.Duration
	maxConcurrent int
	newID         func() string
	refreshUnit   time.Duration

	refreshGroup singleflight.Group
	scheduler    *Scheduler

	listenerMu sync.RWMutex
	listener   func(Event)

	mu         sync.Mutex
	registry   []Feed
	articles   []Article
	saved      []string
	savedSet   map[string]struct{}
	read       []string
	readSet    map[string]struct{}
	scope      Scope
	query      string
	prefs      Preferences
	selection  *Reading
	generation uint64
}

type Option func(*Engine)

func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithFetchTimeout bounds every feed and article fetch. A timed out fetch is
// treated as a failed one.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

func WithMaxConcurrentFetches(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrent = n
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func WithListener(fn func(Event)) Option {
	return func(e *Engine) {
		e.listener = fn
	}
}

func New(feeds FeedFetcher, details DetailFetcher, store SettingsStore, opts ...Option) *Engine {
	e := &Engine{
		feeds:         feeds,
		details:       details,
		store:         store,
		logger:        log.New(io.Discard),
		fetchTimeout:  DefaultFetchTimeout,
		maxConcurrent: DefaultMaxConcurrent,
		newID:         func() string { return uuid.NewString()[:8] },
		refreshUnit:   time.Minute,
		registry:      append([]Feed(nil), DefaultFeeds...),
		savedSet:      make(map[string]struct{}),
		readSet:       make(map[string]struct{}),
		scope:         ScopeAll,
		prefs: Preferences{
			SortOrder:          SortNewest,
			ArticleLimit:       DefaultArticleLimit,
			AutoRefreshMinutes: DefaultAutoRefreshMinutes,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.scheduler = newScheduler(e.autoRefresh, e.refreshUnit)
	return e
}

// Load restores persisted state. A missing feed list bootstraps DefaultFeeds
// and persists it; store failures leave the in-memory defaults in place.
func (e *Engine) Load(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var feeds []Feed
	found, err := e.loadSetting(ctx, keyFeeds, &feeds)
	switch {
	case found:
		e.registry = feeds
	case err == nil:
		e.registry = append([]Feed(nil), DefaultFeeds...)
		e.saveSetting(ctx, keyFeeds, e.registry)
	}

	var saved []string
	if ok, _ := e.loadSetting(ctx, keySaved, &saved); ok {
		e.setSaved(saved)
	}
	var read []string
	if ok, _ := e.loadSetting(ctx, keyRead, &read); ok {
		e.read = read
		e.readSet = toSet(read)
	}

	var grid bool
	if ok, _ := e.loadSetting(ctx, keyGridView, &grid); ok {
		e.prefs.GridView = grid
	}
	var order SortOrder
	if ok, _ := e.loadSetting(ctx, keySortOrder, &order); ok && order.Valid() {
		e.prefs.SortOrder = order
	}
	var minutes flexInt
	if ok, _ := e.loadSetting(ctx, keyAutoRefresh, &minutes); ok && minutes >= 0 {
		e.prefs.AutoRefreshMinutes = int(minutes)
	}
	var limit flexInt
	if ok, _ := e.loadSetting(ctx, keyArticleLimit, &limit); ok && limit > 0 {
		e.prefs.ArticleLimit = clampLimit(int(limit))
	}
}

// SetListener replaces the change listener. It is called outside the engine
// lock and may be invoked from background goroutines.
func (e *Engine) SetListener(fn func(Event)) {
	e.listenerMu.Lock()
	e.listener = fn
	e.listenerMu.Unlock()
}

func (e *Engine) notify(ev Event) {
	e.listenerMu.RLock()
	fn := e.listener
	e.listenerMu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

// StartAutoRefresh arms the scheduler with the persisted interval.
func (e *Engine) StartAutoRefresh() {
	e.mu.Lock()
	minutes := e.prefs.AutoRefreshMinutes
	e.mu.Unlock()
	e.scheduler.Configure(minutes)
}

// Close stops background refreshes.
func (e *Engine) Close() {
	e.scheduler.Stop()
}

func (e *Engine) autoRefresh(ctx context.Context) {
	report := e.RefreshAll(ctx)
	e.logger.Debug("auto refresh finished", "articles", report.Articles, "failures", len(report.Failures))
}

// loadSetting must be called with e.mu held. It reports whether the key was
// present and decoded.
func (e *Engine) loadSetting(ctx context.Context, key string, dst any) (bool, error) {
	if e.store == nil {
		return false, nil
	}
	raw, ok, err := e.store.Get(ctx, settingPrefix+key)
	if err != nil {
		perr := &PersistenceError{Op: "read", Key: key, Err: err}
		e.logger.Warn("settings read failed", "key", key, "err", err)
		return false, perr
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		e.logger.Warn("ignoring malformed setting", "key", key, "err", err)
		return false, nil
	}
	return true, nil
}

// saveSetting must be called with e.mu held so writes keep mutation order.
func (e *Engine) saveSetting(ctx context.Context, key string, value any) {
	if e.store == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		e.logger.Warn("encode setting", "key", key, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settingWriteTimeout)
	defer cancel()
	if err := e.store.Set(ctx, settingPrefix+key, raw); err != nil {
		perr := &PersistenceError{Op: "write", Key: key, Err: err}
		e.logger.Warn("settings write failed", "err", perr)
	}
}

func (e *Engine) setSaved(links []string) {
	e.saved = append([]string(nil), links...)
	e.savedSet = toSet(links)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func clampLimit(n int) int {
	if n < 1 {
		return DefaultArticleLimit
	}
	if n > MaxArticleLimit {
		return MaxArticleLimit
	}
	return n
}

// flexInt accepts both 5 and "5"; older settings stored numbers as strings.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*n = flexInt(i)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return errors.New("not an integer: " + s)
	}
	*n = flexInt(i)
	return nil
}
