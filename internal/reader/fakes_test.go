package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeFeeds struct {
	mu     sync.Mutex
	items  map[string][]Item
	errs   map[string]error
	gate   chan struct{}
	calls  map[string]int
	limits []int
}

func newFakeFeeds() *fakeFeeds {
	return &fakeFeeds{
		items: make(map[string][]Item),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFeeds) set(url string, items ...Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[url] = items
}

func (f *fakeFeeds) fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
}

func (f *fakeFeeds) FetchFeed(ctx context.Context, url string, limit int) ([]Item, error) {
	f.mu.Lock()
	f.calls[url]++
	f.limits = append(f.limits, limit)
	gate := f.gate
	items, err := f.items[url], f.errs[url]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *fakeFeeds) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFeeds) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeFeeds) lastLimit() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.limits) == 0 {
		return 0
	}
	return f.limits[len(f.limits)-1]
}

type fakeDetails struct {
	mu      sync.Mutex
	details map[string]Detail
	errs    map[string]error
	gates   map[string]chan struct{}
}

func newFakeDetails() *fakeDetails {
	return &fakeDetails{
		details: make(map[string]Detail),
		errs:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
	}
}

func (f *fakeDetails) FetchDetail(ctx context.Context, url string) (Detail, error) {
	f.mu.Lock()
	gate := f.gates[url]
	d, err := f.details[url], f.errs[url]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Detail{}, ctx.Err()
		}
	}
	return d, err
}

type fakeStore struct {
	mu      sync.Mutex
	values  map[string][]byte
	failGet bool
	failSet bool
	writes  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string][]byte)}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, false, errors.New("disk unavailable")
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return errors.New("disk full")
	}
	s.writes++
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *fakeStore) put(t *testing.T, key string, value any) {
	t.Helper()
	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal %s: %v", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[settingPrefix+key] = raw
}

func (s *fakeStore) get(t *testing.T, key string, dst any) bool {
	t.Helper()
	s.mu.Lock()
	raw, ok := s.values[settingPrefix+key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("unmarshal %s: %v", key, err)
	}
	return true
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
}

func withRefreshUnit(d time.Duration) Option {
	return func(e *Engine) {
		e.refreshUnit = d
	}
}

var (
	feedOne   = Feed{ID: "one", Name: "Feed One", URL: "http://feeds.test/one"}
	feedTwo   = Feed{ID: "two", Name: "Feed Two", URL: "http://feeds.test/two"}
	feedThree = Feed{ID: "three", Name: "Feed Three", URL: "http://feeds.test/three"}
	feedFour  = Feed{ID: "four", Name: "Feed Four", URL: "http://feeds.test/four"}
)

type harness struct {
	engine  *Engine
	feeds   *fakeFeeds
	details *fakeDetails
	store   *fakeStore
}

// newHarness builds a loaded engine whose registry is exactly feeds.
func newHarness(t *testing.T, feeds []Feed, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		feeds:   newFakeFeeds(),
		details: newFakeDetails(),
		store:   newFakeStore(),
	}
	if feeds == nil {
		feeds = []Feed{}
	}
	h.store.put(t, keyFeeds, feeds)
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	h.engine = New(h.feeds, h.details, h.store, opts...)
	h.engine.Load(context.Background())
	t.Cleanup(h.engine.Close)
	return h
}

func item(title, link, published string) Item {
	return Item{Title: title, Link: link, Published: published}
}

func titles(articles []Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Title
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
