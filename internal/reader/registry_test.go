package reader

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestAddFeed_RejectsDuplicateURL(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.AddFeed(ctx, "X", "http://u"); err != nil {
		t.Fatalf("first AddFeed returned error: %v", err)
	}
	_, err := h.engine.AddFeed(ctx, "Y", "http://u")
	if !errors.Is(err, ErrDuplicateFeed) {
		t.Fatalf("expected ErrDuplicateFeed, got %v", err)
	}

	count := 0
	for _, f := range h.engine.ListFeeds() {
		if f.URL == "http://u" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one feed with the url, got %d", count)
	}
}

func TestAddFeed_TrimsAndValidates(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	for _, tc := range []struct{ name, url string }{
		{"", "http://u"},
		{"Name", "   "},
	} {
		if _, err := h.engine.AddFeed(ctx, tc.name, tc.url); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("AddFeed(%q, %q): expected ErrInvalidInput, got %v", tc.name, tc.url, err)
		}
	}

	feed, err := h.engine.AddFeed(ctx, "  Spaced  ", " http://spaced ")
	if err != nil {
		t.Fatalf("AddFeed returned error: %v", err)
	}
	if feed.Name != "Spaced" || feed.URL != "http://spaced" || feed.ID != "id1" {
		t.Fatalf("unexpected feed: %+v", feed)
	}
	if _, err := h.engine.AddFeed(ctx, "Again", "http://spaced"); !errors.Is(err, ErrDuplicateFeed) {
		t.Fatalf("expected trimmed url to collide, got %v", err)
	}
}

func TestAddFeed_FetchesOnlyNewFeedAndPersists(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	h.feeds.set(feedOne.URL, item("Old", "http://one/a", "2024-01-01T00:00:00Z"))
	h.feeds.set("http://new", item("New", "http://new/a", "2024-01-02T00:00:00Z"))
	ctx := context.Background()
	h.engine.RefreshAll(ctx)

	feed, err := h.engine.AddFeed(ctx, "New Feed", "http://new")
	if err != nil {
		t.Fatalf("AddFeed returned error: %v", err)
	}

	if n := h.feeds.callCount(feedOne.URL); n != 1 {
		t.Fatalf("existing feed must not be refetched, got %d calls", n)
	}
	if got := titles(h.engine.Articles()); !slices.Equal(got, []string{"New", "Old"}) {
		t.Fatalf("expected new feed merged in date order, got %v", got)
	}

	var persisted []Feed
	if !h.store.get(t, keyFeeds, &persisted) || !slices.Equal(persisted, []Feed{feedOne, feed}) {
		t.Fatalf("expected registry persisted, got %+v", persisted)
	}
}

func TestAddFeed_FailingFetchStillRegisters(t *testing.T) {
	h := newHarness(t, nil)
	h.feeds.fail("http://down", errors.New("no route to host"))

	feed, err := h.engine.AddFeed(context.Background(), "Down", "http://down")
	if err != nil {
		t.Fatalf("AddFeed returned error: %v", err)
	}
	if _, ok := h.engine.Feed(feed.ID); !ok {
		t.Fatal("expected feed registered despite fetch failure")
	}
}

func TestAddFeed_SkipsReservedAndTakenIDs(t *testing.T) {
	ids := []string{"all", "saved", "one", "", "fresh"}
	h := newHarness(t, []Feed{feedOne}, WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))

	feed, err := h.engine.AddFeed(context.Background(), "Fresh", "http://fresh")
	if err != nil {
		t.Fatalf("AddFeed returned error: %v", err)
	}
	if feed.ID != "fresh" {
		t.Fatalf("expected reserved and taken ids skipped, got %q", feed.ID)
	}
}

func TestRemoveFeed_CascadesArticles(t *testing.T) {
	h := newHarness(t, []Feed{feedOne, feedTwo})
	h.feeds.set(feedOne.URL,
		item("1", "http://one/1", ""), item("2", "http://one/2", ""), item("3", "http://one/3", ""),
		item("4", "http://one/4", ""), item("5", "http://one/5", ""),
	)
	h.feeds.set(feedTwo.URL, item("keep", "http://two/1", ""))
	ctx := context.Background()
	h.engine.RefreshAll(ctx)

	if err := h.engine.RemoveFeed(ctx, feedOne.ID); err != nil {
		t.Fatalf("RemoveFeed returned error: %v", err)
	}
	for a := range h.engine.FilteredView(ScopeAll, "") {
		if a.FeedID == feedOne.ID {
			t.Fatalf("article from removed feed still visible: %+v", a)
		}
	}
	if got := titles(h.engine.Articles()); !slices.Equal(got, []string{"keep"}) {
		t.Fatalf("unexpected remaining articles %v", got)
	}
	if _, ok := h.engine.Counts().PerFeed[feedOne.ID]; ok {
		t.Fatal("removed feed must not appear in counts")
	}
}

func TestRemoveFeed_ResetsActiveScope(t *testing.T) {
	h := newHarness(t, []Feed{feedOne, feedTwo})
	ctx := context.Background()

	if err := h.engine.SetScope(FeedScope(feedOne.ID)); err != nil {
		t.Fatalf("SetScope returned error: %v", err)
	}
	h.engine.Select(ctx, articleFor(feedOne, "A", "http://one/a", ""))

	if err := h.engine.RemoveFeed(ctx, feedOne.ID); err != nil {
		t.Fatalf("RemoveFeed returned error: %v", err)
	}
	if h.engine.Scope() != ScopeAll {
		t.Fatalf("expected scope reset to all, got %q", h.engine.Scope())
	}
	if _, ok := h.engine.CurrentSelection(); ok {
		t.Fatal("expected selection cleared with the scope")
	}
}

func TestRemoveFeed_UnknownID(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	if err := h.engine.RemoveFeed(context.Background(), "missing"); !errors.Is(err, ErrUnknownFeed) {
		t.Fatalf("expected ErrUnknownFeed, got %v", err)
	}
	if len(h.engine.ListFeeds()) != 1 {
		t.Fatal("registry must be unchanged")
	}
}

func TestRefreshAll_DropsArticlesOfFeedRemovedMidFlight(t *testing.T) {
	h := newHarness(t, []Feed{feedOne, feedTwo})
	h.feeds.set(feedOne.URL, item("A", "http://one/a", ""))
	h.feeds.set(feedTwo.URL, item("B", "http://two/b", ""))
	h.feeds.gate = make(chan struct{})
	ctx := context.Background()

	done := make(chan RefreshReport)
	go func() { done <- h.engine.RefreshAll(ctx) }()
	waitFor(t, "both fetches to start", func() bool { return h.feeds.totalCalls() == 2 })

	if err := h.engine.RemoveFeed(ctx, feedOne.ID); err != nil {
		t.Fatalf("RemoveFeed returned error: %v", err)
	}
	close(h.feeds.gate)
	<-done

	if got := titles(h.engine.Articles()); !slices.Equal(got, []string{"B"}) {
		t.Fatalf("expected removed feed's articles dropped, got %v", got)
	}
}
