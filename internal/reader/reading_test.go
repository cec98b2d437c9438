package reader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
)

func articleFor(feed Feed, title, link, description string) Article {
	return Article{FeedID: feed.ID, FeedName: feed.Name, Title: title, Link: link, Description: description}
}

func TestSelect_ShowsPreviewAndMarksRead(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	a := articleFor(feedOne, "A", "http://one/a", `<p onclick="x()">Preview <script>bad()</script>text</p>`)
	a.Thumbnail = "http://img/a.jpg"
	a.Author = "Ada"

	reading, req := h.engine.Select(context.Background(), a)

	if reading.Status != StatusPreview || !reading.Loading() {
		t.Fatalf("expected preview status, got %s", reading.Status)
	}
	if reading.Body != "<p>Preview text</p>" {
		t.Fatalf("expected sanitized preview body, got %q", reading.Body)
	}
	if reading.HeroImage != a.Thumbnail || !slices.Equal(reading.Authors, []string{"Ada"}) || reading.SourceLink != a.Link {
		t.Fatalf("unexpected preview fields: %+v", reading)
	}
	if req.Link != a.Link || req.Generation != reading.Generation {
		t.Fatalf("unexpected detail request %+v for reading generation %d", req, reading.Generation)
	}
	if !h.engine.IsRead(a.Link) {
		t.Fatal("expected article marked read")
	}
	var read []string
	if !h.store.get(t, keyRead, &read) || !slices.Equal(read, []string{a.Link}) {
		t.Fatalf("expected read set persisted, got %v", read)
	}
}

func TestApplyDetail_DiscardsStaleResponse(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	ctx := context.Background()
	a := articleFor(feedOne, "A", "http://one/a", "<p>A preview</p>")
	b := articleFor(feedOne, "B", "http://one/b", "<p>B preview</p>")
	h.details.details[a.Link] = Detail{HTML: "<p>A full</p>"}
	h.details.details[b.Link] = Detail{HTML: "<p>B full</p>"}

	_, reqA := h.engine.Select(ctx, a)
	_, reqB := h.engine.Select(ctx, b)

	resA := h.engine.FetchDetail(ctx, reqA)
	if h.engine.ApplyDetail(resA) {
		t.Fatal("stale detail for A must be discarded")
	}
	sel, _ := h.engine.CurrentSelection()
	if sel.Article.Link != b.Link || sel.Body != "<p>B preview</p>" || sel.Status != StatusPreview {
		t.Fatalf("stale response clobbered B: %+v", sel)
	}

	if !h.engine.LoadDetail(ctx, reqB) {
		t.Fatal("expected B detail to apply")
	}
	if h.engine.ApplyDetail(resA) {
		t.Fatal("late A response must still be discarded after B loaded")
	}
	sel, _ = h.engine.CurrentSelection()
	if sel.Body != "<p>B full</p>" || sel.Status != StatusLoaded {
		t.Fatalf("expected B loaded, got %+v", sel)
	}
}

func TestApplyDetail_OutOfOrderConcurrentLoads(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	ctx := context.Background()
	a := articleFor(feedOne, "A", "http://one/a", "<p>A preview</p>")
	b := articleFor(feedOne, "B", "http://one/b", "<p>B preview</p>")
	h.details.details[a.Link] = Detail{Text: "A full"}
	h.details.details[b.Link] = Detail{Text: "B full"}
	gateA := make(chan struct{})
	h.details.gates[a.Link] = gateA

	_, reqA := h.engine.Select(ctx, a)
	var wg sync.WaitGroup
	var appliedA bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		appliedA = h.engine.LoadDetail(ctx, reqA)
	}()

	_, reqB := h.engine.Select(ctx, b)
	if !h.engine.LoadDetail(ctx, reqB) {
		t.Fatal("expected B detail to apply")
	}
	close(gateA)
	wg.Wait()

	if appliedA {
		t.Fatal("A resolved after B was selected and must be discarded")
	}
	sel, _ := h.engine.CurrentSelection()
	if sel.Article.Link != b.Link || sel.Body != "<p>B full</p>" {
		t.Fatalf("expected B content, got %+v", sel)
	}
}

func TestApplyDetail_ReselectingSameArticleInvalidatesOldRequest(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	ctx := context.Background()
	a := articleFor(feedOne, "A", "http://one/a", "<p>A</p>")
	h.details.details[a.Link] = Detail{Text: "full"}

	_, first := h.engine.Select(ctx, a)
	_, second := h.engine.Select(ctx, a)
	if h.engine.LoadDetail(ctx, first) {
		t.Fatal("request from an earlier selection generation must be discarded")
	}
	if !h.engine.LoadDetail(ctx, second) {
		t.Fatal("expected current request to apply")
	}
}

func TestApplyDetail_AfterClearIsDiscarded(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	ctx := context.Background()
	a := articleFor(feedOne, "A", "http://one/a", "<p>A</p>")
	h.details.details[a.Link] = Detail{Text: "full"}

	_, req := h.engine.Select(ctx, a)
	h.engine.Clear()
	if h.engine.LoadDetail(ctx, req) {
		t.Fatal("detail must not apply after the selection was cleared")
	}
	if _, ok := h.engine.CurrentSelection(); ok {
		t.Fatal("expected no selection")
	}
}

func TestApplyDetail_FailureKeepsPreview(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	ctx := context.Background()
	a := articleFor(feedOne, "A", "http://one/a", "<p>Preview</p>")
	h.details.errs[a.Link] = errors.New("403 forbidden")

	_, req := h.engine.Select(ctx, a)
	res := h.engine.FetchDetail(ctx, req)
	var aerr *ArticleFetchError
	if !errors.As(res.Err, &aerr) || aerr.Link != a.Link {
		t.Fatalf("expected ArticleFetchError, got %v", res.Err)
	}
	if !h.engine.ApplyDetail(res) {
		t.Fatal("expected failure to apply to the current selection")
	}
	sel, _ := h.engine.CurrentSelection()
	if sel.Status != StatusPreviewOnly || sel.Body != "<p>Preview</p>" {
		t.Fatalf("expected preview kept, got %+v", sel)
	}
}

func TestApplyDetail_FailureWithoutPreviewIsUnavailable(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	ctx := context.Background()
	a := articleFor(feedOne, "A", "http://one/a", "")
	h.details.errs[a.Link] = errors.New("timeout")

	_, req := h.engine.Select(ctx, a)
	h.engine.LoadDetail(ctx, req)
	sel, _ := h.engine.CurrentSelection()
	if sel.Status != StatusUnavailable || sel.Body != "" || sel.SourceLink != a.Link {
		t.Fatalf("expected unavailable state with source link, got %+v", sel)
	}
}

func TestApplyDetail_TextFallbackAndOverrides(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	ctx := context.Background()
	a := articleFor(feedOne, "A", "http://one/a", "<p>Preview</p>")
	a.Thumbnail = "http://img/thumb.jpg"
	a.Author = "Feed Author"
	h.details.details[a.Link] = Detail{
		Text:     "First paragraph.\n\nSecond <para>.",
		TopImage: "http://img/lead.jpg",
		Authors:  []string{"Jane Doe"},
	}

	_, req := h.engine.Select(ctx, a)
	h.engine.LoadDetail(ctx, req)
	sel, _ := h.engine.CurrentSelection()

	if sel.Body != "<p>First paragraph.</p><p>Second &lt;para&gt;.</p>" {
		t.Fatalf("unexpected body from text: %q", sel.Body)
	}
	if sel.HeroImage != "http://img/lead.jpg" || !slices.Equal(sel.Authors, []string{"Jane Doe"}) {
		t.Fatalf("expected fetched image and authors, got %+v", sel)
	}
}

func TestApplyDetail_EmptyDetailKeepsFeedFields(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	ctx := context.Background()
	a := articleFor(feedOne, "A", "http://one/a", "<p>Preview</p>")
	a.Thumbnail = "http://img/thumb.jpg"
	h.details.details[a.Link] = Detail{}

	_, req := h.engine.Select(ctx, a)
	h.engine.LoadDetail(ctx, req)
	sel, _ := h.engine.CurrentSelection()
	if sel.Status != StatusLoaded || sel.Body != "<p>Preview</p>" || sel.HeroImage != a.Thumbnail {
		t.Fatalf("expected description fallback and feed thumbnail, got %+v", sel)
	}
}

func TestFetchDetail_NoLink(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	_, req := h.engine.Select(context.Background(), articleFor(feedOne, "A", "", "<p>x</p>"))
	res := h.engine.FetchDetail(context.Background(), req)
	if !errors.Is(res.Err, ErrNoLink) {
		t.Fatalf("expected ErrNoLink, got %v", res.Err)
	}
	if len(h.engine.ReadLinks()) != 0 {
		t.Fatal("empty links must not enter the read set")
	}
}

func TestReadSet_TrimsToMostRecent(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	ctx := context.Background()

	links := make([]string, 501)
	for i := range links {
		links[i] = fmt.Sprintf("http://one/%03d", i)
		h.engine.Select(ctx, articleFor(feedOne, "t", links[i], ""))
	}

	got := h.engine.ReadLinks()
	if len(got) != 300 {
		t.Fatalf("expected 300 read entries, got %d", len(got))
	}
	if !slices.Equal(got, links[201:]) {
		t.Fatalf("expected the 300 most recent links, got first=%s last=%s", got[0], got[len(got)-1])
	}
	if h.engine.IsRead(links[200]) || !h.engine.IsRead(links[201]) {
		t.Fatal("read lookup disagrees with trimmed set")
	}

	var persisted []string
	h.store.get(t, keyRead, &persisted)
	if !slices.Equal(persisted, got) {
		t.Fatalf("expected trimmed set persisted, got %d entries", len(persisted))
	}
}

func TestReadSet_TrimIsByInsertionOrder(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	ctx := context.Background()

	first := "http://one/first"
	h.engine.Select(ctx, articleFor(feedOne, "t", first, ""))
	for i := 0; i < 499; i++ {
		h.engine.Select(ctx, articleFor(feedOne, "t", fmt.Sprintf("http://one/%d", i), ""))
	}
	// Re-reading does not refresh its position.
	h.engine.Select(ctx, articleFor(feedOne, "t", first, ""))
	h.engine.Select(ctx, articleFor(feedOne, "t", "http://one/overflow", ""))

	if h.engine.IsRead(first) {
		t.Fatal("oldest inserted link should be trimmed even if re-read")
	}
}

func TestToggleSaved(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	ctx := context.Background()

	if _, err := h.engine.ToggleSaved(ctx); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}

	a := articleFor(feedOne, "A", "http://one/a", "")
	h.engine.Select(ctx, a)
	if saved, _ := h.engine.ToggleSaved(ctx); !saved || !h.engine.IsSaved(a.Link) {
		t.Fatal("expected saved after first toggle")
	}
	if saved, _ := h.engine.ToggleSaved(ctx); saved || h.engine.IsSaved(a.Link) {
		t.Fatal("expected unsaved after second toggle")
	}
	if links := h.engine.SavedLinks(); len(links) != 0 {
		t.Fatalf("expected empty saved list, got %v", links)
	}
}

func TestAdjacent(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	h.feeds.set(feedOne.URL,
		item("A", "http://one/a", "2024-01-03T00:00:00Z"),
		item("B", "http://one/b", "2024-01-02T00:00:00Z"),
		item("C", "http://one/c", "2024-01-01T00:00:00Z"),
	)
	h.engine.RefreshAll(context.Background())

	first, ok := h.engine.Adjacent(1)
	if !ok || first.Title != "A" {
		t.Fatalf("expected first article without selection, got %q", first.Title)
	}
	h.engine.Select(context.Background(), first)
	next, _ := h.engine.Adjacent(1)
	if next.Title != "B" {
		t.Fatalf("expected B, got %q", next.Title)
	}
	if prev, _ := h.engine.Adjacent(-1); prev.Title != "A" {
		t.Fatalf("expected clamp at top, got %q", prev.Title)
	}
	if last, _ := h.engine.Adjacent(10); last.Title != "C" {
		t.Fatalf("expected clamp at bottom, got %q", last.Title)
	}

	h.engine.SetSearchQuery("zzz")
	if _, ok := h.engine.Adjacent(1); ok {
		t.Fatal("expected no adjacent article in an empty view")
	}
}

func TestSelectionEventsReachListener(t *testing.T) {
	h := newHarness(t, []Feed{feedOne})
	var kinds []EventKind
	h.engine.SetListener(func(ev Event) { kinds = append(kinds, ev.Kind) })

	ctx := context.Background()
	a := articleFor(feedOne, "A", "http://one/a", "")
	h.details.details[a.Link] = Detail{Text: "x"}
	_, req := h.engine.Select(ctx, a)
	h.engine.LoadDetail(ctx, req)
	h.engine.ToggleSaved(ctx)

	want := []EventKind{EventSelectionChanged, EventDetailLoaded, EventSavedChanged}
	if !slices.Equal(kinds, want) {
		t.Fatalf("unexpected events %v", kinds)
	}
}

func TestReadingStatusString(t *testing.T) {
	for status, want := range map[ReadingStatus]string{
		StatusPreview:     "preview",
		StatusLoaded:      "loaded",
		StatusPreviewOnly: "preview-only",
		StatusUnavailable: "unavailable",
	} {
		if got := status.String(); !strings.EqualFold(got, want) {
			t.Fatalf("status %d: got %q want %q", status, got, want)
		}
	}
}
