package reader

import (
	"context"
	"errors"
	"html"
	"regexp"
	"slices"
	"strings"

	"github.com/glabrego/newsreader/internal/sanitize"
)

var reParagraphBreak = regexp.MustCompile(`\n\s*\n+`)

// Select makes article the selection, records it as read and returns the
// preview built from its own fields. The returned request loads the full
// article; its result only applies while this selection is still current.
func (e *Engine) Select(ctx context.Context, article Article) (Reading, DetailRequest) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.markReadLocked(ctx, article.Link)
	reading := previewReading(article, gen)
	e.selection = &reading
	e.mu.Unlock()

	e.notify(Event{Kind: EventSelectionChanged})
	return cloneReading(reading), DetailRequest{Generation: gen, Link: article.Link}
}

// Clear drops the selection. In-flight detail loads become stale.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.clearSelectionLocked()
	e.mu.Unlock()
	e.notify(Event{Kind: EventSelectionChanged})
}

func (e *Engine) clearSelectionLocked() {
	e.generation++
	e.selection = nil
}

func (e *Engine) CurrentSelection() (Reading, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selection == nil {
		return Reading{}, false
	}
	return cloneReading(*e.selection), true
}

// ToggleSaved flips the saved state of the selected article and reports the
// new state.
func (e *Engine) ToggleSaved(ctx context.Context) (bool, error) {
	e.mu.Lock()
	if e.selection == nil {
		e.mu.Unlock()
		return false, ErrNoSelection
	}
	link := e.selection.Article.Link
	_, saved := e.savedSet[link]
	if saved {
		e.saved = slices.DeleteFunc(slices.Clone(e.saved), func(l string) bool { return l == link })
		delete(e.savedSet, link)
	} else {
		e.saved = append(slices.Clone(e.saved), link)
		e.savedSet[link] = struct{}{}
	}
	e.saveSetting(ctx, keySaved, e.saved)
	e.mu.Unlock()

	e.notify(Event{Kind: EventSavedChanged})
	return !saved, nil
}

// FetchDetail runs the detail fetch for req without touching engine state.
func (e *Engine) FetchDetail(ctx context.Context, req DetailRequest) DetailResult {
	res := DetailResult{Generation: req.Generation, Link: req.Link}
	switch {
	case req.Link == "":
		res.Err = ErrNoLink
		return res
	case e.details == nil:
		res.Err = &ArticleFetchError{Link: req.Link, Err: errors.New("no detail fetcher configured")}
		return res
	}
	ctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()
	detail, err := e.details.FetchDetail(ctx, req.Link)
	if err != nil {
		res.Err = &ArticleFetchError{Link: req.Link, Err: err}
		return res
	}
	res.Detail = detail
	return res
}

// ApplyDetail merges a detail result into the selection. It reports false and
// changes nothing when the selection has moved on since the request was made.
func (e *Engine) ApplyDetail(res DetailResult) bool {
	e.mu.Lock()
	if e.selection == nil || e.generation != res.Generation || e.selection.Article.Link != res.Link {
		e.mu.Unlock()
		e.logger.Debug("discarding stale article detail", "link", res.Link, "generation", res.Generation)
		return false
	}
	reading := *e.selection
	if res.Err != nil {
		e.logger.Warn("article detail fetch failed", "link", res.Link, "err", res.Err)
		reading = failedReading(reading)
	} else {
		reading = loadedReading(reading, res.Detail)
	}
	e.selection = &reading
	e.mu.Unlock()

	e.notify(Event{Kind: EventDetailLoaded})
	return true
}

// LoadDetail is FetchDetail followed by ApplyDetail.
func (e *Engine) LoadDetail(ctx context.Context, req DetailRequest) bool {
	return e.ApplyDetail(e.FetchDetail(ctx, req))
}

// Adjacent returns the article delta positions away from the selection in the
// current view, clamped to the view bounds. Without a selection it starts
// from the top.
func (e *Engine) Adjacent(delta int) (Article, bool) {
	view := e.View()
	if len(view) == 0 {
		return Article{}, false
	}
	current := -1
	if sel, ok := e.CurrentSelection(); ok {
		current = slices.IndexFunc(view, func(a Article) bool { return a.Link == sel.Article.Link })
	}
	next := min(max(current+delta, 0), len(view)-1)
	return view[next], true
}

func (e *Engine) IsRead(link string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.readSet[link]
	return ok
}

func (e *Engine) IsSaved(link string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.savedSet[link]
	return ok
}

func (e *Engine) SavedLinks() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.saved)
}

// ReadLinks returns the read set oldest first.
func (e *Engine) ReadLinks() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.read)
}

// markReadLocked appends link to the read set. Past readSetLimit entries the
// set keeps only the readSetRetain most recently inserted links.
func (e *Engine) markReadLocked(ctx context.Context, link string) {
	if link == "" {
		return
	}
	if _, ok := e.readSet[link]; ok {
		return
	}
	read := append(slices.Clone(e.read), link)
	if len(read) > readSetLimit {
		read = slices.Clone(read[len(read)-readSetRetain:])
	}
	e.read = read
	e.readSet = toSet(read)
	e.saveSetting(ctx, keyRead, e.read)
}

func previewReading(a Article, gen uint64) Reading {
	r := Reading{
		Article:    a,
		Generation: gen,
		Status:     StatusPreview,
		HeroImage:  a.Thumbnail,
		Body:       sanitize.HTML(a.Description),
		SourceLink: a.Link,
	}
	if a.Author != "" {
		r.Authors = []string{a.Author}
	}
	return r
}

func failedReading(r Reading) Reading {
	if strings.TrimSpace(r.Article.Description) == "" {
		r.Status = StatusUnavailable
		r.Body = ""
		return r
	}
	r.Status = StatusPreviewOnly
	return r
}

// loadedReading prefers fetched html, then fetched text, then the feed
// description. Fetched image and authors win only when present.
func loadedReading(r Reading, d Detail) Reading {
	switch {
	case strings.TrimSpace(d.HTML) != "":
		r.Body = sanitize.HTML(d.HTML)
	case strings.TrimSpace(d.Text) != "":
		r.Body = paragraphsHTML(d.Text)
	default:
		r.Body = sanitize.HTML(r.Article.Description)
	}
	if d.TopImage != "" {
		r.HeroImage = d.TopImage
	}
	if len(d.Authors) > 0 {
		r.Authors = slices.Clone(d.Authors)
	}
	r.Status = StatusLoaded
	return r
}

func paragraphsHTML(text string) string {
	var b strings.Builder
	for _, p := range reParagraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(p))
		b.WriteString("</p>")
	}
	return b.String()
}

func cloneReading(r Reading) Reading {
	r.Authors = slices.Clone(r.Authors)
	return r
}
