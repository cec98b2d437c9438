// Package extract downloads an article page and pulls out its readable text,
// lead image and authors.
package extract

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/glabrego/newsreader/internal/reader"
)

const (
	DefaultUserAgent   = "StartPage/1.0"
	defaultHTTPTimeout = 30 * time.Second
	maxPageBytes       = 5 << 20
)

// ErrNoContent means the page had no readable text, image or author.
var ErrNoContent = errors.New("no readable content")

var boilerplateSelector = strings.Join([]string{
	"script", "style", "noscript", "iframe", "form", "nav", "footer", "header",
	"aside", "svg", "button",
	".sidebar", "#sidebar", ".ad", ".ads", ".advertisement", ".popup", ".modal",
	".cookie-banner", ".newsletter", ".related", ".share", ".social",
	"[role='navigation']", "[role='complementary']", "[aria-hidden='true']",
}, ", ")

var mainContentSelectors = []string{
	"article",
	"[itemprop='articleBody']",
	"main",
	".article-body",
	".entry-content",
	".post-content",
	".post-body",
	".story-body",
	"[role='main']",
	"#content",
	".content",
}

const blockSelector = "p, h1, h2, h3, h4, h5, h6, li, blockquote, pre"

type Fetcher struct {
	httpClient *http.Client
	userAgent  string

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type Option func(*Fetcher)

// WithHostRate sets how fast one host may be hit. The default allows a burst
// of two page loads and one more every half second.
func WithHostRate(limit rate.Limit, burst int) Option {
	return func(f *Fetcher) {
		f.limit = limit
		if burst > 0 {
			f.burst = burst
		}
	}
}

func NewFetcher(httpClient *http.Client, userAgent string, opts ...Option) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	f := &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		limit:      rate.Every(500 * time.Millisecond),
		burst:      2,
		limiters:   make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchDetail downloads pageURL and extracts its article content.
func (f *Fetcher) FetchDetail(ctx context.Context, pageURL string) (reader.Detail, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return reader.Detail{}, fmt.Errorf("invalid article url %q", pageURL)
	}
	if err := f.limiter(u.Host).Wait(ctx); err != nil {
		return reader.Detail{}, fmt.Errorf("wait for %s: %w", u.Host, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return reader.Detail{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return reader.Detail{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return reader.Detail{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return reader.Detail{}, fmt.Errorf("parse html: %w", err)
	}
	base := resp.Request.URL
	if base == nil {
		base = u
	}
	return Extract(doc, base)
}

// Extract builds a Detail from an already parsed page. base resolves relative
// image urls.
func Extract(doc *goquery.Document, base *url.URL) (reader.Detail, error) {
	detail := reader.Detail{
		TopImage: topImage(doc, base),
		Authors:  authors(doc),
	}

	doc.Find(boilerplateSelector).Remove()
	paragraphs := mainParagraphs(doc)

	if len(paragraphs) > 0 {
		detail.Text = strings.Join(paragraphs, "\n\n")
		var b strings.Builder
		for _, p := range paragraphs {
			b.WriteString("<p>")
			b.WriteString(html.EscapeString(p))
			b.WriteString("</p>")
		}
		detail.HTML = b.String()
	}

	if detail.Text == "" && detail.TopImage == "" && len(detail.Authors) == 0 {
		return reader.Detail{}, ErrNoContent
	}
	return detail, nil
}

func mainParagraphs(doc *goquery.Document) []string {
	for _, selector := range mainContentSelectors {
		var out []string
		doc.Find(selector).First().Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
			out = appendParagraph(out, s)
		})
		if len(out) > 0 {
			return out
		}
	}

	var out []string
	doc.Find("body").Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		out = appendParagraph(out, s)
	})
	return out
}

// appendParagraph skips blocks nested in another block (their text is already
// part of the parent) and consecutive repeats.
func appendParagraph(out []string, s *goquery.Selection) []string {
	if s.ParentsFiltered(blockSelector).Length() > 0 {
		return out
	}
	text := strings.Join(strings.Fields(s.Text()), " ")
	if text == "" {
		return out
	}
	if len(out) > 0 && out[len(out)-1] == text {
		return out
	}
	return append(out, text)
}

func topImage(doc *goquery.Document, base *url.URL) string {
	for _, selector := range []string{
		"meta[property='og:image']",
		"meta[name='og:image']",
		"meta[name='twitter:image']",
		"meta[property='twitter:image']",
		"link[rel='image_src']",
	} {
		s := doc.Find(selector).First()
		raw, ok := s.Attr("content")
		if !ok {
			raw, ok = s.Attr("href")
		}
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if resolved := resolve(base, raw); resolved != "" {
			return resolved
		}
	}
	return ""
}

func authors(doc *goquery.Document) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.Join(strings.Fields(name), " ")
		name = strings.TrimPrefix(name, "By ")
		name = strings.TrimPrefix(name, "by ")
		if name == "" || strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
			return
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}

	doc.Find("meta[name='author'], meta[property='article:author'], meta[name='article:author']").Each(func(_ int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok {
			for _, name := range strings.Split(content, ",") {
				add(name)
			}
		}
	})
	doc.Find("[rel='author'], [itemprop='author'] [itemprop='name']").Each(func(_ int, s *goquery.Selection) {
		add(s.Text())
	})
	return out
}

func resolve(base *url.URL, raw string) string {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.limit, f.burst)
		f.limiters[host] = l
	}
	return l
}
