package view

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/glabrego/newsreader/internal/reader"
	"github.com/glabrego/newsreader/internal/sanitize"
	tuitheme "github.com/glabrego/newsreader/internal/tui/theme"
)

const snippetLength = 120

var reANSICodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

type ArticleLineParams struct {
	Article reader.Article
	Now     time.Time
	Read    bool
	Saved   bool
	Active  bool
	Grid    bool
	Width   int
}

// RenderArticle renders one list row. Grid layout adds the feed name and a
// description snippet under the title.
func RenderArticle(p ArticleLineParams, th tuitheme.Theme) string {
	marker := " "
	if p.Active {
		marker = ">"
	}
	saved := " "
	if p.Saved {
		saved = th.SavedMark.Render("★")
	}
	prefix := marker + saved + " "

	age := TimeAgo(p.Now, p.Article.ParsedDate)
	title := strings.TrimSpace(p.Article.Title)
	if !p.Grid {
		title = p.Article.FeedName + " | " + title
	}
	available := max(p.Width-visibleLen(prefix)-1-len(age), 1)
	title = truncateRunes(title, available)
	gap := max(p.Width-visibleLen(prefix)-visibleLen(title)-len(age), 1)
	line := prefix + th.StyleArticleTitle(p.Read, p.Saved, title) + strings.Repeat(" ", gap) + th.MetaLabel.Render(age)
	if !p.Grid {
		return th.RenderActiveLine(p.Active, line)
	}

	lines := []string{
		th.RenderActiveLine(p.Active, line),
		"   " + th.Section.Render(truncateRunes(p.Article.FeedName, max(p.Width-3, 1))),
	}
	if snippet := Snippet(p.Article.Description); snippet != "" {
		for _, l := range WrapText(snippet, max(p.Width-3, 1)) {
			lines = append(lines, "   "+th.Snippet.Render(l))
		}
	}
	return strings.Join(lines, "\n")
}

// Snippet is the plain text of an html description, cut to a card preview.
func Snippet(description string) string {
	text := sanitize.Text(description)
	if utf8.RuneCountInString(text) <= snippetLength {
		return text
	}
	return string([]rune(text)[:snippetLength])
}

// TimeAgo is the compact age label shown next to each article. Undated
// articles get no label; anything older than a week shows its date.
func TimeAgo(now, then time.Time) string {
	if then.IsZero() || then.Equal(time.Unix(0, 0)) {
		return ""
	}
	if now.IsZero() {
		now = time.Now()
	}
	d := now.Sub(then)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	default:
		return then.Local().Format("Jan 2")
	}
}

func FormatDate(t time.Time) string {
	if t.IsZero() || t.Equal(time.Unix(0, 0)) {
		return ""
	}
	return t.Local().Format("Mon, Jan 2 3:04 PM")
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return strings.Repeat(".", maxLen)
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}

func visibleLen(s string) int {
	return utf8.RuneCountInString(reANSICodes.ReplaceAllString(s, ""))
}
