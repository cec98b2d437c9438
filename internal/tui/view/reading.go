package view

import (
	"strings"
	"unicode/utf8"

	"github.com/glabrego/newsreader/internal/reader"
	"github.com/glabrego/newsreader/internal/sanitize"
	tuitheme "github.com/glabrego/newsreader/internal/tui/theme"
)

// ReadingLines lays out the reading pane for r, wrapped to width.
func ReadingLines(r reader.Reading, saved bool, width int, th tuitheme.Theme) []string {
	width = max(width, 1)
	lines := make([]string, 0, 32)
	for _, l := range WrapText(strings.TrimSpace(r.Article.Title), width) {
		lines = append(lines, th.Title.Render(l))
	}

	meta := []string{r.Article.FeedName}
	if date := FormatDate(r.Article.ParsedDate); date != "" {
		meta = append(meta, date)
	}
	if saved {
		meta = append(meta, th.SavedMark.Render("★ saved"))
	}
	lines = append(lines, th.MetaValue.Render(strings.Join(meta, " • ")))
	if len(r.Authors) > 0 {
		lines = append(lines, th.MetaLabel.Render("by")+" "+th.MetaValue.Render(strings.Join(r.Authors, ", ")))
	}
	if r.HeroImage != "" {
		lines = append(lines, th.MetaLabel.Render("image")+" "+th.MetaValue.Render(truncateRunes(r.HeroImage, width-6)))
	}
	lines = append(lines, "")

	switch r.Status {
	case reader.StatusPreview:
		lines = append(lines, th.StateLoad.Render("Loading full article..."), "")
	case reader.StatusUnavailable:
		lines = append(lines,
			th.StateWarn.Render("Could not load this article."),
			"Read it at the source: "+r.SourceLink,
		)
		return lines
	}

	for _, p := range sanitize.Paragraphs(r.Body) {
		lines = append(lines, WrapText(p, width)...)
		lines = append(lines, "")
	}
	if r.SourceLink != "" {
		lines = append(lines, th.MetaLabel.Render("source")+" "+r.SourceLink)
	}
	return lines
}

// RenderLines returns at most maxLines lines starting at top.
func RenderLines(lines []string, top, maxLines int) string {
	if len(lines) == 0 {
		return ""
	}
	top = min(max(top, 0), len(lines)-1)
	end := len(lines)
	if maxLines > 0 && top+maxLines < end {
		end = top + maxLines
	}
	return strings.Join(lines[top:end], "\n")
}

func WrapText(text string, width int) []string {
	if width < 1 {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var out []string
	line := ""
	for _, word := range words {
		for utf8.RuneCountInString(word) > width {
			if line != "" {
				out = append(out, line)
				line = ""
			}
			runes := []rune(word)
			out = append(out, string(runes[:width]))
			word = string(runes[width:])
		}
		switch {
		case line == "":
			line = word
		case utf8.RuneCountInString(line)+1+utf8.RuneCountInString(word) <= width:
			line += " " + word
		default:
			out = append(out, line)
			line = word
		}
	}
	if line != "" {
		out = append(out, line)
	}
	return out
}
