package view

import (
	"fmt"
	"strings"

	tuitheme "github.com/glabrego/newsreader/internal/tui/theme"
)

func Toolbar(reading bool) string {
	if reading {
		return "j/k next/prev | o open | s save | y copy | esc close | q quit"
	}
	return "j/k move | tab scope | / search | v grid | S sort | r refresh | q quit"
}

type FooterParams struct {
	Scope   string
	Sort    string
	Grid    bool
	Shown   int
	Total   int
	Query   string
	Editing bool
}

func Footer(p FooterParams, th tuitheme.Theme) string {
	layout := "list"
	if p.Grid {
		layout = "grid"
	}
	parts := []string{
		th.ModePill.Render(p.Scope),
		th.MetaLabel.Render("sort") + " " + th.MetaValue.Render(p.Sort),
		th.MetaLabel.Render("layout") + " " + th.MetaValue.Render(layout),
		th.MetaValue.Render(fmt.Sprintf("%d/%d shown", p.Shown, p.Total)),
	}
	switch {
	case p.Editing:
		parts = append(parts, th.MetaLabel.Render("search")+" "+th.MetaValue.Render(p.Query+"▏"))
	case p.Query != "":
		parts = append(parts, th.MetaLabel.Render("search")+" "+th.MetaValue.Render(fmt.Sprintf("%q", p.Query)))
	}
	return strings.Join(parts, " • ")
}

func Message(loading bool, warning, status string, th tuitheme.Theme) string {
	state := "idle"
	label := th.StateIdle.Render("state")
	switch {
	case warning != "":
		state = "warning"
		label = th.StateWarn.Render("state")
	case loading:
		state = "loading"
		label = th.StateLoad.Render("state")
	}
	main := "Ready"
	if status != "" {
		main = status
	} else if warning != "" {
		main = warning
	}
	return fmt.Sprintf("%s: %s | %s", label, state, th.MetaValue.Render(main))
}
