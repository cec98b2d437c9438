package theme

import (
	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Title      lipgloss.Style
	ModePill   lipgloss.Style
	Section    lipgloss.Style
	Count      lipgloss.Style
	ActiveLine lipgloss.Style
	MetaLabel  lipgloss.Style
	MetaValue  lipgloss.Style
	Snippet    lipgloss.Style
	SavedMark  lipgloss.Style
	StateIdle  lipgloss.Style
	StateWarn  lipgloss.Style
	StateLoad  lipgloss.Style

	ListPane    lipgloss.Style
	ReadingPane lipgloss.Style

	TitleUnread lipgloss.Style
	TitleSaved  lipgloss.Style
	TitleRead   lipgloss.Style
	TitleBoth   lipgloss.Style
}

// Default is the Catppuccin Mocha palette.
func Default() Theme {
	cpRosewater := lipgloss.Color("#f5e0dc")
	cpMauve := lipgloss.Color("#cba6f7")
	cpRed := lipgloss.Color("#f38ba8")
	cpPeach := lipgloss.Color("#fab387")
	cpYellow := lipgloss.Color("#f9e2af")
	cpGreen := lipgloss.Color("#a6e3a1")
	cpTeal := lipgloss.Color("#94e2d5")
	cpLavender := lipgloss.Color("#b4befe")
	cpText := lipgloss.Color("#cdd6f4")
	cpSubtext0 := lipgloss.Color("#a6adc8")
	cpSubtext1 := lipgloss.Color("#bac2de")
	cpOverlay0 := lipgloss.Color("#6c7086")
	cpOverlay1 := lipgloss.Color("#7f849c")
	cpSurface0 := lipgloss.Color("#313244")
	cpSurface1 := lipgloss.Color("#45475a")

	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(cpSurface1).
		Padding(0, 1)

	return Theme{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(cpMauve),
		ModePill:   lipgloss.NewStyle().Foreground(cpLavender).Background(cpSurface0).Padding(0, 1),
		Section:    lipgloss.NewStyle().Bold(true).Foreground(cpTeal),
		Count:      lipgloss.NewStyle().Foreground(cpYellow).Bold(true),
		ActiveLine: lipgloss.NewStyle().Background(cpSurface0).Foreground(cpText),
		MetaLabel:  lipgloss.NewStyle().Foreground(cpOverlay1),
		MetaValue:  lipgloss.NewStyle().Foreground(cpSubtext1),
		Snippet:    lipgloss.NewStyle().Foreground(cpOverlay0),
		SavedMark:  lipgloss.NewStyle().Foreground(cpYellow),
		StateIdle:  lipgloss.NewStyle().Foreground(cpGreen),
		StateWarn:  lipgloss.NewStyle().Foreground(cpRed),
		StateLoad:  lipgloss.NewStyle().Foreground(cpPeach),

		ListPane:    pane,
		ReadingPane: pane.BorderForeground(cpLavender),

		TitleUnread: lipgloss.NewStyle().Bold(true).Foreground(cpText),
		TitleSaved: lipgloss.NewStyle().
			Italic(true).
			Foreground(cpLavender),
		TitleRead: lipgloss.NewStyle().Foreground(cpSubtext0),
		TitleBoth: lipgloss.NewStyle().Bold(true).Italic(true).Foreground(cpRosewater),
	}
}

// StyleArticleTitle renders a list title by read and saved state. Unread
// titles are bold.
func (t Theme) StyleArticleTitle(read, saved bool, title string) string {
	if title == "" {
		return title
	}
	switch {
	case !read && saved:
		return t.TitleBoth.Render(title)
	case !read:
		return t.TitleUnread.Render(title)
	case saved:
		return t.TitleSaved.Render(title)
	default:
		return t.TitleRead.Render(title)
	}
}

func (t Theme) RenderActiveLine(active bool, line string) string {
	if !active {
		return line
	}
	return t.ActiveLine.Render(line)
}
