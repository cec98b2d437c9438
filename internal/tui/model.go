package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/glabrego/newsreader/internal/reader"
	"github.com/glabrego/newsreader/internal/tui/platform"
	tuitheme "github.com/glabrego/newsreader/internal/tui/theme"
	"github.com/glabrego/newsreader/internal/tui/view"
)

// Engine is the part of *reader.Engine the interface drives.
type Engine interface {
	RefreshAll(ctx context.Context) reader.RefreshReport
	View() []reader.Article
	Counts() reader.Counts
	ListFeeds() []reader.Feed
	Feed(id string) (reader.Feed, bool)
	Scope() reader.Scope
	SetScope(scope reader.Scope) error
	SearchQuery() string
	SetSearchQuery(query string)
	Preferences() reader.Preferences
	SetSortOrder(ctx context.Context, order reader.SortOrder) error
	SetGridView(ctx context.Context, grid bool)
	Select(ctx context.Context, article reader.Article) (reader.Reading, reader.DetailRequest)
	Clear()
	CurrentSelection() (reader.Reading, bool)
	ToggleSaved(ctx context.Context) (bool, error)
	FetchDetail(ctx context.Context, req reader.DetailRequest) reader.DetailResult
	ApplyDetail(res reader.DetailResult) bool
	Adjacent(delta int) (reader.Article, bool)
	IsRead(link string) bool
	IsSaved(link string) bool
}

// EngineEventMsg carries an engine notification into the program. Send it
// from the engine listener with program.Send.
type EngineEventMsg struct {
	Event reader.Event
}

type refreshDoneMsg struct {
	report reader.RefreshReport
}

type detailLoadedMsg struct {
	result reader.DetailResult
}

type openURLSuccessMsg struct {
	status string
}

type openURLErrorMsg struct {
	err error
}

type clearStatusMsg struct {
	id int
}

const (
	defaultWidth  = 100
	defaultHeight = 30
	chromeLines   = 6
)

type Model struct {
	engine     Engine
	articles   []reader.Article
	cursor     int
	readingTop int
	searching  bool
	query      string
	width      int
	height     int
	loading    bool
	status     string
	statusID   int
	err        error
	openURLFn  func(string) error
	copyURLFn  func(string) error
	nowFn      func() time.Time
	theme      tuitheme.Theme
}

func NewModel(engine Engine) Model {
	m := Model{
		engine:    engine,
		openURLFn: platform.OpenURLInBrowser,
		copyURLFn: platform.CopyURLToClipboard,
		nowFn:     time.Now,
		theme:     tuitheme.Default(),
	}
	if engine != nil {
		m.loading = true
		m.reload()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.engine == nil {
		return nil
	}
	return refreshCmd(m.engine)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "down", "j":
			return m.selectAdjacent(1)
		case "up", "k":
			return m.selectAdjacent(-1)
		case "enter":
			if _, ok := m.engine.CurrentSelection(); !ok {
				return m.selectAt(m.cursor)
			}
			return m.openCurrentURL()
		case "o":
			return m.openCurrentURL()
		case "y":
			return m.copyCurrentURL()
		case "s":
			return m.toggleSaved()
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			m.status = "Refreshing feeds..."
			m.err = nil
			return m, refreshCmd(m.engine)
		case "esc":
			m.engine.Clear()
			m.readingTop = 0
			return m, nil
		case "tab":
			return m.cycleScope(1)
		case "shift+tab":
			return m.cycleScope(-1)
		case "/":
			m.searching = true
			m.query = m.engine.SearchQuery()
			return m, nil
		case "v":
			m.engine.SetGridView(context.Background(), !m.engine.Preferences().GridView)
			return m.withStatus(layoutLabel(m.engine.Preferences().GridView)+" layout", 3*time.Second)
		case "S":
			next := reader.SortOldest
			if m.engine.Preferences().SortOrder == reader.SortOldest {
				next = reader.SortNewest
			}
			if err := m.engine.SetSortOrder(context.Background(), next); err != nil {
				m.err = err
				return m, nil
			}
			m.reload()
			return m.withStatus("Sorted "+string(next)+" first", 3*time.Second)
		case "pgdown", "ctrl+d":
			m.readingTop += m.bodyHeight() / 2
			return m, nil
		case "pgup", "ctrl+u":
			m.readingTop = max(m.readingTop-m.bodyHeight()/2, 0)
			return m, nil
		}
		return m, nil
	case refreshDoneMsg:
		m.loading = false
		m.reload()
		m.err = nil
		if n := len(msg.report.Failures); n > 0 {
			m.err = fmt.Errorf("%d of %d feeds failed to refresh", n, msg.report.Feeds)
		}
		return m.withStatus(fmt.Sprintf("Loaded %d articles from %d feeds in %dms", msg.report.Articles, msg.report.Feeds, msg.report.Duration.Milliseconds()), 3*time.Second)
	case detailLoadedMsg:
		if m.engine.ApplyDetail(msg.result) {
			m.readingTop = 0
		}
		return m, nil
	case EngineEventMsg:
		m.reload()
		if msg.Event.Kind == reader.EventRefreshed && msg.Event.Report != nil && !m.loading {
			return m.withStatus(fmt.Sprintf("Auto-refreshed %d articles", msg.Event.Report.Articles), 3*time.Second)
		}
		return m, nil
	case openURLSuccessMsg:
		m.err = nil
		return m.withStatus(msg.status, 3*time.Second)
	case openURLErrorMsg:
		m.err = nil
		return m.withStatus(msg.err.Error(), 4*time.Second)
	case clearStatusMsg:
		if msg.id == m.statusID {
			m.status = ""
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		m.searching = false
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.query = ""
	case tea.KeyBackspace:
		if r := []rune(m.query); len(r) > 0 {
			m.query = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.query += " "
	case tea.KeyRunes:
		m.query += string(msg.Runes)
	default:
		return m, nil
	}
	m.engine.SetSearchQuery(m.query)
	m.cursor = 0
	m.reload()
	return m, nil
}

func (m Model) selectAdjacent(delta int) (tea.Model, tea.Cmd) {
	if _, ok := m.engine.CurrentSelection(); !ok {
		return m.selectAt(m.cursor)
	}
	article, ok := m.engine.Adjacent(delta)
	if !ok {
		return m, nil
	}
	return m.selectArticle(article)
}

func (m Model) selectAt(idx int) (tea.Model, tea.Cmd) {
	if idx < 0 || idx >= len(m.articles) {
		return m, nil
	}
	return m.selectArticle(m.articles[idx])
}

func (m Model) selectArticle(article reader.Article) (tea.Model, tea.Cmd) {
	_, req := m.engine.Select(context.Background(), article)
	m.readingTop = 0
	m.reload()
	return m, detailCmd(m.engine, req)
}

func (m Model) toggleSaved() (tea.Model, tea.Cmd) {
	saved, err := m.engine.ToggleSaved(context.Background())
	if err != nil {
		m.err = nil
		return m.withStatus("Select an article first", 3*time.Second)
	}
	m.reload()
	if saved {
		return m.withStatus("Saved for later", 3*time.Second)
	}
	return m.withStatus("Removed from saved", 3*time.Second)
}

func (m Model) cycleScope(step int) (tea.Model, tea.Cmd) {
	scopes := []reader.Scope{reader.ScopeAll, reader.ScopeSaved}
	for _, f := range m.engine.ListFeeds() {
		scopes = append(scopes, reader.FeedScope(f.ID))
	}
	current := 0
	for i, s := range scopes {
		if s == m.engine.Scope() {
			current = i
			break
		}
	}
	next := scopes[(current+step+len(scopes))%len(scopes)]
	if err := m.engine.SetScope(next); err != nil {
		m.err = err
		return m, nil
	}
	m.cursor = 0
	m.readingTop = 0
	m.reload()
	return m, nil
}

func (m Model) openCurrentURL() (tea.Model, tea.Cmd) {
	reading, ok := m.engine.CurrentSelection()
	if !ok {
		return m, nil
	}
	validURL, err := platform.ValidateArticleURL(reading.SourceLink)
	if err != nil {
		m.err = nil
		return m.withStatus(err.Error(), 4*time.Second)
	}
	return m, openURLCmd(validURL, m.openURLFn, m.copyURLFn)
}

func (m Model) copyCurrentURL() (tea.Model, tea.Cmd) {
	reading, ok := m.engine.CurrentSelection()
	if !ok {
		return m, nil
	}
	validURL, err := platform.ValidateArticleURL(reading.SourceLink)
	if err != nil {
		m.err = nil
		return m.withStatus(err.Error(), 4*time.Second)
	}
	return m, copyURLCmd(validURL, m.copyURLFn)
}

func (m Model) withStatus(status string, after time.Duration) (Model, tea.Cmd) {
	m.status = status
	m.statusID++
	return m, clearStatusCmd(m.statusID, after)
}

// reload takes a fresh snapshot of the engine view and keeps the cursor on
// the selected article when it is still visible.
func (m *Model) reload() {
	m.articles = m.engine.View()
	if sel, ok := m.engine.CurrentSelection(); ok {
		for i, a := range m.articles {
			if a.Link == sel.Article.Link && a.FeedID == sel.Article.FeedID {
				m.cursor = i
				return
			}
		}
	}
	m.cursor = min(max(m.cursor, 0), max(len(m.articles)-1, 0))
}

func (m Model) View() string {
	if m.engine == nil {
		return "No engine configured.\n"
	}
	width, _ := m.size()
	reading, selected := m.engine.CurrentSelection()

	var b strings.Builder
	b.WriteString(m.theme.Title.Render("News Reader"))
	b.WriteString("  ")
	b.WriteString(view.Toolbar(selected))
	b.WriteString("\n\n")

	listWidth := width
	if selected {
		listWidth = width * 2 / 5
	}
	// Pane width counts padding but not the border: content is outer-4.
	bodyHeight := m.bodyHeight()
	listContent := max(listWidth-4, 10)
	list := m.theme.ListPane.Width(listContent+2).Height(bodyHeight).
		Render(m.listView(listContent, bodyHeight))
	if selected {
		readingContent := max(width-listWidth-4, 10)
		lines := view.ReadingLines(reading, m.engine.IsSaved(reading.Article.Link), readingContent, m.theme)
		pane := m.theme.ReadingPane.Width(readingContent+2).Height(bodyHeight).
			Render(view.RenderLines(lines, m.readingTop, bodyHeight))
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, list, pane))
	} else {
		b.WriteString(list)
	}
	b.WriteString("\n")

	prefs := m.engine.Preferences()
	query := m.engine.SearchQuery()
	if m.searching {
		query = m.query
	}
	b.WriteString(view.Footer(view.FooterParams{
		Scope:   m.scopeLabel(),
		Sort:    string(prefs.SortOrder),
		Grid:    prefs.GridView,
		Shown:   len(m.articles),
		Total:   m.engine.Counts().All,
		Query:   query,
		Editing: m.searching,
	}, m.theme))
	b.WriteString("\n")
	warning := ""
	if m.err != nil {
		warning = m.err.Error()
	}
	b.WriteString(view.Message(m.loading, warning, m.status, m.theme))
	b.WriteString("\n")
	return b.String()
}

func (m Model) listView(width, height int) string {
	if len(m.articles) == 0 {
		switch {
		case m.loading:
			return "Loading articles..."
		case m.engine.Scope() == reader.ScopeSaved:
			return "No saved articles yet"
		case m.engine.SearchQuery() != "":
			return "No articles match your search"
		default:
			return "No articles found"
		}
	}

	grid := m.engine.Preferences().GridView
	now := m.nowFn()
	var lines []string
	cursorEnd := 0
	for i, a := range m.articles {
		row := view.RenderArticle(view.ArticleLineParams{
			Article: a,
			Now:     now,
			Read:    m.engine.IsRead(a.Link),
			Saved:   m.engine.IsSaved(a.Link),
			Active:  i == m.cursor,
			Grid:    grid,
			Width:   width,
		}, m.theme)
		lines = append(lines, strings.Split(row, "\n")...)
		if grid {
			lines = append(lines, "")
		}
		if i == m.cursor {
			cursorEnd = len(lines)
		}
	}
	top := max(cursorEnd-height, 0)
	return view.RenderLines(lines, top, height)
}

func (m Model) scopeLabel() string {
	counts := m.engine.Counts()
	scope := m.engine.Scope()
	switch scope {
	case reader.ScopeAll, "":
		return fmt.Sprintf("All (%d)", counts.All)
	case reader.ScopeSaved:
		return fmt.Sprintf("Saved (%d)", counts.Saved)
	}
	id, _ := scope.FeedID()
	name := id
	if feed, ok := m.engine.Feed(id); ok {
		name = feed.Name
	}
	return fmt.Sprintf("%s (%d)", name, counts.PerFeed[id])
}

func (m Model) size() (int, int) {
	width, height := m.width, m.height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	return width, height
}

func (m Model) bodyHeight() int {
	_, height := m.size()
	return max(height-chromeLines, 3)
}

func layoutLabel(grid bool) string {
	if grid {
		return "Grid"
	}
	return "List"
}

func refreshCmd(engine Engine) tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{report: engine.RefreshAll(context.Background())}
	}
}

// detailCmd fetches outside the update loop; the result is applied in
// Update, where a newer selection makes it a no-op.
func detailCmd(engine Engine, req reader.DetailRequest) tea.Cmd {
	return func() tea.Msg {
		return detailLoadedMsg{result: engine.FetchDetail(context.Background(), req)}
	}
}

func openURLCmd(url string, openFn, copyFn func(string) error) tea.Cmd {
	return func() tea.Msg {
		if openFn != nil {
			if err := openFn(url); err == nil {
				return openURLSuccessMsg{status: "Opened article in browser"}
			}
		}
		if copyFn != nil {
			if err := copyFn(url); err == nil {
				return openURLSuccessMsg{status: "Could not open browser, link copied to clipboard"}
			}
		}
		return openURLErrorMsg{err: fmt.Errorf("could not open link or copy to clipboard")}
	}
}

func copyURLCmd(url string, copyFn func(string) error) tea.Cmd {
	return func() tea.Msg {
		if copyFn != nil {
			if err := copyFn(url); err == nil {
				return openURLSuccessMsg{status: "Link copied to clipboard"}
			}
		}
		return openURLErrorMsg{err: fmt.Errorf("could not copy link to clipboard")}
	}
}

func clearStatusCmd(id int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return clearStatusMsg{id: id}
	})
}
