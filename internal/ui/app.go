package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/halfdome/foxmarks/internal/clipboard"
	"github.com/halfdome/foxmarks/internal/config"
	"github.com/halfdome/foxmarks/internal/index"
	"github.com/halfdome/foxmarks/internal/logging"
	"github.com/halfdome/foxmarks/internal/platform"
)

var uiLog = logging.ForComponent(logging.CompUI)

// Version is set by main.go for display in the header and help overlay
var Version = "0.0.0"

// SetVersion sets the version string shown in the UI
func SetVersion(v string) {
	Version = v
}

// Minimum terminal size requirements
const (
	minTerminalWidth  = 40
	minTerminalHeight = 10
)

// flashDuration is how long a transient status message stays visible
const flashDuration = 3 * time.Second

// Messages

type buildDoneMsg struct {
	res index.BuildResult
}

type themeChangedMsg struct {
	dark bool
}

type flashClearMsg struct {
	id uint64
}

// App is the main query-box model. It never rebuilds the index itself: every
// keystroke is answered from the in-memory record set via Manager.Query, and
// rebuild outcomes arrive asynchronously as buildDoneMsg.
type App struct {
	width  int
	height int

	input   textinput.Model
	results []index.Result
	cursor  int
	offset  int // first visible result row

	manager *index.Manager
	cfg     *config.Config

	settings *SettingsPanel
	help     *HelpOverlay
	logs     *LogOverlay

	themeWatcher *ThemeWatcher

	building  bool
	haveBuild bool
	lastBuild index.BuildResult

	// Transient status message with auto-dismiss
	flash      string
	flashIsErr bool
	flashID    uint64
}

// NewApp creates the model. The caller owns the Manager lifecycle; the App
// only triggers builds and reads results.
func NewApp(manager *index.Manager, cfg *config.Config) *App {
	ti := textinput.New()
	ti.Placeholder = "Search bookmarks and history..."
	ti.Focus()
	ti.CharLimit = 200
	ti.PromptStyle = SearchPromptStyle

	return &App{
		input:    ti,
		manager:  manager,
		cfg:      cfg,
		settings: NewSettingsPanel(),
		help:     NewHelpOverlay(),
		logs:     NewLogOverlay(),
		// nil when the platform has no dark-mode signal; theme events are
		// only honored while the configured theme is "system" anyway.
		themeWatcher: NewThemeWatcher(context.Background()),
	}
}

// Close releases background resources owned by the model.
func (a *App) Close() {
	if a.themeWatcher != nil {
		a.themeWatcher.Close()
	}
}

func (a *App) Init() tea.Cmd {
	// Activation is the first of the four rebuild triggers; the others are
	// manual refresh, settings changes, and database writes.
	a.building = true
	a.manager.Activate()

	cmds := []tea.Cmd{textinput.Blink, listenForBuilds(a.manager)}
	if a.themeWatcher != nil {
		cmds = append(cmds, listenForThemeChanges(a.themeWatcher))
	}
	return tea.Batch(cmds...)
}

// listenForBuilds waits for the next rebuild outcome
func listenForBuilds(m *index.Manager) tea.Cmd {
	return func() tea.Msg {
		return buildDoneMsg{res: <-m.Updates()}
	}
}

// listenForThemeChanges waits for an OS dark mode flip
func listenForThemeChanges(tw *ThemeWatcher) tea.Cmd {
	return func() tea.Msg {
		return themeChangedMsg{dark: <-tw.Changes()}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 8
		if a.input.Width > 76 {
			a.input.Width = 76
		}
		a.settings.SetSize(msg.Width, msg.Height)
		a.help.SetSize(msg.Width, msg.Height)
		a.logs.SetSize(msg.Width, msg.Height)
		a.syncViewport()
		return a, nil

	case buildDoneMsg:
		a.building = false
		a.haveBuild = true
		a.lastBuild = msg.res
		a.refreshResults()

		cmds := []tea.Cmd{listenForBuilds(a.manager)}
		if msg.res.Err != nil && msg.res.Entries > 0 {
			// Stale but usable: the previous record set stays live.
			cmds = append(cmds, a.setFlash("Rebuild failed, showing last known records", true))
		}
		return a, tea.Batch(cmds...)

	case themeChangedMsg:
		if a.cfg.GetTheme() == "system" {
			if msg.dark {
				InitTheme("dark")
			} else {
				InitTheme("light")
			}
			uiLog.Debug("system theme change applied", slog.Bool("dark", msg.dark))
		}
		return a, listenForThemeChanges(a.themeWatcher)

	case flashClearMsg:
		if msg.id == a.flashID {
			a.flash = ""
		}
		return a, nil

	case tea.KeyMsg:
		// Modal overlays consume keys first
		if a.settings.IsVisible() {
			var cmd tea.Cmd
			var changed bool
			a.settings, cmd, changed = a.settings.Update(msg)
			if changed {
				return a, tea.Batch(cmd, a.applySettings())
			}
			return a, cmd
		}
		if a.help.IsVisible() {
			var cmd tea.Cmd
			a.help, cmd = a.help.Update(msg)
			return a, cmd
		}
		if a.logs.IsVisible() {
			var cmd tea.Cmd
			a.logs, cmd = a.logs.Update(msg)
			return a, cmd
		}
		return a.handleKey(msg)
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "esc":
		// First esc clears the query, second quits (launcher convention)
		if a.input.Value() != "" {
			a.input.SetValue("")
			a.setQuery()
			return a, nil
		}
		return a, tea.Quit

	case "enter":
		return a.openSelected()

	case "ctrl+y":
		return a, a.copySelected()

	case "ctrl+r":
		a.building = true
		a.manager.Refresh()
		return a, nil

	case "ctrl+s":
		profiles, err := a.manager.Profiles()
		if err != nil {
			uiLog.Warn("profile listing failed", slog.String("error", err.Error()))
		}
		a.settings.Show(a.cfg, profiles)
		return a, nil

	case "ctrl+l":
		a.logs.Show()
		return a, nil

	case "f1":
		a.help.Show()
		return a, nil

	case "up", "ctrl+k":
		if a.cursor > 0 {
			a.cursor--
			a.syncViewport()
		}
		return a, nil

	case "down", "ctrl+j":
		if a.cursor < len(a.results)-1 {
			a.cursor++
			a.syncViewport()
		}
		return a, nil

	case "pgup":
		a.cursor -= a.visibleRows()
		if a.cursor < 0 {
			a.cursor = 0
		}
		a.syncViewport()
		return a, nil

	case "pgdown":
		a.cursor += a.visibleRows()
		if a.cursor > len(a.results)-1 {
			a.cursor = len(a.results) - 1
		}
		if a.cursor < 0 {
			a.cursor = 0
		}
		a.syncViewport()
		return a, nil

	default:
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		a.setQuery()
		return a, cmd
	}
}

// setQuery re-ranks for the current input and resets the selection.
// Called on every keystroke; Query is pure in-memory work.
func (a *App) setQuery() {
	a.results = a.manager.Query(a.input.Value())
	a.cursor = 0
	a.offset = 0
}

// refreshResults re-ranks after a rebuild, keeping the selection in place
// when it still exists.
func (a *App) refreshResults() {
	a.results = a.manager.Query(a.input.Value())
	if a.cursor > len(a.results)-1 {
		a.cursor = len(a.results) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
	a.syncViewport()
}

func (a *App) selected() *index.Result {
	if a.cursor < 0 || a.cursor >= len(a.results) {
		return nil
	}
	return &a.results[a.cursor]
}

func (a *App) openSelected() (tea.Model, tea.Cmd) {
	r := a.selected()
	if r == nil || r.Placeholder {
		return a, nil
	}
	if err := platform.OpenURL(r.URL); err != nil {
		uiLog.Warn("open failed", slog.String("url", r.URL), slog.String("error", err.Error()))
		return a, a.setFlash("Open failed: "+err.Error(), true)
	}
	uiLog.Info("opened", slog.String("url", r.URL))
	// The launcher dismisses after a successful activation
	return a, tea.Quit
}

func (a *App) copySelected() tea.Cmd {
	r := a.selected()
	if r == nil || r.Placeholder {
		return nil
	}
	res, err := clipboard.Copy(r.URL, clipboard.DetectOSC52Support())
	if err != nil {
		uiLog.Warn("copy failed", slog.String("error", err.Error()))
		return a.setFlash("Copy failed: "+err.Error(), true)
	}
	return a.setFlash(fmt.Sprintf("Copied URL via %s", res.Method), false)
}

// applySettings persists the edited config and pushes it to the manager.
// The manager decides whether the change needs a rebuild.
func (a *App) applySettings() tea.Cmd {
	cfg := a.settings.GetConfig()
	if err := config.Save(cfg); err != nil {
		uiLog.Warn("config save failed", slog.String("error", err.Error()))
		return a.setFlash("Settings not saved: "+err.Error(), true)
	}
	a.cfg = cfg

	InitTheme(cfg.ResolveTheme())
	a.manager.SettingsChanged(index.Settings{
		Profile:        cfg.Profile,
		ProfilesDir:    cfg.ProfilesDir,
		IncludeHistory: cfg.IndexHistory,
		Limit:          cfg.GetLimit(),
	})
	a.refreshResults()
	return nil
}

// setFlash shows a transient status message and schedules its removal.
func (a *App) setFlash(text string, isErr bool) tea.Cmd {
	a.flash = text
	a.flashIsErr = isErr
	a.flashID++
	id := a.flashID
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashClearMsg{id: id}
	})
}

// visibleRows is how many two-line result rows fit between the query box and
// the footer.
func (a *App) visibleRows() int {
	// header 1, blank 1, query box 3, blank 1, status 1, menu 1
	listHeight := a.height - 8
	if listHeight < 2 {
		return 1
	}
	return listHeight / 2
}

func (a *App) syncViewport() {
	vis := a.visibleRows()
	if a.cursor < a.offset {
		a.offset = a.cursor
	}
	if a.cursor >= a.offset+vis {
		a.offset = a.cursor - vis + 1
	}
	if a.offset < 0 {
		a.offset = 0
	}
}

func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	if a.width < minTerminalWidth || a.height < minTerminalHeight {
		return lipgloss.Place(
			a.width, a.height,
			lipgloss.Center, lipgloss.Center,
			WarningStyle.Render(fmt.Sprintf(
				"Terminal too small (%dx%d)\nMinimum: %dx%d",
				a.width, a.height,
				minTerminalWidth, minTerminalHeight,
			)),
		)
	}

	// Overlays take the full screen
	if a.settings.IsVisible() {
		return a.settings.View()
	}
	if a.help.IsVisible() {
		return a.help.View()
	}
	if a.logs.IsVisible() {
		return a.logs.View()
	}

	var b strings.Builder

	b.WriteString(a.renderHeader())
	b.WriteString("\n\n")

	b.WriteString(SearchBoxStyle.Render(a.input.View()))
	b.WriteString("\n\n")

	b.WriteString(a.renderResults())

	b.WriteString(a.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(a.renderMenuBar())

	return b.String()
}

func (a *App) renderHeader() string {
	title := TitleStyle.Render("Foxmarks")

	prof := a.manager.ActiveProfile()
	label := prof.Label
	if label == "" {
		label = prof.Name
	}
	badge := ""
	if label != "" {
		badge = InfoStyle.Render("[" + label + "]")
	}

	version := DimStyle.Faint(true).Render("v" + Version)

	left := title
	if badge != "" {
		left = lipgloss.JoinHorizontal(lipgloss.Left, title, " ", badge)
	}
	pad := a.width - lipgloss.Width(left) - lipgloss.Width(version) - 2
	if pad < 1 {
		pad = 1
	}
	return " " + left + strings.Repeat(" ", pad) + version
}

func (a *App) renderResults() string {
	var b strings.Builder

	if len(a.results) == 0 {
		b.WriteString("\n")
		if a.building && !a.haveBuild {
			b.WriteString("  " + DimStyle.Render("Building index..."))
		} else if a.input.Value() != "" {
			b.WriteString("  " + DimStyle.Render("No matches"))
		} else {
			b.WriteString("  " + DimStyle.Render("No records yet"))
		}
		b.WriteString("\n")
		// Keep layout height stable
		pad := a.visibleRows()*2 - 2
		for i := 0; i < pad; i++ {
			b.WriteString("\n")
		}
		return b.String()
	}

	vis := a.visibleRows()
	end := a.offset + vis
	if end > len(a.results) {
		end = len(a.results)
	}

	rendered := 0
	for i := a.offset; i < end; i++ {
		b.WriteString(a.renderResultRow(a.results[i], i == a.cursor))
		b.WriteString("\n")
		rendered++
	}
	// Pad the list area so status and menu stay anchored
	for i := rendered; i < vis; i++ {
		b.WriteString("\n\n")
	}
	return b.String()
}

// renderResultRow draws one two-line row: icon/title/visits, then dimmed URL.
func (a *App) renderResultRow(r index.Result, selected bool) string {
	prefix := "  "
	if selected {
		prefix = "› "
	}

	visits := ""
	if !r.Placeholder {
		visits = fmt.Sprintf("%d", r.Visits)
	}

	// icon occupies one cell plus a space
	titleBudget := a.width - runewidth.StringWidth(prefix) - 2 - runewidth.StringWidth(visits) - 3
	if titleBudget < 8 {
		titleBudget = 8
	}
	title := runewidth.Truncate(r.Title, titleBudget, "…")

	gap := a.width - runewidth.StringWidth(prefix) - 2 - runewidth.StringWidth(title) - runewidth.StringWidth(visits) - 2
	if gap < 1 {
		gap = 1
	}

	var line1 string
	if selected {
		plain := prefix + r.Icon + " " + title + strings.Repeat(" ", gap) + visits
		line1 = SelectedRowStyle.Render(plain)
	} else {
		titleStyle := ResultTitleStyle
		if r.Placeholder {
			titleStyle = PlaceholderStyle
		}
		line1 = prefix + GetKindStyle(r.Kind.String()).Render(r.Icon) + " " +
			titleStyle.Render(title) + strings.Repeat(" ", gap) + VisitCountStyle.Render(visits)
	}

	subtitle := runewidth.Truncate(r.Subtitle, a.width-6, "…")
	line2 := "    " + ResultURLStyle.Render(subtitle)

	return line1 + "\n" + line2
}

// indexState maps the manager's situation to a status glyph name.
func (a *App) indexState() string {
	switch {
	case a.building:
		return "building"
	case !a.haveBuild:
		return "building"
	case a.lastBuild.Err != nil && a.manager.Entries() == 0:
		return "error"
	case a.lastBuild.Err != nil:
		return "stale"
	case a.manager.Entries() == 0:
		return "empty"
	default:
		return "ready"
	}
}

func (a *App) renderStatusLine() string {
	var parts []string
	parts = append(parts, StatusIndicator(a.indexState()))

	entries := a.manager.Entries()
	parts = append(parts, DimStyle.Render(fmt.Sprintf("%d records", entries)))
	if a.input.Value() != "" {
		parts = append(parts, DimStyle.Render(fmt.Sprintf("%d shown", len(a.results))))
	}

	if a.flash != "" {
		style := SuccessStyle
		if a.flashIsErr {
			style = ErrorStyle
		}
		parts = append(parts, style.Render(a.flash))
	}

	sep := DimStyle.Render(" • ")
	return " " + strings.Join(parts, sep)
}

func (a *App) renderMenuBar() string {
	items := []string{
		MenuKey("enter", "Open"),
		MenuKey("ctrl+y", "Copy"),
		MenuKey("ctrl+r", "Rebuild"),
		MenuKey("ctrl+s", "Settings"),
		MenuKey("ctrl+l", "Logs"),
		MenuKey("f1", "Help"),
		MenuKey("esc", "Quit"),
	}
	return MenuBarStyle.Width(a.width).Render(strings.Join(items, "  "))
}
