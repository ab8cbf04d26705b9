package ui

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	_ "modernc.org/sqlite"

	"github.com/halfdome/foxmarks/internal/config"
	"github.com/halfdome/foxmarks/internal/index"
	"github.com/halfdome/foxmarks/internal/places"
)

// seedProfile writes a minimal places.sqlite: two bookmarks (GitHub with five
// visits, Example with none) and one history-only page.
func seedProfile(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "places.sqlite"))
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE moz_places (
			id INTEGER PRIMARY KEY, url TEXT, title TEXT,
			hidden INTEGER NOT NULL DEFAULT 0,
			visit_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE moz_bookmarks (id INTEGER PRIMARY KEY, type INTEGER NOT NULL, fk INTEGER, title TEXT)`,
		`CREATE TABLE moz_historyvisits (id INTEGER PRIMARY KEY, place_id INTEGER NOT NULL, visit_date INTEGER NOT NULL DEFAULT 0)`,
		`INSERT INTO moz_places (id, url, title) VALUES (1, 'https://github.com/', 'GitHub')`,
		`INSERT INTO moz_places (id, url, title) VALUES (2, 'https://example.com/', 'Example')`,
		`INSERT INTO moz_places (id, url, title) VALUES (3, 'https://news.example/', 'News')`,
		`INSERT INTO moz_bookmarks (type, fk, title) VALUES (1, 1, 'GitHub')`,
		`INSERT INTO moz_bookmarks (type, fk, title) VALUES (1, 2, 'Example')`,
		`INSERT INTO moz_historyvisits (place_id) VALUES (1), (1), (1), (1), (1)`,
		`INSERT INTO moz_historyvisits (place_id) VALUES (3), (3), (3)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("fixture stmt: %v", err)
		}
	}
}

// newTestApp wires an App to a manager over a fixture profile. The returned
// profile dir can be deleted to force rebuild failures.
func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	t.Setenv("FOXMARKS_HOME", t.TempDir())
	t.Setenv("FOXMARKS_PROFILE", "")
	config.ClearCache()
	t.Cleanup(config.ClearCache)

	dir := filepath.Join(t.TempDir(), "abc.default")
	seedProfile(t, dir)

	m := index.New(index.Settings{Profile: dir, Limit: 25})
	app := NewApp(m, &config.Config{Profile: dir, Limit: 25})
	t.Cleanup(func() {
		app.Close()
		m.Close()
	})

	app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return app, dir
}

// awaitBuild blocks until the manager reports a build matching ok, wrapped
// the way the running program would deliver it.
func awaitBuild(t *testing.T, app *App, ok func(index.BuildResult) bool) tea.Msg {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case res := <-app.manager.Updates():
			if ok(res) {
				return buildDoneMsg{res: res}
			}
		case <-deadline:
			t.Fatal("timed out waiting for build")
			return nil
		}
	}
}

func buildOK(res index.BuildResult) bool     { return res.Err == nil }
func buildFailed(res index.BuildResult) bool { return res.Err != nil }

func typeString(app *App, s string) {
	for _, r := range s {
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestApp_ViewBeforeFirstResize(t *testing.T) {
	app, _ := newTestApp(t)
	app.width = 0

	if view := app.View(); view != "Loading..." {
		t.Errorf("View() = %q, want Loading...", view)
	}
}

func TestApp_ViewTooSmall(t *testing.T) {
	app, _ := newTestApp(t)

	app.Update(tea.WindowSizeMsg{Width: 30, Height: 8})

	if view := app.View(); !strings.Contains(view, "Terminal too small") {
		t.Error("undersized terminal should show the size warning")
	}
}

func TestApp_WindowSizeCapsInputWidth(t *testing.T) {
	app, _ := newTestApp(t)

	app.Update(tea.WindowSizeMsg{Width: 200, Height: 50})
	if app.input.Width != 76 {
		t.Errorf("input.Width = %d, want capped at 76", app.input.Width)
	}

	app.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	if app.input.Width != 52 {
		t.Errorf("input.Width = %d, want 52", app.input.Width)
	}
}

func TestApp_InitialBuildFlow(t *testing.T) {
	app, _ := newTestApp(t)

	app.Init()
	if !app.building {
		t.Error("Init should mark the index as building")
	}

	view := app.View()
	if !strings.Contains(view, "Building index...") {
		t.Error("pre-build view should show the building hint")
	}

	app.Update(awaitBuild(t, app, buildOK))

	if app.building {
		t.Error("buildDoneMsg should clear building")
	}
	if !app.haveBuild {
		t.Error("buildDoneMsg should set haveBuild")
	}

	view = app.View()
	for _, elem := range []string{"Foxmarks", "GitHub", "Example", "2 records", "●", "Open", "Settings"} {
		if !strings.Contains(view, elem) {
			t.Errorf("post-build view should contain %q", elem)
		}
	}
}

func TestApp_TypeToFilter(t *testing.T) {
	app, _ := newTestApp(t)
	app.Init()
	app.Update(awaitBuild(t, app, buildOK))

	typeString(app, "git")

	if got := app.input.Value(); got != "git" {
		t.Fatalf("input value = %q, want git", got)
	}
	if len(app.results) != 1 {
		t.Fatalf("got %d results for 'git', want 1", len(app.results))
	}
	if app.results[0].Title != "GitHub" {
		t.Errorf("result = %q, want GitHub", app.results[0].Title)
	}

	view := app.View()
	if !strings.Contains(view, "1 shown") {
		t.Error("status line should show the match count while filtering")
	}

	typeString(app, "zzz")
	if len(app.results) != 0 {
		t.Fatalf("got %d results for 'gitzzz', want 0", len(app.results))
	}
	if view := app.View(); !strings.Contains(view, "No matches") {
		t.Error("empty match set should render No matches")
	}
}

func TestApp_EscClearsQueryThenQuits(t *testing.T) {
	app, _ := newTestApp(t)
	app.Init()
	app.Update(awaitBuild(t, app, buildOK))

	typeString(app, "git")

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if app.input.Value() != "" {
		t.Error("first esc should clear the query")
	}
	if cmd != nil {
		t.Error("first esc should not quit")
	}
	if len(app.results) != 2 {
		t.Errorf("cleared query should show all records, got %d", len(app.results))
	}

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("second esc should quit")
	}
	if _, isQuit := cmd().(tea.QuitMsg); !isQuit {
		t.Error("second esc should produce a QuitMsg")
	}
}

func TestApp_CursorNavigation(t *testing.T) {
	app, _ := newTestApp(t)
	app.results = []index.Result{
		{Title: "A", Kind: places.KindBookmark, Icon: "★"},
		{Title: "B", Kind: places.KindBookmark, Icon: "★"},
		{Title: "C", Kind: places.KindHistory, Icon: "○"},
	}

	app.Update(tea.KeyMsg{Type: tea.KeyDown})
	if app.cursor != 1 {
		t.Errorf("After down: cursor = %d, want 1", app.cursor)
	}

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlJ})
	if app.cursor != 2 {
		t.Errorf("After ctrl+j: cursor = %d, want 2", app.cursor)
	}

	app.Update(tea.KeyMsg{Type: tea.KeyDown})
	if app.cursor != 2 {
		t.Errorf("cursor moved past the last result: %d", app.cursor)
	}

	app.Update(tea.KeyMsg{Type: tea.KeyUp})
	if app.cursor != 1 {
		t.Errorf("After up: cursor = %d, want 1", app.cursor)
	}

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlK})
	app.Update(tea.KeyMsg{Type: tea.KeyCtrlK})
	if app.cursor != 0 {
		t.Errorf("cursor moved above the first result: %d", app.cursor)
	}

	app.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	if app.cursor != 2 {
		t.Errorf("After pgdown: cursor = %d, want 2", app.cursor)
	}

	app.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	if app.cursor != 0 {
		t.Errorf("After pgup: cursor = %d, want 0", app.cursor)
	}
}

func TestApp_SelectionGuards(t *testing.T) {
	app, _ := newTestApp(t)

	// No results at all
	if _, cmd := app.openSelected(); cmd != nil {
		t.Error("enter with no results should do nothing")
	}
	if cmd := app.copySelected(); cmd != nil {
		t.Error("copy with no results should do nothing")
	}

	// Placeholder row is not activatable
	app.results = []index.Result{{Title: "Bookmarks index unavailable", Placeholder: true}}
	app.cursor = 0
	if _, cmd := app.openSelected(); cmd != nil {
		t.Error("enter on the placeholder row should do nothing")
	}
	if cmd := app.copySelected(); cmd != nil {
		t.Error("copy on the placeholder row should do nothing")
	}
}

func TestApp_StaleAfterFailedRebuild(t *testing.T) {
	app, dir := newTestApp(t)
	app.Init()
	app.Update(awaitBuild(t, app, buildOK))

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	if !app.building {
		t.Error("ctrl+r should mark the index as building")
	}

	app.Update(awaitBuild(t, app, buildFailed))

	if app.indexState() != "stale" {
		t.Errorf("indexState = %q, want stale", app.indexState())
	}

	view := app.View()
	if !strings.Contains(view, "Rebuild failed, showing last known records") {
		t.Error("failed rebuild should flash a warning")
	}
	if !strings.Contains(view, "GitHub") {
		t.Error("previous records should survive a failed rebuild")
	}
	if !strings.Contains(view, "◐") {
		t.Error("status line should show the stale glyph")
	}
}

func TestApp_SettingsRoundTrip(t *testing.T) {
	app, _ := newTestApp(t)
	app.Init()
	app.Update(awaitBuild(t, app, buildOK))

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if !app.settings.IsVisible() {
		t.Fatal("ctrl+s should open the settings panel")
	}

	// Down to the history toggle, flip it
	app.Update(tea.KeyMsg{Type: tea.KeyDown})
	app.Update(tea.KeyMsg{Type: tea.KeySpace})

	if !app.cfg.IndexHistory {
		t.Error("toggled setting should be applied to the live config")
	}

	home := os.Getenv("FOXMARKS_HOME")
	if _, err := os.Stat(filepath.Join(home, config.FileName)); err != nil {
		t.Errorf("settings change should persist the config file: %v", err)
	}

	// The history toggle reindexes; wait so Close has nothing in flight
	awaitBuild(t, app, buildOK)

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if app.settings.IsVisible() {
		t.Error("esc should close the settings panel")
	}
}

func TestApp_FlashLifecycle(t *testing.T) {
	app, _ := newTestApp(t)

	app.setFlash("Copied URL via OSC52", false)
	if view := app.View(); !strings.Contains(view, "Copied URL via OSC52") {
		t.Error("flash message should appear in the status line")
	}

	// A stale timer must not clear a newer flash
	app.Update(flashClearMsg{id: app.flashID - 1})
	if app.flash == "" {
		t.Error("mismatched id should not clear the flash")
	}

	app.Update(flashClearMsg{id: app.flashID})
	if app.flash != "" {
		t.Error("matching id should clear the flash")
	}
}

func TestApp_HelpOverlay(t *testing.T) {
	app, _ := newTestApp(t)

	app.Update(tea.KeyMsg{Type: tea.KeyF1})
	if !app.help.IsVisible() {
		t.Fatal("f1 should open the help overlay")
	}
	if view := app.View(); !strings.Contains(view, "KEYBOARD SHORTCUTS") {
		t.Error("help overlay should take over the view")
	}

	app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if app.help.IsVisible() {
		t.Error("any non-scroll key should close the help overlay")
	}
}

func TestApp_LogOverlay(t *testing.T) {
	app, _ := newTestApp(t)

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	if !app.logs.IsVisible() {
		t.Fatal("ctrl+l should open the log overlay")
	}
	if view := app.View(); !strings.Contains(view, "RECENT LOG") {
		t.Error("log overlay should take over the view")
	}
}

func TestApp_RenderResultRow(t *testing.T) {
	app, _ := newTestApp(t)

	r := index.Result{
		Title:    "GitHub",
		Subtitle: "https://github.com/",
		Icon:     "★",
		Kind:     places.KindBookmark,
		Visits:   5,
	}

	row := app.renderResultRow(r, false)
	for _, elem := range []string{"★", "GitHub", "5", "https://github.com/"} {
		if !strings.Contains(row, elem) {
			t.Errorf("row should contain %q, got %q", elem, row)
		}
	}

	selected := app.renderResultRow(r, true)
	if !strings.Contains(selected, "›") {
		t.Error("selected row should carry the cursor prefix")
	}
}

func TestApp_RenderResultRow_TruncatesLongTitle(t *testing.T) {
	app, _ := newTestApp(t)
	app.width = 40

	r := index.Result{
		Title:    strings.Repeat("x", 100),
		Subtitle: "https://example.com/" + strings.Repeat("y", 100),
		Icon:     "★",
		Kind:     places.KindBookmark,
	}

	row := app.renderResultRow(r, false)
	if !strings.Contains(row, "…") {
		t.Error("overlong title should be truncated with an ellipsis")
	}
	for _, line := range strings.Split(row, "\n") {
		if w := len([]rune(line)); w > 120 {
			t.Errorf("row line unexpectedly wide: %d runes", w)
		}
	}
}

func TestApp_IndexStateMapping(t *testing.T) {
	app, _ := newTestApp(t)

	app.building = true
	if got := app.indexState(); got != "building" {
		t.Errorf("building: got %q", got)
	}

	app.building = false
	app.haveBuild = false
	if got := app.indexState(); got != "building" {
		t.Errorf("no build yet: got %q", got)
	}

	app.haveBuild = true
	app.lastBuild = index.BuildResult{Err: os.ErrNotExist}
	if got := app.indexState(); got != "error" {
		t.Errorf("failed with no cache: got %q", got)
	}

	app.lastBuild = index.BuildResult{}
	if got := app.indexState(); got != "empty" {
		t.Errorf("zero entries: got %q", got)
	}
}
