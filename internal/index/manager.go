// Package index maintains the in-memory record set behind the query box.
// Rebuilds happen on activation, explicit refresh, settings changes, and
// browser-side database writes; never on a keystroke. Readers are lock-free:
// the record set lives behind an atomic pointer and is swapped whole, so a
// query sees either the previous complete set or the new one.
package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/halfdome/foxmarks/internal/logging"
	"github.com/halfdome/foxmarks/internal/places"
	"github.com/halfdome/foxmarks/internal/platform"
	"github.com/halfdome/foxmarks/internal/profile"
	"github.com/halfdome/foxmarks/internal/search"
	"github.com/halfdome/foxmarks/internal/snapshot"
)

var indexLog = logging.ForComponent(logging.CompIndex)

// Settings is the slice of configuration the manager acts on.
type Settings struct {
	Profile        string // absolute dir or profile name; "" = auto
	ProfilesDir    string // profile root override; "" = per-OS default
	IncludeHistory bool
	Limit          int // max results per query; <= 0 unlimited
}

// Result is one display row for the query view. The placeholder row (shown
// only when there has never been a successful build) carries no URL.
type Result struct {
	Title       string
	Subtitle    string
	Icon        string
	URL         string
	Kind        places.Kind
	Visits      int64
	Placeholder bool
}

// BuildResult describes a finished rebuild, delivered via Updates.
type BuildResult struct {
	Profile string // label of the profile that was indexed
	Entries int
	Err     error
	Elapsed time.Duration
}

// Kind icons. Lookup never fails: unknown kinds get the generic glyph.
const (
	iconBookmark = "★"
	iconHistory  = "○"
	iconGeneric  = "•"
)

func iconFor(kind places.Kind) string {
	switch kind {
	case places.KindBookmark:
		return iconBookmark
	case places.KindHistory:
		return iconHistory
	default:
		return iconGeneric
	}
}

// debounceDelay is how long after the last database event a rebuild fires.
// Firefox batches WAL writes, so bursts are common.
const debounceDelay = 500 * time.Millisecond

// Manager owns the cached record set and its rebuild lifecycle.
type Manager struct {
	mu         sync.RWMutex
	settings   Settings
	locator    *profile.Locator
	active     profile.Profile // last successfully indexed profile
	watchedDir string
	firstFail  error // set when no build ever succeeded

	entries   atomic.Pointer[[]places.Entry]
	everBuilt atomic.Bool

	// gen identifies the newest rebuild request; a finished build whose
	// generation is older is discarded (latest request wins).
	gen atomic.Uint64

	triggerCh chan struct{}
	updates   chan BuildResult

	watcher *fsnotify.Watcher
	limiter *rate.Limiter

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a Manager and starts its rebuild worker. No build runs until
// Activate.
func New(settings Settings) *Manager {
	m := &Manager{
		settings:  settings,
		triggerCh: make(chan struct{}, 1),
		updates:   make(chan BuildResult, 1),
		closeCh:   make(chan struct{}),
		// One watcher-driven rebuild per 10s, small burst for the
		// first events after a quiet period.
		limiter: rate.NewLimiter(rate.Every(10*time.Second), 2),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		indexLog.Warn("change detection unavailable", slog.String("error", err.Error()))
	} else {
		m.watcher = watcher
		m.wg.Add(1)
		go m.watcherLoop()
	}

	m.wg.Add(1)
	go m.workerLoop()
	return m
}

// Activate requests the initial build. Called once when the UI comes up.
func (m *Manager) Activate() {
	m.trigger("activate")
}

// Refresh requests a rebuild on explicit user demand.
func (m *Manager) Refresh() {
	m.trigger("refresh")
}

// SettingsChanged applies new settings. Changes that affect the record set
// (profile, root, history toggle) request a rebuild; a pure display change
// like the result limit does not.
func (m *Manager) SettingsChanged(s Settings) {
	m.mu.Lock()
	old := m.settings
	m.settings = s
	m.mu.Unlock()

	if old.Profile != s.Profile || old.ProfilesDir != s.ProfilesDir || old.IncludeHistory != s.IncludeHistory {
		m.trigger("settings")
	}
}

// Updates returns a buffered, latest-wins channel of build outcomes. The
// channel is never closed; select against your own done signal.
func (m *Manager) Updates() <-chan BuildResult {
	return m.updates
}

// Query ranks the current record set for the query text. Pure in-memory
// work, safe to call on every keystroke; it never touches the database or
// blocks on a rebuild.
func (m *Manager) Query(text string) []Result {
	set := m.entries.Load()
	if set == nil {
		return m.placeholder()
	}

	m.mu.RLock()
	limit := m.settings.Limit
	m.mu.RUnlock()

	matched := search.Run(text, *set, limit)
	logging.Aggregate(logging.CompIndex, "query", slog.Int("results", len(matched)))

	return lo.Map(matched, func(e places.Entry, _ int) Result {
		return Result{
			Title:    e.Title,
			Subtitle: e.URL,
			Icon:     iconFor(e.Kind),
			URL:      e.URL,
			Kind:     e.Kind,
			Visits:   e.VisitCount,
		}
	})
}

// placeholder returns the explanatory row shown when the first build ever
// has failed, or nothing while the initial build is still running.
func (m *Manager) placeholder() []Result {
	m.mu.RLock()
	firstFail := m.firstFail
	m.mu.RUnlock()

	if firstFail == nil {
		return nil
	}
	return []Result{{
		Title:       "Bookmarks index unavailable",
		Subtitle:    firstFail.Error() + " (ctrl+r retries, ctrl+l shows the log)",
		Icon:        iconGeneric,
		Placeholder: true,
	}}
}

// Entries returns the size of the current record set.
func (m *Manager) Entries() int {
	set := m.entries.Load()
	if set == nil {
		return 0
	}
	return len(*set)
}

// ActiveProfile returns the profile behind the current record set.
func (m *Manager) ActiveProfile() profile.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Profiles lists the selectable profiles for the settings panel.
func (m *Manager) Profiles() ([]profile.Profile, error) {
	m.mu.RLock()
	dir := m.settings.ProfilesDir
	m.mu.RUnlock()

	loc, err := m.ensureLocator(dir)
	if err != nil {
		return nil, err
	}
	return loc.List()
}

// Close stops the worker and the watcher. Idempotent.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.closeCh)
		if m.watcher != nil {
			m.watcher.Close()
		}
	})
	m.wg.Wait()
	return nil
}

// trigger bumps the generation and pokes the worker. The channel holds at
// most one pending poke; triggers during a build coalesce into one rebuild.
func (m *Manager) trigger(reason string) {
	gen := m.gen.Add(1)
	select {
	case m.triggerCh <- struct{}{}:
	default:
	}
	indexLog.Debug("rebuild requested", slog.String("reason", reason), slog.Uint64("gen", gen))
}

func (m *Manager) workerLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.closeCh:
			return
		case <-m.triggerCh:
			m.build()
		}
	}
}

// build runs one rebuild cycle: resolve profile, snapshot, extract, swap.
// Every error is downgraded to a warning and the previous set stays live;
// only a failure with no prior cache surfaces to the user, as the
// placeholder row.
func (m *Manager) build() {
	gen := m.gen.Load()
	start := time.Now()

	m.mu.RLock()
	s := m.settings
	m.mu.RUnlock()

	prof, entries, err := m.buildOnce(s)
	elapsed := time.Since(start)

	if err != nil {
		indexLog.Warn("rebuild failed, keeping previous records",
			slog.String("error", err.Error()),
			slog.Bool("have_cache", m.everBuilt.Load()))
		if !m.everBuilt.Load() {
			m.mu.Lock()
			m.firstFail = err
			m.mu.Unlock()
		}
		m.notify(BuildResult{Err: err, Elapsed: elapsed, Entries: m.Entries()})
		return
	}

	m.mu.Lock()
	if m.gen.Load() != gen {
		m.mu.Unlock()
		logging.Aggregate(logging.CompIndex, "rebuild_discarded")
		return
	}
	m.entries.Store(&entries)
	m.everBuilt.Store(true)
	m.firstFail = nil
	m.active = prof
	m.mu.Unlock()

	m.rearmWatcher(prof.Dir)

	indexLog.Info("rebuild done",
		slog.String("profile", prof.Label),
		slog.Int("entries", len(entries)),
		slog.Int64("elapsed_ms", elapsed.Milliseconds()))
	m.notify(BuildResult{Profile: prof.Label, Entries: len(entries), Elapsed: elapsed})
}

// buildOnce produces a fresh record set. The snapshot is closed on every
// path out of here.
func (m *Manager) buildOnce(s Settings) (profile.Profile, []places.Entry, error) {
	prof, err := m.resolveProfile(s)
	if err != nil {
		return profile.Profile{}, nil, err
	}

	snap, err := snapshot.Take(prof.Dir)
	if err != nil {
		return profile.Profile{}, nil, err
	}
	defer snap.Close()

	entries, err := places.Extract(snap.DB(), s.IncludeHistory)
	if err != nil {
		return profile.Profile{}, nil, err
	}
	return prof, entries, nil
}

// resolveProfile finds the profile to index. An absolute profile path works
// even when no standard root exists on the system.
func (m *Manager) resolveProfile(s Settings) (profile.Profile, error) {
	loc, rootErr := m.ensureLocator(s.ProfilesDir)
	if rootErr != nil {
		want := os.Getenv("FOXMARKS_PROFILE")
		if want == "" {
			want = s.Profile
		}
		if filepath.IsAbs(want) {
			return profile.At(want)
		}
		return profile.Profile{}, rootErr
	}
	return loc.Resolve(s.Profile)
}

// ensureLocator returns the shared locator, rebuilt when the root changed.
// Shared so a settings-panel scan and a rebuild resolve coalesce.
func (m *Manager) ensureLocator(profilesDir string) (*profile.Locator, error) {
	root, err := profile.FindRoot(profilesDir)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locator == nil || m.locator.Root() != root {
		m.locator = profile.New(root)
	}
	return m.locator, nil
}

// rearmWatcher points change detection at the active profile directory.
// Watching the directory rather than the file survives checkpoint renames.
func (m *Manager) rearmWatcher(dir string) {
	if m.watcher == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if dir == m.watchedDir {
		return
	}

	if warning := platform.CheckFsnotifySupport(dir); warning != "" {
		indexLog.Warn("change detection disabled", slog.String("reason", warning))
		return
	}

	if m.watchedDir != "" {
		_ = m.watcher.Remove(m.watchedDir)
	}
	if err := m.watcher.Add(dir); err != nil {
		indexLog.Warn("watch failed", slog.String("dir", dir), slog.String("error", err.Error()))
		return
	}
	m.watchedDir = dir
	indexLog.Debug("watching profile", slog.String("dir", dir))
}

// watcherLoop turns browser-side writes to the places database into refresh
// triggers: debounced per file, then throttled so a busy browser cannot
// thrash the index.
func (m *Manager) watcherLoop() {
	defer m.wg.Done()

	debounce := make(map[string]*time.Timer)
	var debounceMu sync.Mutex

	for {
		select {
		case <-m.closeCh:
			debounceMu.Lock()
			for _, timer := range debounce {
				timer.Stop()
			}
			debounceMu.Unlock()
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			if !strings.HasPrefix(base, "places.sqlite") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			debounceMu.Lock()
			if timer, exists := debounce[event.Name]; exists {
				timer.Stop()
			}
			debounce[event.Name] = time.AfterFunc(debounceDelay, func() {
				debounceMu.Lock()
				delete(debounce, event.Name)
				debounceMu.Unlock()

				if !m.limiter.Allow() {
					logging.Aggregate(logging.CompIndex, "rebuild_throttled")
					return
				}
				m.trigger("places_changed")
			})
			debounceMu.Unlock()

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			indexLog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// notify delivers a build outcome, replacing any undelivered one. The UI
// only ever cares about the newest.
func (m *Manager) notify(res BuildResult) {
	for {
		select {
		case m.updates <- res:
			return
		default:
			select {
			case <-m.updates:
			default:
			}
		}
	}
}
