// Package profile locates Firefox profile directories and picks the one to
// index. A directory counts as a profile when it contains the places database;
// friendly names come from profiles.ini when available.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/ini.v1"

	"github.com/halfdome/foxmarks/internal/logging"
	"github.com/halfdome/foxmarks/internal/platform"
)

// MarkerFile is the database file whose presence marks a profile directory.
const MarkerFile = "places.sqlite"

// ErrNoProfiles indicates that no profile directory could be found: the root
// is absent, empty, or none of its subdirectories carry the marker file.
var ErrNoProfiles = fmt.Errorf("no browser profiles found")

// Profile is one Firefox profile directory.
type Profile struct {
	Name     string    // directory base name, e.g. "abcd1234.default-release"
	Dir      string    // absolute path to the profile directory
	Label    string    // friendly name from profiles.ini, or Name
	LastUsed time.Time // mtime of the places database
}

// Locator scans a profile root directory. Concurrent List calls coalesce via
// singleflight and hit a short-lived cache, so the settings panel opening
// while a rebuild resolves its profile costs one directory walk, not two.
type Locator struct {
	root string

	group singleflight.Group

	mu       sync.Mutex
	cached   []Profile
	cachedAt time.Time
}

// cacheTTL bounds how stale a cached scan may be. Profile directories change
// rarely (browser install/remove), so a couple of seconds is plenty.
const cacheTTL = 2 * time.Second

// New returns a Locator scanning the given root directory.
func New(root string) *Locator {
	return &Locator{root: root}
}

// Root returns the directory this locator scans.
func (l *Locator) Root() string {
	return l.root
}

// FindRoot resolves the profile root directory. A non-empty override wins;
// otherwise the first existing per-OS candidate is used. Returns
// ErrNoProfiles when nothing exists.
func FindRoot(override string) (string, error) {
	if override != "" {
		if fi, err := os.Stat(override); err == nil && fi.IsDir() {
			return override, nil
		}
		return "", fmt.Errorf("profile: configured root %s: %w", override, ErrNoProfiles)
	}
	for _, cand := range platform.ProfileRoots() {
		if fi, err := os.Stat(cand); err == nil && fi.IsDir() {
			return cand, nil
		}
	}
	return "", fmt.Errorf("profile: no profile root on this system: %w", ErrNoProfiles)
}

// List returns every profile under the root, sorted by name. Absent or empty
// root, or a root without a single marker-bearing subdirectory, yields an
// error wrapping ErrNoProfiles. The scan is read-only.
func (l *Locator) List() ([]Profile, error) {
	l.mu.Lock()
	if l.cached != nil && time.Since(l.cachedAt) < cacheTTL {
		out := make([]Profile, len(l.cached))
		copy(out, l.cached)
		l.mu.Unlock()
		return out, nil
	}
	l.mu.Unlock()

	v, err, _ := l.group.Do("list", func() (interface{}, error) {
		// Another caller may have refreshed the cache while we waited
		// on the flight group.
		l.mu.Lock()
		if l.cached != nil && time.Since(l.cachedAt) < cacheTTL {
			cached := l.cached
			l.mu.Unlock()
			return cached, nil
		}
		l.mu.Unlock()

		profiles, err := scan(l.root)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.cached = profiles
		l.cachedAt = time.Now()
		l.mu.Unlock()
		return profiles, nil
	})
	if err != nil {
		return nil, err
	}

	profiles := v.([]Profile)
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out, nil
}

// Invalidate drops the cached scan so the next List hits the filesystem.
func (l *Locator) Invalidate() {
	l.mu.Lock()
	l.cached = nil
	l.mu.Unlock()
}

// ResolveDefault picks the profile the browser used most recently: newest
// marker mtime, ties broken by lexicographically smallest name.
func ResolveDefault(profiles []Profile) (Profile, error) {
	if len(profiles) == 0 {
		return Profile{}, fmt.Errorf("profile: resolve default: %w", ErrNoProfiles)
	}
	best := profiles[0]
	for _, p := range profiles[1:] {
		if p.LastUsed.After(best.LastUsed) {
			best = p
			continue
		}
		if p.LastUsed.Equal(best.LastUsed) && p.Name < best.Name {
			best = p
		}
	}
	return best, nil
}

func scan(root string) ([]Profile, error) {
	log := logging.ForComponent(logging.CompProfile)

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("profile: root %s: %w", root, ErrNoProfiles)
	}

	labels := loadLabels(root)

	var profiles []Profile
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		fi, err := os.Stat(filepath.Join(dir, MarkerFile))
		if err != nil {
			continue
		}
		p := Profile{
			Name:     e.Name(),
			Dir:      dir,
			Label:    labels[e.Name()],
			LastUsed: fi.ModTime(),
		}
		if p.Label == "" {
			p.Label = p.Name
		}
		profiles = append(profiles, p)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("profile: nothing under %s carries %s: %w", root, MarkerFile, ErrNoProfiles)
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })

	log.Debug("profile scan", "root", root, "count", len(profiles))
	return profiles, nil
}

// loadLabels maps profile directory names to their profiles.ini Name= values.
// Firefox keeps profiles.ini next to the profile directories on Linux, one
// level above them on macOS and Windows; both spots are tried. Any failure
// degrades to an empty map: labels are cosmetic, the marker scan is
// authoritative.
func loadLabels(root string) map[string]string {
	for _, dir := range []string{root, filepath.Dir(root)} {
		cfg, err := ini.Load(filepath.Join(dir, "profiles.ini"))
		if err != nil {
			continue
		}
		labels := make(map[string]string)
		for _, sec := range cfg.Sections() {
			if !strings.HasPrefix(sec.Name(), "Profile") {
				continue
			}
			name := sec.Key("Name").String()
			path := sec.Key("Path").String()
			if name == "" || path == "" {
				continue
			}
			labels[filepath.Base(path)] = name
		}
		if len(labels) > 0 {
			return labels
		}
	}
	return nil
}
