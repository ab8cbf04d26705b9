package profile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Resolve picks the profile to index.
// Priority order:
// 1. FOXMARKS_PROFILE environment variable (explicit override)
// 2. The configured profile (absolute directory or name under the root)
// 3. Auto: the most recently used profile under the root
func (l *Locator) Resolve(configured string) (Profile, error) {
	want := os.Getenv("FOXMARKS_PROFILE")
	if want == "" {
		want = configured
	}

	if want == "" {
		profiles, err := l.List()
		if err != nil {
			return Profile{}, err
		}
		return ResolveDefault(profiles)
	}

	if filepath.IsAbs(want) {
		return At(want)
	}

	profiles, err := l.List()
	if err != nil {
		return Profile{}, err
	}
	for _, p := range profiles {
		if p.Name == want {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("profile: %q not found under %s: %w", want, l.root, ErrNoProfiles)
}

// At returns the profile at an explicit directory, verifying the marker file.
func At(dir string) (Profile, error) {
	fi, err := os.Stat(filepath.Join(dir, MarkerFile))
	if err != nil {
		return Profile{}, fmt.Errorf("profile: %s: %w", dir, ErrNoProfiles)
	}
	name := filepath.Base(dir)
	return Profile{Name: name, Dir: dir, Label: name, LastUsed: fi.ModTime()}, nil
}
