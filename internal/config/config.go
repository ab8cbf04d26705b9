package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	dark "github.com/thiagokokada/dark-mode-go"
)

// FileName is the TOML config file for user preferences
const FileName = "config.toml"

// Config represents user-facing configuration in TOML format
type Config struct {
	// Profile is the absolute path of the Firefox profile directory to index.
	// Empty means "auto": pick the most recently used profile at build time.
	Profile string `toml:"profile"`

	// IndexHistory includes browsing history in the index, not just bookmarks
	// Default: false
	IndexHistory bool `toml:"index_history"`

	// Limit caps the number of results returned per query
	// Default: 25 (applied via GetLimit, zero stays zero on disk)
	Limit int `toml:"limit"`

	// ProfilesDir overrides the platform default Firefox profile root
	// (e.g. ~/.mozilla/firefox). Empty means auto-detect.
	ProfilesDir string `toml:"profiles_dir"`

	// Theme sets the color scheme: "dark" (default), "light", or "system"
	Theme string `toml:"theme"`

	// Logs defines debug log settings
	Logs LogSettings `toml:"log"`
}

// LogSettings defines debug log configuration
type LogSettings struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `toml:"level"`

	// Format sets the log format: "json" (default) or "text"
	Format string `toml:"format"`

	// MaxSizeMB is the max size in MB for debug.log before rotation
	// Default: 10
	MaxSizeMB int `toml:"max_size_mb"`

	// MaxBackups is the number of rotated debug.log files to keep
	// Default: 5
	MaxBackups int `toml:"max_backups"`

	// MaxAgeDays is the number of days to keep rotated debug logs
	// Default: 10
	MaxAgeDays int `toml:"max_age_days"`

	// Compress enables gzip compression for rotated debug logs
	// Default: true
	Compress bool `toml:"compress"`
}

// GetLimit returns the result limit, defaulting to 25
func (c *Config) GetLimit() int {
	if c.Limit <= 0 {
		return 25
	}
	return c.Limit
}

// GetTheme returns the current theme, defaulting to "dark"
func (c *Config) GetTheme() string {
	switch c.Theme {
	case "dark", "light", "system":
		return c.Theme
	default:
		return "dark"
	}
}

// ResolveTheme resolves the configured theme to "dark" or "light".
// If theme is "system", detects the OS dark mode setting.
// Falls back to "dark" on detection failure.
func (c *Config) ResolveTheme() string {
	theme := c.GetTheme()
	if theme != "system" {
		return theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil {
		return "dark"
	}
	if isDark {
		return "dark"
	}
	return "light"
}

// Default config
var defaultConfig = Config{}

// Cache for config (loaded once per run)
var (
	configCache   *Config
	configCacheMu sync.RWMutex
)

// Dir returns the foxmarks state directory. FOXMARKS_HOME overrides the
// default of <user config dir>/foxmarks (e.g. ~/.config/foxmarks on Linux).
func Dir() (string, error) {
	if home := os.Getenv("FOXMARKS_HOME"); home != "" {
		return home, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(base, "foxmarks"), nil
}

// Path returns the path to the config file
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load loads the configuration from the TOML file.
// Returns defaults (auto profile, history disabled) when no file exists.
// Returns cached config after first load.
func Load() (*Config, error) {
	configCacheMu.RLock()
	if configCache != nil {
		defer configCacheMu.RUnlock()
		return configCache, nil
	}
	configCacheMu.RUnlock()

	configCacheMu.Lock()
	defer configCacheMu.Unlock()

	// Double-check after acquiring write lock
	if configCache != nil {
		return configCache, nil
	}

	configPath, err := Path()
	if err != nil {
		cfg := defaultConfig
		configCache = &cfg
		return configCache, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// No file yet: defaults
		cfg := defaultConfig
		configCache = &cfg
		return configCache, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		// Return error so the caller can surface it; cache defaults to
		// prevent repeated parse attempts.
		def := defaultConfig
		configCache = &def
		return configCache, fmt.Errorf("config.toml parse error: %w", err)
	}

	configCache = &cfg
	return configCache, nil
}

// Reload forces a reload of the config
func Reload() (*Config, error) {
	configCacheMu.Lock()
	configCache = nil
	configCacheMu.Unlock()
	return Load()
}

// Save writes the config to config.toml using the atomic write pattern:
// write to a temp file with 0600 permissions, fsync, then rename over the
// final path so a crash mid-save never corrupts the previous file.
// Clears the cache so the next Load() reads fresh values.
func Save(cfg *Config) error {
	configPath, err := Path()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Build config content in memory first
	var buf bytes.Buffer
	buf.WriteString("# foxmarks configuration\n")
	buf.WriteString("# Edit this file or use Settings (ctrl+s) in the TUI\n\n")

	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := configPath + ".tmp"

	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// fsync before rename so the data is on disk when the name flips
	if err := syncFile(tmpPath); err != nil {
		// Rename alone still gives crash consistency for the old file
		_ = err
	}

	if err := os.Rename(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}

	ClearCache()

	return nil
}

// syncFile calls fsync on a file to ensure data is written to disk
func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// ClearCache clears the cached config, allowing tests to reset state.
// This does NOT reload - the next Load() call will read fresh from disk.
func ClearCache() {
	configCacheMu.Lock()
	configCache = nil
	configCacheMu.Unlock()
}

// CreateExample creates a commented example config file if none exists
func CreateExample() error {
	configPath, err := Path()
	if err != nil {
		return err
	}

	// Don't overwrite existing config
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	exampleConfig := `# foxmarks configuration
# This file is loaded on startup. Edit it here or through the in-app
# settings panel (ctrl+s), which rewrites this file.

# Firefox profile directory to index.
# Empty or omitted = auto: the most recently used profile wins.
# profile = "/home/you/.mozilla/firefox/abcd1234.default-release"

# Also index browsing history, not just bookmarks (default: false)
# index_history = true

# Maximum results shown per query (default: 25)
# limit = 25

# Override the Firefox profile root when it lives somewhere unusual
# (default: auto-detect ~/.mozilla/firefox and friends)
# profiles_dir = "/home/you/.mozilla/firefox"

# Color scheme: "dark" (default), "light", or "system"
# theme = "system"

# Debug log settings. Logs are written only when FOXMARKS_DEBUG is set.
# [log]
# level = "info"        # debug, info, warn, error
# format = "json"       # json or text
# max_size_mb = 10      # rotate debug.log beyond this size
# max_backups = 5       # rotated files to keep
# max_age_days = 10     # days to keep rotated files
# compress = true       # gzip rotated files
`

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	return os.WriteFile(configPath, []byte(exampleConfig), 0o600)
}
