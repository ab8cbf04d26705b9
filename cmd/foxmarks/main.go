package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/halfdome/foxmarks/internal/config"
	"github.com/halfdome/foxmarks/internal/index"
	"github.com/halfdome/foxmarks/internal/logging"
	"github.com/halfdome/foxmarks/internal/profile"
	"github.com/halfdome/foxmarks/internal/ui"
)

const Version = "0.3.1"

// Table column widths for profiles command output
const (
	tableColName = 34
	tableColUsed = 17
)

// init sets up color profile for consistent terminal colors across environments
func init() {
	initColorProfile()
}

// initColorProfile configures lipgloss color profile based on terminal capabilities.
// Prefers TrueColor for best visuals, falls back to ANSI256 for compatibility.
func initColorProfile() {
	// Allow user override via environment variable
	// FOXMARKS_COLOR: truecolor, 256, 16, none
	if colorEnv := os.Getenv("FOXMARKS_COLOR"); colorEnv != "" {
		switch strings.ToLower(colorEnv) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
			return
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
			return
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
	}

	// Explicit TrueColor support
	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	// Check TERM for capability hints
	term := os.Getenv("TERM")

	// Known TrueColor-capable terminals
	trueColorTerms := []string{
		"xterm-256color",
		"screen-256color",
		"tmux-256color",
		"xterm-direct",
		"alacritty",
		"kitty",
		"wezterm",
	}
	for _, t := range trueColorTerms {
		if strings.Contains(term, t) || term == t {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}

	// Check for common terminal emulators via env vars
	if os.Getenv("WT_SESSION") != "" || // Windows Terminal
		os.Getenv("ITERM_SESSION_ID") != "" || // iTerm2
		os.Getenv("TERMINAL_EMULATOR") != "" || // JetBrains terminals
		os.Getenv("KONSOLE_VERSION") != "" { // Konsole
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	// Fallback: ANSI256 works in SSH, basic terminals, and older emulators
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	args := os.Args[1:]

	// Handle subcommands
	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("foxmarks v%s\n", Version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "profiles":
			handleProfiles(args[1:])
			return
		case "config":
			handleConfig(args[1:])
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
			printHelp()
			os.Exit(1)
		}
	}

	// The search box needs a real terminal; everything scriptable has a
	// subcommand instead.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: stdout is not a terminal.")
		fmt.Fprintln(os.Stderr, "Use 'foxmarks profiles' or 'foxmarks config path' for scriptable output.")
		os.Exit(1)
	}

	// First run: drop a commented example config next to the logs
	if err := config.CreateExample(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not write example config: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		// A broken config file is not fatal: the index comes up on defaults
		// and the settings panel rewrites the file on the next save.
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}

	setupLogging(cfg)
	defer logging.Shutdown()

	ui.SetVersion(Version)
	ui.InitTheme(cfg.ResolveTheme())

	manager := index.New(index.Settings{
		Profile:        cfg.Profile,
		ProfilesDir:    cfg.ProfilesDir,
		IncludeHistory: cfg.IndexHistory,
		Limit:          cfg.GetLimit(),
	})
	defer manager.Close()

	app := ui.NewApp(manager, cfg)
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())

	// SIGTERM lands as a clean quit so the deferred cleanup runs
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging wires structured logging. With FOXMARKS_DEBUG set, JSONL logs
// land in the state directory with rotation; without it only the in-memory
// ring buffer is kept (ctrl+l reads it), so the terminal is never disturbed.
func setupLogging(cfg *config.Config) {
	debugMode := os.Getenv("FOXMARKS_DEBUG") != ""

	baseDir, err := config.Dir()
	if err != nil {
		logging.Init(logging.Config{Debug: debugMode})
		return
	}

	logCfg := logging.Config{
		Debug:                 debugMode,
		LogDir:                baseDir,
		Level:                 "debug",
		Format:                "json",
		MaxSizeMB:             10,
		MaxBackups:            5,
		MaxAgeDays:            10,
		Compress:              true,
		RingBufferSize:        1024 * 1024,
		AggregateIntervalSecs: 30,
	}

	// Override defaults from user config if set
	ls := cfg.Logs
	if ls.Level != "" {
		logCfg.Level = ls.Level
	}
	if ls.Format != "" {
		logCfg.Format = ls.Format
	}
	if ls.MaxSizeMB > 0 {
		logCfg.MaxSizeMB = ls.MaxSizeMB
	}
	if ls.MaxBackups > 0 {
		logCfg.MaxBackups = ls.MaxBackups
	}
	if ls.MaxAgeDays > 0 {
		logCfg.MaxAgeDays = ls.MaxAgeDays
	}
	if ls.Compress {
		logCfg.Compress = true
	}

	logging.Init(logCfg)

	if debugMode {
		logging.ForComponent(logging.CompUI).Info("started",
			slog.Int("pid", os.Getpid()),
			slog.String("version", Version))
	}

	// SIGUSR1 dumps the ring buffer for post-mortem debugging
	usr1Chan := make(chan os.Signal, 1)
	signal.Notify(usr1Chan, syscall.SIGUSR1)
	go func() {
		for range usr1Chan {
			dumpPath := filepath.Join(baseDir, fmt.Sprintf("ring-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(dumpPath); err != nil {
				logging.ForComponent(logging.CompUI).Error("ring_dump_failed",
					slog.String("error", err.Error()))
			} else {
				logging.ForComponent(logging.CompUI).Info("ring_dump_written",
					slog.String("path", dumpPath))
			}
		}
	}()
}

func printHelp() {
	fmt.Printf("foxmarks v%s\n", Version)
	fmt.Println("Incremental search over Firefox bookmarks and history")
	fmt.Println()
	fmt.Println("Usage: foxmarks [command]")
	fmt.Println()
	fmt.Println("Running without a command opens the search box.")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  profiles          List detected Firefox profiles")
	fmt.Println("  config path       Print the config file location")
	fmt.Println("  config init       Write a commented example config")
	fmt.Println("  version           Print the version")
	fmt.Println("  help              Show this help")
	fmt.Println()
	fmt.Println("Keys in the search box:")
	fmt.Println("  type              Filter as you type")
	fmt.Println("  enter             Open the selected URL in the browser")
	fmt.Println("  ctrl+y            Copy the selected URL")
	fmt.Println("  ctrl+r            Rebuild the index")
	fmt.Println("  ctrl+s            Settings (profile, history, theme)")
	fmt.Println("  ctrl+l            Recent log lines")
	fmt.Println("  f1                Full shortcut list")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  FOXMARKS_HOME     Override the config and log directory")
	fmt.Println("  FOXMARKS_PROFILE  Force a profile directory for this run")
	fmt.Println("  FOXMARKS_DEBUG    Write JSONL debug logs to the state directory")
	fmt.Println("  FOXMARKS_COLOR    truecolor, 256, 16, or none")
}

// handleProfiles lists every detected Firefox profile
func handleProfiles(args []string) {
	fs := flag.NewFlagSet("profiles", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Println("Usage: foxmarks profiles [options]")
		fmt.Println()
		fmt.Println("List detected Firefox profiles, most recently used first marked with *.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  foxmarks profiles")
		fmt.Println("  foxmarks profiles --json")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}

	root, err := profile.FindRoot(cfg.ProfilesDir)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	profiles, err := profile.New(root).List()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	def, _ := profile.ResolveDefault(profiles)

	if *jsonOutput {
		output, err := profilesJSON(profiles, def.Dir)
		if err != nil {
			fmt.Printf("Error: failed to format JSON output: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(output))
		return
	}

	fmt.Print(renderProfilesTable(root, profiles, def.Dir))
}

// profilesJSON formats the profile list for scripting
func profilesJSON(profiles []profile.Profile, defaultDir string) ([]byte, error) {
	type profileJSON struct {
		Name      string    `json:"name"`
		Label     string    `json:"label"`
		Dir       string    `json:"dir"`
		LastUsed  time.Time `json:"last_used"`
		IsDefault bool      `json:"is_default"`
	}
	out := make([]profileJSON, len(profiles))
	for i, p := range profiles {
		out[i] = profileJSON{
			Name:      p.Name,
			Label:     p.Label,
			Dir:       p.Dir,
			LastUsed:  p.LastUsed,
			IsDefault: p.Dir == defaultDir,
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// renderProfilesTable formats the profile list as a table
func renderProfilesTable(root string, profiles []profile.Profile, defaultDir string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile root: %s\n\n", root)
	fmt.Fprintf(&b, "  %-*s %-*s %s\n", tableColName, "NAME", tableColUsed, "LAST USED", "LABEL")
	b.WriteString("  " + strings.Repeat("-", tableColName+tableColUsed+20) + "\n")
	for _, p := range profiles {
		mark := " "
		if p.Dir == defaultDir {
			mark = "*"
		}
		label := ""
		if p.Label != p.Name {
			label = p.Label
		}
		fmt.Fprintf(&b, "%s %-*s %-*s %s\n",
			mark,
			tableColName, truncate(p.Name, tableColName),
			tableColUsed, p.LastUsed.Format("2006-01-02 15:04"),
			label)
	}
	fmt.Fprintf(&b, "\nTotal: %d profiles (* = most recently used)\n", len(profiles))
	return b.String()
}

// handleConfig prints or initializes the config file
func handleConfig(args []string) {
	sub := "path"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "path":
		p, err := config.Path()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(p)

	case "init":
		p, err := config.Path()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if _, err := os.Stat(p); err == nil {
			fmt.Printf("Config already exists: %s\n", p)
			return
		}
		if err := config.CreateExample(); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created %s\n", p)

	default:
		fmt.Fprintf(os.Stderr, "Unknown config command: %s\n", sub)
		fmt.Println()
		fmt.Println("Usage: foxmarks config <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  path    Print the config file location")
		fmt.Println("  init    Write a commented example config")
		os.Exit(1)
	}
}

// truncate shortens a string to max characters with ellipsis
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
