package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// currentTheme holds the active theme (set at init)
var currentTheme Theme = ThemeDark

// Dark Theme - Tokyo Night
var darkColors = struct {
	Bg, Surface, Border, Text, TextDim  lipgloss.Color
	Accent, Purple, Cyan, Green, Yellow lipgloss.Color
	Orange, Red, Comment                lipgloss.Color
}{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Purple:  lipgloss.Color("#bb9af7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Orange:  lipgloss.Color("#ff9e64"),
	Red:     lipgloss.Color("#f7768e"),
	Comment: lipgloss.Color("#787fa0"),
}

// Light Theme - Tokyo Night Light variant
var lightColors = struct {
	Bg, Surface, Border, Text, TextDim  lipgloss.Color
	Accent, Purple, Cyan, Green, Yellow lipgloss.Color
	Orange, Red, Comment                lipgloss.Color
}{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Purple:  lipgloss.Color("#7847bd"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Orange:  lipgloss.Color("#965027"),
	Red:     lipgloss.Color("#8c4351"),
	Comment: lipgloss.Color("#6a6d7c"),
}

// Active color variables (set by InitTheme)
var (
	ColorBg      lipgloss.Color
	ColorSurface lipgloss.Color
	ColorBorder  lipgloss.Color
	ColorText    lipgloss.Color
	ColorTextDim lipgloss.Color
	ColorAccent  lipgloss.Color
	ColorPurple  lipgloss.Color
	ColorCyan    lipgloss.Color
	ColorGreen   lipgloss.Color
	ColorYellow  lipgloss.Color
	ColorOrange  lipgloss.Color
	ColorRed     lipgloss.Color
	ColorComment lipgloss.Color
)

// themeMu protects global color/style variables during live theme switches.
// Write lock held by InitTheme; read lock held by GetKindStyle (map access).
var themeMu sync.RWMutex

// InitTheme sets the active color palette based on theme name
// Must be called before any UI rendering
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	if theme == "light" {
		currentTheme = ThemeLight
		ColorBg = lightColors.Bg
		ColorSurface = lightColors.Surface
		ColorBorder = lightColors.Border
		ColorText = lightColors.Text
		ColorTextDim = lightColors.TextDim
		ColorAccent = lightColors.Accent
		ColorPurple = lightColors.Purple
		ColorCyan = lightColors.Cyan
		ColorGreen = lightColors.Green
		ColorYellow = lightColors.Yellow
		ColorOrange = lightColors.Orange
		ColorRed = lightColors.Red
		ColorComment = lightColors.Comment
	} else {
		currentTheme = ThemeDark
		ColorBg = darkColors.Bg
		ColorSurface = darkColors.Surface
		ColorBorder = darkColors.Border
		ColorText = darkColors.Text
		ColorTextDim = darkColors.TextDim
		ColorAccent = darkColors.Accent
		ColorPurple = darkColors.Purple
		ColorCyan = darkColors.Cyan
		ColorGreen = darkColors.Green
		ColorYellow = darkColors.Yellow
		ColorOrange = darkColors.Orange
		ColorRed = darkColors.Red
		ColorComment = darkColors.Comment
	}
	// Reinitialize styles with new colors
	initStyles()
}

// GetCurrentTheme returns the active theme
func GetCurrentTheme() Theme {
	return currentTheme
}

func init() {
	// Default to dark theme at package init
	InitTheme("dark")
}

// Base Styles
var (
	TitleStyle   lipgloss.Style
	DimStyle     lipgloss.Style
	ErrorStyle   lipgloss.Style
	SuccessStyle lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
)

// Index Status Indicator Styles
var (
	ReadyStyle          lipgloss.Style
	BuildingStyle       lipgloss.Style
	EmptyStyle          lipgloss.Style
	ErrorIndicatorStyle lipgloss.Style
)

// Menu Bar Styles
var (
	MenuBarStyle       lipgloss.Style
	MenuKeyStyle       lipgloss.Style
	MenuDescStyle      lipgloss.Style
	MenuSeparatorStyle lipgloss.Style
)

// Query Box Styles
var (
	SearchBoxStyle    lipgloss.Style
	SearchPromptStyle lipgloss.Style
)

// Result Row Styles
var (
	SelectedRowStyle lipgloss.Style
	ResultTitleStyle lipgloss.Style
	ResultURLStyle   lipgloss.Style
	VisitCountStyle  lipgloss.Style
	PlaceholderStyle lipgloss.Style
)

// Dialog Styles
var (
	DialogBoxStyle   lipgloss.Style
	DialogTitleStyle lipgloss.Style
)

// KindStyleCache provides pre-allocated styles per record kind.
// Avoids repeated lipgloss.NewStyle() calls in renderResultRow()
var KindStyleCache map[string]lipgloss.Style

// DefaultKindStyle is used when the kind is not in cache
var DefaultKindStyle lipgloss.Style

// initStyles initializes all style variables with current theme colors
// Called by InitTheme after color variables are set
func initStyles() {
	// Base Styles
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent)

	DimStyle = lipgloss.NewStyle().
		Foreground(ColorComment)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(ColorRed).
		Bold(true)

	SuccessStyle = lipgloss.NewStyle().
		Foreground(ColorGreen).
		Bold(true)

	WarningStyle = lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true)

	InfoStyle = lipgloss.NewStyle().
		Foreground(ColorCyan)

	// Index Status Indicator Styles
	ReadyStyle = lipgloss.NewStyle().
		Foreground(ColorGreen).
		Bold(true)

	BuildingStyle = lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true)

	EmptyStyle = lipgloss.NewStyle().
		Foreground(ColorComment)

	ErrorIndicatorStyle = lipgloss.NewStyle().
		Foreground(ColorRed).
		Bold(true)

	// Menu Bar Styles
	MenuBarStyle = lipgloss.NewStyle().
		Background(ColorSurface).
		Foreground(ColorText).
		Padding(0, 1)

	MenuKeyStyle = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true)

	MenuDescStyle = lipgloss.NewStyle().
		Foreground(ColorText)

	MenuSeparatorStyle = lipgloss.NewStyle().
		Foreground(ColorBorder)

	// Query Box Styles
	SearchBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(0, 1).
		Foreground(ColorText)

	SearchPromptStyle = lipgloss.NewStyle().
		Foreground(ColorPurple).
		Bold(true)

	// Result Row Styles
	SelectedRowStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorAccent).
		Bold(true)

	ResultTitleStyle = lipgloss.NewStyle().
		Foreground(ColorText)

	ResultURLStyle = lipgloss.NewStyle().
		Foreground(ColorComment)

	VisitCountStyle = lipgloss.NewStyle().
		Foreground(ColorTextDim)

	PlaceholderStyle = lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true)

	// Dialog Styles
	DialogBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPurple).
		Padding(1, 2).
		Background(ColorSurface)

	DialogTitleStyle = lipgloss.NewStyle().
		Foreground(ColorPurple).
		Bold(true).
		Align(lipgloss.Center)

	// KindStyleCache - reinitialize with current theme colors
	KindStyleCache = map[string]lipgloss.Style{
		"bookmark": lipgloss.NewStyle().Foreground(ColorYellow),
		"history":  lipgloss.NewStyle().Foreground(ColorCyan),
	}

	// DefaultKindStyle
	DefaultKindStyle = lipgloss.NewStyle().Foreground(ColorTextDim)
}

// Helper Functions

// MenuKey creates a formatted menu item with key and description
func MenuKey(key, description string) string {
	return fmt.Sprintf("%s %s %s",
		MenuKeyStyle.Render(key),
		MenuSeparatorStyle.Render("•"),
		MenuDescStyle.Render(description),
	)
}

// StatusIndicator returns a styled indicator for the index state.
// Read-locked to protect against concurrent style access during live theme switches.
// Standard symbols: ● ready, ⟳ building, ◐ stale, ○ empty, ✕ error
func StatusIndicator(state string) string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	switch state {
	case "ready":
		return ReadyStyle.Render("●")
	case "building":
		return BuildingStyle.Render("⟳")
	case "stale":
		return BuildingStyle.Render("◐")
	case "error":
		return ErrorIndicatorStyle.Render("✕")
	default:
		return EmptyStyle.Render("○")
	}
}

// GetKindStyle returns the cached style for a record kind or the default.
// Read-locked to protect against concurrent map access during live theme switches.
func GetKindStyle(kind string) lipgloss.Style {
	themeMu.RLock()
	defer themeMu.RUnlock()
	if style, ok := KindStyleCache[kind]; ok {
		return style
	}
	return DefaultKindStyle
}

// centerInScreen centers content in the terminal
func centerInScreen(content string, screenWidth, screenHeight int) string {
	lines := strings.Split(content, "\n")
	contentHeight := len(lines)
	contentWidth := 0
	for _, line := range lines {
		if w := lipgloss.Width(line); w > contentWidth {
			contentWidth = w
		}
	}

	verticalPad := (screenHeight - contentHeight) / 2
	if verticalPad < 0 {
		verticalPad = 0
	}

	horizontalPad := (screenWidth - contentWidth) / 2
	if horizontalPad < 0 {
		horizontalPad = 0
	}

	var result strings.Builder
	for i := 0; i < verticalPad; i++ {
		result.WriteString("\n")
	}

	padding := strings.Repeat(" ", horizontalPad)
	for _, line := range lines {
		result.WriteString(padding + line + "\n")
	}

	return result.String()
}

// scrollWindow renders a window over content lines for the modal overlays,
// with overflow indicators above and below. The dialog chrome costs 8 rows;
// at least 10 content rows are always assumed so tiny terminals stay usable.
// Returns the clamped offset so callers can store it back and repeated
// scroll presses do not bank up past the end.
func scrollWindow(lines []string, offset, screenHeight int) (body string, scrolled bool, clamped int) {
	total := len(lines)

	avail := screenHeight - 8
	if avail < 10 {
		avail = 10
	}

	if total <= avail {
		return strings.Join(lines, "\n"), false, 0
	}

	maxScroll := total - avail
	if offset > maxScroll {
		offset = maxScroll
	}
	if offset < 0 {
		offset = 0
	}

	indicator := lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true)

	var b strings.Builder
	if offset > 0 {
		b.WriteString(indicator.Render("▲ more above"))
		b.WriteString("\n")
		avail--
	}

	end := offset + avail
	if offset > 0 && end < total {
		// Reserve a row for the bottom indicator.
		avail--
		end = offset + avail
	}
	if end > total {
		end = total
	}

	b.WriteString(strings.Join(lines[offset:end], "\n"))

	if end < total {
		b.WriteString("\n")
		b.WriteString(indicator.Render("▼ more below"))
	}

	return b.String(), true, offset
}
