package ui

import (
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/halfdome/foxmarks/internal/config"
	"github.com/halfdome/foxmarks/internal/profile"
)

// SettingType identifies each setting in the panel
type SettingType int

const (
	SettingProfile SettingType = iota
	SettingHistory
	SettingTheme
	SettingLimit

	settingsCount
)

// Theme options (parallel arrays: display name / config value)
var (
	themeNames  = []string{"Dark", "Light", "System"}
	themeValues = []string{"dark", "light", "system"}
)

// limitStep is the increment for the result-limit number field
const limitStep = 5

// maxProfileLines caps the visible profile rows before windowing kicks in
const maxProfileLines = 6

// profileOption is one selectable row in the profile list. dir is what gets
// persisted; empty dir means auto-detection at build time.
type profileOption struct {
	label string
	dir   string
}

// SettingsPanel is the modal settings editor. Every change is reported to
// the caller (valueChanged=true), which persists it and notifies the index
// manager; nothing here touches disk directly.
type SettingsPanel struct {
	visible bool
	width   int
	height  int
	cursor  int

	base config.Config // config as loaded at Show time, edited fields overlaid

	profiles        []profileOption // auto entry first
	selectedProfile int

	indexHistory  bool
	selectedTheme int
	limit         int

	// Profile filter mode (Enter on the profile row)
	filtering    bool
	filterText   string
	filtered     []int // indexes into profiles
	filterCursor int
}

// NewSettingsPanel creates a hidden settings panel
func NewSettingsPanel() *SettingsPanel {
	return &SettingsPanel{}
}

// Show loads the current config and the selectable profiles, then opens the
// panel. A configured profile that is no longer listed is kept as an extra
// option so an unrelated edit cannot silently reset it.
func (s *SettingsPanel) Show(cfg *config.Config, profiles []profile.Profile) {
	s.base = *cfg
	s.cursor = 0
	s.filtering = false

	s.profiles = []profileOption{{label: "Auto (most recent)", dir: ""}}
	for _, p := range profiles {
		label := p.Label
		if label == "" {
			label = p.Name
		}
		s.profiles = append(s.profiles, profileOption{label: label, dir: p.Dir})
	}

	s.selectedProfile = 0
	if cfg.Profile != "" {
		found := false
		for i, opt := range s.profiles {
			if opt.dir == cfg.Profile || (i > 0 && profileName(opt.dir) == cfg.Profile) {
				s.selectedProfile = i
				found = true
				break
			}
		}
		if !found {
			s.profiles = append(s.profiles, profileOption{
				label: cfg.Profile + " (configured)",
				dir:   cfg.Profile,
			})
			s.selectedProfile = len(s.profiles) - 1
		}
	}

	s.indexHistory = cfg.IndexHistory
	s.selectedTheme = 0
	for i, v := range themeValues {
		if v == cfg.GetTheme() {
			s.selectedTheme = i
			break
		}
	}
	s.limit = cfg.GetLimit()

	s.visible = true
}

// profileName extracts the directory base name for matching configs that
// store a profile name instead of an absolute path
func profileName(dir string) string {
	if i := strings.LastIndexAny(dir, "/\\"); i >= 0 {
		return dir[i+1:]
	}
	return dir
}

// Hide closes the panel
func (s *SettingsPanel) Hide() {
	s.visible = false
	s.filtering = false
}

// IsVisible returns whether the panel is open
func (s *SettingsPanel) IsVisible() bool {
	return s.visible
}

// SetSize sets the dimensions for centering
func (s *SettingsPanel) SetSize(width, height int) {
	s.width = width
	s.height = height
}

// GetConfig returns a config with the panel's edits applied on top of the
// values loaded at Show time
func (s *SettingsPanel) GetConfig() *config.Config {
	cfg := s.base
	if s.selectedProfile >= 0 && s.selectedProfile < len(s.profiles) {
		cfg.Profile = s.profiles[s.selectedProfile].dir
	}
	cfg.IndexHistory = s.indexHistory
	cfg.Theme = themeValues[s.selectedTheme]
	cfg.Limit = s.limit
	return &cfg
}

// Update handles input and returns (panel, cmd, valueChanged)
func (s *SettingsPanel) Update(msg tea.KeyMsg) (*SettingsPanel, tea.Cmd, bool) {
	if !s.visible {
		return s, nil, false
	}

	if s.filtering {
		return s.handleFilter(msg)
	}

	valueChanged := false
	key := msg.String()

	switch key {
	case "esc", "ctrl+s":
		s.Hide()
		return s, nil, false

	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}

	case "down", "j":
		if s.cursor < int(settingsCount)-1 {
			s.cursor++
		}

	case "left", "h":
		valueChanged = s.adjustValue(-1)

	case "right", "l":
		valueChanged = s.adjustValue(1)

	case " ":
		valueChanged = s.toggleValue()

	case "enter":
		if SettingType(s.cursor) == SettingProfile && len(s.profiles) > 1 {
			s.startFilter()
		}
	}

	return s, nil, valueChanged
}

// adjustValue changes a radio or number value by delta
func (s *SettingsPanel) adjustValue(delta int) bool {
	switch SettingType(s.cursor) {
	case SettingProfile:
		newVal := s.selectedProfile + delta
		if newVal >= 0 && newVal < len(s.profiles) {
			s.selectedProfile = newVal
			return true
		}

	case SettingHistory:
		return s.toggleValue()

	case SettingTheme:
		newVal := s.selectedTheme + delta
		if newVal >= 0 && newVal < len(themeNames) {
			s.selectedTheme = newVal
			return true
		}

	case SettingLimit:
		newVal := s.limit + delta*limitStep
		if newVal >= limitStep {
			s.limit = newVal
			return true
		}
	}

	return false
}

// toggleValue toggles a checkbox value
func (s *SettingsPanel) toggleValue() bool {
	if SettingType(s.cursor) == SettingHistory {
		s.indexHistory = !s.indexHistory
		return true
	}
	return false
}

// startFilter begins fuzzy filtering of the profile list
func (s *SettingsPanel) startFilter() {
	s.filtering = true
	s.filterText = ""
	s.refilter()
}

// refilter recomputes the filtered index set for the current filter text
func (s *SettingsPanel) refilter() {
	if s.filterText == "" {
		s.filtered = make([]int, len(s.profiles))
		for i := range s.profiles {
			s.filtered[i] = i
		}
	} else {
		labels := make([]string, len(s.profiles))
		for i, opt := range s.profiles {
			labels[i] = opt.label
		}
		matches := fuzzy.Find(s.filterText, labels)
		s.filtered = make([]int, len(matches))
		for i, m := range matches {
			s.filtered[i] = m.Index
		}
	}
	s.filterCursor = 0
	for i, idx := range s.filtered {
		if idx == s.selectedProfile {
			s.filterCursor = i
			break
		}
	}
}

// handleFilter processes keys during profile filtering
func (s *SettingsPanel) handleFilter(msg tea.KeyMsg) (*SettingsPanel, tea.Cmd, bool) {
	switch key := msg.String(); key {
	case "enter":
		s.filtering = false
		if len(s.filtered) > 0 && s.filterCursor < len(s.filtered) {
			if s.selectedProfile != s.filtered[s.filterCursor] {
				s.selectedProfile = s.filtered[s.filterCursor]
				return s, nil, true
			}
		}
		return s, nil, false

	case "esc":
		s.filtering = false
		return s, nil, false

	case "up", "ctrl+k":
		if s.filterCursor > 0 {
			s.filterCursor--
		}

	case "down", "ctrl+j":
		if s.filterCursor < len(s.filtered)-1 {
			s.filterCursor++
		}

	case "backspace":
		if len(s.filterText) > 0 {
			s.filterText = s.filterText[:len(s.filterText)-1]
			s.refilter()
		}

	default:
		if len(key) == 1 {
			s.filterText += key
			s.refilter()
		}
	}

	return s, nil, false
}

// View renders the settings panel
func (s *SettingsPanel) View() string {
	if !s.visible {
		return ""
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorCyan)

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent)

	labelStyle := lipgloss.NewStyle().
		Foreground(ColorText)

	dimStyle := lipgloss.NewStyle().
		Foreground(ColorComment)

	highlightStyle := lipgloss.NewStyle().
		Background(ColorSurface)

	// Dialog dimensions
	dialogWidth := 58
	if s.width > 0 && s.width < dialogWidth+10 {
		dialogWidth = s.width - 10
		if dialogWidth < 44 {
			dialogWidth = 44
		}
	}

	var content strings.Builder

	// Title
	content.WriteString(titleStyle.Render("Settings"))
	content.WriteString(dimStyle.Render("                              [Esc] Close"))
	content.WriteString("\n")
	content.WriteString(strings.Repeat("-", dialogWidth-4))
	content.WriteString("\n\n")

	// PROFILE
	content.WriteString(sectionStyle.Render("PROFILE"))
	content.WriteString("\n")
	if s.filtering {
		content.WriteString("  Filter: " + s.filterText + "|\n")
		shown := s.filtered
		if len(shown) > maxProfileLines {
			shown = shown[:maxProfileLines]
		}
		for i, idx := range shown {
			line := "  " + s.profiles[idx].label
			if i == s.filterCursor {
				line = highlightStyle.Render("> " + s.profiles[idx].label)
			}
			content.WriteString("  " + line + "\n")
		}
		if len(s.filtered) == 0 {
			content.WriteString("  " + dimStyle.Render("  no matching profiles") + "\n")
		}
	} else {
		for _, line := range s.renderProfileList() {
			content.WriteString("  " + line + "\n")
		}
		if len(s.profiles) > maxProfileLines {
			content.WriteString("  " + dimStyle.Render("  Enter filters the full list") + "\n")
		}
	}
	content.WriteString(dimStyle.Render("  Which browser profile gets indexed"))
	content.WriteString("\n\n")

	// INDEX
	content.WriteString(sectionStyle.Render("INDEX"))
	content.WriteString("\n")
	line := s.renderCheckbox("Include browsing history", s.indexHistory)
	if s.cursor == int(SettingHistory) {
		line = highlightStyle.Render(line)
	}
	content.WriteString("  " + labelStyle.Render(line) + "\n")
	content.WriteString(dimStyle.Render("  Bookmarks are always indexed"))
	content.WriteString("\n\n")

	// APPEARANCE
	content.WriteString(sectionStyle.Render("APPEARANCE"))
	content.WriteString("\n")
	themeRow := s.renderRadioGroup(themeNames, s.selectedTheme, s.cursor == int(SettingTheme))
	if s.cursor == int(SettingTheme) {
		themeRow = highlightStyle.Render(themeRow)
	}
	content.WriteString("  " + themeRow + "\n\n")

	// RESULTS
	content.WriteString(sectionStyle.Render("RESULTS"))
	content.WriteString("\n")
	line = s.renderNumber("Limit:", s.limit, "per query")
	if s.cursor == int(SettingLimit) {
		line = highlightStyle.Render(line)
	}
	content.WriteString("  " + labelStyle.Render(line) + "\n\n")

	// Help bar
	content.WriteString(dimStyle.Render("j/k Navigate  Space Toggle  h/l Adjust  Enter Filter"))

	// Wrap in dialog box
	dialogStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorCyan).
		Background(ColorBg).
		Padding(1, 2).
		Width(dialogWidth)

	dialog := dialogStyle.Render(content.String())

	// Center the dialog
	return lipgloss.Place(
		s.width,
		s.height,
		lipgloss.Center,
		lipgloss.Center,
		dialog,
	)
}

// renderProfileList renders the vertical profile radio list, windowed around
// the selection when it would overflow
func (s *SettingsPanel) renderProfileList() []string {
	focused := s.cursor == int(SettingProfile)

	start := 0
	end := len(s.profiles)
	if end > maxProfileLines {
		start = s.selectedProfile - maxProfileLines/2
		if start < 0 {
			start = 0
		}
		end = start + maxProfileLines
		if end > len(s.profiles) {
			end = len(s.profiles)
			start = end - maxProfileLines
		}
	}

	selStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	dimStyle := lipgloss.NewStyle().Foreground(ColorTextDim)
	highlightStyle := lipgloss.NewStyle().Background(ColorSurface)

	var lines []string
	for i := start; i < end; i++ {
		mark := "( )"
		if i == s.selectedProfile {
			mark = "(•)"
		}
		line := mark + " " + s.profiles[i].label
		if i == s.selectedProfile {
			line = selStyle.Render(line)
		} else {
			line = dimStyle.Render(line)
		}
		if focused && i == s.selectedProfile {
			line = highlightStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lines
}

// renderCheckbox renders a checkbox with label
func (s *SettingsPanel) renderCheckbox(label string, checked bool) string {
	box := "[ ]"
	if checked {
		box = "[x]"
	}
	return box + " " + label
}

// renderRadioGroup renders a group of radio options
func (s *SettingsPanel) renderRadioGroup(options []string, selected int, focused bool) string {
	var parts []string
	for i, opt := range options {
		if i == selected {
			style := lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
			parts = append(parts, style.Render(">"+opt))
		} else {
			style := lipgloss.NewStyle().Foreground(ColorTextDim)
			parts = append(parts, style.Render(" "+opt))
		}
	}
	return strings.Join(parts, "  ")
}

// renderNumber renders a number input with label and suffix
func (s *SettingsPanel) renderNumber(label string, value int, suffix string) string {
	numStyle := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	result := label + " [" + numStyle.Render(strconv.Itoa(value)) + "]"
	if suffix != "" {
		result += " " + suffix
	}
	return result
}
