package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type helpSection struct {
	title string
	items [][2]string // key, description
}

var helpSections = []helpSection{
	{
		title: "SEARCH",
		items: [][2]string{
			{"type", "Filter as you type"},
			{"esc", "Clear query (quit when empty)"},
		},
	},
	{
		title: "RESULTS",
		items: [][2]string{
			{"Up / Ctrl+k", "Move up"},
			{"Down / Ctrl+j", "Move down"},
			{"PgUp/PgDn", "Page up/down"},
			{"Enter", "Open URL in the browser"},
			{"Ctrl+y", "Copy URL to clipboard"},
		},
	},
	{
		title: "INDEX",
		items: [][2]string{
			{"Ctrl+r", "Rebuild now"},
			{"Ctrl+s", "Settings (profile, history, theme)"},
			{"Ctrl+l", "Recent log lines"},
		},
	},
	{
		title: "OTHER",
		items: [][2]string{
			{"F1", "This help"},
			{"Ctrl+c", "Quit"},
		},
	},
}

// HelpOverlay shows keyboard shortcuts in a modal
type HelpOverlay struct {
	visible      bool
	width        int
	height       int
	scrollOffset int // Current scroll position for small screens
}

// NewHelpOverlay creates a new help overlay
func NewHelpOverlay() *HelpOverlay {
	return &HelpOverlay{}
}

// Show makes the help overlay visible
func (h *HelpOverlay) Show() {
	h.visible = true
	h.scrollOffset = 0
}

// Hide hides the help overlay
func (h *HelpOverlay) Hide() {
	h.visible = false
}

// IsVisible returns whether the help overlay is visible
func (h *HelpOverlay) IsVisible() bool {
	return h.visible
}

// SetSize sets the dimensions for centering
func (h *HelpOverlay) SetSize(width, height int) {
	h.width = width
	h.height = height
}

// Update handles messages for the help overlay
func (h *HelpOverlay) Update(msg tea.Msg) (*HelpOverlay, tea.Cmd) {
	if !h.visible {
		return h, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "j", "down":
			h.scrollOffset++
			return h, nil
		case "k", "up":
			if h.scrollOffset > 0 {
				h.scrollOffset--
			}
			return h, nil
		case "g":
			h.scrollOffset = 0
			return h, nil
		case "G":
			h.scrollOffset = 9999 // Will be clamped in View()
			return h, nil
		default:
			// Any other key closes the help overlay
			h.Hide()
		}
	}
	return h, nil
}

// View renders the help overlay
func (h *HelpOverlay) View() string {
	if !h.visible {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent)

	sectionStyle := lipgloss.NewStyle().
		Foreground(ColorCyan).
		Bold(true)

	// Responsive dialog width
	dialogWidth := 48
	if h.width > 0 && h.width < dialogWidth+10 {
		dialogWidth = h.width - 10
		if dialogWidth < 35 {
			dialogWidth = 35
		}
	}
	keyWidth := 15
	if dialogWidth < 45 {
		keyWidth = 11 // Compact key column for small screens
	}

	keyStyle := lipgloss.NewStyle().
		Foreground(ColorPurple).
		Width(keyWidth)

	descStyle := lipgloss.NewStyle().
		Foreground(ColorText)

	separatorStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	versionStyle := lipgloss.NewStyle().
		Foreground(ColorComment).
		Italic(true)
	footerStyle := lipgloss.NewStyle().
		Foreground(ColorComment).
		Italic(true)

	// Build content as lines so small screens can scroll
	var lines []string

	lines = append(lines, titleStyle.Render("KEYBOARD SHORTCUTS"))
	lines = append(lines, "")

	for i, section := range helpSections {
		lines = append(lines, sectionStyle.Render(section.title))
		for _, item := range section.items {
			lines = append(lines, "  "+keyStyle.Render(item[0])+descStyle.Render(item[1]))
		}
		if i < len(helpSections)-1 {
			lines = append(lines, "")
		}
	}

	separatorWidth := dialogWidth - 8
	if separatorWidth < 20 {
		separatorWidth = 20
	}
	lines = append(lines, "")
	lines = append(lines, separatorStyle.Render(strings.Repeat("─", separatorWidth)))
	lines = append(lines, versionStyle.Render("foxmarks v"+Version))

	body, scrolled, clamped := scrollWindow(lines, h.scrollOffset, h.height)
	h.scrollOffset = clamped

	var content strings.Builder
	content.WriteString(body)
	content.WriteString("\n\n")
	if scrolled {
		content.WriteString(footerStyle.Render("j/k scroll • any other key to close"))
	} else {
		content.WriteString(footerStyle.Render("Press any key to close"))
	}

	box := DialogBoxStyle.
		Width(dialogWidth).
		Render(content.String())

	return centerInScreen(box, h.width, h.height)
}
