package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/halfdome/foxmarks/internal/logging"
)

// maxLogLines is how many ring-buffer lines the overlay captures on open
const maxLogLines = 200

// LogOverlay shows the most recent log lines from the in-memory ring buffer.
// This is the first place to look when the query box shows no results: the
// rebuild warnings (missing profile, locked database, bad schema) land here
// even when file logging is off.
type LogOverlay struct {
	visible      bool
	width        int
	height       int
	scrollOffset int
	lines        []string // captured at Show time, oldest first
}

// NewLogOverlay creates a hidden log overlay
func NewLogOverlay() *LogOverlay {
	return &LogOverlay{}
}

// Show captures the current ring buffer tail and opens the overlay, scrolled
// to the most recent line.
func (l *LogOverlay) Show() {
	l.lines = logging.TailLines(maxLogLines)
	l.scrollOffset = 9999 // clamped to the bottom in View()
	l.visible = true
}

// Hide hides the log overlay
func (l *LogOverlay) Hide() {
	l.visible = false
}

// IsVisible returns whether the log overlay is visible
func (l *LogOverlay) IsVisible() bool {
	return l.visible
}

// SetSize sets the dimensions for centering
func (l *LogOverlay) SetSize(width, height int) {
	l.width = width
	l.height = height
}

// Update handles messages for the log overlay
func (l *LogOverlay) Update(msg tea.Msg) (*LogOverlay, tea.Cmd) {
	if !l.visible {
		return l, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "j", "down":
			l.scrollOffset++
			return l, nil
		case "k", "up":
			if l.scrollOffset > 0 {
				l.scrollOffset--
			}
			return l, nil
		case "g":
			l.scrollOffset = 0
			return l, nil
		case "G":
			l.scrollOffset = 9999
			return l, nil
		default:
			l.Hide()
		}
	}
	return l, nil
}

// View renders the log overlay
func (l *LogOverlay) View() string {
	if !l.visible {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent)

	lineStyle := lipgloss.NewStyle().
		Foreground(ColorTextDim)

	footerStyle := lipgloss.NewStyle().
		Foreground(ColorComment).
		Italic(true)

	// Near-fullscreen: log lines are wide
	dialogWidth := l.width - 8
	if dialogWidth < 40 {
		dialogWidth = 40
	}
	lineWidth := dialogWidth - 6

	var lines []string
	lines = append(lines, titleStyle.Render("RECENT LOG"))
	lines = append(lines, "")
	if len(l.lines) == 0 {
		lines = append(lines, lineStyle.Render("No log lines recorded yet."))
	}
	for _, raw := range l.lines {
		lines = append(lines, lineStyle.Render(runewidth.Truncate(raw, lineWidth, "…")))
	}

	body, scrolled, clamped := scrollWindow(lines, l.scrollOffset, l.height)
	l.scrollOffset = clamped

	var content strings.Builder
	content.WriteString(body)
	content.WriteString("\n\n")
	if scrolled {
		content.WriteString(footerStyle.Render("j/k scroll • g/G top/bottom • any other key to close"))
	} else {
		content.WriteString(footerStyle.Render("Press any key to close"))
	}

	box := DialogBoxStyle.
		Width(dialogWidth).
		Render(content.String())

	return centerInScreen(box, l.width, l.height)
}
