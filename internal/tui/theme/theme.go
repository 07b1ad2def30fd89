// Package theme provides the Lip Gloss palette and shared styles for the
// SyncGuardian TUI. It is a leaf package with no internal imports.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Change colors.
var (
	ColorAdded   = lipgloss.Color("#22c55e")
	ColorDeleted = lipgloss.Color("#dc2626")
	ColorNotice  = lipgloss.Color("#3b82f6")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// LineColor picks a color for a log line from its content.
func LineColor(line string) lipgloss.Color {
	switch {
	case strings.Contains(line, "error="), strings.HasPrefix(line, "Error"):
		return ColorDanger
	case strings.HasPrefix(line, "File Added"), strings.HasPrefix(line, "Folder Added"):
		return ColorAdded
	case strings.HasPrefix(line, "File Deleted"), strings.HasPrefix(line, "Folder Deleted"):
		return ColorDeleted
	case strings.Contains(line, "onnect"):
		return ColorNotice
	default:
		return ColorBright
	}
}

// Indicator renders a filled or hollow dot followed by label.
func Indicator(on bool, label string) string {
	if on {
		return lipgloss.NewStyle().Foreground(ColorHealthy).Render("● " + label)
	}
	return lipgloss.NewStyle().Foreground(ColorDimmed).Render("○ " + label)
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorDanger)
)
