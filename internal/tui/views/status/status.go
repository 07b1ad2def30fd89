// Package status renders the component state bar.
package status

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/graybiralo/SyncGuardian/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Monitoring  bool
	WatchedPath string
	Serving     bool
	ServerAddr  string
	Clients     int
	Connected   bool
	Err         string
	Width       int
}

func New() Model {
	return Model{}
}

func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	folder := "no folder"
	if m.WatchedPath != "" {
		folder = filepath.Base(m.WatchedPath)
	}
	monitor := theme.Indicator(m.Monitoring, "Monitor: "+folder)

	server := theme.Indicator(false, "Server: stopped")
	if m.Serving {
		server = theme.Indicator(true, fmt.Sprintf("Server: %s (%d clients)", m.ServerAddr, m.Clients))
	}

	client := theme.Indicator(m.Connected, "Client: disconnected")
	if m.Connected {
		client = theme.Indicator(true, "Client: connected")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := monitor + sep + server + sep + client
	if m.Err != "" {
		content += sep + theme.StyleError.Render(m.Err)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
