// Package logview renders the scrollable activity log.
package logview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/graybiralo/SyncGuardian/internal/tui/theme"
)

const maxEntries = 500

// Entry is a single log line.
type Entry struct {
	Time time.Time
	Line string
}

// Model holds log state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset from bottom
}

func New() Model {
	return Model{}
}

// Add appends a line, caps the buffer and scrolls back to the bottom.
func (m *Model) Add(at time.Time, line string) {
	m.Entries = append(m.Entries, Entry{Time: at, Line: line})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

func (m *Model) ScrollUp(n int) {
	m.Offset += n
	limit := max(len(m.Entries)-1, 0)
	if m.Offset > limit {
		m.Offset = limit
	}
}

func (m *Model) ScrollDown(n int) {
	m.Offset -= n
	if m.Offset < 0 {
		m.Offset = 0
	}
}

// View renders the newest entries that fit in height lines.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visible := height - 4
	if visible < 3 {
		visible = 3
	}

	title := theme.StyleHeader.Render(" LOG ")
	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing logged yet.")
		return theme.StyleBorder.Width(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
	}

	end := len(m.Entries) - m.Offset
	start := end - visible
	if start < 0 {
		start = 0
	}

	var lines []string
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05"))
		text := truncate(e.Line, innerW-10)
		lines = append(lines, ts+" "+lipgloss.NewStyle().Foreground(theme.LineColor(e.Line)).Render(text))
	}

	sections := []string{title, strings.Join(lines, "\n")}
	if m.Offset > 0 {
		sections = append(sections, theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset)))
	}
	return theme.StyleBorder.Width(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// truncate shortens line to at most limit terminal cells, ending in an
// ellipsis. It never splits a multi-byte character.
func truncate(line string, limit int) string {
	if limit <= 3 {
		return line
	}
	return ansi.Truncate(line, limit, "...")
}
