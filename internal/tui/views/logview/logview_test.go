package logview

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestAddCapsEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+25; i++ {
		m.Add(time.Now(), "line")
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
}

func TestScroll(t *testing.T) {
	m := New()
	for i := 0; i < 10; i++ {
		m.Add(time.Now(), "line")
	}

	m.ScrollUp(4)
	if m.Offset != 4 {
		t.Errorf("expected offset 4, got %d", m.Offset)
	}
	m.ScrollUp(100)
	if m.Offset != 9 {
		t.Errorf("expected offset capped at 9, got %d", m.Offset)
	}
	m.ScrollDown(100)
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}

	m.ScrollUp(3)
	m.Add(time.Now(), "new")
	if m.Offset != 0 {
		t.Error("adding a line should scroll back to the bottom")
	}
}

func TestView(t *testing.T) {
	m := New()
	if v := m.View(80, 20); !strings.Contains(v, "Nothing logged yet.") {
		t.Error("empty view should say nothing was logged")
	}

	m.Add(time.Now(), "File Added: /data/x.txt")
	m.Add(time.Now(), "Server stopped.")
	v := m.View(80, 20)
	for _, want := range []string{"File Added: /data/x.txt", "Server stopped."} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewShowsNewestLines(t *testing.T) {
	m := New()
	for i := 0; i < 30; i++ {
		m.Add(time.Now(), "old")
	}
	m.Add(time.Now(), "newest")
	if v := m.View(80, 8); !strings.Contains(v, "newest") {
		t.Error("view should include the newest line")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		limit int
		want  string
	}{
		{"fits", "File Added: /a", 20, "File Added: /a"},
		{"ascii", "File Added: /data/long/name.txt", 16, "File Added: /..."},
		{"multibyte", "File Added: /données/été.txt", 22, "File Added: /donnée..."},
		{"tiny limit", "File Added: /a", 3, "File Added: /a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.line, tt.limit)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.line, tt.limit, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) split a character: %q", tt.line, tt.limit, got)
			}
		})
	}
}
