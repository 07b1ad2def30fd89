package app

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/graybiralo/SyncGuardian/internal/broadcast"
	"github.com/graybiralo/SyncGuardian/internal/host"
	"github.com/graybiralo/SyncGuardian/internal/tui/theme"
	"github.com/graybiralo/SyncGuardian/internal/tui/views/logview"
	"github.com/graybiralo/SyncGuardian/internal/tui/views/status"
	"github.com/graybiralo/SyncGuardian/internal/watch"
)

// Host is the set of operations the TUI drives.
type Host interface {
	SelectPath(path string) error
	StartWatch() error
	StopWatch()
	StartServer(host string, port int) error
	StopServer() error
	ConnectClient(ctx context.Context, host string, port int) error
	DisconnectClient() error
	State() host.State
}

// Settings are the addresses used when starting the server and as the
// initial connect target.
type Settings struct {
	ServerHost string
	ServerPort int
	ClientHost string
	ClientPort int
}

type inputMode int

const (
	inputNone inputMode = iota
	inputPath
	inputAddress
)

// actionDoneMsg reports the end of a host call made off the program loop.
type actionDoneMsg struct {
	State host.State
	Err   error
}

// Model is the root Bubble Tea model.
type Model struct {
	host     Host
	events   *Events
	settings Settings

	keys  KeyMap
	help  help.Model
	input textinput.Model
	mode  inputMode

	width  int
	height int

	state     host.State
	statusBar status.Model
	log       logview.Model
}

// New creates the root model.
func New(h Host, events *Events, settings Settings) Model {
	in := textinput.New()
	in.CharLimit = 4096
	m := Model{
		host:      h,
		events:    events,
		settings:  settings,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		input:     in,
		statusBar: status.New(),
		log:       logview.New(),
	}
	m.refresh(h.State())
	return m
}

// Init starts listening for host callbacks.
func (m Model) Init() tea.Cmd {
	return m.events.Next()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.help.Width = msg.Width
		m.input.Width = max(msg.Width-20, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case LogMsg:
		m.log.Add(msg.Time, msg.Line)
		m.refresh(m.host.State())
		return m, m.events.Next()

	case StatusMsg, ClientDisconnectedMsg:
		m.refresh(m.host.State())
		return m, m.events.Next()

	case actionDoneMsg:
		m.refresh(msg.State)
		m.statusBar.Err = ""
		if msg.Err != nil {
			m.statusBar.Err = msg.Err.Error()
		}
		return m, nil
	}

	if m.mode != inputNone {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode != inputNone {
		return m.handleInputKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.SelectPath):
		return m.prompt(inputPath, "Folder: ", m.state.Monitor.Path)

	case key.Matches(msg, m.keys.Watch):
		if m.state.Monitor.Status == watch.Active {
			return m, m.do(func() error { m.host.StopWatch(); return nil })
		}
		return m, m.do(m.host.StartWatch)

	case key.Matches(msg, m.keys.Server):
		if m.state.Server.Status == broadcast.Running {
			return m, m.do(m.host.StopServer)
		}
		h, port := m.settings.ServerHost, m.settings.ServerPort
		return m, m.do(func() error { return m.host.StartServer(h, port) })

	case key.Matches(msg, m.keys.Client):
		if m.state.ClientConnected {
			return m, m.do(m.host.DisconnectClient)
		}
		addr := net.JoinHostPort(m.settings.ClientHost, strconv.Itoa(m.settings.ClientPort))
		return m.prompt(inputAddress, "Server: ", addr)

	case key.Matches(msg, m.keys.Up):
		m.log.ScrollUp(1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.log.ScrollDown(1)
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		m.mode = inputNone
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		mode, value := m.mode, strings.TrimSpace(m.input.Value())
		m.mode = inputNone
		m.input.Blur()
		if value == "" {
			return m, nil
		}
		if mode == inputPath {
			return m, m.do(func() error { return m.host.SelectPath(value) })
		}
		h, port, err := parseAddress(value)
		if err != nil {
			m.statusBar.Err = err.Error()
			return m, nil
		}
		m.settings.ClientHost, m.settings.ClientPort = h, port
		return m, m.do(func() error { return m.host.ConnectClient(context.Background(), h, port) })
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) prompt(mode inputMode, label, value string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Prompt = label
	m.input.SetValue(value)
	m.input.CursorEnd()
	cmd := m.input.Focus()
	return m, cmd
}

// do runs fn off the program loop; host calls can block for up to one accept
// poll interval.
func (m Model) do(fn func() error) tea.Cmd {
	h := m.host
	return func() tea.Msg {
		err := fn()
		return actionDoneMsg{State: h.State(), Err: err}
	}
}

func (m *Model) refresh(st host.State) {
	m.state = st
	m.statusBar.Monitoring = st.Monitor.Status == watch.Active
	m.statusBar.WatchedPath = st.Monitor.Path
	m.statusBar.Serving = st.Server.Status == broadcast.Running
	m.statusBar.ServerAddr = st.Server.Addr
	m.statusBar.Clients = st.Clients
	m.statusBar.Connected = st.ClientConnected
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	bar := m.statusBar.View()
	footer := theme.StyleDimmed.Render(m.help.View(m.keys))
	if m.mode != inputNone {
		footer = lipgloss.JoinVertical(lipgloss.Left, m.input.View(), footer)
	}
	logHeight := m.height - lipgloss.Height(bar) - lipgloss.Height(footer)

	return lipgloss.JoinVertical(lipgloss.Left, bar, m.log.View(m.width, logHeight), footer)
}

func parseAddress(value string) (string, int, error) {
	h, p, err := net.SplitHostPort(value)
	if err != nil {
		return "", 0, fmt.Errorf("address %q: %w", value, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("address %q: invalid port", value)
	}
	if h == "" {
		h = "127.0.0.1"
	}
	return h, port, nil
}
