package app

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// LogMsg carries one line from the host's log callback.
type LogMsg struct {
	Time time.Time
	Line string
}

// StatusMsg carries "Active" or "Inactive" from the host's status callback.
type StatusMsg string

// ClientDisconnectedMsg is sent when the server ends the local session.
type ClientDisconnectedMsg struct{ Reason string }

// Events queues host callbacks, which fire on background goroutines, until
// the program loop picks them up.
type Events struct {
	ch        chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once
}

func NewEvents(buffer int) *Events {
	return &Events{ch: make(chan tea.Msg, buffer), done: make(chan struct{})}
}

func (e *Events) Log(line string) {
	e.send(LogMsg{Time: time.Now(), Line: line})
}

func (e *Events) Status(status string) {
	e.send(StatusMsg(status))
}

func (e *Events) ClientDisconnected(reason string) {
	e.send(ClientDisconnectedMsg{Reason: reason})
}

// send blocks until the program takes the message or the queue is closed.
func (e *Events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.done:
	}
}

// Next returns a command that waits for the next queued message. The model
// re-arms it after each one.
func (e *Events) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.done:
			return nil
		}
	}
}

// Close releases any callback still waiting to deliver.
func (e *Events) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}
