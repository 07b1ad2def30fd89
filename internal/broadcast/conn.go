package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/graybiralo/SyncGuardian/internal/protocol"
)

type ConnState int32

const (
	Active ConnState = iota
	Closing
)

func (s ConnState) String() string {
	if s == Closing {
		return "Closing"
	}
	return "Active"
}

var (
	errQueueFull  = errors.New("send queue full")
	errConnClosed = errors.New("connection closed")
)

// transport is one accepted socket. Reads happen only on the connection's
// reader goroutine and writes only on its write pump.
type transport interface {
	ReadMessage() (protocol.Message, error)
	// WriteFrame writes one encoded, newline-terminated message.
	WriteFrame(frame []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
	RemoteAddr() string
	Kind() string
}

// Connection is the server-side record of one observer.
type Connection struct {
	ID         string
	RemoteAddr string
	Transport  string

	t     transport
	state atomic.Int32

	mu     sync.Mutex
	closed bool
	send   chan []byte

	closeTransport sync.Once
}

func newConnection(t transport, buffer int) *Connection {
	return &Connection{
		ID:         uuid.NewString(),
		RemoteAddr: t.RemoteAddr(),
		Transport:  t.Kind(),
		t:          t,
		send:       make(chan []byte, buffer),
	}
}

func (c *Connection) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Connection) setState(s ConnState) {
	c.state.Store(int32(s))
}

// enqueue hands frame to the write pump without blocking.
func (c *Connection) enqueue(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errQueueFull
	}
}

// finish closes the send queue. The pump flushes what is queued, then closes
// the socket.
func (c *Connection) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// abort closes the socket immediately, discarding queued frames.
func (c *Connection) abort() {
	c.finish()
	c.closeSocket()
}

func (c *Connection) closeSocket() {
	c.closeTransport.Do(func() {
		c.t.Close()
	})
}

// writePump is the only writer on the socket. onFail runs once, on the first
// write error; the pump stops writing after that.
func (c *Connection) writePump(timeout time.Duration, onFail func(*Connection, error)) {
	defer c.closeSocket()
	for frame := range c.send {
		c.t.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.t.WriteFrame(frame); err != nil {
			onFail(c, err)
			return
		}
	}
}
