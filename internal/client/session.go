// Package client consumes the change stream published by a broadcast server.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/graybiralo/SyncGuardian/internal/logging"
	"github.com/graybiralo/SyncGuardian/internal/netutil"
	"github.com/graybiralo/SyncGuardian/internal/protocol"
)

const (
	defaultDialTimeout = 5 * time.Second
	writeTimeout       = 2 * time.Second

	lostReason = "Connection lost: Server has stopped."
)

// ErrConnectionRefused is wrapped by the ConnectError returned when nothing
// is listening at the target address.
var ErrConnectionRefused = errors.New("connection refused")

// ConnectError reports a failed dial.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

type Options struct {
	Logger *slog.Logger
	// OnEvent runs on the receive goroutine for every change event.
	OnEvent func(protocol.ChangeEvent)
	// OnDisconnect runs once when the server ends the session or the
	// connection drops. It is not called after a local Disconnect.
	OnDisconnect  func(reason string)
	DialTimeout   time.Duration
	MaxFrameBytes int
}

// Session is a single outbound connection to a broadcast server.
type Session struct {
	opts   Options
	logger *slog.Logger

	// lifecycle serializes Connect and Disconnect.
	lifecycle sync.Mutex

	mu   sync.Mutex
	conn net.Conn
	done chan struct{}
}

func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = protocol.DefaultMaxFrame
	}
	return &Session{opts: opts, logger: opts.Logger}
}

// Connect dials host:port and starts the receive loop. It is a no-op when a
// session is already open.
func (s *Session) Connect(ctx context.Context, host string, port int) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.Connected() {
		s.logger.Info("Already connected to server.")
		return nil
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := net.Dialer{Timeout: s.opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if netutil.IsConnRefused(err) {
			err = fmt.Errorf("%w: %v", ErrConnectionRefused, err)
		}
		return &ConnectError{Addr: addr, Err: err}
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.conn = conn
	s.done = done
	s.mu.Unlock()

	go s.receive(conn, done)

	s.logger.Info("Connected to server.")
	return nil
}

func (s *Session) receive(conn net.Conn, done chan struct{}) {
	defer close(done)

	reason := s.readStream(conn)

	s.mu.Lock()
	owned := s.conn == conn
	if owned {
		s.conn = nil
		s.done = nil
	}
	s.mu.Unlock()
	conn.Close()

	// A local Disconnect already took the connection; stay quiet.
	if !owned {
		return
	}
	s.logger.Info(reason)
	if s.opts.OnDisconnect != nil {
		s.opts.OnDisconnect(reason)
	}
}

// readStream decodes frames until the server stops or the stream ends, and
// returns the reason the session ended.
func (s *Session) readStream(conn net.Conn) (reason string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("receive loop panic", "panic", r)
			reason = lostReason
		}
	}()

	reader := protocol.NewReader(conn, s.opts.MaxFrameBytes)
	for {
		msg, err := reader.Next()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformedFrame) {
				s.logger.Warn("Error decoding message from server", "error", err)
				continue
			}
			if !netutil.IsExpectedCloseError(err) && s.Connected() {
				s.logger.Warn("Error receiving from server", "error", err)
			}
			return lostReason
		}

		if ev, ok := msg.ChangeEvent(); ok {
			s.logger.Info(ev.String())
			if s.opts.OnEvent != nil {
				s.opts.OnEvent(ev)
			}
			continue
		}
		if ctl, ok := msg.Control(); ok {
			if ctl.Kind == protocol.ServerStopped {
				return "Server stopped: " + ctl.Detail
			}
			s.logger.Info(fmt.Sprintf("Ignoring %s from server", msg.Type))
			continue
		}
		s.logger.Info(fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

// Disconnect tells the server the session is ending, closes the socket and
// waits for the receive loop to exit. It is a no-op when not connected.
func (s *Session) Disconnect() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	conn, done := s.conn, s.done
	s.conn, s.done = nil, nil
	s.mu.Unlock()

	if conn == nil {
		s.logger.Info("Not connected to any server.")
		return nil
	}

	// The peer may already be gone; a failed goodbye is not an error.
	if frame, err := protocol.Encode(protocol.ControlMessage{Kind: protocol.Disconnect}.Message()); err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		conn.Write(frame)
	}
	err := conn.Close()
	<-done

	s.logger.Info("Disconnected from server.")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}
