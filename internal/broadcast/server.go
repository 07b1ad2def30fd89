// Package broadcast fans filesystem change events out to every connected
// observer.
//
// Each accepted connection gets a reader goroutine and a write pump fed by a
// bounded queue. A connection that fails, disconnects or cannot keep up is
// removed on its own; the server and the other connections carry on.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/graybiralo/SyncGuardian/internal/logging"
	"github.com/graybiralo/SyncGuardian/internal/netutil"
	"github.com/graybiralo/SyncGuardian/internal/protocol"
)

const (
	defaultAcceptPoll   = time.Second
	defaultWriteTimeout = 5 * time.Second
	defaultSendBuffer   = 64

	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second

	stoppedNotice = "Server has been stopped."
)

// BindError reports a failed listen.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

type Status int

const (
	Stopped Status = iota
	Running
)

func (s Status) String() string {
	if s == Running {
		return "Running"
	}
	return "Stopped"
}

type ServerState struct {
	Status Status
	Addr   string
}

type Options struct {
	Logger *slog.Logger
	// AcceptPoll bounds each wait in the accept loop so Stop converges
	// within one interval.
	AcceptPoll    time.Duration
	WriteTimeout  time.Duration
	SendBuffer    int
	MaxFrameBytes int
}

type Server struct {
	opts     Options
	logger   *slog.Logger
	registry *Registry
	upgrader websocket.Upgrader

	// lifecycle serializes Listen and Stop.
	lifecycle sync.Mutex
	running   atomic.Bool

	// attachMu orders registrations against Stop so that every tasks.Add
	// happens before Stop waits on tasks.
	attachMu sync.RWMutex
	tasks    sync.WaitGroup

	mu         sync.Mutex
	listener   *net.TCPListener
	addr       string
	acceptDone chan struct{}
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.AcceptPoll <= 0 {
		opts.AcceptPoll = defaultAcceptPoll
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = protocol.DefaultMaxFrame
	}
	return &Server{
		opts:     opts,
		logger:   opts.Logger,
		registry: NewRegistry(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Listen binds host:port with address reuse and starts the accept loop. It
// is a no-op when already running.
func (s *Server) Listen(host string, port int) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.running.Load() {
		s.logger.Info(fmt.Sprintf("Server is already running on %s", s.Addr()))
		return nil
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	lc := net.ListenConfig{Control: netutil.ReuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return &BindError{Addr: addr, Err: err}
	}
	tcpLn := ln.(*net.TCPListener)
	done := make(chan struct{})

	s.registry.Open()
	s.mu.Lock()
	s.listener = tcpLn
	s.addr = tcpLn.Addr().String()
	s.acceptDone = done
	s.mu.Unlock()
	s.running.Store(true)

	go s.acceptLoop(tcpLn, done)

	s.logger.Info(fmt.Sprintf("Server started on %s", tcpLn.Addr()))
	return nil
}

// acceptor is the part of *net.TCPListener the accept loop uses.
type acceptor interface {
	Accept() (net.Conn, error)
	SetDeadline(t time.Time) error
}

func (s *Server) acceptLoop(ln acceptor, done chan struct{}) {
	defer close(done)
	var delay time.Duration
	for s.running.Load() {
		ln.SetDeadline(time.Now().Add(s.opts.AcceptPoll))
		conn, err := ln.Accept()
		if err != nil {
			if netutil.IsTimeout(err) {
				continue
			}
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			// Back off on persistent errors such as EMFILE, never past one
			// poll interval.
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay *= 2
			}
			delay = min(delay, maxAcceptDelay, s.opts.AcceptPoll)
			s.logger.Warn(fmt.Sprintf("Error accepting client; retrying in %v", delay), "error", err)
			time.Sleep(delay)
			continue
		}
		delay = 0
		if _, ok := s.attach(newTCPTransport(conn, s.opts.MaxFrameBytes)); !ok {
			conn.Close()
		}
	}
}

// attach registers a new connection and starts its reader and write pump.
func (s *Server) attach(t transport) (*Connection, bool) {
	s.attachMu.RLock()
	defer s.attachMu.RUnlock()

	if !s.running.Load() {
		return nil, false
	}
	c := newConnection(t, s.opts.SendBuffer)
	n, ok := s.registry.Register(c)
	if !ok {
		return nil, false
	}
	if n == 1 {
		s.logger.Info(fmt.Sprintf("Client connected: %s", c.RemoteAddr))
	} else {
		s.logger.Info(fmt.Sprintf("New client connected: %s", c.RemoteAddr))
	}

	s.tasks.Add(2)
	go func() {
		defer s.tasks.Done()
		c.writePump(s.opts.WriteTimeout, s.writeFailed)
	}()
	go func() {
		defer s.tasks.Done()
		s.readLoop(c)
	}()
	return c, true
}

func (s *Server) readLoop(c *Connection) {
	for {
		msg, err := c.t.ReadMessage()
		if err != nil {
			if c.State() == Active {
				switch {
				case netutil.IsExpectedCloseError(err):
					s.logger.Info(fmt.Sprintf("Client disconnected: %s", c.RemoteAddr))
				case errors.Is(err, protocol.ErrMalformedFrame), errors.Is(err, protocol.ErrFrameTooLarge):
					s.logger.Warn(fmt.Sprintf("Error decoding JSON from %s", c.RemoteAddr), "error", err)
				default:
					s.logger.Warn(fmt.Sprintf("Error handling client %s", c.RemoteAddr), "error", err)
				}
			}
			s.drop(c)
			return
		}

		if ctl, ok := msg.Control(); ok && ctl.Kind == protocol.Disconnect {
			s.logger.Info(fmt.Sprintf("Client requested disconnect: %s", c.RemoteAddr))
			s.drop(c)
			return
		}
		s.logger.Info(fmt.Sprintf("Received from %s: %s", c.RemoteAddr, msg.Type))
	}
}

func (s *Server) writeFailed(c *Connection, err error) {
	if c.State() == Active {
		if netutil.IsExpectedCloseError(err) {
			s.logger.Info(fmt.Sprintf("Client disconnected: %s", c.RemoteAddr))
		} else {
			s.logger.Warn(fmt.Sprintf("Error sending to client %s", c.RemoteAddr), "error", err)
		}
	}
	s.drop(c)
}

// drop removes c from the registry and closes it. Only the caller that
// actually removed it closes the socket.
func (s *Server) drop(c *Connection) {
	if s.registry.Unregister(c) {
		c.abort()
	}
}

// Broadcast encodes msg once and queues it for every connection registered
// at the time of the call. Delivery is best effort: a connection whose queue
// is full is dropped. It returns the number of connections the message was
// queued for.
func (s *Server) Broadcast(msg protocol.Message) int {
	frame, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error("broadcast marshal error", "error", err)
		return 0
	}

	queued := 0
	for _, c := range s.registry.Snapshot() {
		switch err := c.enqueue(frame); {
		case err == nil:
			queued++
		case errors.Is(err, errQueueFull):
			s.logger.Warn(fmt.Sprintf("Client too slow, disconnecting: %s", c.RemoteAddr))
			s.drop(c)
		}
	}
	return queued
}

// Publish broadcasts a change event. It has the shape of a watch sink.
func (s *Server) Publish(ev protocol.ChangeEvent) {
	s.Broadcast(ev.Message())
}

// Stop notifies every client that the server is going away, closes all
// connections and the listener, and waits for the accept loop and every
// connection goroutine to exit. It is a no-op when not running.
func (s *Server) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.running.Load() {
		s.logger.Info("No server is currently running.")
		return nil
	}

	s.attachMu.Lock()
	s.running.Store(false)
	conns := s.registry.Close()
	s.attachMu.Unlock()

	s.mu.Lock()
	ln, done := s.listener, s.acceptDone
	s.listener, s.acceptDone = nil, nil
	s.mu.Unlock()

	var closeErr error
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		closeErr = err
	}
	<-done

	if len(conns) > 0 {
		frame, err := protocol.Encode(protocol.ControlMessage{
			Kind:   protocol.ServerStopped,
			Detail: stoppedNotice,
		}.Message())
		if err != nil {
			return err
		}
		for _, c := range conns {
			if err := c.enqueue(frame); err != nil {
				s.logger.Warn(fmt.Sprintf("Error notifying client %s", c.RemoteAddr), "error", err)
			}
			c.finish()
		}
	}
	s.tasks.Wait()

	if len(conns) > 0 {
		s.logger.Info("All connected clients have been disconnected.")
	} else {
		s.logger.Info("No clients were connected.")
	}
	s.logger.Info("Server stopped.")
	return closeErr
}

// ServeHTTP upgrades the request to a WebSocket and registers it alongside
// the TCP connections.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.running.Load() {
		http.Error(w, "server not running", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade error", "error", err)
		return
	}
	conn.SetReadLimit(int64(s.opts.MaxFrameBytes))
	if _, ok := s.attach(newWSTransport(conn, r.RemoteAddr)); !ok {
		conn.Close()
	}
}

// Addr returns the bound listen address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.addr
}

func (s *Server) State() ServerState {
	if !s.running.Load() {
		return ServerState{Status: Stopped}
	}
	return ServerState{Status: Running, Addr: s.Addr()}
}

func (s *Server) ClientCount() int {
	return s.registry.Len()
}
