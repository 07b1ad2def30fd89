// Package host ties the watch, the broadcast server and the client session
// together behind the operations a front-end drives.
//
// Failures are returned and also written to the log callback; the affected
// component stays in its previous state.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/graybiralo/SyncGuardian/internal/broadcast"
	"github.com/graybiralo/SyncGuardian/internal/client"
	"github.com/graybiralo/SyncGuardian/internal/config"
	"github.com/graybiralo/SyncGuardian/internal/logging"
	"github.com/graybiralo/SyncGuardian/internal/protocol"
	"github.com/graybiralo/SyncGuardian/internal/watch"
	"github.com/shirou/gopsutil/v3/disk"
)

const mirrorShutdownTimeout = 5 * time.Second

type Options struct {
	Config *config.Config
	// OnStatus receives "Active" or "Inactive" whenever monitoring starts or
	// stops.
	OnStatus func(status string)
	// OnLog receives every log line at Level or above.
	OnLog func(line string)
	Level slog.Leveler
	// Handler, when set, receives the same records as OnLog.
	Handler slog.Handler
	// OnClientEvent runs for every change the local client session receives,
	// after it has been logged.
	OnClientEvent func(protocol.ChangeEvent)
	// OnClientDisconnect runs when the server ends the local client session.
	OnClientDisconnect func(reason string)
}

// State is a point-in-time view of every component.
type State struct {
	Monitor         watch.MonitorState
	Server          broadcast.ServerState
	Clients         int
	ClientConnected bool
	MirrorAddr      string
}

type Host struct {
	cfg    *config.Config
	logger *slog.Logger

	watch  *watch.Watch
	server *broadcast.Server
	client *client.Session

	// serverOps serializes StartServer and StopServer.
	serverOps sync.Mutex

	mu     sync.Mutex
	mirror *http.Server
	wsAddr string
}

func New(opts Options) *Host {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	var handlers []slog.Handler
	if opts.OnLog != nil {
		handlers = append(handlers, logging.NewLineHandler(opts.OnLog, opts.Level))
	}
	if opts.Handler != nil {
		handlers = append(handlers, opts.Handler)
	}
	logger := logging.Discard()
	if len(handlers) > 0 {
		logger = slog.New(logging.Fanout(handlers...))
	}

	h := &Host{cfg: cfg, logger: logger}
	h.server = broadcast.NewServer(broadcast.Options{
		Logger:        logger,
		AcceptPoll:    cfg.Server.AcceptPoll,
		WriteTimeout:  cfg.Server.WriteTimeout,
		SendBuffer:    cfg.Server.SendBuffer,
		MaxFrameBytes: cfg.Server.MaxFrameBytes,
	})
	h.watch = watch.New(h.server.Publish, watch.Options{
		Logger: logger,
		OnStatus: func(s watch.Status) {
			if opts.OnStatus != nil {
				opts.OnStatus(s.String())
			}
		},
	})
	h.client = client.New(client.Options{
		Logger:        logger,
		OnEvent:       opts.OnClientEvent,
		OnDisconnect:  opts.OnClientDisconnect,
		DialTimeout:   cfg.Client.DialTimeout,
		MaxFrameBytes: cfg.Server.MaxFrameBytes,
	})
	return h
}

// SelectPath makes path the folder to monitor. An active watch is stopped
// first; monitoring does not restart until StartWatch.
func (h *Host) SelectPath(path string) error {
	if h.watch.State().Status == watch.Active {
		h.logger.Info("Stopping current monitoring to select a new folder.")
		h.watch.Stop()
	}
	if err := h.watch.SetPath(path); err != nil {
		h.logger.Error(fmt.Sprintf("Cannot select folder %s", path), "error", err)
		return err
	}

	selected := h.watch.Path()
	h.logger.Info(fmt.Sprintf("Selected Folder: %s", selected))
	if usage, err := disk.Usage(selected); err == nil {
		h.logger.Info(fmt.Sprintf("Free space: %s of %s", humanize.Bytes(usage.Free), humanize.Bytes(usage.Total)),
			"fstype", usage.Fstype)
	} else {
		h.logger.Debug("disk usage unavailable", "path", selected, "error", err)
	}
	return nil
}

func (h *Host) StartWatch() error {
	err := h.watch.Start()
	if errors.Is(err, watch.ErrNoPathConfigured) {
		h.logger.Warn("No folder selected for monitoring.")
	} else if err != nil {
		h.logger.Error("Error starting monitoring", "error", err)
	}
	return err
}

func (h *Host) StopWatch() {
	h.watch.Stop()
}

// StartServer listens for observers on host:port and, when a WebSocket
// address is configured, serves the same stream there.
func (h *Host) StartServer(host string, port int) error {
	h.serverOps.Lock()
	defer h.serverOps.Unlock()

	if err := h.server.Listen(host, port); err != nil {
		h.logger.Error(fmt.Sprintf("Error starting server on %s:%d", host, port), "error", err)
		return err
	}
	if h.cfg.Server.WSAddr != "" {
		if err := h.startMirror(h.cfg.Server.WSAddr); err != nil {
			h.logger.Error(fmt.Sprintf("Error starting WebSocket mirror on %s", h.cfg.Server.WSAddr), "error", err)
			h.server.Stop()
			return err
		}
	}
	return nil
}

func (h *Host) startMirror(addr string) error {
	h.mu.Lock()
	running := h.mirror != nil
	h.mu.Unlock()
	if running {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &broadcast.BindError{Addr: addr, Err: err}
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", h.server)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	h.mu.Lock()
	h.mirror = srv
	h.wsAddr = ln.Addr().String()
	h.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("WebSocket mirror error", "error", err)
		}
	}()
	h.logger.Info(fmt.Sprintf("WebSocket mirror on ws://%s/ws", ln.Addr()))
	return nil
}

// StopServer stops the server and the WebSocket mirror, and closes the local
// client session if one is open.
func (h *Host) StopServer() error {
	h.serverOps.Lock()
	defer h.serverOps.Unlock()

	if h.client.Connected() {
		h.client.Disconnect()
	}
	err := h.server.Stop()
	if err != nil {
		h.logger.Error("Error stopping server", "error", err)
	}

	h.mu.Lock()
	mirror := h.mirror
	h.mirror, h.wsAddr = nil, ""
	h.mu.Unlock()
	if mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorShutdownTimeout)
		defer cancel()
		if mErr := mirror.Shutdown(ctx); mErr != nil {
			h.logger.Warn("Error stopping WebSocket mirror", "error", mErr)
		}
	}
	return err
}

func (h *Host) ConnectClient(ctx context.Context, host string, port int) error {
	err := h.client.Connect(ctx, host, port)
	switch {
	case errors.Is(err, client.ErrConnectionRefused):
		h.logger.Error(fmt.Sprintf("Connection refused by %s:%d. Is the server running?", host, port))
	case err != nil:
		h.logger.Error("Error connecting to server", "error", err)
	}
	return err
}

func (h *Host) DisconnectClient() error {
	return h.client.Disconnect()
}

func (h *Host) State() State {
	h.mu.Lock()
	wsAddr := h.wsAddr
	h.mu.Unlock()
	return State{
		Monitor:         h.watch.State(),
		Server:          h.server.State(),
		Clients:         h.server.ClientCount(),
		ClientConnected: h.client.Connected(),
		MirrorAddr:      wsAddr,
	}
}

// Close stops everything that is running. It is safe to call more than once.
func (h *Host) Close() error {
	var errs []error
	if h.client.Connected() {
		errs = append(errs, h.client.Disconnect())
	}
	if h.watch.State().Status == watch.Active {
		h.watch.Stop()
	}
	if h.server.State().Status == broadcast.Running {
		errs = append(errs, h.StopServer())
	}
	return errors.Join(errs...)
}
