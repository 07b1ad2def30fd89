// syncguardian watches a folder and broadcasts every file and folder
// creation or deletion under it to connected observers.
//
// Serve mode (default) selects --path, starts the server and monitoring, and
// runs until interrupted. Follow mode (--connect host:port) connects to a
// running server and prints each change on stdout.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/graybiralo/SyncGuardian/internal/config"
	"github.com/graybiralo/SyncGuardian/internal/host"
	"github.com/graybiralo/SyncGuardian/internal/protocol"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("syncguardian", pflag.ContinueOnError)
	configPath := flagSet.String("config", "syncguardian.yaml", "path to config file")
	path := flagSet.String("path", "", "folder to monitor (overrides watch.path)")
	listenHost := flagSet.String("host", "", "listen host (overrides server.host)")
	port := flagSet.Int("port", -1, "listen port (overrides server.port)")
	wsAddr := flagSet.String("ws-addr", "", "also serve the stream over WebSocket on this address")
	connect := flagSet.String("connect", "", "follow a running server at host:port instead of serving")
	verbose := flagSet.BoolP("verbose", "v", false, "log debug records")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *path != "" {
		cfg.Watch.Path = *path
	}
	if *listenHost != "" {
		cfg.Server.Host = *listenHost
	}
	if *port >= 0 {
		cfg.Server.Port = *port
	}
	if *wsAddr != "" {
		cfg.Server.WSAddr = *wsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *connect != "" {
		return follow(ctx, cfg, *connect, level)
	}
	return serve(ctx, cfg, level)
}

func serve(ctx context.Context, cfg *config.Config, level slog.Level) error {
	h := host.New(host.Options{
		Config:  cfg,
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	})
	defer h.Close()

	if cfg.Watch.Path != "" {
		if err := h.SelectPath(cfg.Watch.Path); err != nil {
			return err
		}
	}
	if err := h.StartServer(cfg.Server.Host, cfg.Server.Port); err != nil {
		return err
	}
	if cfg.Watch.Path != "" {
		if err := h.StartWatch(); err != nil {
			return err
		}
	}

	<-ctx.Done()
	return nil
}

func follow(ctx context.Context, cfg *config.Config, addr string, level slog.Level) error {
	serverHost, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("--connect: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("--connect: invalid port %q", portStr)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := host.New(host.Options{
		Config:  cfg,
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		OnClientEvent: func(ev protocol.ChangeEvent) {
			fmt.Println(ev.String())
		},
		OnClientDisconnect: func(string) { cancel() },
	})
	defer h.Close()

	if err := h.ConnectClient(ctx, serverHost, port); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
