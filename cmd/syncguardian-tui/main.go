package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/graybiralo/SyncGuardian/internal/config"
	"github.com/graybiralo/SyncGuardian/internal/host"
	"github.com/graybiralo/SyncGuardian/internal/tui/app"
)

func main() {
	flagSet := pflag.NewFlagSet("syncguardian-tui", pflag.ContinueOnError)
	configPath := flagSet.String("config", "syncguardian.yaml", "path to config file")
	path := flagSet.String("path", "", "folder to select at startup")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *path != "" {
		cfg.Watch.Path = *path
	}

	events := app.NewEvents(256)
	h := host.New(host.Options{
		Config:             cfg,
		OnLog:              events.Log,
		OnStatus:           events.Status,
		OnClientDisconnect: events.ClientDisconnected,
	})

	m := app.New(h, events, app.Settings{
		ServerHost: cfg.Server.Host,
		ServerPort: cfg.Server.Port,
		ClientHost: cfg.Client.Host,
		ClientPort: cfg.Client.Port,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	if cfg.Watch.Path != "" {
		go h.SelectPath(cfg.Watch.Path)
	}

	_, runErr := p.Run()
	events.Close()
	h.Close()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
