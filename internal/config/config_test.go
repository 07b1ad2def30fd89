package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
watch:
  path: /data
server:
  port: 6000
  accept_poll: 250ms
  ws_addr: "127.0.0.1:6001"
client:
  host: 10.0.0.5
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Watch.Path != "/data" {
		t.Errorf("Watch.Path = %q, want /data", cfg.Watch.Path)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Server.AcceptPoll != 250*time.Millisecond {
		t.Errorf("Server.AcceptPoll = %v, want 250ms", cfg.Server.AcceptPoll)
	}
	if cfg.Server.WSAddr != "127.0.0.1:6001" {
		t.Errorf("Server.WSAddr = %q", cfg.Server.WSAddr)
	}
	if cfg.Client.Host != "10.0.0.5" {
		t.Errorf("Client.Host = %q, want 10.0.0.5", cfg.Client.Host)
	}

	// Unset keys keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.WriteTimeout != 5*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want default 5s", cfg.Server.WriteTimeout)
	}
	if cfg.Client.Port != 5000 {
		t.Errorf("Client.Port = %d, want default 5000", cfg.Client.Port)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 5000 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("defaults not applied: %+v", cfg.Server)
	}
	if cfg.Server.AcceptPoll != time.Second {
		t.Errorf("AcceptPoll = %v, want 1s", cfg.Server.AcceptPoll)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port zero allowed", func(c *Config) { c.Server.Port = 0 }, ""},
		{"server port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"client port negative", func(c *Config) { c.Client.Port = -1 }, "client.port"},
		{"zero accept poll", func(c *Config) { c.Server.AcceptPoll = 0 }, "accept_poll"},
		{"zero write timeout", func(c *Config) { c.Server.WriteTimeout = 0 }, "write_timeout"},
		{"zero send buffer", func(c *Config) { c.Server.SendBuffer = 0 }, "send_buffer"},
		{"zero frame size", func(c *Config) { c.Server.MaxFrameBytes = 0 }, "max_frame_bytes"},
		{"zero dial timeout", func(c *Config) { c.Client.DialTimeout = 0 }, "dial_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
