package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Watch  WatchConfig  `yaml:"watch"`
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
}

type WatchConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	AcceptPoll    time.Duration `yaml:"accept_poll"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	SendBuffer    int           `yaml:"send_buffer"`
	MaxFrameBytes int           `yaml:"max_frame_bytes"`
	// WSAddr enables the WebSocket mirror when non-empty.
	WSAddr string `yaml:"ws_addr"`
}

type ClientConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          5000,
			AcceptPoll:    time.Second,
			WriteTimeout:  5 * time.Second,
			SendBuffer:    64,
			MaxFrameBytes: 1 << 20,
		},
		Client: ClientConfig{
			Host:        "127.0.0.1",
			Port:        5000,
			DialTimeout: 5 * time.Second,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads a YAML config from path over the defaults. A missing file is
// not an error; the defaults are returned as is.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validPort("server.port", c.Server.Port); err != nil {
		return err
	}
	if err := validPort("client.port", c.Client.Port); err != nil {
		return err
	}
	if c.Server.AcceptPoll <= 0 {
		return fmt.Errorf("server.accept_poll must be positive, got %s", c.Server.AcceptPoll)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.SendBuffer <= 0 {
		return fmt.Errorf("server.send_buffer must be positive, got %d", c.Server.SendBuffer)
	}
	if c.Server.MaxFrameBytes <= 0 {
		return fmt.Errorf("server.max_frame_bytes must be positive, got %d", c.Server.MaxFrameBytes)
	}
	if c.Client.DialTimeout <= 0 {
		return fmt.Errorf("client.dial_timeout must be positive, got %s", c.Client.DialTimeout)
	}
	return nil
}

func validPort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s out of range: %d", name, port)
	}
	return nil
}
