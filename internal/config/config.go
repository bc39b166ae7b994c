// Package config loads docsync settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zeusync/docsync/internal/core/observability/log"
	"github.com/zeusync/docsync/internal/core/protocol"
	"github.com/zeusync/docsync/internal/server"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root of the configuration file.
type Config struct {
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

type ClientConfig struct {
	ServerURL      string        `yaml:"server_url"`
	ApplicationID  string        `yaml:"application_id"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// MaxBackground bounds concurrently running background saves and deletes.
	MaxBackground int64 `yaml:"max_background"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Encoding   string `yaml:"encoding"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Shards          int           `yaml:"shards"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	transport := protocol.DefaultConfig()
	srv := server.DefaultServerConfig()
	return Config{
		Client: ClientConfig{
			ServerURL:      transport.BaseURL,
			RequestTimeout: transport.Timeout,
			ConnectTimeout: transport.ConnectTimeout,
			MaxBackground:  8,
		},
		Log: LogConfig{
			Level:      "info",
			Encoding:   "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server: ServerConfig{
			Addr:            srv.ListenAddr,
			Shards:          srv.Shards,
			ShutdownTimeout: srv.ShutdownTimeout,
		},
	}
}

// Load overlays the YAML file at path on Default. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Client.ServerURL == "" {
		return fmt.Errorf("%w: client.server_url is required", ErrInvalidConfig)
	}
	if c.Client.RequestTimeout < 0 || c.Client.ConnectTimeout < 0 {
		return fmt.Errorf("%w: timeouts may not be negative", ErrInvalidConfig)
	}
	if c.Client.MaxBackground < 0 {
		return fmt.Errorf("%w: client.max_background may not be negative", ErrInvalidConfig)
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: log.encoding must be json or console, got %q", ErrInvalidConfig, c.Log.Encoding)
	}
	if c.Server.Shards < 0 {
		return fmt.Errorf("%w: server.shards may not be negative", ErrInvalidConfig)
	}
	return nil
}

// Transport derives the HTTP transport settings.
func (c Config) Transport() protocol.Config {
	t := protocol.DefaultConfig()
	t.BaseURL = c.Client.ServerURL
	t.ApplicationID = c.Client.ApplicationID
	t.APIKey = c.Client.APIKey
	if c.Client.RequestTimeout > 0 {
		t.Timeout = c.Client.RequestTimeout
	}
	if c.Client.ConnectTimeout > 0 {
		t.ConnectTimeout = c.Client.ConnectTimeout
	}
	return t
}

// Logger derives the logger options.
func (c Config) Logger() log.Options {
	return log.Options{
		Level:      log.ParseLevel(c.Log.Level),
		Encoding:   c.Log.Encoding,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// ServerSettings derives the document server settings.
func (c Config) ServerSettings() server.Config {
	s := server.DefaultServerConfig()
	s.ListenAddr = c.Server.Addr
	if c.Server.Shards > 0 {
		s.Shards = c.Server.Shards
	}
	if c.Server.ShutdownTimeout > 0 {
		s.ShutdownTimeout = c.Server.ShutdownTimeout
	}
	return s
}
