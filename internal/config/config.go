package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file the binaries read when no -config flag is
// given.
const DefaultPath = "officehours.yaml"

// Environment variables that override the config file.
const (
	EnvBaseURL         = "OFFICEHOURS_BASE_URL"
	EnvLogLevel        = "OFFICEHOURS_LOG_LEVEL"
	EnvLogFile         = "OFFICEHOURS_LOG_FILE"
	EnvRefreshInterval = "OFFICEHOURS_REFRESH_INTERVAL"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Live     LiveConfig     `yaml:"live"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Changes  ChangesConfig  `yaml:"changes"`
	Log      LogConfig      `yaml:"log"`
	MockFeed MockFeedConfig `yaml:"mockfeed"`
}

type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
}

type LiveConfig struct {
	MaxRetries         int           `yaml:"max_retries"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PongTimeout        time.Duration `yaml:"pong_timeout"`
}

type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type ChangesConfig struct {
	EventLifetime time.Duration `yaml:"event_lifetime"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type MockFeedConfig struct {
	Host string        `yaml:"host"`
	Port int           `yaml:"port"`
	Tick time.Duration `yaml:"tick"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://127.0.0.1:8000",
		},
		Live: LiveConfig{
			MaxRetries:         10,
			ReconnectBaseDelay: time.Second,
			ReconnectMaxDelay:  10 * time.Second,
			PingInterval:       30 * time.Second,
			PongTimeout:        60 * time.Second,
		},
		Refresh: RefreshConfig{
			Interval: 3 * time.Second,
		},
		Changes: ChangesConfig{
			EventLifetime: 7 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		MockFeed: MockFeedConfig{
			Host: "127.0.0.1",
			Port: 8000,
			Tick: 4 * time.Second,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Variables from a .env file in the working directory and from the process
// environment are applied last.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.Server.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		c.Log.File = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRefreshInterval)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRefreshInterval, err)
		}
		c.Refresh.Interval = d
	}
	return nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("server.base_url: %q is not an http(s) URL", c.Server.BaseURL)
	}
	if c.Live.MaxRetries <= 0 {
		return fmt.Errorf("live.max_retries must be positive, got %d", c.Live.MaxRetries)
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"live.reconnect_base_delay", c.Live.ReconnectBaseDelay},
		{"live.reconnect_max_delay", c.Live.ReconnectMaxDelay},
		{"live.ping_interval", c.Live.PingInterval},
		{"live.pong_timeout", c.Live.PongTimeout},
		{"refresh.interval", c.Refresh.Interval},
		{"changes.event_lifetime", c.Changes.EventLifetime},
		{"mockfeed.tick", c.MockFeed.Tick},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.name, d.d)
		}
	}
	if c.Live.ReconnectMaxDelay < c.Live.ReconnectBaseDelay {
		return fmt.Errorf("live.reconnect_max_delay (%v) is below live.reconnect_base_delay (%v)",
			c.Live.ReconnectMaxDelay, c.Live.ReconnectBaseDelay)
	}
	return nil
}
