package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.nexus/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	// ServerURL is the base URL of the history and auth API.
	ServerURL string `toml:"server_url"`
	// WebSocketURL is the raw STOMP-over-WebSocket endpoint.
	WebSocketURL string `toml:"websocket_url"`

	BadgeSeedDelay      Duration `toml:"badge_seed_delay"`
	ContactRefreshDelay Duration `toml:"contact_refresh_delay"`
	SearchDebounce      Duration `toml:"search_debounce"`
	SearchCacheTTL      Duration `toml:"search_cache_ttl"`
	HTTPTimeout         Duration `toml:"http_timeout"`

	// MetricsAddr enables the prometheus listener when non-empty, e.g. "127.0.0.1:9464".
	MetricsAddr string `toml:"metrics_addr"`
	LogLevel    string `toml:"log_level"`
}

// Duration is a time.Duration stored as a Go duration string ("500ms").
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return (&Config{}).WithDefaults()
}

// WithDefaults fills every unset field with its default value and returns cfg.
func (cfg *Config) WithDefaults() *Config {
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:8080"
	}
	if cfg.WebSocketURL == "" {
		cfg.WebSocketURL = "ws://localhost:8080/ws/websocket"
	}
	setDefault(&cfg.BadgeSeedDelay, 500*time.Millisecond)
	setDefault(&cfg.ContactRefreshDelay, 500*time.Millisecond)
	setDefault(&cfg.SearchDebounce, 300*time.Millisecond)
	setDefault(&cfg.SearchCacheTTL, 30*time.Second)
	setDefault(&cfg.HTTPTimeout, 10*time.Second)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg
}

func setDefault(d *Duration, v time.Duration) {
	if d.Duration <= 0 {
		d.Duration = v
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault reads config from path with defaults applied. A missing file is not an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg.WithDefaults(), nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
