package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"pairchat/internal/services/presence"
	"pairchat/internal/services/session"
	"pairchat/internal/services/stream"
)

// Environment variables that override the config file.
const (
	EnvRelay = "PAIRCHAT_RELAY"
	EnvHome  = "PAIRCHAT_HOME"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home     string         `yaml:"home" toml:"home"`           // config directory, e.g. $HOME/.pairchat
	RelayURL string         `yaml:"relay_url" toml:"relay_url"` // relay base URL, e.g. http://127.0.0.1:8080
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Session  SessionConfig  `yaml:"session" toml:"session"`
	Stream   StreamConfig   `yaml:"stream" toml:"stream"`
	Presence PresenceConfig `yaml:"presence" toml:"presence"`
}

// LoggingConfig selects the zap configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // console or json
}

// SessionConfig tunes session resolution.
type SessionConfig struct {
	CreateDebounce string `yaml:"create_debounce" toml:"create_debounce"`
}

// StreamConfig tunes the typing indicator.
type StreamConfig struct {
	TypingFreshness string `yaml:"typing_freshness" toml:"typing_freshness"`
	TypingIdle      string `yaml:"typing_idle" toml:"typing_idle"`
}

// PresenceConfig tunes heartbeats.
type PresenceConfig struct {
	HeartbeatInterval string `yaml:"heartbeat_interval" toml:"heartbeat_interval"`
	HeartbeatTimeout  string `yaml:"heartbeat_timeout" toml:"heartbeat_timeout"`
}

// Timings is Config's durations, parsed.
type Timings struct {
	CreateDebounce    time.Duration
	TypingFreshness   time.Duration
	TypingIdle        time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

// DefaultConfig returns the built-in settings. Home is left empty and is
// resolved by the caller.
func DefaultConfig() Config {
	return Config{
		RelayURL: "http://127.0.0.1:8080",
		Logging:  LoggingConfig{Level: "warn", Format: "console"},
		Session:  SessionConfig{CreateDebounce: session.DefaultCreateDebounce.String()},
		Stream: StreamConfig{
			TypingFreshness: stream.DefaultTypingFreshness.String(),
			TypingIdle:      stream.DefaultTypingIdle.String(),
		},
		Presence: PresenceConfig{
			HeartbeatInterval: presence.DefaultHeartbeatInterval.String(),
			HeartbeatTimeout:  presence.DefaultHeartbeatTimeout.String(),
		},
	}
}

// DefaultHome is ~/.pairchat.
func DefaultHome() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".pairchat"), nil
}

// LoadConfig reads path over the defaults. The format follows the extension:
// .toml is TOML, anything else YAML. A missing file is not an error. An empty
// path skips the file. Environment overrides apply last.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := decode(path, data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRelay)); v != "" {
		cfg.RelayURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHome)); v != "" {
		cfg.Home = v
	}
	if _, err := cfg.Timings(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// Timings parses every duration. Empty values fall back to the defaults.
func (c Config) Timings() (Timings, error) {
	def := DefaultConfig()
	var (
		t   Timings
		err error
	)
	fields := []struct {
		name     string
		val, def string
		out      *time.Duration
	}{
		{"session.create_debounce", c.Session.CreateDebounce, def.Session.CreateDebounce, &t.CreateDebounce},
		{"stream.typing_freshness", c.Stream.TypingFreshness, def.Stream.TypingFreshness, &t.TypingFreshness},
		{"stream.typing_idle", c.Stream.TypingIdle, def.Stream.TypingIdle, &t.TypingIdle},
		{"presence.heartbeat_interval", c.Presence.HeartbeatInterval, def.Presence.HeartbeatInterval, &t.HeartbeatInterval},
		{"presence.heartbeat_timeout", c.Presence.HeartbeatTimeout, def.Presence.HeartbeatTimeout, &t.HeartbeatTimeout},
	}
	for _, f := range fields {
		v := strings.TrimSpace(f.val)
		if v == "" {
			v = f.def
		}
		if *f.out, err = time.ParseDuration(v); err != nil {
			return Timings{}, fmt.Errorf("config %s: %w", f.name, err)
		}
		if *f.out <= 0 {
			return Timings{}, fmt.Errorf("config %s: must be positive, got %s", f.name, v)
		}
	}
	if t.HeartbeatTimeout <= t.HeartbeatInterval {
		return Timings{}, fmt.Errorf("config presence.heartbeat_timeout (%s) must exceed heartbeat_interval (%s)",
			t.HeartbeatTimeout, t.HeartbeatInterval)
	}
	return t, nil
}
