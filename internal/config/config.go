package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/hitension/internal/protocol/frame"
	"github.com/pelletier/go-toml/v2"
)

// ServerConfig is the on-disk htserver configuration.
type ServerConfig struct {
	ID          string        `toml:"id"`
	Addr        string        `toml:"addr"`
	AdminAddr   string        `toml:"admin_addr"`
	CorsOrigins []string      `toml:"cors_origins"`
	Session     SessionConfig `toml:"session"`
	TLS         TLSConfig     `toml:"tls"`
}

// SessionConfig holds per-connection tuning. Durations use Go syntax
// ("250ms", "15s"); an empty or "0" timeout blocks forever.
type SessionConfig struct {
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	AckTimeout      string `toml:"ack_timeout"`
	BufferSize      int    `toml:"buffer_size"`
	InitialWords    int    `toml:"initial_words"`
	MaxMessageBytes uint64 `toml:"max_message_bytes"`
}

type TLSConfig struct {
	Enabled  bool   `toml:"enabled"`
	Mutual   bool   `toml:"mutual"`
	CAFile   string `toml:"ca_file"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
}

func LoadServerConfig(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	if cfg.ID == "" {
		cfg.ID = "htserver"
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

const DefaultAddr = ":34254"

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("server config missing id")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if cfg.AdminAddr != "" && strings.TrimSpace(cfg.AdminAddr) == strings.TrimSpace(cfg.Addr) {
		return fmt.Errorf("admin_addr must differ from addr")
	}
	if cfg.Session.BufferSize < 0 {
		return fmt.Errorf("session.buffer_size must not be negative")
	}
	if cfg.Session.InitialWords < 0 {
		return fmt.Errorf("session.initial_words must not be negative")
	}
	if cfg.Session.InitialWords > frame.MaxInitialWords {
		return fmt.Errorf("session.initial_words must not exceed %d", frame.MaxInitialWords)
	}
	if cfg.Session.MaxMessageBytes > frame.MaxMessageBytesLimit {
		return fmt.Errorf("session.max_message_bytes must not exceed %d", frame.MaxMessageBytesLimit)
	}
	for name, raw := range map[string]string{
		"read_timeout":  cfg.Session.ReadTimeout,
		"write_timeout": cfg.Session.WriteTimeout,
		"ack_timeout":   cfg.Session.AckTimeout,
	} {
		if _, err := parseTimeout(raw); err != nil {
			return fmt.Errorf("session.%s invalid: %w", name, err)
		}
	}
	return nil
}

func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", raw)
	}
	return d, nil
}
