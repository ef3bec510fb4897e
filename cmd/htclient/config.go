package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/hitension/internal/protocol/session"
)

type fileConfig struct {
	Addr               string `toml:"addr"`
	Words              int    `toml:"words"`
	Chunks             int    `toml:"chunks"`
	Rounds             int    `toml:"rounds"`
	Command            string `toml:"command"`
	ConnectTimeout     string `toml:"connect_timeout"`
	AckTimeout         string `toml:"ack_timeout"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
	TLSEnabled         bool   `toml:"tls_enabled"`
	TLSCAFile          string `toml:"tls_ca_file"`
	TLSServerName      string `toml:"tls_server_name"`
}

// clientConfig is the resolved run plan for one htclient invocation.
type clientConfig struct {
	Addr    string
	Words   int
	Chunks  int
	Rounds  int
	Command string
	Session session.Config
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		Addr:    "127.0.0.1:34254",
		Words:   1_000_000,
		Chunks:  1,
		Rounds:  1,
		Command: "echo",
		Session: session.DefaultConfig(),
	}
}

// loadClientConfig overlays only the keys present in path onto the defaults.
func loadClientConfig(path string) (clientConfig, error) {
	cfg := defaultClientConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return clientConfig{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("words") {
		cfg.Words = raw.Words
	}
	if meta.IsDefined("chunks") {
		cfg.Chunks = raw.Chunks
	}
	if meta.IsDefined("rounds") {
		cfg.Rounds = raw.Rounds
	}
	if meta.IsDefined("command") {
		cfg.Command = strings.ToLower(strings.TrimSpace(raw.Command))
	}
	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return clientConfig{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.Session.ConnectTimeout = d
	}
	if meta.IsDefined("ack_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.AckTimeout))
		if err != nil {
			return clientConfig{}, fmt.Errorf("parse ack_timeout: %w", err)
		}
		cfg.Session.AckTimeout = d
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.Session.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("tls_enabled") {
		cfg.Session.TLS.Enabled = raw.TLSEnabled
	}
	if meta.IsDefined("tls_ca_file") {
		cfg.Session.TLS.CAFile = strings.TrimSpace(raw.TLSCAFile)
	}
	if meta.IsDefined("tls_server_name") {
		cfg.Session.TLS.ServerName = strings.TrimSpace(raw.TLSServerName)
	}

	return cfg, cfg.validate()
}

func (c clientConfig) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("client config missing addr")
	}
	if c.Words < 0 {
		return fmt.Errorf("words must not be negative")
	}
	if c.Chunks < 1 {
		return fmt.Errorf("chunks must be at least 1")
	}
	if c.Rounds < 1 {
		return fmt.Errorf("rounds must be at least 1")
	}
	switch c.Command {
	case "echo", "sum":
	default:
		return fmt.Errorf("unsupported command %q (echo|sum)", c.Command)
	}
	return c.Session.ValidateClientTransport()
}
