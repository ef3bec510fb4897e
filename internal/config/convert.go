package config

import (
	"github.com/danmuck/hitension/internal/protocol/session"
	"github.com/danmuck/hitension/internal/server"
)

// ServerRuntime maps a validated file config onto the server runtime config.
func ServerRuntime(cfg ServerConfig) (server.Config, error) {
	sess := session.DefaultConfig()
	var err error
	if sess.ReadTimeout, err = parseTimeout(cfg.Session.ReadTimeout); err != nil {
		return server.Config{}, err
	}
	if sess.WriteTimeout, err = parseTimeout(cfg.Session.WriteTimeout); err != nil {
		return server.Config{}, err
	}
	if sess.AckTimeout, err = parseTimeout(cfg.Session.AckTimeout); err != nil {
		return server.Config{}, err
	}
	if cfg.Session.BufferSize > 0 {
		sess.BufferSize = cfg.Session.BufferSize
	}
	if cfg.Session.InitialWords > 0 {
		sess.Frame.InitialWords = cfg.Session.InitialWords
	}
	sess.Frame.MaxMessageBytes = cfg.Session.MaxMessageBytes
	sess.TLS = session.TLSConfig{
		Enabled:  cfg.TLS.Enabled,
		Mutual:   cfg.TLS.Mutual,
		CAFile:   cfg.TLS.CAFile,
		CertFile: cfg.TLS.CertFile,
		KeyFile:  cfg.TLS.KeyFile,
	}
	if err := sess.ValidateServerTransport(); err != nil {
		return server.Config{}, err
	}

	return server.Config{
		ID:          cfg.ID,
		Addr:        cfg.Addr,
		AdminAddr:   cfg.AdminAddr,
		CorsOrigins: cfg.CorsOrigins,
		Session:     sess,
	}, nil
}
