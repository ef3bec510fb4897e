package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Dial connects to addr, retrying with backoff until MaxConnectAttempts is
// reached (zero retries until ctx ends).
func Dial(ctx context.Context, addr string, cfg Config) (*Conn, error) {
	if err := cfg.ValidateClientTransport(); err != nil {
		return nil, err
	}
	addr = strings.TrimSpace(addr)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 1; ; attempt++ {
		raw, err := dialOnce(ctx, addr, cfg)
		if err == nil {
			log.Info().Str("addr", addr).Int("attempt", attempt).Bool("tls", cfg.TLS.Enabled).Msg("session connected")
			return NewConn(raw, cfg), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if cfg.MaxConnectAttempts > 0 && attempt >= cfg.MaxConnectAttempts {
			return nil, fmt.Errorf("session: dial %s failed after %d attempts: %w", addr, attempt, err)
		}
		log.Warn().Err(err).Str("addr", addr).Int("attempt", attempt).Msg("session dial failed; retrying")
		if err := sleepBackoff(ctx, cfg.Backoff, attempt, rng); err != nil {
			return nil, err
		}
	}
}

func dialOnce(ctx context.Context, addr string, cfg Config) (net.Conn, error) {
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if !cfg.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := cfg.ClientTLSConfig(addr)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx := ctx
	if cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		handshakeCtx, cancel = context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer cancel()
	}
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

// Listen opens a TCP listener on addr, wrapped in TLS when enabled.
func Listen(addr string, cfg Config) (net.Listener, error) {
	if err := cfg.ValidateServerTransport(); err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", strings.TrimSpace(addr))
	if err != nil {
		return nil, err
	}
	if !cfg.TLS.Enabled {
		return ln, nil
	}
	tlsCfg, err := cfg.ServerTLSConfig()
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	return tls.NewListener(ln, tlsCfg), nil
}
