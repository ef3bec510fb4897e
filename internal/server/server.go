package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danmuck/hitension/internal/node"
	"github.com/danmuck/hitension/internal/observability"
	"github.com/danmuck/hitension/internal/protocol/session"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Config is the runtime shape of a compute server.
type Config struct {
	ID          string
	Addr        string
	AdminAddr   string
	CorsOrigins []string
	Session     session.Config
}

// Server accepts High Tension sessions and answers text commands.
type Server struct {
	cfg      Config
	router   *gin.Engine
	appeared time.Time
	ready    atomic.Bool
	active   atomic.Int64
	served   atomic.Uint64
}

var _ node.Node = (*Server)(nil)

func New(cfg Config) *Server {
	if strings.TrimSpace(cfg.ID) == "" {
		cfg.ID = "htserver"
	}
	s := &Server{cfg: cfg, appeared: time.Now()}
	s.router = newAdminRouter(s)
	return s
}

func (s *Server) NodeID() string {
	return s.cfg.ID
}

func (s *Server) Kind() string {
	return "htserver"
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// ListenAndServe opens the session listener (and the admin endpoint when
// configured) and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := session.Listen(s.cfg.Addr, s.cfg.Session)
	if err != nil {
		return err
	}
	if strings.TrimSpace(s.cfg.AdminAddr) != "" {
		go func() {
			if err := node.ListenAndServeAdmin(ctx, s, s.cfg.AdminAddr); err != nil {
				log.Error().Err(err).Str("addr", s.cfg.AdminAddr).Msg("admin endpoint stopped")
			}
		}()
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx ends. It closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	log.Info().Str("id", s.cfg.ID).Str("addr", ln.Addr().String()).Msg("htserver listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.ready.Store(true)
	defer s.ready.Store(false)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

// handleConn reads one command per line until the client quits or the
// stream fails.
func (s *Server) handleConn(ctx context.Context, raw net.Conn) {
	conn := session.NewConn(raw, s.cfg.Session)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	active := s.active.Add(1)
	observability.ConnOpened()
	log.Info().Str("remote", remote).Int64("active_clients", active).Msg("client connected")
	defer func() {
		remaining := s.active.Add(-1)
		observability.ConnClosed()
		log.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("client disconnected")
	}()

	st := &connStats{Remote: remote}
	for {
		line, err := conn.ReadLine(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Warn().Err(err).Str("remote", remote).Msg("read command failed")
			}
			return
		}
		name := strings.ToLower(strings.TrimSpace(line))
		if name == "" {
			continue
		}
		done, err := s.dispatch(ctx, conn, name, st)
		if err != nil {
			log.Warn().Err(err).Str("remote", remote).Str("command", name).Msg("command failed")
			return
		}
		if done {
			return
		}
	}
}
