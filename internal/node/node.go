package node

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Node is a process that exposes an admin HTTP surface.
type Node interface {
	NodeID() string
	Kind() string
	HTTPRouter() *gin.Engine
}

// ListenAndServeAdmin serves n's admin router on addr until ctx ends.
func ListenAndServeAdmin(ctx context.Context, n Node, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeAdmin(ctx, n, ln)
}

// ServeAdmin serves n's admin router on ln until ctx ends, then shuts the
// HTTP server down gracefully. It closes ln.
func ServeAdmin(ctx context.Context, n Node, ln net.Listener) error {
	srv := &http.Server{
		Handler:           n.HTTPRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("id", n.NodeID()).
		Str("kind", n.Kind()).
		Str("addr", ln.Addr().String()).
		Msg("admin endpoint listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}
