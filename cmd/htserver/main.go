package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/danmuck/hitension/internal/config"
	"github.com/danmuck/hitension/internal/observability"
	"github.com/danmuck/hitension/internal/server"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "cmd/htserver/config.toml", "server config path")
	flag.Parse()

	observability.InitLogger("htserver")
	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load server config")
	}
	log.Info().Str("path", *configPath).Msg("loaded server config")

	rt, err := config.ServerRuntime(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid server config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(rt)
	log.Info().Str("id", srv.NodeID()).Str("addr", rt.Addr).Str("admin_addr", rt.AdminAddr).Msg("htserver started")
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatal().Err(err).Msg("htserver stopped")
	}
	log.Info().Msg("htserver exiting")
}
