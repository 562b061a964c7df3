package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mcdev12/racebot/go/internal/config"
	"github.com/mcdev12/racebot/go/internal/race/gateway"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func setupServer(cfg *config.Config, services *Services, gatherer prometheus.Gatherer) *http.Server {
	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.Addr = cfg.Gateway.Addr
	gatewayCfg.AllowedOrigins = cfg.Gateway.AllowedOrigins
	return gateway.NewServer(gatewayCfg, services.Gateway, gatherer)
}

func runServer(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("starting HTTP server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("HTTP server failed")
	}
}

func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}
