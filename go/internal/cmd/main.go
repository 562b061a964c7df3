package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mcdev12/racebot/go/internal/config"
	"github.com/mcdev12/racebot/go/internal/discord"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create discord session")
	}

	services, err := setupServices(ctx, cfg, session, reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}

	services.Events.Start(ctx)
	go services.Gateway.Start(ctx)

	server := setupServer(cfg, services, reg)
	go runServer(server)

	if err := services.Bot.Open(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to discord")
	}

	log.Info().
		Str("version", version).
		Str("guild_id", cfg.Discord.GuildID).
		Int("max_races", cfg.Races.MaxActive).
		Dur("auto_close_after", cfg.Races.AutoCloseAfter).
		Msg("racebot running")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	if err := services.Bot.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close discord session")
	}
	services.Races.Shutdown()
	services.Events.Wait()
	if services.JetStream != nil {
		if err := services.JetStream.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event stream")
		}
	}
	shutdownServer(server)

	log.Info().Msg("racebot stopped")
}
