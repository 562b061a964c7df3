package main

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/racebot/go/internal/commands"
	"github.com/mcdev12/racebot/go/internal/config"
	"github.com/mcdev12/racebot/go/internal/discord"
	"github.com/mcdev12/racebot/go/internal/race"
	"github.com/mcdev12/racebot/go/internal/race/eventbus"
	"github.com/mcdev12/racebot/go/internal/race/gateway"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Events     *eventbus.Dispatcher
	JetStream  *eventbus.JetStreamPublisher
	Races      *race.Registry
	Gateway    *gateway.Service
	Guild      *discord.Guild
	Dispatcher *commands.Dispatcher
	Bot        *discord.Bot
}

func setupServices(ctx context.Context, cfg *config.Config, session *discordgo.Session, reg prometheus.Registerer) (*Services, error) {
	// Events: dispatcher → fan-out → (spectators, NATS, log)
	metrics := eventbus.NewPrometheusMetrics(reg)
	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	sinks := eventbus.FanOut{connections, eventbus.LogPublisher{}}

	var js *eventbus.JetStreamPublisher
	if cfg.Events.NATSURL != "" {
		jsCfg := eventbus.DefaultJetStreamConfig()
		jsCfg.URL = cfg.Events.NATSURL
		jsCfg.StreamName = cfg.Events.Stream
		jsCfg.SubjectPrefix = cfg.Events.SubjectPrefix

		var err error
		js, err = eventbus.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up event stream: %w", err)
		}
		sinks = append(sinks, eventbus.NewMetricPublisher(js, metrics))
	} else {
		log.Warn().Msg("NATS_URL not set, race events are not persisted")
	}

	dispatcherCfg := eventbus.DefaultDispatcherConfig()
	dispatcherCfg.QueueSize = cfg.Events.QueueSize
	dispatcherCfg.Workers = cfg.Events.Workers
	events := eventbus.NewDispatcher(sinks, dispatcherCfg, metrics)

	// Races
	clock := clockwork.NewRealClock()

	guildCfg := discord.DefaultConfig()
	guildCfg.GuildID = cfg.Discord.GuildID
	guildCfg.CategoryID = cfg.Discord.CategoryID
	guildCfg.CategoryName = cfg.Discord.CategoryName
	guildCfg.StaffRole = cfg.Discord.StaffRole
	guild := discord.NewGuild(session, guildCfg, clock)

	races := race.NewRegistry(guild,
		race.WithClock(clock),
		race.WithContext(ctx),
		race.WithPublisher(events),
		race.WithAutoCloseAfter(cfg.Races.AutoCloseAfter),
		race.WithMaxActive(cfg.Races.MaxActive),
	)

	// Commands
	commandCfg := commands.DefaultConfig()
	commandCfg.Prefix = cfg.Races.CommandPrefix
	commandCfg.DefaultGoal = cfg.Races.DefaultGoal
	commandCfg.Version = version
	dispatcher := commands.NewDispatcher(races, guild, guild, guild, commandCfg)

	return &Services{
		Events:     events,
		JetStream:  js,
		Races:      races,
		Gateway:    gateway.NewService(connections, races),
		Guild:      guild,
		Dispatcher: dispatcher,
		Bot:        discord.NewBot(session, guild, dispatcher),
	}, nil
}
