package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/mcdev12/racebot/go/internal/race"
	"github.com/rs/zerolog/log"
)

// MessageHandler runs chat commands.
type MessageHandler interface {
	Dispatch(ctx context.Context, actor race.Member, channelID, channelName, content string) error
}

// NewSession creates a bot session that can read guild message content.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent
	return session, nil
}

// Bot connects the gateway session to the command handler.
type Bot struct {
	session *discordgo.Session
	guild   *Guild
	handler MessageHandler
	ctx     context.Context
}

func NewBot(session *discordgo.Session, guild *Guild, handler MessageHandler) *Bot {
	return &Bot{
		session: session,
		guild:   guild,
		handler: handler,
		ctx:     context.Background(),
	}
}

// Open connects to Discord. Commands run with ctx.
func (b *Bot) Open(ctx context.Context) error {
	b.ctx = ctx
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onDisconnect)
	b.session.AddHandler(b.onMessageCreate)

	log.Info().Msg("connecting to discord")
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("connected to discord")
	if err := b.guild.Load(b.ctx); err != nil {
		log.Error().Err(err).Msg("failed to load guild")
	}
}

func (b *Bot) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	log.Error().Msg("disconnected from discord")
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID != b.guild.config.GuildID {
		return
	}

	actor := race.Member{ID: m.Author.ID, Name: memberName(m.Author, m.Member)}
	channelName := b.guild.ChannelName(b.ctx, m.ChannelID)

	if err := b.handler.Dispatch(b.ctx, actor, m.ChannelID, channelName, m.Content); err != nil {
		log.Error().
			Err(err).
			Str("channel_id", m.ChannelID).
			Str("user_id", actor.ID).
			Str("content", m.Content).
			Msg("command failed")
	}
}
