package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/racebot/go/internal/race"
)

// Channel is a guild text channel a race is bound to.
type Channel struct {
	session *discordgo.Session
	clock   clockwork.Clock
	id      string
	name    string
}

func (c *Channel) ID() string      { return c.id }
func (c *Channel) Name() string    { return c.name }
func (c *Channel) Mention() string { return "<#" + c.id + ">" }

func (c *Channel) Send(ctx context.Context, content string) error {
	if _, err := c.session.ChannelMessageSend(c.id, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Channel) SendEmbed(ctx context.Context, e race.Embed) (string, error) {
	msg, err := c.session.ChannelMessageSendEmbed(c.id, toMessageEmbed(e, c.clock.Now()), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send embed: %w", err)
	}
	return msg.ID, nil
}

func (c *Channel) EditEmbed(ctx context.Context, messageID string, e race.Embed) error {
	if _, err := c.session.ChannelMessageEditEmbed(c.id, messageID, toMessageEmbed(e, c.clock.Now()), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("edit embed %s: %w", messageID, err)
	}
	return nil
}

// UnpinAll removes every pin in the channel, attempting all of them.
func (c *Channel) UnpinAll(ctx context.Context, reason string) error {
	pinned, err := c.session.ChannelMessagesPinned(c.id, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("list pins: %w", err)
	}

	var errs []error
	for _, msg := range pinned {
		if err := c.session.ChannelMessageUnpin(c.id, msg.ID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason)); err != nil {
			errs = append(errs, fmt.Errorf("unpin %s: %w", msg.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Channel) Pin(ctx context.Context, messageID, reason string) error {
	if err := c.session.ChannelMessagePin(c.id, messageID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason)); err != nil {
		return fmt.Errorf("pin %s: %w", messageID, err)
	}
	return nil
}

func (c *Channel) Delete(ctx context.Context, reason string) error {
	if _, err := c.session.ChannelDelete(c.id, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason)); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}
