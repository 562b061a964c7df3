package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/mcdev12/racebot/go/internal/race"
	"github.com/rs/zerolog/log"
)

var mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)

func (d *Dispatcher) handleRace(ctx context.Context, req Request) error {
	goal := req.Params
	if goal == "" {
		goal = d.config.DefaultGoal
	}

	r, err := d.races.CreateRace(ctx, goal)
	if errors.Is(err, race.ErrTooManyRaces) {
		d.reply(ctx, req.ChannelID, race.Embed{
			Title:       "Too Many Races",
			Description: "There are too many races going on at once.  Please join one of them instead!",
		})
		return err
	}
	if err != nil {
		return err
	}

	d.reply(ctx, req.ChannelID, race.Embed{
		Title:       "Race Created",
		Description: fmt.Sprintf("Visit %s to join the race.", r.Channel().Mention()),
	})
	return nil
}

func (d *Dispatcher) handleClose(ctx context.Context, req Request) error {
	if !d.members.IsStaff(ctx, req.Actor) {
		return nil
	}

	if r, ok := d.raceFor(req); ok {
		actor := req.Actor
		return r.Close(ctx, &actor)
	}

	if d.stale.IsRaceChannel(ctx, req.ChannelID) {
		reason := fmt.Sprintf("The stale race room %s was closed by %s.", req.ChannelName, displayName(req.Actor))
		log.Info().Str("channel_id", req.ChannelID).Str("reason", reason).Msg("closing stale race room")
		if err := d.stale.DeleteChannel(ctx, req.ChannelID, reason); err != nil {
			return fmt.Errorf("delete stale channel: %w", err)
		}
	}
	return nil
}

func (d *Dispatcher) handleKick(ctx context.Context, req Request) error {
	if !d.members.IsStaff(ctx, req.Actor) {
		return nil
	}
	r, ok := d.raceFor(req)
	if !ok {
		return nil
	}

	m := mentionPattern.FindStringSubmatch(req.Params)
	if m == nil {
		return nil
	}
	target, ok := d.members.Resolve(ctx, m[1])
	if !ok {
		return nil
	}

	return r.Kick(ctx, req.Actor, target)
}

func (d *Dispatcher) handleHelp(ctx context.Context, req Request) error {
	d.reply(ctx, req.ChannelID, helpEmbed(d.config))
	return nil
}

func (d *Dispatcher) reply(ctx context.Context, channelID string, embed race.Embed) {
	if err := d.replier.Reply(ctx, channelID, embed); err != nil {
		log.Warn().Err(err).Str("channel_id", channelID).Str("title", embed.Title).Msg("failed to reply")
	}
}

func displayName(m race.Member) string {
	if m.Name != "" {
		return m.Name
	}
	return m.Mention()
}

func helpEmbed(cfg Config) race.Embed {
	p := cfg.Prefix
	return race.Embed{
		Title:       "SPRINT Racebot v" + cfg.Version,
		Description: "A Discord bot for racing Star of Providence.",
		Fields: []race.Field{
			{
				Name:   "General Commands",
				Value:  fmt.Sprintf("`%[1]shelp` - This help text.\n`%[1]srace [goal]` - Start a new race.", p),
				Inline: true,
			},
			{
				Name: "Race Room Commands - Before the Race",
				Value: fmt.Sprintf("`%[1]senter`/`%[1]se` - Enter the race.\n"+
					"`%[1]sready`/`%[1]sr` - Indicate that you are ready to start the race.\n"+
					"`%[1]sunready`/`%[1]su` - Indicate you are not ready and need more time before the race starts.\n"+
					"`%[1]swithdraw`/`%[1]sw` - Withdraw from the race.", p),
			},
			{
				Name: "Race Room Commands - During the Race",
				Value: fmt.Sprintf("`%[1]sdone`/`%[1]sd` - Indicate that you have finished the race.\n"+
					"`%[1]sforfeit`/`%[1]sf` - Forfeit the race.\n"+
					"`%[1]snotdone`/`%[1]sn` - If you did `%[1]sdone` or `%[1]sforfeit`, this undoes that, re-entering you into the race.\n"+
					"`%[1]stime`/`%[1]st` - Get the current elapsed time of the race.", p),
			},
			{
				Name: "Race Room Commands - After the Race",
				Value: fmt.Sprintf("`%[1]snotdone`/`%[1]sn` - If you did `%[1]sdone` or `%[1]sforfeit`, this undoes that, continuing the race and re-entering you into it.\n"+
					"`%[1]srematch` - Starts a new race in the same race channel.", p),
			},
			{
				Name: "Staff Commands",
				Value: fmt.Sprintf("`%[1]sclose` - Immediately close the race room you are in.\n"+
					"`%[1]skick <@user>` - Kick a player out of the race in the room you are in.  You must mention the player.  They can rejoin, if the race is still accepting entries.", p),
				Inline: true,
			},
		},
	}
}
