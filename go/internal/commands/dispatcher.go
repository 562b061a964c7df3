package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mcdev12/racebot/go/internal/race"
	"github.com/rs/zerolog/log"
)

// Races is the part of the race registry the commands need.
type Races interface {
	CreateRace(ctx context.Context, goal string) (*race.Race, error)
	GetByChannel(channelID string) (*race.Race, bool)
}

// Members resolves guild members and their roles.
type Members interface {
	IsStaff(ctx context.Context, m race.Member) bool
	Resolve(ctx context.Context, userID string) (race.Member, bool)
}

// Replier posts rich replies to the channel a command came from.
type Replier interface {
	Reply(ctx context.Context, channelID string, embed race.Embed) error
}

// StaleChannels finds and removes race rooms left behind without a race,
// for example after a restart.
type StaleChannels interface {
	IsRaceChannel(ctx context.Context, channelID string) bool
	DeleteChannel(ctx context.Context, channelID, reason string) error
}

// Request is one parsed chat command.
type Request struct {
	Actor       race.Member
	ChannelID   string
	ChannelName string
	Command     string
	Params      string
}

type HandlerFunc func(ctx context.Context, req Request) error

type Config struct {
	Prefix      string
	DefaultGoal string
	Version     string
}

func DefaultConfig() Config {
	return Config{
		Prefix:      ".",
		DefaultGoal: "F5 Null Normal Mild",
		Version:     "dev",
	}
}

// Dispatcher routes chat messages to race operations.
type Dispatcher struct {
	races   Races
	members Members
	replier Replier
	stale   StaleChannels
	config  Config

	pattern  *regexp.Regexp
	handlers map[string]HandlerFunc
}

func NewDispatcher(races Races, members Members, replier Replier, stale StaleChannels, cfg Config) *Dispatcher {
	d := &Dispatcher{
		races:    races,
		members:  members,
		replier:  replier,
		stale:    stale,
		config:   cfg,
		pattern:  regexp.MustCompile(`^` + regexp.QuoteMeta(cfg.Prefix) + `([A-Za-z]+)\s*(.*)`),
		handlers: make(map[string]HandlerFunc),
	}

	d.register(d.handleRace, "race")
	d.register(d.handleHelp, "help")
	d.register(d.handleClose, "close")
	d.register(d.handleKick, "kick")
	d.register(d.handleRematch, "rematch")
	d.register(d.playerOp((*race.Race).Enter), "enter", "e")
	d.register(d.playerOp((*race.Race).Ready), "ready", "r")
	d.register(d.playerOp((*race.Race).Unready), "unready", "u")
	d.register(d.playerOp((*race.Race).Withdraw), "withdraw", "w")
	d.register(d.playerOp((*race.Race).Done), "done", "d")
	d.register(d.playerOp((*race.Race).Forfeit), "forfeit", "f")
	d.register(d.playerOp((*race.Race).NotDone), "notdone", "n")
	d.register(d.handleTime, "time", "t")

	return d
}

func (d *Dispatcher) register(h HandlerFunc, names ...string) {
	for _, name := range names {
		d.handlers[name] = h
	}
}

// Parse splits a message into a lower-cased command and its parameters.
func (d *Dispatcher) Parse(content string) (command, params string, ok bool) {
	m := d.pattern.FindStringSubmatch(content)
	if m == nil {
		return "", "", false
	}
	return strings.ToLower(m[1]), strings.TrimSpace(m[2]), true
}

// Dispatch parses content and runs the matching command. Unknown commands are
// ignored, and rejections have already been reported in the race channel.
func (d *Dispatcher) Dispatch(ctx context.Context, actor race.Member, channelID, channelName, content string) error {
	command, params, ok := d.Parse(content)
	if !ok {
		return nil
	}
	handler, ok := d.handlers[command]
	if !ok {
		return nil
	}

	req := Request{
		Actor:       actor,
		ChannelID:   channelID,
		ChannelName: channelName,
		Command:     command,
		Params:      params,
	}

	err := handler(ctx, req)
	if race.IsRejection(err) {
		log.Debug().
			Err(err).
			Str("command", command).
			Str("channel_id", channelID).
			Str("user_id", actor.ID).
			Msg("command rejected")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}

func (d *Dispatcher) raceFor(req Request) (*race.Race, bool) {
	return d.races.GetByChannel(req.ChannelID)
}

// playerOp adapts a race operation that acts on the caller.
func (d *Dispatcher) playerOp(op func(*race.Race, context.Context, race.Member) (race.Player, error)) HandlerFunc {
	return func(ctx context.Context, req Request) error {
		r, ok := d.raceFor(req)
		if !ok {
			return nil
		}
		_, err := op(r, ctx, req.Actor)
		return err
	}
}

func (d *Dispatcher) handleTime(ctx context.Context, req Request) error {
	r, ok := d.raceFor(req)
	if !ok {
		return nil
	}
	_, err := r.Time(ctx, req.Actor)
	return err
}

func (d *Dispatcher) handleRematch(ctx context.Context, req Request) error {
	r, ok := d.raceFor(req)
	if !ok {
		return nil
	}
	return r.Rematch(ctx, req.Actor)
}
