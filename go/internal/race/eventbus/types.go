package eventbus

import (
	"context"
	"errors"

	"github.com/mcdev12/racebot/go/internal/race/events"
	"github.com/rs/zerolog/log"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// FanOut publishes every event to each of its publishers in order.
type FanOut []EventPublisher

func (f FanOut) Publish(ctx context.Context, event events.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes events to the structured log. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event events.Event) error {
	log.Debug().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("channel_id", event.ChannelID).
		RawJSON("data", event.Data).
		Msg("race event")
	return nil
}
