package race

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/racebot/go/internal/race/events"
)

const (
	countdownLength = 10 * time.Second
	countdownFrom   = 5
)

// Countdown is the 10 second start sequence for a race. All of its state is
// guarded by the owning race's mutex.
type Countdown struct {
	race      *Race
	target    time.Time
	counter   int
	cancelled bool
	step      *task
}

// startCountdown arms a countdown for r. Caller holds r.mu.
func startCountdown(r *Race) *Countdown {
	now := r.clock.Now()
	c := &Countdown{
		race:    r,
		target:  now.Add(countdownLength),
		counter: countdownFrom,
	}
	r.start = c.target

	c.scheduleNext(c.target.Sub(now) - countdownFrom*time.Second)

	r.logger.Info().
		Time("starts_at", c.target).
		Int("players", len(r.players)).
		Msg("countdown started")
	r.publish(events.EventTypeCountdownStarted, events.CountdownPayload{
		StartsAt: c.target,
		Players:  r.playerIDs(),
	})

	return c
}

func (c *Countdown) scheduleNext(d time.Duration) {
	c.step = schedule(c.race.clock, d, c.fire)
}

func (c *Countdown) fire(t *task) {
	r := c.race
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.cancelled || r.closed || r.countdown != c || c.step != t {
		return
	}
	c.tick(r.ctx)
}

// tick announces the next number, or starts the race once the counter is spent.
func (c *Countdown) tick(ctx context.Context) {
	r := c.race

	if c.counter > 0 {
		r.say(ctx, fmt.Sprintf("%d...", c.counter))
		c.counter--
		c.scheduleNext(c.target.Sub(r.clock.Now()) - time.Duration(c.counter)*time.Second)
		return
	}

	r.started = true
	r.countdown = nil
	c.step = nil

	r.logger.Info().Time("started_at", r.start).Msg("race started")
	r.say(ctx, "GO!")
	r.publish(events.EventTypeRaceStarted, events.StartedPayload{
		StartedAt: r.start,
		Players:   r.playerIDs(),
	})
	r.render(ctx)
}

// cancel aborts the countdown and tells the channel. No-op once the race started.
func (c *Countdown) cancel(ctx context.Context) {
	r := c.race
	if r.started {
		return
	}
	c.halt()
	r.start = time.Time{}

	r.logger.Info().Msg("countdown aborted")
	r.say(ctx, "Countdown aborted.")
	r.publish(events.EventTypeCountdownCancelled, events.CountdownPayload{
		Players: r.playerIDs(),
	})
}

// halt latches the countdown and stops its pending step without announcing anything.
func (c *Countdown) halt() {
	c.cancelled = true
	c.step.cancel()
	c.step = nil
}
