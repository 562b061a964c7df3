package race

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/racebot/go/internal/race/events"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const setupReason = "New race starting."

// Race is a single race bound to one channel. Every operation, countdown step
// and auto-close firing is serialized by mu.
type Race struct {
	mu sync.Mutex

	channel        Channel
	registry       *Registry
	clock          clockwork.Clock
	publisher      EventPublisher
	autoCloseAfter time.Duration
	ctx            context.Context
	logger         zerolog.Logger

	seed     string
	goal     string
	players  []*Player
	started  bool
	start    time.Time
	end      time.Time
	statusID string

	countdown *Countdown
	autoClose *task
	closed    bool
}

func newRace(reg *Registry, channel Channel, goal string) *Race {
	return &Race{
		channel:        channel,
		registry:       reg,
		clock:          reg.clock,
		publisher:      reg.publisher,
		autoCloseAfter: reg.autoCloseAfter,
		ctx:            reg.ctx,
		logger: log.With().
			Str("channel_id", channel.ID()).
			Str("channel", channel.Name()).
			Logger(),
		goal: goal,
	}
}

// Channel returns the channel the race lives in.
func (r *Race) Channel() Channel {
	return r.channel
}

// Snapshot returns the current state of the race.
func (r *Race) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Race) stateLocked() State {
	players := make([]Player, len(r.players))
	for i, p := range r.players {
		players[i] = *p
	}
	return State{
		ChannelID:      r.channel.ID(),
		ChannelName:    r.channel.Name(),
		Seed:           r.seed,
		Goal:           r.goal,
		Phase:          phaseOf(r.started, r.start, r.end),
		Players:        players,
		Start:          r.start,
		End:            r.end,
		CountdownArmed: r.countdown != nil,
		AutoCloseArmed: r.autoClose != nil,
	}
}

// Setup resets the race to a fresh forming state with a new seed and status message.
func (r *Race) Setup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRaceClosed
	}
	r.setupLocked(ctx)
	return nil
}

func (r *Race) setupLocked(ctx context.Context) {
	if r.countdown != nil {
		r.countdown.halt()
		r.countdown = nil
	}
	r.seed = newSeed()
	r.players = nil
	r.started = false
	r.start = time.Time{}
	r.end = time.Time{}

	state := r.stateLocked()
	id, err := r.channel.SendEmbed(ctx, RenderStatus(state))
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to post race status")
	}
	r.statusID = id

	if err := r.channel.UnpinAll(ctx, setupReason); err != nil {
		r.logger.Warn().Err(err).Msg("failed to unpin old status messages")
	}

	r.armAutoClose()

	if r.statusID != "" {
		if err := r.channel.Pin(ctx, r.statusID, setupReason); err != nil {
			r.logger.Warn().Err(err).Msg("failed to pin race status")
		}
	}

	r.logger.Info().Str("seed", r.seed).Str("goal", r.goal).Msg("race set up")
	r.publish(events.EventTypeRaceSetup, events.SetupPayload{
		ChannelName: r.channel.Name(),
		Seed:        r.seed,
		Goal:        r.goal,
	})
}

// Enter adds the member to the race unready.
func (r *Race) Enter(ctx context.Context, m Member) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Player{}, ErrRaceClosed
	}

	if r.started {
		return Player{}, r.reject(ctx, ErrAlreadyStarted, "Race Already Started",
			fmt.Sprintf("Sorry, %s, but this race has already started.", m.Mention()))
	}
	if existing := r.find(m.ID); existing != nil {
		hint := "Please use `.ready` to indicate you are ready to start."
		if existing.Ready {
			hint = "Please wait for the race to start."
		}
		return Player{}, r.reject(ctx, ErrAlreadyEntered, "Already Entered",
			fmt.Sprintf("Sorry, %s, but you have already entered.  %s", m.Mention(), hint))
	}

	r.cancelCountdown(ctx)

	player := &Player{UserID: m.ID}
	r.players = append(r.players, player)

	r.post(ctx, Embed{
		Title: m.Mention() + " Entered",
		Description: fmt.Sprintf("%s has entered!  There %s, with %d remaining to be ready.",
			m.Mention(), r.nowEntries(), r.unreadyCount()),
	})
	r.publishPlayer(events.EventTypePlayerEntered, player, "")
	r.render(ctx)

	return *player, nil
}

// Ready marks the member ready, entering them first if needed. Arms the
// countdown once two or more players are all ready.
func (r *Race) Ready(ctx context.Context, m Member) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Player{}, ErrRaceClosed
	}

	if r.started {
		return Player{}, r.reject(ctx, ErrAlreadyStarted, "Race Already Started",
			fmt.Sprintf("Sorry, %s, but this race has already started.", m.Mention()))
	}

	player := r.find(m.ID)
	if player != nil {
		player.Ready = true
		r.post(ctx, Embed{
			Title: m.Mention() + " Ready",
			Description: fmt.Sprintf("%s is now ready!  There %s, with %d remaining to be ready.",
				m.Mention(), entries(len(r.players)), r.unreadyCount()),
		})
	} else {
		r.cancelCountdown(ctx)
		player = &Player{UserID: m.ID, Ready: true}
		r.players = append(r.players, player)
		r.post(ctx, Embed{
			Title: m.Mention() + " Entered and Ready",
			Description: fmt.Sprintf("%s has entered and is now ready!  There %s, with %d remaining to be ready.",
				m.Mention(), entries(len(r.players)), r.unreadyCount()),
		})
	}
	r.publishPlayer(events.EventTypePlayerReady, player, "")

	if r.countdown == nil && len(r.players) >= 2 && r.unreadyCount() == 0 {
		r.countdown = startCountdown(r)
	}

	r.render(ctx)
	return *player, nil
}

// Unready clears the member's ready flag and aborts any armed countdown.
func (r *Race) Unready(ctx context.Context, m Member) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Player{}, ErrRaceClosed
	}

	if r.started {
		return Player{}, r.reject(ctx, ErrAlreadyStarted, "Race Already Started",
			fmt.Sprintf("Sorry, %s, but this race has already started.", m.Mention()))
	}
	player := r.find(m.ID)
	if player == nil {
		return Player{}, r.rejectNotEntered(ctx, m)
	}

	r.cancelCountdown(ctx)
	player.Ready = false

	r.post(ctx, Embed{
		Title: m.Mention() + " Unready",
		Description: fmt.Sprintf("%s is no longer ready.  There %s, with %d remaining to be ready.",
			m.Mention(), entries(len(r.players)), r.unreadyCount()),
	})
	r.publishPlayer(events.EventTypePlayerUnready, player, "")
	r.render(ctx)

	return *player, nil
}

// Withdraw removes the member from a race that has not started.
func (r *Race) Withdraw(ctx context.Context, m Member) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Player{}, ErrRaceClosed
	}

	if r.started {
		return Player{}, r.reject(ctx, ErrAlreadyStarted, "Race Already Started",
			fmt.Sprintf("Sorry, %s, but this race has already started.  Use `.forfeit` to forfeit.", m.Mention()))
	}
	player := r.find(m.ID)
	if player == nil {
		return Player{}, r.rejectNotEntered(ctx, m)
	}

	r.remove(m.ID)

	r.post(ctx, Embed{
		Title: m.Mention() + " Withdrawn",
		Description: fmt.Sprintf("%s has withdrawn.  There %s, with %d remaining to be ready.",
			m.Mention(), r.nowEntries(), r.unreadyCount()),
	})
	r.publishPlayer(events.EventTypePlayerWithdrawn, player, "")

	r.rebalanceCountdown(ctx)
	r.render(ctx)

	return *player, nil
}

// Kick removes target from the race on behalf of actor.
func (r *Race) Kick(ctx context.Context, actor, target Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRaceClosed
	}

	if !r.end.IsZero() {
		return r.reject(ctx, ErrRaceFinished, "Race Already Finished",
			fmt.Sprintf("Sorry, %s, but this race has completed.", actor.Mention()))
	}
	player := r.find(target.ID)
	if player == nil {
		return r.reject(ctx, ErrNotEntered, "Not Entered",
			fmt.Sprintf("Sorry, %s, but %s has not entered this race.", actor.Mention(), target.Mention()))
	}

	r.remove(target.ID)

	r.post(ctx, Embed{
		Title:       target.Mention() + " Kicked",
		Description: fmt.Sprintf("%s was removed from the race by %s.", target.Mention(), actor.Mention()),
	})
	r.publishPlayer(events.EventTypePlayerKicked, player, actor.ID)

	if r.started {
		r.completeIfDone(ctx)
	} else {
		r.rebalanceCountdown(ctx)
	}

	r.render(ctx)
	return nil
}

// Done records the member's finish time.
func (r *Race) Done(ctx context.Context, m Member) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Player{}, ErrRaceClosed
	}

	player, err := r.checkRacing(ctx, m)
	if err != nil {
		return Player{}, err
	}

	player.Finish = r.clock.Now()
	place := r.finishedCount()
	elapsed := player.Finish.Sub(r.start)

	r.say(ctx, fmt.Sprintf("%s has finished %d%s with **%s**.", m.Mention(), place, Ordinal(place), FormatTime(elapsed)))
	r.logger.Info().Str("user_id", m.ID).Int("place", place).Dur("elapsed", elapsed).Msg("player finished")
	r.publish(events.EventTypePlayerFinished, events.FinishedPayload{
		UserID:    m.ID,
		Place:     place,
		ElapsedMS: elapsed.Milliseconds(),
		Time:      FormatTime(elapsed),
	})

	r.completeIfDone(ctx)
	r.render(ctx)

	return *player, nil
}

// Forfeit records that the member gave up.
func (r *Race) Forfeit(ctx context.Context, m Member) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Player{}, ErrRaceClosed
	}

	player, err := r.checkRacing(ctx, m)
	if err != nil {
		return Player{}, err
	}

	player.Forfeit = true

	r.say(ctx, m.Mention()+" has forfeited.")
	r.publishPlayer(events.EventTypePlayerForfeited, player, "")

	r.completeIfDone(ctx)
	r.render(ctx)

	return *player, nil
}

// NotDone undoes a finish or forfeit, resuming a completed race if necessary.
func (r *Race) NotDone(ctx context.Context, m Member) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Player{}, ErrRaceClosed
	}

	if !r.started {
		return Player{}, r.reject(ctx, ErrNotStarted, "Race Not Started",
			fmt.Sprintf("Sorry, %s, but this race hasn't started yet.", m.Mention()))
	}
	player := r.find(m.ID)
	if player == nil {
		return Player{}, r.rejectNotEntered(ctx, m)
	}
	if player.Racing() {
		return Player{}, r.reject(ctx, ErrNotFinished, "Not Finished",
			fmt.Sprintf("Sorry, %s, but you haven't finished or forfeited.", m.Mention()))
	}

	player.Finish = time.Time{}
	player.Forfeit = false

	r.say(ctx, m.Mention()+" has resumed racing.")
	r.publishPlayer(events.EventTypePlayerResumed, player, "")

	if !r.end.IsZero() {
		r.end = time.Time{}
		r.post(ctx, Embed{
			Title:       "Race Resumed",
			Description: "The race has been resumed.",
		})
		r.logger.Info().Msg("race resumed")
		r.publish(events.EventTypeRaceResumed, r.resultsPayload())
	}

	r.render(ctx)
	return *player, nil
}

// Time posts and returns the elapsed time of a running race.
func (r *Race) Time(ctx context.Context, m Member) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrRaceClosed
	}

	if !r.started {
		return 0, r.reject(ctx, ErrNotStarted, "Race Not Started",
			fmt.Sprintf("Sorry, %s, but this race has not started.", m.Mention()))
	}
	if !r.end.IsZero() {
		return 0, r.reject(ctx, ErrRaceFinished, "Race Already Finished",
			fmt.Sprintf("Sorry, %s, but this race has completed.", m.Mention()))
	}

	elapsed := r.clock.Since(r.start)
	r.say(ctx, fmt.Sprintf("The current race time is **%s**.", FormatTime(elapsed)))
	return elapsed, nil
}

// Rematch starts a fresh race in the same channel once the current one is complete.
func (r *Race) Rematch(ctx context.Context, m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRaceClosed
	}

	if r.end.IsZero() {
		return r.reject(ctx, ErrRaceInProgress, "Race Already Started",
			fmt.Sprintf("Sorry, %s, but there is already an active race.", m.Mention()))
	}

	r.setupLocked(ctx)
	return nil
}

// Close deletes the race channel and removes the race from its registry.
// A nil actor means the race closed itself after sitting idle.
func (r *Race) Close(ctx context.Context, actor *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRaceClosed
	}
	r.closeLocked(ctx, actor)
	return nil
}

func (r *Race) closeLocked(ctx context.Context, actor *Member) {
	r.closed = true
	if r.countdown != nil {
		r.countdown.halt()
		r.countdown = nil
	}
	r.clearAutoClose()
	r.registry.remove(r)

	payload := events.ClosedPayload{Automatic: actor == nil}
	if actor != nil {
		by := actor.Name
		if by == "" {
			by = actor.Mention()
		}
		payload.ClosedBy = actor.ID
		payload.Reason = fmt.Sprintf("The race room %s was closed by %s.", r.channel.Name(), by)
	} else {
		payload.Reason = fmt.Sprintf("The race room %s was automatically closed after %s of inactivity.",
			r.channel.Name(), humanDuration(r.autoCloseAfter))
	}

	r.logger.Info().Str("reason", payload.Reason).Msg("race closed")
	r.publish(events.EventTypeRaceClosed, payload)

	if err := r.channel.Delete(ctx, payload.Reason); err != nil {
		r.logger.Warn().Err(err).Msg("failed to delete race channel")
	}
}

// checkRacing applies the shared preconditions of done and forfeit.
func (r *Race) checkRacing(ctx context.Context, m Member) (*Player, error) {
	if !r.started {
		return nil, r.reject(ctx, ErrNotStarted, "Race Not Started",
			fmt.Sprintf("Sorry, %s, but this race hasn't started yet.", m.Mention()))
	}
	if !r.end.IsZero() {
		return nil, r.reject(ctx, ErrRaceFinished, "Race Already Finished",
			fmt.Sprintf("Sorry, %s, but this race is already finished.", m.Mention()))
	}
	player := r.find(m.ID)
	if player == nil {
		return nil, r.rejectNotEntered(ctx, m)
	}
	if player.Finished() {
		return nil, r.reject(ctx, ErrAlreadyFinished, "Already Finished",
			fmt.Sprintf("Sorry, %s, but you have already finished.", m.Mention()))
	}
	if player.Forfeit {
		return nil, r.reject(ctx, ErrAlreadyForfeited, "Already Forfeited",
			fmt.Sprintf("Sorry, %s, but you have already forfeited.", m.Mention()))
	}
	return player, nil
}

// completeIfDone ends the race when nobody is still racing.
func (r *Race) completeIfDone(ctx context.Context) {
	for _, p := range r.players {
		if p.Racing() {
			return
		}
	}

	r.end = r.clock.Now()
	r.post(ctx, RenderResults(r.stateLocked()))
	r.logger.Info().Time("ended_at", r.end).Msg("race complete")
	r.publish(events.EventTypeRaceCompleted, r.resultsPayload())
}

// rebalanceCountdown arms or aborts the countdown after the roster shrank.
func (r *Race) rebalanceCountdown(ctx context.Context) {
	if r.countdown == nil && len(r.players) >= 2 && r.unreadyCount() == 0 {
		r.countdown = startCountdown(r)
		return
	}
	if r.countdown != nil && len(r.players) < 2 {
		r.cancelCountdown(ctx)
	}
}

func (r *Race) cancelCountdown(ctx context.Context) {
	if r.countdown == nil {
		return
	}
	r.countdown.cancel(ctx)
	r.countdown = nil
}

// render updates the pinned status message and the auto-close timer for the current phase.
func (r *Race) render(ctx context.Context) {
	state := r.stateLocked()

	switch state.Phase {
	case PhaseForming:
		if len(state.Players) == 0 {
			if r.autoClose == nil {
				r.armAutoClose()
			}
		} else {
			r.clearAutoClose()
		}
	case PhaseCountdown, PhaseRacing:
		r.clearAutoClose()
	case PhaseComplete:
		if r.autoClose == nil {
			r.armAutoClose()
		}
	}

	if r.statusID == "" {
		r.logger.Warn().Msg("no status message to update")
		return
	}
	if err := r.channel.EditEmbed(ctx, r.statusID, RenderStatus(state)); err != nil {
		r.logger.Warn().Err(err).Msg("failed to update race status")
	}
}

func (r *Race) armAutoClose() {
	r.clearAutoClose()
	r.autoClose = schedule(r.clock, r.autoCloseAfter, func(t *task) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.closed || r.autoClose != t {
			return
		}
		r.autoClose = nil
		r.closeLocked(r.ctx, nil)
	})
	r.logger.Debug().Dur("after", r.autoCloseAfter).Msg("auto-close armed")
}

func (r *Race) clearAutoClose() {
	if r.autoClose == nil {
		return
	}
	r.autoClose.cancel()
	r.autoClose = nil
	r.logger.Debug().Msg("auto-close cleared")
}

func (r *Race) reject(ctx context.Context, err error, title, description string) error {
	r.post(ctx, Embed{Title: title, Description: description})
	return err
}

func (r *Race) rejectNotEntered(ctx context.Context, m Member) error {
	return r.reject(ctx, ErrNotEntered, "Not Entered",
		fmt.Sprintf("Sorry, %s, but you have not entered.", m.Mention()))
}

func (r *Race) say(ctx context.Context, content string) {
	if err := r.channel.Send(ctx, content); err != nil {
		r.logger.Warn().Err(err).Str("content", content).Msg("failed to send message")
	}
}

func (r *Race) post(ctx context.Context, embed Embed) {
	if _, err := r.channel.SendEmbed(ctx, embed); err != nil {
		r.logger.Warn().Err(err).Str("title", embed.Title).Msg("failed to send embed")
	}
}

func (r *Race) publish(eventType events.EventType, payload any) {
	if r.publisher == nil {
		return
	}
	event, err := events.New(eventType, r.channel.ID(), r.clock.Now(), payload)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to build race event")
		return
	}
	if err := r.publisher.Publish(r.ctx, event); err != nil {
		r.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("failed to publish race event")
	}
}

func (r *Race) publishPlayer(eventType events.EventType, p *Player, kickedBy string) {
	r.publish(eventType, events.PlayerPayload{
		UserID:   p.UserID,
		Ready:    p.Ready,
		Entries:  len(r.players),
		Unready:  r.unreadyCount(),
		KickedBy: kickedBy,
	})
}

func (r *Race) resultsPayload() events.CompletedPayload {
	state := r.stateLocked()
	payload := events.CompletedPayload{
		StartedAt: r.start,
		EndedAt:   r.end,
		Standings: []events.Standing{},
		Forfeited: []string{},
	}
	for i, p := range state.Finishers() {
		elapsed := p.Finish.Sub(r.start)
		payload.Standings = append(payload.Standings, events.Standing{
			Place:     i + 1,
			UserID:    p.UserID,
			ElapsedMS: elapsed.Milliseconds(),
			Time:      FormatTime(elapsed),
		})
	}
	for _, p := range r.players {
		if p.Forfeit {
			payload.Forfeited = append(payload.Forfeited, p.UserID)
		}
	}
	return payload
}

func (r *Race) find(userID string) *Player {
	for _, p := range r.players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (r *Race) remove(userID string) {
	kept := r.players[:0]
	for _, p := range r.players {
		if p.UserID != userID {
			kept = append(kept, p)
		}
	}
	r.players = kept
}

func (r *Race) unreadyCount() int {
	n := 0
	for _, p := range r.players {
		if !p.Ready {
			n++
		}
	}
	return n
}

func (r *Race) finishedCount() int {
	n := 0
	for _, p := range r.players {
		if p.Finished() {
			n++
		}
	}
	return n
}

func (r *Race) playerIDs() []string {
	ids := make([]string, len(r.players))
	for i, p := range r.players {
		ids[i] = p.UserID
	}
	return ids
}

// nowEntries phrases the entry count after the roster changed.
func (r *Race) nowEntries() string {
	n := len(r.players)
	if n == 1 {
		return "is now 1 entry"
	}
	return fmt.Sprintf("are now %d entries", n)
}
