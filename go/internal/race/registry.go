package race

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	channelPrefix = "race"

	// DefaultAutoCloseAfter is how long an idle race room stays open.
	DefaultAutoCloseAfter = 5 * time.Minute
	// DefaultMaxActive is the number of race rooms allowed at once.
	DefaultMaxActive = 40
)

// Registry holds the active races, keyed by channel id.
type Registry struct {
	mu    sync.RWMutex
	races map[string]*Race
	// slots reserved by creations still waiting on the provider
	pending int

	provider       ChannelProvider
	clock          clockwork.Clock
	publisher      EventPublisher
	autoCloseAfter time.Duration
	maxActive      int
	ctx            context.Context
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used for countdowns, auto-close and finish times.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithPublisher sets where race events are sent.
func WithPublisher(p EventPublisher) Option {
	return func(r *Registry) { r.publisher = p }
}

// WithAutoCloseAfter sets the idle period after which a race room closes itself.
func WithAutoCloseAfter(d time.Duration) Option {
	return func(r *Registry) { r.autoCloseAfter = d }
}

// WithMaxActive limits the number of concurrent races. Zero means no limit.
func WithMaxActive(n int) Option {
	return func(r *Registry) { r.maxActive = n }
}

// WithContext sets the context used by timer-driven work such as countdown
// announcements and auto-close.
func WithContext(ctx context.Context) Option {
	return func(r *Registry) { r.ctx = ctx }
}

// NewRegistry creates an empty registry that allocates channels from provider.
func NewRegistry(provider ChannelProvider, opts ...Option) *Registry {
	r := &Registry{
		races:          make(map[string]*Race),
		provider:       provider,
		clock:          clockwork.NewRealClock(),
		autoCloseAfter: DefaultAutoCloseAfter,
		maxActive:      DefaultMaxActive,
		ctx:            context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateRace allocates a new race channel, sets the race up and registers it.
func (r *Registry) CreateRace(ctx context.Context, goal string) (*Race, error) {
	if !r.reserve() {
		return nil, ErrTooManyRaces
	}

	channel, err := r.provider.CreateNumberedChannel(ctx, channelPrefix)
	if err != nil {
		r.release()
		return nil, fmt.Errorf("create race channel: %w", err)
	}

	race := newRace(r, channel, goal)

	race.mu.Lock()
	defer race.mu.Unlock()

	r.mu.Lock()
	r.pending--
	r.races[channel.ID()] = race
	r.mu.Unlock()

	race.setupLocked(ctx)

	log.Info().
		Str("channel_id", channel.ID()).
		Str("channel", channel.Name()).
		Int("active_races", r.Count()).
		Msg("race created")

	return race, nil
}

// GetByChannel returns the race bound to channelID.
func (r *Registry) GetByChannel(channelID string) (*Race, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	race, ok := r.races[channelID]
	return race, ok
}

// Count returns the number of active races.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.races)
}

// Races returns the active races ordered by channel name.
func (r *Registry) Races() []*Race {
	r.mu.RLock()
	races := make([]*Race, 0, len(r.races))
	for _, race := range r.races {
		races = append(races, race)
	}
	r.mu.RUnlock()

	sort.Slice(races, func(i, j int) bool {
		return races[i].channel.Name() < races[j].channel.Name()
	})
	return races
}

// ActiveRaces returns a snapshot of every active race.
func (r *Registry) ActiveRaces() []State {
	races := r.Races()
	states := make([]State, len(races))
	for i, race := range races {
		states[i] = race.Snapshot()
	}
	return states
}

// RaceState returns a snapshot of the race bound to channelID.
func (r *Registry) RaceState(channelID string) (State, bool) {
	race, ok := r.GetByChannel(channelID)
	if !ok {
		return State{}, false
	}
	return race.Snapshot(), true
}

// Shutdown stops every race's timers without closing their channels.
func (r *Registry) Shutdown() {
	for _, race := range r.Races() {
		race.mu.Lock()
		if race.countdown != nil {
			race.countdown.halt()
			race.countdown = nil
		}
		race.clearAutoClose()
		race.closed = true
		race.mu.Unlock()
	}
	r.mu.Lock()
	r.races = make(map[string]*Race)
	r.mu.Unlock()
}

// reserve claims a slot under the active race limit.
func (r *Registry) reserve() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxActive > 0 && len(r.races)+r.pending >= r.maxActive {
		return false
	}
	r.pending++
	return true
}

func (r *Registry) release() {
	r.mu.Lock()
	r.pending--
	r.mu.Unlock()
}

func (r *Registry) remove(race *Race) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.races[race.channel.ID()]; ok && current == race {
		delete(r.races, race.channel.ID())
	}
}
