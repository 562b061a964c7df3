package race

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/racebot/go/internal/race/events"
)

type fakeChannel struct {
	mu sync.Mutex

	id   string
	name string

	texts        []string
	embeds       []Embed
	edits        []Embed
	pinned       []string
	deleted      bool
	deleteReason string
	nextID       int
	failEmbeds   bool
}

func newFakeChannel(id, name string) *fakeChannel {
	return &fakeChannel{id: id, name: name}
}

func (c *fakeChannel) ID() string      { return c.id }
func (c *fakeChannel) Name() string    { return c.name }
func (c *fakeChannel) Mention() string { return "<#" + c.id + ">" }

func (c *fakeChannel) Send(_ context.Context, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, content)
	return nil
}

func (c *fakeChannel) SendEmbed(_ context.Context, embed Embed) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failEmbeds {
		return "", errors.New("discord unavailable")
	}
	c.nextID++
	c.embeds = append(c.embeds, embed)
	return fmt.Sprintf("msg-%d", c.nextID), nil
}

func (c *fakeChannel) EditEmbed(_ context.Context, _ string, embed Embed) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, embed)
	return nil
}

func (c *fakeChannel) UnpinAll(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = nil
	return nil
}

func (c *fakeChannel) Pin(_ context.Context, messageID, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = append(c.pinned, messageID)
	return nil
}

func (c *fakeChannel) Delete(_ context.Context, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = true
	c.deleteReason = reason
	return nil
}

func (c *fakeChannel) textLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

func (c *fakeChannel) hasText(s string) bool {
	for _, t := range c.textLog() {
		if t == s {
			return true
		}
	}
	return false
}

func (c *fakeChannel) lastEmbed() Embed {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.embeds) == 0 {
		return Embed{}
	}
	return c.embeds[len(c.embeds)-1]
}

func (c *fakeChannel) lastEdit() Embed {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.edits) == 0 {
		return Embed{}
	}
	return c.edits[len(c.edits)-1]
}

func (c *fakeChannel) isDeleted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleted
}

type fakeProvider struct {
	mu       sync.Mutex
	channels []*fakeChannel
	err      error
}

func (p *fakeProvider) CreateNumberedChannel(_ context.Context, prefix string) (Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	n := len(p.channels) + 1
	ch := newFakeChannel(fmt.Sprintf("chan-%d", n), fmt.Sprintf("%s-%d", prefix, n))
	p.channels = append(p.channels, ch)
	return ch, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) has(t events.EventType) bool {
	for _, got := range p.types() {
		if got == t {
			return true
		}
	}
	return false
}

type harness struct {
	t         *testing.T
	clock     *clockwork.FakeClock
	provider  *fakeProvider
	publisher *recordingPublisher
	registry  *Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		clock:     clockwork.NewFakeClock(),
		provider:  &fakeProvider{},
		publisher: &recordingPublisher{},
	}
	h.registry = NewRegistry(h.provider,
		WithClock(h.clock),
		WithPublisher(h.publisher),
		WithAutoCloseAfter(5*time.Minute),
	)
	t.Cleanup(h.registry.Shutdown)
	return h
}

func (h *harness) newRace() (*Race, *fakeChannel) {
	h.t.Helper()
	r, err := h.registry.CreateRace(context.Background(), "")
	if err != nil {
		h.t.Fatalf("CreateRace: %v", err)
	}
	return r, r.Channel().(*fakeChannel)
}

// advance waits for n pending timers and then moves the clock forward.
func (h *harness) advance(n int, d time.Duration) {
	h.t.Helper()
	h.clock.BlockUntil(n)
	h.clock.Advance(d)
}

// runCountdown drives an armed countdown through to GO.
func (h *harness) runCountdown(r *Race) {
	h.t.Helper()
	h.advance(1, 5*time.Second)
	for i := 0; i < countdownFrom; i++ {
		h.advance(1, time.Second)
	}
	waitFor(h.t, func() bool { return r.Snapshot().Phase == PhaseRacing })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func member(id string) Member {
	return Member{ID: id, Name: strings.ToUpper(id)}
}
