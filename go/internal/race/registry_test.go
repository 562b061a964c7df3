package race

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestRegistryCreateAndLookup(t *testing.T) {
	h := newHarness(t)

	first, ch := h.newRace()
	second, _ := h.newRace()

	if got, ok := h.registry.GetByChannel(ch.ID()); !ok || got != first {
		t.Fatal("lookup did not return the first race")
	}
	if _, ok := h.registry.GetByChannel("missing"); ok {
		t.Error("lookup of unknown channel succeeded")
	}
	if n := h.registry.Count(); n != 2 {
		t.Errorf("Count = %d", n)
	}

	states := h.registry.ActiveRaces()
	if len(states) != 2 || states[0].ChannelName != "race-1" || states[1].ChannelName != "race-2" {
		t.Errorf("active races = %+v", states)
	}
	if state, ok := h.registry.RaceState(second.Channel().ID()); !ok || state.Phase != PhaseForming {
		t.Errorf("RaceState = %+v, %v", state, ok)
	}

	if got := ch.lastEmbed().Title; got != "New Race" {
		t.Errorf("status message = %q", got)
	}
	if len(ch.pinned) != 1 {
		t.Errorf("pinned = %v", ch.pinned)
	}
}

func TestRegistryLimit(t *testing.T) {
	reg := NewRegistry(&fakeProvider{}, WithClock(clockwork.NewFakeClock()), WithMaxActive(2))
	t.Cleanup(reg.Shutdown)

	for i := 0; i < 2; i++ {
		if _, err := reg.CreateRace(context.Background(), ""); err != nil {
			t.Fatalf("CreateRace %d: %v", i, err)
		}
	}
	if _, err := reg.CreateRace(context.Background(), ""); !errors.Is(err, ErrTooManyRaces) {
		t.Errorf("err = %v, want ErrTooManyRaces", err)
	}
}

func TestRegistryProviderFailure(t *testing.T) {
	boom := errors.New("missing permissions")
	reg := NewRegistry(&fakeProvider{err: boom}, WithClock(clockwork.NewFakeClock()))

	if _, err := reg.CreateRace(context.Background(), ""); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
	if reg.Count() != 0 {
		t.Error("failed creation left a race registered")
	}
}

type slowProvider struct {
	mu sync.Mutex
	n  int
}

func (p *slowProvider) CreateNumberedChannel(_ context.Context, prefix string) (Channel, error) {
	time.Sleep(10 * time.Millisecond)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	return newFakeChannel(fmt.Sprintf("chan-%d", p.n), fmt.Sprintf("%s-%d", prefix, p.n)), nil
}

func TestRegistryConcurrentCreateRespectsLimit(t *testing.T) {
	reg := NewRegistry(&slowProvider{}, WithClock(clockwork.NewFakeClock()), WithMaxActive(2))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.CreateRace(context.Background(), "any%")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrTooManyRaces):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 2 || rejected != 18 {
		t.Errorf("created = %d, rejected = %d", created, rejected)
	}
	if got := reg.Count(); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
}

func TestRegistryReleasesSlotOnProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("discord down")}
	reg := NewRegistry(provider, WithClock(clockwork.NewFakeClock()), WithMaxActive(1))

	if _, err := reg.CreateRace(context.Background(), "any%"); err == nil {
		t.Fatal("expected provider error")
	}

	provider.mu.Lock()
	provider.err = nil
	provider.mu.Unlock()

	if _, err := reg.CreateRace(context.Background(), "any%"); err != nil {
		t.Fatalf("slot was not released: %v", err)
	}
}
