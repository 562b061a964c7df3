package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/racebot/go/internal/race/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func mustEvent(t *testing.T, et events.EventType) events.Event {
	t.Helper()
	ev, err := events.New(et, "chan-1", time.Unix(1700000000, 0), events.PlayerPayload{UserID: "alice"})
	if err != nil {
		t.Fatalf("events.New: %v", err)
	}
	return ev
}

func TestNewMessage(t *testing.T) {
	ev := mustEvent(t, events.EventTypePlayerEntered)

	msg, err := newMessage("race.events", ev)
	if err != nil {
		t.Fatalf("newMessage: %v", err)
	}
	if msg.Subject != "race.events.player.entered" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if got := msg.Header.Get("Event-ID"); got != ev.ID.String() {
		t.Errorf("Event-ID header = %q", got)
	}
	if got := msg.Header.Get("Channel-ID"); got != "chan-1" {
		t.Errorf("Channel-ID header = %q", got)
	}

	var decoded events.Event
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	payload, err := events.ParsePayload(decoded)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p, ok := payload.(events.PlayerPayload); !ok || p.UserID != "alice" {
		t.Errorf("payload = %#v", payload)
	}
}

func TestStreamConfigCoversPrefix(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	sc := streamConfig(cfg)
	if len(sc.Subjects) != 1 || sc.Subjects[0] != "race.events.>" {
		t.Errorf("subjects = %v", sc.Subjects)
	}
	if !isStreamConfigEqual(sc, streamConfig(cfg)) {
		t.Error("identical configs compare unequal")
	}
	cfg.Replicas = 3
	if isStreamConfigEqual(sc, streamConfig(cfg)) {
		t.Error("replica change not detected")
	}
}

func TestMetricPublisherRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(reg)

	ok := NewMetricPublisher(&recorder{}, metrics)
	failing := NewMetricPublisher(&recorder{err: errors.New("nats down")}, metrics)

	if err := ok.Publish(context.Background(), mustEvent(t, events.EventTypeRaceStarted)); err != nil {
		t.Fatal(err)
	}
	if err := failing.Publish(context.Background(), mustEvent(t, events.EventTypeRaceStarted)); err == nil {
		t.Fatal("expected error from failing publisher")
	}

	if got := testutil.ToFloat64(metrics.eventCounter.WithLabelValues("race.started", "success")); got != 1 {
		t.Errorf("success count = %v", got)
	}
	if got := testutil.ToFloat64(metrics.eventCounter.WithLabelValues("race.started", "failure")); got != 1 {
		t.Errorf("failure count = %v", got)
	}
}

func TestDispatcherDeliversAndDrops(t *testing.T) {
	rec := &recorder{}
	reg := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(reg)
	d := NewDispatcher(rec, DispatcherConfig{QueueSize: 2, Workers: 1, PublishTimeout: time.Second}, metrics)

	// Queue is filled before the workers start, so the third event overflows.
	for i := 0; i < 2; i++ {
		if err := d.Publish(context.Background(), mustEvent(t, events.EventTypePlayerReady)); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	if err := d.Publish(context.Background(), mustEvent(t, events.EventTypePlayerReady)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if got := testutil.ToFloat64(metrics.dropped.WithLabelValues("player.ready")); got != 1 {
		t.Errorf("dropped = %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for rec.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("delivered %d events, want 2", rec.count())
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	d.Wait()
}

// slowFirst stalls on the first event it sees.
type slowFirst struct {
	mu    sync.Mutex
	types []events.EventType
}

func (s *slowFirst) Publish(_ context.Context, event events.Event) error {
	s.mu.Lock()
	first := len(s.types) == 0
	s.mu.Unlock()
	if first {
		time.Sleep(50 * time.Millisecond)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = append(s.types, event.Type)
	return nil
}

func (s *slowFirst) delivered() []events.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.EventType(nil), s.types...)
}

func TestDispatcherKeepsPerChannelOrder(t *testing.T) {
	sink := &slowFirst{}
	d := NewDispatcher(sink, DispatcherConfig{QueueSize: 16, Workers: 4, PublishTimeout: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	for _, et := range []events.EventType{events.EventTypeCountdownStarted, events.EventTypeRaceStarted} {
		if err := d.Publish(context.Background(), mustEvent(t, et)); err != nil {
			t.Fatalf("Publish %s: %v", et, err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.delivered()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("delivered %v, want 2 events", sink.delivered())
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	d.Wait()

	got := sink.delivered()
	if got[0] != events.EventTypeCountdownStarted || got[1] != events.EventTypeRaceStarted {
		t.Errorf("delivery order = %v", got)
	}
}

func TestFanOutJoinsErrors(t *testing.T) {
	a := &recorder{}
	b := &recorder{err: errors.New("b failed")}

	err := FanOut{a, b, LogPublisher{}}.Publish(context.Background(), mustEvent(t, events.EventTypeRaceClosed))
	if err == nil || err.Error() != "b failed" {
		t.Errorf("err = %v", err)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Error("fan-out skipped a publisher")
	}
}
