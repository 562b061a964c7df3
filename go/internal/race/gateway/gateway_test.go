package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/racebot/go/internal/race"
	"github.com/mcdev12/racebot/go/internal/race/events"
	"github.com/prometheus/client_golang/prometheus"
)

type staticProvider struct {
	states map[string]race.State
}

func (p staticProvider) ActiveRaces() []race.State {
	out := make([]race.State, 0, len(p.states))
	for _, s := range p.states {
		out = append(out, s)
	}
	return out
}

func (p staticProvider) RaceState(channelID string) (race.State, bool) {
	s, ok := p.states[channelID]
	return s, ok
}

func newTestServer(t *testing.T, provider StateProvider) (*Service, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	svc := NewService(NewConnectionManager(cfg.ConnectionConfig), provider)
	srv := NewServer(cfg, svc, prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return svc, ts
}

func TestRaceStateEndpoints(t *testing.T) {
	start := time.Now().Add(-90 * time.Second)
	provider := staticProvider{states: map[string]race.State{
		"123": {
			ChannelID:   "123",
			ChannelName: "race-1",
			Seed:        "00000042",
			Phase:       race.PhaseRacing,
			Start:       start,
			Players: []race.Player{
				{UserID: "a", Ready: true, Finish: start.Add(time.Minute)},
				{UserID: "b", Ready: true},
			},
		},
	}}
	_, ts := newTestServer(t, provider)

	resp, err := http.Get(ts.URL + "/api/races/123/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body RaceStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Seed != "00000042" || body.Status.Title != "Race Started" {
		t.Errorf("body = %+v", body)
	}
	if len(body.Standings) != 1 || body.Standings[0].UserID != "a" {
		t.Errorf("standings = %+v", body.Standings)
	}
	if body.ElapsedMS == nil || *body.ElapsedMS < 90_000 {
		t.Errorf("elapsed = %v", body.ElapsedMS)
	}

	resp, err = http.Get(ts.URL + "/api/races/999/state")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown race status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/races/active")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var summaries []RaceSummary
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].Players != 2 || summaries[0].StartedAt == nil {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestExtractChannelIDFromPath(t *testing.T) {
	tests := map[string]string{
		"/api/races/123/state":  "123",
		"/api/races//state":     "",
		"/api/races/1/2/state":  "",
		"/api/races/123":        "",
		"/api/drafts/123/state": "",
	}
	for path, want := range tests {
		if got := extractChannelIDFromPath(path); got != want {
			t.Errorf("extractChannelIDFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestWebSocketReceivesRaceEvents(t *testing.T) {
	svc, ts := newTestServer(t, staticProvider{})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/race?channel_id=123"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for svc.connectionManager.GetConnectionStats().TotalConnections != 1 {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(time.Millisecond)
	}

	other, _ := events.New(events.EventTypeRaceStarted, "456", time.Now(), events.StartedPayload{})
	mine, _ := events.New(events.EventTypePlayerFinished, "123", time.Now(), events.FinishedPayload{UserID: "a", Place: 1})
	if err := svc.Publisher().Publish(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	if err := svc.Publisher().Publish(context.Background(), mine); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got events.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != mine.ID || got.Type != events.EventTypePlayerFinished {
		t.Errorf("received %+v, want the channel's own event", got)
	}
}

func TestWebSocketRequiresChannel(t *testing.T) {
	_, ts := newTestServer(t, staticProvider{})

	resp, err := http.Get(ts.URL + "/ws/race")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestPublishReportsFullBroadcastQueue(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	event, err := events.New(events.EventTypeRaceStarted, "123", time.Now(), events.StartedPayload{})
	if err != nil {
		t.Fatal(err)
	}

	// Nothing drains the queue until Start runs.
	for i := 0; i < broadcastBufferSize; i++ {
		if err := cm.Publish(context.Background(), event); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	if err := cm.Publish(context.Background(), event); !errors.Is(err, ErrBroadcastFull) {
		t.Errorf("err = %v, want ErrBroadcastFull", err)
	}
}
