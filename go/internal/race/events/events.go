package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every race lifecycle event
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	ChannelID string          `json:"channel_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of race event
type EventType string

const (
	EventTypeRaceSetup          EventType = "race.setup"
	EventTypePlayerEntered      EventType = "player.entered"
	EventTypePlayerReady        EventType = "player.ready"
	EventTypePlayerUnready      EventType = "player.unready"
	EventTypePlayerWithdrawn    EventType = "player.withdrawn"
	EventTypePlayerKicked       EventType = "player.kicked"
	EventTypeCountdownStarted   EventType = "countdown.started"
	EventTypeCountdownCancelled EventType = "countdown.cancelled"
	EventTypeRaceStarted        EventType = "race.started"
	EventTypePlayerFinished     EventType = "player.finished"
	EventTypePlayerForfeited    EventType = "player.forfeited"
	EventTypePlayerResumed      EventType = "player.resumed"
	EventTypeRaceCompleted      EventType = "race.completed"
	EventTypeRaceResumed        EventType = "race.resumed"
	EventTypeRaceClosed         EventType = "race.closed"
)

// New builds an event with a fresh id and the payload encoded as JSON.
func New(eventType EventType, channelID string, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		ChannelID: channelID,
		Timestamp: at.UTC(),
		Data:      data,
	}, nil
}

// ParsePayload parses event data into the appropriate payload struct
func ParsePayload(event Event) (any, error) {
	switch event.Type {
	case EventTypeRaceSetup:
		return decode[SetupPayload](event.Data)
	case EventTypePlayerEntered, EventTypePlayerReady, EventTypePlayerUnready,
		EventTypePlayerWithdrawn, EventTypePlayerKicked, EventTypePlayerForfeited,
		EventTypePlayerResumed:
		return decode[PlayerPayload](event.Data)
	case EventTypeCountdownStarted, EventTypeCountdownCancelled:
		return decode[CountdownPayload](event.Data)
	case EventTypeRaceStarted:
		return decode[StartedPayload](event.Data)
	case EventTypePlayerFinished:
		return decode[FinishedPayload](event.Data)
	case EventTypeRaceCompleted, EventTypeRaceResumed:
		return decode[CompletedPayload](event.Data)
	case EventTypeRaceClosed:
		return decode[ClosedPayload](event.Data)
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
}

func decode[T any](data json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
