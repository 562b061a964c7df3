package events

import (
	"time"
)

// Event payload types shared between the race, eventbus and gateway packages

// SetupPayload is the payload for a RaceSetup event
type SetupPayload struct {
	ChannelName string `json:"channel_name"`
	Seed        string `json:"seed"`
	Goal        string `json:"goal,omitempty"`
}

// PlayerPayload is the payload for events that change a single entrant
type PlayerPayload struct {
	UserID   string `json:"user_id"`
	Ready    bool   `json:"ready"`
	Entries  int    `json:"entries"`
	Unready  int    `json:"unready"`
	KickedBy string `json:"kicked_by,omitempty"`
}

// CountdownPayload is the payload for CountdownStarted and CountdownCancelled
type CountdownPayload struct {
	StartsAt time.Time `json:"starts_at,omitempty"`
	Players  []string  `json:"players"`
}

// StartedPayload is the payload for a RaceStarted event
type StartedPayload struct {
	StartedAt time.Time `json:"started_at"`
	Players   []string  `json:"players"`
}

// FinishedPayload is the payload for a PlayerFinished event
type FinishedPayload struct {
	UserID    string `json:"user_id"`
	Place     int    `json:"place"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Time      string `json:"time"`
}

// Standing is one line of the final results
type Standing struct {
	Place     int    `json:"place"`
	UserID    string `json:"user_id"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Time      string `json:"time"`
}

// CompletedPayload is the payload for RaceCompleted and RaceResumed
type CompletedPayload struct {
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at,omitempty"`
	Standings []Standing `json:"standings"`
	Forfeited []string   `json:"forfeited"`
}

// ClosedPayload is the payload for a RaceClosed event
type ClosedPayload struct {
	Reason    string `json:"reason"`
	ClosedBy  string `json:"closed_by,omitempty"`
	Automatic bool   `json:"automatic"`
}
