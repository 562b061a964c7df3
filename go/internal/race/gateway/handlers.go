package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mcdev12/racebot/go/internal/race"
	"github.com/rs/zerolog/log"
)

// StateProvider exposes race snapshots to spectators
type StateProvider interface {
	ActiveRaces() []race.State
	RaceState(channelID string) (race.State, bool)
}

// RaceSummary is one row of the active race listing
type RaceSummary struct {
	ChannelID   string     `json:"channel_id"`
	ChannelName string     `json:"channel_name"`
	Phase       race.Phase `json:"phase"`
	Goal        string     `json:"goal,omitempty"`
	Players     int        `json:"players"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
}

// RaceStateResponse is the full state of a single race
type RaceStateResponse struct {
	race.State
	ElapsedMS *int64        `json:"elapsed_ms,omitempty"`
	Status    race.Embed    `json:"status"`
	Standings []race.Player `json:"standings"`
}

// StateHandler serves race state over HTTP
type StateHandler struct {
	stateProvider StateProvider
	now           func() time.Time
}

func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{stateProvider: provider, now: time.Now}
}

// HandleGetActiveRaces handles GET /api/races/active
func (h *StateHandler) HandleGetActiveRaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	states := h.stateProvider.ActiveRaces()
	summaries := make([]RaceSummary, 0, len(states))
	for _, s := range states {
		summary := RaceSummary{
			ChannelID:   s.ChannelID,
			ChannelName: s.ChannelName,
			Phase:       s.Phase,
			Goal:        s.Goal,
			Players:     len(s.Players),
		}
		if s.Phase == race.PhaseRacing || s.Phase == race.PhaseComplete {
			start := s.Start
			summary.StartedAt = &start
		}
		summaries = append(summaries, summary)
	}

	writeJSON(w, summaries)
}

// HandleGetRaceState handles GET /api/races/{channel_id}/state
func (h *StateHandler) HandleGetRaceState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	channelID := extractChannelIDFromPath(r.URL.Path)
	if channelID == "" {
		http.Error(w, "Channel ID is required", http.StatusBadRequest)
		return
	}

	state, ok := h.stateProvider.RaceState(channelID)
	if !ok {
		http.Error(w, "Race not found", http.StatusNotFound)
		return
	}

	resp := RaceStateResponse{
		State:     state,
		Status:    race.RenderStatus(state),
		Standings: state.Finishers(),
	}
	if state.Phase == race.PhaseRacing {
		elapsed := h.now().Sub(state.Start).Milliseconds()
		resp.ElapsedMS = &elapsed
	}

	writeJSON(w, resp)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/races/active", h.HandleGetActiveRaces)
	mux.HandleFunc("/api/races/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/state") {
			h.HandleGetRaceState(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// extractChannelIDFromPath extracts the channel id from /api/races/{id}/state
func extractChannelIDFromPath(path string) string {
	const prefix = "/api/races/"
	const suffix = "/state"

	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

// WebSocketHandler handles WebSocket upgrade requests for spectators
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

// HandleRaceConnection handles GET /ws/race?channel_id=...
func (h *WebSocketHandler) HandleRaceConnection(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("channel_id")
	if channelID == "" {
		http.Error(w, "channel_id is required", http.StatusBadRequest)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, channelID); err != nil {
		// The upgrader has already replied to the client.
		log.Error().Err(err).Str("channel_id", channelID).Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.connectionManager.GetConnectionStats())
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/race", h.HandleRaceConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
