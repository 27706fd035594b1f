package lobby

import (
	"encoding/json"
	"time"
)

// Game states reported in game_update payloads. Other values are passed
// through and ignored by the agent.
const (
	StateWaitingForPlayers = "waiting_for_players"
	StateEnded             = "ended"
)

const (
	eventJoin       = "phx_join"
	eventReply      = "phx_reply"
	eventError      = "phx_error"
	eventClose      = "phx_close"
	eventHeartbeat  = "heartbeat"
	eventGameUpdate = "game_update"

	heartbeatTopic = "phoenix"
)

// Frame is the socket envelope in both directions.
type Frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

// inboundFrame ignores refs, which servers may send as strings, numbers or null.
type inboundFrame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Ranking is one leaderboard row of a finished game.
type Ranking struct {
	Username string  `json:"username"`
	Rank     int     `json:"rank"`
	Points   float64 `json:"points"`
}

// GameUpdate is a decoded game_update payload.
type GameUpdate struct {
	ID           string               `json:"id"`
	State        string               `json:"state"`
	Participants []string             `json:"participants"`
	Rankings     []Ranking            `json:"rankings,omitempty"`
	Prices       map[string][]float64 `json:"prices,omitempty"`
	ReceivedAt   time.Time            `json:"received_at"`
}
