package agent

import (
	"time"

	"augur/internal/decision"
)

// Phase is the handler's position in the game lifecycle.
type Phase string

const (
	PhaseWatching Phase = "watching"
	PhaseJoining  Phase = "joining"
	PhaseJoined   Phase = "joined"
	PhaseScoring  Phase = "scoring"
)

// session is the single active game. Owned by the event loop.
type session struct {
	id          string
	startedAt   time.Time
	joinedAt    time.Time
	traceID     string
	predictions decision.Decision
	degenerate  bool
}

// GameResult is the outcome of the last scored game.
type GameResult struct {
	GameID   string    `json:"game_id"`
	Rank     int       `json:"rank"`
	Points   float64   `json:"points"`
	Hits     int       `json:"hits"`
	Scored   int       `json:"scored"`
	Skipped  []string  `json:"skipped,omitempty"`
	ScoredAt time.Time `json:"scored_at"`
}

// Status is an immutable snapshot of the handler, safe to share with readers.
type Status struct {
	Phase       Phase          `json:"phase"`
	GameID      string         `json:"game_id,omitempty"`
	TraceID     string         `json:"trace_id,omitempty"`
	Predictions map[string]int `json:"predictions,omitempty"`
	Degenerate  bool           `json:"degenerate,omitempty"`
	JoinedAt    *time.Time     `json:"joined_at,omitempty"`
	GamesJoined int            `json:"games_joined"`
	GamesScored int            `json:"games_scored"`
	Failures    int            `json:"pipeline_failures"`
	Breaker     string         `json:"breaker"`
	LastError   string         `json:"last_error,omitempty"`
	LastResult  *GameResult    `json:"last_result,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
