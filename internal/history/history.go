package history

import (
	"context"
	"fmt"
	"time"

	"augur/internal/config"
)

// Entry is one scored prediction. Entries are never modified once appended.
type Entry struct {
	GameID     string    `json:"game_id"`
	Symbol     string    `json:"symbol"`
	Prediction int       `json:"prediction"`
	Success    bool      `json:"success"`
	Points     float64   `json:"points"`
	Rank       int       `json:"rank"`
	FirstPrice float64   `json:"first_price"`
	LastPrice  float64   `json:"last_price"`
	Series     []float64 `json:"series,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store is an append-only, chronologically ordered outcome log. Append is the
// only mutator and writes all of its entries or none.
// Recent(k) returns the last min(k, n) entries in append order
// and an empty slice for k <= 0. Implementations are safe for concurrent use.
type Store interface {
	Append(ctx context.Context, entries ...Entry) error
	Recent(ctx context.Context, k int) ([]Entry, error)
	All(ctx context.Context) ([]Entry, error)
	Close() error
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewGormStore(cfg.Path)
	case "redis":
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("history: unknown driver %q", cfg.Driver)
	}
}

func tail(entries []Entry, k int) []Entry {
	if k <= 0 || len(entries) == 0 {
		return []Entry{}
	}
	if k > len(entries) {
		k = len(entries)
	}
	out := make([]Entry, k)
	copy(out, entries[len(entries)-k:])
	return out
}
