package wager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"augur/internal/decision"
	"augur/internal/gateway/game"
	"augur/internal/logger"
)

// ErrSubmission marks a rejected or failed join. The game is abandoned; no retry.
var ErrSubmission = errors.New("wager submission failed")

// Joiner is the platform join endpoint.
type Joiner interface {
	Join(ctx context.Context, gameID string, req game.JoinRequest) (json.RawMessage, error)
}

// Wager is a decision plus the stake, built per game and not retained.
type Wager struct {
	GameID     string
	Selections decision.Decision
	Stake      decimal.Decimal
}

// Request converts the wager into the join endpoint body.
func (w Wager) Request() game.JoinRequest {
	coins := make(map[string]int, len(w.Selections))
	for sym, dir := range w.Selections {
		coins[sym] = dir
	}
	return game.JoinRequest{Coins: coins, Tokens: w.Stake.InexactFloat64()}
}

type Submitter struct {
	joiner Joiner
	stake  decimal.Decimal
}

func NewSubmitter(joiner Joiner, stake decimal.Decimal) *Submitter {
	return &Submitter{joiner: joiner, stake: stake}
}

// Submit joins gameID with the decision at the fixed stake and returns the
// platform's confirmation payload uninterpreted.
func (s *Submitter) Submit(ctx context.Context, gameID string, d decision.Decision) (json.RawMessage, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, fmt.Errorf("%w: empty game id", ErrSubmission)
	}
	if len(d) == 0 {
		return nil, fmt.Errorf("%w: empty decision", ErrSubmission)
	}
	if !s.stake.IsPositive() {
		return nil, fmt.Errorf("%w: stake must be positive, got %s", ErrSubmission, s.stake)
	}
	w := Wager{GameID: gameID, Selections: d, Stake: s.stake}
	resp, err := s.joiner.Join(ctx, gameID, w.Request())
	if err != nil {
		return nil, fmt.Errorf("%w: game=%s: %w", ErrSubmission, gameID, err)
	}
	logger.Infof("[wager] joined game=%s selections=%s stake=%s", gameID, d, s.stake)
	return resp, nil
}
