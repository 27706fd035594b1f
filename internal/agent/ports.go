package agent

import (
	"context"
	"encoding/json"

	"augur/internal/decision"
	"augur/internal/forecast"
	"augur/internal/gateway/game"
	"augur/internal/gateway/lobby"
	"augur/internal/history"
	"augur/internal/scoring"
)

// Collaborators of the lifecycle handler. Each is satisfied by the concrete
// component of the same role and mocked in tests.

type AssetLister interface {
	ListAssets(ctx context.Context) ([]game.Asset, error)
}

type Aggregator interface {
	Aggregate(ctx context.Context, symbols []string) forecast.Result
}

type HistoryReader interface {
	Recent(ctx context.Context, k int) ([]history.Entry, error)
}

type Decider interface {
	Decide(ctx context.Context, gameID string, forecasts []forecast.Forecast, recent []history.Entry) (decision.Result, error)
}

type Submitter interface {
	Submit(ctx context.Context, gameID string, d decision.Decision) (json.RawMessage, error)
}

type Scorer interface {
	Score(ctx context.Context, gameID string, predictions decision.Decision, prices map[string][]float64, rankings []lobby.Ranking) (scoring.Report, error)
}
