package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"augur/internal/decision"
	"augur/internal/gateway/lobby"
	"augur/internal/history"
	"augur/internal/logger"
)

// ErrMissingData marks a scoring pass skipped for lack of data.
var ErrMissingData = errors.New("scoring data missing")

// Appender is the write side of the history store. A batch lands whole or not at all.
type Appender interface {
	Append(ctx context.Context, entries ...history.Entry) error
}

// Outcome is the judged result for one symbol.
type Outcome struct {
	Symbol    string
	Predicted int
	Actual    int
	Success   bool
}

// Report summarises one scoring pass.
type Report struct {
	GameID   string
	Rank     int
	Points   float64
	Outcomes []Outcome
	// Skipped lists symbols without a usable price series.
	Skipped []string
}

// Hits counts successful predictions.
func (r Report) Hits() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

type Scorer struct {
	store    Appender
	username string
	now      func() time.Time
}

func NewScorer(store Appender, username string) *Scorer {
	return &Scorer{store: store, username: strings.TrimSpace(username), now: time.Now}
}

// ActualDirection is +1 when the last price is strictly above the first and
// -1 otherwise, so a flat series counts as down.
func ActualDirection(series []float64) int {
	if series[len(series)-1] > series[0] {
		return 1
	}
	return -1
}

// Score judges every predicted symbol against its price series and appends
// one history entry per judged symbol, all in a single batch. When the agent is absent from the
// rankings nothing is appended and the returned error wraps ErrMissingData.
func (s *Scorer) Score(ctx context.Context, gameID string, predictions decision.Decision, prices map[string][]float64, rankings []lobby.Ranking) (Report, error) {
	rep := Report{GameID: gameID}
	own, ok := findRanking(rankings, s.username)
	if !ok {
		logger.Warnf("[scoring] game=%s: %s not in rankings (%d entries), skipping pass", gameID, s.username, len(rankings))
		return rep, fmt.Errorf("%w: %s not ranked in game %s", ErrMissingData, s.username, gameID)
	}
	rep.Rank, rep.Points = own.Rank, own.Points

	now := s.now().UTC()
	var entries []history.Entry
	for _, sym := range predictions.Symbols() {
		predicted := predictions[sym]
		series := lookupSeries(prices, sym)
		if len(series) < 2 {
			logger.Warnf("[scoring] game=%s symbol=%s: %d price samples, skipping", gameID, sym, len(series))
			rep.Skipped = append(rep.Skipped, sym)
			continue
		}
		actual := ActualDirection(series)
		out := Outcome{Symbol: sym, Predicted: predicted, Actual: actual, Success: actual == predicted}
		entries = append(entries, history.Entry{
			GameID:     gameID,
			Symbol:     sym,
			Prediction: predicted,
			Success:    out.Success,
			Points:     own.Points,
			Rank:       own.Rank,
			FirstPrice: series[0],
			LastPrice:  series[len(series)-1],
			Series:     append([]float64(nil), series...),
			RecordedAt: now,
		})
		rep.Outcomes = append(rep.Outcomes, out)
	}
	if len(entries) > 0 {
		if err := s.store.Append(ctx, entries...); err != nil {
			return rep, fmt.Errorf("append history for game %s: %w", gameID, err)
		}
	}
	logger.Infof("[scoring] game=%s rank=%d points=%v hits=%d/%d skipped=%d",
		gameID, rep.Rank, rep.Points, rep.Hits(), len(rep.Outcomes), len(rep.Skipped))
	return rep, nil
}

func findRanking(rankings []lobby.Ranking, username string) (lobby.Ranking, bool) {
	if username == "" {
		return lobby.Ranking{}, false
	}
	for _, r := range rankings {
		if strings.EqualFold(strings.TrimSpace(r.Username), username) {
			return r, true
		}
	}
	return lobby.Ranking{}, false
}

func lookupSeries(prices map[string][]float64, sym string) []float64 {
	if s, ok := prices[sym]; ok {
		return s
	}
	for k, s := range prices {
		if strings.EqualFold(k, sym) {
			return s
		}
	}
	return nil
}
