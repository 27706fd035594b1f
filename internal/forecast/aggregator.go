package forecast

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"augur/internal/logger"
)

// Fetcher retrieves a single asset's forecast.
type Fetcher interface {
	Forecast(ctx context.Context, symbol string) (Forecast, error)
}

// Aggregator fans out one forecast request per asset and joins on all of them.
type Aggregator struct {
	fetcher Fetcher
}

func NewAggregator(fetcher Fetcher) *Aggregator {
	return &Aggregator{fetcher: fetcher}
}

type slot struct {
	forecast Forecast
	err      error
}

// Aggregate never fails: failed assets are logged and reported in
// Result.Failures. Forecasts are sorted by descending confidence; ties keep
// the input order.
func (a *Aggregator) Aggregate(ctx context.Context, symbols []string) Result {
	slots := make([]slot, len(symbols))
	var eg errgroup.Group
	for i, sym := range symbols {
		i, sym := i, sym
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					slots[i] = slot{err: fmt.Errorf("%w: %s: panic: %v", ErrForecast, sym, r)}
				}
			}()
			f, err := a.fetcher.Forecast(ctx, sym)
			slots[i] = slot{forecast: f, err: err}
			return nil
		})
	}
	_ = eg.Wait()

	var res Result
	for i, s := range slots {
		sym := strings.ToUpper(strings.TrimSpace(symbols[i]))
		if s.err != nil {
			logger.Warnf("[forecast] %s dropped: %v", sym, s.err)
			res.Failures = append(res.Failures, Failure{Symbol: sym, Err: s.err})
			continue
		}
		if s.forecast.Symbol == "" {
			s.forecast.Symbol = sym
		}
		res.Forecasts = append(res.Forecasts, s.forecast)
	}
	sort.SliceStable(res.Forecasts, func(i, j int) bool {
		return res.Forecasts[i].Confidence > res.Forecasts[j].Confidence
	})
	logger.Infof("[forecast] %d/%d assets forecast", len(res.Forecasts), len(symbols))
	return res
}
