package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"augur/internal/decision"
	"augur/internal/forecast"
	"augur/internal/gateway/lobby"
	"augur/internal/logger"
)

func (h *Handler) runJoin(parent context.Context, gameID string) {
	res := h.safeJoin(parent, gameID)
	h.joinDone <- res
	if res.err != nil {
		h.notifyFailure(parent, gameID, res.err)
		return
	}
	h.notifyJoined(parent, gameID, res.result)
}

func (h *Handler) safeJoin(parent context.Context, gameID string) (res joinResult) {
	res.gameID = gameID
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[agent] pipeline panic for game=%s: %v\n%s", gameID, r, debug.Stack())
			res.err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	ctx, cancel := h.pipelineContext(parent)
	defer cancel()
	res.result, res.err = h.join(ctx, gameID)
	return res
}

// join runs assets -> forecasts -> decision -> submission in order.
func (h *Handler) join(ctx context.Context, gameID string) (decision.Result, error) {
	assets, err := h.deps.Assets.ListAssets(ctx)
	if err != nil {
		return decision.Result{}, fmt.Errorf("list assets: %w", err)
	}
	symbols := make([]string, 0, len(assets))
	for _, a := range assets {
		symbols = append(symbols, a.Symbol)
	}
	if len(symbols) == 0 {
		return decision.Result{}, fmt.Errorf("platform offered no assets")
	}

	fc := h.deps.Forecasts.Aggregate(ctx, symbols)
	if len(fc.Forecasts) == 0 {
		return decision.Result{}, fmt.Errorf("%w: all %d assets failed", forecast.ErrForecast, len(symbols))
	}
	logger.Infof("[agent] game=%s forecasts=%d failed=%d", gameID, len(fc.Forecasts), len(fc.Failures))

	recent, err := h.deps.History.Recent(ctx, h.opts.HistoryWindow)
	if err != nil {
		logger.Warnf("[agent] history unavailable, deciding without feedback: %v", err)
		recent = nil
	}

	res, err := h.deps.Decider.Decide(ctx, gameID, fc.Forecasts, recent)
	if err != nil {
		return decision.Result{}, err
	}
	if _, err := h.deps.Submitter.Submit(ctx, gameID, res.Decision); err != nil {
		return decision.Result{}, err
	}
	return res, nil
}

func (h *Handler) runScoring(parent context.Context, u lobby.GameUpdate, predictions decision.Decision) {
	res := h.safeScore(parent, u, predictions)
	h.scoreDone <- res
	if res.err == nil {
		h.notifyScored(parent, res.report)
	}
}

func (h *Handler) safeScore(parent context.Context, u lobby.GameUpdate, predictions decision.Decision) (res scoreResult) {
	res.gameID = u.ID
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[agent] scoring panic for game=%s: %v\n%s", u.ID, r, debug.Stack())
			res.err = fmt.Errorf("scoring panic: %v", r)
		}
	}()
	ctx, cancel := h.pipelineContext(parent)
	defer cancel()
	res.report, res.err = h.deps.Scorer.Score(ctx, u.ID, predictions, u.Prices, u.Rankings)
	return res
}

func (h *Handler) pipelineContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.opts.PipelineTimeout > 0 {
		return context.WithTimeout(parent, h.opts.PipelineTimeout)
	}
	return context.WithCancel(parent)
}

// notifyTimeout bounds a notification so a slow channel cannot hold a pipeline.
const notifyTimeout = 20 * time.Second
