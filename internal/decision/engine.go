package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"augur/internal/forecast"
	"augur/internal/gateway/provider"
	"augur/internal/history"
	"augur/internal/logger"
	"augur/internal/pkg/text"
	"augur/internal/prompt"
	"augur/internal/store/decisionlog"
)

// TemplateSource supplies the current prompt templates.
type TemplateSource interface {
	Templates() prompt.Templates
}

// Recorder persists one audit record per reasoning call.
type Recorder interface {
	Insert(ctx context.Context, rec decisionlog.Record) (int64, error)
}

// Engine turns forecasts plus recent history into a validated Decision.
type Engine struct {
	Providers []provider.ModelProvider
	Prompts   TemplateSource
	Parser    *Parser
	Recorder  Recorder
	MaxTokens int

	now     func() time.Time
	traceID func() string
}

func NewEngine(providers []provider.ModelProvider, prompts TemplateSource, parser *Parser, rec Recorder) *Engine {
	if parser == nil {
		parser = NewParser(0, 0)
	}
	return &Engine{
		Providers: providers,
		Prompts:   prompts,
		Parser:    parser,
		Recorder:  rec,
		MaxTokens: 1024,
		now:       time.Now,
		traceID:   func() string { return uuid.NewString() },
	}
}

// Decide briefs the reasoning service and parses its answer. A provider
// call error falls through to the next provider; an answer that does not
// parse fails the decision at once. All errors wrap ErrDecision.
func (e *Engine) Decide(ctx context.Context, gameID string, forecasts []forecast.Forecast, recent []history.Entry) (Result, error) {
	if len(forecasts) == 0 {
		return Result{}, fmt.Errorf("%w: no forecasts to decide on", ErrDecision)
	}
	if len(e.Providers) == 0 {
		return Result{}, fmt.Errorf("%w: no reasoning provider configured", ErrDecision)
	}
	tpl := prompt.Defaults()
	if e.Prompts != nil {
		tpl = e.Prompts.Templates()
	}
	res := Result{
		TraceID: e.traceID(),
		System:  tpl.SystemPrompt(e.Parser.ExpectedSelections, e.Parser.MaxSelections),
		User:    RenderBrief(tpl, forecasts, recent),
	}
	offered := make(map[string]bool, len(forecasts))
	for _, f := range forecasts {
		offered[strings.ToUpper(f.Symbol)] = true
	}
	logger.Debugf("[decision] game=%s trace=%s brief:\n%s", gameID, res.TraceID, res.User)

	payload := provider.ChatPayload{
		System:      res.System,
		User:        res.User,
		Schema:      SchemaJSON(),
		SchemaName:  SchemaName,
		EnvelopeKey: EnvelopeKey,
		MaxTokens:   e.MaxTokens,
		TraceID:     res.TraceID,
	}
	var lastErr error
	for _, p := range e.Providers {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("%w: %v", ErrDecision, err)
		}
		res.ProviderID = p.ID()
		raw, err := p.Call(ctx, payload)
		if err != nil {
			lastErr = err
			logger.Warnf("[decision] provider %s failed (game=%s trace=%s): %v", p.ID(), gameID, res.TraceID, err)
			e.record(ctx, gameID, res, err)
			continue
		}
		res.RawOutput = raw
		parsed, err := e.Parser.Parse(raw, offered)
		res.RawJSON = parsed.RawJSON
		if err != nil {
			logger.Warnf("[decision] unusable output from %s (game=%s trace=%s): %v; raw=%q",
				p.ID(), gameID, res.TraceID, err, text.Truncate(raw, 300))
			e.record(ctx, gameID, res, err)
			return res, err
		}
		res.Decision = parsed.Decision
		res.Degenerate = parsed.Degenerate
		e.record(ctx, gameID, res, nil)
		logger.Infof("[decision] game=%s provider=%s decision=%s", gameID, res.ProviderID, res.Decision)
		return res, nil
	}
	if errors.Is(lastErr, ErrDecision) {
		return res, lastErr
	}
	return res, fmt.Errorf("%w: all providers failed: %v", ErrDecision, lastErr)
}

func (e *Engine) record(ctx context.Context, gameID string, res Result, callErr error) {
	if e.Recorder == nil {
		return
	}
	rec := decisionlog.Record{
		TraceID:    res.TraceID,
		Timestamp:  e.now().UnixMilli(),
		GameID:     gameID,
		ProviderID: res.ProviderID,
		System:     res.System,
		User:       res.User,
		RawOutput:  res.RawOutput,
		RawJSON:    res.RawJSON,
		Degenerate: res.Degenerate,
	}
	if len(res.Decision) > 0 {
		rec.Selections = map[string]int(res.Decision)
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	// audit writes never block a wager
	if _, err := e.Recorder.Insert(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warnf("[decision] decision log write failed (trace=%s): %v", res.TraceID, err)
	}
}
