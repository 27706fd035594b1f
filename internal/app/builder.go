package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"augur/internal/agent"
	"augur/internal/config"
	"augur/internal/decision"
	"augur/internal/forecast"
	"augur/internal/gateway/game"
	"augur/internal/gateway/lobby"
	"augur/internal/gateway/notifier"
	"augur/internal/gateway/provider"
	"augur/internal/history"
	"augur/internal/logger"
	"augur/internal/prompt"
	"augur/internal/scoring"
	"augur/internal/store/decisionlog"
	livehttp "augur/internal/transport/http/live"
	"augur/internal/wager"
)

// AppBuilder assembles the agent from config. The Fn hooks let tests swap
// out components that would reach the network or disk.
type AppBuilder struct {
	cfg *config.Config

	providersFn func(config.AIConfig) ([]provider.ModelProvider, error)
	historyFn   func(context.Context, config.HistoryConfig) (history.Store, error)
	notifierFn  func(config.TelegramConfig) notifier.TextNotifier
	liveHTTPFn  func(livehttp.ServerConfig) (*livehttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func WithProviders(fn func(config.AIConfig) ([]provider.ModelProvider, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.providersFn = fn }
}

func WithHistory(fn func(context.Context, config.HistoryConfig) (history.Store, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.historyFn = fn }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		providersFn: provider.BuildProviders,
		historyFn:   history.Open,
		notifierFn:  buildNotifier,
		liveHTTPFn:  livehttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (a *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	var closers []io.Closer
	defer func() {
		if err != nil {
			closeAll(closers)
		}
	}()

	providers, err := b.providersFn(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("build reasoning providers: %w", err)
	}
	prompts, err := prompt.NewRegistry(cfg.Prompt.Path)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	prompts.OnChange(func(s prompt.Snapshot) {
		logger.Infof("[prompt] templates reloaded (version %d)", s.Version)
	})

	logs, err := decisionlog.NewDecisionLogStore(cfg.App.DecisionLogPath)
	if err != nil {
		return nil, fmt.Errorf("open decision log: %w", err)
	}
	closers = append(closers, logs)

	store, err := b.historyFn(ctx, cfg.History)
	if err != nil {
		return nil, fmt.Errorf("open history store (%s): %w", cfg.History.Driver, err)
	}
	closers = append(closers, store)

	gameClient, err := game.NewClient(cfg.Game)
	if err != nil {
		return nil, err
	}

	engine := decision.NewEngine(providers, prompts,
		decision.NewParser(cfg.Decision.ExpectedSelections, cfg.Decision.MaxSelections), logs)

	handler := agent.NewHandler(agent.Deps{
		Assets:    gameClient,
		Forecasts: forecast.NewAggregator(forecast.NewClient(cfg.Forecast)),
		History:   store,
		Decider:   engine,
		Submitter: wager.NewSubmitter(gameClient, cfg.Game.StakeAmount()),
		Scorer:    scoring.NewScorer(store, cfg.Game.Username),
		Notifier:  b.notifierFn(cfg.Notify.Telegram),
	}, agent.Options{
		Username:         cfg.Game.Username,
		HistoryWindow:    cfg.Decision.HistoryWindow,
		StaleAfter:       cfg.Agent.StaleAfter(),
		PipelineTimeout:  cfg.Agent.PipelineTimeout(),
		FailureThreshold: cfg.Agent.FailureThreshold,
		FailureCooldown:  cfg.Agent.FailureCooldown(),
	})

	server, err := b.liveHTTPFn(livehttp.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		Status:  handler,
		History: store,
		Logs:    logs,
		LogPaths: map[string]string{
			"app": cfg.App.LogPath,
			"llm": llmLogPath(cfg.App),
		},
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		updates:  lobby.NewClient(cfg.Lobby, cfg.Game.APIKey),
		handler:  handler,
		liveHTTP: server,
		closers:  closers,
		Summary:  newStartupSummary(cfg, providers, prompts.Current()),
	}, nil
}

func buildNotifier(cfg config.TelegramConfig) notifier.TextNotifier {
	if !cfg.Enabled {
		return notifier.Noop{}
	}
	return notifier.NewTelegram(cfg.BotToken, cfg.ChatID)
}

func llmLogPath(app config.AppConfig) string {
	if !app.LLMDump {
		return ""
	}
	return strings.TrimSpace(app.LLMLog)
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warnf("[app] close failed: %v", err)
		}
	}
}
