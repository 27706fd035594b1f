package app

import (
	"fmt"
	"strings"

	"augur/internal/config"
	"augur/internal/gateway/provider"
	"augur/internal/prompt"
)

type StartupSummary struct {
	Username      string
	GameURL       string
	LobbyURL      string
	ForecastURL   string
	Stake         string
	Models        []string
	Selections    string
	HistoryWindow int
	HistoryDriver string
	PromptVersion int64
	SystemPrompt  string
	HTTPAddr      string
}

func newStartupSummary(cfg *config.Config, providers []provider.ModelProvider, prompts prompt.Snapshot) *StartupSummary {
	models := make([]string, 0, len(providers))
	for _, p := range providers {
		models = append(models, p.ID())
	}
	return &StartupSummary{
		Username:      cfg.Game.Username,
		GameURL:       cfg.Game.BaseURL,
		LobbyURL:      cfg.Lobby.URL,
		ForecastURL:   cfg.Forecast.BaseURL,
		Stake:         cfg.Game.StakeAmount().String(),
		Models:        models,
		Selections:    fmt.Sprintf("%d expected, %d max", cfg.Decision.ExpectedSelections, cfg.Decision.MaxSelections),
		HistoryWindow: cfg.Decision.HistoryWindow,
		HistoryDriver: cfg.History.Driver,
		PromptVersion: prompts.Version,
		SystemPrompt:  prompts.Templates.SystemPrompt(cfg.Decision.ExpectedSelections, cfg.Decision.MaxSelections),
		HTTPAddr:      cfg.App.HTTPAddr,
	}
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("STARTUP SUMMARY")/2, "STARTUP SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[GAME]")
	fmt.Printf("  user:      %s\n", s.Username)
	fmt.Printf("  platform:  %s\n", s.GameURL)
	fmt.Printf("  lobby:     %s\n", s.LobbyURL)
	fmt.Printf("  stake:     %s\n", s.Stake)
	fmt.Println()

	fmt.Println("[DECISION]")
	fmt.Printf("  forecasts: %s\n", s.ForecastURL)
	fmt.Printf("  models:    %s\n", formatList(s.Models))
	fmt.Printf("  select:    %s\n", s.Selections)
	fmt.Printf("  history:   last %d entries (%s)\n", s.HistoryWindow, s.HistoryDriver)
	fmt.Println()

	fmt.Printf("[PROMPT v%d]\n", s.PromptVersion)
	preview := s.SystemPrompt
	if lines := strings.Split(preview, "\n"); len(lines) > 5 {
		preview = strings.Join(lines[:5], "\n") + "\n... (truncated)"
	}
	fmt.Printf("  %s\n", strings.ReplaceAll(preview, "\n", "\n  "))
	fmt.Println()

	fmt.Printf("[HTTP] %s\n", s.HTTPAddr)
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
