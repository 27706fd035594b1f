package config

import (
	"fmt"
	"net/url"
	"strings"
)

func validate(c *Config) error {
	if err := c.Game.validate(); err != nil {
		return err
	}
	if err := c.Lobby.validate(); err != nil {
		return err
	}
	if err := c.Forecast.validate(); err != nil {
		return err
	}
	if err := c.AI.validate(); err != nil {
		return err
	}
	if err := c.Decision.validate(); err != nil {
		return err
	}
	if err := c.History.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func errUnknownPreset(idx int, name string) error {
	return fmt.Errorf("ai.models[%d] references unknown preset %q", idx, name)
}

func (g *GameConfig) validate() error {
	if err := validateHTTPURL("game.base_url", g.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(g.Username) == "" {
		return fmt.Errorf("game.username is required (used to detect own participation and rankings)")
	}
	if strings.TrimSpace(g.APIKey) == "" {
		return fmt.Errorf("game.api_key is required")
	}
	if g.Stake <= 0 {
		return fmt.Errorf("game.stake must be > 0")
	}
	return nil
}

func (l *LobbyConfig) validate() error {
	u, err := url.Parse(strings.TrimSpace(l.URL))
	if err != nil {
		return fmt.Errorf("lobby.url invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("lobby.url must use ws:// or wss://, got %q", l.URL)
	}
	if strings.TrimSpace(l.Topic) == "" {
		return fmt.Errorf("lobby.topic cannot be empty")
	}
	return nil
}

func (f *ForecastConfig) validate() error {
	return validateHTTPURL("forecast.base_url", f.BaseURL)
}

func (a *AIConfig) validate() error {
	models, err := a.ResolveModelConfigs()
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return fmt.Errorf("ai.models requires at least one enabled model")
	}
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		if m.Model == "" {
			return fmt.Errorf("ai.models contains entry without model (id=%s)", m.ID)
		}
		if m.APIURL == "" {
			return fmt.Errorf("ai.models.%s missing api_url (can inherit from preset)", m.ID)
		}
		if m.Provider == "" {
			return fmt.Errorf("ai.models.%s missing provider", m.ID)
		}
		if seen[m.ID] {
			return fmt.Errorf("ai.models has duplicate id %s", m.ID)
		}
		seen[m.ID] = true
	}
	for _, id := range a.ProviderPreference {
		if !seen[id] {
			return fmt.Errorf("ai.provider_preference contains unconfigured model id: %s", id)
		}
	}
	return nil
}

func (d *DecisionConfig) validate() error {
	if d.MaxSelections < d.ExpectedSelections {
		return fmt.Errorf("decision.max_selections (%d) must be >= decision.expected_selections (%d)", d.MaxSelections, d.ExpectedSelections)
	}
	return nil
}

func (h *HistoryConfig) validate() error {
	switch h.Driver {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(h.Path) == "" {
			return fmt.Errorf("history.path is required for the sqlite driver")
		}
	case "redis":
		if strings.TrimSpace(h.Redis.Addr) == "" {
			return fmt.Errorf("history.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("history.driver must be memory|sqlite|redis, got %q", h.Driver)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return fmt.Errorf("notify.telegram enabled but bot_token or chat_id is empty")
	}
	return nil
}

func validateHTTPURL(key, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s invalid: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", key)
	}
	return nil
}
