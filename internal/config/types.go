package config

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration of the agent.
type Config struct {
	App      AppConfig      `toml:"app"`
	Game     GameConfig     `toml:"game"`
	Lobby    LobbyConfig    `toml:"lobby"`
	Forecast ForecastConfig `toml:"forecast"`
	AI       AIConfig       `toml:"ai"`
	Decision DecisionConfig `toml:"decision"`
	Agent    AgentConfig    `toml:"agent"`
	History  HistoryConfig  `toml:"history"`
	Prompt   PromptConfig   `toml:"prompt"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env             string `toml:"env"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	HTTPAddr        string `toml:"http_addr"`
	LogPath         string `toml:"log_path"`
	LLMLog          string `toml:"llm_log_path"`
	LLMDump         bool   `toml:"llm_dump_payload"`
	DecisionLogPath string `toml:"decision_log_path"`
}

// GameConfig describes the game platform REST API and the agent's identity on it.
type GameConfig struct {
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Username       string  `toml:"username"`
	Stake          float64 `toml:"stake"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// StakeAmount returns the fixed wager stake.
func (g GameConfig) StakeAmount() decimal.Decimal {
	return decimal.NewFromFloat(g.Stake)
}

func (g GameConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// LobbyConfig describes the persistent lifecycle socket.
type LobbyConfig struct {
	URL                  string `toml:"url"`
	Topic                string `toml:"topic"`
	HeartbeatSeconds     int    `toml:"heartbeat_seconds"`
	ReconnectMaxSeconds  int    `toml:"reconnect_max_seconds"`
	HandshakeTimeoutSecs int    `toml:"handshake_timeout_seconds"`
}

func (l LobbyConfig) HeartbeatInterval() time.Duration {
	return time.Duration(l.HeartbeatSeconds) * time.Second
}

func (l LobbyConfig) ReconnectMax() time.Duration {
	return time.Duration(l.ReconnectMaxSeconds) * time.Second
}

type ForecastConfig struct {
	BaseURL        string  `toml:"base_url"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RatePerSecond  float64 `toml:"rate_per_second"`
	Burst          int     `toml:"burst"`
}

func (f ForecastConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// AIConfig holds the reasoning service models.
type AIConfig struct {
	TimeoutSeconds     int                    `toml:"timeout_seconds"`
	MaxRetries         int                    `toml:"max_retries"`
	Temperature        float64                `toml:"temperature"`
	ProviderPreference []string               `toml:"provider_preference"`
	ProviderPresets    map[string]ModelPreset `toml:"provider_presets"`
	Models             []AIModelConfig        `toml:"models"`
}

// ModelPreset is a reusable API connection block.
type ModelPreset struct {
	APIURL  string            `toml:"api_url"`
	APIKey  string            `toml:"api_key"`
	Headers map[string]string `toml:"headers"`
}

// AIModelConfig is a single model entry; empty connection fields inherit from Preset.
type AIModelConfig struct {
	ID       string            `toml:"id"`
	Provider string            `toml:"provider"`
	Preset   string            `toml:"preset"`
	Enabled  bool              `toml:"enabled"`
	APIURL   string            `toml:"api_url"`
	APIKey   string            `toml:"api_key"`
	Model    string            `toml:"model"`
	Headers  map[string]string `toml:"headers"`
}

// ResolvedModelConfig is a model entry with its preset merged in.
type ResolvedModelConfig struct {
	ID       string
	Provider string
	APIURL   string
	APIKey   string
	Model    string
	Headers  map[string]string
}

func (a AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// DecisionConfig bounds what the reasoning service may select.
type DecisionConfig struct {
	HistoryWindow      int `toml:"history_window"`
	ExpectedSelections int `toml:"expected_selections"`
	MaxSelections      int `toml:"max_selections"`
}

type AgentConfig struct {
	StaleAfterSeconds      int `toml:"stale_after_seconds"`
	FailureThreshold       int `toml:"failure_threshold"`
	FailureCooldownSeconds int `toml:"failure_cooldown_seconds"`
	PipelineTimeoutSeconds int `toml:"pipeline_timeout_seconds"`
}

func (a AgentConfig) StaleAfter() time.Duration {
	return time.Duration(a.StaleAfterSeconds) * time.Second
}

func (a AgentConfig) FailureCooldown() time.Duration {
	return time.Duration(a.FailureCooldownSeconds) * time.Second
}

func (a AgentConfig) PipelineTimeout() time.Duration {
	return time.Duration(a.PipelineTimeoutSeconds) * time.Second
}

// HistoryConfig selects the history backend: memory | sqlite | redis.
type HistoryConfig struct {
	Driver string      `toml:"driver"`
	Path   string      `toml:"path"`
	Redis  RedisConfig `toml:"redis"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Key      string `toml:"key"`
}

type PromptConfig struct {
	Path string `toml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// ResolveModelConfigs merges presets into model entries and drops disabled ones.
// Models listed in provider_preference come first.
func (a AIConfig) ResolveModelConfigs() ([]ResolvedModelConfig, error) {
	out := make([]ResolvedModelConfig, 0, len(a.Models))
	for i, m := range a.Models {
		if !m.Enabled {
			continue
		}
		res := ResolvedModelConfig{
			ID:       strings.TrimSpace(m.ID),
			Provider: strings.TrimSpace(m.Provider),
			APIURL:   strings.TrimSpace(m.APIURL),
			APIKey:   strings.TrimSpace(m.APIKey),
			Model:    strings.TrimSpace(m.Model),
			Headers:  cloneHeaders(m.Headers),
		}
		if name := strings.TrimSpace(m.Preset); name != "" {
			preset, ok := a.ProviderPresets[name]
			if !ok {
				return nil, errUnknownPreset(i, name)
			}
			if res.APIURL == "" {
				res.APIURL = strings.TrimSpace(preset.APIURL)
			}
			if res.APIKey == "" {
				res.APIKey = strings.TrimSpace(preset.APIKey)
			}
			for k, v := range preset.Headers {
				if res.Headers == nil {
					res.Headers = make(map[string]string)
				}
				if _, exists := res.Headers[k]; !exists {
					res.Headers[k] = v
				}
			}
		}
		if res.ID == "" {
			res.ID = res.Provider
			if res.Model != "" {
				res.ID = res.Provider + ":" + res.Model
			}
		}
		out = append(out, res)
	}
	return orderByPreference(out, a.ProviderPreference), nil
}

func orderByPreference(models []ResolvedModelConfig, pref []string) []ResolvedModelConfig {
	if len(pref) == 0 || len(models) < 2 {
		return models
	}
	rank := make(map[string]int, len(pref))
	for i, id := range pref {
		rank[id] = i
	}
	ordered := make([]ResolvedModelConfig, 0, len(models))
	for _, id := range pref {
		for _, m := range models {
			if m.ID == id {
				ordered = append(ordered, m)
			}
		}
	}
	for _, m := range models {
		if _, ok := rank[m.ID]; !ok {
			ordered = append(ordered, m)
		}
	}
	return ordered
}

func cloneHeaders(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// keySet tracks config paths that were set explicitly in a file.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
