package config

import (
	"strings"
)

const (
	defaultAppEnv             = "dev"
	defaultAppLogLevel        = "info"
	defaultAppLogFormat       = "text"
	defaultAppHTTPAddr        = ":9991"
	defaultAppLogPath         = "/data/logs/augur.log"
	defaultAppLLMLogPath      = "/data/logs/augur-llm.log"
	defaultAppDecisionLogPath = "/data/db/decisions.db"
	defaultGameBaseURL        = "https://api.tokenrace.example"
	defaultGameStake          = 100
	defaultGameTimeout        = 15
	defaultLobbyURL           = "wss://api.tokenrace.example/socket/websocket"
	defaultLobbyTopic         = "game:lobby"
	defaultLobbyHeartbeat     = 30
	defaultLobbyReconnectMax  = 60
	defaultLobbyHandshake     = 15
	defaultForecastBaseURL    = "http://forecaster:8000"
	defaultForecastTimeout    = 10
	defaultForecastRate       = 10
	defaultForecastBurst      = 5
	defaultAITimeout          = 60
	defaultAIMaxRetries       = 2
	defaultAITemperature      = 0.5
	defaultHistoryWindow      = 3
	defaultExpectedSelections = 3
	defaultMaxSelections      = 3
	defaultStaleAfter         = 900
	defaultFailureThreshold   = 5
	defaultFailureCooldown    = 120
	defaultPipelineTimeout    = 90
	defaultHistoryDriver      = "sqlite"
	defaultHistoryPath        = "/data/db/history.db"
	defaultRedisKey           = "augur:history"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Game.applyDefaults(keys)
	c.Lobby.applyDefaults(keys)
	c.Forecast.applyDefaults(keys)
	c.AI.applyDefaults(keys)
	c.Decision.applyDefaults(keys)
	c.Agent.applyDefaults(keys)
	c.History.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLogPath),
		stringFieldDefault("app.decision_log_path", &a.DecisionLogPath, defaultAppDecisionLogPath),
	)
}

func (g *GameConfig) applyDefaults(keys keySet) {
	if g == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("game.base_url", &g.BaseURL, defaultGameBaseURL),
		positiveFloatDefault("game.stake", &g.Stake, defaultGameStake),
		positiveIntDefault("game.timeout_seconds", &g.TimeoutSeconds, defaultGameTimeout),
	)
	g.BaseURL = strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")
}

func (l *LobbyConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("lobby.url", &l.URL, defaultLobbyURL),
		stringFieldDefault("lobby.topic", &l.Topic, defaultLobbyTopic),
		positiveIntDefault("lobby.heartbeat_seconds", &l.HeartbeatSeconds, defaultLobbyHeartbeat),
		positiveIntDefault("lobby.reconnect_max_seconds", &l.ReconnectMaxSeconds, defaultLobbyReconnectMax),
		positiveIntDefault("lobby.handshake_timeout_seconds", &l.HandshakeTimeoutSecs, defaultLobbyHandshake),
	)
}

func (f *ForecastConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("forecast.base_url", &f.BaseURL, defaultForecastBaseURL),
		positiveIntDefault("forecast.timeout_seconds", &f.TimeoutSeconds, defaultForecastTimeout),
		positiveFloatDefault("forecast.rate_per_second", &f.RatePerSecond, defaultForecastRate),
		positiveIntDefault("forecast.burst", &f.Burst, defaultForecastBurst),
	)
	f.BaseURL = strings.TrimRight(strings.TrimSpace(f.BaseURL), "/")
}

func (a *AIConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	if a.ProviderPresets == nil {
		a.ProviderPresets = make(map[string]ModelPreset)
	}
	applyFieldDefaults(keys,
		positiveIntDefault("ai.timeout_seconds", &a.TimeoutSeconds, defaultAITimeout),
		positiveIntDefault("ai.max_retries", &a.MaxRetries, defaultAIMaxRetries),
		positiveFloatDefault("ai.temperature", &a.Temperature, defaultAITemperature),
	)
	a.ProviderPreference = normalizePreferenceList(a.ProviderPreference)
}

func (d *DecisionConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		positiveIntDefault("decision.history_window", &d.HistoryWindow, defaultHistoryWindow),
		positiveIntDefault("decision.expected_selections", &d.ExpectedSelections, defaultExpectedSelections),
		positiveIntDefault("decision.max_selections", &d.MaxSelections, defaultMaxSelections),
	)
}

func (a *AgentConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		positiveIntDefault("agent.stale_after_seconds", &a.StaleAfterSeconds, defaultStaleAfter),
		positiveIntDefault("agent.failure_threshold", &a.FailureThreshold, defaultFailureThreshold),
		positiveIntDefault("agent.failure_cooldown_seconds", &a.FailureCooldownSeconds, defaultFailureCooldown),
		positiveIntDefault("agent.pipeline_timeout_seconds", &a.PipelineTimeoutSeconds, defaultPipelineTimeout),
	)
}

func (h *HistoryConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("history.driver", &h.Driver, defaultHistoryDriver),
		stringFieldDefault("history.path", &h.Path, defaultHistoryPath),
		stringFieldDefault("history.redis.key", &h.Redis.Key, defaultRedisKey),
	)
	h.Driver = strings.ToLower(strings.TrimSpace(h.Driver))
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func positiveIntDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && *target <= 0 },
		apply: func() { *target = def },
	}
}

func positiveFloatDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return target != nil && *target <= 0 },
		apply: func() { *target = def },
	}
}

func normalizePreferenceList(pref []string) []string {
	if len(pref) == 0 {
		return nil
	}
	out := make([]string, 0, len(pref))
	seen := make(map[string]bool, len(pref))
	for _, id := range pref {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
