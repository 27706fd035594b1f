package provider

import (
	"time"

	"augur/internal/config"
	"augur/internal/logger"
)

// BuildProviders creates one provider per resolved model, in preference order.
func BuildProviders(cfg config.AIConfig) ([]ModelProvider, error) {
	models, err := cfg.ResolveModelConfigs()
	if err != nil {
		return nil, err
	}
	out := make([]ModelProvider, 0, len(models))
	for _, m := range models {
		client := &OpenAIChatClient{
			BaseURL:      m.APIURL,
			APIKey:       m.APIKey,
			Model:        m.Model,
			Temperature:  cfg.Temperature,
			MaxRetries:   cfg.MaxRetries,
			ExtraHeaders: m.Headers,
		}
		if cfg.TimeoutSeconds > 0 {
			client.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		logger.Infof("[provider] registered %s (%s)", m.ID, m.Model)
		out = append(out, NewOpenAIModelProvider(m.ID, client))
	}
	return out, nil
}
