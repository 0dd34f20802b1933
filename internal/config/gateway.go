package config

import (
	"log/slog"

	"github.com/nyashahama/multimodal-risk-engine/internal/gateway"
)

// NewGateway builds the model client for the configured provider, wrapped in
// a gateway.Fallback when GATEWAY_FALLBACK_PROVIDER is set.
func (c *Config) NewGateway(logger *slog.Logger) gateway.Client {
	primary := c.newProvider(c.GatewayProvider, logger)
	if c.GatewayFallback == "" {
		return primary
	}
	logger.Info("gateway: fallback enabled", "primary", c.GatewayProvider, "secondary", c.GatewayFallback)
	return gateway.NewFallback(primary, c.newProvider(c.GatewayFallback, logger), logger)
}

func (c *Config) newProvider(provider string, logger *slog.Logger) gateway.Client {
	if provider == ProviderOpenAI {
		logger.Info("gateway: using OpenAI-compatible API", "base_url", c.OpenAIBaseURL, "model", c.OpenAIModel)
		return gateway.NewOpenAIClient(gateway.OpenAIConfig{
			APIKey:  c.OpenAIAPIKey,
			BaseURL: c.OpenAIBaseURL,
			Model:   c.OpenAIModel,
			Timeout: c.GatewayTimeout,
		}, logger)
	}
	logger.Info("gateway: using Ollama", "url", c.OllamaURL, "model", c.OllamaModel)
	return gateway.NewOllamaClient(gateway.OllamaConfig{
		BaseURL: c.OllamaURL,
		Model:   c.OllamaModel,
		Timeout: c.GatewayTimeout,
	}, logger)
}
