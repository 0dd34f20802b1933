// Package config loads and validates all settings at startup.
// Every other package receives typed values; nothing reads os.Getenv directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Gateway providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ────────────────────────────────────────────────────────────────
	Port           string        // default "8080"
	Env            string        // "development" | "staging" | "production"
	RequestTimeout time.Duration // per-request deadline, default 90s
	MaxImageBytes  int64         // default 10 MB

	// ── Database ──────────────────────────────────────────────────────────────
	// Optional. When empty, analyses are not persisted.
	DatabaseURL string

	// ── Gateway ───────────────────────────────────────────────────────────────
	GatewayProvider string        // "ollama" | "openai"
	GatewayFallback string        // optional second provider, tried when the first fails
	GatewayTimeout  time.Duration // default 60s
	HealthInterval  time.Duration // default 30s

	// ── Ollama ────────────────────────────────────────────────────────────────
	OllamaURL   string // default "http://localhost:11434"
	OllamaModel string // default "llava"

	// ── OpenAI-compatible ─────────────────────────────────────────────────────
	OpenAIAPIKey  string
	OpenAIBaseURL string // optional, for compatible servers
	OpenAIModel   string // default "gpt-4o-mini"
}

// Model returns the model name for the configured provider.
func (c *Config) Model() string {
	if c.GatewayProvider == ProviderOpenAI {
		return c.OpenAIModel
	}
	return c.OllamaModel
}

// Load reads settings from, in increasing precedence: defaults, the optional
// YAML file at path (or ./config.yaml), a .env file in the working directory,
// and real environment variables.
func Load(path string) (*Config, error) {
	// godotenv never overwrites variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	c := &Config{
		Port:            v.GetString("port"),
		Env:             v.GetString("env"),
		RequestTimeout:  parseDuration(v.GetString("request_timeout"), 90*time.Second),
		MaxImageBytes:   v.GetInt64("max_image_bytes"),
		DatabaseURL:     v.GetString("database_url"),
		GatewayProvider: strings.ToLower(v.GetString("gateway_provider")),
		GatewayFallback: strings.ToLower(v.GetString("gateway_fallback_provider")),
		GatewayTimeout:  parseDuration(v.GetString("gateway_timeout"), 60*time.Second),
		HealthInterval:  parseDuration(v.GetString("health_interval"), 30*time.Second),
		OllamaURL:       v.GetString("ollama_url"),
		OllamaModel:     v.GetString("ollama_model"),
		OpenAIAPIKey:    v.GetString("openai_api_key"),
		OpenAIBaseURL:   v.GetString("openai_base_url"),
		OpenAIModel:     v.GetString("openai_model"),
	}

	return c, c.validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("request_timeout", "90s")
	v.SetDefault("max_image_bytes", 10<<20)
	v.SetDefault("database_url", "")
	v.SetDefault("gateway_provider", ProviderOllama)
	v.SetDefault("gateway_fallback_provider", "")
	v.SetDefault("gateway_timeout", "60s")
	v.SetDefault("health_interval", "30s")
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("ollama_model", "llava")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("openai_model", "gpt-4o-mini")
}

func (c *Config) validate() error {
	var errs []error

	errs = append(errs, c.validateProvider("GATEWAY_PROVIDER", c.GatewayProvider)...)
	if c.GatewayFallback != "" {
		if c.GatewayFallback == c.GatewayProvider {
			errs = append(errs, fmt.Errorf("GATEWAY_FALLBACK_PROVIDER must differ from GATEWAY_PROVIDER"))
		} else {
			errs = append(errs, c.validateProvider("GATEWAY_FALLBACK_PROVIDER", c.GatewayFallback)...)
		}
	}

	if c.Port == "" {
		errs = append(errs, fmt.Errorf("PORT must not be empty"))
	}
	if c.MaxImageBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_BYTES must be positive"))
	}
	if c.Model() == "" {
		errs = append(errs, fmt.Errorf("a model name must be configured for %s", c.GatewayProvider))
	}

	// Each provider in the chain gets its own GatewayTimeout, so the worst
	// case is one timeout per provider.
	budget := c.GatewayTimeout
	if c.GatewayFallback != "" {
		budget *= 2
	}
	if c.GatewayTimeout <= 0 {
		errs = append(errs, fmt.Errorf("GATEWAY_TIMEOUT must be positive"))
	} else if budget >= c.RequestTimeout {
		errs = append(errs, fmt.Errorf("GATEWAY_TIMEOUT (%s per provider, %s in total) must be shorter than REQUEST_TIMEOUT (%s)",
			c.GatewayTimeout, budget, c.RequestTimeout))
	}

	return errors.Join(errs...)
}

func (c *Config) validateProvider(key, provider string) []error {
	switch provider {
	case ProviderOllama:
		if c.OllamaURL == "" {
			return []error{fmt.Errorf("OLLAMA_URL must be set when %s=ollama", key)}
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return []error{fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL must be set when %s=openai", key)}
		}
	default:
		return []error{fmt.Errorf("%s must be %q or %q, got %q", key, ProviderOllama, ProviderOpenAI, provider)}
	}
	return nil
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

// parseDuration accepts Go duration syntax ("30s", "5m") or a plain integer
// number of seconds.
func parseDuration(raw string, defaultValue time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(raw); err == nil {
		return time.Duration(value) * time.Second
	}
	if duration, err := time.ParseDuration(raw); err == nil {
		return duration
	}
	return defaultValue
}
