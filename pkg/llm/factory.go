package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/magnetic-studio/studio-console/pkg/config"
)

// Config holds configuration for creating a provider client.
type Config struct {
	Endpoint  string // Base URL; empty selects the provider default
	Model     string
	APIKey    string
	MaxTokens int // Anthropic only
}

// NewSchemaCaller builds the configured provider client wrapped in a circuit
// breaker. It returns nil, nil when no model is configured so callers can
// run without an LLM.
func NewSchemaCaller(cfg *config.LLMConfig, logger *zap.Logger) (SchemaCaller, error) {
	if cfg == nil || !cfg.IsAvailable() {
		logger.Info("LLM not configured; skills are disabled")
		return nil, nil
	}

	clientCfg := &Config{
		Endpoint: cfg.BaseURL,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
	}

	var (
		caller SchemaCaller
		err    error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		caller, err = NewOpenAIClient(clientCfg, logger)
	case config.ProviderAnthropic:
		caller, err = NewAnthropicClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	logger.Info("LLM client configured",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model))

	return NewGuardedCaller(caller, DefaultCircuitBreakerConfig()), nil
}
