package llm

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mp3fbf/finance-analyzer/internal/common"
)

// NewClient creates a raw provider client from cfg.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	case "":
		return nil, fmt.Errorf("%w: llm.provider is not set", common.ErrMissingConfig)
	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", common.ErrInvalidConfig, cfg.Provider)
	}
}

// New creates a guarded reasoning client from cfg.
func New(cfg Config, logger *slog.Logger) (*Reasoner, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	common.LoggerOrDefault(logger).Info("Reasoning client ready",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"rate_limit", cfg.RateLimit)

	return NewReasoner(client, cfg, logger), nil
}
