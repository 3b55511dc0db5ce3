package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/service"
)

// Reasoner guards a Client with a rate limit, a per-attempt timeout and retries.
type Reasoner struct {
	client      Client
	rateLimiter *rateLimiter
	logger      *slog.Logger
	retryOpts   service.RetryOptions
	timeout     time.Duration
}

// NewReasoner wraps client using the limits in cfg.
func NewReasoner(client Client, cfg Config, logger *slog.Logger) *Reasoner {
	cfg = cfg.withDefaults()

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &Reasoner{
		client:      client,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		logger:      common.LoggerOrDefault(logger),
		timeout:     cfg.Timeout,
		retryOpts: service.RetryOptions{
			MaxAttempts:  maxRetries,
			InitialDelay: retryDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Complete sends prompt, waiting for rate-limit capacity before each attempt.
func (r *Reasoner) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	start := time.Now()

	err := common.WithRetry(ctx, func() error {
		if err := r.rateLimiter.wait(ctx); err != nil {
			return common.NonRetryable(err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		text, err := r.client.Complete(attemptCtx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	}, r.retryOpts)
	if err != nil {
		return "", fmt.Errorf("reasoning request failed: %w", err)
	}

	r.logger.Debug("Reasoning request completed",
		"duration", time.Since(start),
		"prompt_chars", len(prompt),
		"response_chars", len(out))
	return out, nil
}
