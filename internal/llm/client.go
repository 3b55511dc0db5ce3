package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mp3fbf/finance-analyzer/internal/common"
)

// Client sends one prompt to a reasoning model and returns its raw text.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds the provider settings and client-side limits.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	SystemPrompt   string
	MaxRetries     int
	RetryDelay     time.Duration
	Timeout        time.Duration
	RateLimit      int
	MaxConcurrency int
	Temperature    float64
	MaxTokens      int
}

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 2000
	defaultTimeout     = 60 * time.Second
)

// DefaultSystemPrompt frames every request as merchant identification.
const DefaultSystemPrompt = "You identify the real business behind abbreviated Brazilian bank " +
	"statement merchant codes. Reason from the evidence given and respond with ONLY a valid " +
	"JSON object in the exact format requested. Do not add commentary before or after the JSON."

func (c Config) withDefaults() Config {
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// apiError classifies a provider HTTP failure. Rate limits and server errors
// are retried; everything else fails fast.
func apiError(provider string, status int, body string) error {
	if len(body) > 500 {
		body = body[:500]
	}
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, body)
	switch {
	case status == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrRateLimit, err), Retryable: true}
	case status >= 500:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return common.NonRetryable(err)
	}
}
