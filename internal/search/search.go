// Package search provides web search adapters used to disambiguate merchant
// codes, along with pacing and caching wrappers.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

// Provider names accepted by New.
const (
	ProviderNone       = "none"
	ProviderSerpAPI    = "serpapi"
	ProviderDuckDuckGo = "duckduckgo"
)

// Cache backends accepted by New.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

const (
	defaultMaxResults = 5
	defaultInterval   = 1100 * time.Millisecond
	maxSummaryResults = 3
)

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) (model.SearchResponse, error)
}

// Config selects and tunes a search stack.
type Config struct {
	Logger        *slog.Logger
	Provider      string
	APIKey        string
	Cache         string
	RedisAddr     string
	RedisPassword string
	Interval      time.Duration
	CacheTTL      time.Duration
	RedisDB       int
}

// Stack is a configured searcher plus the resources it owns.
type Stack struct {
	Searcher
	closers []func() error
}

// Close releases the scheduler and cache.
func (s *Stack) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// New builds the search stack for cfg: provider, then scheduler, then cache.
// An unconfigured provider yields a searcher that returns no results.
func New(ctx context.Context, cfg Config) (*Stack, error) {
	logger := common.LoggerOrDefault(cfg.Logger)

	var provider Searcher
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		return &Stack{Searcher: Noop{}}, nil
	case ProviderSerpAPI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: search.api_key is required for serpapi", common.ErrMissingConfig)
		}
		provider = NewSerpAPI(cfg.APIKey)
	case ProviderDuckDuckGo:
		provider = NewDuckDuckGo()
	default:
		return nil, fmt.Errorf("%w: unknown search provider %q", common.ErrInvalidConfig, cfg.Provider)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	sched := NewScheduler(provider, interval, nil)
	stack := &Stack{Searcher: sched, closers: []func() error{sched.Close}}

	switch strings.ToLower(cfg.Cache) {
	case "", CacheNone:
	case CacheMemory:
		cache := NewMemoryCache(cfg.CacheTTL)
		stack.closers = append(stack.closers, cache.Close)
		stack.Searcher = NewCached(stack.Searcher, cache, logger)
	case CacheRedis:
		cache, err := NewRedisCache(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			_ = stack.Close()
			return nil, err
		}
		stack.closers = append(stack.closers, cache.Close)
		stack.Searcher = NewCached(stack.Searcher, cache, logger)
	default:
		_ = stack.Close()
		return nil, fmt.Errorf("%w: unknown search cache %q", common.ErrInvalidConfig, cfg.Cache)
	}

	logger.Info("Web search enabled", "provider", cfg.Provider, "cache", cfg.Cache, "interval", interval)
	return stack, nil
}

// Noop is the searcher used when no provider is configured.
type Noop struct{}

// Search returns an empty response.
func (Noop) Search(_ context.Context, query string, _ int) (model.SearchResponse, error) {
	return model.SearchResponse{Query: query}, nil
}

// summarize joins the leading snippets into a short digest.
func summarize(results []model.SearchResult) string {
	parts := make([]string, 0, maxSummaryResults)
	for _, r := range results {
		if len(parts) == maxSummaryResults {
			break
		}
		text := strings.TrimSpace(r.Snippet)
		if text == "" {
			text = strings.TrimSpace(r.Title)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " | ")
}

func clampResults(n int) int {
	if n <= 0 {
		return defaultMaxResults
	}
	return n
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
	}
}

func statusError(provider string, code int) error {
	err := fmt.Errorf("%s returned status %d", provider, code)
	return &common.RetryableError{
		Err:       err,
		Retryable: code == http.StatusTooManyRequests || code >= 500,
	}
}
