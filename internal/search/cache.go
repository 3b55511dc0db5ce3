package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/model"
)

const defaultCacheTTL = 24 * time.Hour

// Cache stores search responses by key.
type Cache interface {
	Get(ctx context.Context, key string) (model.SearchResponse, bool, error)
	Set(ctx context.Context, key string, resp model.SearchResponse) error
}

// Cached serves repeated queries from a cache. Empty responses are not cached.
type Cached struct {
	next   Searcher
	cache  Cache
	logger *slog.Logger
}

// NewCached wraps next with cache.
func NewCached(next Searcher, cache Cache, logger *slog.Logger) *Cached {
	return &Cached{next: next, cache: cache, logger: common.LoggerOrDefault(logger)}
}

// Search returns a cached response when present, otherwise delegates.
func (c *Cached) Search(ctx context.Context, query string, maxResults int) (model.SearchResponse, error) {
	key := cacheKey(query, maxResults)

	resp, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Search cache read failed", "error", err)
	} else if ok {
		c.logger.Debug("Search cache hit", "query", query)
		return resp, nil
	}

	resp, err = c.next.Search(ctx, query, maxResults)
	if err != nil {
		return resp, err
	}
	if !resp.Empty() {
		if err := c.cache.Set(ctx, key, resp); err != nil {
			c.logger.Warn("Search cache write failed", "error", err)
		}
	}
	return resp, nil
}

func cacheKey(query string, maxResults int) string {
	q := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return fmt.Sprintf("search:%d:%s", clampResults(maxResults), q)
}

type memoryEntry struct {
	expiry time.Time
	resp   model.SearchResponse
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	entries map[string]memoryEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// NewMemoryCache creates a cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the entry for key unless it has expired.
func (c *MemoryCache) Get(_ context.Context, key string) (model.SearchResponse, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiry) {
		return model.SearchResponse{}, false, nil
	}
	return entry.resp, true, nil
}

// Set stores resp under key.
func (c *MemoryCache) Set(_ context.Context, key string, resp model.SearchResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{resp: resp, expiry: time.Now().Add(c.ttl)}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stopCh) })
	return nil
}

// RedisOptions configures a RedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache stores responses as JSON in Redis.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("%w: redis.addr is required for the redis search cache", common.ErrMissingConfig)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisCacheWithClient(client, opts.TTL), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get loads and decodes the response stored under key.
func (c *RedisCache) Get(ctx context.Context, key string) (model.SearchResponse, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.SearchResponse{}, false, nil
	}
	if err != nil {
		return model.SearchResponse{}, false, fmt.Errorf("failed to get search cache: %w", err)
	}

	var resp model.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return model.SearchResponse{}, false, fmt.Errorf("failed to unmarshal search cache: %w", err)
	}
	return resp, true, nil
}

// Set encodes resp and stores it with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key string, resp model.SearchResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal search cache: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set search cache: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
