// Package config loads application settings from viper.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/engine"
	"github.com/mp3fbf/finance-analyzer/internal/inference"
	"github.com/mp3fbf/finance-analyzer/internal/llm"
	"github.com/mp3fbf/finance-analyzer/internal/normalize"
	"github.com/mp3fbf/finance-analyzer/internal/search"
)

// EnvPrefix prefixes environment overrides, e.g. FINANCE_LLM_PROVIDER.
const EnvPrefix = "FINANCE"

// Config is the typed view of all settings.
type Config struct {
	Normalize NormalizeConfig
	Database  DatabaseConfig
	LLM       LLMConfig
	Search    SearchConfig
	Redis     RedisConfig
	Server    ServerConfig
	Logging   LoggingConfig
	Discovery DiscoveryConfig
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string
}

// LLMConfig selects the reasoning provider.
type LLMConfig struct {
	Provider       string
	Model          string
	APIKey         string
	BaseURL        string
	RetryDelay     time.Duration
	Timeout        time.Duration
	Temperature    float64
	MaxTokens      int
	MaxRetries     int
	RateLimit      int
	MaxConcurrency int
}

// SearchConfig selects the web search provider and cache.
type SearchConfig struct {
	Provider   string
	APIKey     string
	Cache      string
	Interval   time.Duration
	CacheTTL   time.Duration
	MaxResults int
}

// RedisConfig addresses the optional search cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DiscoveryConfig holds the two independent confidence thresholds.
type DiscoveryConfig struct {
	SearchThreshold  float64
	ReinferThreshold float64
}

// NormalizeConfig extends the built-in locale tables.
type NormalizeConfig struct {
	PluralForms   map[string]string
	LocationWords []string
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr    string
	CertDir string
	TLS     bool
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "~/.local/share/finance/finance.db")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", 2*time.Second)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.rate_limit", 60)
	v.SetDefault("llm.max_concurrency", inference.DefaultMaxConcurrency)

	v.SetDefault("search.provider", search.ProviderNone)
	v.SetDefault("search.interval", 1100*time.Millisecond)
	v.SetDefault("search.max_results", inference.DefaultSearchResults)
	v.SetDefault("search.cache", search.CacheMemory)
	v.SetDefault("search.cache_ttl", 24*time.Hour)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("discovery.search_threshold", inference.DefaultSearchThreshold)
	v.SetDefault("discovery.reinfer_threshold", engine.DefaultReinferThreshold)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.tls", false)
	v.SetDefault("server.cert_dir", "~/.config/finance/certs")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Bind enables FINANCE_* environment overrides on v.
func Bind(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads a validated Config from v. API keys missing from v fall back to
// the providers' conventional environment variables.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(v.GetString("llm.provider")),
			Model:          v.GetString("llm.model"),
			APIKey:         v.GetString("llm.api_key"),
			BaseURL:        v.GetString("llm.base_url"),
			Temperature:    v.GetFloat64("llm.temperature"),
			MaxTokens:      v.GetInt("llm.max_tokens"),
			MaxRetries:     v.GetInt("llm.max_retries"),
			RetryDelay:     v.GetDuration("llm.retry_delay"),
			Timeout:        v.GetDuration("llm.timeout"),
			RateLimit:      v.GetInt("llm.rate_limit"),
			MaxConcurrency: v.GetInt("llm.max_concurrency"),
		},
		Search: SearchConfig{
			Provider:   strings.ToLower(v.GetString("search.provider")),
			APIKey:     v.GetString("search.api_key"),
			Interval:   v.GetDuration("search.interval"),
			MaxResults: v.GetInt("search.max_results"),
			Cache:      strings.ToLower(v.GetString("search.cache")),
			CacheTTL:   v.GetDuration("search.cache_ttl"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Discovery: DiscoveryConfig{
			SearchThreshold:  v.GetFloat64("discovery.search_threshold"),
			ReinferThreshold: v.GetFloat64("discovery.reinfer_threshold"),
		},
		Normalize: NormalizeConfig{
			LocationWords: v.GetStringSlice("normalize.location_words"),
			PluralForms:   v.GetStringMapString("normalize.plural_forms"),
		},
		Server: ServerConfig{
			Addr:    v.GetString("server.addr"),
			TLS:     v.GetBool("server.tls"),
			CertDir: ExpandPath(v.GetString("server.cert_dir")),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.Search.APIKey == "" && cfg.Search.Provider == search.ProviderSerpAPI {
		cfg.Search.APIKey = os.Getenv("SERPAPI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", common.ErrMissingConfig)
	}
	for key, val := range map[string]float64{
		"discovery.search_threshold":  c.Discovery.SearchThreshold,
		"discovery.reinfer_threshold": c.Discovery.ReinferThreshold,
	} {
		if val <= 0 || val > 1 {
			return fmt.Errorf("%w: %s must be in (0, 1], got %v", common.ErrInvalidConfig, key, val)
		}
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// LLMClientConfig converts the settings for llm.New.
func (c Config) LLMClientConfig() llm.Config {
	return llm.Config{
		Provider:       c.LLM.Provider,
		APIKey:         c.LLM.APIKey,
		Model:          c.LLM.Model,
		BaseURL:        c.LLM.BaseURL,
		MaxRetries:     c.LLM.MaxRetries,
		RetryDelay:     c.LLM.RetryDelay,
		Timeout:        c.LLM.Timeout,
		RateLimit:      c.LLM.RateLimit,
		MaxConcurrency: c.LLM.MaxConcurrency,
		Temperature:    c.LLM.Temperature,
		MaxTokens:      c.LLM.MaxTokens,
	}
}

// SearchStackConfig converts the settings for search.New.
func (c Config) SearchStackConfig(logger *slog.Logger) search.Config {
	return search.Config{
		Logger:        logger,
		Provider:      c.Search.Provider,
		APIKey:        c.Search.APIKey,
		Cache:         c.Search.Cache,
		RedisAddr:     c.Redis.Addr,
		RedisPassword: c.Redis.Password,
		RedisDB:       c.Redis.DB,
		Interval:      c.Search.Interval,
		CacheTTL:      c.Search.CacheTTL,
	}
}

// Locale returns the Brazilian locale extended with configured words.
func (c Config) Locale() normalize.Locale {
	return normalize.BrazilianLocale().With(c.Normalize.LocationWords, c.Normalize.PluralForms)
}

// ExpandPath expands a leading ~ and $VAR references in path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return os.ExpandEnv(path)
}
