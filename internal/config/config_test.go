package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mp3fbf/finance-analyzer/internal/common"
	"github.com/mp3fbf/finance-analyzer/internal/normalize"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "none", cfg.Search.Provider)
	assert.Equal(t, 1100*time.Millisecond, cfg.Search.Interval)
	assert.InDelta(t, 0.7, cfg.Discovery.SearchThreshold, 0)
	assert.InDelta(t, 0.7, cfg.Discovery.ReinferThreshold, 0)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, strings.HasPrefix(cfg.Database.Path, "~"))
}

func TestLoad_IndependentThresholds(t *testing.T) {
	v := newViper()
	v.Set("discovery.search_threshold", 0.5)
	v.Set("discovery.reinfer_threshold", 0.9)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cfg.Discovery.SearchThreshold, 0)
	assert.InDelta(t, 0.9, cfg.Discovery.ReinferThreshold, 0)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FINANCE_LLM_PROVIDER", "anthropic")
	t.Setenv("FINANCE_SEARCH_PROVIDER", "serpapi")
	t.Setenv("ANTHROPIC_API_KEY", "ak-env")
	t.Setenv("SERPAPI_API_KEY", "serp-env")

	v := newViper()
	Bind(v)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "ak-env", cfg.LLM.APIKey)
	assert.Equal(t, "serpapi", cfg.Search.Provider)
	assert.Equal(t, "serp-env", cfg.Search.APIKey)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: /tmp/finance-test.db
llm:
  provider: openai
  api_key: sk-file
  model: gpt-4o-mini
search:
  provider: duckduckgo
  cache: redis
redis:
  addr: redis:6379
normalize:
  location_words: ["CAMPINAS"]
  plural_forms:
    PADARIAS: PADARIA
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/finance-test.db", cfg.Database.Path)
	assert.Equal(t, "sk-file", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMClientConfig().Model)

	sc := cfg.SearchStackConfig(nil)
	assert.Equal(t, "duckduckgo", sc.Provider)
	assert.Equal(t, "redis", sc.Cache)
	assert.Equal(t, "redis:6379", sc.RedisAddr)

	n := normalize.New(cfg.Locale())
	assert.Equal(t, "PADARIA PAO", n.Aggressive("PADARIA PAO CAMPINAS"))
	assert.Equal(t, "PADARIA", n.Aggressive("PADARIAS"))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{name: "zero search threshold", key: "discovery.search_threshold", val: 0.0},
		{name: "reinfer threshold above one", key: "discovery.reinfer_threshold", val: 1.5},
		{name: "bad log level", key: "logging.level", val: "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("FINANCE_TEST_DIR", "/data")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: ":memory:", want: ":memory:"},
		{in: "~", want: home},
		{in: "~/finance.db", want: filepath.Join(home, "finance.db")},
		{in: "$FINANCE_TEST_DIR/finance.db", want: "/data/finance.db"},
		{in: "/abs/finance.db", want: "/abs/finance.db"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}
