package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "t"},
		Flows:    FlowsConfig{Path: "flows.yaml"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, DefaultHistoryLimit, cfg.Store.HistoryLimit)
	assert.Equal(t, DefaultMaxHops, cfg.Flows.MaxHops)
	assert.Equal(t, DefaultTopicName, cfg.Relay.TopicName)
}

func TestNormalizeRejectsInvalidValues(t *testing.T) {
	cases := map[string]func(*Config){
		"missing token":        func(c *Config) { c.Telegram.Token = "" },
		"missing flows path":   func(c *Config) { c.Flows.Path = " " },
		"unknown store":        func(c *Config) { c.Store.Driver = "mongo" },
		"redis without addr":   func(c *Config) { c.Store.Driver = "redis" },
		"negative hops":        func(c *Config) { c.Flows.MaxHops = -1 },
		"relay without chat":   func(c *Config) { c.Relay.Enabled = true },
		"webhook without url":  func(c *Config) { c.Telegram.RunMode = RunModeWebhook },
		"bad exclude update":   func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"poll"} },
		"negative history cap": func(c *Config) { c.Store.HistoryLimit = -5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(cfg)
			assert.Error(t, Normalize(cfg))
		})
	}
}

func TestNormalizeStoreAliases(t *testing.T) {
	cfg := baseConfig()
	cfg.Store.Driver = "SQLite3"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `telegram:
  token: from-file
store:
  driver: redis
redis:
  addr: localhost:6379
flows:
  path: flows.yaml
  start_flow: onboarding
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("FLOWS_MAX_HOPS", "10")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, StoreRedis, cfg.Store.Driver)
	assert.Equal(t, "onboarding", cfg.Flows.StartFlow)
	assert.Equal(t, 10, cfg.Flows.MaxHops)
}
