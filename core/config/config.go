package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// ErrorsFile receives error-level lines only.
	ErrorsFile string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// StorePostgres keeps contexts in PostgreSQL.
	StorePostgres = "postgres"
	// StoreSQLite keeps contexts in a SQLite file.
	StoreSQLite = "sqlite"
	// StoreRedis keeps contexts in Redis.
	StoreRedis = "redis"
	// StoreMemory keeps contexts in process memory.
	StoreMemory = "memory"
)

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// DefaultMaxHops bounds step executions triggered by one inbound event.
	DefaultMaxHops = 64
	// DefaultHistoryLimit bounds the persisted step history.
	DefaultHistoryLimit = 100
	// DefaultTopicName names relay topics.
	DefaultTopicName = "%s (%d)"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// StoreConfig selects the context store backend.
type StoreConfig struct {
	// Driver is one of postgres, sqlite, redis or memory.
	Driver       string `yaml:"driver" envconfig:"STORE_DRIVER"`
	HistoryLimit int    `yaml:"history_limit" envconfig:"STORE_HISTORY_LIMIT"`
	// ContextTTLSeconds expires contexts in redis and memory backends; 0 keeps them.
	ContextTTLSeconds int `yaml:"context_ttl_seconds" envconfig:"STORE_CONTEXT_TTL_SECONDS"`
}

// RedisConfig holds connection settings for the redis store.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// FlowsConfig points at flow definitions and tunes the interpreter.
type FlowsConfig struct {
	Path string `yaml:"path" envconfig:"FLOWS_PATH"`
	// StartFlow is started by /start; empty disables the command.
	StartFlow          string `yaml:"start_flow" envconfig:"FLOWS_START_FLOW"`
	DefaultAdminChatID int64  `yaml:"default_admin_chat_id" envconfig:"FLOWS_DEFAULT_ADMIN_CHAT_ID"`
	MaxHops            int    `yaml:"max_hops" envconfig:"FLOWS_MAX_HOPS"`
}

// RelayConfig controls forwarding of ordinary messages between users and admin topics.
type RelayConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"RELAY_ENABLED"`
	// TopicName is a fmt template receiving the display name and the user id.
	TopicName string `yaml:"topic_name" envconfig:"RELAY_TOPIC_NAME"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Flows     FlowsConfig     `yaml:"flows"`
	Relay     RelayConfig     `yaml:"relay"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}

	if err := normalizeStore(cfg); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Flows.Path) == "" {
		return fmt.Errorf("flows.path is required")
	}
	if cfg.Flows.MaxHops == 0 {
		cfg.Flows.MaxHops = DefaultMaxHops
	}
	if cfg.Flows.MaxHops < 0 {
		return fmt.Errorf("flows.max_hops must be >= 0")
	}
	if cfg.Flows.DefaultAdminChatID == 0 && cfg.Relay.Enabled {
		return fmt.Errorf("flows.default_admin_chat_id is required when relay.enabled is true")
	}
	if strings.TrimSpace(cfg.Relay.TopicName) == "" {
		cfg.Relay.TopicName = DefaultTopicName
	}
	return nil
}

func normalizeStore(cfg *Config) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch driver {
	case "":
		driver = StoreMemory
	case "postgresql":
		driver = StorePostgres
	case "sqlite3":
		driver = StoreSQLite
	}
	switch driver {
	case StorePostgres, StoreSQLite, StoreMemory:
	case StoreRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when store.driver is 'redis'")
		}
	default:
		return fmt.Errorf("invalid store.driver %q; allowed: postgres, sqlite, redis, memory", cfg.Store.Driver)
	}
	cfg.Store.Driver = driver
	if cfg.Store.HistoryLimit == 0 {
		cfg.Store.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Store.HistoryLimit < 0 || cfg.Store.ContextTTLSeconds < 0 {
		return fmt.Errorf("store.history_limit and store.context_ttl_seconds must be >= 0")
	}
	return nil
}
