package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/butlerbot/relay/internal/biz/usecase"
	"github.com/butlerbot/relay/internal/data"
	"github.com/butlerbot/relay/internal/service"
)

// DefaultAPIAddr is where the HTTP API listens unless API_ADDR is set
const DefaultAPIAddr = "127.0.0.1:9876"

// Config represents application configuration
type Config struct {
	// Feishu configuration (optional)
	Feishu FeishuConfig

	// Reasoning service configuration
	OpenAI OpenAIConfig

	// Conversation store configuration
	Store StoreConfig

	// Scheduler and resolver configuration
	Relay RelayConfig

	// Prompts configuration (loaded from YAML)
	Prompts *PromptsConfig

	// HTTP API listen address
	APIAddr string

	// Logging
	LogLevel  string
	LogFormat string
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// Enabled reports whether the Feishu transport is configured
func (c FeishuConfig) Enabled() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// OpenAIConfig contains reasoning service configuration
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// StoreConfig contains conversation store configuration
type StoreConfig struct {
	Driver      string
	DBPath      string
	DatabaseURL string
}

// RelayConfig contains scheduler and resolver settings
type RelayConfig struct {
	BotName        string
	DebounceWindow time.Duration
	PassTimeout    time.Duration
	MaxToolRounds  int
	HistoryLimit   int
	FollowUpMode   string
}

// LoadFromEnv loads configuration from environment variables.
// Malformed values are reported by Validate rather than silently replaced.
func LoadFromEnv() (*Config, error) {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".butlerbot", "relay.db")
	}

	debounce, err := envDuration("DEBOUNCE_WINDOW", service.DefaultDebounceWindow)
	if err != nil {
		return nil, err
	}
	passTimeout, err := envDuration("PASS_TIMEOUT", service.DefaultPassTimeout)
	if err != nil {
		return nil, err
	}
	maxRounds, err := envInt("MAX_TOOL_ROUNDS", usecase.DefaultMaxToolRounds)
	if err != nil {
		return nil, err
	}
	historyLimit, err := envInt("HISTORY_LIMIT", usecase.DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}

	// Load prompts from YAML
	promptsConfig, err := LoadPromptsConfig(os.Getenv("PROMPTS_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   envOr("OPENAI_MODEL", data.DefaultModel),
		},
		Store: StoreConfig{
			Driver:      envOr("DB_DRIVER", data.DriverSQLite),
			DBPath:      dbPath,
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		Relay: RelayConfig{
			BotName:        envOr("BOT_NAME", usecase.DefaultPromptConfig.BotName),
			DebounceWindow: debounce,
			PassTimeout:    passTimeout,
			MaxToolRounds:  maxRounds,
			HistoryLimit:   historyLimit,
			FollowUpMode:   envOr("FOLLOW_UP_MODE", usecase.FollowUpFull.String()),
		},
		Prompts:   promptsConfig,
		APIAddr:   envOr("API_ADDR", DefaultAPIAddr),
		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "text"),
	}, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	if (c.Feishu.AppID == "") != (c.Feishu.AppSecret == "") {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "must be set together"}
	}
	switch c.Store.Driver {
	case data.DriverSQLite:
		if c.Store.DBPath == "" {
			return &ConfigError{Field: "DB_PATH", Message: "required for sqlite"}
		}
	case data.DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return &ConfigError{Field: "DATABASE_URL", Message: "required for postgres"}
		}
	default:
		return &ConfigError{Field: "DB_DRIVER", Message: fmt.Sprintf("unknown driver %q", c.Store.Driver)}
	}
	if c.Relay.DebounceWindow <= 0 {
		return &ConfigError{Field: "DEBOUNCE_WINDOW", Message: "must be positive"}
	}
	if c.Relay.PassTimeout <= 0 {
		return &ConfigError{Field: "PASS_TIMEOUT", Message: "must be positive"}
	}
	if c.Relay.MaxToolRounds <= 0 {
		return &ConfigError{Field: "MAX_TOOL_ROUNDS", Message: "must be positive"}
	}
	if c.Relay.HistoryLimit <= 0 {
		return &ConfigError{Field: "HISTORY_LIMIT", Message: "must be positive"}
	}
	if _, err := usecase.ParseFollowUpMode(c.Relay.FollowUpMode); err != nil {
		return &ConfigError{Field: "FOLLOW_UP_MODE", Message: err.Error()}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return &ConfigError{Field: "LOG_LEVEL", Message: err.Error()}
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return &ConfigError{Field: "LOG_FORMAT", Message: "must be text or json"}
	}
	return nil
}

// ToDataConfig converts to data layer configuration
func (c *Config) ToDataConfig() data.Config {
	return data.Config{
		Driver:     c.Store.Driver,
		SQLitePath: c.Store.DBPath,
		Postgres:   data.PostgresConfig{DSN: c.Store.DatabaseURL},
		BotName:    c.Relay.BotName,
		Reasoning: data.ReasoningConfig{
			APIKey:  c.OpenAI.APIKey,
			BaseURL: c.OpenAI.BaseURL,
			Model:   c.OpenAI.Model,
		},
	}
}

// ToPromptConfig converts to prompt configuration
func (c *Config) ToPromptConfig() usecase.PromptConfig {
	cfg := usecase.PromptConfig{
		BotName:      c.Relay.BotName,
		HistoryLimit: c.Relay.HistoryLimit,
	}
	if c.Prompts != nil {
		cfg.SystemPrompt = c.Prompts.SystemPrompt
	}
	return cfg
}

// ToResolverConfig converts to resolver configuration. Call after Validate.
func (c *Config) ToResolverConfig() usecase.ResolverConfig {
	mode, _ := usecase.ParseFollowUpMode(c.Relay.FollowUpMode)
	return usecase.ResolverConfig{
		BotName:       c.Relay.BotName,
		MaxToolRounds: c.Relay.MaxToolRounds,
		FollowUp:      mode,
	}
}

// ToSchedulerConfig converts to scheduler configuration
func (c *Config) ToSchedulerConfig() service.SchedulerConfig {
	return service.SchedulerConfig{
		DebounceWindow: c.Relay.DebounceWindow,
		PassTimeout:    c.Relay.PassTimeout,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envOr(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: err.Error()}
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: "not an integer"}
	}
	return n, nil
}
