package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config represents the main Vechnost configuration
type Config struct {
	// Telegram
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// Storage
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Game content
	Game GameConfig `json:"game" mapstructure:"game"`

	// Payments
	Payments PaymentsConfig `json:"payments" mapstructure:"payments"`

	// Rate limiting
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	BotToken string `json:"bot_token" mapstructure:"bot_token"`
}

// StorageConfig holds the hybrid storage configuration
type StorageConfig struct {
	RedisURL                  string   `json:"redis_url" mapstructure:"redis_url"`
	AutoStart                 bool     `json:"auto_start" mapstructure:"auto_start"`
	StartCommand              string   `json:"start_command" mapstructure:"start_command"`
	StartArgs                 []string `json:"start_args" mapstructure:"start_args"`
	MaxStartAttempts          int      `json:"max_start_attempts" mapstructure:"max_start_attempts"`
	StartRetryDelaySeconds    int      `json:"start_retry_delay_seconds" mapstructure:"start_retry_delay_seconds"`
	MaxStartRetryDelaySeconds int      `json:"max_start_retry_delay_seconds" mapstructure:"max_start_retry_delay_seconds"`
	HealthCheckIntervalSecs   int      `json:"health_check_interval_seconds" mapstructure:"health_check_interval_seconds"`
	FailureThreshold          int      `json:"failure_threshold" mapstructure:"failure_threshold"`
	SessionTTLSeconds         int      `json:"session_ttl_seconds" mapstructure:"session_ttl_seconds"`
}

// SessionTTL returns the sliding session lifetime.
func (s StorageConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLSeconds) * time.Second
}

// GameConfig holds game content configuration
type GameConfig struct {
	ContentPath     string `json:"content_path" mapstructure:"content_path"`
	TranslationsDir string `json:"translations_dir" mapstructure:"translations_dir"`
}

// PaymentsConfig holds payment webhook configuration
type PaymentsConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Host       string `json:"host" mapstructure:"host"`
	Port       int    `json:"port" mapstructure:"port"`
	Path       string `json:"path" mapstructure:"path"`
	Secret     string `json:"secret" mapstructure:"secret"`
	LedgerPath string `json:"ledger_path" mapstructure:"ledger_path"`
}

// RateLimitConfig holds per-action rate limits
type RateLimitConfig struct {
	MessagesPerMinute  int `json:"messages_per_minute" mapstructure:"messages_per_minute"`
	CallbacksPerMinute int `json:"callbacks_per_minute" mapstructure:"callbacks_per_minute"`
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Enabled: true,
		},
		Storage: StorageConfig{
			RedisURL:                "redis://localhost:6379/0",
			AutoStart:               false,
			StartCommand:            "redis-server",
			MaxStartAttempts:        3,
			StartRetryDelaySeconds:  2,
			HealthCheckIntervalSecs: 5,
			FailureThreshold:        3,
			SessionTTLSeconds:       86400,
		},
		Game: GameConfig{
			ContentPath:     "data/content.yaml",
			TranslationsDir: "data/translations",
		},
		Payments: PaymentsConfig{
			Enabled: false,
			Host:    "0.0.0.0",
			Port:    3001,
			Path:    "/payments/webhook",
		},
		RateLimit: RateLimitConfig{
			MessagesPerMinute:  20,
			CallbacksPerMinute: 40,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid. These are the only
// fatal errors in the system; everything past startup degrades instead.
func (c *Config) Validate() error {
	if c.Storage.RedisURL == "" {
		return fmt.Errorf("storage redis_url is required")
	}
	if _, err := redis.ParseURL(c.Storage.RedisURL); err != nil {
		return fmt.Errorf("invalid storage redis_url: %w", err)
	}
	// Zero is rejected rather than silently treated as the default.
	if c.Storage.MaxStartAttempts <= 0 {
		return fmt.Errorf("storage max_start_attempts must be positive")
	}
	if c.Storage.FailureThreshold <= 0 {
		return fmt.Errorf("storage failure_threshold must be positive")
	}
	if c.Storage.SessionTTLSeconds <= 0 {
		return fmt.Errorf("storage session_ttl_seconds must be positive")
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required when Telegram is enabled")
	}

	if c.Payments.Enabled {
		if c.Payments.Secret == "" {
			return fmt.Errorf("payments secret is required when payments are enabled")
		}
		if c.Payments.Port <= 0 || c.Payments.Port > 65535 {
			return fmt.Errorf("invalid payments port: %d", c.Payments.Port)
		}
	}

	return nil
}
