package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTelegramToken validates a Telegram bot token
func (v *Validator) ValidateTelegramToken(token string) error {
	if token == "" {
		return fmt.Errorf("telegram bot token cannot be empty")
	}

	// Telegram bot tokens have format: <bot_id>:<token>
	// Example: 123456789:ABCdefGHIjklMNOpqrsTUVwxyz
	pattern := regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	if !pattern.MatchString(token) {
		return fmt.Errorf("invalid Telegram bot token format")
	}

	return nil
}

// ValidateRedisURL validates the backend URL
func (v *Validator) ValidateRedisURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("redis url cannot be empty")
	}
	if _, err := redis.ParseURL(rawURL); err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateRedisURL(cfg.Storage.RedisURL); err != nil {
		errors = append(errors, err)
	}
	if cfg.Storage.MaxStartAttempts <= 0 {
		errors = append(errors, fmt.Errorf("storage max_start_attempts must be positive"))
	}
	if cfg.Storage.FailureThreshold <= 0 {
		errors = append(errors, fmt.Errorf("storage failure_threshold must be positive"))
	}
	if cfg.Storage.StartRetryDelaySeconds < 0 {
		errors = append(errors, fmt.Errorf("storage start_retry_delay_seconds must be >= 0"))
	}
	if cfg.Storage.HealthCheckIntervalSecs < 0 {
		errors = append(errors, fmt.Errorf("storage health_check_interval_seconds must be >= 0"))
	}
	if cfg.Storage.SessionTTLSeconds <= 0 {
		errors = append(errors, fmt.Errorf("storage session_ttl_seconds must be positive"))
	}

	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		if err := v.ValidateTelegramToken(cfg.Telegram.BotToken); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Payments.Enabled && cfg.Payments.Secret == "" {
		errors = append(errors, fmt.Errorf("payments secret is required when payments are enabled"))
	}

	if cfg.RateLimit.MessagesPerMinute < 0 {
		errors = append(errors, fmt.Errorf("rate_limit messages_per_minute must be >= 0"))
	}
	if cfg.RateLimit.CallbacksPerMinute < 0 {
		errors = append(errors, fmt.Errorf("rate_limit callbacks_per_minute must be >= 0"))
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
