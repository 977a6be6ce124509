// Package config provides configuration management for the stock visualizer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Poll          PollConfig         `mapstructure:"poll"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Archive       ArchiveConfig      `mapstructure:"archive"`
	Export        ExportConfig       `mapstructure:"export"`
	Feed          FeedConfig         `mapstructure:"feed"`
	UI            UIConfig           `mapstructure:"ui"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// PollConfig holds polling engine configuration.
type PollConfig struct {
	IntervalSeconds int           `mapstructure:"interval_seconds"`
	HistoryDays     int           `mapstructure:"history_days"`
	Concurrency     int           `mapstructure:"concurrency"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`

	// BreakerThreshold consecutive provider failures open the breaker for
	// BreakerCooldown, during which fetches fail fast.
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// ArchiveConfig holds the SQLite quote archive configuration.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ExportConfig holds CSV export configuration.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// FeedConfig holds the websocket feed configuration.
type FeedConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	ChartWidth   int    `mapstructure:"chart_width"`
	TimeFormat   string `mapstructure:"time_format"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Bell     bool           `mapstructure:"bell"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	// RetryAttempts is the number of deliveries tried before an alert is dropped.
	RetryAttempts int `mapstructure:"retry_attempts"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stock-visualizer"
	}
	return filepath.Join(home, ".config", "stock-visualizer")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	// Unmarshal of defaults only fails on type mismatches in setDefaults.
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("poll.interval_seconds", DefaultPollIntervalSeconds)
	v.SetDefault("poll.history_days", DefaultHistoryDays)
	v.SetDefault("poll.concurrency", 1)
	v.SetDefault("poll.fetch_timeout", "15s")
	v.SetDefault("poll.breaker_threshold", 5)
	v.SetDefault("poll.breaker_cooldown", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "stockviz.log"))
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 14)

	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.path", filepath.Join(configDir, "quotes.db"))

	v.SetDefault("export.dir", ".")

	v.SetDefault("feed.enabled", false)
	v.SetDefault("feed.addr", "127.0.0.1:8765")

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.chart_width", 40)
	v.SetDefault("ui.time_format", "2006-01-02 15:04:05")

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.bell", true)
	v.SetDefault("notifications.webhook.retry_attempts", 3)
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// Optional .env next to config.toml; a missing file is fine.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, fmt.Errorf("creating config template: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOCKVIZ_POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Poll.IntervalSeconds = n
		}
	}
	if v := os.Getenv("STOCKVIZ_HISTORY_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Poll.HistoryDays = n
		}
	}
	if v := os.Getenv("STOCKVIZ_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STOCKVIZ_WEBHOOK_URL"); v != "" {
		cfg.Notifications.Webhook.URL = v
		cfg.Notifications.Webhook.Enabled = true
	}
	if v := os.Getenv("STOCKVIZ_TELEGRAM_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("STOCKVIZ_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Notifications.Telegram.ChatID = id
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := ValidatePollInterval(c.Poll.IntervalSeconds); err != nil {
		return err
	}
	if err := ValidateHistoryDays(c.Poll.HistoryDays); err != nil {
		return err
	}
	if c.Poll.Concurrency < 1 {
		return fmt.Errorf("poll.concurrency must be at least 1")
	}
	if c.Poll.FetchTimeout < 0 {
		return fmt.Errorf("poll.fetch_timeout must be non-negative")
	}
	if c.Poll.BreakerThreshold < 0 {
		return fmt.Errorf("poll.breaker_threshold must be non-negative")
	}
	if c.UI.ChartWidth < 0 {
		return fmt.Errorf("ui.chart_width must be non-negative")
	}
	if c.Feed.Enabled && c.Feed.Addr == "" {
		return fmt.Errorf("feed.addr is required when the feed is enabled")
	}
	if c.Notifications.Webhook.RetryAttempts < 1 {
		return fmt.Errorf("notifications.webhook.retry_attempts must be at least 1")
	}
	if c.Notifications.Telegram.Enabled && c.Notifications.Telegram.BotToken == "" {
		return fmt.Errorf("notifications.telegram.bot_token is required when telegram is enabled")
	}
	return nil
}

// PollInterval returns the configured interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}
