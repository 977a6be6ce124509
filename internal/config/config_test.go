package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "stock-visualizer/internal/errors"
)

func TestLoad_WritesTemplateAndDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("template not written: %v", err)
	}
	if cfg.Poll.IntervalSeconds != DefaultPollIntervalSeconds || cfg.Poll.HistoryDays != DefaultHistoryDays {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if cfg.Poll.FetchTimeout != 15*time.Second || cfg.Poll.BreakerCooldown != 30*time.Second {
		t.Errorf("durations = %s, %s", cfg.Poll.FetchTimeout, cfg.Poll.BreakerCooldown)
	}
	if cfg.Archive.Path != filepath.Join(dir, "quotes.db") {
		t.Errorf("archive path = %q", cfg.Archive.Path)
	}
}

func TestLoad_ReadsTemplateBack(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if cfg.Poll.BreakerThreshold != 5 || cfg.Notifications.Webhook.RetryAttempts != 3 || cfg.UI.ChartWidth != 40 {
		t.Errorf("template values not read: %+v %+v %+v", cfg.Poll, cfg.Notifications, cfg.UI)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	content := "[poll]\ninterval_seconds = 15\nhistory_days = 90\n\n[feed]\nenabled = true\naddr = \"127.0.0.1:9999\"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Poll.IntervalSeconds != 15 || cfg.Poll.HistoryDays != 90 {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if !cfg.Feed.Enabled || cfg.Feed.Addr != "127.0.0.1:9999" {
		t.Errorf("feed = %+v", cfg.Feed)
	}
}

func TestLoad_EnvOverridesAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STOCKVIZ_TELEGRAM_CHAT_ID=4242\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STOCKVIZ_POLL_INTERVAL", "20")
	t.Setenv("STOCKVIZ_WEBHOOK_URL", "https://example.test/hook")
	t.Cleanup(func() { os.Unsetenv("STOCKVIZ_TELEGRAM_CHAT_ID") })

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Poll.IntervalSeconds != 20 {
		t.Errorf("interval = %d, want 20", cfg.Poll.IntervalSeconds)
	}
	if !cfg.Notifications.Webhook.Enabled || cfg.Notifications.Webhook.URL != "https://example.test/hook" {
		t.Errorf("webhook = %+v", cfg.Notifications.Webhook)
	}
	if cfg.Notifications.Telegram.ChatID != 4242 {
		t.Errorf("chat id = %d, want value from .env", cfg.Notifications.Telegram.ChatID)
	}
}

func TestLoad_RejectsShortInterval(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STOCKVIZ_POLL_INTERVAL", "5")
	_, err := Load(dir)
	if !apperrors.Is(err, apperrors.ErrIntervalTooShort) {
		t.Errorf("error = %v, want ErrIntervalTooShort", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero history", func(c *Config) { c.Poll.HistoryDays = 0 }},
		{"zero concurrency", func(c *Config) { c.Poll.Concurrency = 0 }},
		{"negative breaker threshold", func(c *Config) { c.Poll.BreakerThreshold = -1 }},
		{"zero webhook retries", func(c *Config) { c.Notifications.Webhook.RetryAttempts = 0 }},
		{"feed without addr", func(c *Config) { c.Feed.Enabled = true; c.Feed.Addr = "" }},
		{"telegram without token", func(c *Config) { c.Notifications.Telegram.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Default config invalid: %v", err)
	}
}

func TestParsePollInterval(t *testing.T) {
	if _, err := ParsePollInterval("abc"); !apperrors.Is(err, apperrors.ErrInvalidNumber) {
		t.Errorf("error = %v, want ErrInvalidNumber", err)
	}
	if _, err := ParsePollInterval("9"); !apperrors.Is(err, apperrors.ErrIntervalTooShort) {
		t.Errorf("error = %v, want ErrIntervalTooShort", err)
	}
	if n, err := ParsePollInterval(" 10 "); err != nil || n != 10 {
		t.Errorf("ParsePollInterval(10) = %d, %v", n, err)
	}
	if got := apperrors.Reason(mustErr(ParsePollInterval("9"))); got != "interval must be at least 10 seconds" {
		t.Errorf("Reason = %q", got)
	}
}

func mustErr(_ int, err error) error { return err }
