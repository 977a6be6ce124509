package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Stock Visualizer Configuration

[poll]
# Seconds between poll cycles (minimum 10)
interval_seconds = 60
# Trading days of closing prices to fetch per symbol
history_days = 30
# Parallel fetches per cycle (1 = sequential)
concurrency = 1
# Per-symbol fetch timeout
fetch_timeout = "15s"
# Consecutive provider failures that pause fetching (0 disables)
breaker_threshold = 5
breaker_cooldown = "30s"

[logging]
# Log level: debug, info, warn, error
level = "info"
# Write a rotating log file in addition to the console
file = true

[archive]
# Record fetched closing prices in a local SQLite database
enabled = true

[export]
# Directory for CSV exports
dir = "."

[feed]
# Serve snapshots and alerts over a websocket
enabled = false
addr = "127.0.0.1:8765"

[ui]
color_enabled = true
# Width of the sparkline history chart
chart_width = 40
time_format = "2006-01-02 15:04:05"

[notifications]
enabled = true
# Ring the terminal bell when an alert triggers
bell = true

[notifications.webhook]
enabled = false
url = ""
# Deliveries tried before an alert is dropped; 4xx responses are not retried
retry_attempts = 3

[notifications.telegram]
enabled = false
bot_token = ""
chat_id = 0
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	if err := os.WriteFile(configPath, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
