// Package notify delivers triggered alerts to the terminal, a webhook and
// Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stock-visualizer/internal/alerts"
	"stock-visualizer/internal/config"
	"stock-visualizer/internal/logging"
	"stock-visualizer/internal/models"
)

// DefaultSendTimeout bounds delivery of one notification across all channels.
const DefaultSendTimeout = 10 * time.Second

// NotificationChannel defines the interface for a notification channel.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// FromAlert builds the notification for a triggered alert.
func FromAlert(ev models.AlertEvent) Notification {
	s := ev.Status
	return Notification{
		Title:   alerts.Title(s),
		Message: alerts.Describe(s),
		Data: map[string]interface{}{
			"alert_id":      ev.ID,
			"symbol":        s.Rule.Symbol.String(),
			"condition":     s.Rule.Direction.String(),
			"threshold":     s.Rule.Threshold,
			"current_price": s.CurrentPrice,
			"cycle":         ev.Cycle,
		},
		Timestamp: ev.At,
	}
}

// MultiNotifier sends notifications to multiple channels. It is a hub
// consumer: only triggered alerts produce notifications.
type MultiNotifier struct {
	channels []NotificationChannel
	timeout  time.Duration
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// NewMultiNotifier creates a MultiNotifier with the channels enabled in cfg.
// Console output goes to out.
func NewMultiNotifier(cfg config.NotificationConfig, colorEnabled bool, out io.Writer, logger zerolog.Logger) *MultiNotifier {
	mn := &MultiNotifier{
		timeout: DefaultSendTimeout,
		logger:  logging.WithComponent(logger, "notify"),
	}
	if !cfg.Enabled {
		return mn
	}

	mn.channels = append(mn.channels, NewConsoleNotifier(out, cfg.Bell, colorEnabled))
	if cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Telegram.Enabled {
		mn.channels = append(mn.channels, NewTelegramNotifier(cfg.Telegram))
	}
	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Channels returns the names of the enabled channels.
func (mn *MultiNotifier) Channels() []string {
	mn.mu.RLock()
	defer mn.mu.RUnlock()

	names := make([]string, 0, len(mn.channels))
	for _, ch := range mn.channels {
		if ch.IsEnabled() {
			names = append(names, ch.Name())
		}
	}
	return names
}

// Send sends a notification to all enabled channels. A failing channel does
// not stop delivery to the others.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []error
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SendAlert sends the notification for one triggered alert.
func (mn *MultiNotifier) SendAlert(ctx context.Context, ev models.AlertEvent) error {
	return mn.Send(ctx, FromAlert(ev))
}

// Name implements stream.Consumer.
func (mn *MultiNotifier) Name() string { return "notifier" }

// OnSnapshotUpdated implements stream.Consumer.
func (mn *MultiNotifier) OnSnapshotUpdated(models.MarketSnapshot) {}

// OnAlertsUpdated implements stream.Consumer.
func (mn *MultiNotifier) OnAlertsUpdated([]models.AlertStatus) {}

// OnAlertTriggered implements stream.Consumer.
func (mn *MultiNotifier) OnAlertTriggered(ev models.AlertEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), mn.timeout)
	defer cancel()

	if err := mn.SendAlert(ctx, ev); err != nil {
		mn.logger.Warn().
			Str("alert_id", ev.ID).
			Str("symbol", ev.Status.Rule.Symbol.String()).
			Err(err).
			Msg("Failed to deliver alert notification")
	}
}

// NoOpNotifier is a channel that does nothing.
type NoOpNotifier struct{}

// Name returns the name of the notifier.
func (NoOpNotifier) Name() string { return "noop" }

// IsEnabled returns whether the notifier is enabled.
func (NoOpNotifier) IsEnabled() bool { return false }

// Send does nothing.
func (NoOpNotifier) Send(context.Context, Notification) error { return nil }
