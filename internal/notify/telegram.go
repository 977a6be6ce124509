package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stock-visualizer/internal/config"
	"stock-visualizer/internal/resilience"
)

// telegramMessagesPerSecond stays under the Bot API per-chat send limit.
const telegramMessagesPerSecond = 1

// TelegramNotifier sends notifications via a Telegram bot. The bot client is
// created on first use; construction fails while the token is rejected and
// is retried on the next send. Sends to the chat are rate limited.
type TelegramNotifier struct {
	token    string
	chatID   int64
	enabled  bool
	endpoint string
	client   *http.Client
	limiter  *resilience.RateLimiter

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier creates a new TelegramNotifier.
func NewTelegramNotifier(cfg config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		token:    cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != 0,
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  resilience.NewRateLimiter(telegramMessagesPerSecond, 3),
	}
}

// Name returns the name of the notifier.
func (t *TelegramNotifier) Name() string {
	return "telegram"
}

// IsEnabled returns whether the notifier is enabled.
func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

// Send sends the notification as an HTML message.
func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	if !t.enabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	bot, err := t.botAPI()
	if err != nil {
		return err
	}

	text := fmt.Sprintf("<b>%s</b>\n\n%s", escapeHTML(n.Title), escapeHTML(n.Message))
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

func (t *TelegramNotifier) botAPI() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.token, t.endpoint, t.client)
	if err != nil {
		return nil, fmt.Errorf("connecting telegram bot: %w", err)
	}
	t.bot = bot
	return bot, nil
}

// escapeHTML escapes HTML special characters for Telegram.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
