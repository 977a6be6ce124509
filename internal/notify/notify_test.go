package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-visualizer/internal/config"
	"stock-visualizer/internal/models"
	"stock-visualizer/internal/resilience"
)

var fastRetry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}

func triggeredEvent() models.AlertEvent {
	return models.AlertEvent{
		ID: "evt-1",
		Status: models.AlertStatus{
			Rule:         models.AlertRule{Symbol: "AAPL", Threshold: 150, Direction: models.Above},
			CurrentPrice: 151.2,
			HasPrice:     true,
			Triggered:    true,
		},
		Cycle: 3,
		At:    time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC),
	}
}

type recordingChannel struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (r *recordingChannel) Name() string    { return "recording" }
func (r *recordingChannel) IsEnabled() bool { return true }
func (r *recordingChannel) Send(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func TestFromAlert(t *testing.T) {
	n := FromAlert(triggeredEvent())
	if n.Title != "Alert Triggered: AAPL" {
		t.Errorf("Title = %q", n.Title)
	}
	if want := "AAPL price is now Above 150.00\nCurrent price: 151.20"; n.Message != want {
		t.Errorf("Message = %q, want %q", n.Message, want)
	}
	if n.Data["alert_id"] != "evt-1" {
		t.Errorf("alert_id = %v", n.Data["alert_id"])
	}
}

func TestMultiNotifier_ContinuesPastFailingChannel(t *testing.T) {
	mn := NewMultiNotifier(config.NotificationConfig{}, false, nil, zerolog.Nop())
	failing := &recordingChannel{err: errors.New("down")}
	ok := &recordingChannel{}
	mn.AddChannel(failing)
	mn.AddChannel(NoOpNotifier{})
	mn.AddChannel(ok)

	err := mn.SendAlert(context.Background(), triggeredEvent())
	if err == nil || !strings.Contains(err.Error(), "recording: down") {
		t.Errorf("error = %v, want aggregated channel failure", err)
	}
	if len(ok.sent) != 1 {
		t.Errorf("healthy channel got %d notifications, want 1", len(ok.sent))
	}
	if got := mn.Channels(); len(got) != 2 {
		t.Errorf("Channels = %v, want two enabled", got)
	}
}

func TestMultiNotifier_DisabledHasNoChannels(t *testing.T) {
	mn := NewMultiNotifier(config.NotificationConfig{Enabled: false, Bell: true}, false, &bytes.Buffer{}, zerolog.Nop())
	if got := mn.Channels(); len(got) != 0 {
		t.Errorf("Channels = %v, want none", got)
	}
}

func TestMultiNotifier_OnAlertTriggered(t *testing.T) {
	var buf bytes.Buffer
	mn := NewMultiNotifier(config.NotificationConfig{Enabled: true}, false, &buf, zerolog.Nop())
	mn.OnAlertTriggered(triggeredEvent())

	out := buf.String()
	if !strings.Contains(out, "Alert Triggered: AAPL") || !strings.Contains(out, "Current price: 151.20") {
		t.Errorf("console output = %q", out)
	}
	if strings.Contains(out, "\a") {
		t.Error("bell rung while disabled")
	}
}

func TestConsoleNotifier_Bell(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleNotifier(&buf, true, false)
	if err := c.Send(context.Background(), FromAlert(triggeredEvent())); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "\a") {
		t.Errorf("output = %q, want leading bell", buf.String())
	}
	if !strings.Contains(buf.String(), "[14:30:00]") {
		t.Errorf("output = %q, want timestamp", buf.String())
	}
}

func TestWebhookNotifier_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	if err := w.Send(context.Background(), FromAlert(triggeredEvent())); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got["title"] != "Alert Triggered: AAPL" {
		t.Errorf("payload title = %v", got["title"])
	}
	data, _ := got["data"].(map[string]interface{})
	if data["symbol"] != "AAPL" {
		t.Errorf("payload data = %v", data)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	w.retry = fastRetry
	if err := w.Send(context.Background(), Notification{Title: "x"}); err == nil {
		t.Error("Send returned nil for 500 response")
	}
}

func TestWebhookNotifier_RetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	w.retry = fastRetry
	if err := w.Send(context.Background(), FromAlert(triggeredEvent())); err != nil {
		t.Fatalf("Send failed after transient 503: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestWebhookNotifier_ClientErrorNotRetried(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	w.retry = fastRetry
	if err := w.Send(context.Background(), Notification{Title: "x"}); err == nil {
		t.Fatal("Send returned nil for 400 response")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWebhookNotifier_DisabledWithoutURL(t *testing.T) {
	w := NewWebhookNotifier(config.WebhookConfig{Enabled: true})
	if w.IsEnabled() {
		t.Error("webhook enabled without URL")
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	var mu sync.Mutex
	var text, chatID, parseMode string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"stockviz","username":"stockviz_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			r.ParseForm()
			mu.Lock()
			text, chatID, parseMode = r.FormValue("text"), r.FormValue("chat_id"), r.FormValue("parse_mode")
			mu.Unlock()
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tn := NewTelegramNotifier(config.TelegramConfig{Enabled: true, BotToken: "123:abc", ChatID: 42})
	tn.endpoint = srv.URL + "/bot%s/%s"

	n := FromAlert(triggeredEvent())
	n.Message += " <b>"
	if err := tn.Send(context.Background(), n); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if chatID != "42" || parseMode != "HTML" {
		t.Errorf("chat_id = %q parse_mode = %q", chatID, parseMode)
	}
	if !strings.HasPrefix(text, "<b>Alert Triggered: AAPL</b>") || !strings.HasSuffix(text, "&lt;b&gt;") {
		t.Errorf("text = %q", text)
	}
}

func TestTelegramNotifier_RateLimitObservesContext(t *testing.T) {
	tn := NewTelegramNotifier(config.TelegramConfig{Enabled: true, BotToken: "123:abc", ChatID: 42})
	tn.limiter = resilience.NewRateLimiter(0.001, 1)
	tn.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tn.Send(ctx, Notification{Title: "x"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send = %v, want deadline exceeded while throttled", err)
	}
}

func TestTelegramNotifier_DisabledWithoutChat(t *testing.T) {
	tn := NewTelegramNotifier(config.TelegramConfig{Enabled: true, BotToken: "t"})
	if tn.IsEnabled() {
		t.Error("telegram enabled without chat id")
	}
	if err := tn.Send(context.Background(), Notification{}); err != nil {
		t.Errorf("disabled Send = %v, want nil", err)
	}
}
