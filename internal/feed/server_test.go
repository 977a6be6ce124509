package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stock-visualizer/internal/models"
)

func testSnapshot() models.MarketSnapshot {
	day := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	s := models.NewStockSnapshot("AAPL", []models.QuotePoint{{Date: day, Close: 171.25}}, 172, day)
	return models.NewMarketSnapshot([]models.StockSnapshot{s}, day, 7)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return msg
}

func TestServer_SendsLatestSnapshotOnConnect(t *testing.T) {
	s := NewServer(DefaultServerConfig(), zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.OnSnapshotUpdated(testSnapshot())
	conn := dial(t, srv)

	msg := readMessage(t, conn)
	if msg.Type != TypeSnapshot || msg.Cycle != 7 {
		t.Fatalf("message = %+v, want snapshot cycle 7", msg)
	}
	if len(msg.Stocks) != 1 || msg.Stocks[0].Symbol != "AAPL" || msg.Stocks[0].Price != 172 {
		t.Errorf("stocks = %+v", msg.Stocks)
	}
	if len(msg.Stocks[0].History) != 1 || msg.Stocks[0].History[0].Date != "2024-03-14" {
		t.Errorf("history = %+v", msg.Stocks[0].History)
	}
}

func TestServer_BroadcastsAlerts(t *testing.T) {
	s := NewServer(DefaultServerConfig(), zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.OnSnapshotUpdated(testSnapshot())
	conn := dial(t, srv)
	readMessage(t, conn) // registered once the cached snapshot arrives

	status := models.AlertStatus{
		Rule:         models.AlertRule{Symbol: "AAPL", Threshold: 150, Direction: models.Above},
		CurrentPrice: 172,
		HasPrice:     true,
		Triggered:    true,
	}
	s.OnAlertsUpdated([]models.AlertStatus{status})
	s.OnAlertTriggered(models.AlertEvent{ID: "evt-9", Status: status, Cycle: 7, At: time.Now()})

	alerts := readMessage(t, conn)
	if alerts.Type != TypeAlerts || len(alerts.Alerts) != 1 || alerts.Alerts[0].Status != "Triggered" {
		t.Errorf("alerts message = %+v", alerts)
	}

	trig := readMessage(t, conn)
	if trig.Type != TypeAlertTriggered || trig.Alert == nil || trig.Alert.ID != "evt-9" || trig.Alert.Direction != "Above" {
		t.Errorf("triggered message = %+v", trig)
	}
}

func TestServer_ClientDisconnectIsRemoved(t *testing.T) {
	s := NewServer(DefaultServerConfig(), zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.OnSnapshotUpdated(testSnapshot())
	conn := dial(t, srv)
	readMessage(t, conn)
	if s.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", s.ClientCount())
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.ClientCount() != 0 {
		t.Error("client not removed after disconnect")
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Addr = "127.0.0.1:0"
	s := NewServer(cfg, zerolog.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("healthz request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
