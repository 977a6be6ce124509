package feed

import (
	"time"

	"stock-visualizer/internal/models"
)

// Message types sent to feed clients.
const (
	TypeSnapshot       = "snapshot"
	TypeAlerts         = "alerts"
	TypeAlertTriggered = "alert_triggered"
)

// Message is the JSON envelope written to clients.
type Message struct {
	Type        string         `json:"type"`
	Cycle       uint64         `json:"cycle,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Stocks      []StockMessage `json:"stocks,omitempty"`
	Alerts      []AlertMessage `json:"alerts,omitempty"`
	Alert       *AlertMessage  `json:"alert,omitempty"`
}

// StockMessage is one snapshot entry.
type StockMessage struct {
	Symbol    string         `json:"symbol"`
	Price     float64        `json:"price"`
	FetchedAt time.Time      `json:"fetched_at"`
	History   []PointMessage `json:"history"`
}

// PointMessage is one daily close.
type PointMessage struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// AlertMessage is one evaluated alert rule.
type AlertMessage struct {
	ID        string  `json:"id,omitempty"`
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"`
	Threshold float64 `json:"threshold"`
	Price     float64 `json:"price,omitempty"`
	HasPrice  bool    `json:"has_price"`
	Status    string  `json:"status"`
}

func snapshotMessage(s models.MarketSnapshot) Message {
	published := s.PublishedAt()
	msg := Message{Type: TypeSnapshot, Cycle: s.Cycle(), PublishedAt: &published}
	for _, stock := range s.Stocks() {
		history := stock.History()
		points := make([]PointMessage, len(history))
		for i, p := range history {
			points[i] = PointMessage{Date: p.Date.Format("2006-01-02"), Close: p.Close}
		}
		msg.Stocks = append(msg.Stocks, StockMessage{
			Symbol:    stock.Symbol().String(),
			Price:     stock.CurrentPrice(),
			FetchedAt: stock.FetchedAt(),
			History:   points,
		})
	}
	return msg
}

func alertMessage(s models.AlertStatus) AlertMessage {
	return AlertMessage{
		Symbol:    s.Rule.Symbol.String(),
		Direction: s.Rule.Direction.String(),
		Threshold: s.Rule.Threshold,
		Price:     s.CurrentPrice,
		HasPrice:  s.HasPrice,
		Status:    s.Label(),
	}
}

func alertsMessage(statuses []models.AlertStatus) Message {
	msg := Message{Type: TypeAlerts, Alerts: make([]AlertMessage, 0, len(statuses))}
	for _, s := range statuses {
		msg.Alerts = append(msg.Alerts, alertMessage(s))
	}
	return msg
}

func triggeredMessage(ev models.AlertEvent) Message {
	a := alertMessage(ev.Status)
	a.ID = ev.ID
	at := ev.At
	return Message{Type: TypeAlertTriggered, Cycle: ev.Cycle, PublishedAt: &at, Alert: &a}
}
