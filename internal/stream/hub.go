// Package stream distributes engine output to display consumers.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"stock-visualizer/internal/logging"
	"stock-visualizer/internal/models"
)

// HubConfig holds configuration for the Hub.
type HubConfig struct {
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
	// SlowConsumerDropThreshold is the number of consecutive drops before logging.
	SlowConsumerDropThreshold int
	// TriggerSendTimeout is how long a triggered alert waits for room in a
	// full buffer before it is dropped. Zero drops immediately.
	TriggerSendTimeout time.Duration
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SubscriberBufferSize:      32,
		SlowConsumerDropThreshold: 5,
		TriggerSendTimeout:        500 * time.Millisecond,
	}
}

// EventKind identifies which engine callback produced an Event.
type EventKind int

const (
	SnapshotUpdated EventKind = iota
	AlertsUpdated
	AlertTriggered
)

func (k EventKind) String() string {
	switch k {
	case SnapshotUpdated:
		return "snapshot"
	case AlertsUpdated:
		return "alerts"
	case AlertTriggered:
		return "alert_triggered"
	default:
		return "unknown"
	}
}

// Event is one unit of engine output. Only the field matching Kind is set.
type Event struct {
	Kind     EventKind
	Snapshot models.MarketSnapshot
	Statuses []models.AlertStatus
	Alert    models.AlertEvent
	At       time.Time
}

// Consumer receives engine output on its own goroutine.
type Consumer interface {
	Name() string
	OnSnapshotUpdated(snapshot models.MarketSnapshot)
	OnAlertsUpdated(statuses []models.AlertStatus)
	OnAlertTriggered(event models.AlertEvent)
}

// Subscriber is a buffered channel fed by the hub.
type Subscriber struct {
	ID        string
	Channel   chan Event
	CreatedAt time.Time

	dropped     atomic.Uint64
	consecutive atomic.Int64
}

// Dropped returns how many events were skipped because the buffer was full.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// Hub fans engine output out to consumers and channel subscribers. It
// implements the engine's DisplayAdapter. A full subscriber buffer drops the
// event for that subscriber only; triggered alerts first wait up to
// TriggerSendTimeout, or until the hub's context is done.
type Hub struct {
	config HubConfig
	logger zerolog.Logger

	mu          sync.RWMutex
	subscribers []*Subscriber
	consumers   map[*Subscriber]Consumer
	started     bool
	ctx         context.Context
	wg          sync.WaitGroup

	eventsReceived  atomic.Uint64
	eventsDelivered atomic.Uint64
	eventsDropped   atomic.Uint64
}

// NewHub creates a hub with default configuration.
func NewHub(logger zerolog.Logger) *Hub {
	return NewHubWithConfig(DefaultHubConfig(), logger)
}

// NewHubWithConfig creates a hub with custom configuration.
func NewHubWithConfig(config HubConfig, logger zerolog.Logger) *Hub {
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = DefaultHubConfig().SubscriberBufferSize
	}
	return &Hub{
		config:    config,
		logger:    logging.WithComponent(logger, "hub"),
		consumers: make(map[*Subscriber]Consumer),
		ctx:       context.Background(),
	}
}

// Start begins delivery to registered consumers. Consumers registered after
// Start are started immediately.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}
	h.started = true
	h.ctx = ctx

	for sub, c := range h.consumers {
		h.runConsumer(sub, c)
	}
	return nil
}

// Stop closes every subscriber channel and waits for consumer goroutines
// to drain what they already received.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return
	}
	h.started = false
	for _, sub := range h.subscribers {
		close(sub.Channel)
	}
	h.subscribers = nil
	h.consumers = make(map[*Subscriber]Consumer)
	h.mu.Unlock()

	h.wg.Wait()
}

// IsStarted returns whether the hub is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// Subscribe adds a channel subscriber. The channel is closed by Unsubscribe or Stop.
func (h *Hub) Subscribe(id string) *Subscriber {
	sub := &Subscriber{
		ID:        id,
		Channel:   make(chan Event, h.config.SubscriberBufferSize),
		CreatedAt: time.Now(),
	}
	h.mu.Lock()
	h.subscribers = append(h.subscribers, sub)
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, s := range h.subscribers {
		if s == sub {
			close(s.Channel)
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			delete(h.consumers, s)
			return
		}
	}
}

// RegisterConsumer attaches a consumer. Each consumer runs on its own goroutine.
func (h *Hub) RegisterConsumer(c Consumer) {
	sub := h.Subscribe(c.Name())

	h.mu.Lock()
	defer h.mu.Unlock()
	h.consumers[sub] = c
	if h.started {
		h.runConsumer(sub, c)
	}
}

// runConsumer must be called with h.mu held.
func (h *Hub) runConsumer(sub *Subscriber, c Consumer) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for ev := range sub.Channel {
			h.dispatch(c, ev)
		}
	}()
}

func (h *Hub) dispatch(c Consumer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Str("consumer", c.Name()).Interface("panic", r).Msg("Consumer panicked")
		}
	}()

	switch ev.Kind {
	case SnapshotUpdated:
		c.OnSnapshotUpdated(ev.Snapshot)
	case AlertsUpdated:
		c.OnAlertsUpdated(ev.Statuses)
	case AlertTriggered:
		c.OnAlertTriggered(ev.Alert)
	}
}

// OnSnapshotUpdated publishes a snapshot event.
func (h *Hub) OnSnapshotUpdated(snapshot models.MarketSnapshot) {
	h.Publish(Event{Kind: SnapshotUpdated, Snapshot: snapshot, At: time.Now()})
}

// OnAlertsUpdated publishes the evaluated alert statuses.
func (h *Hub) OnAlertsUpdated(statuses []models.AlertStatus) {
	h.Publish(Event{Kind: AlertsUpdated, Statuses: statuses, At: time.Now()})
}

// OnAlertTriggered publishes one triggered alert.
func (h *Hub) OnAlertTriggered(event models.AlertEvent) {
	h.Publish(Event{Kind: AlertTriggered, Alert: event, At: time.Now()})
}

// Publish sends ev to every subscriber.
func (h *Hub) Publish(ev Event) {
	h.eventsReceived.Add(1)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		if h.send(sub, ev) {
			sub.consecutive.Store(0)
			h.eventsDelivered.Add(1)
		} else {
			sub.dropped.Add(1)
			h.eventsDropped.Add(1)
			n := sub.consecutive.Add(1)
			if h.config.SlowConsumerDropThreshold > 0 && n == int64(h.config.SlowConsumerDropThreshold) {
				h.logger.Warn().
					Str("subscriber", sub.ID).
					Uint64("dropped", sub.Dropped()).
					Msg("Slow consumer, dropping events")
			}
		}
	}
}

// send must be called with h.mu held.
func (h *Hub) send(sub *Subscriber, ev Event) bool {
	select {
	case sub.Channel <- ev:
		return true
	default:
	}
	if ev.Kind != AlertTriggered || h.config.TriggerSendTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(h.config.TriggerSendTimeout)
	defer timer.Stop()
	select {
	case sub.Channel <- ev:
		return true
	case <-timer.C:
	case <-h.ctx.Done():
	}
	return false
}

// HubMetrics contains hub delivery counters.
type HubMetrics struct {
	EventsReceived  uint64
	EventsDelivered uint64
	EventsDropped   uint64
	Subscribers     int
}

// GetMetrics returns hub metrics.
func (h *Hub) GetMetrics() HubMetrics {
	h.mu.RLock()
	n := len(h.subscribers)
	h.mu.RUnlock()

	return HubMetrics{
		EventsReceived:  h.eventsReceived.Load(),
		EventsDelivered: h.eventsDelivered.Load(),
		EventsDropped:   h.eventsDropped.Load(),
		Subscribers:     n,
	}
}

// ConsumerFuncs adapts plain functions to Consumer. Nil functions are skipped.
type ConsumerFuncs struct {
	ConsumerName string
	Snapshot     func(models.MarketSnapshot)
	Alerts       func([]models.AlertStatus)
	Triggered    func(models.AlertEvent)
}

// Name implements Consumer.
func (c ConsumerFuncs) Name() string { return c.ConsumerName }

// OnSnapshotUpdated implements Consumer.
func (c ConsumerFuncs) OnSnapshotUpdated(s models.MarketSnapshot) {
	if c.Snapshot != nil {
		c.Snapshot(s)
	}
}

// OnAlertsUpdated implements Consumer.
func (c ConsumerFuncs) OnAlertsUpdated(s []models.AlertStatus) {
	if c.Alerts != nil {
		c.Alerts(s)
	}
}

// OnAlertTriggered implements Consumer.
func (c ConsumerFuncs) OnAlertTriggered(e models.AlertEvent) {
	if c.Triggered != nil {
		c.Triggered(e)
	}
}
