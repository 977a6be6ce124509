// Package engine runs the periodic fetch cycle: it captures the watchlist,
// fetches every tracked symbol, publishes an immutable market snapshot and
// evaluates alert rules against it.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stock-visualizer/internal/alerts"
	"stock-visualizer/internal/config"
	apperrors "stock-visualizer/internal/errors"
	"stock-visualizer/internal/logging"
	"stock-visualizer/internal/models"
	"stock-visualizer/internal/watchlist"
)

// DefaultShutdownTimeout bounds Stop when the caller's context has no deadline.
const DefaultShutdownTimeout = time.Second

// DisplayAdapter receives engine output. Calls are made from the engine
// goroutine, in order, once per cycle; implementations must not block.
type DisplayAdapter interface {
	OnSnapshotUpdated(snapshot models.MarketSnapshot)
	OnAlertsUpdated(statuses []models.AlertStatus)
	OnAlertTriggered(event models.AlertEvent)
}

// SnapshotFetcher fetches one symbol. ok is false when no data is available.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, symbol models.Symbol, lookbackDays int) (models.StockSnapshot, bool)
}

// Tracked is the read side of the watchlist used at cycle start.
type Tracked interface {
	Snapshot() *watchlist.State
}

// State is the engine's lifecycle phase.
type State int32

const (
	Idle State = iota
	Fetching
)

func (s State) String() string {
	if s == Fetching {
		return "fetching"
	}
	return "idle"
}

// Config holds engine configuration.
type Config struct {
	IntervalSeconds int
	HistoryDays     int
	// Concurrency caps parallel fetches within a cycle. 1 fetches sequentially.
	Concurrency     int
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		IntervalSeconds: config.DefaultPollIntervalSeconds,
		HistoryDays:     config.DefaultHistoryDays,
		Concurrency:     1,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Stats describes recent engine activity.
type Stats struct {
	Cycles        uint64
	LastCycleAt   time.Time
	LastDuration  time.Duration
	LastFetched   int
	LastFailed    int
	AlertsEmitted uint64
}

// Engine is the polling engine.
type Engine struct {
	fetcher SnapshotFetcher
	tracked Tracked
	display DisplayAdapter
	logger  zerolog.Logger

	concurrency     int
	shutdownTimeout time.Duration

	interval    atomic.Int64 // seconds
	historyDays atomic.Int64
	state       atomic.Int32
	snapshot    atomic.Pointer[models.MarketSnapshot]
	cycles      atomic.Uint64

	refresh chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	statsMu sync.RWMutex
	stats   Stats

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
	newID func() string
}

// New creates an engine. Invalid interval or history values in cfg are
// replaced by their defaults.
func New(cfg Config, fetcher SnapshotFetcher, tracked Tracked, display DisplayAdapter, logger zerolog.Logger) *Engine {
	if config.ValidatePollInterval(cfg.IntervalSeconds) != nil {
		cfg.IntervalSeconds = config.DefaultPollIntervalSeconds
	}
	if config.ValidateHistoryDays(cfg.HistoryDays) != nil {
		cfg.HistoryDays = config.DefaultHistoryDays
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if display == nil {
		display = nopDisplay{}
	}

	e := &Engine{
		fetcher:         fetcher,
		tracked:         tracked,
		display:         display,
		logger:          logging.WithComponent(logger, "engine"),
		concurrency:     cfg.Concurrency,
		shutdownTimeout: cfg.ShutdownTimeout,
		refresh:         make(chan struct{}, 1),
		now:             time.Now,
		after:           time.After,
		newID:           uuid.NewString,
	}
	e.interval.Store(int64(cfg.IntervalSeconds))
	e.historyDays.Store(int64(cfg.HistoryDays))
	empty := models.EmptyMarketSnapshot()
	e.snapshot.Store(&empty)
	return e
}

// Start launches the polling goroutine. The first cycle runs immediately.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return apperrors.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true

	go e.run(runCtx, e.done)

	e.logger.Info().
		Int64("interval_seconds", e.interval.Load()).
		Int64("history_days", e.historyDays.Load()).
		Int("concurrency", e.concurrency).
		Msg("Polling engine started")
	return nil
}

// Stop cancels the polling goroutine and waits for it to exit. Without a
// deadline on ctx the wait is bounded by the shutdown timeout. After
// ErrShutdownTimeout the engine counts as running until the goroutine
// finally exits; Start fails with ErrAlreadyRunning until then.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.cancel()
	done := e.done
	e.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.shutdownTimeout)
		defer cancel()
	}

	select {
	case <-done:
		e.logger.Info().Msg("Polling engine stopped")
		return nil
	case <-ctx.Done():
		e.logger.Warn().Dur("timeout", e.shutdownTimeout).Msg("Polling engine did not stop in time")
		return apperrors.ErrShutdownTimeout
	}
}

// Refresh requests an immediate cycle. Requests made while one is already
// pending are coalesced.
func (e *Engine) Refresh() {
	select {
	case e.refresh <- struct{}{}:
	default:
	}
}

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// CurrentSnapshot returns the most recently published market snapshot.
func (e *Engine) CurrentSnapshot() models.MarketSnapshot {
	return *e.snapshot.Load()
}

// CurrentAlerts evaluates the current rules against the current snapshot.
func (e *Engine) CurrentAlerts() []models.AlertStatus {
	return alerts.Evaluate(e.CurrentSnapshot(), e.tracked.Snapshot().Rules())
}

// PollInterval returns the configured time between cycles.
func (e *Engine) PollInterval() time.Duration {
	return time.Duration(e.interval.Load()) * time.Second
}

// HistoryDays returns the configured lookback window.
func (e *Engine) HistoryDays() int {
	return int(e.historyDays.Load())
}

// SetPollInterval changes the interval from the next wait on. Values below
// the floor are rejected and the prior value is kept.
func (e *Engine) SetPollInterval(seconds int) error {
	if err := config.ValidatePollInterval(seconds); err != nil {
		return err
	}
	e.interval.Store(int64(seconds))
	e.logger.Info().Int("interval_seconds", seconds).Msg("Poll interval updated")
	return nil
}

// SetPollIntervalFromInput parses user text and applies it.
func (e *Engine) SetPollIntervalFromInput(raw string) error {
	seconds, err := config.ParsePollInterval(raw)
	if err != nil {
		return err
	}
	return e.SetPollInterval(seconds)
}

// SetHistoryDays changes the lookback window from the next cycle on.
func (e *Engine) SetHistoryDays(days int) error {
	if err := config.ValidateHistoryDays(days); err != nil {
		return err
	}
	e.historyDays.Store(int64(days))
	e.logger.Info().Int("history_days", days).Msg("History window updated")
	return nil
}

// SetHistoryDaysFromInput parses user text and applies it.
func (e *Engine) SetHistoryDaysFromInput(raw string) error {
	days, err := config.ParseHistoryDays(raw)
	if err != nil {
		return err
	}
	return e.SetHistoryDays(days)
}

// Stats returns a copy of the engine statistics.
func (e *Engine) Stats() Stats {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.stats
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer func() {
		e.mu.Lock()
		if e.done == done {
			e.running = false
		}
		e.mu.Unlock()
		close(done)
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		e.runCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-e.after(e.PollInterval()):
		case <-e.refresh:
		}
	}
}

func (e *Engine) runCycle(ctx context.Context) {
	tracked := e.tracked.Snapshot()
	symbols := tracked.Symbols()
	if len(symbols) == 0 {
		e.logger.Debug().Msg("No symbols tracked, skipping cycle")
		return
	}

	e.state.Store(int32(Fetching))
	defer e.state.Store(int32(Idle))

	start := e.now()
	days := e.HistoryDays()

	results := make([]models.StockSnapshot, len(symbols))
	ok := make([]bool, len(symbols))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i], ok[i] = e.safeFetch(ctx, sym, days)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		e.logger.Debug().Msg("Cycle interrupted by shutdown, not publishing")
		return
	}

	stocks := make([]models.StockSnapshot, 0, len(symbols))
	for i := range results {
		if ok[i] {
			stocks = append(stocks, results[i])
		}
	}

	cycle := e.cycles.Add(1)
	publishedAt := e.now()
	snap := models.NewMarketSnapshot(stocks, publishedAt, cycle)
	e.snapshot.Store(&snap)

	statuses := alerts.Evaluate(snap, tracked.Rules())
	triggered := alerts.Triggered(statuses)

	e.notify(func() { e.display.OnSnapshotUpdated(snap) })
	e.notify(func() { e.display.OnAlertsUpdated(statuses) })
	for _, s := range triggered {
		event := models.AlertEvent{
			ID:     e.newID(),
			Status: s,
			Cycle:  cycle,
			At:     publishedAt,
		}
		logging.LogAlert(e.logger, event.ID, s.Rule.Symbol.String(), s.Rule.Direction.String(), s.Rule.Threshold, s.CurrentPrice)
		e.notify(func() { e.display.OnAlertTriggered(event) })
	}

	duration := e.now().Sub(start)
	failed := len(symbols) - len(stocks)

	e.statsMu.Lock()
	e.stats.Cycles = cycle
	e.stats.LastCycleAt = publishedAt
	e.stats.LastDuration = duration
	e.stats.LastFetched = len(stocks)
	e.stats.LastFailed = failed
	e.stats.AlertsEmitted += uint64(len(triggered))
	e.statsMu.Unlock()

	logging.LogCycle(e.logger, cycle, len(stocks), failed, duration)
}

// safeFetch isolates one symbol's failure, including a panicking fetcher,
// from the rest of the cycle.
func (e *Engine) safeFetch(ctx context.Context, sym models.Symbol, days int) (snap models.StockSnapshot, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("symbol", sym.String()).Interface("panic", r).Msg("Fetcher panicked")
			snap, ok = models.StockSnapshot{}, false
		}
	}()
	return e.fetcher.Fetch(ctx, sym, days)
}

func (e *Engine) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("Display adapter panicked")
		}
	}()
	fn()
}

type nopDisplay struct{}

func (nopDisplay) OnSnapshotUpdated(models.MarketSnapshot) {}
func (nopDisplay) OnAlertsUpdated([]models.AlertStatus) {}
func (nopDisplay) OnAlertTriggered(models.AlertEvent) {}
