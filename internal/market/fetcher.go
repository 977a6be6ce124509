// Package market fetches price history and current quotes per symbol.
package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "stock-visualizer/internal/errors"
	"stock-visualizer/internal/logging"
	"stock-visualizer/internal/models"
	"stock-visualizer/internal/resilience"
)

// Provider is the remote market-data source.
type Provider interface {
	// History returns daily closes between from and to, in any order.
	History(ctx context.Context, symbol string, from, to time.Time) ([]models.QuotePoint, error)
	// LatestPrice returns the most recent same-day trading price. ok is false
	// when the provider has no quote for today.
	LatestPrice(ctx context.Context, symbol string) (price float64, ok bool, err error)
}

// Fetcher converts provider calls into StockSnapshots. Provider failures
// surface only as a false ok; they never propagate to the caller.
type Fetcher struct {
	provider Provider
	timeout  time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	breakerCfg resilience.CircuitBreakerConfig
	mu         sync.Mutex
	breakers   map[models.Symbol]*resilience.CircuitBreaker
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithTimeout bounds each Fetch call. Zero disables the bound.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.timeout = d }
}

// WithClock overrides the clock used for fetch timestamps and windows.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

// WithBreaker gives each symbol its own circuit breaker around history
// calls. While a symbol's breaker is open its fetches fail without calling
// the provider; other symbols are unaffected.
func WithBreaker(cfg resilience.CircuitBreakerConfig) FetcherOption {
	return func(f *Fetcher) { f.breakerCfg = cfg }
}

// NewFetcher creates a Fetcher over provider.
func NewFetcher(provider Provider, logger zerolog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		provider: provider,
		logger:   logging.WithComponent(logger, "fetcher"),
		now:      time.Now,
		breakers: make(map[models.Symbol]*resilience.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the snapshot for symbol over the last lookbackDays trading
// days. ok is false when no data is available this cycle.
func (f *Fetcher) Fetch(ctx context.Context, symbol models.Symbol, lookbackDays int) (snap models.StockSnapshot, ok bool) {
	snap, err := f.fetch(ctx, symbol, lookbackDays)
	if err != nil {
		logging.LogFetchFailure(f.logger, symbol.String(), err)
		return models.StockSnapshot{}, false
	}
	return snap, true
}

func (f *Fetcher) fetch(ctx context.Context, symbol models.Symbol, lookbackDays int) (snap models.StockSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewDataError("quote", symbol.String(), fmt.Sprintf("provider panic: %v", r), apperrors.ErrNotAvailable)
		}
	}()

	if lookbackDays <= 0 {
		return models.StockSnapshot{}, apperrors.NewDataError("history", symbol.String(), "invalid lookback", apperrors.ErrInvalidHistoryWindow)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	now := f.now()
	from := now.AddDate(0, 0, -CalendarSpan(lookbackDays))

	// One attempt per cycle; the next cycle is the retry.
	history, err := resilience.ExecuteWithResult(f.breaker(symbol), ctx, func(ctx context.Context) ([]models.QuotePoint, error) {
		return f.provider.History(ctx, symbol.String(), from, now)
	})
	if err != nil {
		return models.StockSnapshot{}, apperrors.NewDataError("history", symbol.String(), "provider error", fmt.Errorf("%w: %v", apperrors.ErrNotAvailable, err))
	}

	// The constructor orders history; trim after ordering.
	ordered := models.NewStockSnapshot(symbol, history, 0, now).History()
	if len(ordered) > lookbackDays {
		ordered = ordered[len(ordered)-lookbackDays:]
	}

	price, ok, err := f.provider.LatestPrice(ctx, symbol.String())
	if err != nil {
		f.logger.Debug().Str("symbol", symbol.String()).Err(err).Msg("Latest quote unavailable, using last close")
		ok = false
	}
	if !ok || price <= 0 {
		if len(ordered) == 0 {
			return models.StockSnapshot{}, apperrors.NewDataError("quote", symbol.String(), "empty response", apperrors.ErrNotAvailable)
		}
		price = ordered[len(ordered)-1].Close
	}

	return models.NewStockSnapshot(symbol, ordered, price, now), nil
}

// breaker returns symbol's breaker, or nil when breakers are disabled.
func (f *Fetcher) breaker(symbol models.Symbol) *resilience.CircuitBreaker {
	if f.breakerCfg.FailureThreshold <= 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	cb, ok := f.breakers[symbol]
	if !ok {
		cb = resilience.NewCircuitBreaker("provider:"+symbol.String(), f.breakerCfg)
		f.breakers[symbol] = cb
	}
	return cb
}

// BreakerState reports the state of symbol's breaker. Symbols never
// fetched, or fetchers without breakers, report closed.
func (f *Fetcher) BreakerState(symbol models.Symbol) resilience.CircuitState {
	f.mu.Lock()
	cb, ok := f.breakers[symbol]
	f.mu.Unlock()
	if !ok {
		return resilience.CircuitClosed
	}
	return cb.State()
}

// CalendarSpan returns a calendar-day span wide enough to contain the given
// number of trading days, allowing for weekends and market holidays.
func CalendarSpan(tradingDays int) int {
	return tradingDays*7/5 + 10
}
