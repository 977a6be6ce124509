// Package store persists fetched market data.
package store

import (
	"context"
	"time"

	"stock-visualizer/internal/models"
)

// QuoteArchive stores daily closes and observed prices per symbol. Only
// market data is archived; the watchlist and alert rules are session state.
type QuoteArchive interface {
	SaveQuotes(ctx context.Context, symbol models.Symbol, points []models.QuotePoint) error
	SaveSnapshot(ctx context.Context, snapshot models.MarketSnapshot) error
	GetQuotes(ctx context.Context, symbol models.Symbol, from, to time.Time) ([]models.QuotePoint, error)
	RecentQuotes(ctx context.Context, symbol models.Symbol, limit int) ([]models.QuotePoint, error)
	LastPrice(ctx context.Context, symbol models.Symbol) (PriceObservation, bool, error)
	Symbols(ctx context.Context) ([]models.Symbol, error)
	Close() error
}

// PriceObservation is one current price seen by a poll cycle.
type PriceObservation struct {
	Symbol    models.Symbol
	Price     float64
	Cycle     uint64
	FetchedAt time.Time
}

// dayKey normalizes a quote date so one close is kept per symbol per day.
func dayKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
