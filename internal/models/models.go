// Package models provides domain models for the stock visualizer.
package models

import (
	"sort"
	"time"
)

// QuotePoint is one historical closing-price sample.
type QuotePoint struct {
	Date  time.Time
	Close float64
}

// StockSnapshot is the fetched state of one symbol. It is immutable once
// constructed; accessors hand out copies.
type StockSnapshot struct {
	symbol       Symbol
	history      []QuotePoint
	currentPrice float64
	fetchedAt    time.Time
}

// NewStockSnapshot copies history and orders it chronologically.
func NewStockSnapshot(symbol Symbol, history []QuotePoint, currentPrice float64, fetchedAt time.Time) StockSnapshot {
	h := make([]QuotePoint, len(history))
	copy(h, history)
	sort.SliceStable(h, func(i, j int) bool { return h[i].Date.Before(h[j].Date) })
	return StockSnapshot{
		symbol:       symbol,
		history:      h,
		currentPrice: currentPrice,
		fetchedAt:    fetchedAt,
	}
}

// Symbol returns the snapshot's symbol.
func (s StockSnapshot) Symbol() Symbol { return s.symbol }

// CurrentPrice returns the resolved current price.
func (s StockSnapshot) CurrentPrice() float64 { return s.currentPrice }

// FetchedAt returns when the data was fetched.
func (s StockSnapshot) FetchedAt() time.Time { return s.fetchedAt }

// HistoryLen returns the number of historical points.
func (s StockSnapshot) HistoryLen() int { return len(s.history) }

// History returns a copy of the chronological history.
func (s StockSnapshot) History() []QuotePoint {
	h := make([]QuotePoint, len(s.history))
	copy(h, s.history)
	return h
}

// Closes returns the closing prices in chronological order.
func (s StockSnapshot) Closes() []float64 {
	out := make([]float64, len(s.history))
	for i, p := range s.history {
		out[i] = p.Close
	}
	return out
}

// MarketSnapshot is the full published state of one poll cycle. It only
// contains symbols whose fetch succeeded in that cycle.
type MarketSnapshot struct {
	stocks      map[Symbol]StockSnapshot
	order       []Symbol
	publishedAt time.Time
	cycle       uint64
}

// EmptyMarketSnapshot is the state before the first successful cycle.
func EmptyMarketSnapshot() MarketSnapshot {
	return MarketSnapshot{stocks: map[Symbol]StockSnapshot{}}
}

// NewMarketSnapshot builds a snapshot from stocks, keeping their order.
// Later duplicates of a symbol replace earlier ones.
func NewMarketSnapshot(stocks []StockSnapshot, publishedAt time.Time, cycle uint64) MarketSnapshot {
	m := make(map[Symbol]StockSnapshot, len(stocks))
	order := make([]Symbol, 0, len(stocks))
	for _, s := range stocks {
		if _, dup := m[s.Symbol()]; !dup {
			order = append(order, s.Symbol())
		}
		m[s.Symbol()] = s
	}
	return MarketSnapshot{
		stocks:      m,
		order:       order,
		publishedAt: publishedAt,
		cycle:       cycle,
	}
}

// Get returns the stock snapshot for symbol.
func (m MarketSnapshot) Get(symbol Symbol) (StockSnapshot, bool) {
	s, ok := m.stocks[symbol]
	return s, ok
}

// Price returns the current price for symbol, if present.
func (m MarketSnapshot) Price(symbol Symbol) (float64, bool) {
	s, ok := m.stocks[symbol]
	if !ok {
		return 0, false
	}
	return s.CurrentPrice(), true
}

// Symbols returns the covered symbols in tracked order.
func (m MarketSnapshot) Symbols() []Symbol {
	out := make([]Symbol, len(m.order))
	copy(out, m.order)
	return out
}

// Stocks returns the entries in tracked order.
func (m MarketSnapshot) Stocks() []StockSnapshot {
	out := make([]StockSnapshot, 0, len(m.order))
	for _, sym := range m.order {
		out = append(out, m.stocks[sym])
	}
	return out
}

// Len returns the number of symbols in the snapshot.
func (m MarketSnapshot) Len() int { return len(m.order) }

// IsEmpty reports whether the snapshot has no entries.
func (m MarketSnapshot) IsEmpty() bool { return len(m.order) == 0 }

// PublishedAt returns the publication time.
func (m MarketSnapshot) PublishedAt() time.Time { return m.publishedAt }

// Cycle returns the poll cycle number that produced the snapshot.
func (m MarketSnapshot) Cycle() uint64 { return m.cycle }
