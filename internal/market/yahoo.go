package market

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"stock-visualizer/internal/models"
)

// YahooProvider reads Yahoo Finance through piquette/finance-go.
type YahooProvider struct {
	getQuote func(params *quote.Params) quoteIterator
	getChart func(params *chart.Params) barIterator
	now      func() time.Time
}

// barIterator is the subset of *chart.Iter the provider consumes.
type barIterator interface {
	Next() bool
	Bar() *finance.ChartBar
	Err() error
}

// quoteIterator is the subset of *quote.Iter the provider consumes.
type quoteIterator interface {
	Next() bool
	Quote() *finance.Quote
	Err() error
}

// NewYahooProvider creates a provider backed by the public Yahoo endpoints.
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{
		getQuote: func(p *quote.Params) quoteIterator { return quote.ListP(p) },
		getChart: func(p *chart.Params) barIterator { return chart.Get(p) },
		now:      time.Now,
	}
}

// History returns daily closing prices between from and to.
func (y *YahooProvider) History(ctx context.Context, symbol string, from, to time.Time) ([]models.QuotePoint, error) {
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&from),
		End:      datetime.New(&to),
		Interval: datetime.OneDay,
	}
	params.Context = &ctx

	iter := y.getChart(params)
	var points []models.QuotePoint
	for iter.Next() {
		if p, ok := barToPoint(iter.Bar()); ok {
			points = append(points, p)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("chart %s: %w", symbol, err)
	}
	return points, nil
}

// LatestPrice returns the regular-market price when it belongs to today's session.
func (y *YahooProvider) LatestPrice(ctx context.Context, symbol string) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	params := &quote.Params{Symbols: []string{symbol}}
	params.Context = &ctx

	iter := y.getQuote(params)
	if !iter.Next() {
		if err := iter.Err(); err != nil {
			return 0, false, fmt.Errorf("quote %s: %w", symbol, err)
		}
		return 0, false, nil
	}
	q := iter.Quote()
	if q == nil || q.RegularMarketPrice <= 0 {
		return 0, false, nil
	}
	if q.RegularMarketTime > 0 && !sameDay(time.Unix(int64(q.RegularMarketTime), 0), y.now()) {
		return 0, false, nil
	}
	return q.RegularMarketPrice, true, nil
}

func barToPoint(bar *finance.ChartBar) (models.QuotePoint, bool) {
	if bar == nil || bar.Close.LessThanOrEqual(decimal.Zero) {
		return models.QuotePoint{}, false
	}
	closePrice, _ := bar.Close.Round(4).Float64()
	return models.QuotePoint{
		Date:  time.Unix(int64(bar.Timestamp), 0),
		Close: closePrice,
	}, true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
