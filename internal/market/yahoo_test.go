package market

import (
	"context"
	"errors"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

type sliceIter struct {
	bars []*finance.ChartBar
	pos  int
	err  error
}

func (s *sliceIter) Next() bool {
	if s.pos >= len(s.bars) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceIter) Bar() *finance.ChartBar { return s.bars[s.pos-1] }
func (s *sliceIter) Err() error             { return s.err }

type singleQuote struct {
	q    *finance.Quote
	err  error
	done bool
}

func (s *singleQuote) Next() bool {
	if s.done || s.err != nil || s.q == nil {
		return false
	}
	s.done = true
	return true
}

func (s *singleQuote) Quote() *finance.Quote { return s.q }
func (s *singleQuote) Err() error            { return s.err }

func TestYahooProvider_History(t *testing.T) {
	day := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	var gotParams *chart.Params
	y := &YahooProvider{
		getChart: func(p *chart.Params) barIterator {
			gotParams = p
			return &sliceIter{bars: []*finance.ChartBar{
				{Close: decimal.NewFromFloat(101.123456), Timestamp: int(day.Unix())},
				{Close: decimal.Zero, Timestamp: int(day.Unix()) + 86400},
				nil,
			}}
		},
		now: time.Now,
	}

	points, err := y.History(context.Background(), "AAPL", day.AddDate(0, 0, -5), day)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("len(points) = %d, want 1 (zero and nil bars dropped)", len(points))
	}
	if points[0].Close != 101.1235 {
		t.Errorf("Close = %v, want 101.1235", points[0].Close)
	}
	if !points[0].Date.Equal(day) {
		t.Errorf("Date = %v, want %v", points[0].Date, day)
	}
	if gotParams.Symbol != "AAPL" || gotParams.Context == nil {
		t.Errorf("params = %+v, want symbol and context set", gotParams)
	}
}

func TestYahooProvider_HistoryError(t *testing.T) {
	y := &YahooProvider{
		getChart: func(p *chart.Params) barIterator {
			return &sliceIter{err: errors.New("404 not found")}
		},
	}
	if _, err := y.History(context.Background(), "ZZZZ", time.Now(), time.Now()); err == nil {
		t.Error("History returned nil error for failing iterator")
	}
}

func TestYahooProvider_LatestPrice(t *testing.T) {
	now := time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		q      *finance.Quote
		err    error
		wantOK bool
	}{
		{"today", &finance.Quote{RegularMarketPrice: 150, RegularMarketTime: int(now.Add(-time.Hour).Unix())}, nil, true},
		{"yesterday", &finance.Quote{RegularMarketPrice: 150, RegularMarketTime: int(now.AddDate(0, 0, -1).Unix())}, nil, false},
		{"nil quote", nil, nil, false},
		{"zero price", &finance.Quote{}, nil, false},
		{"error", nil, errors.New("network"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y := &YahooProvider{
				getQuote: func(p *quote.Params) quoteIterator {
					if len(p.Symbols) != 1 || p.Symbols[0] != "AAPL" || p.Context == nil {
						t.Errorf("params = %+v, want AAPL with context", p)
					}
					return &singleQuote{q: tt.q, err: tt.err}
				},
				now:      func() time.Time { return now },
			}
			_, ok, err := y.LatestPrice(context.Background(), "AAPL")
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if (err != nil) != (tt.err != nil) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestYahooProvider_LatestPriceObservesDeadline(t *testing.T) {
	y := &YahooProvider{
		getQuote: func(p *quote.Params) quoteIterator {
			ctx := *p.Context
			select {
			case <-ctx.Done():
				return &singleQuote{err: ctx.Err()}
			case <-time.After(5 * time.Second):
				return &singleQuote{q: &finance.Quote{RegularMarketPrice: 150}}
			}
		},
		now: time.Now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok, err := y.LatestPrice(ctx, "AAPL")
	if ok || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("LatestPrice = %v, %v, want deadline exceeded", ok, err)
	}
	if time.Since(start) > time.Second {
		t.Error("quote request outlived the fetch deadline")
	}
}
