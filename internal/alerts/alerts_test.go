package alerts

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stock-visualizer/internal/models"
)

func snapshotWith(prices map[models.Symbol]float64) models.MarketSnapshot {
	var stocks []models.StockSnapshot
	for sym, p := range prices {
		stocks = append(stocks, models.NewStockSnapshot(sym, nil, p, time.Now()))
	}
	return models.NewMarketSnapshot(stocks, time.Now(), 1)
}

func TestEvaluate_Thresholds(t *testing.T) {
	snap := snapshotWith(map[models.Symbol]float64{"AAPL": 150})

	tests := []struct {
		name      string
		threshold float64
		direction models.Direction
		want      bool
	}{
		{"above below price", 140, models.Above, true},
		{"above over price", 160, models.Above, false},
		{"above equal price", 150, models.Above, false},
		{"below over price", 160, models.Below, true},
		{"below under price", 140, models.Below, false},
		{"below equal price", 150, models.Below, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := map[models.Symbol]models.AlertRule{
				"AAPL": {Symbol: "AAPL", Threshold: tt.threshold, Direction: tt.direction},
			}
			got := Evaluate(snap, rules)
			if len(got) != 1 {
				t.Fatalf("len = %d, want 1", len(got))
			}
			if got[0].Triggered != tt.want {
				t.Errorf("Triggered = %v, want %v", got[0].Triggered, tt.want)
			}
			if !got[0].HasPrice || got[0].CurrentPrice != 150 {
				t.Errorf("price = %v (has=%v), want 150", got[0].CurrentPrice, got[0].HasPrice)
			}
		})
	}
}

func TestEvaluate_MissingSnapshotEntry(t *testing.T) {
	snap := snapshotWith(map[models.Symbol]float64{"AAPL": 150})
	rules := map[models.Symbol]models.AlertRule{
		"MSFT": {Symbol: "MSFT", Threshold: 1, Direction: models.Above},
	}

	got := Evaluate(snap, rules)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].HasPrice || got[0].Triggered {
		t.Errorf("status = %+v, want no price and not triggered", got[0])
	}
	if got[0].Label() != "No data" {
		t.Errorf("Label() = %q, want No data", got[0].Label())
	}
}

func TestEvaluate_SortedAndFiltered(t *testing.T) {
	snap := snapshotWith(map[models.Symbol]float64{"AAPL": 150, "MSFT": 300, "GOOG": 100})
	rules := map[models.Symbol]models.AlertRule{
		"MSFT": {Symbol: "MSFT", Threshold: 250, Direction: models.Above},
		"AAPL": {Symbol: "AAPL", Threshold: 200, Direction: models.Above},
		"GOOG": {Symbol: "GOOG", Threshold: 120, Direction: models.Below},
	}

	got := Evaluate(snap, rules)
	order := []models.Symbol{"AAPL", "GOOG", "MSFT"}
	for i, s := range got {
		if s.Rule.Symbol != order[i] {
			t.Fatalf("order = %v, want %v", got, order)
		}
	}

	trig := Triggered(got)
	if len(trig) != 2 || trig[0].Rule.Symbol != "GOOG" || trig[1].Rule.Symbol != "MSFT" {
		t.Errorf("Triggered() = %+v, want GOOG and MSFT", trig)
	}
}

func TestEvaluate_EmptyInputs(t *testing.T) {
	if got := Evaluate(models.EmptyMarketSnapshot(), nil); len(got) != 0 {
		t.Errorf("Evaluate(empty, nil) = %v, want empty", got)
	}
}

func TestDescribe(t *testing.T) {
	s := models.AlertStatus{
		Rule:         models.AlertRule{Symbol: "AAPL", Threshold: 150, Direction: models.Above},
		CurrentPrice: 151.2,
		HasPrice:     true,
		Triggered:    true,
	}
	want := "AAPL price is now Above 150.00\nCurrent price: 151.20"
	if got := Describe(s); got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}

// Property: a triggered Above rule always has price strictly greater than
// threshold, a triggered Below rule strictly less, and equality never triggers.
func TestProperty_StrictInequality(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	priceGen := gen.Float64Range(0.01, 10000)
	dirGen := gen.OneConstOf(models.Above, models.Below)

	properties.Property("trigger iff strict inequality holds", prop.ForAll(
		func(price, threshold float64, dir models.Direction) bool {
			snap := snapshotWith(map[models.Symbol]float64{"X": price})
			rules := map[models.Symbol]models.AlertRule{
				"X": {Symbol: "X", Threshold: threshold, Direction: dir},
			}
			got := Evaluate(snap, rules)[0].Triggered

			switch dir {
			case models.Above:
				return got == (price > threshold)
			default:
				return got == (price < threshold)
			}
		},
		priceGen, priceGen, dirGen,
	))

	properties.Property("equal price never triggers", prop.ForAll(
		func(price float64, dir models.Direction) bool {
			snap := snapshotWith(map[models.Symbol]float64{"X": price})
			rules := map[models.Symbol]models.AlertRule{
				"X": {Symbol: "X", Threshold: price, Direction: dir},
			}
			return !Evaluate(snap, rules)[0].Triggered
		},
		priceGen, dirGen,
	))

	properties.TestingRun(t)
}
