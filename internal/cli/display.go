package cli

import (
	"bytes"
	"fmt"
	"io"

	"stock-visualizer/internal/models"
)

// Display renders engine output to the terminal. It is registered on the
// stream hub, so rendering happens on the hub's consumer goroutine.
type Display struct {
	out        io.Writer
	color      bool
	chartWidth int
	timeFormat string
}

// NewDisplay creates a terminal display writing to out.
func NewDisplay(out io.Writer, colorEnabled bool, chartWidth int, timeFormat string) *Display {
	if chartWidth <= 0 {
		chartWidth = 40
	}
	return &Display{
		out:        out,
		color:      colorEnabled,
		chartWidth: chartWidth,
		timeFormat: timeFormat,
	}
}

// Name identifies the display on the hub.
func (d *Display) Name() string { return "display" }

// OnSnapshotUpdated redraws the price table and charts.
func (d *Display) OnSnapshotUpdated(snapshot models.MarketSnapshot) {
	d.flush(func(o *Output) {
		d.renderPrices(o, snapshot)
		d.renderCharts(o, snapshot)
	})
}

// OnAlertsUpdated redraws the alerts table.
func (d *Display) OnAlertsUpdated(statuses []models.AlertStatus) {
	d.flush(func(o *Output) { d.renderAlerts(o, statuses) })
}

// OnAlertTriggered is handled by the notifier.
func (d *Display) OnAlertTriggered(models.AlertEvent) {}

// RenderPrices writes the price table for snapshot.
func (d *Display) RenderPrices(snapshot models.MarketSnapshot) {
	d.flush(func(o *Output) { d.renderPrices(o, snapshot) })
}

// RenderCharts writes one sparkline per symbol.
func (d *Display) RenderCharts(snapshot models.MarketSnapshot) {
	d.flush(func(o *Output) { d.renderCharts(o, snapshot) })
}

// RenderAlerts writes the alerts table.
func (d *Display) RenderAlerts(statuses []models.AlertStatus) {
	d.flush(func(o *Output) { d.renderAlerts(o, statuses) })
}

// flush renders into a buffer and writes it in one call so a redraw is
// never split by session output.
func (d *Display) flush(render func(o *Output)) {
	var buf bytes.Buffer
	render(NewWriterOutput(&buf, d.color))
	_, _ = d.out.Write(buf.Bytes())
}

func (d *Display) renderPrices(o *Output, snapshot models.MarketSnapshot) {
	o.Println()
	o.Bold("Stock Prices")
	if snapshot.IsEmpty() {
		o.Dim("No price data")
		return
	}
	table := NewTable(o, "Symbol", "Price", "Last Updated")
	for _, stock := range snapshot.Stocks() {
		table.AddRow(
			o.Cyan(stock.Symbol().String()),
			FormatPrice(stock.CurrentPrice()),
			FormatTime(stock.FetchedAt(), d.timeFormat),
		)
	}
	table.Render()
}

func (d *Display) renderCharts(o *Output, snapshot models.MarketSnapshot) {
	stocks := snapshot.Stocks()
	if len(stocks) == 0 {
		return
	}
	o.Println()
	o.Bold("Price History")
	for _, stock := range stocks {
		closes := stock.Closes()
		if len(closes) == 0 {
			o.Printf("%s  %s\n", PadRight(stock.Symbol().String(), 6), o.Faint("no history"))
			continue
		}
		lo, hi := MinMax(closes)
		o.Printf("%s  %s  %s\n",
			PadRight(stock.Symbol().String(), 6),
			Sparkline(closes, d.chartWidth),
			o.Faint(fmt.Sprintf("min %s  max %s  (%d days)", FormatPrice(lo), FormatPrice(hi), len(closes))),
		)
	}
}

func (d *Display) renderAlerts(o *Output, statuses []models.AlertStatus) {
	o.Println()
	o.Bold("Price Alerts")
	if len(statuses) == 0 {
		o.Dim("No active alerts")
		return
	}
	table := NewTable(o, "Symbol", "Condition", "Target", "Current", "Status")
	for _, s := range statuses {
		current := "-"
		if s.HasPrice {
			current = FormatPrice(s.CurrentPrice)
		}
		table.AddRow(
			o.Cyan(s.Rule.Symbol.String()),
			s.Rule.Direction.String(),
			FormatPrice(s.Rule.Threshold),
			current,
			d.statusLabel(o, s),
		)
	}
	table.Render()
}

func (d *Display) statusLabel(o *Output, s models.AlertStatus) string {
	label := s.Label()
	switch {
	case !s.HasPrice:
		return o.Faint(label)
	case s.Triggered:
		return o.Red(label)
	default:
		return o.Green(label)
	}
}
