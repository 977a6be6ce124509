// Package alerts evaluates threshold rules against a published snapshot.
// Everything here is side-effect free.
package alerts

import (
	"fmt"
	"sort"

	"stock-visualizer/internal/models"
)

// Evaluate computes the status of every rule against snapshot. Rules whose
// symbol has no snapshot entry are reported with HasPrice=false and never
// trigger. Output is ordered by symbol.
func Evaluate(snapshot models.MarketSnapshot, rules map[models.Symbol]models.AlertRule) []models.AlertStatus {
	out := make([]models.AlertStatus, 0, len(rules))
	for _, rule := range rules {
		status := models.AlertStatus{Rule: rule}
		if price, ok := snapshot.Price(rule.Symbol); ok {
			status.CurrentPrice = price
			status.HasPrice = true
			status.Triggered = rule.Matches(price)
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rule.Symbol < out[j].Rule.Symbol })
	return out
}

// Triggered filters statuses down to those whose condition currently holds.
func Triggered(statuses []models.AlertStatus) []models.AlertStatus {
	var out []models.AlertStatus
	for _, s := range statuses {
		if s.Triggered {
			out = append(out, s)
		}
	}
	return out
}

// Title returns the notification headline for a triggered status.
func Title(s models.AlertStatus) string {
	return fmt.Sprintf("Alert Triggered: %s", s.Rule.Symbol)
}

// Describe returns the notification body for a triggered status.
func Describe(s models.AlertStatus) string {
	return fmt.Sprintf("%s price is now %s %.2f\nCurrent price: %.2f",
		s.Rule.Symbol, s.Rule.Direction, s.Rule.Threshold, s.CurrentPrice)
}
