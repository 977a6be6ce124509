package models

import (
	"strings"
	"time"

	apperrors "stock-visualizer/internal/errors"
)

// Direction is the side of the threshold an alert watches.
type Direction int

const (
	// Above triggers when price is strictly greater than the threshold.
	Above Direction = iota + 1
	// Below triggers when price is strictly less than the threshold.
	Below
)

// String returns the display name of the direction.
func (d Direction) String() string {
	switch d {
	case Above:
		return "Above"
	case Below:
		return "Below"
	default:
		return "Unknown"
	}
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Above || d == Below
}

// ParseDirection parses "above"/"below" (any case) or ">"/"<".
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "above", ">":
		return Above, nil
	case "below", "<":
		return Below, nil
	default:
		return 0, apperrors.NewValidationError("direction", raw, apperrors.ErrInvalidDirection)
	}
}

// AlertRule is a threshold condition attached to one tracked symbol.
type AlertRule struct {
	Symbol    Symbol
	Threshold float64
	Direction Direction
}

// Matches reports whether price satisfies the rule. Equality never matches.
func (r AlertRule) Matches(price float64) bool {
	switch r.Direction {
	case Above:
		return price > r.Threshold
	case Below:
		return price < r.Threshold
	default:
		return false
	}
}

// AlertStatus is the derived state of one rule against the current snapshot.
type AlertStatus struct {
	Rule         AlertRule
	CurrentPrice float64
	HasPrice     bool
	Triggered    bool
}

// Label returns the status column text.
func (s AlertStatus) Label() string {
	switch {
	case !s.HasPrice:
		return "No data"
	case s.Triggered:
		return "Triggered"
	default:
		return "Watching"
	}
}

// AlertEvent is a one-shot notification raised for a triggered rule.
type AlertEvent struct {
	ID     string
	Status AlertStatus
	Cycle  uint64
	At     time.Time
}
