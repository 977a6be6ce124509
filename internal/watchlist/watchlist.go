// Package watchlist holds the user-maintained set of tracked symbols and
// their alert rules.
//
// Mutations are serialized by a mutex and publish a new immutable State;
// readers load the current State atomically and never take the lock, so the
// polling goroutine can read while the interactive goroutine writes.
package watchlist

import (
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	apperrors "stock-visualizer/internal/errors"
	"stock-visualizer/internal/models"
)

// State is an immutable view of the watchlist at one instant.
type State struct {
	symbols []models.Symbol
	rules   map[models.Symbol]models.AlertRule
}

// Symbols returns the tracked symbols in insertion order.
func (s *State) Symbols() []models.Symbol {
	out := make([]models.Symbol, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// Rules returns a copy of the alert rules.
func (s *State) Rules() map[models.Symbol]models.AlertRule {
	out := make(map[models.Symbol]models.AlertRule, len(s.rules))
	for k, v := range s.rules {
		out[k] = v
	}
	return out
}

// Len returns the number of tracked symbols.
func (s *State) Len() int { return len(s.symbols) }

func (s *State) contains(symbol models.Symbol) bool {
	for _, sym := range s.symbols {
		if sym == symbol {
			return true
		}
	}
	return false
}

// Watchlist is the TrackedSet. The zero value is not usable; use New.
type Watchlist struct {
	mu    sync.Mutex
	state atomic.Pointer[State]
}

// New creates an empty watchlist.
func New() *Watchlist {
	w := &Watchlist{}
	w.state.Store(&State{rules: map[models.Symbol]models.AlertRule{}})
	return w
}

// Snapshot returns the current state; symbols and rules are captured together.
func (w *Watchlist) Snapshot() *State {
	return w.state.Load()
}

// Symbols returns the tracked symbols in insertion order.
func (w *Watchlist) Symbols() []models.Symbol {
	return w.state.Load().Symbols()
}

// Rules returns a copy of the current alert rules.
func (w *Watchlist) Rules() map[models.Symbol]models.AlertRule {
	return w.state.Load().Rules()
}

// Len returns the number of tracked symbols.
func (w *Watchlist) Len() int {
	return w.state.Load().Len()
}

// Contains reports whether raw (after normalization) is tracked.
func (w *Watchlist) Contains(raw string) bool {
	sym, err := models.NormalizeSymbol(raw)
	if err != nil {
		return false
	}
	return w.state.Load().contains(sym)
}

// Rule returns the alert rule for a symbol, if any.
func (w *Watchlist) Rule(raw string) (models.AlertRule, bool) {
	sym, err := models.NormalizeSymbol(raw)
	if err != nil {
		return models.AlertRule{}, false
	}
	r, ok := w.state.Load().rules[sym]
	return r, ok
}

// AddSymbol normalizes raw and appends it. Empty or duplicate input is
// rejected without changing state.
func (w *Watchlist) AddSymbol(raw string) (models.Symbol, error) {
	sym, err := models.NormalizeSymbol(raw)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cur := w.state.Load()
	if cur.contains(sym) {
		return "", apperrors.NewValidationError("symbol", raw, apperrors.ErrDuplicateSymbol)
	}

	next := &State{
		symbols: append(cur.Symbols(), sym),
		rules:   cur.Rules(),
	}
	w.state.Store(next)
	return sym, nil
}

// RemoveSymbol removes the symbol and its alert rule. Absent symbols are a no-op.
// It reports whether anything was removed.
func (w *Watchlist) RemoveSymbol(raw string) bool {
	sym, err := models.NormalizeSymbol(raw)
	if err != nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cur := w.state.Load()
	if !cur.contains(sym) {
		return false
	}

	symbols := make([]models.Symbol, 0, len(cur.symbols)-1)
	for _, s := range cur.symbols {
		if s != sym {
			symbols = append(symbols, s)
		}
	}
	rules := cur.Rules()
	delete(rules, sym)

	w.state.Store(&State{symbols: symbols, rules: rules})
	return true
}

// SetAlert inserts or replaces the rule for a tracked symbol.
func (w *Watchlist) SetAlert(raw string, price float64, direction models.Direction) (models.AlertRule, error) {
	sym, err := models.NormalizeSymbol(raw)
	if err != nil {
		return models.AlertRule{}, err
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return models.AlertRule{}, apperrors.NewValidationError("price", price, apperrors.ErrInvalidPrice)
	}
	if !direction.Valid() {
		return models.AlertRule{}, apperrors.NewValidationError("direction", direction, apperrors.ErrInvalidDirection)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cur := w.state.Load()
	if !cur.contains(sym) {
		return models.AlertRule{}, apperrors.NewValidationError("symbol", raw, apperrors.ErrNotTracked)
	}

	rule := models.AlertRule{Symbol: sym, Threshold: price, Direction: direction}
	rules := cur.Rules()
	rules[sym] = rule

	w.state.Store(&State{symbols: cur.Symbols(), rules: rules})
	return rule, nil
}

// SetAlertFromInput parses user-entered price and direction text, then sets the rule.
func (w *Watchlist) SetAlertFromInput(raw, rawPrice, rawDirection string) (models.AlertRule, error) {
	price, err := ParsePrice(rawPrice)
	if err != nil {
		return models.AlertRule{}, err
	}
	direction, err := models.ParseDirection(rawDirection)
	if err != nil {
		return models.AlertRule{}, err
	}
	return w.SetAlert(raw, price, direction)
}

// ClearAlert removes the rule for a symbol. It reports whether a rule existed.
func (w *Watchlist) ClearAlert(raw string) bool {
	sym, err := models.NormalizeSymbol(raw)
	if err != nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cur := w.state.Load()
	if _, ok := cur.rules[sym]; !ok {
		return false
	}
	rules := cur.Rules()
	delete(rules, sym)

	w.state.Store(&State{symbols: cur.Symbols(), rules: rules})
	return true
}

// ParsePrice parses a user-entered price exactly and requires it to be positive.
func ParsePrice(raw string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.NewValidationError("price", raw, apperrors.ErrInvalidPrice)
	}
	if !d.IsPositive() {
		return 0, apperrors.NewValidationError("price", raw, apperrors.ErrInvalidPrice)
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) {
		return 0, apperrors.NewValidationError("price", raw, apperrors.ErrInvalidPrice)
	}
	return f, nil
}
