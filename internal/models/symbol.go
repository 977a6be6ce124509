package models

import (
	"strings"

	apperrors "stock-visualizer/internal/errors"
)

// Symbol is a normalized ticker identifier: trimmed and upper-cased.
type Symbol string

// NormalizeSymbol trims and upper-cases raw user input.
func NormalizeSymbol(raw string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", apperrors.NewValidationError("symbol", raw, apperrors.ErrEmptySymbol)
	}
	return Symbol(s), nil
}

// String implements fmt.Stringer.
func (s Symbol) String() string {
	return string(s)
}

// SymbolsToStrings converts a symbol slice for display or provider calls.
func SymbolsToStrings(symbols []Symbol) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = string(s)
	}
	return out
}
