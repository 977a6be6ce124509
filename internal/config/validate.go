package config

import (
	"strconv"
	"strings"

	apperrors "stock-visualizer/internal/errors"
)

const (
	// DefaultPollIntervalSeconds is the default time between poll cycles.
	DefaultPollIntervalSeconds = 60
	// MinPollIntervalSeconds is the floor that protects the data provider.
	MinPollIntervalSeconds = 10
	// DefaultHistoryDays is the default lookback window in trading days.
	DefaultHistoryDays = 30
)

// ValidatePollInterval rejects intervals below the floor.
func ValidatePollInterval(seconds int) error {
	if seconds < MinPollIntervalSeconds {
		return apperrors.NewConfigError("poll.interval_seconds", seconds, apperrors.ErrIntervalTooShort)
	}
	return nil
}

// ParsePollInterval parses and validates user-entered interval text.
func ParsePollInterval(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.NewConfigError("poll.interval_seconds", raw, apperrors.ErrInvalidNumber)
	}
	if err := ValidatePollInterval(n); err != nil {
		return 0, err
	}
	return n, nil
}

// ValidateHistoryDays rejects non-positive lookback windows.
func ValidateHistoryDays(days int) error {
	if days <= 0 {
		return apperrors.NewConfigError("poll.history_days", days, apperrors.ErrInvalidHistoryWindow)
	}
	return nil
}

// ParseHistoryDays parses and validates user-entered lookback text.
func ParseHistoryDays(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.NewConfigError("poll.history_days", raw, apperrors.ErrInvalidNumber)
	}
	if err := ValidateHistoryDays(n); err != nil {
		return 0, err
	}
	return n, nil
}
