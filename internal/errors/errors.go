// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	// Input validation (interactive context)
	ErrInputValidation  = errors.New("input validation failed")
	ErrEmptySymbol      = errors.New("symbol is empty")
	ErrDuplicateSymbol  = errors.New("symbol already tracked")
	ErrNotTracked       = errors.New("symbol is not tracked")
	ErrInvalidPrice     = errors.New("please enter a valid price")
	ErrInvalidDirection = errors.New("condition must be Above or Below")

	// Configuration
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrIntervalTooShort     = errors.New("interval must be at least 10 seconds")
	ErrInvalidNumber        = errors.New("please enter a valid number")
	ErrInvalidHistoryWindow = errors.New("historical days must be greater than zero")

	// Market data
	ErrNotAvailable = errors.New("market data not available")
	ErrNoData       = errors.New("no stock data to export")
	ErrNoHistory    = errors.New("no historical data available to export")

	// Engine lifecycle
	ErrAlreadyRunning  = errors.New("engine already running")
	ErrShutdownTimeout = errors.New("engine did not stop within shutdown timeout")
	ErrDatabaseError   = errors.New("database error")
)

// ValidationError represents a rejected user input.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation error: %s (%v): %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap exposes both the specific cause and ErrInputValidation.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInputValidation}
	}
	return []error{e.Err, ErrInputValidation}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, err error) *ValidationError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
		Err:     err,
	}
}

// ConfigError represents a rejected configuration change.
type ConfigError struct {
	Key   string
	Value interface{}
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s (%v): %v", e.Key, e.Value, e.Err)
}

// Unwrap exposes both the specific cause and ErrConfigInvalid.
func (e *ConfigError) Unwrap() []error {
	return []error{e.Err, ErrConfigInvalid}
}

// NewConfigError creates a new ConfigError.
func NewConfigError(key string, value interface{}, err error) *ConfigError {
	return &ConfigError{
		Key:   key,
		Value: value,
		Err:   err,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Reason returns the most specific user-facing message for err.
func Reason(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Err != nil {
		return ve.Err.Error()
	}
	var ce *ConfigError
	if errors.As(err, &ce) && ce.Err != nil {
		return ce.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
