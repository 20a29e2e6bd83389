// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrStateCorrupt    = errors.New("state file corrupt")
	ErrStateIO         = errors.New("state io failure")
	ErrLockTimeout     = errors.New("state lock acquisition timed out")
	ErrMarketClosed    = errors.New("market is closed")
	ErrNoData          = errors.New("no data available")
	ErrProviderFailed  = errors.New("all quote providers failed")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrSymbolMalformed = errors.New("malformed symbol")
)

// ConfigError represents a trigger-configuration validation error.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("config error: %s (%v): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

// NewMalformedField creates a ConfigError for a field of the wrong shape.
func NewMalformedField(field string, value interface{}) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: "malformed field"}
}

// NewNonPositiveLevel creates a ConfigError for a price level that is <= 0
// or not finite.
func NewNonPositiveLevel(field string, value float64) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: "level must be a finite positive number"}
}

// StateError represents an error from the trigger state store.
type StateError struct {
	Op   string
	Path string
	Err  error
}

func (e *StateError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("state error [%s] %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("state error [%s]: %v", e.Op, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// NewStateError creates a new StateError.
func NewStateError(op, path string, err error) *StateError {
	return &StateError{Op: op, Path: path, Err: err}
}

// ProviderError represents an error from a quote provider.
type ProviderError struct {
	Provider string
	Symbol   string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error [%s] %s: %s: %v", e.Provider, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("provider error [%s] %s: %s", e.Provider, e.Symbol, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, symbol, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Symbol: symbol, Message: message, Err: err}
}

// DataGapError marks an incomplete bar series. It is a warning, not a hard
// failure: report composition continues with a partial report.
type DataGapError struct {
	Symbol  string
	Message string
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap %s: %s", e.Symbol, e.Message)
}

// NewDataGapError creates a new DataGapError.
func NewDataGapError(symbol, message string) *DataGapError {
	return &DataGapError{Symbol: symbol, Message: message}
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
