package cache

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is.
var (
	// ErrNotFound reports a miss: the key doesn't exist or has expired.
	// Read paths treat it as a fall-through, never as a failure.
	ErrNotFound = errors.New("cache: key not found")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("cache: connection closed")

	// ErrInvalidTTL rejects negative TTLs.
	ErrInvalidTTL = errors.New("cache: invalid TTL")

	// ErrPatternDeleteUnsupported is returned by DeletePattern on stores
	// configured without the capability. Best-effort sweeps downgrade it to
	// a logged no-op.
	ErrPatternDeleteUnsupported = errors.New("cache: pattern delete not supported")
)

// ConfigError reports an invalid store configuration. Fail-fast: it aborts
// startup rather than being retried.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cache configuration error: %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("cache configuration error: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps a validation failure for the named config field.
func NewConfigError(field, message string, err error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Err: err}
}

// ConnectionError reports a failure to reach the store. Possibly transient.
type ConnectionError struct {
	Op      string
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cache connection error: %s failed for %s: %v", e.Op, e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError wraps a dial or ping failure against the given address.
func NewConnectionError(op, address string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Address: address, Err: err}
}

// OperationError reports a failed store operation on a key or pattern.
type OperationError struct {
	Op  string
	Key string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("cache operation error: %s failed for key %q: %v", e.Op, e.Key, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError wraps a store failure for the given operation and key.
func NewOperationError(op, key string, err error) *OperationError {
	return &OperationError{Op: op, Key: key, Err: err}
}
