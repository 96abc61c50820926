package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicate is reported by ledger stores when an insert collides with
// an existing fingerprint. It is a normal reconciliation outcome counted
// in duplicatesSkipped, not a failure.
var ErrDuplicate = errors.New("duplicate transaction")

// ConfigurationError reports missing or unusable configuration, typically
// absent provider credentials. Fatal: surfaced immediately, never retried.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("configuration: %s: %s", e.Setting, e.Reason)
	}
	return fmt.Sprintf("configuration: %s is required", e.Setting)
}

// UpstreamError reports a non-2xx response from an external provider.
// Recoverable via the extraction fallback cascade; during sync it marks
// the connection error or expired.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.Status, e.Body)
}

// AuthError is a 401/403-class provider failure. The sync coordinator
// responds with at most one token refresh per call chain.
type AuthError struct {
	Provider string
	Status   int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed (status %d)", e.Provider, e.Status)
}

// RateLimitedError is a 429-class provider failure.
type RateLimitedError struct {
	Provider string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// ValidationError reports a bad row, column, date or amount. Row-scoped
// validation failures skip the row; file-scoped ones (unresolvable date or
// amount column) reject the whole file before any row is processed.
type ValidationError struct {
	Scope  string // "row" or "file"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation (%s): %s", e.Scope, e.Reason)
}

// NewRowError builds a row-scoped validation error.
func NewRowError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Scope: "row", Reason: fmt.Sprintf(format, args...)}
}

// NewFileError builds a file-scoped validation error.
func NewFileError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Scope: "file", Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a ledger write failure for one candidate. The
// reconciliation batch records it and continues with the next candidate.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
