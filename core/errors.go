/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - Required field missing or malformed
  2. Conflict errors   - Uniqueness or state-machine violations
  3. NotFound errors   - Referenced record does not exist
  4. Consistency errors- Ledger no longer matches approved requests
  5. Storage errors    - Persistence layer failed; not the caller's fault

PROPAGATION POLICY:
  Validation/Conflict/NotFound are caller-correctable and must surface with
  enough detail for the caller to decide. Storage errors are logged and
  surfaced as generic failures; the engine never retries.

USAGE:
  if errors.Is(err, core.ErrConflict) {
      // map to 409
  }

SEE ALSO:
  - api/handlers.go: Maps these to HTTP status codes
*/
package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when caller input is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when an operation would violate a uniqueness
	// invariant or an attendance state-machine guard.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned when a referenced record, user, or balance
	// row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConsistency is returned when the balance ledger's used total no
	// longer matches the sum of approved requests.
	ErrConsistency = errors.New("ledger inconsistent")

	// ErrStorage is returned when the persistence layer failed.
	ErrStorage = errors.New("storage failure")

	// ErrForbidden is returned when the caller's role does not permit the
	// operation (e.g. a Manager reaching outside their department).
	ErrForbidden = errors.New("forbidden")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a malformed or missing field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError describes a state-machine or uniqueness violation.
type ConflictError struct {
	Op     string // operation that was refused, e.g. "punch"
	Detail string // caller-facing explanation
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "attendance record", "leave request", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConsistencyError reports a ledger/request mismatch detected by the audit.
type ConsistencyError struct {
	UserID      string
	LeaveTypeID string
	Year        int
	Recorded    decimal.Decimal // used as stored on the balance row
	Computed    decimal.Decimal // sum of approved request days
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("leave balance for user %s type %s year %d is inconsistent: recorded used %s, approved requests sum to %s",
		e.UserID, e.LeaveTypeID, e.Year, e.Recorded.String(), e.Computed.String())
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }

// StorageError wraps a persistence failure so callers see a stable kind
// while the underlying cause stays available for logging.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage failure: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorage }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is caller-correctable and should
// not be retried automatically.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
