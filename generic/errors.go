/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return these and wrap them with additional context.

ERROR CATEGORIES:
  1. Validation errors - Rejected input (bad interval, empty withdrawal)
  2. Balance errors - Withdrawal larger than the bank can cover
  3. Invariant violations - Ledger state that only a bug can produce
  4. Lookup errors - Unknown session, deduction or user

USAGE:
  if errors.Is(err, generic.ErrInsufficientBalance) {
      var ib *generic.InsufficientBalanceError
      errors.As(err, &ib) // ib.Shortfall is what the user is missing
  }

SEE ALSO:
  - worktime/allocator.go: Returns ValidationError and InsufficientBalanceError
  - worktime/bank.go: Returns InvariantViolationError
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input is rejected before any computation.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a withdrawal exceeds the bank.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvariantViolation is returned when computed ledger totals are in a
	// state no sequence of valid operations produces.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	UserID    UserID
	Available Amount
	Requested Amount
	Shortfall Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %v, requested %v, shortfall %v",
		e.Available.Value, e.Requested.Value, e.Shortfall.Value)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// InvariantViolationError reports a pool that went negative beyond its
// tolerance.
type InvariantViolationError struct {
	Pool      string
	Balance   Amount
	Tolerance Amount
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %s balance %v below -%v",
		e.Pool, e.Balance.Value, e.Tolerance.Value)
}

func (e *InvariantViolationError) Unwrap() error {
	return ErrInvariantViolation
}

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
