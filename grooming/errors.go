/*
errors.go - Centralized error types for the grooming core

PURPOSE:
  All rejection types in one place for consistency and discoverability.
  The api layer maps these onto HTTP status codes; the core never renders
  user-facing messages itself.

ERROR CATEGORIES:
  1. Lookup errors - referenced record does not exist
  2. Concurrency errors - optimistic version check failed
  3. Validation errors - status/action tag outside the enumerated set
  4. Business-rule errors - facade-level restrictions
  5. Balance errors - partial payment would exceed the remaining balance

FAIL-CLOSED CONTRACT:
  Every rejection happens before any write. Status and version move
  together or not at all; a rejected partial payment is never inserted;
  the audit log only records successful mutations.

USAGE:
  Callers match with errors.Is, or errors.As for the structured variants:

    if errors.Is(err, grooming.ErrVersionConflict) {
        // tell the operator to refresh and retry
    }
*/
package grooming

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced appointment, transaction,
	// or partial payment does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when the optimistic-concurrency check
	// fails. The caller must re-read current state before retrying; the
	// core never auto-retries or auto-merges.
	ErrVersionConflict = errors.New("version conflict: record changed elsewhere")

	// ErrInvalidStatus is returned when a status tag is outside the
	// enumerated set. Rejected before any mutation.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidAction is returned when a quick-action tag is unknown.
	ErrInvalidAction = errors.New("invalid action")

	// ErrBusinessRule is returned when a facade-level restriction blocks
	// the transition (e.g. mark_paid on a non-finished appointment).
	ErrBusinessRule = errors.New("business rule violation")

	// ErrExceedsRemainingBalance is returned when a partial payment would
	// push the sum of installments past the transaction total beyond the
	// settlement tolerance.
	ErrExceedsRemainingBalance = errors.New("payment exceeds remaining balance")

	// ErrUnauthorized is returned by the injected Authorizer predicate.
	ErrUnauthorized = errors.New("actor not authorized")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// VersionConflictError reports the version mismatch detail.
type VersionConflictError struct {
	AppointmentID AppointmentID
	Expected      int64
	Actual        int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on appointment %d: expected %d, stored %d",
		e.AppointmentID, e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// ExceedsBalanceError carries the computed figures so the caller can show
// the operator exactly how much remains payable.
type ExceedsBalanceError struct {
	TransactionID TransactionID
	Total         int64 // transaction value, minor units
	Paid          int64 // sum of existing partials, minor units
	Remaining     int64 // Total - Paid, minor units
	Attempted     int64 // rejected payment value, minor units
}

func (e *ExceedsBalanceError) Error() string {
	return fmt.Sprintf("payment of %d exceeds remaining balance %d on transaction %d (total %d, paid %d)",
		e.Attempted, e.Remaining, e.TransactionID, e.Total, e.Paid)
}

func (e *ExceedsBalanceError) Unwrap() error { return ErrExceedsRemainingBalance }

// BusinessRuleError names the rule that blocked the mutation.
type BusinessRuleError struct {
	Rule   string // e.g. "subscription_no_finished_paid", "mark_paid_requires_finished"
	Detail string
}

func (e *BusinessRuleError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("business rule violation: %s", e.Rule)
	}
	return fmt.Sprintf("business rule violation: %s (%s)", e.Rule, e.Detail)
}

func (e *BusinessRuleError) Unwrap() error { return ErrBusinessRule }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is an optimistic-concurrency rejection.
// Conflicts may succeed after the caller re-reads current state.
func IsConflict(err error) bool { return errors.Is(err, ErrVersionConflict) }

// IsClientError reports whether err is due to invalid operator input rather
// than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrBusinessRule) ||
		errors.Is(err, ErrExceedsRemainingBalance)
}
