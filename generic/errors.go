/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure returned by the shift engine or the leave workflow belongs
  to exactly one of five kinds, each with a sentinel for errors.Is and a
  structured type carrying what a UI needs to render the message.

ERROR KINDS:
  ErrValidation   - malformed or missing input (fix the request)
  ErrNotFound     - referenced record absent
  ErrForbidden    - role/ownership/organization mismatch, or a time window
                    that is not open (window errors may succeed later)
  ErrPrecondition - record is in the wrong state for the transition
  ErrConflict     - lost a concurrent update, or a commit would break a
                    balance invariant

USAGE:
  if errors.Is(err, generic.ErrConflict) { ... }

  var fe *generic.ForbiddenError
  if errors.As(err, &fe) && fe.Window != nil {
      fmt.Println("opens at", fe.Window.Opens)
  }

SEE ALSO:
  - api/errors.go: Maps kinds to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrPrecondition = errors.New("precondition failed")
	ErrConflict     = errors.New("conflict")

	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInsufficientBalance is returned when consumption exceeds available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	// Stores return it; engines translate it into a ConflictError naming the record.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a referenced record that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Window is a closed time interval [Opens, Closes].
type Window struct {
	Opens  time.Time
	Closes time.Time
}

// Contains reports whether t lies inside the window, both ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Opens) && !t.After(w.Closes)
}

// ForbiddenError reports an authorization failure or a closed time window.
// Window and RetryAfter are set only for time-window failures.
type ForbiddenError struct {
	Reason     string
	Window     *Window
	RetryAfter time.Duration
}

func (e *ForbiddenError) Error() string { return "forbidden: " + e.Reason }

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// Retryable is true when waiting alone can make the same call succeed.
func (e *ForbiddenError) Retryable() bool { return e.RetryAfter > 0 }

// PreconditionError reports a transition attempted from the wrong state.
type PreconditionError struct {
	Resource string
	Current  string
	Required string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s is %s, must be %s", e.Resource, e.Current, e.Required)
}

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// ConflictError reports a lost concurrent update or an invariant a commit would break.
type ConflictError struct {
	Resource string
	ID       string
	Message  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Resource, e.ID, e.Message)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InsufficientBalanceError provides details about a balance shortage.
// At submission it is a validation failure; at commit it is a conflict,
// because the balance changed between validation and approval.
type InsufficientBalanceError struct {
	EntityID  EntityID
	Year      int
	Available Amount
	Requested Amount
	AtCommit  bool
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient annual leave balance: %s remaining, %s requested",
		e.Available.Value, e.Requested.Value)
}

func (e *InsufficientBalanceError) Shortfall() Amount {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientBalanceError) Unwrap() []error {
	if e.AtCommit {
		return []error{ErrInsufficientBalance, ErrConflict}
	}
	return []error{ErrInsufficientBalance, ErrValidation}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var fe *ForbiddenError
	return errors.As(err, &fe) && fe.Retryable()
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrPrecondition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
