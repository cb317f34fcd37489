/*
errors.go - Centralized error types for the inventory core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The presentation layer turns these into user-facing messages; nothing
  here is fatal to the process and each error is scoped to one operation.

ERROR CATEGORIES:
  1. Stock errors - a withdrawal (or reversal) would drive stock negative
  2. Session errors - illegal lifecycle transitions, duplicate open session
  3. Validation errors - bad input caught before persistence
  4. Not found - a referenced record does not exist

USAGE:
  if errors.Is(err, inventory.ErrInsufficientStock) {
      var se *inventory.InsufficientStockError
      errors.As(err, &se) // se.Available, se.Requested
  }
*/
package inventory

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientStock is returned when a ledger apply would make stock negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrDuplicateOpenSession is returned when the employee already has an open session.
	ErrDuplicateOpenSession = errors.New("employee already has an open session")

	// ErrAlreadyClosed is returned when closing a closed session.
	ErrAlreadyClosed = errors.New("session already closed")

	// ErrNoMovements is returned when closing a session that has no movements.
	ErrNoMovements = errors.New("cannot close a session without movements")

	// ErrSessionNotOpen is returned when recording a movement against a closed session.
	ErrSessionNotOpen = errors.New("session is not open")

	// ErrValidation is the parent of every ValidationError.
	ErrValidation = errors.New("validation failed")

	ErrMaterialNotFound   = errors.New("material not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrMovementNotFound   = errors.New("movement not found")
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrAuthorizerNotFound = errors.New("authorizer not found")
	ErrFacilityNotFound   = errors.New("facility not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	MaterialID MaterialID
	Available  int64
	Requested  int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for material %s: available %d, requested %d",
		e.MaterialID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// DuplicateOpenSessionError names the session that is already open.
// ExistingSessionID is empty when the conflict was caught by a storage constraint.
type DuplicateOpenSessionError struct {
	EmployeeID        EmployeeID
	ExistingSessionID SessionID
}

func (e *DuplicateOpenSessionError) Error() string {
	if e.ExistingSessionID == "" {
		return fmt.Sprintf("employee %s already has an open session", e.EmployeeID)
	}
	return fmt.Sprintf("employee %s already has an open session (%s)", e.EmployeeID, e.ExistingSessionID)
}

func (e *DuplicateOpenSessionError) Unwrap() error {
	return ErrDuplicateOpenSession
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict returns true if the request was well-formed but the current
// state does not allow it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrDuplicateOpenSession) ||
		errors.Is(err, ErrAlreadyClosed) ||
		errors.Is(err, ErrNoMovements) ||
		errors.Is(err, ErrSessionNotOpen)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMaterialNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrMovementNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrAuthorizerNotFound) ||
		errors.Is(err, ErrFacilityNotFound)
}
