/*
errors.go - Centralized error types for the leave domain

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As; the api package maps them to
  HTTP status codes.

ERROR CATEGORIES:
  1. Validation errors - Submission guards that run before the resolver
  2. Arbitration errors - The candidate lost the seniority tie-break
  3. State errors - Admin action on a request that is no longer PENDING
  4. Lookup / auth errors - Missing entities, bad credentials, wrong role
  5. Store errors - The backing datastore cannot be reached

SEE ALSO:
  - validate.go: Produces ValidationError
  - service.go: Produces arbitration and state errors
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrMissingDates        = errors.New("start and end dates are required")
	ErrStartInPast         = errors.New("start date is in the past")
	ErrEndBeforeStart      = errors.New("end date before start date")
	ErrExceedsRequestCap   = errors.New("request exceeds per-request day cap")
	ErrInsufficientBalance = errors.New("insufficient leave balance")

	// ErrSeniorityInsufficient is returned when two or more requests already
	// hold overlapping dates and the candidate is not strictly more senior
	// than the weakest of them.
	ErrSeniorityInsufficient = errors.New("seniority insufficient for overlapping dates")

	// ErrAlreadyFinalized guards the non-idempotent approval bookkeeping.
	ErrAlreadyFinalized = errors.New("request already finalized")

	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUserNotFound       = errors.New("user not found")
	ErrRequestNotFound    = errors.New("request not found")
	ErrInvalidCredentials = errors.New("invalid registry number or password")
	ErrForbidden          = errors.New("forbidden")

	// ErrStoreUnavailable is the connectivity error state of the datastore.
	ErrStoreUnavailable = errors.New("datastore unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected submission before the resolver runs.
type ValidationError struct {
	Code    string // e.g. "exceeds_cap", "insufficient_balance"
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ArbitrationError reports which incumbent the candidate lost against.
type ArbitrationError struct {
	Candidate int // candidate seniority
	Weakest   int // lowest seniority among the overlap set
	Overlaps  int // size of the overlap set
}

func (e *ArbitrationError) Error() string {
	return fmt.Sprintf("seniority insufficient: candidate %d <= weakest incumbent %d (%d overlapping requests)",
		e.Candidate, e.Weakest, e.Overlaps)
}

func (e *ArbitrationError) Unwrap() error { return ErrSeniorityInsufficient }

// FinalizedError names the request and its current terminal status.
type FinalizedError struct {
	RequestID string
	Status    Status
}

func (e *FinalizedError) Error() string {
	return fmt.Sprintf("request %s already finalized as %s", e.RequestID, e.Status)
}

func (e *FinalizedError) Unwrap() error { return ErrAlreadyFinalized }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the submitter can fix the input and retry.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrMissingDates) ||
		errors.Is(err, ErrStartInPast) ||
		errors.Is(err, ErrEndBeforeStart) ||
		errors.Is(err, ErrExceedsRequestCap) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsConflict returns true if the request clashes with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSeniorityInsufficient) ||
		errors.Is(err, ErrAlreadyFinalized)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}
