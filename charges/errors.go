/*
errors.go - Centralized error types for the charge engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Compute itself never fails; these errors come from the validation layer,
  the assessment ledger and the stores.

ERROR CATEGORIES:
  1. Validation errors - Malformed scheme or loan
  2. Ledger errors - Assessment persistence failures
  3. Store errors - Missing records

USAGE:
  if errors.Is(err, charges.ErrInvalidScheme) {
      // 400 to the client
  }

SEE ALSO:
  - validate.go: Produces ValidationError
  - assessment.go: Uses ledger errors
  - api/handlers.go: Maps errors to HTTP status
*/
package charges

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidScheme is returned when a scheme field is out of its domain.
	ErrInvalidScheme = errors.New("invalid charge scheme")

	// ErrInvalidLoan is returned when the loan snapshot is malformed.
	ErrInvalidLoan = errors.New("invalid loan snapshot")

	// ErrDuplicateIdempotencyKey is returned when an assessment with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrSchemeExists is returned when creating a scheme whose ID is taken.
	ErrSchemeExists = errors.New("charge scheme already exists")

	// ErrSchemeNotFound is returned when a referenced scheme doesn't exist.
	ErrSchemeNotFound = errors.New("charge scheme not found")

	// ErrAssessmentNotFound is returned when a referenced assessment doesn't exist.
	ErrAssessmentNotFound = errors.New("assessment not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError describes one rejected field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationError collects every rejected field of a scheme or loan.
type ValidationError struct {
	Kind   error // ErrInvalidScheme or ErrInvalidLoan
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%v: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidScheme) ||
		errors.Is(err, ErrInvalidLoan)
}

// IsConflict returns true if the request repeats an earlier write.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) || errors.Is(err, ErrSchemeExists)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSchemeNotFound) ||
		errors.Is(err, ErrAssessmentNotFound)
}
