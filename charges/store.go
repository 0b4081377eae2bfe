/*
store.go - Persistence interfaces for schemes and assessments

PURPOSE:
  Defines the interface between the charge engine's callers and the
  database. Compute never touches a store; the Assessor and the API do.

KEY INTERFACES:
  Store:       Assessment persistence (append, exists, load)
  SchemeStore: Charge scheme records keyed by organization/branch

APPEND-ONLY CONTRACT:
  Assessments are never updated or deleted. A wrong assessment is
  corrected by the posting system, not by editing the record.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - charges/store/memory.go: In-memory for testing

SEE ALSO:
  - assessment.go: Assessor writes through Store
  - cache/cache.go: Read-through cache in front of SchemeStore
*/
package charges

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Assessment persistence (append-only)
// =============================================================================

// Store persists assessments.
type Store interface {
	// Append persists an assessment. Returns ErrDuplicateIdempotencyKey if
	// the key exists.
	Append(ctx context.Context, a Assessment) error

	// Exists checks if an idempotency key was already used.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)

	// Get returns one assessment or ErrAssessmentNotFound.
	Get(ctx context.Context, id AssessmentID) (Assessment, error)

	// ListByLoan returns a loan's assessments ordered by CreatedAt.
	ListByLoan(ctx context.Context, loanID LoanID) ([]Assessment, error)
}

// =============================================================================
// SCHEME STORE - Charge scheme records
// =============================================================================

// SchemeRecord is a persisted scheme with its ownership and versioning.
type SchemeRecord struct {
	ID             SchemeID
	OrganizationID OrganizationID
	BranchID       BranchID
	Name           string
	Scheme         Scheme
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SchemeFilter narrows ListSchemes. Empty fields match everything.
type SchemeFilter struct {
	OrganizationID OrganizationID
	BranchID       BranchID
}

// Matches reports whether a record passes the filter.
func (f SchemeFilter) Matches(r SchemeRecord) bool {
	if f.OrganizationID != "" && f.OrganizationID != r.OrganizationID {
		return false
	}
	if f.BranchID != "" && f.BranchID != r.BranchID {
		return false
	}
	return true
}

// SchemeStore handles create/read/update of scheme records.
type SchemeStore interface {
	// CreateScheme inserts a new record at version 1, or returns
	// ErrSchemeExists when the ID is taken.
	CreateScheme(ctx context.Context, r SchemeRecord) (SchemeRecord, error)

	// SaveScheme inserts or updates a record. Updates bump Version.
	SaveScheme(ctx context.Context, r SchemeRecord) (SchemeRecord, error)

	// GetScheme returns a record or ErrSchemeNotFound.
	GetScheme(ctx context.Context, id SchemeID) (SchemeRecord, error)

	ListSchemes(ctx context.Context, filter SchemeFilter) ([]SchemeRecord, error)

	// DeleteScheme removes a record or returns ErrSchemeNotFound.
	DeleteScheme(ctx context.Context, id SchemeID) error
}
