/*
assessment.go - Recording computed charges

PURPOSE:
  An Assessment is the immutable record of one charge computation: which
  scheme, which loan snapshot, which amount, and which branches of the
  decision table produced it. The Assessor is the only writer.

FLOW:
  1. Validate scheme and loan (Validate)
  2. Compute the breakdown (Itemize)
  3. Round the amount to cents for posting (RoundCents)
  4. Append to the Store under the caller's idempotency key

IDEMPOTENCY:
  Transaction-entry screens retry on network errors. The caller supplies an
  idempotency key; a repeated key returns ErrDuplicateIdempotencyKey and
  writes nothing.

SEE ALSO:
  - compute.go: The computation
  - store.go: Store interface
*/
package charges

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ASSESSMENT - Immutable record of a computed charge
// =============================================================================

type Assessment struct {
	ID             AssessmentID
	SchemeID       SchemeID
	SchemeVersion  int
	LoanID         LoanID
	OrganizationID OrganizationID
	BranchID       BranchID

	// Inputs as they were at assessment time.
	Scheme Scheme
	Loan   Loan

	// Amount is the rounded charge; Exact is the unrounded engine result.
	Amount decimal.Decimal
	Exact  decimal.Decimal
	Paths  []Path

	IdempotencyKey string
	CreatedBy      string
	CreatedAt      time.Time
}

// AssessInput is what a caller supplies to record an assessment.
type AssessInput struct {
	Scheme         SchemeRecord
	LoanID         LoanID
	Loan           Loan
	IdempotencyKey string
	CreatedBy      string
}

// =============================================================================
// ASSESSOR
// =============================================================================

// Assessor validates, computes and records charges.
type Assessor struct {
	Store Store

	// Now defaults to time.Now().UTC().
	Now func() time.Time

	// NewID defaults to a random UUID.
	NewID func() AssessmentID
}

// NewAssessor creates an Assessor writing to store.
func NewAssessor(store Store) *Assessor {
	return &Assessor{Store: store}
}

// Assess records the charge for one loan under one scheme.
func (a *Assessor) Assess(ctx context.Context, in AssessInput) (Assessment, error) {
	if err := Validate(in.Scheme.Scheme, in.Loan); err != nil {
		return Assessment{}, err
	}
	if in.LoanID == "" {
		return Assessment{}, &ValidationError{
			Kind:   ErrInvalidLoan,
			Fields: []FieldError{{Field: "loan_id", Message: "is required"}},
		}
	}

	if in.IdempotencyKey != "" {
		exists, err := a.Store.Exists(ctx, in.IdempotencyKey)
		if err != nil {
			return Assessment{}, fmt.Errorf("check idempotency key: %w", err)
		}
		if exists {
			return Assessment{}, ErrDuplicateIdempotencyKey
		}
	}

	b := Itemize(in.Scheme.Scheme, in.Loan)
	assessment := Assessment{
		ID:             a.newID(),
		SchemeID:       in.Scheme.ID,
		SchemeVersion:  in.Scheme.Version,
		LoanID:         in.LoanID,
		OrganizationID: in.Scheme.OrganizationID,
		BranchID:       in.Scheme.BranchID,
		Scheme:         in.Scheme.Scheme,
		Loan:           in.Loan,
		Amount:         RoundCents(b.Amount),
		Exact:          b.Amount,
		Paths:          b.Paths,
		IdempotencyKey: in.IdempotencyKey,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      a.now(),
	}

	if err := a.Store.Append(ctx, assessment); err != nil {
		return Assessment{}, err
	}
	return assessment, nil
}

// History returns a loan's assessments and their rounded total.
func (a *Assessor) History(ctx context.Context, loanID LoanID) ([]Assessment, decimal.Decimal, error) {
	list, err := a.Store.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, as := range list {
		total = total.Add(as.Amount)
	}
	return list, total, nil
}

func (a *Assessor) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

func (a *Assessor) newID() AssessmentID {
	if a.NewID != nil {
		return a.NewID()
	}
	return AssessmentID(uuid.NewString())
}
