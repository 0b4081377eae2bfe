/*
Package charges provides the automatic loan deduction charge engine.

PURPOSE:
  Derives the charge amount to deduct from a loan given a configurable
  charge scheme (service fee, insurance, penalty...) and a snapshot of the
  loan at assessment time. The computation is a pure function: no I/O, no
  shared state, no mutation of its inputs.

KEY CONCEPTS IN THIS FILE (types.go):
  - Scheme: The administrator-configured charge rules
  - Loan: The read-only loan snapshot (principal, terms, interest method)
  - Identifiers: Type-safe scheme/loan/organization IDs

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal, never float64, for money
  2. Totality: Every validated input produces a non-negative amount
  3. Immutability: Scheme and Loan are passed by value

USAGE:
  scheme := charges.Scheme{ChargesPercentage1: charges.Dec("4")}
  loan := charges.Loan{Applied1: charges.Dec("5000"), Terms: 12}
  amount := charges.Compute(scheme, loan) // 200

SEE ALSO:
  - compute.go: The charge computation
  - validate.go: Caller-side input validation
  - schedule.go: Month-by-month charge preview
  - assessment.go: Recording computed charges
*/
package charges

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SchemeID string
type LoanID string
type OrganizationID string
type BranchID string
type AssessmentID string

// =============================================================================
// SCHEME - Charge configuration
// =============================================================================

// Scheme is the configuration controlling how a loan charge is computed.
// All numeric fields are non-negative; NumberOfMonths never exceeds the
// loan's Terms (see Validate).
type Scheme struct {
	// ChargesPercentage1 is the rate, in percentage points, used for
	// diminishing-balance loans.
	ChargesPercentage1 decimal.Decimal

	// ChargesPercentage2 is the rate, in percentage points, used for
	// add-on loans.
	ChargesPercentage2 decimal.Decimal

	// ChargesAmount is a flat amount, or the numerator of the divisor
	// ratio when ChargesDivisor is set.
	ChargesAmount decimal.Decimal

	// ChargesDivisor scales ChargesAmount against principal. Zero disables
	// the divisor component.
	ChargesDivisor decimal.Decimal

	// Anum marks the rate as a per-annum rate: when non-zero, elapsed
	// months are prorated against the term instead of multiplying a
	// per-period rate.
	Anum int

	// NumberOfMonths is the elapsed months to assess. Zero assesses the
	// full term in one shot.
	NumberOfMonths int

	// Optional bounds on the final amount. nil means no limit.
	MaxAmount *decimal.Decimal
	MinAmount *decimal.Decimal
}

// WithMonths returns a copy of the scheme assessed at the given elapsed month.
func (s Scheme) WithMonths(months int) Scheme {
	s.NumberOfMonths = months
	return s
}

// =============================================================================
// LOAN - Snapshot supplied per computation
// =============================================================================

// Loan is the read-only loan snapshot at assessment time.
type Loan struct {
	// Applied1 is the principal amount.
	Applied1 decimal.Decimal

	// Terms is the total number of installment periods.
	Terms int

	// IsAddOn is true for add-on (front-loaded) interest, false for
	// diminishing-balance interest.
	IsAddOn bool
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

var (
	hundred = decimal.NewFromInt(100)
	quarter = decimal.RequireFromString("0.25")
)

// Dec parses a decimal literal. Malformed input yields zero; use it for
// constants and fixtures, not for user input.
func Dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecPtr is Dec returning a pointer, for the optional bounds.
func DecPtr(s string) *decimal.Decimal {
	d := Dec(s)
	return &d
}

// RoundCents rounds an amount half-up to two fractional digits.
// Compute never rounds; callers round when an amount is posted or stored.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
