/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the charges package from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

DECIMALS:
  All money and rate fields are decimal.Decimal. They marshal as JSON
  strings ("37.5") and unmarshal from strings or numbers.

VALIDATION:
  Validation is done in handlers via charges.Validate*. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/scheme.go: SchemeJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/charge-engine/charges"
	"github.com/warp/charge-engine/factory"
)

// =============================================================================
// SCHEMES
// =============================================================================

// SchemeDTO represents a stored charge scheme.
type SchemeDTO struct {
	factory.SchemeJSON
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// COMPUTATION
// =============================================================================

// LoanDTO carries the loan attributes the engine reads.
type LoanDTO struct {
	Applied1 decimal.Decimal `json:"applied_1"`
	Terms    int             `json:"terms"`
	IsAddOn  bool            `json:"is_add_on"`
}

func (l LoanDTO) toLoan() charges.Loan {
	return charges.Loan{Applied1: l.Applied1, Terms: l.Terms, IsAddOn: l.IsAddOn}
}

func toLoanDTO(l charges.Loan) LoanDTO {
	return LoanDTO{Applied1: l.Applied1, Terms: l.Terms, IsAddOn: l.IsAddOn}
}

// ComputeRequest names a stored scheme or carries one inline.
// An inline scheme wins when both are present.
type ComputeRequest struct {
	SchemeID string              `json:"scheme_id,omitempty"`
	Scheme   *factory.SchemeJSON `json:"scheme,omitempty"`
	Loan     LoanDTO             `json:"loan"`
}

// BreakdownDTO lists the components behind a computed charge.
type BreakdownDTO struct {
	Rate       decimal.Decimal `json:"rate"`
	Percentage decimal.Decimal `json:"percentage"`
	Flat       decimal.Decimal `json:"flat"`
	Divisor    decimal.Decimal `json:"divisor"`
	Combined   decimal.Decimal `json:"combined"`
	Paths      []charges.Path  `json:"paths"`
}

// ComputeResponse is the result of a single computation.
type ComputeResponse struct {
	SchemeID  string          `json:"scheme_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Rounded   decimal.Decimal `json:"rounded"`
	Breakdown BreakdownDTO    `json:"breakdown"`
}

func toComputeResponse(id charges.SchemeID, b charges.Breakdown) ComputeResponse {
	paths := b.Paths
	if paths == nil {
		paths = []charges.Path{}
	}
	return ComputeResponse{
		SchemeID: string(id),
		Amount:   b.Amount,
		Rounded:  charges.RoundCents(b.Amount),
		Breakdown: BreakdownDTO{
			Rate:       b.Rate,
			Percentage: b.Percentage,
			Flat:       b.Flat,
			Divisor:    b.Divisor,
			Combined:   b.Combined,
			Paths:      paths,
		},
	}
}

// ScheduleLineDTO is one month of a charge schedule.
type ScheduleLineDTO struct {
	Month      int             `json:"month"`
	Cumulative decimal.Decimal `json:"cumulative"`
	Delta      decimal.Decimal `json:"delta"`
	Paths      []charges.Path  `json:"paths"`
}

// ScheduleResponse is the JSON form of a schedule.
type ScheduleResponse struct {
	SchemeID string            `json:"scheme_id,omitempty"`
	Lines    []ScheduleLineDTO `json:"lines"`
	Total    decimal.Decimal   `json:"total"`
}

// =============================================================================
// ASSESSMENTS
// =============================================================================

// AssessRequest records a charge against a loan. The Idempotency-Key header
// takes precedence over the body field.
type AssessRequest struct {
	SchemeID       string  `json:"scheme_id"`
	Loan           LoanDTO `json:"loan"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
	CreatedBy      string  `json:"created_by,omitempty"`
}

// AssessmentDTO represents a recorded assessment.
type AssessmentDTO struct {
	ID             string          `json:"id"`
	LoanID         string          `json:"loan_id"`
	SchemeID       string          `json:"scheme_id"`
	SchemeVersion  int             `json:"scheme_version"`
	OrganizationID string          `json:"organization_id"`
	BranchID       string          `json:"branch_id"`
	Loan           LoanDTO         `json:"loan"`
	Amount         decimal.Decimal `json:"amount"`
	Exact          decimal.Decimal `json:"exact"`
	Paths          []charges.Path  `json:"paths"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toAssessmentDTO(a charges.Assessment) AssessmentDTO {
	paths := a.Paths
	if paths == nil {
		paths = []charges.Path{}
	}
	return AssessmentDTO{
		ID:             string(a.ID),
		LoanID:         string(a.LoanID),
		SchemeID:       string(a.SchemeID),
		SchemeVersion:  a.SchemeVersion,
		OrganizationID: string(a.OrganizationID),
		BranchID:       string(a.BranchID),
		Loan:           toLoanDTO(a.Loan),
		Amount:         a.Amount,
		Exact:          a.Exact,
		Paths:          paths,
		IdempotencyKey: a.IdempotencyKey,
		CreatedBy:      a.CreatedBy,
		CreatedAt:      a.CreatedAt,
	}
}

// AssessmentListResponse is a loan's assessment history.
type AssessmentListResponse struct {
	LoanID      string          `json:"loan_id"`
	Assessments []AssessmentDTO `json:"assessments"`
	Total       decimal.Decimal `json:"total"`
}

// =============================================================================
// PRESETS
// =============================================================================

// PresetDTO describes a seedable set of schemes.
type PresetDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadPresetRequest seeds a preset into an organization and branch.
type LoadPresetRequest struct {
	PresetID       string `json:"preset_id"`
	OrganizationID string `json:"organization_id"`
	BranchID       string `json:"branch_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// FieldErrorDTO is one rejected field in a validation error.
type FieldErrorDTO struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
