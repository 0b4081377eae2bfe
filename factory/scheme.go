/*
Package factory provides JSON to Go charge scheme conversion.

PURPOSE:
  Converts JSON scheme definitions into charges.SchemeRecord values and
  back. Administrators edit schemes through forms that post this JSON; the
  store keeps it verbatim in a config column.

JSON SCHEMA:
  {
    "id": "loan-insurance",
    "organization_id": "coop-1",
    "branch_id": "main",
    "name": "Loan insurance",
    "charges_percentage_1": "4",
    "charges_percentage_2": "2",
    "charges_amount": "15",
    "charges_divisor": "1000",
    "anum": 4,
    "number_of_months": 6,
    "max_amount": "500",
    "min_amount": null
  }

  Decimal fields accept JSON strings or numbers. Strings are preferred:
  they survive any JSON implementation without binary rounding.

USAGE:
  f := NewSchemeFactory()
  rec, err := f.ParseScheme(jsonString)

SEE ALSO:
  - charges/types.go: Scheme type definition
  - presets.go: Ready-made scheme configurations
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/charge-engine/charges"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SchemeJSON is the JSON representation of a charge scheme record.
type SchemeJSON struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	BranchID       string `json:"branch_id"`
	Name           string `json:"name"`

	ChargesPercentage1 decimal.Decimal `json:"charges_percentage_1"`
	ChargesPercentage2 decimal.Decimal `json:"charges_percentage_2"`
	ChargesAmount      decimal.Decimal `json:"charges_amount"`
	ChargesDivisor     decimal.Decimal `json:"charges_divisor"`
	Anum               int             `json:"anum"`
	NumberOfMonths     int             `json:"number_of_months"`

	MaxAmount *decimal.Decimal `json:"max_amount,omitempty"`
	MinAmount *decimal.Decimal `json:"min_amount,omitempty"`
}

// =============================================================================
// SCHEME FACTORY
// =============================================================================

// SchemeFactory converts JSON schemes to Go structs.
type SchemeFactory struct{}

// NewSchemeFactory creates a new scheme factory.
func NewSchemeFactory() *SchemeFactory {
	return &SchemeFactory{}
}

// ParseScheme parses a JSON string into a validated SchemeRecord.
func (f *SchemeFactory) ParseScheme(jsonStr string) (charges.SchemeRecord, error) {
	var sj SchemeJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return charges.SchemeRecord{}, fmt.Errorf("failed to parse scheme JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON converts SchemeJSON to a SchemeRecord and validates the scheme.
// Version and timestamps are owned by the store and left zero.
func (f *SchemeFactory) FromJSON(sj SchemeJSON) (charges.SchemeRecord, error) {
	rec := charges.SchemeRecord{
		ID:             charges.SchemeID(sj.ID),
		OrganizationID: charges.OrganizationID(sj.OrganizationID),
		BranchID:       charges.BranchID(sj.BranchID),
		Name:           sj.Name,
		Scheme: charges.Scheme{
			ChargesPercentage1: sj.ChargesPercentage1,
			ChargesPercentage2: sj.ChargesPercentage2,
			ChargesAmount:      sj.ChargesAmount,
			ChargesDivisor:     sj.ChargesDivisor,
			Anum:               sj.Anum,
			NumberOfMonths:     sj.NumberOfMonths,
			MaxAmount:          copyDecimal(sj.MaxAmount),
			MinAmount:          copyDecimal(sj.MinAmount),
		},
	}

	if err := charges.ValidateScheme(rec.Scheme); err != nil {
		return charges.SchemeRecord{}, err
	}
	return rec, nil
}

// ToJSON converts a SchemeRecord to SchemeJSON.
func (f *SchemeFactory) ToJSON(rec charges.SchemeRecord) SchemeJSON {
	s := rec.Scheme
	return SchemeJSON{
		ID:                 string(rec.ID),
		OrganizationID:     string(rec.OrganizationID),
		BranchID:           string(rec.BranchID),
		Name:               rec.Name,
		ChargesPercentage1: s.ChargesPercentage1,
		ChargesPercentage2: s.ChargesPercentage2,
		ChargesAmount:      s.ChargesAmount,
		ChargesDivisor:     s.ChargesDivisor,
		Anum:               s.Anum,
		NumberOfMonths:     s.NumberOfMonths,
		MaxAmount:          copyDecimal(s.MaxAmount),
		MinAmount:          copyDecimal(s.MinAmount),
	}
}

// Marshal renders a SchemeRecord as the JSON stored in the config column.
func (f *SchemeFactory) Marshal(rec charges.SchemeRecord) (string, error) {
	b, err := json.Marshal(f.ToJSON(rec))
	if err != nil {
		return "", fmt.Errorf("failed to marshal scheme: %w", err)
	}
	return string(b), nil
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
