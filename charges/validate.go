package charges

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// VALIDATION - The boundary in front of Compute
// =============================================================================

// MaxTerms is the longest loan accepted, in installment periods (50 years of
// monthly installments). Schedule produces one line per period.
const MaxTerms = 600

// ValidateScheme checks a scheme on its own, as the configuration editor
// does before saving it. The months-versus-terms rule needs a loan and is
// checked by Validate.
func ValidateScheme(s Scheme) error {
	var fields []FieldError
	nonNegative := func(name string, d decimal.Decimal) {
		if d.IsNegative() {
			fields = append(fields, FieldError{Field: name, Message: "must not be negative"})
		}
	}

	nonNegative("charges_percentage_1", s.ChargesPercentage1)
	nonNegative("charges_percentage_2", s.ChargesPercentage2)
	nonNegative("charges_amount", s.ChargesAmount)
	nonNegative("charges_divisor", s.ChargesDivisor)

	if s.Anum < 0 {
		fields = append(fields, FieldError{Field: "anum", Message: "must not be negative"})
	}
	if s.NumberOfMonths < 0 {
		fields = append(fields, FieldError{Field: "number_of_months", Message: "must not be negative"})
	}
	if s.MaxAmount != nil {
		nonNegative("max_amount", *s.MaxAmount)
	}
	if s.MinAmount != nil {
		nonNegative("min_amount", *s.MinAmount)
	}
	if s.MinAmount != nil && s.MaxAmount != nil && s.MinAmount.GreaterThan(*s.MaxAmount) {
		fields = append(fields, FieldError{Field: "min_amount", Message: "must not exceed max_amount"})
	}

	if len(fields) > 0 {
		return &ValidationError{Kind: ErrInvalidScheme, Fields: fields}
	}
	return nil
}

// ValidateLoan checks a loan snapshot.
func ValidateLoan(l Loan) error {
	var fields []FieldError
	if !l.Applied1.IsPositive() {
		fields = append(fields, FieldError{Field: "applied_1", Message: "must be positive"})
	}
	if l.Terms <= 0 {
		fields = append(fields, FieldError{Field: "terms", Message: "must be positive"})
	} else if l.Terms > MaxTerms {
		fields = append(fields, FieldError{Field: "terms", Message: fmt.Sprintf("must not exceed %d", MaxTerms)})
	}
	if len(fields) > 0 {
		return &ValidationError{Kind: ErrInvalidLoan, Fields: fields}
	}
	return nil
}

// Validate checks a scheme against the loan it will be computed for.
func Validate(s Scheme, l Loan) error {
	if err := ValidateScheme(s); err != nil {
		return err
	}
	if err := ValidateLoan(l); err != nil {
		return err
	}
	if s.NumberOfMonths > l.Terms {
		return &ValidationError{
			Kind: ErrInvalidScheme,
			Fields: []FieldError{{
				Field:   "number_of_months",
				Message: fmt.Sprintf("%d exceeds loan terms %d", s.NumberOfMonths, l.Terms),
			}},
		}
	}
	return nil
}
