package charges_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/charge-engine/charges"
)

func validLoan() charges.Loan {
	return charges.Loan{Applied1: dec("5000"), Terms: 12}
}

func TestValidate_AcceptsWellFormedInput(t *testing.T) {
	scheme := charges.Scheme{
		ChargesPercentage1: dec("4"),
		ChargesAmount:      dec("15"),
		ChargesDivisor:     dec("1000"),
		Anum:               1,
		NumberOfMonths:     12,
		MinAmount:          charges.DecPtr("1"),
		MaxAmount:          charges.DecPtr("1"),
	}
	assert.NoError(t, charges.Validate(scheme, validLoan()))
}

func TestValidate_RejectsNegativeFields(t *testing.T) {
	scheme := charges.Scheme{
		ChargesPercentage1: dec("-1"),
		ChargesAmount:      dec("-15"),
		Anum:               -1,
		MaxAmount:          charges.DecPtr("-5"),
	}

	err := charges.Validate(scheme, validLoan())

	require.Error(t, err)
	assert.True(t, errors.Is(err, charges.ErrInvalidScheme))
	assert.True(t, charges.IsClientError(err))

	var verr *charges.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		fields[i] = f.Field
	}
	assert.ElementsMatch(t, []string{"charges_percentage_1", "charges_amount", "anum", "max_amount"}, fields)
}

func TestValidate_RejectsMonthsBeyondTerms(t *testing.T) {
	scheme := charges.Scheme{ChargesPercentage1: dec("4"), NumberOfMonths: 13}

	err := charges.Validate(scheme, validLoan())

	require.Error(t, err)
	assert.ErrorIs(t, err, charges.ErrInvalidScheme)
	assert.Contains(t, err.Error(), "number_of_months")
}

func TestValidate_RejectsMinAboveMax(t *testing.T) {
	scheme := charges.Scheme{MinAmount: charges.DecPtr("10"), MaxAmount: charges.DecPtr("5")}

	err := charges.ValidateScheme(scheme)

	assert.ErrorIs(t, err, charges.ErrInvalidScheme)
}

func TestValidate_RejectsMalformedLoan(t *testing.T) {
	tests := []struct {
		name string
		loan charges.Loan
	}{
		{"zero principal", charges.Loan{Applied1: dec("0"), Terms: 12}},
		{"negative principal", charges.Loan{Applied1: dec("-1"), Terms: 12}},
		{"zero terms", charges.Loan{Applied1: dec("5000"), Terms: 0}},
		{"terms above ceiling", charges.Loan{Applied1: dec("5000"), Terms: charges.MaxTerms + 1}},
		{"absurd terms", charges.Loan{Applied1: dec("5000"), Terms: 1_000_000_000_000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := charges.Validate(charges.Scheme{}, tt.loan)
			assert.ErrorIs(t, err, charges.ErrInvalidLoan)
			assert.False(t, charges.IsNotFound(err))
		})
	}
}

func TestValidateLoan_TermsCeiling(t *testing.T) {
	// GIVEN: a loan at the longest accepted term
	loan := charges.Loan{Applied1: dec("5000"), Terms: charges.MaxTerms}
	assert.NoError(t, charges.ValidateLoan(loan))

	// WHEN: one period longer
	loan.Terms++
	err := charges.ValidateLoan(loan)

	// THEN: rejected on the terms field
	var verr *charges.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "terms", verr.Fields[0].Field)
	assert.Contains(t, verr.Fields[0].Message, "600")
}

func TestCompute_TotalOnUnvalidatedZeroTerms(t *testing.T) {
	// Compute does not validate, but must not panic on a zero denominator.
	scheme := charges.Scheme{ChargesPercentage1: dec("4"), Anum: 1, ChargesAmount: dec("15"),
		ChargesDivisor: dec("1000"), NumberOfMonths: 6}
	loan := charges.Loan{Applied1: dec("5000"), Terms: 0}

	assert.NotPanics(t, func() {
		assert.True(t, charges.Compute(scheme, loan).IsZero())
	})
}
