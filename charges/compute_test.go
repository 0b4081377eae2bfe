package charges_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/charge-engine/charges"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// vector is one row of the regression table. Principal and terms default
// to 5000 and 12.
type vector struct {
	p1, p2    string
	anum      int
	amount    string
	divisor   string
	months    int
	addOn     bool
	principal string
	terms     int
	want      string
}

func (v vector) scheme() charges.Scheme {
	return charges.Scheme{
		ChargesPercentage1: dec(v.p1),
		ChargesPercentage2: dec(v.p2),
		ChargesAmount:      dec(v.amount),
		ChargesDivisor:     dec(v.divisor),
		Anum:               v.anum,
		NumberOfMonths:     v.months,
	}
}

func (v vector) loan() charges.Loan {
	principal, terms := v.principal, v.terms
	if principal == "" {
		principal = "5000"
	}
	if terms == 0 {
		terms = 12
	}
	return charges.Loan{Applied1: dec(principal), Terms: terms, IsAddOn: v.addOn}
}

func (v vector) String() string {
	return fmt.Sprintf("p1=%s p2=%s anum=%d amount=%s divisor=%s months=%d addon=%t",
		v.p1, v.p2, v.anum, v.amount, v.divisor, v.months, v.addOn)
}

func runVectors(t *testing.T, vectors []vector) {
	t.Helper()
	for _, v := range vectors {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			require.NoError(t, charges.Validate(v.scheme(), v.loan()))
			got := charges.Compute(v.scheme(), v.loan())
			assert.True(t, dec(v.want).Equal(got), "want %s, got %s", v.want, got)
		})
	}
}

// =============================================================================
// ACCEPTANCE VECTORS
// =============================================================================

func TestCompute_AcceptanceVectors(t *testing.T) {
	runVectors(t, []vector{
		{p1: "4", p2: "0", anum: 0, amount: "0", divisor: "0", months: 0, addOn: false, want: "200"},
		{p1: "4", p2: "0", anum: 0, amount: "0", divisor: "0", months: 0, addOn: true, want: "50"},
		{p1: "4", p2: "0", anum: 0, amount: "0", divisor: "0", months: 6, addOn: false, want: "1200"},
		{p1: "4", p2: "0", anum: 1, amount: "0", divisor: "0", months: 6, addOn: false, want: "100"},
		{p1: "4", p2: "0", anum: 4, amount: "0", divisor: "2", months: 6, addOn: false, want: "0"},
		{p1: "4", p2: "0", anum: 4, amount: "15", divisor: "1000", months: 6, addOn: false, want: "1.5"},
		{p1: "4", p2: "2", anum: 4, amount: "15", divisor: "1000", months: 6, addOn: true, want: "0.75"},
		{p1: "0", p2: "0", anum: 0, amount: "15", divisor: "0", months: 0, addOn: false, want: "15"},
		{p1: "0", p2: "0", anum: 4, amount: "15", divisor: "2", months: 6, addOn: false, want: "18750"},
		{p1: "0", p2: "0", anum: 0, amount: "0", divisor: "1000", months: 0, addOn: false, want: "0"},
	})
}

// =============================================================================
// REGRESSION TABLE - One group per branch of the decision table
// =============================================================================

func TestCompute_PercentageFullTerm(t *testing.T) {
	runVectors(t, []vector{
		{p1: "2", p2: "0", amount: "0", divisor: "0", want: "100"},
		{p1: "1.5", p2: "0", amount: "0", divisor: "0", want: "75"},
		{p1: "4", p2: "2", amount: "0", divisor: "0", want: "200"},
		{p1: "0", p2: "2", amount: "0", divisor: "0", addOn: true, want: "100"},
		{p1: "4", p2: "2", amount: "0", divisor: "0", addOn: true, want: "100"},
		{p1: "0", p2: "2", amount: "0", divisor: "0", addOn: false, want: "0"},
		{p1: "4", p2: "0", amount: "0", divisor: "0", principal: "10000", want: "400"},
	})
}

func TestCompute_PercentageInactiveTier(t *testing.T) {
	// GIVEN: Add-on loan, only the diminishing-balance rate configured
	// WHEN: Assessing the full term (months = 0)
	// THEN: A quarter of the nominal diminishing charge is assessed
	runVectors(t, []vector{
		{p1: "4", p2: "0", amount: "0", divisor: "0", addOn: true, want: "50"},
		{p1: "4", p2: "0", amount: "0", divisor: "0", addOn: true, principal: "10000", want: "100"},
		{p1: "4", p2: "0", amount: "15", divisor: "0", addOn: true, want: "65"},
	})

	b := charges.Itemize(vector{p1: "4", p2: "0", amount: "0", divisor: "0", addOn: true}.scheme(),
		vector{addOn: true}.loan())
	assert.Equal(t, []charges.Path{charges.PathPercentageInactiveTier}, b.Paths)
}

func TestCompute_PercentagePerPeriod(t *testing.T) {
	runVectors(t, []vector{
		{p1: "4", p2: "0", amount: "0", divisor: "0", months: 1, want: "200"},
		{p1: "4", p2: "0", amount: "0", divisor: "0", months: 12, want: "2400"},
		{p1: "0", p2: "3", amount: "0", divisor: "0", months: 6, addOn: true, want: "900"},
		// Add-on with only the diminishing rate: nothing once months are set.
		{p1: "4", p2: "0", amount: "0", divisor: "0", months: 6, addOn: true, want: "0"},
	})
}

func TestCompute_PercentagePerAnnum(t *testing.T) {
	runVectors(t, []vector{
		{p1: "4", p2: "0", anum: 1, amount: "0", divisor: "0", months: 12, want: "200"},
		{p1: "4", p2: "0", anum: 4, amount: "0", divisor: "0", months: 6, want: "100"},
		{p1: "4", p2: "0", anum: 1, amount: "0", divisor: "0", months: 3, want: "50"},
		{p1: "0", p2: "6", anum: 1, amount: "0", divisor: "0", months: 6, addOn: true, want: "150"},
		{p1: "4", p2: "0", anum: 1, amount: "0", divisor: "0", months: 6, principal: "10000", terms: 24, want: "100"},
	})
}

func TestCompute_Flat(t *testing.T) {
	runVectors(t, []vector{
		{p1: "0", p2: "0", amount: "15", divisor: "0", months: 6, want: "7.5"},
		{p1: "0", p2: "0", amount: "15", divisor: "0", months: 12, want: "15"},
		{p1: "0", p2: "0", amount: "15", divisor: "0", addOn: true, want: "15"},
		{p1: "0", p2: "0", anum: 1, amount: "24", divisor: "0", months: 3, want: "6"},
		{p1: "0", p2: "0", amount: "30", divisor: "0", months: 2, principal: "1200", terms: 6, want: "10"},
	})
}

func TestCompute_PercentageAndFlatAreAdded(t *testing.T) {
	runVectors(t, []vector{
		{p1: "4", p2: "0", amount: "15", divisor: "0", want: "215"},
		{p1: "4", p2: "0", anum: 1, amount: "15", divisor: "0", months: 6, want: "107.5"},
	})
}

func TestCompute_Divisor(t *testing.T) {
	runVectors(t, []vector{
		{p1: "0", p2: "0", amount: "15", divisor: "1000", want: "75"},
		{p1: "0", p2: "0", amount: "15", divisor: "1000", months: 6, want: "37.5"},
		{p1: "0", p2: "0", amount: "15", divisor: "1000", months: 12, want: "75"},
		{p1: "0", p2: "0", amount: "15", divisor: "2", want: "37500"},
		{p1: "0", p2: "0", amount: "15", divisor: "1000", months: 6, addOn: true, want: "37.5"},
		// Inactive tier does not compound.
		{p1: "4", p2: "0", amount: "15", divisor: "1000", months: 6, addOn: true, want: "37.5"},
		{p1: "0", p2: "0", amount: "15", divisor: "1000", months: 6, principal: "10000", terms: 24, want: "37.5"},
	})
}

func TestCompute_DivisorCompounded(t *testing.T) {
	runVectors(t, []vector{
		{p1: "4", p2: "0", amount: "15", divisor: "1000", want: "3"},
		{p1: "4", p2: "0", amount: "15", divisor: "1000", months: 12, want: "3"},
		{p1: "4", p2: "0", amount: "15", divisor: "1000", months: 6, want: "1.5"},
		{p1: "0", p2: "2", amount: "15", divisor: "1000", addOn: true, want: "1.5"},
		{p1: "4", p2: "0", amount: "0", divisor: "1000", months: 6, want: "0"},
	})
}

func TestCompute_ZeroConfiguration(t *testing.T) {
	runVectors(t, []vector{
		{p1: "0", p2: "0", amount: "0", divisor: "0", want: "0"},
		{p1: "0", p2: "0", anum: 4, amount: "0", divisor: "0", months: 6, addOn: true, want: "0"},
		{p1: "0", p2: "0", anum: 4, amount: "0", divisor: "2", months: 6, want: "0"},
	})
}

func TestCompute_NonTerminatingDivisionRoundsToCents(t *testing.T) {
	// GIVEN: 10 flat over 3 terms, one month elapsed
	// THEN: 3.33 after rounding, and the exact result is within a cent
	scheme := charges.Scheme{ChargesAmount: dec("10"), NumberOfMonths: 1}
	loan := charges.Loan{Applied1: dec("1000"), Terms: 3}

	got := charges.Compute(scheme, loan)
	assert.True(t, dec("3.33").Equal(charges.RoundCents(got)), "got %s", got)
	assert.True(t, got.Sub(dec("3.33")).Abs().LessThan(dec("0.01")))
}

// =============================================================================
// END-TO-END SCENARIOS
// =============================================================================

func TestCompute_Scenarios(t *testing.T) {
	loan := charges.Loan{Applied1: dec("5000"), Terms: 12}
	addOn := loan
	addOn.IsAddOn = true

	flatRate := charges.Scheme{ChargesPercentage1: dec("4")}

	t.Run("diminishing loan, flat percentage, full term", func(t *testing.T) {
		assert.Equal(t, "200", charges.Compute(flatRate, loan).String())
	})

	t.Run("add-on loan, same configuration", func(t *testing.T) {
		assert.Equal(t, "50", charges.Compute(flatRate, addOn).String())
	})

	t.Run("divisor-scaled flat charge prorated", func(t *testing.T) {
		scheme := charges.Scheme{ChargesAmount: dec("15"), ChargesDivisor: dec("1000"), NumberOfMonths: 6}
		assert.Equal(t, "37.5", charges.Compute(scheme, loan).String())
	})

	t.Run("add-on, both tiers, divisor compounded", func(t *testing.T) {
		scheme := charges.Scheme{
			ChargesPercentage1: dec("4"),
			ChargesPercentage2: dec("2"),
			Anum:               4,
			ChargesAmount:      dec("15"),
			ChargesDivisor:     dec("1000"),
			NumberOfMonths:     6,
		}
		assert.Equal(t, "0.75", charges.Compute(scheme, addOn).String())
	})
}

// =============================================================================
// BREAKDOWN
// =============================================================================

func TestItemize_ReportsComponents(t *testing.T) {
	scheme := charges.Scheme{
		ChargesPercentage1: dec("4"),
		ChargesAmount:      dec("15"),
		ChargesDivisor:     dec("1000"),
		NumberOfMonths:     6,
	}
	loan := charges.Loan{Applied1: dec("5000"), Terms: 12}

	b := charges.Itemize(scheme, loan)

	assert.True(t, dec("4").Equal(b.Rate))
	assert.True(t, dec("37.5").Equal(b.Divisor))
	assert.True(t, b.Percentage.IsZero())
	assert.True(t, b.Flat.IsZero())
	assert.True(t, dec("1.5").Equal(b.Combined))
	assert.True(t, dec("1.5").Equal(b.Amount))
	assert.Equal(t, []charges.Path{charges.PathDivisorCompounded}, b.Paths)
}

func TestItemize_PercentageAndFlatPaths(t *testing.T) {
	scheme := charges.Scheme{ChargesPercentage1: dec("4"), Anum: 1, ChargesAmount: dec("15"), NumberOfMonths: 6}
	loan := charges.Loan{Applied1: dec("5000"), Terms: 12}

	b := charges.Itemize(scheme, loan)

	assert.True(t, dec("100").Equal(b.Percentage))
	assert.True(t, dec("7.5").Equal(b.Flat))
	assert.Equal(t, []charges.Path{charges.PathPercentagePerAnnum, charges.PathFlat}, b.Paths)
}

// =============================================================================
// CLAMPING
// =============================================================================

func TestCompute_ClampsToMaximum(t *testing.T) {
	scheme := charges.Scheme{ChargesPercentage1: dec("4"), MaxAmount: charges.DecPtr("150")}
	loan := charges.Loan{Applied1: dec("5000"), Terms: 12}

	b := charges.Itemize(scheme, loan)

	assert.True(t, dec("200").Equal(b.Combined))
	assert.True(t, dec("150").Equal(b.Amount))
	assert.Contains(t, b.Paths, charges.PathClampedMax)
}

func TestCompute_ClampsToMinimum(t *testing.T) {
	scheme := charges.Scheme{ChargesAmount: dec("15"), ChargesDivisor: dec("1000"), NumberOfMonths: 1,
		MinAmount: charges.DecPtr("10")}
	loan := charges.Loan{Applied1: dec("5000"), Terms: 12}

	b := charges.Itemize(scheme, loan)

	assert.True(t, dec("6.25").Equal(b.Combined))
	assert.True(t, dec("10").Equal(b.Amount))
	assert.Contains(t, b.Paths, charges.PathClampedMin)
}

func TestCompute_WithinBoundsIsUnchanged(t *testing.T) {
	scheme := charges.Scheme{ChargesPercentage1: dec("4"),
		MinAmount: charges.DecPtr("100"), MaxAmount: charges.DecPtr("300")}
	loan := charges.Loan{Applied1: dec("5000"), Terms: 12}

	b := charges.Itemize(scheme, loan)

	assert.True(t, dec("200").Equal(b.Amount))
	assert.NotContains(t, b.Paths, charges.PathClampedMin)
	assert.NotContains(t, b.Paths, charges.PathClampedMax)
}

func TestCompute_ZeroChargeIgnoresMinimum(t *testing.T) {
	// GIVEN: Nothing configured but a minimum
	// THEN: Still zero, nothing was assessed
	scheme := charges.Scheme{MinAmount: charges.DecPtr("25")}
	loan := charges.Loan{Applied1: dec("5000"), Terms: 12}

	assert.True(t, charges.Compute(scheme, loan).IsZero())
}

func TestCompute_MinEqualsMaxPinsAmount(t *testing.T) {
	scheme := charges.Scheme{ChargesPercentage1: dec("1"), NumberOfMonths: 3,
		MinAmount: charges.DecPtr("80"), MaxAmount: charges.DecPtr("80")}
	loan := charges.Loan{Applied1: dec("5000"), Terms: 12}

	assert.True(t, dec("80").Equal(charges.Compute(scheme, loan)))
}
