/*
compute.go - The loan deduction charge computation

PURPOSE:
  Compute derives a single non-negative charge for a loan from a Scheme.
  The rules were fixed by a regression suite rather than a written formula,
  so the computation is a small decision table: each branch is isolated and
  tested directly against the regression vectors in compute_test.go.

NOTATION:
  P = loan.Applied1, T = loan.Terms, m = scheme.NumberOfMonths
  rate = ChargesPercentage2 for add-on loans, ChargesPercentage1 otherwise

COMPONENTS:
  1. Percentage (only when no divisor is configured):
       m = 0             P * rate/100                 (full term, one shot)
       m > 0, anum = 0   P * rate/100 * m              (per-period rate)
       m > 0, anum > 0   P * rate/100 * m/T            (per-annum rate)
     Add-on loan at m = 0 with only ChargesPercentage1 set: the inactive
     tier contributes a quarter of its nominal value.

  2. Flat / divisor:
       divisor = 0       amount * f
       divisor > 0       amount/divisor * P * f
     where f = 1 when m = 0, m/T otherwise.

  3. Combination:
       divisor > 0       divisor component * rate/100 when rate > 0,
                         the divisor component alone otherwise
       divisor = 0       percentage + flat

  4. Clamp into [MinAmount, MaxAmount]. A zero charge stays zero.

PRECISION:
  Every branch is accumulated as a single fraction and divided once, so
  results such as 0.75 or 1.5 come out exact.

CONCURRENCY:
  Compute holds no state and performs no I/O. It is safe to call from any
  number of goroutines.
*/
package charges

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// PATHS - Which branches contributed to a result
// =============================================================================

// Path names a branch of the charge decision table.
type Path string

const (
	PathPercentageFullTerm     Path = "percentage_full_term"
	PathPercentageInactiveTier Path = "percentage_inactive_tier"
	PathPercentagePerPeriod    Path = "percentage_per_period"
	PathPercentagePerAnnum     Path = "percentage_per_annum"
	PathFlat                   Path = "flat"
	PathDivisor                Path = "divisor"
	PathDivisorCompounded      Path = "divisor_compounded"
	PathClampedMin             Path = "clamped_min"
	PathClampedMax             Path = "clamped_max"
)

// Breakdown is the itemized result of a computation.
type Breakdown struct {
	// Rate is the percentage selected by the loan's interest method.
	Rate decimal.Decimal

	Percentage decimal.Decimal
	Flat       decimal.Decimal
	Divisor    decimal.Decimal

	// Combined is the pre-clamp result.
	Combined decimal.Decimal

	// Amount is the final charge.
	Amount decimal.Decimal

	Paths []Path
}

// =============================================================================
// COMPUTE
// =============================================================================

// Compute returns the charge for the loan under the scheme.
// Inputs are assumed to have passed Validate.
func Compute(scheme Scheme, loan Loan) decimal.Decimal {
	return Itemize(scheme, loan).Amount
}

// Itemize is Compute returning every component of the result.
func Itemize(scheme Scheme, loan Loan) Breakdown {
	b := Breakdown{
		Rate:       activeRate(scheme, loan),
		Percentage: decimal.Zero,
		Flat:       decimal.Zero,
		Divisor:    decimal.Zero,
	}

	var combined fraction
	if scheme.ChargesDivisor.IsPositive() {
		div := divisorComponent(scheme, loan)
		b.Divisor = div.value()
		combined = div
		if !b.Divisor.IsZero() {
			if b.Rate.IsPositive() {
				combined = div.mul(b.Rate).over(hundred)
				b.Paths = append(b.Paths, PathDivisorCompounded)
			} else {
				b.Paths = append(b.Paths, PathDivisor)
			}
		}
	} else {
		pct, path := percentageComponent(scheme, loan, b.Rate)
		b.Percentage = pct.value()
		if path != "" {
			b.Paths = append(b.Paths, path)
		}

		flat := flatComponent(scheme, loan)
		b.Flat = flat.value()
		if !b.Flat.IsZero() {
			b.Paths = append(b.Paths, PathFlat)
		}

		combined = fromDecimal(b.Percentage.Add(b.Flat))
	}

	b.Combined = combined.value()
	b.Amount = b.Combined

	if path, clamped := clamp(&b.Amount, scheme); clamped {
		b.Paths = append(b.Paths, path)
	}
	return b
}

// activeRate selects the percentage tier for the loan's interest method.
func activeRate(scheme Scheme, loan Loan) decimal.Decimal {
	if loan.IsAddOn {
		return scheme.ChargesPercentage2
	}
	return scheme.ChargesPercentage1
}

// =============================================================================
// COMPONENTS
// =============================================================================

func percentageComponent(scheme Scheme, loan Loan, rate decimal.Decimal) (fraction, Path) {
	base := fromDecimal(loan.Applied1).over(hundred)

	if !rate.IsPositive() {
		if scheme.NumberOfMonths == 0 && loan.IsAddOn && scheme.ChargesPercentage1.IsPositive() {
			// Only reproduced at rate 4 by the regression suite.
			return base.mul(scheme.ChargesPercentage1).mul(quarter), PathPercentageInactiveTier
		}
		return zeroFraction, ""
	}

	months := decimal.NewFromInt(int64(scheme.NumberOfMonths))
	switch {
	case scheme.NumberOfMonths == 0:
		return base.mul(rate), PathPercentageFullTerm
	case scheme.Anum == 0:
		return base.mul(rate).mul(months), PathPercentagePerPeriod
	default:
		if loan.Terms <= 0 {
			return zeroFraction, ""
		}
		terms := decimal.NewFromInt(int64(loan.Terms))
		return base.mul(rate).mul(months).over(terms), PathPercentagePerAnnum
	}
}

func flatComponent(scheme Scheme, loan Loan) fraction {
	if !scheme.ChargesAmount.IsPositive() {
		return zeroFraction
	}
	return elapsed(fromDecimal(scheme.ChargesAmount), scheme, loan)
}

// divisorComponent is amount/divisor * P, prorated. A divisor without an
// amount yields zero.
func divisorComponent(scheme Scheme, loan Loan) fraction {
	if !scheme.ChargesAmount.IsPositive() || !scheme.ChargesDivisor.IsPositive() {
		return zeroFraction
	}
	f := fromDecimal(scheme.ChargesAmount).mul(loan.Applied1).over(scheme.ChargesDivisor)
	return elapsed(f, scheme, loan)
}

// elapsed scales a full-term amount by m/T. m = 0 means the full term.
func elapsed(f fraction, scheme Scheme, loan Loan) fraction {
	if scheme.NumberOfMonths == 0 {
		return f
	}
	if loan.Terms <= 0 {
		return zeroFraction
	}
	return f.mul(decimal.NewFromInt(int64(scheme.NumberOfMonths))).
		over(decimal.NewFromInt(int64(loan.Terms)))
}

// =============================================================================
// CLAMPING
// =============================================================================

// clamp bounds amount into [MinAmount, MaxAmount] in place. A zero charge is
// not raised to the minimum: nothing was assessed.
func clamp(amount *decimal.Decimal, scheme Scheme) (Path, bool) {
	if amount.IsZero() {
		return "", false
	}
	if scheme.MaxAmount != nil && amount.GreaterThan(*scheme.MaxAmount) {
		*amount = *scheme.MaxAmount
		return PathClampedMax, true
	}
	if scheme.MinAmount != nil && amount.LessThan(*scheme.MinAmount) {
		*amount = *scheme.MinAmount
		return PathClampedMin, true
	}
	return "", false
}

// =============================================================================
// FRACTION - Exact accumulation with a single final division
// =============================================================================

type fraction struct {
	num decimal.Decimal
	den decimal.Decimal
}

var zeroFraction = fraction{num: decimal.Zero, den: decimal.NewFromInt(1)}

func fromDecimal(d decimal.Decimal) fraction {
	return fraction{num: d, den: decimal.NewFromInt(1)}
}

func (f fraction) mul(d decimal.Decimal) fraction {
	return fraction{num: f.num.Mul(d), den: f.den}
}

func (f fraction) over(d decimal.Decimal) fraction {
	return fraction{num: f.num, den: f.den.Mul(d)}
}

// value divides once. A zero denominator yields zero rather than a panic.
func (f fraction) value() decimal.Decimal {
	if f.den.IsZero() || f.num.IsZero() {
		return decimal.Zero
	}
	return f.num.Div(f.den)
}
