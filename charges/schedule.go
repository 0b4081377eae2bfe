package charges

import "github.com/shopspring/decimal"

// =============================================================================
// SCHEDULE - Month-by-month preview of a recurring charge
// =============================================================================

// ScheduleLine is the charge assessed when a given number of months of the
// term have elapsed.
type ScheduleLine struct {
	Month int

	// Cumulative is the charge with NumberOfMonths set to Month.
	Cumulative decimal.Decimal

	// Delta is Cumulative minus the previous line's Cumulative. For a
	// prorated charge it is the per-month installment; it can be negative
	// when clamping flattens later months.
	Delta decimal.Decimal

	Paths []Path
}

// Schedule previews the charge for every elapsed month 1..loan.Terms.
// The scheme's own NumberOfMonths is ignored. Returns nil for a loan with
// no terms or with more than MaxTerms.
func Schedule(scheme Scheme, loan Loan) []ScheduleLine {
	if loan.Terms <= 0 || loan.Terms > MaxTerms {
		return nil
	}

	lines := make([]ScheduleLine, 0, loan.Terms)
	previous := decimal.Zero
	for month := 1; month <= loan.Terms; month++ {
		b := Itemize(scheme.WithMonths(month), loan)
		lines = append(lines, ScheduleLine{
			Month:      month,
			Cumulative: b.Amount,
			Delta:      b.Amount.Sub(previous),
			Paths:      b.Paths,
		})
		previous = b.Amount
	}
	return lines
}

// ScheduleTotal returns the cumulative charge at the last month.
func ScheduleTotal(lines []ScheduleLine) decimal.Decimal {
	if len(lines) == 0 {
		return decimal.Zero
	}
	return lines[len(lines)-1].Cumulative
}
