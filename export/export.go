/*
Package export renders charge schedules and assessment histories as XLSX.

PURPOSE:
  Loan officers hand borrowers a printed breakdown of recurring charges and
  auditors pull a loan's assessment log into a spreadsheet. Both are plain
  tables: one header row, one row per line.

COLUMNS:
  Each table is described by a column list (header + value func). Decimal
  values are written as numbers rounded to cents so spreadsheet formulas work.
  The exact value is kept in a separate text column where auditors need it.

SEE ALSO:
  - charges/schedule.go: ScheduleLine
  - charges/assessment.go: Assessment
  - api/handlers.go: ?format=xlsx on the schedule endpoint
*/
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/charge-engine/charges"
	"github.com/xuri/excelize/v2"
)

const (
	ScheduleSheet    = "Schedule"
	AssessmentsSheet = "Assessments"
)

// Column is one spreadsheet column of a row type.
type Column[T any] struct {
	Header string
	Value  func(T) any
}

// =============================================================================
// SCHEDULE
// =============================================================================

var scheduleColumns = []Column[charges.ScheduleLine]{
	{Header: "Month", Value: func(l charges.ScheduleLine) any { return l.Month }},
	{Header: "Cumulative charge", Value: func(l charges.ScheduleLine) any { return cents(l.Cumulative) }},
	{Header: "Charge this month", Value: func(l charges.ScheduleLine) any { return cents(l.Delta) }},
	{Header: "Rule", Value: func(l charges.ScheduleLine) any { return joinPaths(l.Paths) }},
}

// WriteSchedule writes a schedule workbook to w. The last row is the total.
func WriteSchedule(w io.Writer, title string, lines []charges.ScheduleLine) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), ScheduleSheet)
	_ = f.SetDocProps(&excelize.DocProperties{Title: title, Creator: "charge-engine"})

	row, err := writeTable(f, ScheduleSheet, scheduleColumns, lines)
	if err != nil {
		return err
	}

	if len(lines) > 0 {
		if err := setCell(f, ScheduleSheet, 1, row, "Total"); err != nil {
			return err
		}
		if err := setCell(f, ScheduleSheet, 3, row, cents(charges.ScheduleTotal(lines))); err != nil {
			return err
		}
	}

	return write(f, w)
}

// =============================================================================
// ASSESSMENTS
// =============================================================================

var assessmentColumns = []Column[charges.Assessment]{
	{Header: "Assessed at", Value: func(a charges.Assessment) any { return a.CreatedAt.UTC().Format("2006-01-02 15:04:05") }},
	{Header: "Assessment ID", Value: func(a charges.Assessment) any { return string(a.ID) }},
	{Header: "Scheme", Value: func(a charges.Assessment) any { return string(a.SchemeID) }},
	{Header: "Scheme version", Value: func(a charges.Assessment) any { return a.SchemeVersion }},
	{Header: "Principal", Value: func(a charges.Assessment) any { return cents(a.Loan.Applied1) }},
	{Header: "Terms", Value: func(a charges.Assessment) any { return a.Loan.Terms }},
	{Header: "Add-on", Value: func(a charges.Assessment) any { return a.Loan.IsAddOn }},
	{Header: "Amount", Value: func(a charges.Assessment) any { return cents(a.Amount) }},
	{Header: "Exact amount", Value: func(a charges.Assessment) any { return a.Exact.String() }},
	{Header: "Rule", Value: func(a charges.Assessment) any { return joinPaths(a.Paths) }},
	{Header: "Created by", Value: func(a charges.Assessment) any { return a.CreatedBy }},
}

// WriteAssessments writes a loan's assessment log to w.
func WriteAssessments(w io.Writer, loanID charges.LoanID, list []charges.Assessment) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), AssessmentsSheet)
	_ = f.SetDocProps(&excelize.DocProperties{Title: fmt.Sprintf("Charges for loan %s", loanID), Creator: "charge-engine"})

	if _, err := writeTable(f, AssessmentsSheet, assessmentColumns, list); err != nil {
		return err
	}
	return write(f, w)
}

// =============================================================================
// HELPERS
// =============================================================================

// writeTable writes the header and rows and returns the next free row.
func writeTable[T any](f *excelize.File, sheet string, cols []Column[T], rows []T) (int, error) {
	for i, col := range cols {
		if err := setCell(f, sheet, i+1, 1, col.Header); err != nil {
			return 0, err
		}
	}

	rowIdx := 2
	for _, r := range rows {
		for colIdx, col := range cols {
			if err := setCell(f, sheet, colIdx+1, rowIdx, col.Value(r)); err != nil {
				return 0, err
			}
		}
		rowIdx++
	}
	return rowIdx, nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, v)
}

func write(f *excelize.File, w io.Writer) error {
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cents(d decimal.Decimal) float64 {
	return charges.RoundCents(d).InexactFloat64()
}

func joinPaths(paths []charges.Path) string {
	s := make([]string, len(paths))
	for i, p := range paths {
		s[i] = string(p)
	}
	return strings.Join(s, ", ")
}
