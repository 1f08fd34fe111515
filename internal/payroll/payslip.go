package payroll

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// RenderPayslip writes a PDF payslip for the entry to w, itemising the
// automatic and manual rows behind its totals.
func RenderPayslip(w io.Writer, entry Entry, additions []Addition, deductions []Deduction) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", entry.EmployeeName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s %d", entry.Month, entry.Year))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Working days: %d", entry.WorkingDays))
	pdf.Ln(10)

	pdf.Cell(0, 8, fmt.Sprintf("Basic salary: %.2f", entry.BasicSalary))
	pdf.Ln(9)

	if len(additions) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "Additions")
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 11)
		for _, a := range additions {
			pdf.Cell(0, 7, fmt.Sprintf("  %s: %.2f", a.Description, a.Amount))
			pdf.Ln(6)
		}
		pdf.Ln(2)
	}
	if len(deductions) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "Deductions")
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 11)
		for _, d := range deductions {
			pdf.Cell(0, 7, fmt.Sprintf("  %s: %.2f", d.Description, d.Amount))
			pdf.Ln(6)
		}
		pdf.Ln(2)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Total additions: %.2f", entry.TotalAdditions))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Total deductions: %.2f", entry.TotalDeductions))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Net pay: %.2f", entry.TotalAmount))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", entry.Status))

	return pdf.Output(w)
}
