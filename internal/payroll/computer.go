package payroll

import (
	"log/slog"
	"math"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/calendar"
)

// Computed is the earnings picture for one employee in one period, before
// persistence. Additions holds only the automatic rows the formula creates.
type Computed struct {
	EmployeeID   int64
	EmployeeName string
	WorkingDays  int
	BasicSalary  float64
	Additions    []Addition
	Deductions   []Deduction
	ProjectID    *int64
}

// TotalAdditions sums the automatic addition rows.
func (c Computed) TotalAdditions() float64 {
	var sum float64
	for _, a := range c.Additions {
		sum += a.Amount
	}
	return Round2(sum)
}

// TotalDeductions sums the automatic deduction rows.
func (c Computed) TotalDeductions() float64 {
	var sum float64
	for _, d := range c.Deductions {
		sum += d.Amount
	}
	return Round2(sum)
}

// Computer derives per-employee monthly earnings. It is pure apart from
// warn-level logging for defaulted assignment bounds.
type Computer struct {
	logger *slog.Logger
}

// NewComputer builds a Computer.
func NewComputer(logger *slog.Logger) *Computer {
	return &Computer{logger: logger}
}

// Compute returns the earnings for one employee, or ok=false when the
// employee must be skipped (unrecognised category).
func (c *Computer) Compute(emp Employee, assignments []Assignment, month time.Month, year int) (Computed, bool) {
	category, ok := ParseCategory(emp.Category)
	if !ok {
		if c.logger != nil {
			c.logger.Info("skipping employee without category",
				slog.Int64("employee_id", emp.ID), slog.String("category", emp.Category))
		}
		return Computed{}, false
	}

	out := Computed{EmployeeID: emp.ID, EmployeeName: emp.Name}
	salary := 0.0
	if emp.MonthlySalary != nil {
		salary = *emp.MonthlySalary
	}

	if !category.DailyRated() {
		out.BasicSalary = Round2(salary)
		out.WorkingDays = calendar.DaysInMonth(month, year)
		c.withhold(&out)
		return out, true
	}

	monthStart, monthEnd := calendar.MonthBounds(month, year)
	dailyRate := salary / WorkdaysPerMonth
	for _, a := range assignments {
		if a.ProjectStatus != "active" && a.ProjectStatus != "planning" {
			continue
		}
		start := monthStart
		if a.StartDate != nil {
			start = *a.StartDate
		}
		end := monthEnd
		switch {
		case a.EndDate != nil:
			end = *a.EndDate
		case a.ProjectEndDate != nil:
			end = *a.ProjectEndDate
			c.warnDefaultedEnd(emp.ID, a.ProjectID, "project planned end")
		default:
			c.warnDefaultedEnd(emp.ID, a.ProjectID, "last day of month")
		}
		overlapStart, overlapEnd, ok := calendar.Overlap(start, end, monthStart, monthEnd)
		if !ok {
			continue
		}
		days := calendar.WorkingDays(overlapStart, overlapEnd)
		if days == 0 {
			continue
		}
		out.BasicSalary += dailyRate * float64(days)
		out.WorkingDays += days
		projectID := a.ProjectID
		out.ProjectID = &projectID
	}
	out.BasicSalary = Round2(out.BasicSalary)
	// Withholding is derived before the consultant fee row exists, so the
	// fee never feeds its own tax base.
	c.withhold(&out)
	if out.BasicSalary > 0 {
		// For daily-rated staff the earnings are booked as an addition too,
		// mirroring the basic salary.
		out.Additions = append(out.Additions, Addition{
			Description: ConsultantFeeLabel,
			Amount:      out.BasicSalary,
			Automatic:   true,
		})
	}
	return out, true
}

// withhold appends the automatic tax row. It is always created, even at zero.
func (c *Computer) withhold(out *Computed) {
	out.Deductions = append(out.Deductions, Deduction{
		Description: TaxDeductionLabel,
		Amount:      Tax(out.BasicSalary, out.TotalAdditions()),
		Automatic:   true,
	})
}

// Tax derives the automatic withholding from total earnings.
func Tax(basicSalary, totalAdditions float64) float64 {
	return Round2(TaxRate * (basicSalary + totalAdditions))
}

// Round2 rounds a money amount to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (c *Computer) warnDefaultedEnd(employeeID, projectID int64, fallback string) {
	if c.logger != nil {
		c.logger.Warn("assignment missing end date, defaulting",
			slog.Int64("employee_id", employeeID),
			slog.Int64("project_id", projectID),
			slog.String("fallback", fallback))
	}
}
