package payroll

import (
	"errors"
	"time"
)

// Category is the closed set of employment categories. Earnings formulas
// dispatch on it; employees whose stored category does not parse are skipped
// during generation, never guessed.
type Category string

const (
	CategoryPermanent  Category = "permanent"
	CategoryConsultant Category = "consultant"
	CategoryContract   Category = "contract"
)

// ParseCategory maps a stored category string onto the closed enum.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryPermanent, CategoryConsultant, CategoryContract:
		return Category(s), true
	}
	return "", false
}

// DailyRated reports whether earnings accrue per working day on assigned
// projects rather than as a flat monthly salary.
func (c Category) DailyRated() bool {
	return c == CategoryConsultant || c == CategoryContract
}

// Employee is the read-only view of an HR record the engine consumes.
type Employee struct {
	ID            int64
	Name          string
	Category      string
	MonthlySalary *float64
	IsActive      bool
}

// EntryStatus enumerates payroll entry lifecycle values. The only legal
// transition is Generated -> Paid.
type EntryStatus string

const (
	StatusGenerated EntryStatus = "generated"
	StatusPaid      EntryStatus = "paid"
)

// Entry is one payroll row per (employee, month, year).
type Entry struct {
	ID              int64
	EmployeeID      int64
	EmployeeName    string
	Month           time.Month
	Year            int
	WorkingDays     int
	BasicSalary     float64
	TotalAdditions  float64
	TotalDeductions float64
	TotalAmount     float64
	Status          EntryStatus
	// ProjectID tags the GL rows; for daily-rated employees it is the last
	// project that contributed earnings in the period.
	ProjectID *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Addition is a child earning row of an Entry.
type Addition struct {
	ID          int64
	EntryID     int64
	Description string
	Amount      float64
	Automatic   bool
	CreatedAt   time.Time
}

// Deduction is a child withholding row of an Entry.
type Deduction struct {
	ID          int64
	EntryID     int64
	Description string
	Amount      float64
	Automatic   bool
	CreatedAt   time.Time
}

// Assignment links an employee to a project, optionally bounded.
type Assignment struct {
	ID             int64
	EmployeeID     int64
	ProjectID      int64
	ProjectName    string
	ProjectStatus  string
	ProjectEndDate *time.Time
	StartDate      *time.Time
	EndDate        *time.Time
}

const (
	// TaxRate is the flat TDS withholding applied to total earnings.
	TaxRate = 0.05
	// WorkdaysPerMonth is the divisor converting a monthly salary into a
	// daily rate for consultant and contract staff.
	WorkdaysPerMonth = 22.0

	// TaxDeductionLabel marks the automatic withholding row.
	TaxDeductionLabel = "TDS (5%)"
	// ConsultantFeeLabel marks the automatic earnings addition mirroring a
	// daily-rated employee's basic salary.
	ConsultantFeeLabel = "Project Consultant Fee"
)

var (
	// ErrPeriodExists rejects duplicate generation for a period.
	ErrPeriodExists = errors.New("payroll: entries already generated for period")
	// ErrEntryNotFound indicates a missing payroll entry.
	ErrEntryNotFound = errors.New("payroll: entry not found")
	// ErrInvalidAmount rejects non-positive addition/deduction amounts.
	ErrInvalidAmount = errors.New("payroll: amount must be positive")
)
