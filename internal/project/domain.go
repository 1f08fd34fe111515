package project

import (
	"errors"
	"time"
)

var (
	ErrProjectNotFound    = errors.New("project: not found")
	ErrAssignmentNotFound = errors.New("project: asset assignment not found")
	ErrInvalidAssignment  = errors.New("project: invalid asset assignment")
)

// Project is the read model the cost aggregator works against.
type Project struct {
	ID         int64
	Name       string
	Status     string
	BudgetCost float64
	ActualCost float64
	StartDate  *time.Time
	EndDate    *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AssetAssignment rents an asset to a project for a date window at a monthly
// rate. A nil end date means the rental is still open.
type AssetAssignment struct {
	ID          int64
	ProjectID   int64
	AssetID     int64
	AssetName   string
	MonthlyRate float64
	StartDate   time.Time
	EndDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LaborRow is one employee assigned to the project, as costed by the
// aggregator. Daily-rated categories bill per working day in the window.
type LaborRow struct {
	EmployeeID    int64
	Category      string
	MonthlySalary *float64
	StartDate     *time.Time
	EndDate       *time.Time
}

// CostBreakdown itemises a recalculated project cost.
type CostBreakdown struct {
	Labor     float64
	Inventory float64
	Rental    float64
	Total     float64
}
