package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-erp/meridian-erp/internal/calendar"
	"github.com/meridian-erp/meridian-erp/internal/payroll"
)

// Service aggregates project costs from labor, consumed inventory and asset
// rentals, and keeps asset assignments in sync with the stored actual cost.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RecalculateCost re-derives and persists one project's actual cost.
// Concurrent recalculations of the same project collapse into a single
// computation. A missing project is logged and returns zero with nil error so
// batch callers keep going.
func (s *Service) RecalculateCost(ctx context.Context, projectID int64) (CostBreakdown, error) {
	v, err, _ := s.group.Do(strconv.FormatInt(projectID, 10), func() (any, error) {
		return s.recalculate(ctx, projectID)
	})
	if err != nil {
		return CostBreakdown{}, err
	}
	return v.(CostBreakdown), nil
}

func (s *Service) recalculate(ctx context.Context, projectID int64) (CostBreakdown, error) {
	proj, err := s.repo.GetProject(ctx, projectID)
	if errors.Is(err, ErrProjectNotFound) {
		if s.logger != nil {
			s.logger.Warn("cost recalculation for missing project", slog.Int64("project_id", projectID))
		}
		return CostBreakdown{}, nil
	}
	if err != nil {
		return CostBreakdown{}, err
	}

	labor, err := s.laborCost(ctx, proj)
	if err != nil {
		return CostBreakdown{}, err
	}
	inventory, err := s.repo.ConsumedInventoryCost(ctx, projectID)
	if err != nil {
		return CostBreakdown{}, err
	}
	rental, err := s.rentalCost(ctx, proj)
	if err != nil {
		return CostBreakdown{}, err
	}

	breakdown := CostBreakdown{
		Labor:     round2(labor),
		Inventory: round2(inventory),
		Rental:    round2(rental),
	}
	breakdown.Total = round2(breakdown.Labor + breakdown.Inventory + breakdown.Rental)

	if err := s.repo.UpdateActualCost(ctx, projectID, breakdown.Total); err != nil {
		return CostBreakdown{}, err
	}
	s.cache.SetCost(ctx, projectID, breakdown.Total)
	return breakdown, nil
}

// laborCost prices assigned staff: salaried categories bill the full monthly
// salary, daily-rated ones bill salary/22 per working day in their window.
func (s *Service) laborCost(ctx context.Context, proj Project) (float64, error) {
	rows, err := s.repo.ListLabor(ctx, proj.ID)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, row := range rows {
		category, ok := payroll.ParseCategory(row.Category)
		if !ok {
			if s.logger != nil {
				s.logger.Info("skipping labor row without category",
					slog.Int64("employee_id", row.EmployeeID), slog.String("category", row.Category))
			}
			continue
		}
		salary := 0.0
		if row.MonthlySalary != nil {
			salary = *row.MonthlySalary
		}
		if !category.DailyRated() {
			total += salary
			continue
		}
		start, end, ok := s.costWindow(row.StartDate, row.EndDate, proj)
		if !ok {
			continue
		}
		days := calendar.WorkingDays(start, end)
		total += salary / payroll.WorkdaysPerMonth * float64(days)
	}
	return total, nil
}

func (s *Service) rentalCost(ctx context.Context, proj Project) (float64, error) {
	assignments, err := s.repo.ListAssetAssignments(ctx, proj.ID)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, a := range assignments {
		end := s.now()
		if a.EndDate != nil {
			end = *a.EndDate
		} else if proj.EndDate != nil {
			end = *proj.EndDate
		}
		total += RentalCost(a.StartDate, end, a.MonthlyRate)
	}
	return total, nil
}

// costWindow resolves a labor window, defaulting missing bounds to the
// project's dates and finally to today. Unresolvable windows are skipped.
func (s *Service) costWindow(start, end *time.Time, proj Project) (time.Time, time.Time, bool) {
	from := time.Time{}
	if start != nil {
		from = *start
	} else if proj.StartDate != nil {
		from = *proj.StartDate
	}
	if from.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	to := s.now()
	if end != nil {
		to = *end
	} else if proj.EndDate != nil {
		to = *proj.EndDate
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// ActualCost serves the read path from cache, recalculating on a miss.
func (s *Service) ActualCost(ctx context.Context, projectID int64) (float64, error) {
	if cost, ok := s.cache.GetCost(ctx, projectID); ok {
		return cost, nil
	}
	breakdown, err := s.RecalculateCost(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return breakdown.Total, nil
}

// AssignAsset rents an asset to a project and refreshes the project cost.
func (s *Service) AssignAsset(ctx context.Context, a AssetAssignment) (AssetAssignment, error) {
	if err := validateAssignment(a); err != nil {
		return AssetAssignment{}, err
	}
	created, err := s.repo.CreateAssetAssignment(ctx, a)
	if err != nil {
		return AssetAssignment{}, err
	}
	return created, s.refresh(ctx, created.ProjectID)
}

// UpdateAssetRental edits an assignment's rate or window and refreshes cost.
func (s *Service) UpdateAssetRental(ctx context.Context, a AssetAssignment) error {
	if err := validateAssignment(a); err != nil {
		return err
	}
	existing, err := s.repo.GetAssetAssignment(ctx, a.ID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateAssetAssignment(ctx, a); err != nil {
		return err
	}
	return s.refresh(ctx, existing.ProjectID)
}

// UnassignAsset removes a rental and refreshes the project cost.
func (s *Service) UnassignAsset(ctx context.Context, assignmentID int64) error {
	projectID, err := s.repo.DeleteAssetAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	return s.refresh(ctx, projectID)
}

// RecalculateActiveProjects refreshes every active project, for the nightly
// job. Individual failures are logged and do not stop the sweep.
func (s *Service) RecalculateActiveProjects(ctx context.Context) (int, error) {
	ids, err := s.repo.ListActiveProjectIDs(ctx)
	if err != nil {
		return 0, err
	}
	var done int
	for _, id := range ids {
		if _, err := s.RecalculateCost(ctx, id); err != nil {
			if s.logger != nil {
				s.logger.Error("cost recalculation failed",
					slog.Int64("project_id", id), slog.String("error", err.Error()))
			}
			continue
		}
		done++
	}
	return done, nil
}

func (s *Service) refresh(ctx context.Context, projectID int64) error {
	s.cache.Invalidate(ctx, projectID)
	_, err := s.RecalculateCost(ctx, projectID)
	return err
}

func validateAssignment(a AssetAssignment) error {
	if a.ProjectID <= 0 || a.AssetID <= 0 {
		return fmt.Errorf("%w: project and asset required", ErrInvalidAssignment)
	}
	if a.MonthlyRate <= 0 {
		return fmt.Errorf("%w: monthly rate must be positive", ErrInvalidAssignment)
	}
	if a.StartDate.IsZero() {
		return fmt.Errorf("%w: start date required", ErrInvalidAssignment)
	}
	if a.EndDate != nil && a.EndDate.Before(a.StartDate) {
		return fmt.Errorf("%w: end date before start", ErrInvalidAssignment)
	}
	return nil
}
