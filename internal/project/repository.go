package project

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository encapsulates DB operations for projects and their cost inputs.
type Repository interface {
	GetProject(ctx context.Context, id int64) (Project, error)
	ListActiveProjectIDs(ctx context.Context) ([]int64, error)
	UpdateActualCost(ctx context.Context, id int64, cost float64) error

	ListLabor(ctx context.Context, projectID int64) ([]LaborRow, error)
	ConsumedInventoryCost(ctx context.Context, projectID int64) (float64, error)

	ListAssetAssignments(ctx context.Context, projectID int64) ([]AssetAssignment, error)
	GetAssetAssignment(ctx context.Context, id int64) (AssetAssignment, error)
	CreateAssetAssignment(ctx context.Context, a AssetAssignment) (AssetAssignment, error)
	UpdateAssetAssignment(ctx context.Context, a AssetAssignment) error
	DeleteAssetAssignment(ctx context.Context, id int64) (int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed project repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetProject(ctx context.Context, id int64) (Project, error) {
	var p Project
	err := r.db.QueryRow(ctx, `SELECT id, name, status, budget_cost, actual_cost, start_date, end_date, created_at, updated_at
FROM projects WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Status, &p.BudgetCost, &p.ActualCost, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, ErrProjectNotFound
	}
	return p, err
}

func (r *repository) ListActiveProjectIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM projects WHERE status IN ('active','planning') ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) UpdateActualCost(ctx context.Context, id int64, cost float64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE projects SET actual_cost=$2, updated_at=NOW() WHERE id=$1`, id, cost)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *repository) ListLabor(ctx context.Context, projectID int64) ([]LaborRow, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.category, e.monthly_salary, pa.start_date, pa.end_date
FROM project_assignments pa
JOIN employees e ON e.id = pa.employee_id
WHERE pa.project_id=$1 AND e.is_active`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LaborRow
	for rows.Next() {
		var l LaborRow
		if err := rows.Scan(&l.EmployeeID, &l.Category, &l.MonthlySalary, &l.StartDate, &l.EndDate); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ConsumedInventoryCost values each consumption movement at the product's
// moving-average unit cost.
func (r *repository) ConsumedInventoryCost(ctx context.Context, projectID int64) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(m.qty * b.avg_cost), 0)
FROM inventory_movements m
JOIN inventory_balances b ON b.warehouse_id = m.warehouse_id AND b.product_id = m.product_id
WHERE m.project_id=$1 AND m.movement_type='consumption'`, projectID).Scan(&total)
	return total, err
}

const assignmentColumns = `a.id, a.project_id, a.asset_id, s.name, a.monthly_rate, a.start_date, a.end_date, a.created_at, a.updated_at`

func scanAssignment(row pgx.Row) (AssetAssignment, error) {
	var a AssetAssignment
	err := row.Scan(&a.ID, &a.ProjectID, &a.AssetID, &a.AssetName, &a.MonthlyRate, &a.StartDate, &a.EndDate, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) ListAssetAssignments(ctx context.Context, projectID int64) ([]AssetAssignment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+assignmentColumns+`
FROM asset_assignments a JOIN assets s ON s.id = a.asset_id
WHERE a.project_id=$1 ORDER BY a.id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AssetAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) GetAssetAssignment(ctx context.Context, id int64) (AssetAssignment, error) {
	a, err := scanAssignment(r.db.QueryRow(ctx, `SELECT `+assignmentColumns+`
FROM asset_assignments a JOIN assets s ON s.id = a.asset_id WHERE a.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return AssetAssignment{}, ErrAssignmentNotFound
	}
	return a, err
}

func (r *repository) CreateAssetAssignment(ctx context.Context, a AssetAssignment) (AssetAssignment, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO asset_assignments (project_id, asset_id, monthly_rate, start_date, end_date)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		a.ProjectID, a.AssetID, a.MonthlyRate, a.StartDate, a.EndDate).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return AssetAssignment{}, err
	}
	return a, nil
}

func (r *repository) UpdateAssetAssignment(ctx context.Context, a AssetAssignment) error {
	cmd, err := r.db.Exec(ctx, `UPDATE asset_assignments
SET monthly_rate=$2, start_date=$3, end_date=$4, updated_at=NOW() WHERE id=$1`,
		a.ID, a.MonthlyRate, a.StartDate, a.EndDate)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func (r *repository) DeleteAssetAssignment(ctx context.Context, id int64) (int64, error) {
	var projectID int64
	err := r.db.QueryRow(ctx, `DELETE FROM asset_assignments WHERE id=$1 RETURNING project_id`, id).Scan(&projectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAssignmentNotFound
	}
	return projectID, err
}
