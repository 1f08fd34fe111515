package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// ErrChildNotFound indicates a missing or non-editable addition/deduction row.
var ErrChildNotFound = errors.New("payroll: addition/deduction not found or not editable")

// Repository encapsulates DB operations for payroll.
type Repository interface {
	ListActiveEmployees(ctx context.Context) ([]Employee, error)
	ListAssignments(ctx context.Context, employeeID int64) ([]Assignment, error)
	GetEntry(ctx context.Context, id int64) (Entry, error)
	ListEntries(ctx context.Context, month time.Month, year int) ([]Entry, error)
	PeriodExists(ctx context.Context, month time.Month, year int) (bool, error)
	ListAdditions(ctx context.Context, entryID int64) ([]Addition, error)
	ListDeductions(ctx context.Context, entryID int64) ([]Deduction, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction. Ledger gives
// access to GL writes on the same transaction so entry totals and their GL
// mirror can never diverge on a partial failure.
type TxRepository interface {
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	GetEntryForUpdate(ctx context.Context, id int64) (Entry, error)
	UpdateEntryTotals(ctx context.Context, id int64, additions, deductions, total float64) error
	UpdateEntryStatus(ctx context.Context, id int64, status EntryStatus) error
	InsertAddition(ctx context.Context, a Addition) (Addition, error)
	InsertDeduction(ctx context.Context, d Deduction) (Deduction, error)
	UpdateAddition(ctx context.Context, id int64, description string, amount float64) (int64, error)
	UpdateDeduction(ctx context.Context, id int64, description string, amount float64) (int64, error)
	DeleteAddition(ctx context.Context, id int64) (int64, error)
	DeleteDeduction(ctx context.Context, id int64) (int64, error)
	SumChildren(ctx context.Context, entryID int64) (additions, deductions float64, err error)
	DeleteEntriesForPeriod(ctx context.Context, month time.Month, year int) ([]int64, error)

	Ledger() ledger.TxRepository
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed payroll repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) ListActiveEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, COALESCE(category,''), monthly_salary, is_active
FROM employees WHERE is_active ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var employees []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.MonthlySalary, &e.IsActive); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (r *repository) ListAssignments(ctx context.Context, employeeID int64) ([]Assignment, error) {
	rows, err := r.db.Query(ctx, `SELECT pa.id, pa.employee_id, pa.project_id, p.name, p.status, p.end_date, pa.start_date, pa.end_date
FROM project_assignments pa
JOIN projects p ON p.id = pa.project_id
WHERE pa.employee_id = $1
ORDER BY pa.id ASC`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.ProjectID, &a.ProjectName, &a.ProjectStatus, &a.ProjectEndDate, &a.StartDate, &a.EndDate); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

const entryColumns = `id, employee_id, employee_name, month, year, working_days, basic_salary,
total_additions, total_deductions, total_amount, status, project_id, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var month int
	err := row.Scan(&e.ID, &e.EmployeeID, &e.EmployeeName, &month, &e.Year, &e.WorkingDays, &e.BasicSalary,
		&e.TotalAdditions, &e.TotalDeductions, &e.TotalAmount, &e.Status, &e.ProjectID, &e.CreatedAt, &e.UpdatedAt)
	e.Month = time.Month(month)
	return e, err
}

func (r *repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	e, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM payroll_entries WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *repository) ListEntries(ctx context.Context, month time.Month, year int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM payroll_entries WHERE month=$1 AND year=$2 ORDER BY employee_id ASC`, int(month), year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) PeriodExists(ctx context.Context, month time.Month, year int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payroll_entries WHERE month=$1 AND year=$2)`, int(month), year).Scan(&exists)
	return exists, err
}

func (r *repository) ListAdditions(ctx context.Context, entryID int64) ([]Addition, error) {
	rows, err := r.db.Query(ctx, `SELECT id, entry_id, description, amount, automatic, created_at
FROM payroll_additions WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var additions []Addition
	for rows.Next() {
		var a Addition
		if err := rows.Scan(&a.ID, &a.EntryID, &a.Description, &a.Amount, &a.Automatic, &a.CreatedAt); err != nil {
			return nil, err
		}
		additions = append(additions, a)
	}
	return additions, rows.Err()
}

func (r *repository) ListDeductions(ctx context.Context, entryID int64) ([]Deduction, error) {
	rows, err := r.db.Query(ctx, `SELECT id, entry_id, description, amount, automatic, created_at
FROM payroll_deductions WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deductions []Deduction
	for rows.Next() {
		var d Deduction
		if err := rows.Scan(&d.ID, &d.EntryID, &d.Description, &d.Amount, &d.Automatic, &d.CreatedAt); err != nil {
			return nil, err
		}
		deductions = append(deductions, d)
	}
	return deductions, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(r.tx)
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payroll_entries
(employee_id, employee_name, month, year, working_days, basic_salary, total_additions, total_deductions, total_amount, status, project_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id, created_at, updated_at`,
		e.EmployeeID, e.EmployeeName, int(e.Month), e.Year, e.WorkingDays,
		toNumeric(e.BasicSalary), toNumeric(e.TotalAdditions), toNumeric(e.TotalDeductions), toNumeric(e.TotalAmount),
		e.Status, e.ProjectID)
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Entry{}, ErrPeriodExists
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, id int64) (Entry, error) {
	e, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM payroll_entries WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) UpdateEntryTotals(ctx context.Context, id int64, additions, deductions, total float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE payroll_entries
SET total_additions=$2, total_deductions=$3, total_amount=$4, updated_at=NOW() WHERE id=$1`,
		id, toNumeric(additions), toNumeric(deductions), toNumeric(total))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) UpdateEntryStatus(ctx context.Context, id int64, status EntryStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE payroll_entries SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) InsertAddition(ctx context.Context, a Addition) (Addition, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payroll_additions (entry_id, description, amount, automatic)
VALUES ($1,$2,$3,$4) RETURNING id, created_at`, a.EntryID, a.Description, toNumeric(a.Amount), a.Automatic)
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		return Addition{}, err
	}
	return a, nil
}

func (r *txRepository) InsertDeduction(ctx context.Context, d Deduction) (Deduction, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payroll_deductions (entry_id, description, amount, automatic)
VALUES ($1,$2,$3,$4) RETURNING id, created_at`, d.EntryID, d.Description, toNumeric(d.Amount), d.Automatic)
	if err := row.Scan(&d.ID, &d.CreatedAt); err != nil {
		return Deduction{}, err
	}
	return d, nil
}

func (r *txRepository) UpdateAddition(ctx context.Context, id int64, description string, amount float64) (int64, error) {
	return r.updateChild(ctx, "payroll_additions", id, description, amount)
}

func (r *txRepository) UpdateDeduction(ctx context.Context, id int64, description string, amount float64) (int64, error) {
	return r.updateChild(ctx, "payroll_deductions", id, description, amount)
}

func (r *txRepository) DeleteAddition(ctx context.Context, id int64) (int64, error) {
	return r.deleteChild(ctx, "payroll_additions", id)
}

func (r *txRepository) DeleteDeduction(ctx context.Context, id int64) (int64, error) {
	return r.deleteChild(ctx, "payroll_deductions", id)
}

// updateChild edits a manual row only; automatic rows are formula-owned.
func (r *txRepository) updateChild(ctx context.Context, table string, id int64, description string, amount float64) (int64, error) {
	var entryID int64
	err := r.tx.QueryRow(ctx, `UPDATE `+table+` SET description=$2, amount=$3
WHERE id=$1 AND NOT automatic RETURNING entry_id`, id, description, toNumeric(amount)).Scan(&entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrChildNotFound
		}
		return 0, err
	}
	return entryID, nil
}

func (r *txRepository) deleteChild(ctx context.Context, table string, id int64) (int64, error) {
	var entryID int64
	err := r.tx.QueryRow(ctx, `DELETE FROM `+table+` WHERE id=$1 AND NOT automatic RETURNING entry_id`, id).Scan(&entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrChildNotFound
		}
		return 0, err
	}
	return entryID, nil
}

func (r *txRepository) SumChildren(ctx context.Context, entryID int64) (float64, float64, error) {
	var additions, deductions float64
	err := r.tx.QueryRow(ctx, `SELECT
COALESCE((SELECT SUM(amount) FROM payroll_additions WHERE entry_id=$1), 0),
COALESCE((SELECT SUM(amount) FROM payroll_deductions WHERE entry_id=$1), 0)`, entryID).Scan(&additions, &deductions)
	return additions, deductions, err
}

func (r *txRepository) DeleteEntriesForPeriod(ctx context.Context, month time.Month, year int) ([]int64, error) {
	// Child rows cascade via FK; GL rows are the caller's responsibility.
	rows, err := r.tx.Query(ctx, `DELETE FROM payroll_entries WHERE month=$1 AND year=$2 RETURNING id`, int(month), year)
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

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
