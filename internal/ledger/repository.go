package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository encapsulates DB operations for the general ledger.
type Repository interface {
	ListByReference(ctx context.Context, refType ReferenceType, refID int64) ([]Entry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	InsertEntry(ctx context.Context, txnID uuid.UUID, refType ReferenceType, refID int64, line LineInput) (Entry, error)
	EntriesForReference(ctx context.Context, refType ReferenceType, refID int64) ([]Entry, error)
	UpdateEntryAmounts(ctx context.Context, entryID int64, debit, credit float64, description string) error
	DeleteByReference(ctx context.Context, refType ReferenceType, refID int64) (int64, error)
	LinkSource(ctx context.Context, refType ReferenceType, refID int64) error

	// AddProjectCost accumulates a posted payable credit into the project's
	// running actual cost within the same transaction.
	AddProjectCost(ctx context.Context, projectID int64, amount float64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed ledger repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, txn_id, entry_type, reference_type, reference_id, account_name, description,
debit_amount, credit_amount, entity_id, entity_name, project_id, transaction_date, status, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.TxnID, &e.EntryType, &e.ReferenceType, &e.ReferenceID, &e.AccountName, &e.Description,
		&e.DebitAmount, &e.CreditAmount, &e.EntityID, &e.EntityName, &e.ProjectID, &e.TransactionDate, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) ListByReference(ctx context.Context, refType ReferenceType, refID int64) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM general_ledger_entries
WHERE reference_type=$1 AND reference_id=$2 ORDER BY id ASC`, refType, refID)
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

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an already open transaction so other orchestrators
// can post GL rows atomically with their own writes.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) InsertEntry(ctx context.Context, txnID uuid.UUID, refType ReferenceType, refID int64, line LineInput) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO general_ledger_entries
(txn_id, entry_type, reference_type, reference_id, account_name, description, debit_amount, credit_amount, entity_id, entity_name, project_id, transaction_date, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,'ACTIVE')
RETURNING id, created_at, updated_at`,
		txnID, line.EntryType, refType, refID, line.AccountName, line.Description,
		toNumeric(line.DebitAmount), toNumeric(line.CreditAmount), line.EntityID, line.EntityName, line.ProjectID, line.TransactionDate)
	entry := Entry{
		TxnID:           txnID,
		EntryType:       line.EntryType,
		ReferenceType:   refType,
		ReferenceID:     refID,
		AccountName:     line.AccountName,
		Description:     line.Description,
		DebitAmount:     line.DebitAmount,
		CreditAmount:    line.CreditAmount,
		EntityID:        line.EntityID,
		EntityName:      line.EntityName,
		ProjectID:       line.ProjectID,
		TransactionDate: line.TransactionDate,
		Status:          EntryStatusActive,
	}
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (r *txRepository) EntriesForReference(ctx context.Context, refType ReferenceType, refID int64) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+entryColumns+` FROM general_ledger_entries
WHERE reference_type=$1 AND reference_id=$2 AND status='ACTIVE' ORDER BY id ASC FOR UPDATE`, refType, refID)
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

func (r *txRepository) UpdateEntryAmounts(ctx context.Context, entryID int64, debit, credit float64, description string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE general_ledger_entries
SET debit_amount=$2, credit_amount=$3, description=COALESCE(NULLIF($4,''), description), updated_at=NOW()
WHERE id=$1`, entryID, toNumeric(debit), toNumeric(credit), description)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) DeleteByReference(ctx context.Context, refType ReferenceType, refID int64) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM general_ledger_entries WHERE reference_type=$1 AND reference_id=$2`, refType, refID)
	if err != nil {
		return 0, err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM gl_source_links WHERE reference_type=$1 AND reference_id=$2`, refType, refID); err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) LinkSource(ctx context.Context, refType ReferenceType, refID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO gl_source_links (reference_type, reference_id) VALUES ($1,$2)`, refType, refID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

func (r *txRepository) AddProjectCost(ctx context.Context, projectID int64, amount float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE projects SET actual_cost = actual_cost + $2, updated_at=NOW() WHERE id=$1`, projectID, toNumeric(amount))
	return err
}

// toNumeric renders 2dp at the DB boundary so numeric columns and float math
// stay aligned.
func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
