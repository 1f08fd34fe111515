package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository encapsulates DB operations for invoices and their settlement.
type Repository interface {
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListOutstandingInvoices(ctx context.Context) ([]Invoice, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	GetCreditNote(ctx context.Context, id int64) (CreditNote, error)
	ListCreditNotes(ctx context.Context, invoiceID int64) ([]CreditNote, error)
	CreateCreditNote(ctx context.Context, n CreditNote) (CreditNote, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	SettledAmount(ctx context.Context, invoiceID int64) (float64, error)
	UpdateInvoiceSettlement(ctx context.Context, id int64, paid float64, status InvoiceStatus) error
	GetCreditNoteForUpdate(ctx context.Context, id int64) (CreditNote, error)
	MarkCreditNoteIssued(ctx context.Context, id int64, issuedAt time.Time) error

	// Ledger returns the ledger operations bound to the same transaction.
	Ledger() ledger.TxRepository
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed reconciliation repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const invoiceColumns = `id, number, customer_id, customer_name, total, paid_amount, status, due_date, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var i Invoice
	err := row.Scan(&i.ID, &i.Number, &i.CustomerID, &i.CustomerName, &i.Total, &i.PaidAmount, &i.Status, &i.DueDate, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (r *repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	i, err := scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	return i, err
}

func (r *repository) ListOutstandingInvoices(ctx context.Context) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE status <> 'paid' ORDER BY due_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, invoice_id, amount, paid_at, method, note, created_at
FROM invoice_payments WHERE invoice_id=$1 ORDER BY id ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaidAt, &p.Method, &p.Note, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const creditNoteColumns = `id, invoice_id, amount, reason, status, issued_at, created_at, updated_at`

func scanCreditNote(row pgx.Row) (CreditNote, error) {
	var n CreditNote
	err := row.Scan(&n.ID, &n.InvoiceID, &n.Amount, &n.Reason, &n.Status, &n.IssuedAt, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (r *repository) GetCreditNote(ctx context.Context, id int64) (CreditNote, error) {
	n, err := scanCreditNote(r.db.QueryRow(ctx, `SELECT `+creditNoteColumns+` FROM credit_notes WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return CreditNote{}, ErrCreditNoteNotFound
	}
	return n, err
}

func (r *repository) ListCreditNotes(ctx context.Context, invoiceID int64) ([]CreditNote, error) {
	rows, err := r.db.Query(ctx, `SELECT `+creditNoteColumns+` FROM credit_notes WHERE invoice_id=$1 ORDER BY id ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CreditNote
	for rows.Next() {
		n, err := scanCreditNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *repository) CreateCreditNote(ctx context.Context, n CreditNote) (CreditNote, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO credit_notes (invoice_id, amount, reason, status)
VALUES ($1,$2,$3,'draft') RETURNING id, status, created_at, updated_at`,
		n.InvoiceID, toNumeric(n.Amount), n.Reason).
		Scan(&n.ID, &n.Status, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return CreditNote{}, err
	}
	return n, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	i, err := scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	return i, err
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO invoice_payments (invoice_id, amount, paid_at, method, note)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`,
		p.InvoiceID, toNumeric(p.Amount), p.PaidAt, p.Method, p.Note).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

// SettledAmount sums payments plus issued credit notes for the invoice.
func (r *txRepository) SettledAmount(ctx context.Context, invoiceID int64) (float64, error) {
	var paid float64
	err := r.tx.QueryRow(ctx, `SELECT
COALESCE((SELECT SUM(amount) FROM invoice_payments WHERE invoice_id=$1), 0) +
COALESCE((SELECT SUM(amount) FROM credit_notes WHERE invoice_id=$1 AND status='issued'), 0)`, invoiceID).
		Scan(&paid)
	return paid, err
}

func (r *txRepository) UpdateInvoiceSettlement(ctx context.Context, id int64, paid float64, status InvoiceStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE invoices SET paid_amount=$2, status=$3, updated_at=NOW() WHERE id=$1`,
		id, toNumeric(paid), status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) GetCreditNoteForUpdate(ctx context.Context, id int64) (CreditNote, error) {
	n, err := scanCreditNote(r.tx.QueryRow(ctx, `SELECT `+creditNoteColumns+` FROM credit_notes WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return CreditNote{}, ErrCreditNoteNotFound
	}
	return n, err
}

func (r *txRepository) MarkCreditNoteIssued(ctx context.Context, id int64, issuedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE credit_notes SET status='issued', issued_at=$2, updated_at=NOW()
WHERE id=$1 AND status='draft'`, id, issuedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCreditNoteIssued
	}
	return nil
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(r.tx)
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
