package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Account names used by settlement journals.
const (
	AccountCashBank           = "Cash/Bank"
	AccountAccountsReceivable = "Accounts Receivable"
	AccountSalesReturns       = "Sales Returns"
)

// AuditPort records settlement actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service links invoices to their payments and credit notes: every settlement
// posts a balanced journal and re-derives the invoice status in the same
// transaction.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		audit:  audit,
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

// ApplyPayment records a payment, posts Debit Cash/Bank against Credit
// Accounts Receivable, and re-derives the invoice settlement status, all in
// one transaction.
func (s *Service) ApplyPayment(ctx context.Context, input PaymentInput, actorID int64) (Payment, error) {
	if input.InvoiceID <= 0 {
		return Payment{}, ErrInvoiceNotFound
	}
	if input.Amount <= 0 {
		return Payment{}, ErrInvalidAmount
	}
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	var out Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		payment, err := tx.InsertPayment(ctx, Payment{
			InvoiceID: invoice.ID,
			Amount:    input.Amount,
			PaidAt:    paidAt,
			Method:    input.Method,
			Note:      input.Note,
		})
		if err != nil {
			return err
		}
		out = payment

		description := fmt.Sprintf("Payment for invoice %s", invoice.Number)
		_, err = ledger.PostJournalTx(ctx, tx.Ledger(), ledger.JournalInput{
			ReferenceType: ledger.ReferencePayment,
			ReferenceID:   payment.ID,
			Lines: []ledger.LineInput{
				{
					EntryType:       ledger.EntryTypeCash,
					AccountName:     AccountCashBank,
					Description:     description,
					DebitAmount:     payment.Amount,
					EntityID:        invoice.CustomerID,
					EntityName:      invoice.CustomerName,
					TransactionDate: paidAt,
				},
				{
					EntryType:       ledger.EntryTypeReceivable,
					AccountName:     AccountAccountsReceivable,
					Description:     description,
					CreditAmount:    payment.Amount,
					EntityID:        invoice.CustomerID,
					EntityName:      invoice.CustomerName,
					TransactionDate: paidAt,
				},
			},
		})
		if err != nil {
			return err
		}
		return s.resettle(ctx, tx, invoice)
	})
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, actorID, "reconcile.apply_payment", fmt.Sprintf("%d", input.InvoiceID), map[string]any{
		"payment_id": out.ID,
		"amount":     out.Amount,
	})
	return out, nil
}

// DraftCreditNote creates a credit note that does not yet touch the invoice
// balance or the ledger.
func (s *Service) DraftCreditNote(ctx context.Context, input CreditNoteInput) (CreditNote, error) {
	if input.Amount <= 0 {
		return CreditNote{}, ErrInvalidAmount
	}
	if _, err := s.repo.GetInvoice(ctx, input.InvoiceID); err != nil {
		return CreditNote{}, err
	}
	return s.repo.CreateCreditNote(ctx, CreditNote{
		InvoiceID: input.InvoiceID,
		Amount:    input.Amount,
		Reason:    input.Reason,
	})
}

// IssueCreditNote transitions a draft note to issued, posts Debit Sales
// Returns against Credit Accounts Receivable, and re-derives the invoice
// status. An already issued note is rejected before anything is written, so
// the journal can never double-post.
func (s *Service) IssueCreditNote(ctx context.Context, noteID int64, actorID int64) (CreditNote, error) {
	var out CreditNote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		note, err := tx.GetCreditNoteForUpdate(ctx, noteID)
		if err != nil {
			return err
		}
		if note.Status == CreditNoteIssued {
			return ErrCreditNoteIssued
		}
		issuedAt := s.now()
		if err := tx.MarkCreditNoteIssued(ctx, note.ID, issuedAt); err != nil {
			return err
		}
		invoice, err := tx.GetInvoiceForUpdate(ctx, note.InvoiceID)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Credit note for invoice %s", invoice.Number)
		_, err = ledger.PostJournalTx(ctx, tx.Ledger(), ledger.JournalInput{
			ReferenceType: ledger.ReferenceCreditNote,
			ReferenceID:   note.ID,
			GuardSource:   true,
			Lines: []ledger.LineInput{
				{
					EntryType:       ledger.EntryTypeExpense,
					AccountName:     AccountSalesReturns,
					Description:     description,
					DebitAmount:     note.Amount,
					EntityID:        invoice.CustomerID,
					EntityName:      invoice.CustomerName,
					TransactionDate: issuedAt,
				},
				{
					EntryType:       ledger.EntryTypeReceivable,
					AccountName:     AccountAccountsReceivable,
					Description:     description,
					CreditAmount:    note.Amount,
					EntityID:        invoice.CustomerID,
					EntityName:      invoice.CustomerName,
					TransactionDate: issuedAt,
				},
			},
		})
		if err != nil {
			return err
		}
		note.Status = CreditNoteIssued
		note.IssuedAt = &issuedAt
		out = note
		return s.resettle(ctx, tx, invoice)
	})
	if err != nil {
		return CreditNote{}, err
	}
	s.recordAudit(ctx, actorID, "reconcile.issue_credit_note", fmt.Sprintf("%d", noteID), map[string]any{
		"invoice_id": out.InvoiceID,
		"amount":     out.Amount,
	})
	return out, nil
}

// resettle recomputes the invoice's paid amount from payments plus issued
// credit notes and stores the derived status.
func (s *Service) resettle(ctx context.Context, tx TxRepository, invoice Invoice) error {
	paid, err := tx.SettledAmount(ctx, invoice.ID)
	if err != nil {
		return err
	}
	status := DeriveStatus(invoice.Total, paid, invoice.DueDate, s.now())
	return tx.UpdateInvoiceSettlement(ctx, invoice.ID, paid, status)
}

// DeriveStatus maps a settlement picture onto an invoice status. Fully
// settled always wins; past-due invoices read overdue whether partially
// settled or untouched.
func DeriveStatus(total, paid float64, dueDate, asOf time.Time) InvoiceStatus {
	switch {
	case paid >= total-0.005:
		return StatusPaid
	case !dueDate.IsZero() && asOf.After(dueDate):
		return StatusOverdue
	case paid > 0:
		return StatusPartiallyPaid
	default:
		return StatusUnpaid
	}
}

// GetInvoice returns an invoice with its payments and credit notes.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, []Payment, []CreditNote, error) {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, nil, nil, err
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return Invoice{}, nil, nil, err
	}
	notes, err := s.repo.ListCreditNotes(ctx, id)
	if err != nil {
		return Invoice{}, nil, nil, err
	}
	return invoice, payments, notes, nil
}

// Aging groups outstanding balances by days past due as of the given date.
func (s *Service) Aging(ctx context.Context, asOf time.Time) (AgingBuckets, error) {
	invoices, err := s.repo.ListOutstandingInvoices(ctx)
	if err != nil {
		return AgingBuckets{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	var buckets AgingBuckets
	for _, inv := range invoices {
		outstanding := inv.Outstanding()
		if outstanding <= 0 {
			continue
		}
		days := int(asOf.Sub(inv.DueDate).Hours() / 24)
		switch {
		case days <= 0:
			buckets.Current += outstanding
		case days <= 30:
			buckets.Bucket30 += outstanding
		case days <= 60:
			buckets.Bucket60 += outstanding
		case days <= 90:
			buckets.Bucket90 += outstanding
		default:
			buckets.Bucket120 += outstanding
		}
	}
	return buckets, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
}
