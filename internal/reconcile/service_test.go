package reconcile

import (
	"context"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

type memoryReconcileRepo struct {
	invoices    map[int64]*Invoice
	payments    map[int64]*Payment
	creditNotes map[int64]*CreditNote
	glEntries   map[int64]*ledger.Entry
	sourceLinks map[string]bool

	nextID   int64
	nextGLID int64
}

func newMemoryReconcileRepo() *memoryReconcileRepo {
	return &memoryReconcileRepo{
		invoices:    make(map[int64]*Invoice),
		payments:    make(map[int64]*Payment),
		creditNotes: make(map[int64]*CreditNote),
		glEntries:   make(map[int64]*ledger.Entry),
		sourceLinks: make(map[string]bool),
	}
}

func (r *memoryReconcileRepo) snapshot() *memoryReconcileRepo {
	cp := newMemoryReconcileRepo()
	cp.nextID, cp.nextGLID = r.nextID, r.nextGLID
	for id, v := range r.invoices {
		dup := *v
		cp.invoices[id] = &dup
	}
	for id, v := range r.payments {
		dup := *v
		cp.payments[id] = &dup
	}
	for id, v := range r.creditNotes {
		dup := *v
		cp.creditNotes[id] = &dup
	}
	for id, v := range r.glEntries {
		dup := *v
		cp.glEntries[id] = &dup
	}
	for k, v := range r.sourceLinks {
		cp.sourceLinks[k] = v
	}
	return cp
}

func (r *memoryReconcileRepo) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	i, ok := r.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return *i, nil
}

func (r *memoryReconcileRepo) ListOutstandingInvoices(ctx context.Context) ([]Invoice, error) {
	var out []Invoice
	for id := int64(1); id <= r.nextID; id++ {
		if i, ok := r.invoices[id]; ok && i.Status != StatusPaid {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (r *memoryReconcileRepo) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	var out []Payment
	for id := int64(1); id <= r.nextID; id++ {
		if p, ok := r.payments[id]; ok && p.InvoiceID == invoiceID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryReconcileRepo) GetCreditNote(ctx context.Context, id int64) (CreditNote, error) {
	n, ok := r.creditNotes[id]
	if !ok {
		return CreditNote{}, ErrCreditNoteNotFound
	}
	return *n, nil
}

func (r *memoryReconcileRepo) ListCreditNotes(ctx context.Context, invoiceID int64) ([]CreditNote, error) {
	var out []CreditNote
	for id := int64(1); id <= r.nextID; id++ {
		if n, ok := r.creditNotes[id]; ok && n.InvoiceID == invoiceID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *memoryReconcileRepo) CreateCreditNote(ctx context.Context, n CreditNote) (CreditNote, error) {
	r.nextID++
	n.ID = r.nextID
	n.Status = CreditNoteDraft
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	r.creditNotes[n.ID] = &n
	return n, nil
}

func (r *memoryReconcileRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := r.snapshot()
	if err := fn(ctx, r); err != nil {
		r.invoices = snap.invoices
		r.payments = snap.payments
		r.creditNotes = snap.creditNotes
		r.glEntries = snap.glEntries
		r.sourceLinks = snap.sourceLinks
		r.nextID, r.nextGLID = snap.nextID, snap.nextGLID
		return err
	}
	return nil
}

func (r *memoryReconcileRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return r.GetInvoice(ctx, id)
}

func (r *memoryReconcileRepo) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	r.payments[p.ID] = &p
	return p, nil
}

func (r *memoryReconcileRepo) SettledAmount(ctx context.Context, invoiceID int64) (float64, error) {
	var paid float64
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			paid += p.Amount
		}
	}
	for _, n := range r.creditNotes {
		if n.InvoiceID == invoiceID && n.Status == CreditNoteIssued {
			paid += n.Amount
		}
	}
	return paid, nil
}

func (r *memoryReconcileRepo) UpdateInvoiceSettlement(ctx context.Context, id int64, paid float64, status InvoiceStatus) error {
	i, ok := r.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	i.PaidAmount = paid
	i.Status = status
	return nil
}

func (r *memoryReconcileRepo) GetCreditNoteForUpdate(ctx context.Context, id int64) (CreditNote, error) {
	return r.GetCreditNote(ctx, id)
}

func (r *memoryReconcileRepo) MarkCreditNoteIssued(ctx context.Context, id int64, issuedAt time.Time) error {
	n, ok := r.creditNotes[id]
	if !ok || n.Status != CreditNoteDraft {
		return ErrCreditNoteIssued
	}
	n.Status = CreditNoteIssued
	n.IssuedAt = &issuedAt
	return nil
}

func (r *memoryReconcileRepo) Ledger() ledger.TxRepository {
	return (*memoryReconcileGLTx)(r)
}

type memoryReconcileGLTx memoryReconcileRepo

func (g *memoryReconcileGLTx) InsertEntry(ctx context.Context, txnID uuid.UUID, refType ledger.ReferenceType, refID int64, line ledger.LineInput) (ledger.Entry, error) {
	g.nextGLID++
	entry := ledger.Entry{
		ID:              g.nextGLID,
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
		Status:          ledger.EntryStatusActive,
	}
	g.glEntries[entry.ID] = &entry
	return entry, nil
}

func (g *memoryReconcileGLTx) EntriesForReference(ctx context.Context, refType ledger.ReferenceType, refID int64) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for id := int64(1); id <= g.nextGLID; id++ {
		if e, ok := g.glEntries[id]; ok && e.ReferenceType == refType && e.ReferenceID == refID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (g *memoryReconcileGLTx) UpdateEntryAmounts(ctx context.Context, entryID int64, debit, credit float64, description string) error {
	e, ok := g.glEntries[entryID]
	if !ok {
		return ledger.ErrEntryNotFound
	}
	e.DebitAmount = debit
	e.CreditAmount = credit
	return nil
}

func (g *memoryReconcileGLTx) DeleteByReference(ctx context.Context, refType ledger.ReferenceType, refID int64) (int64, error) {
	var deleted int64
	for id, e := range g.glEntries {
		if e.ReferenceType == refType && e.ReferenceID == refID {
			delete(g.glEntries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (g *memoryReconcileGLTx) LinkSource(ctx context.Context, refType ledger.ReferenceType, refID int64) error {
	key := string(refType) + ":" + strconv.FormatInt(refID, 10)
	if g.sourceLinks[key] {
		return ledger.ErrSourceAlreadyLinked
	}
	g.sourceLinks[key] = true
	return nil
}

func (g *memoryReconcileGLTx) AddProjectCost(ctx context.Context, projectID int64, amount float64) error {
	return nil
}

func (r *memoryReconcileRepo) addInvoice(total float64, due time.Time) *Invoice {
	r.nextID++
	i := &Invoice{ID: r.nextID, Number: "INV-1001", CustomerID: 7, CustomerName: "Acme",
		Total: total, Status: StatusUnpaid, DueDate: due}
	r.invoices[i.ID] = i
	return i
}

func newReconcileService(repo Repository) *Service {
	return NewService(repo, nil, slog.New(slog.DiscardHandler))
}

func TestApplyPaymentPartial(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryReconcileRepo()
	inv := repo.addInvoice(1000, time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC))
	svc := newReconcileService(repo)
	svc.WithNow(func() time.Time { return time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC) })

	payment, err := svc.ApplyPayment(ctx, PaymentInput{InvoiceID: inv.ID, Amount: 400, Method: "bank"}, 10)
	require.NoError(t, err)
	require.NotZero(t, payment.ID)

	got, _ := repo.GetInvoice(ctx, inv.ID)
	require.Equal(t, 400.0, got.PaidAmount)
	require.Equal(t, StatusPartiallyPaid, got.Status)
	require.Equal(t, 600.0, got.Outstanding())

	gl, _ := repo.Ledger().EntriesForReference(ctx, ledger.ReferencePayment, payment.ID)
	require.Len(t, gl, 2)
	require.Equal(t, AccountCashBank, gl[0].AccountName)
	require.Equal(t, 400.0, gl[0].DebitAmount)
	require.Equal(t, AccountAccountsReceivable, gl[1].AccountName)
	require.Equal(t, 400.0, gl[1].CreditAmount)
}

func TestApplyPaymentSettlesInvoice(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryReconcileRepo()
	inv := repo.addInvoice(1000, time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC))
	svc := newReconcileService(repo)
	svc.WithNow(func() time.Time { return time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC) })

	_, err := svc.ApplyPayment(ctx, PaymentInput{InvoiceID: inv.ID, Amount: 400, Method: "bank"}, 10)
	require.NoError(t, err)
	_, err = svc.ApplyPayment(ctx, PaymentInput{InvoiceID: inv.ID, Amount: 600, Method: "bank"}, 10)
	require.NoError(t, err)

	got, _ := repo.GetInvoice(ctx, inv.ID)
	require.Equal(t, StatusPaid, got.Status)
	require.Equal(t, 0.0, got.Outstanding())
}

func TestApplyPaymentPastDueStaysOverdue(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryReconcileRepo()
	inv := repo.addInvoice(1000, time.Date(2026, time.July, 31, 0, 0, 0, 0, time.UTC))
	svc := newReconcileService(repo)
	svc.WithNow(func() time.Time { return time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC) })

	_, err := svc.ApplyPayment(ctx, PaymentInput{InvoiceID: inv.ID, Amount: 400, Method: "bank"}, 10)
	require.NoError(t, err)

	got, _ := repo.GetInvoice(ctx, inv.ID)
	require.Equal(t, StatusOverdue, got.Status)
}

func TestApplyPaymentValidation(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryReconcileRepo()
	svc := newReconcileService(repo)

	_, err := svc.ApplyPayment(ctx, PaymentInput{InvoiceID: 0, Amount: 100, Method: "bank"}, 10)
	require.ErrorIs(t, err, ErrInvoiceNotFound)
	_, err = svc.ApplyPayment(ctx, PaymentInput{InvoiceID: 1, Amount: 0, Method: "bank"}, 10)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.ApplyPayment(ctx, PaymentInput{InvoiceID: 99, Amount: 100, Method: "bank"}, 10)
	require.ErrorIs(t, err, ErrInvoiceNotFound)
	require.Empty(t, repo.payments)
	require.Empty(t, repo.glEntries)
}

func TestIssueCreditNote(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryReconcileRepo()
	inv := repo.addInvoice(1000, time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC))
	svc := newReconcileService(repo)
	svc.WithNow(func() time.Time { return time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC) })

	note, err := svc.DraftCreditNote(ctx, CreditNoteInput{InvoiceID: inv.ID, Amount: 250, Reason: "damaged goods"})
	require.NoError(t, err)
	require.Equal(t, CreditNoteDraft, note.Status)

	// Drafting alone must not move the invoice or the ledger.
	got, _ := repo.GetInvoice(ctx, inv.ID)
	require.Equal(t, 0.0, got.PaidAmount)
	require.Empty(t, repo.glEntries)

	issued, err := svc.IssueCreditNote(ctx, note.ID, 10)
	require.NoError(t, err)
	require.Equal(t, CreditNoteIssued, issued.Status)
	require.NotNil(t, issued.IssuedAt)

	got, _ = repo.GetInvoice(ctx, inv.ID)
	require.Equal(t, 250.0, got.PaidAmount)
	require.Equal(t, StatusPartiallyPaid, got.Status)

	gl, _ := repo.Ledger().EntriesForReference(ctx, ledger.ReferenceCreditNote, note.ID)
	require.Len(t, gl, 2)
	require.Equal(t, AccountSalesReturns, gl[0].AccountName)
	require.Equal(t, 250.0, gl[0].DebitAmount)
	require.Equal(t, AccountAccountsReceivable, gl[1].AccountName)
	require.Equal(t, 250.0, gl[1].CreditAmount)
}

func TestIssueCreditNoteTwiceRejected(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryReconcileRepo()
	inv := repo.addInvoice(1000, time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC))
	svc := newReconcileService(repo)
	svc.WithNow(func() time.Time { return time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC) })

	note, err := svc.DraftCreditNote(ctx, CreditNoteInput{InvoiceID: inv.ID, Amount: 250, Reason: "damaged goods"})
	require.NoError(t, err)
	_, err = svc.IssueCreditNote(ctx, note.ID, 10)
	require.NoError(t, err)

	_, err = svc.IssueCreditNote(ctx, note.ID, 10)
	require.ErrorIs(t, err, ErrCreditNoteIssued)

	// No second journal and no double reduction of the balance.
	gl, _ := repo.Ledger().EntriesForReference(ctx, ledger.ReferenceCreditNote, note.ID)
	require.Len(t, gl, 2)
	got, _ := repo.GetInvoice(ctx, inv.ID)
	require.Equal(t, 250.0, got.PaidAmount)
}

func TestDraftCreditNoteValidation(t *testing.T) {
	ctx := context.Background()
	svc := newReconcileService(newMemoryReconcileRepo())

	_, err := svc.DraftCreditNote(ctx, CreditNoteInput{InvoiceID: 1, Amount: 0, Reason: "x"})
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.DraftCreditNote(ctx, CreditNoteInput{InvoiceID: 77, Amount: 50, Reason: "x"})
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestDeriveStatus(t *testing.T) {
	due := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)
	before := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	after := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)

	require.Equal(t, StatusUnpaid, DeriveStatus(1000, 0, due, before))
	require.Equal(t, StatusPartiallyPaid, DeriveStatus(1000, 300, due, before))
	require.Equal(t, StatusPaid, DeriveStatus(1000, 1000, due, before))
	require.Equal(t, StatusPaid, DeriveStatus(1000, 999.996, due, before), "2dp tolerance")
	require.Equal(t, StatusOverdue, DeriveStatus(1000, 0, due, after))
	require.Equal(t, StatusOverdue, DeriveStatus(1000, 300, due, after))
	require.Equal(t, StatusPaid, DeriveStatus(1000, 1000, due, after), "settled beats overdue")
}

func TestAgingBuckets(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryReconcileRepo()
	asOf := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)

	repo.addInvoice(100, asOf.AddDate(0, 0, 10))  // not yet due
	repo.addInvoice(200, asOf.AddDate(0, 0, -10)) // 10 days late
	repo.addInvoice(300, asOf.AddDate(0, 0, -45)) // 45 days late
	repo.addInvoice(400, asOf.AddDate(0, 0, -75)) // 75 days late
	repo.addInvoice(500, asOf.AddDate(0, 0, -200))
	partially := repo.addInvoice(1000, asOf.AddDate(0, 0, -10))
	partially.PaidAmount = 600
	partially.Status = StatusPartiallyPaid

	svc := newReconcileService(repo)
	buckets, err := svc.Aging(ctx, asOf)
	require.NoError(t, err)

	require.Equal(t, 100.0, buckets.Current)
	require.Equal(t, 600.0, buckets.Bucket30, "200 late plus 400 outstanding of the partial")
	require.Equal(t, 300.0, buckets.Bucket60)
	require.Equal(t, 400.0, buckets.Bucket90)
	require.Equal(t, 500.0, buckets.Bucket120)
}
