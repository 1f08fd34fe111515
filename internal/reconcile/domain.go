package reconcile

import (
	"errors"
	"time"
)

var (
	ErrInvoiceNotFound    = errors.New("reconcile: invoice not found")
	ErrCreditNoteNotFound = errors.New("reconcile: credit note not found")
	ErrCreditNoteIssued   = errors.New("reconcile: credit note already issued")
	ErrInvalidAmount      = errors.New("reconcile: amount must be positive")
)

// InvoiceStatus enumerates derived invoice settlement states.
type InvoiceStatus string

const (
	StatusUnpaid        InvoiceStatus = "unpaid"
	StatusPartiallyPaid InvoiceStatus = "partially_paid"
	StatusPaid          InvoiceStatus = "paid"
	StatusOverdue       InvoiceStatus = "overdue"
)

// CreditNoteStatus tracks the issue lifecycle of a credit note.
type CreditNoteStatus string

const (
	CreditNoteDraft  CreditNoteStatus = "draft"
	CreditNoteIssued CreditNoteStatus = "issued"
)

// Invoice model. PaidAmount and Status are derived from payments and issued
// credit notes, never written directly by callers.
type Invoice struct {
	ID           int64
	Number       string
	CustomerID   int64
	CustomerName string
	Total        float64
	PaidAmount   float64
	Status       InvoiceStatus
	DueDate      time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Outstanding is the unsettled remainder.
func (i Invoice) Outstanding() float64 {
	rem := i.Total - i.PaidAmount
	if rem < 0 {
		return 0
	}
	return rem
}

// Payment model.
type Payment struct {
	ID        int64
	InvoiceID int64
	Amount    float64
	PaidAt    time.Time
	Method    string
	Note      string
	CreatedAt time.Time
}

// CreditNote model. Only issued notes reduce the invoice balance and hit the
// ledger.
type CreditNote struct {
	ID        int64
	InvoiceID int64
	Amount    float64
	Reason    string
	Status    CreditNoteStatus
	IssuedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentInput for recording a payment against an invoice.
type PaymentInput struct {
	InvoiceID int64     `json:"invoice_id" validate:"required,gt=0"`
	Amount    float64   `json:"amount" validate:"required,gt=0"`
	PaidAt    time.Time `json:"paid_at"`
	Method    string    `json:"method" validate:"required"`
	Note      string    `json:"note"`
}

// CreditNoteInput for drafting a credit note.
type CreditNoteInput struct {
	InvoiceID int64   `json:"invoice_id" validate:"required,gt=0"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Reason    string  `json:"reason" validate:"required"`
}

// AgingBuckets summarises outstanding balances by days past due.
type AgingBuckets struct {
	Current   float64
	Bucket30  float64
	Bucket60  float64
	Bucket90  float64
	Bucket120 float64
}
