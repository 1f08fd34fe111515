package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EntryType categorises a ledger row by accounting treatment.
type EntryType string

const (
	EntryTypeExpense    EntryType = "EXPENSE"
	EntryTypePayable    EntryType = "PAYABLE"
	EntryTypeReceivable EntryType = "RECEIVABLE"
	EntryTypeCash       EntryType = "CASH"
)

// ReferenceType links a ledger row back to its originating record.
type ReferenceType string

const (
	ReferenceManual         ReferenceType = "manual"
	ReferencePayrollPayment ReferenceType = "payroll_payment"
	ReferenceCreditNote     ReferenceType = "credit_note"
	ReferencePayment        ReferenceType = "payment"
)

// EntryStatus enumerates ledger row lifecycle values.
type EntryStatus string

const (
	EntryStatusActive EntryStatus = "ACTIVE"
	EntryStatusVoid   EntryStatus = "VOID"
)

// Entry is one side (debit or credit) of a financial transaction. Rows that
// share (ReferenceType, ReferenceID) form one logical transaction and must
// balance.
type Entry struct {
	ID              int64
	TxnID           uuid.UUID
	EntryType       EntryType
	ReferenceType   ReferenceType
	ReferenceID     int64
	AccountName     string
	Description     string
	DebitAmount     float64
	CreditAmount    float64
	EntityID        int64
	EntityName      string
	ProjectID       *int64
	TransactionDate time.Time
	Status          EntryStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	// ErrUnbalanced indicates debit != credit across a journal.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrEntryNotFound indicates missing row(s) for a reference.
	ErrEntryNotFound = errors.New("ledger: entry not found")
	// ErrSourceAlreadyLinked indicates a reference was already posted.
	ErrSourceAlreadyLinked = errors.New("ledger: reference already posted")
)

// ValidationError describes a rejected ledger line. Nothing is written when
// one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "ledger: invalid " + e.Field + ": " + e.Reason
}
