package ledger

import (
	"fmt"
	"time"
)

// LineInput describes one ledger row for posting.
type LineInput struct {
	EntryType       EntryType
	AccountName     string
	Description     string
	DebitAmount     float64
	CreditAmount    float64
	EntityID        int64
	EntityName      string
	ProjectID       *int64
	TransactionDate time.Time
}

// Validate enforces per-row rules: non-empty account and description, a
// transaction date, non-negative amounts and exactly one non-zero side.
func (in LineInput) Validate() error {
	if in.AccountName == "" {
		return &ValidationError{Field: "account_name", Reason: "required"}
	}
	if in.Description == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	if in.TransactionDate.IsZero() {
		return &ValidationError{Field: "transaction_date", Reason: "required"}
	}
	if in.DebitAmount < 0 || in.CreditAmount < 0 {
		return &ValidationError{Field: "amount", Reason: "negative amount"}
	}
	if in.DebitAmount > 0 == (in.CreditAmount > 0) {
		return &ValidationError{Field: "amount", Reason: "exactly one of debit/credit must be non-zero"}
	}
	return nil
}

// JournalInput groups lines that must post atomically and balance.
type JournalInput struct {
	ReferenceType ReferenceType
	ReferenceID   int64
	Lines         []LineInput
	// GuardSource requests a uniqueness link on (ReferenceType, ReferenceID)
	// so the same logical transaction cannot be posted twice.
	GuardSource bool
}

// Validate ensures the journal meets minimum criteria before any persist.
func (in JournalInput) Validate() error {
	if in.ReferenceType == "" {
		return &ValidationError{Field: "reference_type", Reason: "required"}
	}
	if in.ReferenceID == 0 {
		return &ValidationError{Field: "reference_id", Reason: "required"}
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if err := line.Validate(); err != nil {
			return fmt.Errorf("ledger: line %d: %w", idx, err)
		}
		debit += line.DebitAmount
		credit += line.CreditAmount
	}
	if fmt.Sprintf("%.2f", debit) != fmt.Sprintf("%.2f", credit) {
		return ErrUnbalanced
	}
	return nil
}
