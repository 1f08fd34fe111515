package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MetricsPort records posting outcomes.
type MetricsPort interface {
	JournalPosted(refType string, lines int)
	JournalRejected(reason string)
}

// Service is the single chokepoint for every ledger write in the system. All
// multi-line transactions pass through PostBalancedJournal, which verifies the
// double-entry invariant before anything is persisted.
type Service struct {
	repo    Repository
	metrics MetricsPort
	now     func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, metrics MetricsPort) *Service {
	return &Service{repo: repo, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostEntry validates and inserts a single ledger row. The caller owns the
// balancing obligation; multi-line transactions should use
// PostBalancedJournal instead.
func (s *Service) PostEntry(ctx context.Context, refType ReferenceType, refID int64, line LineInput) (Entry, error) {
	if err := line.Validate(); err != nil {
		s.rejected("validation")
		return Entry{}, err
	}
	if refType == "" || refID == 0 {
		s.rejected("validation")
		return Entry{}, &ValidationError{Field: "reference", Reason: "required"}
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertEntry(ctx, uuid.New(), refType, refID, line)
		if err != nil {
			return err
		}
		if err := applyProjectCoupling(ctx, tx, line); err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// PostBalancedJournal posts all lines of one logical transaction atomically.
// On any validation failure no line is persisted.
func (s *Service) PostBalancedJournal(ctx context.Context, input JournalInput) ([]Entry, error) {
	if err := input.Validate(); err != nil {
		s.rejected(rejectionReason(err))
		return nil, err
	}
	var entries []Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := insertJournal(ctx, tx, input)
		if err != nil {
			return err
		}
		entries = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.JournalPosted(string(input.ReferenceType), len(entries))
	}
	return entries, nil
}

// ResyncReference updates the paired rows for a reference in place after the
// underlying totals changed, preserving row ids for audit continuity. Debit
// rows take newDebit, credit rows take newCredit.
func (s *Service) ResyncReference(ctx context.Context, refType ReferenceType, refID int64, newDebit, newCredit float64, newDescription string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return ResyncReferenceTx(ctx, tx, refType, refID, newDebit, newCredit, newDescription)
	})
}

// ResyncReferenceTx is ResyncReference running inside an already open
// transaction.
func ResyncReferenceTx(ctx context.Context, tx TxRepository, refType ReferenceType, refID int64, newDebit, newCredit float64, newDescription string) error {
	if newDebit < 0 || newCredit < 0 {
		return &ValidationError{Field: "amount", Reason: "negative amount"}
	}
	entries, err := tx.EntriesForReference(ctx, refType, refID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return ErrEntryNotFound
	}
	for _, entry := range entries {
		debit, credit := 0.0, newCredit
		if entry.DebitAmount > 0 {
			debit, credit = newDebit, 0
		}
		if err := tx.UpdateEntryAmounts(ctx, entry.ID, debit, credit, newDescription); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByReference removes every row of a logical transaction and returns
// how many were deleted. Used by period clearing so no GL row is orphaned.
func (s *Service) DeleteByReference(ctx context.Context, refType ReferenceType, refID int64) (int64, error) {
	var deleted int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.DeleteByReference(ctx, refType, refID)
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ListByReference returns the rows of one logical transaction.
func (s *Service) ListByReference(ctx context.Context, refType ReferenceType, refID int64) ([]Entry, error) {
	return s.repo.ListByReference(ctx, refType, refID)
}

// PostJournalTx validates and inserts a balanced journal inside an already
// open transaction. Orchestrators that must keep their own writes and the GL
// mirror atomic (payroll lifecycle, reconciliation) post through this.
func PostJournalTx(ctx context.Context, tx TxRepository, input JournalInput) ([]Entry, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return insertJournal(ctx, tx, input)
}

func insertJournal(ctx context.Context, tx TxRepository, input JournalInput) ([]Entry, error) {
	if input.GuardSource {
		if err := tx.LinkSource(ctx, input.ReferenceType, input.ReferenceID); err != nil {
			return nil, err
		}
	}
	txnID := uuid.New()
	entries := make([]Entry, 0, len(input.Lines))
	for _, line := range input.Lines {
		inserted, err := tx.InsertEntry(ctx, txnID, input.ReferenceType, input.ReferenceID, line)
		if err != nil {
			return nil, err
		}
		if err := applyProjectCoupling(ctx, tx, line); err != nil {
			return nil, err
		}
		entries = append(entries, inserted)
	}
	return entries, nil
}

// applyProjectCoupling adds payable credits to the tagged project's running
// cost. Implicit coupling between ledger posting and project accounting,
// required by downstream cost reports.
func applyProjectCoupling(ctx context.Context, tx TxRepository, line LineInput) error {
	if line.EntryType != EntryTypePayable || line.ProjectID == nil || line.CreditAmount <= 0 {
		return nil
	}
	return tx.AddProjectCost(ctx, *line.ProjectID, line.CreditAmount)
}

func (s *Service) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.JournalRejected(reason)
	}
}

func rejectionReason(err error) string {
	switch err {
	case ErrUnbalanced:
		return "unbalanced"
	case ErrTooFewLines:
		return "too_few_lines"
	default:
		return "validation"
	}
}
