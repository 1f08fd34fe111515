package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/calendar"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Account names used by the payroll GL mirror.
const (
	AccountSalaryExpense = "Salary Expense"
	AccountSalaryPayable = "Salary Payable"
	AccountCashBank      = "Cash/Bank"
)

// AuditPort records lifecycle actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// LockPort serialises generation per period.
type LockPort interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// ErrorSinkPort captures persistence failures, best-effort.
type ErrorSinkPort interface {
	Capture(ctx context.Context, operation string, err error)
}

// MetricsPort records payroll outcomes.
type MetricsPort interface {
	EntriesGenerated(n int)
	EntryPaid()
}

// Service orchestrates payroll generation, mutations and status transitions,
// keeping entry totals and their GL mirror mutually consistent. Every
// orchestration runs inside one repository transaction.
type Service struct {
	repo     Repository
	computer *Computer
	lock     LockPort
	audit    AuditPort
	errSink  ErrorSinkPort
	metrics  MetricsPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, computer *Computer, lock LockPort, audit AuditPort, errSink ErrorSinkPort, metrics MetricsPort, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		computer: computer,
		lock:     lock,
		audit:    audit,
		errSink:  errSink,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GenerateResult reports a generation run.
type GenerateResult struct {
	Generated int
	Skipped   int
}

// Generate creates one payroll entry per active employee for the period,
// with automatic tax/fee rows and a balanced Salary Expense / Salary Payable
// journal for entries with earnings. Duplicate periods are rejected; each
// employee persists all-or-nothing and the batch aborts on the first
// persistence failure.
func (s *Service) Generate(ctx context.Context, month time.Month, year int, actorID int64) (GenerateResult, error) {
	if err := shared.ValidatePeriod(month, year); err != nil {
		return GenerateResult{}, err
	}
	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, shared.PayrollPeriodLockKey(month, year))
		if err != nil {
			return GenerateResult{}, err
		}
		defer release()
	}
	exists, err := s.repo.PeriodExists(ctx, month, year)
	if err != nil {
		return GenerateResult{}, err
	}
	if exists {
		return GenerateResult{}, ErrPeriodExists
	}

	employees, err := s.repo.ListActiveEmployees(ctx)
	if err != nil {
		return GenerateResult{}, err
	}

	var result GenerateResult
	for _, emp := range employees {
		var assignments []Assignment
		if category, ok := ParseCategory(emp.Category); ok && category.DailyRated() {
			assignments, err = s.repo.ListAssignments(ctx, emp.ID)
			if err != nil {
				return result, err
			}
		}
		computed, ok := s.computer.Compute(emp, assignments, month, year)
		if !ok {
			result.Skipped++
			continue
		}
		if err := s.persistComputed(ctx, computed, month, year); err != nil {
			s.capture(ctx, "payroll.generate", err)
			return result, fmt.Errorf("payroll: generate employee %d: %w", computed.EmployeeID, err)
		}
		result.Generated++
	}

	if s.metrics != nil {
		s.metrics.EntriesGenerated(result.Generated)
	}
	s.recordAudit(ctx, actorID, "payroll.generate", fmt.Sprintf("%d-%02d", year, int(month)), map[string]any{
		"generated": result.Generated,
		"skipped":   result.Skipped,
	})
	return result, nil
}

// persistComputed writes one employee's entry, child rows and GL mirror in a
// single transaction.
func (s *Service) persistComputed(ctx context.Context, computed Computed, month time.Month, year int) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		additions := computed.TotalAdditions()
		deductions := computed.TotalDeductions()
		entry := Entry{
			EmployeeID:      computed.EmployeeID,
			EmployeeName:    computed.EmployeeName,
			Month:           month,
			Year:            year,
			WorkingDays:     computed.WorkingDays,
			BasicSalary:     computed.BasicSalary,
			TotalAdditions:  additions,
			TotalDeductions: deductions,
			TotalAmount:     Round2(computed.BasicSalary + additions - deductions),
			Status:          StatusGenerated,
			ProjectID:       computed.ProjectID,
		}
		inserted, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		for _, a := range computed.Additions {
			a.EntryID = inserted.ID
			if _, err := tx.InsertAddition(ctx, a); err != nil {
				return err
			}
		}
		for _, d := range computed.Deductions {
			d.EntryID = inserted.ID
			if _, err := tx.InsertDeduction(ctx, d); err != nil {
				return err
			}
		}
		gross := Round2(computed.BasicSalary + additions)
		if gross <= 0 {
			return nil
		}
		_, err = ledger.PostJournalTx(ctx, tx.Ledger(), s.salaryJournal(inserted, gross))
		return err
	})
}

// salaryJournal is the two-line GL mirror of an entry's gross earnings.
func (s *Service) salaryJournal(entry Entry, gross float64) ledger.JournalInput {
	_, monthEnd := calendar.MonthBounds(entry.Month, entry.Year)
	description := fmt.Sprintf("Salary for %s %d", entry.Month, entry.Year)
	return ledger.JournalInput{
		ReferenceType: ledger.ReferenceManual,
		ReferenceID:   entry.ID,
		Lines: []ledger.LineInput{
			{
				EntryType:       ledger.EntryTypeExpense,
				AccountName:     AccountSalaryExpense,
				Description:     description,
				DebitAmount:     gross,
				EntityID:        entry.EmployeeID,
				EntityName:      entry.EmployeeName,
				ProjectID:       entry.ProjectID,
				TransactionDate: monthEnd,
			},
			{
				EntryType:       ledger.EntryTypePayable,
				AccountName:     AccountSalaryPayable,
				Description:     description,
				CreditAmount:    gross,
				EntityID:        entry.EmployeeID,
				EntityName:      entry.EmployeeName,
				TransactionDate: monthEnd,
			},
		},
	}
}

// RecordAddition inserts a manual addition and recomputes entry totals plus
// the GL mirror atomically.
func (s *Service) RecordAddition(ctx context.Context, entryID int64, description string, amount float64) (Addition, error) {
	if err := validateChildInput(description, amount); err != nil {
		return Addition{}, err
	}
	var out Addition
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertAddition(ctx, Addition{EntryID: entryID, Description: description, Amount: Round2(amount)})
		if err != nil {
			return err
		}
		out = inserted
		return s.recalcTx(ctx, tx, entry)
	})
	if err != nil {
		return Addition{}, err
	}
	return out, nil
}

// RecordDeduction inserts a manual deduction and recomputes entry totals plus
// the GL mirror atomically.
func (s *Service) RecordDeduction(ctx context.Context, entryID int64, description string, amount float64) (Deduction, error) {
	if err := validateChildInput(description, amount); err != nil {
		return Deduction{}, err
	}
	var out Deduction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertDeduction(ctx, Deduction{EntryID: entryID, Description: description, Amount: Round2(amount)})
		if err != nil {
			return err
		}
		out = inserted
		return s.recalcTx(ctx, tx, entry)
	})
	if err != nil {
		return Deduction{}, err
	}
	return out, nil
}

// UpdateAddition edits a manual addition row and recomputes.
func (s *Service) UpdateAddition(ctx context.Context, id int64, description string, amount float64) error {
	return s.mutateChild(ctx, func(ctx context.Context, tx TxRepository) (int64, error) {
		return tx.UpdateAddition(ctx, id, description, Round2(amount))
	}, validateChildInput(description, amount))
}

// UpdateDeduction edits a manual deduction row and recomputes.
func (s *Service) UpdateDeduction(ctx context.Context, id int64, description string, amount float64) error {
	return s.mutateChild(ctx, func(ctx context.Context, tx TxRepository) (int64, error) {
		return tx.UpdateDeduction(ctx, id, description, Round2(amount))
	}, validateChildInput(description, amount))
}

// DeleteAddition removes a manual addition row and recomputes.
func (s *Service) DeleteAddition(ctx context.Context, id int64) error {
	return s.mutateChild(ctx, func(ctx context.Context, tx TxRepository) (int64, error) {
		return tx.DeleteAddition(ctx, id)
	}, nil)
}

// DeleteDeduction removes a manual deduction row and recomputes.
func (s *Service) DeleteDeduction(ctx context.Context, id int64) error {
	return s.mutateChild(ctx, func(ctx context.Context, tx TxRepository) (int64, error) {
		return tx.DeleteDeduction(ctx, id)
	}, nil)
}

func (s *Service) mutateChild(ctx context.Context, op func(context.Context, TxRepository) (int64, error), inputErr error) error {
	if inputErr != nil {
		return inputErr
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entryID, err := op(ctx, tx)
		if err != nil {
			return err
		}
		entry, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		return s.recalcTx(ctx, tx, entry)
	})
}

// RecalculateTotals re-derives an entry's totals from its current child rows
// and resyncs the GL mirror.
func (s *Service) RecalculateTotals(ctx context.Context, entryID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		return s.recalcTx(ctx, tx, entry)
	})
}

func (s *Service) recalcTx(ctx context.Context, tx TxRepository, entry Entry) error {
	additions, deductions, err := tx.SumChildren(ctx, entry.ID)
	if err != nil {
		return err
	}
	additions = Round2(additions)
	deductions = Round2(deductions)
	total := Round2(entry.BasicSalary + additions - deductions)
	if err := tx.UpdateEntryTotals(ctx, entry.ID, additions, deductions, total); err != nil {
		return err
	}
	gross := Round2(entry.BasicSalary + additions)
	err = ledger.ResyncReferenceTx(ctx, tx.Ledger(), ledger.ReferenceManual, entry.ID, gross, gross, "")
	if errors.Is(err, ledger.ErrEntryNotFound) {
		// Zero-earning entries have no GL mirror.
		return nil
	}
	return err
}

// MarkPaid transitions an entry to paid and posts the payment journal. An
// already paid entry is a no-op: the payment journal must not double-post.
func (s *Service) MarkPaid(ctx context.Context, entryID int64, actorID int64) error {
	var paid bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Status == StatusPaid {
			return nil
		}
		if err := tx.UpdateEntryStatus(ctx, entry.ID, StatusPaid); err != nil {
			return err
		}
		if entry.TotalAmount > 0 {
			_, monthEnd := calendar.MonthBounds(entry.Month, entry.Year)
			description := fmt.Sprintf("Salary payment for %s %d", entry.Month, entry.Year)
			_, err = ledger.PostJournalTx(ctx, tx.Ledger(), ledger.JournalInput{
				ReferenceType: ledger.ReferencePayrollPayment,
				ReferenceID:   entry.ID,
				GuardSource:   true,
				Lines: []ledger.LineInput{
					{
						EntryType:       ledger.EntryTypePayable,
						AccountName:     AccountSalaryPayable,
						Description:     description,
						DebitAmount:     entry.TotalAmount,
						EntityID:        entry.EmployeeID,
						EntityName:      entry.EmployeeName,
						TransactionDate: monthEnd,
					},
					{
						EntryType:       ledger.EntryTypeCash,
						AccountName:     AccountCashBank,
						Description:     description,
						CreditAmount:    entry.TotalAmount,
						EntityID:        entry.EmployeeID,
						EntityName:      entry.EmployeeName,
						TransactionDate: monthEnd,
					},
				},
			})
			if err != nil {
				return err
			}
		}
		paid = true
		return nil
	})
	if err != nil {
		s.capture(ctx, "payroll.mark_paid", err)
		return err
	}
	if paid {
		if s.metrics != nil {
			s.metrics.EntryPaid()
		}
		s.recordAudit(ctx, actorID, "payroll.mark_paid", fmt.Sprintf("%d", entryID), nil)
	}
	return nil
}

// ClearResult reports what a period clearing removed.
type ClearResult struct {
	Entries int64
	GLRows  int64
}

// ClearPeriod deletes the period's payroll entries (children cascade) and
// every GL row they produced, leaving nothing dangling.
func (s *Service) ClearPeriod(ctx context.Context, month time.Month, year int, actorID int64) (ClearResult, error) {
	if err := shared.ValidatePeriod(month, year); err != nil {
		return ClearResult{}, err
	}
	var result ClearResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids, err := tx.DeleteEntriesForPeriod(ctx, month, year)
		if err != nil {
			return err
		}
		result.Entries = int64(len(ids))
		glTx := tx.Ledger()
		for _, id := range ids {
			for _, refType := range []ledger.ReferenceType{ledger.ReferenceManual, ledger.ReferencePayrollPayment} {
				n, err := glTx.DeleteByReference(ctx, refType, id)
				if err != nil {
					return err
				}
				result.GLRows += n
			}
		}
		return nil
	})
	if err != nil {
		s.capture(ctx, "payroll.clear_period", err)
		return ClearResult{}, err
	}
	s.recordAudit(ctx, actorID, "payroll.clear_period", fmt.Sprintf("%d-%02d", year, int(month)), map[string]any{
		"entries": result.Entries,
		"gl_rows": result.GLRows,
	})
	return result, nil
}

// GetEntry returns one entry with its child rows.
func (s *Service) GetEntry(ctx context.Context, entryID int64) (Entry, []Addition, []Deduction, error) {
	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return Entry{}, nil, nil, err
	}
	additions, err := s.repo.ListAdditions(ctx, entryID)
	if err != nil {
		return Entry{}, nil, nil, err
	}
	deductions, err := s.repo.ListDeductions(ctx, entryID)
	if err != nil {
		return Entry{}, nil, nil, err
	}
	return entry, additions, deductions, nil
}

// ListEntries returns the period's entries.
func (s *Service) ListEntries(ctx context.Context, month time.Month, year int) ([]Entry, error) {
	if err := shared.ValidatePeriod(month, year); err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, month, year)
}

func validateChildInput(description string, amount float64) error {
	if description == "" {
		return errors.New("payroll: description required")
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// capture reports store failures to the error sink. Domain rejections are
// the caller's problem, not incidents.
func (s *Service) capture(ctx context.Context, operation string, err error) {
	if s.errSink == nil || err == nil {
		return
	}
	var verr *ledger.ValidationError
	switch {
	case errors.Is(err, ErrEntryNotFound),
		errors.Is(err, ErrPeriodExists),
		errors.Is(err, ErrChildNotFound),
		errors.Is(err, ledger.ErrSourceAlreadyLinked),
		errors.As(err, &verr):
		return
	}
	s.errSink.Capture(ctx, operation, err)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "payroll_entry",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
}
