package payroll

import (
	"context"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// memoryPayrollRepo backs Service tests with maps, including an in-memory GL
// store so the mirror can be asserted end to end.
type memoryPayrollRepo struct {
	employees   []Employee
	assignments []Assignment

	entries     map[int64]*Entry
	additions   map[int64]*Addition
	deductions  map[int64]*Deduction
	glEntries   map[int64]*ledger.Entry
	sourceLinks map[string]bool

	nextEntryID int64
	nextChildID int64
	nextGLID    int64
}

func newMemoryPayrollRepo() *memoryPayrollRepo {
	return &memoryPayrollRepo{
		entries:     make(map[int64]*Entry),
		additions:   make(map[int64]*Addition),
		deductions:  make(map[int64]*Deduction),
		glEntries:   make(map[int64]*ledger.Entry),
		sourceLinks: make(map[string]bool),
	}
}

func (r *memoryPayrollRepo) snapshot() *memoryPayrollRepo {
	cp := newMemoryPayrollRepo()
	cp.employees = r.employees
	cp.assignments = r.assignments
	cp.nextEntryID, cp.nextChildID, cp.nextGLID = r.nextEntryID, r.nextChildID, r.nextGLID
	for id, e := range r.entries {
		dup := *e
		cp.entries[id] = &dup
	}
	for id, a := range r.additions {
		dup := *a
		cp.additions[id] = &dup
	}
	for id, d := range r.deductions {
		dup := *d
		cp.deductions[id] = &dup
	}
	for id, g := range r.glEntries {
		dup := *g
		cp.glEntries[id] = &dup
	}
	for k, v := range r.sourceLinks {
		cp.sourceLinks[k] = v
	}
	return cp
}

func (r *memoryPayrollRepo) restore(snap *memoryPayrollRepo) {
	r.entries = snap.entries
	r.additions = snap.additions
	r.deductions = snap.deductions
	r.glEntries = snap.glEntries
	r.sourceLinks = snap.sourceLinks
	r.nextEntryID, r.nextChildID, r.nextGLID = snap.nextEntryID, snap.nextChildID, snap.nextGLID
}

func (r *memoryPayrollRepo) ListActiveEmployees(ctx context.Context) ([]Employee, error) {
	var out []Employee
	for _, e := range r.employees {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryPayrollRepo) ListAssignments(ctx context.Context, employeeID int64) ([]Assignment, error) {
	var out []Assignment
	for _, a := range r.assignments {
		if a.EmployeeID == employeeID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryPayrollRepo) GetEntry(ctx context.Context, id int64) (Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return *e, nil
}

func (r *memoryPayrollRepo) ListEntries(ctx context.Context, month time.Month, year int) ([]Entry, error) {
	var out []Entry
	for id := int64(1); id <= r.nextEntryID; id++ {
		if e, ok := r.entries[id]; ok && e.Month == month && e.Year == year {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memoryPayrollRepo) PeriodExists(ctx context.Context, month time.Month, year int) (bool, error) {
	for _, e := range r.entries {
		if e.Month == month && e.Year == year {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryPayrollRepo) ListAdditions(ctx context.Context, entryID int64) ([]Addition, error) {
	var out []Addition
	for id := int64(1); id <= r.nextChildID; id++ {
		if a, ok := r.additions[id]; ok && a.EntryID == entryID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memoryPayrollRepo) ListDeductions(ctx context.Context, entryID int64) ([]Deduction, error) {
	var out []Deduction
	for id := int64(1); id <= r.nextChildID; id++ {
		if d, ok := r.deductions[id]; ok && d.EntryID == entryID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memoryPayrollRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := r.snapshot()
	if err := fn(ctx, r); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memoryPayrollRepo) Ledger() ledger.TxRepository {
	return (*memoryGLTx)(r)
}

func (r *memoryPayrollRepo) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	for _, existing := range r.entries {
		if existing.EmployeeID == e.EmployeeID && existing.Month == e.Month && existing.Year == e.Year {
			return Entry{}, ErrPeriodExists
		}
	}
	r.nextEntryID++
	e.ID = r.nextEntryID
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	r.entries[e.ID] = &e
	return e, nil
}

func (r *memoryPayrollRepo) GetEntryForUpdate(ctx context.Context, id int64) (Entry, error) {
	return r.GetEntry(ctx, id)
}

func (r *memoryPayrollRepo) UpdateEntryTotals(ctx context.Context, id int64, additions, deductions, total float64) error {
	e, ok := r.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	e.TotalAdditions = additions
	e.TotalDeductions = deductions
	e.TotalAmount = total
	return nil
}

func (r *memoryPayrollRepo) UpdateEntryStatus(ctx context.Context, id int64, status EntryStatus) error {
	e, ok := r.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	e.Status = status
	return nil
}

func (r *memoryPayrollRepo) InsertAddition(ctx context.Context, a Addition) (Addition, error) {
	r.nextChildID++
	a.ID = r.nextChildID
	a.CreatedAt = time.Now()
	r.additions[a.ID] = &a
	return a, nil
}

func (r *memoryPayrollRepo) InsertDeduction(ctx context.Context, d Deduction) (Deduction, error) {
	r.nextChildID++
	d.ID = r.nextChildID
	d.CreatedAt = time.Now()
	r.deductions[d.ID] = &d
	return d, nil
}

func (r *memoryPayrollRepo) UpdateAddition(ctx context.Context, id int64, description string, amount float64) (int64, error) {
	a, ok := r.additions[id]
	if !ok || a.Automatic {
		return 0, ErrChildNotFound
	}
	a.Description = description
	a.Amount = amount
	return a.EntryID, nil
}

func (r *memoryPayrollRepo) UpdateDeduction(ctx context.Context, id int64, description string, amount float64) (int64, error) {
	d, ok := r.deductions[id]
	if !ok || d.Automatic {
		return 0, ErrChildNotFound
	}
	d.Description = description
	d.Amount = amount
	return d.EntryID, nil
}

func (r *memoryPayrollRepo) DeleteAddition(ctx context.Context, id int64) (int64, error) {
	a, ok := r.additions[id]
	if !ok || a.Automatic {
		return 0, ErrChildNotFound
	}
	delete(r.additions, id)
	return a.EntryID, nil
}

func (r *memoryPayrollRepo) DeleteDeduction(ctx context.Context, id int64) (int64, error) {
	d, ok := r.deductions[id]
	if !ok || d.Automatic {
		return 0, ErrChildNotFound
	}
	delete(r.deductions, id)
	return d.EntryID, nil
}

func (r *memoryPayrollRepo) SumChildren(ctx context.Context, entryID int64) (float64, float64, error) {
	var additions, deductions float64
	for _, a := range r.additions {
		if a.EntryID == entryID {
			additions += a.Amount
		}
	}
	for _, d := range r.deductions {
		if d.EntryID == entryID {
			deductions += d.Amount
		}
	}
	return additions, deductions, nil
}

func (r *memoryPayrollRepo) DeleteEntriesForPeriod(ctx context.Context, month time.Month, year int) ([]int64, error) {
	var ids []int64
	for id, e := range r.entries {
		if e.Month == month && e.Year == year {
			ids = append(ids, id)
			delete(r.entries, id)
		}
	}
	for id, a := range r.additions {
		for _, entryID := range ids {
			if a.EntryID == entryID {
				delete(r.additions, id)
			}
		}
	}
	for id, d := range r.deductions {
		for _, entryID := range ids {
			if d.EntryID == entryID {
				delete(r.deductions, id)
			}
		}
	}
	return ids, nil
}

// memoryGLTx adapts the repo's GL maps to ledger.TxRepository.
type memoryGLTx memoryPayrollRepo

func (g *memoryGLTx) InsertEntry(ctx context.Context, txnID uuid.UUID, refType ledger.ReferenceType, refID int64, line ledger.LineInput) (ledger.Entry, error) {
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

func (g *memoryGLTx) EntriesForReference(ctx context.Context, refType ledger.ReferenceType, refID int64) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for id := int64(1); id <= g.nextGLID; id++ {
		if e, ok := g.glEntries[id]; ok && e.ReferenceType == refType && e.ReferenceID == refID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (g *memoryGLTx) UpdateEntryAmounts(ctx context.Context, entryID int64, debit, credit float64, description string) error {
	e, ok := g.glEntries[entryID]
	if !ok {
		return ledger.ErrEntryNotFound
	}
	e.DebitAmount = debit
	e.CreditAmount = credit
	if description != "" {
		e.Description = description
	}
	return nil
}

func (g *memoryGLTx) DeleteByReference(ctx context.Context, refType ledger.ReferenceType, refID int64) (int64, error) {
	var deleted int64
	for id, e := range g.glEntries {
		if e.ReferenceType == refType && e.ReferenceID == refID {
			delete(g.glEntries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (g *memoryGLTx) LinkSource(ctx context.Context, refType ledger.ReferenceType, refID int64) error {
	key := string(refType) + ":" + strconv.FormatInt(refID, 10)
	if g.sourceLinks[key] {
		return ledger.ErrSourceAlreadyLinked
	}
	g.sourceLinks[key] = true
	return nil
}

func (g *memoryGLTx) AddProjectCost(ctx context.Context, projectID int64, amount float64) error {
	return nil
}

func ptrFloat(v float64) *float64 { return &v }
func ptrTime(t time.Time) *time.Time {
	return &t
}

func newTestService(repo *memoryPayrollRepo) *Service {
	logger := slog.New(slog.DiscardHandler)
	return NewService(repo, NewComputer(logger), nil, nil, nil, nil, logger)
}

func TestGeneratePermanentEmployee(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	repo.employees = []Employee{
		{ID: 1, Name: "Asha", Category: "permanent", MonthlySalary: ptrFloat(5000), IsActive: true},
	}
	svc := newTestService(repo)

	result, err := svc.Generate(ctx, time.June, 2026, 10)
	require.NoError(t, err)
	require.Equal(t, 1, result.Generated)
	require.Equal(t, 0, result.Skipped)

	entries, err := svc.ListEntries(ctx, time.June, 2026)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.Equal(t, 30, entry.WorkingDays)
	require.Equal(t, 5000.0, entry.BasicSalary)
	require.Equal(t, 0.0, entry.TotalAdditions)
	require.Equal(t, 250.0, entry.TotalDeductions)
	require.Equal(t, 4750.0, entry.TotalAmount)
	require.Equal(t, StatusGenerated, entry.Status)

	gl, err := repo.Ledger().EntriesForReference(ctx, ledger.ReferenceManual, entry.ID)
	require.NoError(t, err)
	require.Len(t, gl, 2)
	require.Equal(t, AccountSalaryExpense, gl[0].AccountName)
	require.Equal(t, 5000.0, gl[0].DebitAmount)
	require.Equal(t, AccountSalaryPayable, gl[1].AccountName)
	require.Equal(t, 5000.0, gl[1].CreditAmount)
}

func TestGenerateConsultantFullMonth(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	repo.employees = []Employee{
		{ID: 2, Name: "Dev", Category: "consultant", MonthlySalary: ptrFloat(6600), IsActive: true},
	}
	repo.assignments = []Assignment{
		{ID: 1, EmployeeID: 2, ProjectID: 5, ProjectName: "Rollout", ProjectStatus: "active",
			StartDate: ptrTime(time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)),
			EndDate:   ptrTime(time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC))},
	}
	svc := newTestService(repo)

	_, err := svc.Generate(ctx, time.June, 2026, 10)
	require.NoError(t, err)

	entries, _ := svc.ListEntries(ctx, time.June, 2026)
	require.Len(t, entries, 1)
	entry := entries[0]

	// June 2026 has exactly 22 working days: a full calendar month at 6600/22.
	require.Equal(t, 22, entry.WorkingDays)
	require.Equal(t, 6600.0, entry.BasicSalary)
	require.NotNil(t, entry.ProjectID)
	require.Equal(t, int64(5), *entry.ProjectID)
	require.Equal(t, 330.0, entry.TotalDeductions)

	additions, _ := repo.ListAdditions(ctx, entry.ID)
	require.Len(t, additions, 1)
	require.Equal(t, ConsultantFeeLabel, additions[0].Description)
	require.Equal(t, 6600.0, additions[0].Amount)
	require.True(t, additions[0].Automatic)

	deductions, _ := repo.ListDeductions(ctx, entry.ID)
	require.Len(t, deductions, 1)
	require.Equal(t, TaxDeductionLabel, deductions[0].Description)
	require.Equal(t, 330.0, deductions[0].Amount)
}

func TestGenerateConsultantMidMonthWindow(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	repo.employees = []Employee{
		{ID: 3, Name: "Mina", Category: "contract", MonthlySalary: ptrFloat(6600), IsActive: true},
	}
	repo.assignments = []Assignment{
		{ID: 1, EmployeeID: 3, ProjectID: 9, ProjectStatus: "planning",
			StartDate: ptrTime(time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)),
			EndDate:   ptrTime(time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC))},
	}
	svc := newTestService(repo)

	_, err := svc.Generate(ctx, time.June, 2026, 10)
	require.NoError(t, err)

	entries, _ := svc.ListEntries(ctx, time.June, 2026)
	require.Len(t, entries, 1)

	// 12 working days from June 15 through June 30 at 300/day.
	require.Equal(t, 12, entries[0].WorkingDays)
	require.Equal(t, 3600.0, entries[0].BasicSalary)
	require.Less(t, entries[0].BasicSalary, 6600.0)
}

func TestGenerateSkipsCategorylessEmployee(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	repo.employees = []Employee{
		{ID: 1, Name: "Asha", Category: "permanent", MonthlySalary: ptrFloat(5000), IsActive: true},
		{ID: 4, Name: "Ghost", Category: "", IsActive: true},
	}
	svc := newTestService(repo)

	result, err := svc.Generate(ctx, time.June, 2026, 10)
	require.NoError(t, err)
	require.Equal(t, 1, result.Generated)
	require.Equal(t, 1, result.Skipped)
}

func TestGenerateZeroSalaryPostsNoLedgerRows(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	repo.employees = []Employee{
		{ID: 5, Name: "NoPay", Category: "permanent", IsActive: true},
	}
	svc := newTestService(repo)

	_, err := svc.Generate(ctx, time.June, 2026, 10)
	require.NoError(t, err)

	entries, _ := svc.ListEntries(ctx, time.June, 2026)
	require.Len(t, entries, 1)
	require.Equal(t, 0.0, entries[0].BasicSalary)
	require.Empty(t, repo.glEntries)
}

func TestGenerateDuplicatePeriodRejected(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	repo.employees = []Employee{
		{ID: 1, Name: "Asha", Category: "permanent", MonthlySalary: ptrFloat(5000), IsActive: true},
	}
	svc := newTestService(repo)

	_, err := svc.Generate(ctx, time.June, 2026, 10)
	require.NoError(t, err)

	_, err = svc.Generate(ctx, time.June, 2026, 10)
	require.ErrorIs(t, err, ErrPeriodExists)

	entries, _ := svc.ListEntries(ctx, time.June, 2026)
	require.Len(t, entries, 1)
	require.Len(t, repo.glEntries, 2)
}

func TestGenerateInvalidPeriod(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryPayrollRepo())

	_, err := svc.Generate(ctx, time.Month(13), 2026, 10)
	require.ErrorIs(t, err, shared.ErrInvalidPeriod)
}

type deniedLock struct{}

func (deniedLock) Acquire(ctx context.Context, key string) (func(), error) {
	return nil, shared.ErrLockHeld
}

func TestGenerateBlockedByPeriodLock(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	logger := slog.New(slog.DiscardHandler)
	svc := NewService(repo, NewComputer(logger), deniedLock{}, nil, nil, nil, logger)

	_, err := svc.Generate(ctx, time.June, 2026, 10)
	require.ErrorIs(t, err, shared.ErrLockHeld)
}

func TestRecordAdditionKeepsInvariantAndResyncsLedger(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	repo.employees = []Employee{
		{ID: 1, Name: "Asha", Category: "permanent", MonthlySalary: ptrFloat(5000), IsActive: true},
	}
	svc := newTestService(repo)

	_, err := svc.Generate(ctx, time.June, 2026, 10)
	require.NoError(t, err)
	entries, _ := svc.ListEntries(ctx, time.June, 2026)
	entryID := entries[0].ID

	_, err = svc.RecordAddition(ctx, entryID, "Overtime", 400)
	require.NoError(t, err)

	entry, _, _, err := svc.GetEntry(ctx, entryID)
	require.NoError(t, err)
	require.Equal(t, 400.0, entry.TotalAdditions)
	require.Equal(t, 250.0, entry.TotalDeductions)
	require.Equal(t, 5150.0, entry.TotalAmount)
	require.Equal(t, entry.TotalAmount, Round2(entry.BasicSalary+entry.TotalAdditions-entry.TotalDeductions))

	gl, _ := repo.Ledger().EntriesForReference(ctx, ledger.ReferenceManual, entryID)
	require.Len(t, gl, 2)
	require.Equal(t, 5400.0, gl[0].DebitAmount)
	require.Equal(t, 5400.0, gl[1].CreditAmount)
}

func TestRecordDeductionKeepsInvariant(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	repo.employees = []Employee{
		{ID: 1, Name: "Asha", Category: "permanent", MonthlySalary: ptrFloat(5000), IsActive: true},
	}
	svc := newTestService(repo)

	_, err := svc.Generate(ctx, time.June, 2026, 10)
	require.NoError(t, err)
	entries, _ := svc.ListEntries(ctx, time.June, 2026)
	entryID := entries[0].ID

	_, err = svc.RecordDeduction(ctx, entryID, "Advance recovery", 150)
	require.NoError(t, err)

	entry, _, deductions, err := svc.GetEntry(ctx, entryID)
	require.NoError(t, err)
	require.Len(t, deductions, 2)
	require.Equal(t, 400.0, entry.TotalDeductions)
	require.Equal(t, 4600.0, entry.TotalAmount)
}

func TestChildMutationRejectsAutomaticRows(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	repo.employees = []Employee{
		{ID: 1, Name: "Asha", Category: "permanent", MonthlySalary: ptrFloat(5000), IsActive: true},
	}
	svc := newTestService(repo)

	_, err := svc.Generate(ctx, time.June, 2026, 10)
	require.NoError(t, err)
	entries, _ := svc.ListEntries(ctx, time.June, 2026)
	deductions, _ := repo.ListDeductions(ctx, entries[0].ID)
	require.Len(t, deductions, 1)

	err = svc.DeleteDeduction(ctx, deductions[0].ID)
	require.ErrorIs(t, err, ErrChildNotFound)
}

func TestRecordAdditionValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryPayrollRepo())

	_, err := svc.RecordAddition(ctx, 1, "", 100)
	require.Error(t, err)
	_, err = svc.RecordAddition(ctx, 1, "Bonus", 0)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.RecordAddition(ctx, 99, "Bonus", 100)
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestMarkPaidPostsPaymentJournalOnce(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	repo.employees = []Employee{
		{ID: 1, Name: "Asha", Category: "permanent", MonthlySalary: ptrFloat(5000), IsActive: true},
	}
	svc := newTestService(repo)

	_, err := svc.Generate(ctx, time.June, 2026, 10)
	require.NoError(t, err)
	entries, _ := svc.ListEntries(ctx, time.June, 2026)
	entryID := entries[0].ID

	require.NoError(t, svc.MarkPaid(ctx, entryID, 10))

	entry, _, _, _ := svc.GetEntry(ctx, entryID)
	require.Equal(t, StatusPaid, entry.Status)

	payment, _ := repo.Ledger().EntriesForReference(ctx, ledger.ReferencePayrollPayment, entryID)
	require.Len(t, payment, 2)
	require.Equal(t, AccountSalaryPayable, payment[0].AccountName)
	require.Equal(t, 4750.0, payment[0].DebitAmount)
	require.Equal(t, AccountCashBank, payment[1].AccountName)
	require.Equal(t, 4750.0, payment[1].CreditAmount)

	// Second call is an idempotent no-op.
	require.NoError(t, svc.MarkPaid(ctx, entryID, 10))
	payment, _ = repo.Ledger().EntriesForReference(ctx, ledger.ReferencePayrollPayment, entryID)
	require.Len(t, payment, 2)
}

func TestMarkPaidMissingEntry(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryPayrollRepo())
	require.ErrorIs(t, svc.MarkPaid(ctx, 42, 10), ErrEntryNotFound)
}

func TestClearPeriodRemovesEntriesAndLedgerRows(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	repo.employees = []Employee{
		{ID: 1, Name: "Asha", Category: "permanent", MonthlySalary: ptrFloat(5000), IsActive: true},
		{ID: 2, Name: "Biko", Category: "permanent", MonthlySalary: ptrFloat(4200), IsActive: true},
		{ID: 3, Name: "Cara", Category: "permanent", MonthlySalary: ptrFloat(3900), IsActive: true},
	}
	svc := newTestService(repo)

	result, err := svc.Generate(ctx, time.June, 2026, 10)
	require.NoError(t, err)
	require.Equal(t, 3, result.Generated)
	require.Len(t, repo.glEntries, 6)

	cleared, err := svc.ClearPeriod(ctx, time.June, 2026, 10)
	require.NoError(t, err)
	require.Equal(t, int64(3), cleared.Entries)
	require.Equal(t, int64(6), cleared.GLRows)

	require.Empty(t, repo.entries)
	require.Empty(t, repo.additions)
	require.Empty(t, repo.deductions)
	require.Empty(t, repo.glEntries, "no dangling GL rows after clearing")
}

func TestClearPeriodRemovesPaymentRowsToo(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPayrollRepo()
	repo.employees = []Employee{
		{ID: 1, Name: "Asha", Category: "permanent", MonthlySalary: ptrFloat(5000), IsActive: true},
	}
	svc := newTestService(repo)

	_, err := svc.Generate(ctx, time.June, 2026, 10)
	require.NoError(t, err)
	entries, _ := svc.ListEntries(ctx, time.June, 2026)
	require.NoError(t, svc.MarkPaid(ctx, entries[0].ID, 10))
	require.Len(t, repo.glEntries, 4)

	cleared, err := svc.ClearPeriod(ctx, time.June, 2026, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), cleared.Entries)
	require.Equal(t, int64(4), cleared.GLRows)
	require.Empty(t, repo.glEntries)
}

func TestParseCategory(t *testing.T) {
	cases := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"permanent", CategoryPermanent, true},
		{"consultant", CategoryConsultant, true},
		{"contract", CategoryContract, true},
		{"", "", false},
		{"intern", "", false},
		{"Permanent", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseCategory(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}
