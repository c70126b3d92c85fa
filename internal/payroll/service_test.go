package payroll

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/MohammedEweedan/gaja-erp/internal/attendance"
	"github.com/MohammedEweedan/gaja-erp/internal/ledger"
	"github.com/MohammedEweedan/gaja-erp/internal/observability"
	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

type draftKey struct {
	year, month int
	employeeID  int64
}

type memoryPayrollRepo struct {
	employees []Employee
	drafts    map[draftKey]Row
	archive   map[draftKey]ArchivedRow
}

func newMemoryPayrollRepo(employees ...Employee) *memoryPayrollRepo {
	return &memoryPayrollRepo{
		employees: employees,
		drafts:    make(map[draftKey]Row),
		archive:   make(map[draftKey]ArchivedRow),
	}
}

func key(r Row) draftKey {
	return draftKey{year: r.Year, month: r.Month, employeeID: r.EmployeeID}
}

func (m *memoryPayrollRepo) ListEmployees(ctx context.Context, filter Filter) ([]Employee, error) {
	if len(filter.EmployeeIDs) == 0 {
		return m.employees, nil
	}
	var out []Employee
	for _, emp := range m.employees {
		for _, id := range filter.EmployeeIDs {
			if emp.ID == id {
				out = append(out, emp)
			}
		}
	}
	return out, nil
}

func (m *memoryPayrollRepo) BaseSalaryLYD(ctx context.Context, employeeID int64) (float64, error) {
	for _, emp := range m.employees {
		if emp.ID == employeeID {
			return emp.Salary.LYD, nil
		}
	}
	return 0, shared.ErrNotFound
}

func (m *memoryPayrollRepo) ListDrafts(ctx context.Context, period shared.Period) ([]Row, error) {
	var out []Row
	for _, emp := range m.employees {
		if d, ok := m.drafts[draftKey{period.Year, period.Month, emp.ID}]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryPayrollRepo) UpsertDrafts(ctx context.Context, rows []Row) error {
	for _, r := range rows {
		m.drafts[key(r)] = r
	}
	return nil
}

func (m *memoryPayrollRepo) ListArchived(ctx context.Context, period shared.Period) ([]ArchivedRow, error) {
	var out []ArchivedRow
	for _, emp := range m.employees {
		if a, ok := m.archive[draftKey{period.Year, period.Month, emp.ID}]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryPayrollRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (m *memoryPayrollRepo) DraftsForUpdate(ctx context.Context, tx pgx.Tx, period shared.Period) ([]Row, error) {
	return m.ListDrafts(ctx, period)
}

func (m *memoryPayrollRepo) InsertArchived(ctx context.Context, tx pgx.Tx, row ArchivedRow) error {
	k := key(row.Row)
	if _, exists := m.archive[k]; exists {
		return ErrAlreadyClosed
	}
	m.archive[k] = row
	return nil
}

func (m *memoryPayrollRepo) DeleteDrafts(ctx context.Context, tx pgx.Tx, period shared.Period) (int64, error) {
	var deleted int64
	for k := range m.drafts {
		if k.year == period.Year && k.month == period.Month {
			delete(m.drafts, k)
			deleted++
		}
	}
	return deleted, nil
}

type fakeProvider struct {
	summaries map[int64]attendance.Summary
	sales     map[int64]attendance.SalesMetric
	adj       map[int64]attendance.Adjustments
}

func (p *fakeProvider) Summary(ctx context.Context, employeeID int64, period shared.Period) (attendance.Summary, error) {
	return p.summaries[employeeID], nil
}

func (p *fakeProvider) Holidays(ctx context.Context, period shared.Period) (map[string]struct{}, error) {
	return nil, nil
}

func (p *fakeProvider) SalesMetrics(ctx context.Context, period shared.Period) (map[int64]attendance.SalesMetric, error) {
	return p.sales, nil
}

func (p *fakeProvider) Adjustments(ctx context.Context, employeeID int64, period shared.Period) (attendance.Adjustments, error) {
	return p.adj[employeeID], nil
}

type fakeLoans struct {
	schedule map[int64]float64
	withheld []map[int64]float64
}

func (l *fakeLoans) ScheduleForMonth(ctx context.Context, period shared.Period) (map[int64]float64, error) {
	return l.schedule, nil
}

func (l *fakeLoans) WithholdTx(ctx context.Context, tx pgx.Tx, credits map[int64]float64) error {
	l.withheld = append(l.withheld, credits)
	return nil
}

type fakePoster struct {
	batches []ledger.Batch
}

func (p *fakePoster) PostTx(ctx context.Context, tx pgx.Tx, batch ledger.Batch) (int, error) {
	if err := batch.Validate(); err != nil {
		return 0, err
	}
	p.batches = append(p.batches, batch)
	return len(batch.Lines), nil
}

type fakeLocker struct {
	held map[string]bool
}

func (l *fakeLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[key] {
		return nil, shared.ErrLockHeld
	}
	l.held[key] = true
	return func() { delete(l.held, key) }, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2025, time.January, 31, 18, 0, 0, 0, time.UTC)

func newCloseFixture(t *testing.T, employees ...Employee) (*Service, *memoryPayrollRepo, *fakePoster, *fakeLoans) {
	t.Helper()
	repo := newMemoryPayrollRepo(employees...)
	poster := &fakePoster{}
	loans := &fakeLoans{schedule: map[int64]float64{}}
	provider := &fakeProvider{
		summaries: map[int64]attendance.Summary{},
		sales:     map[int64]attendance.SalesMetric{},
		adj:       map[int64]attendance.Adjustments{},
	}
	svc := NewService(repo, provider, loans, poster, &fakeLocker{}, nil, slog.Default())
	svc.WithNow(fixedClock(testNow))
	return svc, repo, poster, loans
}

func draft(employeeID int64, netLYD float64) Row {
	return Row{
		EmployeeID: employeeID,
		Year:       2025,
		Month:      1,
		Base:       Amounts{LYD: netLYD},
		Net:        Amounts{LYD: netLYD},
	}
}

func TestCloseMonthArchivesAndPosts(t *testing.T) {
	svc, repo, poster, loans := newCloseFixture(t,
		Employee{ID: 1}, Employee{ID: 2}, Employee{ID: 3})
	repo.drafts[key(draft(1, 1500))] = draft(1, 1500)
	repo.drafts[key(draft(2, 900.5))] = draft(2, 900.5)
	repo.drafts[key(draft(3, 0))] = draft(3, 0)

	archived, err := svc.CloseMonth(context.Background(), CloseInput{
		Year: 2025, Month: 1, BankAccount: 10200, SalaryExpenseAccount: 51000, ActorID: 42,
	})
	require.NoError(t, err)
	require.Equal(t, 3, archived)

	// All drafts gone, all rows archived.
	require.Empty(t, repo.drafts)
	require.Len(t, repo.archive, 3)

	row := repo.archive[draftKey{2025, 1, 1}]
	require.True(t, row.Locked)
	require.Equal(t, int64(42), row.ClosedBy)
	require.Equal(t, testNow, row.ClosedAt)
	require.Equal(t, "PR-202501-1", row.GLDocNo)

	// 2 GL rows per employee with positive net LYD; zero-net rows post nothing.
	require.Len(t, poster.batches, 2)
	for _, batch := range poster.batches {
		require.Len(t, batch.Lines, 2)
		var debit, credit float64
		for _, line := range batch.Lines {
			debit += line.Debit
			credit += line.Credit
		}
		require.Equal(t, debit, credit)
	}
	require.Equal(t, int64(51000), poster.batches[0].Lines[0].Account)
	require.Equal(t, 1500.0, poster.batches[0].Lines[0].Debit)
	require.Equal(t, int64(10200), poster.batches[0].Lines[1].Account)
	require.Equal(t, 1500.0, poster.batches[0].Lines[1].Credit)

	// Loan withholding ran once, in the same close.
	require.Len(t, loans.withheld, 1)
}

func TestCloseMonthWithholdsDraftLoanCredits(t *testing.T) {
	svc, repo, _, loans := newCloseFixture(t, Employee{ID: 1}, Employee{ID: 2})

	// Employee 1's draft was saved while the loan still amortized; the loan
	// was then skipped or paid off before the close. Employee 2 has an open
	// loan but no draft this month.
	withCredit := draft(1, 900)
	withCredit.LoanCredit = 100
	repo.drafts[key(withCredit)] = withCredit
	loans.schedule = map[int64]float64{1: 50, 2: 75}

	_, err := svc.CloseMonth(context.Background(), CloseInput{
		Year: 2025, Month: 1, BankAccount: 10200, SalaryExpenseAccount: 51000,
	})
	require.NoError(t, err)

	// Balances move by exactly what the drafts deducted from net pay, not
	// by the schedule as it stands at close time.
	require.Len(t, loans.withheld, 1)
	require.Equal(t, map[int64]float64{1: 100}, loans.withheld[0])
	require.NotContains(t, loans.withheld[0], int64(2))
}

func TestCloseMonthNoDrafts(t *testing.T) {
	svc, repo, poster, _ := newCloseFixture(t, Employee{ID: 1})

	_, err := svc.CloseMonth(context.Background(), CloseInput{
		Year: 2025, Month: 1, BankAccount: 10200, SalaryExpenseAccount: 51000,
	})
	require.ErrorIs(t, err, ErrNoDraftRows)
	require.Empty(t, repo.archive)
	require.Empty(t, poster.batches)
}

func TestCloseMonthTwiceRejected(t *testing.T) {
	svc, repo, _, _ := newCloseFixture(t, Employee{ID: 1})
	repo.drafts[key(draft(1, 1000))] = draft(1, 1000)

	_, err := svc.CloseMonth(context.Background(), CloseInput{
		Year: 2025, Month: 1, BankAccount: 10200, SalaryExpenseAccount: 51000,
	})
	require.NoError(t, err)

	// Drafts reappearing after a close must not produce a second archive row.
	repo.drafts[key(draft(1, 1000))] = draft(1, 1000)
	_, err = svc.CloseMonth(context.Background(), CloseInput{
		Year: 2025, Month: 1, BankAccount: 10200, SalaryExpenseAccount: 51000,
	})
	require.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestCloseMonthRequiresAccounts(t *testing.T) {
	svc, _, _, _ := newCloseFixture(t, Employee{ID: 1})

	_, err := svc.CloseMonth(context.Background(), CloseInput{Year: 2025, Month: 1})
	require.Error(t, err)

	_, err = svc.CloseMonth(context.Background(), CloseInput{Year: 2025, Month: 1, BankAccount: 10200})
	require.Error(t, err)
}

func TestCloseMonthLockHeld(t *testing.T) {
	svc, repo, _, _ := newCloseFixture(t, Employee{ID: 1})
	repo.drafts[key(draft(1, 1000))] = draft(1, 1000)

	locker := &fakeLocker{}
	svc.locker = locker
	_, err := locker.Acquire(context.Background(), shared.PayrollCloseKey(shared.Period{Year: 2025, Month: 1}))
	require.NoError(t, err)

	_, err = svc.CloseMonth(context.Background(), CloseInput{
		Year: 2025, Month: 1, BankAccount: 10200, SalaryExpenseAccount: 51000,
	})
	require.ErrorIs(t, err, shared.ErrLockHeld)
}

func TestCloseMonthCountsOutcomes(t *testing.T) {
	svc, repo, _, _ := newCloseFixture(t, Employee{ID: 1})
	repo.drafts[key(draft(1, 1500))] = draft(1, 1500)

	metrics := observability.NewMetrics()
	svc.WithMetrics(metrics)

	_, err := svc.CloseMonth(context.Background(), CloseInput{
		Year: 2025, Month: 1, BankAccount: 10200, SalaryExpenseAccount: 51000,
	})
	require.NoError(t, err)

	// The second attempt fails and lands on the error counter.
	repo.drafts[key(draft(1, 1500))] = draft(1, 1500)
	_, err = svc.CloseMonth(context.Background(), CloseInput{
		Year: 2025, Month: 1, BankAccount: 10200, SalaryExpenseAccount: 51000,
	})
	require.ErrorIs(t, err, ErrAlreadyClosed)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	require.Contains(t, body, `gaja_payroll_closes_total{outcome="ok"} 1`)
	require.Contains(t, body, `gaja_payroll_closes_total{outcome="error"} 1`)
	require.Contains(t, body, "gaja_ledger_rows_posted_total 2")
}

func TestSaveMonthRejectsPastPeriod(t *testing.T) {
	svc, repo, _, _ := newCloseFixture(t, Employee{ID: 1})

	err := svc.SaveMonth(context.Background(), 2024, 12, []Row{draft(1, 500)})
	require.ErrorIs(t, err, shared.ErrPeriodReadOnly)
	require.Empty(t, repo.drafts)

	err = svc.SaveMonth(context.Background(), 2025, 1, []Row{draft(1, 500)})
	require.NoError(t, err)
	require.Len(t, repo.drafts, 1)
}

func TestComputeMonthFansOutPerEmployee(t *testing.T) {
	repo := newMemoryPayrollRepo(
		Employee{ID: 1, Salary: Amounts{LYD: 2600}, CommissionType: CommissionPercent, CommissionRate: 2},
		Employee{ID: 2, Salary: Amounts{LYD: 1300}},
	)
	provider := &fakeProvider{
		summaries: map[int64]attendance.Summary{
			1: {WorkingDays: 26, PresentDays: 26, PresentWorkingDays: 26},
			2: {WorkingDays: 26, PresentDays: 13, PresentWorkingDays: 13},
		},
		sales: map[int64]attendance.SalesMetric{1: {TotalLYD: 5000}},
		adj:   map[int64]attendance.Adjustments{},
	}
	loans := &fakeLoans{schedule: map[int64]float64{2: 50}}
	svc := NewService(repo, provider, loans, &fakePoster{}, &fakeLocker{}, nil, slog.Default())
	svc.WithNow(fixedClock(testNow))

	rows, err := svc.ComputeMonth(context.Background(), 2025, 1, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, int64(1), rows[0].EmployeeID)
	require.Equal(t, 2600.0, rows[0].Base.LYD)
	require.Equal(t, 100.0, rows[0].Commission)

	require.Equal(t, int64(2), rows[1].EmployeeID)
	require.Equal(t, 650.0, rows[1].Base.LYD)
	require.Equal(t, 50.0, rows[1].LoanCredit)
	require.Equal(t, 600.0, rows[1].Net.LYD)
}
