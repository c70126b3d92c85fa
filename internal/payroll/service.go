package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/MohammedEweedan/gaja-erp/internal/attendance"
	"github.com/MohammedEweedan/gaja-erp/internal/ledger"
	"github.com/MohammedEweedan/gaja-erp/internal/observability"
	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// computeConcurrency bounds the per-employee fan-out. Computation has no
// cross-employee dependency, so rows are derived in parallel.
const computeConcurrency = 8

// LoanSchedule is the slice of the loan subsystem the payroll engine needs.
type LoanSchedule interface {
	ScheduleForMonth(ctx context.Context, period shared.Period) (map[int64]float64, error)
	WithholdTx(ctx context.Context, tx pgx.Tx, credits map[int64]float64) error
}

// Service orchestrates payroll computation and the month lifecycle:
// Open (drafts editable) -> Closing -> Archived (immutable).
type Service struct {
	repo   Repository
	inputs attendance.Provider
	loans  LoanSchedule
	poster ledger.Poster
	locker  shared.Locker
	audit   shared.AuditRecorder
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, inputs attendance.Provider, loans LoanSchedule, poster ledger.Poster, locker shared.Locker, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		inputs: inputs,
		loans:  loans,
		poster: poster,
		locker: locker,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches the close counters. Safe to leave unset.
func (s *Service) WithMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// ComputeMonth derives draft rows for every matching employee. It performs
// no writes; callers persist the result through SaveMonth.
func (s *Service) ComputeMonth(ctx context.Context, year, month int, filter Filter) ([]Row, error) {
	period, err := shared.NewPeriod(year, month)
	if err != nil {
		return nil, err
	}
	employees, err := s.repo.ListEmployees(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(employees) == 0 {
		return nil, nil
	}
	sales, err := s.inputs.SalesMetrics(ctx, period)
	if err != nil {
		return nil, err
	}
	credits, err := s.loans.ScheduleForMonth(ctx, period)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(employees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(computeConcurrency)
	for i, emp := range employees {
		g.Go(func() error {
			summary, err := s.inputs.Summary(gctx, emp.ID, period)
			if err != nil {
				return fmt.Errorf("payroll: attendance for %d: %w", emp.ID, err)
			}
			adj, err := s.inputs.Adjustments(gctx, emp.ID, period)
			if err != nil {
				return fmt.Errorf("payroll: adjustments for %d: %w", emp.ID, err)
			}
			rows[i] = ComputeRow(emp, period, ComputeInputs{
				Summary:     summary,
				Adjustments: adj,
				Sales:       sales[emp.ID],
				LoanCredit:  credits[emp.ID],
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveMonth upserts draft rows for the period. Past months are read-only
// even while nominally open.
func (s *Service) SaveMonth(ctx context.Context, year, month int, rows []Row) error {
	period, err := shared.NewPeriod(year, month)
	if err != nil {
		return err
	}
	if period.IsPast(s.now()) {
		return fmt.Errorf("%w: %s", shared.ErrPeriodReadOnly, period.Key())
	}
	for i := range rows {
		rows[i].Year = period.Year
		rows[i].Month = period.Month
	}
	return s.repo.UpsertDrafts(ctx, rows)
}

// Drafts returns the period's draft rows.
func (s *Service) Drafts(ctx context.Context, year, month int) ([]Row, error) {
	period, err := shared.NewPeriod(year, month)
	if err != nil {
		return nil, err
	}
	return s.repo.ListDrafts(ctx, period)
}

// Archived returns the period's archived rows.
func (s *Service) Archived(ctx context.Context, year, month int) ([]ArchivedRow, error) {
	period, err := shared.NewPeriod(year, month)
	if err != nil {
		return nil, err
	}
	return s.repo.ListArchived(ctx, period)
}

// CloseMonth archives every draft row and posts salaries to the ledger.
// The whole sequence runs under an advisory lock and inside a single
// transaction: on any failure nothing is committed.
func (s *Service) CloseMonth(ctx context.Context, in CloseInput) (int, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	period := shared.Period{Year: in.Year, Month: in.Month}

	release, err := s.locker.Acquire(ctx, shared.PayrollCloseKey(period))
	if err != nil {
		return 0, err
	}
	defer release()

	closedAt := s.now()
	archived := 0
	posted := 0
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		drafts, err := s.repo.DraftsForUpdate(ctx, tx, period)
		if err != nil {
			return err
		}
		if len(drafts) == 0 {
			return fmt.Errorf("%w: %s", ErrNoDraftRows, period.Key())
		}

		// Withhold exactly what each draft deducted, in the same
		// transaction, so balances and archived rows cannot diverge even
		// when a loan was skipped or paid off after the drafts were saved.
		withheld := make(map[int64]float64)
		for _, draft := range drafts {
			if draft.LoanCredit > 0 {
				withheld[draft.EmployeeID] = draft.LoanCredit
			}
		}
		if err := s.loans.WithholdTx(ctx, tx, withheld); err != nil {
			return err
		}

		for _, draft := range drafts {
			row := ArchivedRow{
				Row:      draft,
				Locked:   true,
				ClosedBy: in.ActorID,
				ClosedAt: closedAt,
				GLDocNo:  draft.DocNo(),
			}
			if err := s.repo.InsertArchived(ctx, tx, row); err != nil {
				return err
			}
			archived++

			if draft.Net.LYD <= 0 {
				continue
			}
			employeeID := draft.EmployeeID
			batch := ledger.Batch{
				DocNo:    row.GLDocNo,
				Date:     closedAt,
				Note:     fmt.Sprintf("salary %s employee %d", period.Key(), employeeID),
				Ref:      ledger.Ref{EmployeeID: &employeeID},
				PostedBy: in.ActorID,
				Lines: []ledger.Line{
					{Account: in.SalaryExpenseAccount, Debit: draft.Net.LYD, OrigAmount: draft.Net.LYD, OrigCurrency: ledger.CurrencyLYD},
					{Account: in.BankAccount, Credit: draft.Net.LYD, OrigAmount: draft.Net.LYD, OrigCurrency: ledger.CurrencyLYD},
				},
			}
			n, err := s.poster.PostTx(ctx, tx, batch)
			if err != nil {
				return err
			}
			posted += n
		}

		deleted, err := s.repo.DeleteDrafts(ctx, tx, period)
		if err != nil {
			return err
		}
		if deleted != int64(len(drafts)) {
			return fmt.Errorf("payroll: deleted %d drafts, expected %d", deleted, len(drafts))
		}
		return nil
	})
	if err != nil {
		s.metrics.ObservePayrollClose("error", 0)
		return 0, err
	}
	s.metrics.ObservePayrollClose("ok", posted)

	s.logger.Info("payroll month closed",
		slog.String("period", period.Key()),
		slog.Int("archived", archived),
		slog.Int("gl_rows", posted))
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  in.ActorID,
			Action:   "payroll.close",
			Entity:   "payroll_month",
			EntityID: period.Key(),
			Meta: map[string]any{
				"archived": archived,
				"gl_rows":  posted,
			},
			At: closedAt,
		})
	}
	return archived, nil
}
