package loans

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// SalaryLookup resolves an employee's base salary in LYD for the loan cap
// check. Implemented by the payroll employee store.
type SalaryLookup interface {
	BaseSalaryLYD(ctx context.Context, employeeID int64) (float64, error)
}

// Service orchestrates the loan amortization subsystem.
type Service struct {
	repo     Repository
	salaries SalaryLookup
	audit    shared.AuditRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, salaries SalaryLookup, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, salaries: salaries, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create opens a loan after enforcing the salary cap.
func (s *Service) Create(ctx context.Context, in CreateInput) (Loan, error) {
	if err := in.Validate(); err != nil {
		return Loan{}, err
	}
	cap := in.CapMultiple
	if cap == 0 {
		cap = DefaultCapMultiple
	}
	salary, err := s.salaries.BaseSalaryLYD(ctx, in.EmployeeID)
	if err != nil {
		return Loan{}, err
	}
	if in.Principal > salary*cap {
		return Loan{}, fmt.Errorf("%w: %.2f over %.2f x %.1f", ErrOverCap, in.Principal, salary, cap)
	}
	loan, err := s.repo.Insert(ctx, Loan{
		EmployeeID:     in.EmployeeID,
		Principal:      in.Principal,
		MonthlyPercent: in.MonthlyPercent,
		CapMultiple:    cap,
	})
	if err != nil {
		return Loan{}, err
	}
	s.recordAudit(ctx, in.ActorID, "loan.create", loan.ID, map[string]any{
		"employee_id": loan.EmployeeID,
		"principal":   loan.Principal,
	})
	return loan, nil
}

// Get returns a loan by identifier.
func (s *Service) Get(ctx context.Context, id int64) (Loan, error) {
	return s.repo.Get(ctx, id)
}

// SkipMonth excludes a period from amortization for one loan, all open
// loans of an employee, or all open loans. Adding the same key twice leaves
// exactly one entry. Returns the number of loans newly marked.
func (s *Service) SkipMonth(ctx context.Context, in SkipMonthInput) (int, error) {
	period, err := shared.ParsePeriodKey(in.PeriodKey)
	if err != nil {
		return 0, err
	}

	var targets []Loan
	switch {
	case in.LoanID != nil:
		loan, err := s.repo.Get(ctx, *in.LoanID)
		if err != nil {
			return 0, err
		}
		if loan.Closed {
			return 0, ErrLoanClosed
		}
		targets = []Loan{loan}
	case in.EmployeeID != nil:
		targets, err = s.repo.ListOpenByEmployee(ctx, *in.EmployeeID)
	default:
		targets, err = s.repo.ListOpen(ctx)
	}
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, loan := range targets {
		added, err := s.repo.AddSkipMonth(ctx, loan.ID, period.Key())
		if err != nil {
			return marked, err
		}
		if added {
			marked++
		}
	}
	s.recordAudit(ctx, in.ActorID, "loan.skip_month", 0, map[string]any{
		"period": period.Key(),
		"marked": marked,
	})
	return marked, nil
}

// Payoff reduces the remaining balance by the given amount, or settles the
// loan entirely when no amount is supplied. The balance floors at zero and
// a zero balance closes the loan for good.
func (s *Service) Payoff(ctx context.Context, in PayoffInput) (Loan, error) {
	loan, err := s.repo.Get(ctx, in.LoanID)
	if err != nil {
		return Loan{}, err
	}
	if loan.Closed {
		return Loan{}, ErrLoanClosed
	}
	amount := loan.Remaining
	if in.Amount != nil {
		amount = *in.Amount
	}
	if amount <= 0 {
		return Loan{}, fmt.Errorf("loans: payoff amount must be positive")
	}
	remaining := shared.Round2(loan.Remaining - amount)
	if remaining < 0 {
		remaining = 0
	}
	closed := remaining == 0
	if err := s.repo.SetRemaining(ctx, loan.ID, remaining, closed); err != nil {
		return Loan{}, err
	}
	loan.Remaining = remaining
	loan.Closed = closed
	s.recordAudit(ctx, in.ActorID, "loan.payoff", loan.ID, map[string]any{
		"amount":    amount,
		"remaining": remaining,
		"closed":    closed,
	})
	return loan, nil
}

// ScheduleForMonth returns this month's loan credit per employee without
// touching balances. The payroll computation engine consumes this; balances
// are only reduced when the month actually closes.
func (s *Service) ScheduleForMonth(ctx context.Context, period shared.Period) (map[int64]float64, error) {
	open, err := s.repo.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	credits := make(map[int64]float64)
	for _, loan := range open {
		if credit := loan.MonthlyCredit(period); credit > 0 {
			credits[loan.EmployeeID] = shared.Round2(credits[loan.EmployeeID] + credit)
		}
	}
	return credits, nil
}

// WithholdTx reduces loan balances by the amounts the payroll drafts
// actually deducted, inside the caller's transaction; used by the payroll
// close so loan balances and the archive commit together. Withholding the
// drafts' own figures keeps balances and archived rows in lockstep even
// when a loan changed after the drafts were saved.
func (s *Service) WithholdTx(ctx context.Context, tx pgx.Tx, credits map[int64]float64) error {
	return s.repo.WithholdTx(ctx, tx, credits)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, loanID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "loan",
		EntityID: fmt.Sprintf("%d", loanID),
		Meta:     meta,
		At:       s.now(),
	})
}
