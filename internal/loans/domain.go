package loans

import (
	"errors"
	"time"

	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// DefaultCapMultiple limits new loans to three times the base salary unless
// overridden per loan.
const DefaultCapMultiple = 3.0

// Loan tracks an employee advance amortised against monthly pay.
type Loan struct {
	ID             int64
	EmployeeID     int64
	Principal      float64
	Remaining      float64
	MonthlyPercent float64
	CapMultiple    float64
	SkipMonths     []string
	Closed         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasSkip reports whether the period key is already in the skip set.
func (l Loan) HasSkip(key string) bool {
	for _, k := range l.SkipMonths {
		if k == key {
			return true
		}
	}
	return false
}

// MonthlyCredit returns the amount withheld from the employee's pay for the
// given month. Skipped months contribute nothing; the last instalment is
// capped at the remaining balance so it can never overshoot.
func (l Loan) MonthlyCredit(period shared.Period) float64 {
	if l.Closed || l.Remaining <= 0 || l.HasSkip(period.Key()) {
		return 0
	}
	credit := shared.Round2(l.Principal * l.MonthlyPercent / 100)
	if credit > l.Remaining {
		credit = l.Remaining
	}
	return credit
}

var (
	// ErrOverCap indicates the principal exceeds salary times cap multiple.
	ErrOverCap = errors.New("loans: principal exceeds salary cap")
	// ErrLoanClosed indicates a write against a settled loan.
	ErrLoanClosed = errors.New("loans: loan already closed")
	// ErrLoanNotFound indicates no loan matches the identifier.
	ErrLoanNotFound = errors.New("loans: loan not found")
)

// CreateInput carries the fields needed to open a loan.
type CreateInput struct {
	EmployeeID     int64
	Principal      float64
	MonthlyPercent float64
	CapMultiple    float64
	ActorID        int64
}

// Validate checks structural constraints; the salary cap is checked by the
// service against employee master data.
func (in CreateInput) Validate() error {
	if in.EmployeeID == 0 {
		return errors.New("loans: employee required")
	}
	if in.Principal <= 0 {
		return errors.New("loans: principal must be positive")
	}
	if in.MonthlyPercent <= 0 || in.MonthlyPercent > 100 {
		return errors.New("loans: monthly percent must be in (0,100]")
	}
	if in.CapMultiple < 0 {
		return errors.New("loans: cap multiple cannot be negative")
	}
	return nil
}

// SkipMonthInput targets one loan, all open loans of one employee, or every
// open loan, depending on which fields are set.
type SkipMonthInput struct {
	LoanID     *int64
	EmployeeID *int64
	PeriodKey  string
	ActorID    int64
}

// PayoffInput reduces a loan's balance. A nil Amount settles the full
// remaining balance.
type PayoffInput struct {
	LoanID  int64
	Amount  *float64
	ActorID int64
}
