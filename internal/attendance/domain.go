package attendance

import (
	"context"

	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// Day codes recorded per employee per day.
const (
	CodePresent = "P"
	CodeAbsent  = "A"
)

// Summary aggregates one employee's attendance for one month. It is computed
// on demand, never persisted, and is a pure input to payroll computation.
type Summary struct {
	TotalDays          int
	RealDays           int
	WorkingDays        int
	PresentDays        int
	PresentWorkingDays int
	AbsenceDays        int
	HolidayWorkedDays  int
	MissingMinutes     int
	ExceptionDays      map[string]int
}

// SalesMetric carries one employee's monthly sales figures.
type SalesMetric struct {
	TotalLYD float64
	Qty      float64
}

// Adjustments carries manual period bonus/deduction totals.
type Adjustments struct {
	Bonus     float64
	Deduction float64
}

// Provider supplies the monthly payroll inputs. Implementations must be
// deterministic for a given period.
type Provider interface {
	Summary(ctx context.Context, employeeID int64, period shared.Period) (Summary, error)
	Holidays(ctx context.Context, period shared.Period) (map[string]struct{}, error)
	SalesMetrics(ctx context.Context, period shared.Period) (map[int64]SalesMetric, error)
	Adjustments(ctx context.Context, employeeID int64, period shared.Period) (Adjustments, error)
}
