package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

const restDay = time.Friday

type pgProvider struct {
	pool *pgxpool.Pool
}

// NewProvider builds the Postgres-backed inputs provider reading the
// attendance, holiday, sales and adjustment tables.
func NewProvider(pool *pgxpool.Pool) Provider {
	return &pgProvider{pool: pool}
}

func (p *pgProvider) Holidays(ctx context.Context, period shared.Period) (map[string]struct{}, error) {
	rows, err := p.pool.Query(ctx, `SELECT day FROM holidays WHERE day >= $1 AND day < $2`, period.Start(), period.End())
	if err != nil {
		return nil, fmt.Errorf("attendance: load holidays %s: %w", period.Key(), err)
	}
	defer rows.Close()
	set := make(map[string]struct{})
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		set[day.Format("2006-01-02")] = struct{}{}
	}
	return set, rows.Err()
}

func (p *pgProvider) Summary(ctx context.Context, employeeID int64, period shared.Period) (Summary, error) {
	holidays, err := p.Holidays(ctx, period)
	if err != nil {
		return Summary{}, err
	}

	type entry struct {
		code    string
		missing int
	}
	entries := make(map[string]entry)
	rows, err := p.pool.Query(ctx, `SELECT day, code, COALESCE(missing_minutes,0)
FROM attendance_entries WHERE employee_id=$1 AND day >= $2 AND day < $3`, employeeID, period.Start(), period.End())
	if err != nil {
		return Summary{}, fmt.Errorf("attendance: load entries %d/%s: %w", employeeID, period.Key(), err)
	}
	defer rows.Close()
	for rows.Next() {
		var day time.Time
		var e entry
		if err := rows.Scan(&day, &e.code, &e.missing); err != nil {
			return Summary{}, err
		}
		entries[day.Format("2006-01-02")] = e
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}

	sum := Summary{ExceptionDays: make(map[string]int)}
	for day := period.Start(); day.Before(period.End()); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		_, isHoliday := holidays[key]
		isRest := day.Weekday() == restDay

		sum.TotalDays++
		if !isRest {
			sum.RealDays++
			if !isHoliday {
				sum.WorkingDays++
			}
		}

		e, recorded := entries[key]
		if !recorded {
			continue
		}
		switch e.code {
		case CodePresent:
			sum.PresentDays++
			if isHoliday || isRest {
				sum.HolidayWorkedDays++
			} else {
				sum.PresentWorkingDays++
			}
			sum.MissingMinutes += e.missing
		case CodeAbsent:
			sum.AbsenceDays++
		default:
			sum.ExceptionDays[e.code]++
		}
	}
	return sum, nil
}

func (p *pgProvider) SalesMetrics(ctx context.Context, period shared.Period) (map[int64]SalesMetric, error) {
	rows, err := p.pool.Query(ctx, `SELECT employee_id, COALESCE(SUM(total_lyd),0), COALESCE(SUM(qty),0)
FROM sales_metrics WHERE sale_date >= $1 AND sale_date < $2 GROUP BY employee_id`, period.Start(), period.End())
	if err != nil {
		return nil, fmt.Errorf("attendance: load sales metrics %s: %w", period.Key(), err)
	}
	defer rows.Close()
	out := make(map[int64]SalesMetric)
	for rows.Next() {
		var id int64
		var m SalesMetric
		if err := rows.Scan(&id, &m.TotalLYD, &m.Qty); err != nil {
			return nil, err
		}
		out[id] = m
	}
	return out, rows.Err()
}

func (p *pgProvider) Adjustments(ctx context.Context, employeeID int64, period shared.Period) (Adjustments, error) {
	var adj Adjustments
	err := p.pool.QueryRow(ctx, `SELECT
COALESCE(SUM(amount) FILTER (WHERE kind='BONUS'),0),
COALESCE(SUM(amount) FILTER (WHERE kind='DEDUCTION'),0)
FROM payroll_adjustments WHERE employee_id=$1 AND year=$2 AND month=$3`, employeeID, period.Year, period.Month).
		Scan(&adj.Bonus, &adj.Deduction)
	if err != nil {
		return Adjustments{}, fmt.Errorf("attendance: load adjustments %d/%s: %w", employeeID, period.Key(), err)
	}
	return adj, nil
}
