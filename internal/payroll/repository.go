package payroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MohammedEweedan/gaja-erp/internal/platform/db"
	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// Repository encapsulates DB operations for payroll drafts and archives.
type Repository interface {
	ListEmployees(ctx context.Context, filter Filter) ([]Employee, error)
	BaseSalaryLYD(ctx context.Context, employeeID int64) (float64, error)
	ListDrafts(ctx context.Context, period shared.Period) ([]Row, error)
	UpsertDrafts(ctx context.Context, rows []Row) error
	ListArchived(ctx context.Context, period shared.Period) ([]ArchivedRow, error)

	// WithTx runs fn inside one transaction; the close sequence uses it so
	// archive, ledger rows, loan balances and draft deletion commit together.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
	DraftsForUpdate(ctx context.Context, tx pgx.Tx, period shared.Period) ([]Row, error)
	InsertArchived(ctx context.Context, tx pgx.Tx, row ArchivedRow) error
	DeleteDrafts(ctx context.Context, tx pgx.Tx, period shared.Period) (int64, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed payroll repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) ListEmployees(ctx context.Context, filter Filter) ([]Employee, error) {
	query := `SELECT id, name, salary_lyd, salary_usd, salary_eur, food_allowance_per_day, transport_allowance, commission_type, commission_rate
FROM employees WHERE active`
	args := []any{}
	if len(filter.EmployeeIDs) > 0 {
		query += ` AND id = ANY($1)`
		args = append(args, filter.EmployeeIDs)
	}
	query += ` ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("payroll: list employees: %w", err)
	}
	defer rows.Close()
	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Salary.LYD, &e.Salary.USD, &e.Salary.EUR,
			&e.FoodAllowancePerDay, &e.TransportAllowance, &e.CommissionType, &e.CommissionRate); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *pgRepository) BaseSalaryLYD(ctx context.Context, employeeID int64) (float64, error) {
	var salary float64
	err := r.pool.QueryRow(ctx, `SELECT salary_lyd FROM employees WHERE id=$1`, employeeID).Scan(&salary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return salary, nil
}

const draftColumns = `employee_id, year, month,
base_lyd, base_usd, base_eur,
food_allowance, transport_allowance, holiday_bonus, commission, other_additions,
absence_deduction, missing_deduction, other_deductions, loan_credit,
net_lyd, net_usd, net_eur,
present_days, working_days, absence_days, holiday_worked_days, missing_minutes`

func scanRow(rows pgx.Rows) (Row, error) {
	var d Row
	err := rows.Scan(&d.EmployeeID, &d.Year, &d.Month,
		&d.Base.LYD, &d.Base.USD, &d.Base.EUR,
		&d.FoodAllowance, &d.TransportAllowance, &d.HolidayBonus, &d.Commission, &d.OtherAdditions,
		&d.AbsenceDeduction, &d.MissingDeduction, &d.OtherDeductions, &d.LoanCredit,
		&d.Net.LYD, &d.Net.USD, &d.Net.EUR,
		&d.PresentDays, &d.WorkingDays, &d.AbsenceDays, &d.HolidayWorkedDays, &d.MissingMinutes)
	return d, err
}

func (r *pgRepository) listDrafts(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, query string, period shared.Period) ([]Row, error) {
	rows, err := q.Query(ctx, query, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("payroll: list drafts %s: %w", period.Key(), err)
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		d, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *pgRepository) ListDrafts(ctx context.Context, period shared.Period) ([]Row, error) {
	return r.listDrafts(ctx, r.pool,
		`SELECT `+draftColumns+` FROM payroll_drafts WHERE year=$1 AND month=$2 ORDER BY employee_id ASC`, period)
}

func (r *pgRepository) UpsertDrafts(ctx context.Context, rows []Row) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, d := range rows {
			if _, err := tx.Exec(ctx, `INSERT INTO payroll_drafts (`+draftColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
ON CONFLICT (year, month, employee_id) DO UPDATE SET
base_lyd=EXCLUDED.base_lyd, base_usd=EXCLUDED.base_usd, base_eur=EXCLUDED.base_eur,
food_allowance=EXCLUDED.food_allowance, transport_allowance=EXCLUDED.transport_allowance,
holiday_bonus=EXCLUDED.holiday_bonus, commission=EXCLUDED.commission, other_additions=EXCLUDED.other_additions,
absence_deduction=EXCLUDED.absence_deduction, missing_deduction=EXCLUDED.missing_deduction,
other_deductions=EXCLUDED.other_deductions, loan_credit=EXCLUDED.loan_credit,
net_lyd=EXCLUDED.net_lyd, net_usd=EXCLUDED.net_usd, net_eur=EXCLUDED.net_eur,
present_days=EXCLUDED.present_days, working_days=EXCLUDED.working_days,
absence_days=EXCLUDED.absence_days, holiday_worked_days=EXCLUDED.holiday_worked_days,
missing_minutes=EXCLUDED.missing_minutes, updated_at=NOW()`,
				d.EmployeeID, d.Year, d.Month,
				d.Base.LYD, d.Base.USD, d.Base.EUR,
				d.FoodAllowance, d.TransportAllowance, d.HolidayBonus, d.Commission, d.OtherAdditions,
				d.AbsenceDeduction, d.MissingDeduction, d.OtherDeductions, d.LoanCredit,
				d.Net.LYD, d.Net.USD, d.Net.EUR,
				d.PresentDays, d.WorkingDays, d.AbsenceDays, d.HolidayWorkedDays, d.MissingMinutes); err != nil {
				return fmt.Errorf("payroll: upsert draft %d/%d-%d: %w", d.EmployeeID, d.Year, d.Month, err)
			}
		}
		return nil
	})
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

func (r *pgRepository) DraftsForUpdate(ctx context.Context, tx pgx.Tx, period shared.Period) ([]Row, error) {
	return r.listDrafts(ctx, tx,
		`SELECT `+draftColumns+` FROM payroll_drafts WHERE year=$1 AND month=$2 ORDER BY employee_id ASC FOR UPDATE`, period)
}

func (r *pgRepository) InsertArchived(ctx context.Context, tx pgx.Tx, row ArchivedRow) error {
	_, err := tx.Exec(ctx, `INSERT INTO payroll_archive (`+draftColumns+`, locked, closed_by, closed_at, gl_doc_no)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)`,
		row.EmployeeID, row.Year, row.Month,
		row.Base.LYD, row.Base.USD, row.Base.EUR,
		row.FoodAllowance, row.TransportAllowance, row.HolidayBonus, row.Commission, row.OtherAdditions,
		row.AbsenceDeduction, row.MissingDeduction, row.OtherDeductions, row.LoanCredit,
		row.Net.LYD, row.Net.USD, row.Net.EUR,
		row.PresentDays, row.WorkingDays, row.AbsenceDays, row.HolidayWorkedDays, row.MissingMinutes,
		row.Locked, row.ClosedBy, row.ClosedAt, row.GLDocNo)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_payroll_archive_period_employee") {
			return ErrAlreadyClosed
		}
		return fmt.Errorf("payroll: archive %d/%d-%d: %w", row.EmployeeID, row.Year, row.Month, err)
	}
	return nil
}

func (r *pgRepository) DeleteDrafts(ctx context.Context, tx pgx.Tx, period shared.Period) (int64, error) {
	cmd, err := tx.Exec(ctx, `DELETE FROM payroll_drafts WHERE year=$1 AND month=$2`, period.Year, period.Month)
	if err != nil {
		return 0, fmt.Errorf("payroll: delete drafts %s: %w", period.Key(), err)
	}
	return cmd.RowsAffected(), nil
}

func (r *pgRepository) ListArchived(ctx context.Context, period shared.Period) ([]ArchivedRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+draftColumns+`, locked, closed_by, closed_at, gl_doc_no
FROM payroll_archive WHERE year=$1 AND month=$2 ORDER BY employee_id ASC`, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("payroll: list archive %s: %w", period.Key(), err)
	}
	defer rows.Close()
	var out []ArchivedRow
	for rows.Next() {
		var a ArchivedRow
		if err := rows.Scan(&a.EmployeeID, &a.Year, &a.Month,
			&a.Base.LYD, &a.Base.USD, &a.Base.EUR,
			&a.FoodAllowance, &a.TransportAllowance, &a.HolidayBonus, &a.Commission, &a.OtherAdditions,
			&a.AbsenceDeduction, &a.MissingDeduction, &a.OtherDeductions, &a.LoanCredit,
			&a.Net.LYD, &a.Net.USD, &a.Net.EUR,
			&a.PresentDays, &a.WorkingDays, &a.AbsenceDays, &a.HolidayWorkedDays, &a.MissingMinutes,
			&a.Locked, &a.ClosedBy, &a.ClosedAt, &a.GLDocNo); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
