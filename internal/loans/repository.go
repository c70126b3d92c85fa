package loans

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// Repository encapsulates DB operations for loans.
type Repository interface {
	Insert(ctx context.Context, loan Loan) (Loan, error)
	Get(ctx context.Context, id int64) (Loan, error)
	ListOpen(ctx context.Context) ([]Loan, error)
	ListOpenByEmployee(ctx context.Context, employeeID int64) ([]Loan, error)
	// AddSkipMonth appends the key to the loan's skip set. Returns false
	// when the key was already present (idempotent membership).
	AddSkipMonth(ctx context.Context, loanID int64, key string) (bool, error)
	SetRemaining(ctx context.Context, id int64, remaining float64, closed bool) error
	// WithholdTx reduces each listed employee's open-loan balances by the
	// amount their payroll draft withheld, inside the caller's transaction.
	// Employees absent from the map are left untouched. Used by the payroll
	// month close.
	WithholdTx(ctx context.Context, tx pgx.Tx, credits map[int64]float64) error
}

const loanColumns = `id, employee_id, principal, remaining, monthly_percent, cap_multiple, skip_months, closed, created_at, updated_at`

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed loan repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func scanLoan(row pgx.Row) (Loan, error) {
	var l Loan
	err := row.Scan(&l.ID, &l.EmployeeID, &l.Principal, &l.Remaining, &l.MonthlyPercent, &l.CapMultiple, &l.SkipMonths, &l.Closed, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Loan{}, ErrLoanNotFound
		}
		return Loan{}, err
	}
	return l, nil
}

func (r *pgRepository) Insert(ctx context.Context, loan Loan) (Loan, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO loans (employee_id, principal, remaining, monthly_percent, cap_multiple, skip_months, closed)
VALUES ($1,$2,$3,$4,$5,'{}',false) RETURNING `+loanColumns,
		loan.EmployeeID, loan.Principal, loan.Principal, loan.MonthlyPercent, loan.CapMultiple)
	return scanLoan(row)
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Loan, error) {
	return scanLoan(r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id=$1`, id))
}

func (r *pgRepository) list(ctx context.Context, query string, args ...any) ([]Loan, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loan)
	}
	return out, rows.Err()
}

func (r *pgRepository) ListOpen(ctx context.Context) ([]Loan, error) {
	return r.list(ctx, `SELECT `+loanColumns+` FROM loans WHERE NOT closed ORDER BY id ASC`)
}

func (r *pgRepository) ListOpenByEmployee(ctx context.Context, employeeID int64) ([]Loan, error) {
	return r.list(ctx, `SELECT `+loanColumns+` FROM loans WHERE NOT closed AND employee_id=$1 ORDER BY id ASC`, employeeID)
}

func (r *pgRepository) AddSkipMonth(ctx context.Context, loanID int64, key string) (bool, error) {
	// array_append only fires when the key is absent, keeping the set semantics.
	cmd, err := r.pool.Exec(ctx, `UPDATE loans SET skip_months = array_append(skip_months, $2), updated_at = NOW()
WHERE id=$1 AND NOT ($2 = ANY(skip_months))`, loanID, key)
	if err != nil {
		return false, fmt.Errorf("loans: add skip month %s to %d: %w", key, loanID, err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *pgRepository) SetRemaining(ctx context.Context, id int64, remaining float64, closed bool) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE loans SET remaining=$2, closed=$3, updated_at=NOW() WHERE id=$1`, id, remaining, closed)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLoanNotFound
	}
	return nil
}

func (r *pgRepository) WithholdTx(ctx context.Context, tx pgx.Tx, credits map[int64]float64) error {
	employeeIDs := make([]int64, 0, len(credits))
	for id, credit := range credits {
		if credit > 0 {
			employeeIDs = append(employeeIDs, id)
		}
	}
	if len(employeeIDs) == 0 {
		return nil
	}

	rows, err := tx.Query(ctx, `SELECT `+loanColumns+` FROM loans
WHERE NOT closed AND employee_id = ANY($1) ORDER BY id ASC FOR UPDATE`, employeeIDs)
	if err != nil {
		return fmt.Errorf("loans: lock open loans: %w", err)
	}
	var open []Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return err
		}
		open = append(open, loan)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Oldest loan first; the withheld amount never exceeds what the draft
	// deducted from net pay.
	left := make(map[int64]float64, len(credits))
	for id, credit := range credits {
		left[id] = credit
	}
	for _, loan := range open {
		credit := left[loan.EmployeeID]
		if credit <= 0 {
			continue
		}
		if credit > loan.Remaining {
			credit = loan.Remaining
		}
		remaining := shared.Round2(loan.Remaining - credit)
		if remaining < 0 {
			remaining = 0
		}
		closed := remaining == 0
		if _, err := tx.Exec(ctx, `UPDATE loans SET remaining=$2, closed=$3, updated_at=NOW() WHERE id=$1`,
			loan.ID, remaining, closed); err != nil {
			return fmt.Errorf("loans: withhold from %d: %w", loan.ID, err)
		}
		left[loan.EmployeeID] = shared.Round2(left[loan.EmployeeID] - credit)
	}
	return nil
}
