package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MohammedEweedan/gaja-erp/internal/platform/db"
)

// Repository encapsulates append-only storage for GL rows.
type Repository interface {
	// InsertBatch writes the document header and all lines inside the
	// caller's transaction. A duplicate document number returns
	// ErrDocConflict without writing anything.
	InsertBatch(ctx context.Context, tx pgx.Tx, batch Batch) (int, error)
	ListByDoc(ctx context.Context, docNo string) ([]Transaction, error)
	UnbalancedDocs(ctx context.Context, since time.Time) ([]DocBalance, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed ledger repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) InsertBatch(ctx context.Context, tx pgx.Tx, batch Batch) (int, error) {
	if _, err := tx.Exec(ctx, `INSERT INTO gl_documents (doc_no, posted_by, note, posted_at) VALUES ($1,$2,$3,NOW())`,
		batch.DocNo, nullInt(batch.PostedBy), batch.Note); err != nil {
		if db.IsUniqueViolation(err, "gl_documents_pkey") || db.IsUniqueViolation(err, "uq_gl_documents_doc_no") {
			return 0, ErrDocConflict
		}
		return 0, fmt.Errorf("ledger: insert document %s: %w", batch.DocNo, err)
	}
	for _, line := range batch.Lines {
		if _, err := tx.Exec(ctx, `INSERT INTO gl_transactions
(account, date, debit, credit, orig_amount, orig_currency, doc_no, note, employee_id, client_id, ps, posted_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			line.Account, batch.Date, toNumeric(line.Debit), toNumeric(line.Credit),
			toNumeric(line.OrigAmount), nullCurrency(line.OrigCurrency), batch.DocNo, batch.Note,
			nullIntPtr(batch.Ref.EmployeeID), nullIntPtr(batch.Ref.ClientID), nullIntPtr(batch.Ref.PointOfSale),
			nullInt(batch.PostedBy)); err != nil {
			return 0, fmt.Errorf("ledger: insert line for %s: %w", batch.DocNo, err)
		}
	}
	return len(batch.Lines), nil
}

func (r *pgRepository) ListByDoc(ctx context.Context, docNo string) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, account, date, debit, credit, orig_amount, COALESCE(orig_currency,''), doc_no, note, employee_id, client_id, ps, COALESCE(posted_by,0), created_at
FROM gl_transactions WHERE doc_no=$1 ORDER BY id ASC`, docNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Account, &t.Date, &t.Debit, &t.Credit, &t.OrigAmount, &t.OrigCurrency, &t.DocNo, &t.Note, &t.Ref.EmployeeID, &t.Ref.ClientID, &t.Ref.PointOfSale, &t.PostedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrDocNotFound
	}
	return out, nil
}

func (r *pgRepository) UnbalancedDocs(ctx context.Context, since time.Time) ([]DocBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT doc_no, SUM(debit), SUM(credit)
FROM gl_transactions WHERE created_at >= $1
GROUP BY doc_no HAVING ROUND(SUM(debit),2) <> ROUND(SUM(credit),2)
ORDER BY doc_no ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DocBalance
	for rows.Next() {
		var d DocBalance
		if err := rows.Scan(&d.DocNo, &d.Debit, &d.Credit); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Helpers

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func nullIntPtr(val *int64) any {
	if val == nil {
		return nil
	}
	if *val == 0 {
		return nil
	}
	return *val
}

func nullCurrency(cur Currency) any {
	if cur == "" {
		return nil
	}
	return string(cur)
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
