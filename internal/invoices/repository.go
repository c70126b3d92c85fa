package invoices

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MohammedEweedan/gaja-erp/internal/platform/db"
)

// Repository encapsulates DB operations for invoice rows and revenue records.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
	RowsForUpdate(ctx context.Context, tx pgx.Tx, pointOfSale, userID int64, invoiceNo string) ([]Row, error)
	MarkClosed(ctx context.Context, tx pgx.Tx, pointOfSale, userID int64, invoiceNo string) (int64, error)
	InsertRevenue(ctx context.Context, tx pgx.Tx, rec RevenueRecord) error
	ListRevenue(ctx context.Context, pointOfSale int64, invoiceNo string) ([]RevenueRecord, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres-backed invoice repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

func (r *pgRepository) RowsForUpdate(ctx context.Context, tx pgx.Tx, pointOfSale, userID int64, invoiceNo string) ([]Row, error) {
	rows, err := tx.Query(ctx, `SELECT id, point_of_sale, user_id, invoice_no, client_id, item, qty, unit_cost, price, discount,
paid_lyd, paid_usd, paid_eur, paid_usd_in_lyd, paid_eur_in_lyd, is_gift, is_ok
FROM invoice_rows
WHERE point_of_sale=$1 AND user_id=$2 AND invoice_no=$3
ORDER BY id ASC
FOR UPDATE`, pointOfSale, userID, invoiceNo)
	if err != nil {
		return nil, fmt.Errorf("invoices: load %s: %w", invoiceNo, err)
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.PointOfSale, &row.UserID, &row.InvoiceNo, &row.ClientID,
			&row.Item, &row.Qty, &row.UnitCost, &row.Price, &row.Discount,
			&row.PaidLYD, &row.PaidUSD, &row.PaidEUR, &row.PaidUSDInLYD, &row.PaidEURInLYD,
			&row.IsGift, &row.IsOK); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *pgRepository) MarkClosed(ctx context.Context, tx pgx.Tx, pointOfSale, userID int64, invoiceNo string) (int64, error) {
	cmd, err := tx.Exec(ctx, `UPDATE invoice_rows SET is_ok=TRUE, updated_at=NOW()
WHERE point_of_sale=$1 AND user_id=$2 AND invoice_no=$3 AND NOT is_ok`, pointOfSale, userID, invoiceNo)
	if err != nil {
		return 0, fmt.Errorf("invoices: mark closed %s: %w", invoiceNo, err)
	}
	return cmd.RowsAffected(), nil
}

func (r *pgRepository) InsertRevenue(ctx context.Context, tx pgx.Tx, rec RevenueRecord) error {
	_, err := tx.Exec(ctx, `INSERT INTO revenue_records (point_of_sale, user_id, invoice_no, kind, amount_lyd, orig_amount, orig_currency, recorded_by, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rec.PointOfSale, rec.UserID, rec.InvoiceNo, rec.Kind,
		rec.AmountLYD, rec.OrigAmount, rec.OrigCurrency, rec.RecordedBy, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("invoices: insert revenue %s: %w", rec.InvoiceNo, err)
	}
	return nil
}

func (r *pgRepository) ListRevenue(ctx context.Context, pointOfSale int64, invoiceNo string) ([]RevenueRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, point_of_sale, user_id, invoice_no, kind, amount_lyd, orig_amount, orig_currency, recorded_by, recorded_at
FROM revenue_records WHERE point_of_sale=$1 AND invoice_no=$2 ORDER BY id ASC`, pointOfSale, invoiceNo)
	if err != nil {
		return nil, fmt.Errorf("invoices: list revenue %s: %w", invoiceNo, err)
	}
	defer rows.Close()
	var out []RevenueRecord
	for rows.Next() {
		var rec RevenueRecord
		if err := rows.Scan(&rec.ID, &rec.PointOfSale, &rec.UserID, &rec.InvoiceNo, &rec.Kind,
			&rec.AmountLYD, &rec.OrigAmount, &rec.OrigCurrency, &rec.RecordedBy, &rec.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
