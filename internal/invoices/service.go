package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MohammedEweedan/gaja-erp/internal/ledger"
	"github.com/MohammedEweedan/gaja-erp/internal/observability"
	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// Service closes invoices: it turns one (point of sale, user, invoice
// number) group into balanced ledger postings and revenue records.
type Service struct {
	repo   Repository
	poster ledger.Poster
	coa    ledger.ChartOfAccounts
	locker  shared.Locker
	audit   shared.AuditRecorder
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService constructs the invoice close service.
func NewService(repo Repository, poster ledger.Poster, coa ledger.ChartOfAccounts, locker shared.Locker, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		poster: poster,
		coa:    coa,
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

// Revenue returns the reporting records written for an invoice number.
func (s *Service) Revenue(ctx context.Context, pointOfSale int64, invoiceNo string) ([]RevenueRecord, error) {
	return s.repo.ListRevenue(ctx, pointOfSale, invoiceNo)
}

// Close posts the invoice group to the ledger and marks every row closed.
// The whole sequence runs under an advisory lock and inside one
// transaction; closing an already closed invoice is rejected.
// It returns the number of ledger rows posted.
func (s *Service) Close(ctx context.Context, in CloseInput) (int, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}

	release, err := s.locker.Acquire(ctx, shared.InvoiceCloseKey(in.PointOfSale, in.UserID, in.InvoiceNo))
	if err != nil {
		return 0, err
	}
	defer release()

	closedAt := s.now()
	posted := 0
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := s.repo.RowsForUpdate(ctx, tx, in.PointOfSale, in.UserID, in.InvoiceNo)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("%w: %s", ErrInvoiceNotFound, in.InvoiceNo)
		}
		for _, row := range rows {
			if row.IsOK {
				return fmt.Errorf("%w: %s", ErrAlreadyClosed, in.InvoiceNo)
			}
		}

		batch := ledger.Batch{
			DocNo:    DocNo(in.PointOfSale, in.InvoiceNo),
			Date:     closedAt,
			Ref:      groupRef(in.PointOfSale, rows),
			PostedBy: in.ActorID,
		}
		var records []RevenueRecord
		if allGift(rows) {
			batch.Note = fmt.Sprintf("gift invoice %s close", in.InvoiceNo)
			batch.Lines, records = s.giftLines(in, rows)
		} else {
			batch.Note = fmt.Sprintf("invoice %s close", in.InvoiceNo)
			batch.Lines, records, err = s.saleLines(in, rows)
			if err != nil {
				return err
			}
		}

		if len(batch.Lines) > 0 {
			n, err := s.poster.PostTx(ctx, tx, batch)
			if err != nil {
				return err
			}
			posted = n
		}
		for i := range records {
			records[i].RecordedAt = closedAt
			if err := s.repo.InsertRevenue(ctx, tx, records[i]); err != nil {
				return err
			}
		}

		marked, err := s.repo.MarkClosed(ctx, tx, in.PointOfSale, in.UserID, in.InvoiceNo)
		if err != nil {
			return err
		}
		if marked != int64(len(rows)) {
			return fmt.Errorf("invoices: marked %d rows closed, expected %d", marked, len(rows))
		}
		return nil
	})
	if err != nil {
		s.metrics.ObserveInvoiceClose("error", 0)
		return 0, err
	}
	s.metrics.ObserveInvoiceClose("ok", posted)

	s.logger.Info("invoice closed",
		slog.String("invoice_no", in.InvoiceNo),
		slog.Int64("point_of_sale", in.PointOfSale),
		slog.Bool("cash_voucher", in.MakeCashVoucher),
		slog.Int("gl_rows", posted))
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  in.ActorID,
			Action:   "invoice.close",
			Entity:   "invoice",
			EntityID: DocNo(in.PointOfSale, in.InvoiceNo),
			Meta: map[string]any{
				"gl_rows":      posted,
				"cash_voucher": in.MakeCashVoucher,
			},
			At: closedAt,
		})
	}
	return posted, nil
}

// giftLines builds the postings for an all-gift group. Revenue is
// suppressed: the collected paid amounts go against the gift revenue
// account, and the cost of goods moves out of inventory. Sales revenue
// stays untouched.
func (s *Service) giftLines(in CloseInput, rows []Row) ([]ledger.Line, []RevenueRecord) {
	var lines []ledger.Line
	var records []RevenueRecord

	collected := collectedLYD(rows)
	if collected > 0 {
		lines = append(lines,
			ledger.Line{Account: s.coa.AccountsReceivable, Debit: collected, OrigAmount: collected, OrigCurrency: ledger.CurrencyLYD},
			ledger.Line{Account: s.coa.GiftRevenue, Credit: collected, OrigAmount: collected, OrigCurrency: ledger.CurrencyLYD},
		)
		records = append(records, RevenueRecord{
			PointOfSale:  in.PointOfSale,
			UserID:       in.UserID,
			InvoiceNo:    in.InvoiceNo,
			Kind:         RevenueGift,
			AmountLYD:    collected,
			OrigAmount:   collected,
			OrigCurrency: ledger.CurrencyLYD,
			RecordedBy:   in.ActorID,
		})
	}
	if cogs := costOfGoods(rows); cogs > 0 {
		lines = append(lines,
			ledger.Line{Account: s.coa.GiftExpense, Debit: cogs, OrigAmount: cogs, OrigCurrency: ledger.CurrencyLYD},
			ledger.Line{Account: s.coa.Inventory, Credit: cogs, OrigAmount: cogs, OrigCurrency: ledger.CurrencyLYD},
		)
	}
	return lines, records
}

// saleLines builds the postings for an ordinary sale: the discounted
// total against sales revenue, plus one cash voucher pair per collected
// currency when requested.
func (s *Service) saleLines(in CloseInput, rows []Row) ([]ledger.Line, []RevenueRecord, error) {
	var lines []ledger.Line
	var records []RevenueRecord

	if total := netTotal(rows); total > 0 {
		lines = append(lines,
			ledger.Line{Account: s.coa.AccountsReceivable, Debit: total, OrigAmount: total, OrigCurrency: ledger.CurrencyLYD},
			ledger.Line{Account: s.coa.SalesRevenue, Credit: total, OrigAmount: total, OrigCurrency: ledger.CurrencyLYD},
		)
		records = append(records, RevenueRecord{
			PointOfSale:  in.PointOfSale,
			UserID:       in.UserID,
			InvoiceNo:    in.InvoiceNo,
			Kind:         RevenueSale,
			AmountLYD:    total,
			OrigAmount:   total,
			OrigCurrency: ledger.CurrencyLYD,
			RecordedBy:   in.ActorID,
		})
	}
	if !in.MakeCashVoucher {
		return lines, records, nil
	}
	for _, paid := range paidByCurrency(rows) {
		cashAccount, err := s.coa.Cash(paid.currency)
		if err != nil {
			return nil, nil, err
		}
		lines = append(lines,
			ledger.Line{Account: cashAccount, Debit: paid.lyd, OrigAmount: paid.orig, OrigCurrency: paid.currency},
			ledger.Line{Account: s.coa.AccountsReceivable, Credit: paid.lyd, OrigAmount: paid.orig, OrigCurrency: paid.currency},
		)
		records = append(records, RevenueRecord{
			PointOfSale:  in.PointOfSale,
			UserID:       in.UserID,
			InvoiceNo:    in.InvoiceNo,
			Kind:         RevenueCash,
			AmountLYD:    paid.lyd,
			OrigAmount:   paid.orig,
			OrigCurrency: paid.currency,
			RecordedBy:   in.ActorID,
		})
	}
	return lines, records, nil
}

// groupRef stamps the point of sale and, when the group agrees on one,
// the client onto the posted rows.
func groupRef(pointOfSale int64, rows []Row) ledger.Ref {
	ref := ledger.Ref{PointOfSale: &pointOfSale}
	clientID := rows[0].ClientID
	for _, row := range rows {
		if row.ClientID != clientID {
			return ref
		}
	}
	if clientID > 0 {
		ref.ClientID = &clientID
	}
	return ref
}
