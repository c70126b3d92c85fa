package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MohammedEweedan/gaja-erp/internal/platform/db"
	"github.com/MohammedEweedan/gaja-erp/internal/shared"
)

// Poster is the shared posting primitive consumed by the payroll archiver
// and the invoice close engine. Posting happens inside the caller's
// transaction so a failed close leaves no ledger rows behind.
type Poster interface {
	PostTx(ctx context.Context, tx pgx.Tx, batch Batch) (int, error)
}

// Service validates and writes posting batches.
type Service struct {
	repo   Repository
	pool   *pgxpool.Pool
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo Repository, pool *pgxpool.Pool, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, pool: pool, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostTx validates the batch and appends it inside the caller's transaction.
func (s *Service) PostTx(ctx context.Context, tx pgx.Tx, batch Batch) (int, error) {
	if err := batch.Validate(); err != nil {
		return 0, err
	}
	n, err := s.repo.InsertBatch(ctx, tx, batch)
	if err != nil {
		return 0, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  batch.PostedBy,
			Action:   "ledger.post",
			Entity:   "gl_document",
			EntityID: batch.DocNo,
			Meta: map[string]any{
				"lines": n,
				"date":  batch.Date.Format("2006-01-02"),
			},
			At: s.now(),
		})
	}
	return n, nil
}

// Post appends a standalone batch inside its own transaction. Validation
// runs up front so a rejected batch never opens a transaction.
func (s *Service) Post(ctx context.Context, batch Batch) (int, error) {
	if err := batch.Validate(); err != nil {
		return 0, err
	}
	var n int
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var e error
		n, e = s.PostTx(ctx, tx, batch)
		return e
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Document returns all rows posted under one document number.
func (s *Service) Document(ctx context.Context, docNo string) ([]Transaction, error) {
	return s.repo.ListByDoc(ctx, docNo)
}

// ScanUnbalanced reports documents whose debits and credits diverge. The
// worker runs this nightly; a non-empty result means a posting path skipped
// batch validation and needs investigating.
func (s *Service) ScanUnbalanced(ctx context.Context, since time.Time) ([]DocBalance, error) {
	docs, err := s.repo.UnbalancedDocs(ctx, since)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		s.logger.Warn("unbalanced ledger document",
			slog.String("doc_no", d.DocNo),
			slog.Float64("debit", d.Debit),
			slog.Float64("credit", d.Credit))
	}
	return docs, nil
}
