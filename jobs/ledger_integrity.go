package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/MohammedEweedan/gaja-erp/internal/ledger"
	"github.com/MohammedEweedan/gaja-erp/internal/observability"
)

// IntegrityScanner is the slice of the ledger service the worker needs.
type IntegrityScanner interface {
	ScanUnbalanced(ctx context.Context, since time.Time) ([]ledger.DocBalance, error)
}

// NewLedgerIntegrityHandler returns the handler for TaskLedgerIntegrity
// tasks. The scan walks recent documents and reports any whose debits and
// credits diverge; a clean system always reports zero.
func NewLedgerIntegrityHandler(scanner IntegrityScanner, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LedgerIntegrityPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.LookbackDays <= 0 {
			payload.LookbackDays = 35
		}
		since := time.Now().AddDate(0, 0, -payload.LookbackDays)
		docs, err := scanner.ScanUnbalanced(ctx, since)
		if err != nil {
			return err
		}
		metrics.SetUnbalancedDocuments(len(docs))
		logger.Info("ledger integrity scan finished",
			slog.Int("lookback_days", payload.LookbackDays),
			slog.Int("unbalanced", len(docs)))
		return nil
	}
}
