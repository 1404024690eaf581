package workers

import (
	"context"
	"log/slog"
	"time"

	application "revuhub/contexts/finance-core/token-ledger/application"
	"revuhub/contexts/finance-core/token-ledger/ports"
)

// BatchCompactor removes exhausted and expired batch rows. Correctness never
// depends on it running: balance and debit evaluate expiry lazily. This is
// storage hygiene only.
type BatchCompactor struct {
	Wallet    ports.WalletRepository
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (c BatchCompactor) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	limit := c.BatchSize
	if limit <= 0 {
		limit = 200
	}
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}

	pruned, err := c.Wallet.PruneBatches(ctx, now, limit)
	if err != nil {
		logger.Error("batch compaction failed",
			"event", "wallet_compaction_failed",
			"module", "finance-core/token-ledger",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if pruned > 0 {
		logger.Info("batch compaction pruned rows",
			"event", "wallet_compaction_pruned",
			"module", "finance-core/token-ledger",
			"layer", "worker",
			"pruned", pruned,
		)
	}
	return nil
}
