// Package ledger persists closed round trips. The trading loop appends
// a row whenever a position closes; the notifier and the backtest
// report read it back.
package ledger

import (
	"context"

	"crypto-warren/internal/models"
)

// Store is the trade-history contract. Postgres in production, the
// in-memory variant in tests and backtests.
type Store interface {
	RecordClose(ctx context.Context, trade models.Trade) error
	Recent(ctx context.Context, limit int) ([]models.Trade, error)
}
