package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crypto-warren/internal/models"
	"crypto-warren/pkg/db"
)

const createTradesTable = `
CREATE TABLE IF NOT EXISTS trades (
	id          BIGSERIAL PRIMARY KEY,
	symbol      TEXT             NOT NULL,
	side        TEXT             NOT NULL,
	size        DOUBLE PRECISION NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	exit_price  DOUBLE PRECISION NOT NULL,
	pnl         DOUBLE PRECISION NOT NULL,
	closed_at   TIMESTAMPTZ      NOT NULL
)`

// Pg stores trades in Postgres.
type Pg struct {
	db db.TxManager
}

func NewPg(manager db.TxManager) *Pg {
	return &Pg{db: manager}
}

// Migrate creates the trades table. Idempotent.
func (p *Pg) Migrate(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("ledger.Migrate: %w", err)
		}
	}()
	_, err = p.db.Conn().Exec(ctx, createTradesTable)
	return
}

func (p *Pg) RecordClose(ctx context.Context, trade models.Trade) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("ledger.RecordClose: %w", err)
		}
	}()
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO trades (symbol, side, size, entry_price, exit_price, pnl, closed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			trade.Symbol, string(trade.Side), trade.Size,
			trade.EntryPrice, trade.ExitPrice, trade.PnL, trade.ClosedAt,
		)
		return err
	})
}

// recentQuery builds the trade-history select. limit <= 0 means all
// trades, matching the in-memory store's contract.
func recentQuery(limit int) (string, []any) {
	const base = `SELECT id, symbol, side, size, entry_price, exit_price, pnl, closed_at
		 FROM trades ORDER BY closed_at DESC`
	if limit <= 0 {
		return base, nil
	}
	return base + ` LIMIT $1`, []any{limit}
}

func (p *Pg) Recent(ctx context.Context, limit int) (trades []models.Trade, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("ledger.Recent: %w", err)
		}
	}()

	query, args := recentQuery(limit)
	rows, err := p.db.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t models.Trade
		var side string
		if err = rows.Scan(&t.ID, &t.Symbol, &side, &t.Size, &t.EntryPrice, &t.ExitPrice, &t.PnL, &t.ClosedAt); err != nil {
			return nil, err
		}
		t.Side = models.PositionSide(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
