package ledger

import (
	"context"
	"sync"

	"crypto-warren/internal/models"
)

// Memory keeps trades in process. Used when no database is configured
// and by the backtest binary.
type Memory struct {
	mu     sync.RWMutex
	trades []models.Trade
	nextID int64
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

func (m *Memory) RecordClose(_ context.Context, trade models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	trade.ID = m.nextID
	m.nextID++
	m.trades = append(m.trades, trade)
	return nil
}

// Recent returns up to limit trades, newest first.
func (m *Memory) Recent(_ context.Context, limit int) ([]models.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.trades)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Trade, 0, n)
	for i := len(m.trades) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.trades[i])
	}
	return out, nil
}
