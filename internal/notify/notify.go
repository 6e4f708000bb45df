// Package notify pushes trade events to the operator. Telegram when a
// token is configured, stdout otherwise.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-warren/internal/models"
	"crypto-warren/pkg/logger"
)

type Notifier interface {
	Send(ctx context.Context, msg string) error
	Sendf(ctx context.Context, format string, args ...any) error
}

// Stdout logs messages instead of delivering them anywhere.
type Stdout struct{}

func (Stdout) Send(_ context.Context, msg string) error {
	logger.Info("notify: %s", msg)
	return nil
}

func (s Stdout) Sendf(ctx context.Context, format string, args ...any) error {
	return s.Send(ctx, fmt.Sprintf(format, args...))
}

// CloseMessage renders a closed-trade notification.
func CloseMessage(trade models.Trade) string {
	emoji := "🟢"
	if trade.PnL < 0 {
		emoji = "🔴"
	}
	return fmt.Sprintf("%s closed %s %s %.4f @ %.4f → %.4f, pnl %.4f",
		emoji, trade.Side, trade.Symbol, trade.Size, trade.EntryPrice, trade.ExitPrice, trade.PnL)
}

func formatPositions(positions []models.Position) string {
	if len(positions) == 0 {
		return "no open positions"
	}
	var b strings.Builder
	b.WriteString("open positions:\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "%s %s %.4f @ %.4f (mark %.4f)\n",
			p.Symbol, p.Side, p.Size, p.EntryPrice, p.MarkPrice)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTrades(trades []models.Trade) string {
	if len(trades) == 0 {
		return "no trades yet"
	}
	var b strings.Builder
	b.WriteString("recent trades:\n")
	for _, t := range trades {
		fmt.Fprintf(&b, "%s %s %s %.4f pnl %.4f\n",
			t.ClosedAt.Format(time.DateTime), t.Side, t.Symbol, t.Size, t.PnL)
	}
	return strings.TrimRight(b.String(), "\n")
}
