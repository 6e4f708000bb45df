// Package exchange is the boundary to the derivatives venue. The Exchange
// interface is the whole contract the trading core consumes; the real
// client and the in-memory simulator both implement it.
package exchange

import (
	"context"

	"crypto-warren/internal/models"
)

type Exchange interface {
	// LoadMarkets fetches per-symbol precision and limits. Must be called
	// once before AmountToPrecision is meaningful.
	LoadMarkets(ctx context.Context) error
	Market(symbol string) (models.Market, bool)
	// AmountToPrecision rounds an order amount down to the exchange's
	// declared precision for the symbol.
	AmountToPrecision(symbol string, amount float64) float64

	FetchTicker(ctx context.Context, symbol string) (models.Ticker, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) (models.Bars, error)
	FetchPositions(ctx context.Context) ([]models.Position, error)

	CreateOrder(ctx context.Context, symbol string, typ models.OrderType, side models.Side, amount, price float64, params models.OrderParams) (string, error)
	// CancelAllOrders removes every open order for the symbol. Used to
	// cancel-replace trailing stops.
	CancelAllOrders(ctx context.Context, symbol string) error

	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginMode(ctx context.Context, symbol string, mode models.MarginMode) error
}
