// Package reconcile compiles the order plan that moves a symbol's position
// in line with the detected market trend. It is pure with respect to the
// plan: all exchange state comes in through Input, all orders go out as
// data, and no I/O happens here.
package reconcile

import (
	"errors"
	"fmt"

	"crypto-warren/internal/models"
	"crypto-warren/internal/modules/stoploss"
)

// ErrSizeMismatch means the size we recorded for a position no longer
// matches what the exchange reports. Compiling a close intent from either
// number would be guessing, so no order is emitted for the symbol.
var ErrSizeMismatch = errors.New("recorded position size does not match exchange-reported size")

// AmountRounder rounds an order amount to the exchange's declared
// precision. Its output is authoritative.
type AmountRounder interface {
	AmountToPrecision(symbol string, amount float64) float64
}

type Config struct {
	StopLossWindow int
	ATRMultiplier  float64
}

type Reconciler struct {
	rounder AmountRounder
	cfg     Config
}

func New(rounder AmountRounder, cfg Config) *Reconciler {
	return &Reconciler{rounder: rounder, cfg: cfg}
}

// Input is the per-symbol snapshot one reconciliation pass works from.
type Input struct {
	Symbol       string
	Position     *models.Position // exchange-reported, nil when flat
	RecordedSize float64          // our recorded size, 0 when untracked
	MarketTrend  models.Trend
	Notional     float64
	Price        float64
	Bars         models.Bars
}

// Reconcile applies the position/trend transition table:
//
//	FLAT  + UP/DOWN      -> open
//	LONG  + DOWN         -> close, open short
//	SHORT + UP           -> close, open long
//	trend unchanged/NONE -> hold
//
// A held position still gets its trailing stop cancelled and re-issued, so
// the stop tightens every tick the position survives. Flips close the full
// recorded size or nothing at all.
func (r *Reconciler) Reconcile(in Input) (models.OrderPlan, error) {
	var plan models.OrderPlan

	positionTrend := models.TrendNone
	if in.Position != nil {
		positionTrend = in.Position.Trend()
	}

	if in.MarketTrend == models.TrendNone || in.MarketTrend == positionTrend {
		// Hold. Keep the trailing stop following the market.
		if in.Position != nil {
			plan.StopRefreshes = append(plan.StopRefreshes, models.StopRefresh{
				Symbol: in.Symbol,
				Stop:   r.stopIntent(in, in.Position.CloseSide(), in.Position.Size),
			})
		}
		return plan, nil
	}

	if in.Price <= 0 {
		return models.OrderPlan{}, fmt.Errorf("reconcile %s: non-positive price %f", in.Symbol, in.Price)
	}

	amount := r.rounder.AmountToPrecision(in.Symbol, in.Notional/in.Price)
	if amount <= 0 {
		return models.OrderPlan{}, fmt.Errorf(
			"reconcile %s: notional %f at price %f rounds to zero amount",
			in.Symbol, in.Notional, in.Price,
		)
	}

	// Flip: the existing opposite-side position must go first, sized
	// exactly at its current size.
	if in.Position != nil {
		if in.RecordedSize > 0 && in.RecordedSize != in.Position.Size {
			return models.OrderPlan{}, fmt.Errorf(
				"reconcile %s: recorded %f, exchange reports %f: %w",
				in.Symbol, in.RecordedSize, in.Position.Size, ErrSizeMismatch,
			)
		}
		plan.Closes = append(plan.Closes, models.OrderIntent{
			Symbol: in.Symbol,
			Type:   models.OrderMarket,
			Side:   in.Position.CloseSide(),
			Amount: in.Position.Size,
		})
	}

	side := in.MarketTrend.Side()
	plan.Opens = append(plan.Opens, models.OrderIntent{
		Symbol: in.Symbol,
		Type:   models.OrderMarket,
		Side:   side,
		Amount: amount,
	})
	plan.StopRefreshes = append(plan.StopRefreshes, models.StopRefresh{
		Symbol: in.Symbol,
		Stop:   r.stopIntent(in, side.Opposite(), amount),
	})

	return plan, nil
}

func (r *Reconciler) stopIntent(in Input, side models.Side, amount float64) models.OrderIntent {
	rate := stoploss.CallbackRate(
		in.Bars.Highs(), in.Bars.Lows(), in.Bars.Closes(),
		r.cfg.StopLossWindow, r.cfg.ATRMultiplier, in.Price,
	)
	return models.OrderIntent{
		Symbol: in.Symbol,
		Type:   models.OrderMarket,
		Side:   side,
		Amount: amount,
		Params: models.OrderParams{
			CallbackRate: rate,
			ReduceOnly:   true,
		},
	}
}
