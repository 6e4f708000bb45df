package models

import "time"

// Trend is the direction the market (or an open position) is pointing.
// TrendNone means "no actionable signal" and is never a position side.
type Trend string

const (
	TrendUp   Trend = "UP"
	TrendDown Trend = "DOWN"
	TrendNone Trend = "NONE"
)

// Side returns the order side that follows the trend.
func (t Trend) Side() Side {
	switch t {
	case TrendUp:
		return SideBuy
	case TrendDown:
		return SideSell
	}
	return ""
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PositionSide как у биржи: "long"/"short".
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

type OrderType string

const OrderMarket OrderType = "market"

// Position is one open (or, with ExitPrice set, closed) position.
// At most one position per symbol may be open at a time.
type Position struct {
	Symbol     string
	Side       PositionSide
	Size       float64
	EntryPrice float64
	MarkPrice  float64
	ExitPrice  float64 // set when the position is closed
}

// Trend maps the position side onto the trend it expresses.
func (p Position) Trend() Trend {
	switch p.Side {
	case PositionLong:
		return TrendUp
	case PositionShort:
		return TrendDown
	}
	return TrendNone
}

// CloseSide is the order side that reduces this position.
func (p Position) CloseSide() Side {
	if p.Side == PositionLong {
		return SideSell
	}
	return SideBuy
}

// PnL realised against the exit price.
func (p Position) PnL() float64 {
	if p.ExitPrice == 0 {
		return 0
	}
	diff := p.ExitPrice - p.EntryPrice
	if p.Side == PositionShort {
		diff = -diff
	}
	return diff * p.Size
}

// Trade is one completed round trip, recorded at close time.
type Trade struct {
	ID         int64
	Symbol     string
	Side       PositionSide
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	ClosedAt   time.Time
}

// OrderParams carries the exchange-specific extras of an intent.
type OrderParams struct {
	CallbackRate float64 // trailing stop callback, percent
	ReduceOnly   bool
}

// OrderIntent is one order compiled by the reconciler. Immutable once
// compiled; the executor never retries a failed intent.
type OrderIntent struct {
	Symbol string
	Type   OrderType
	Side   Side
	Amount float64
	Price  float64 // 0 for market orders
	Params OrderParams
}

// StopRefresh asks the executor to cancel the symbol's open reduce-only
// orders and re-issue the trailing stop. Emitted on every tick that keeps
// a position open, so the stop tightens with the market.
type StopRefresh struct {
	Symbol string
	Stop   OrderIntent
}

// OrderPlan is everything one reconciliation pass wants executed.
// Closes are always submitted and joined before Opens, so a flip never
// leaves the account double-exposed beyond the single in-flight transition.
type OrderPlan struct {
	Closes        []OrderIntent
	Opens         []OrderIntent
	StopRefreshes []StopRefresh
}

func (p OrderPlan) Empty() bool {
	return len(p.Closes) == 0 && len(p.Opens) == 0 && len(p.StopRefreshes) == 0
}

// Merge folds another symbol's plan into the aggregate for the tick.
func (p *OrderPlan) Merge(other OrderPlan) {
	p.Closes = append(p.Closes, other.Closes...)
	p.Opens = append(p.Opens, other.Opens...)
	p.StopRefreshes = append(p.StopRefreshes, other.StopRefreshes...)
}
