// Package stoploss sizes the callback rate of a trailing stop order from
// recent volatility.
package stoploss

import (
	"crypto-warren/internal/indicator"
)

const (
	// DefaultRate is used whenever there is not enough history to compute
	// a meaningful ATR.
	DefaultRate = 1.0

	// Bounds accepted by the exchange's trailing-stop order type.
	MinRate = 0.1
	MaxRate = 10.0

	atrPeriod = 14
)

// CallbackRate converts recent high/low/close history into a trailing-stop
// callback percentage: mean of the trailing `window` ATR values, scaled by
// atrMultiplier, normalised by the current price, clamped to
// [MinRate, MaxRate].
func CallbackRate(highs, lows, closes []float64, window int, atrMultiplier, currentPrice float64) float64 {
	if window < 1 || currentPrice <= 0 {
		return DefaultRate
	}
	if len(closes) < window || len(highs) != len(closes) || len(lows) != len(closes) {
		return DefaultRate
	}

	atrs := indicator.ATR(highs, lows, closes, atrPeriod)
	mean := indicator.TailMean(atrs, window)

	rate := atrMultiplier * mean / currentPrice * 100

	if rate < MinRate {
		return MinRate
	}
	if rate > MaxRate {
		return MaxRate
	}
	return rate
}
