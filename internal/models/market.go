package models

import "time"

// Bar is one OHLCV candle. Sequences are ordered by strictly increasing
// timestamp; gap handling is the data source's job, not ours.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

type Bars []Bar

func (b Bars) Closes() []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.Close
	}
	return out
}

func (b Bars) Highs() []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.High
	}
	return out
}

func (b Bars) Lows() []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.Low
	}
	return out
}

type Ticker struct {
	Symbol string
	Last   float64
}

type MarginMode string

const (
	MarginCross    MarginMode = "cross"
	MarginIsolated MarginMode = "isolated"
)

type MinMax struct {
	Min float64
	Max float64
}

// Market holds the per-symbol metadata the exchange declares: precision is
// in decimal places, limits bound the order amount.
type Market struct {
	Symbol          string
	AmountPrecision int
	PricePrecision  int
	AmountLimit     MinMax
}
