// Package trend turns a close-price series into a directional signal.
// All detectors are pure and deterministic: fixed input and configuration
// always produce the same trend, which backtest replay parity relies on.
package trend

import (
	"fmt"

	"crypto-warren/internal/models"
	"crypto-warren/internal/modules/config"
)

// Detector reports the market trend for an ordered close-price series.
// Insufficient data degrades to TrendNone; a detector never errors.
type Detector interface {
	Trend(closes []float64) models.Trend
	Name() string
}

// New selects the detector variant from configuration. Window/order
// preconditions are the config layer's job; an unknown method is a
// configuration error.
func New(cfg config.TrendConfig) (Detector, error) {
	switch cfg.Method {
	case "ema":
		return &emaDetector{window: cfg.EMAWindow}, nil
	case "savgol":
		return &savgolDetector{
			window:       cfg.EMAWindow,
			smoothWindow: cfg.SmoothWindow,
			polyorder:    cfg.PolyOrder,
		}, nil
	case "kalman":
		return &kalmanDetector{
			deadband:       cfg.Deadband,
			processVar:     cfg.KalmanProcessVar,
			measurementVar: cfg.KalmanMeasurementVar,
		}, nil
	}
	return nil, fmt.Errorf("trend: unknown method %q", cfg.Method)
}

// lastDelta is the final first-difference of a smoothed series.
func lastDelta(series []float64) (float64, bool) {
	if len(series) < 2 {
		return 0, false
	}
	return series[len(series)-1] - series[len(series)-2], true
}

func trendOf(delta float64) models.Trend {
	switch {
	case delta > 0:
		return models.TrendUp
	case delta < 0:
		return models.TrendDown
	}
	return models.TrendNone
}
