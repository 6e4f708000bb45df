package trend

import (
	"crypto-warren/internal/indicator"
	"crypto-warren/internal/models"
)

// savgolDetector runs a Savitzky-Golay pass over the EMA series before
// differencing. The extra smoothing suppresses one-bar EMA wobbles that
// would otherwise flip the signal back and forth.
type savgolDetector struct {
	window       int // EMA window
	smoothWindow int
	polyorder    int
}

func (d *savgolDetector) Name() string { return "savgol" }

func (d *savgolDetector) Trend(closes []float64) models.Trend {
	if len(closes) < d.window || len(closes) < d.smoothWindow {
		return models.TrendNone
	}

	emas := indicator.EMA(closes, d.window)
	smoothed := indicator.SavitzkyGolay(emas, d.smoothWindow, d.polyorder)

	delta, ok := lastDelta(smoothed)
	if !ok {
		return models.TrendNone
	}
	return trendOf(delta)
}
