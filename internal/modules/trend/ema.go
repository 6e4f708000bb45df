package trend

import (
	"crypto-warren/internal/indicator"
	"crypto-warren/internal/models"
)

type emaDetector struct {
	window int
}

func (d *emaDetector) Name() string { return "ema" }

func (d *emaDetector) Trend(closes []float64) models.Trend {
	if len(closes) < d.window {
		return models.TrendNone
	}

	emas := indicator.EMA(closes, d.window)

	delta, ok := lastDelta(emas)
	if !ok {
		return models.TrendNone
	}
	return trendOf(delta)
}
