package trend

import (
	"crypto-warren/internal/indicator"
	"crypto-warren/internal/models"
)

// kalmanDetector smooths raw closes directly (no EMA pass) and treats a
// final delta inside the deadband as noise rather than a trend.
type kalmanDetector struct {
	deadband       float64
	processVar     float64
	measurementVar float64
}

const defaultDeadband = 0.1

func (d *kalmanDetector) Name() string { return "kalman" }

func (d *kalmanDetector) Trend(closes []float64) models.Trend {
	if len(closes) < 2 {
		return models.TrendNone
	}

	filter := indicator.Kalman{
		ProcessVar:     d.processVar,
		MeasurementVar: d.measurementVar,
	}
	smoothed := filter.Smooth(closes)

	delta, ok := lastDelta(smoothed)
	if !ok {
		return models.TrendNone
	}

	deadband := d.deadband
	if deadband <= 0 {
		deadband = defaultDeadband
	}
	if delta >= -deadband && delta <= deadband {
		return models.TrendNone
	}
	return trendOf(delta)
}
