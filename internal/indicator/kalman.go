package indicator

// Kalman is a scalar constant-state Kalman filter used to denoise a price
// series before differencing it.
type Kalman struct {
	ProcessVar     float64 // Q
	MeasurementVar float64 // R
}

const (
	defaultProcessVar     = 1e-4
	defaultMeasurementVar = 1e-2
)

// Smooth runs the filter forward over the series. Deterministic for a fixed
// input and parameters, which backtest replay parity depends on.
func (k Kalman) Smooth(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	q := k.ProcessVar
	if q <= 0 {
		q = defaultProcessVar
	}
	r := k.MeasurementVar
	if r <= 0 {
		r = defaultMeasurementVar
	}

	out := make([]float64, len(values))
	x := values[0]
	p := 1.0
	out[0] = x
	for i := 1; i < len(values); i++ {
		p += q
		gain := p / (p + r)
		x += gain * (values[i] - x)
		p *= 1 - gain
		out[i] = x
	}
	return out
}
