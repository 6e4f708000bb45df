package indicator

import "math"

// ATR computes the Average True Range series with Wilder smoothing.
// The first window bars warm up with a simple mean of the true range.
func ATR(highs, lows, closes []float64, window int) []float64 {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n {
		return nil
	}
	if window < 1 {
		window = 1
	}

	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	out := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		if i < window {
			sum += tr[i]
			out[i] = sum / float64(i+1)
			continue
		}
		// Wilder: atr = (prev*(n-1) + tr) / n
		out[i] = (out[i-1]*float64(window-1) + tr[i]) / float64(window)
	}
	return out
}

// Mean of the trailing n values (all of them when n exceeds the length).
func TailMean(values []float64, n int) float64 {
	if len(values) == 0 || n <= 0 {
		return 0
	}
	if n > len(values) {
		n = len(values)
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}
