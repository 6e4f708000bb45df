// Package indicator holds the numeric primitives the trend and stop-loss
// code is built on. Everything here is a pure function over float slices:
// same input, same output, no state shared between calls.
package indicator

// EMA computes the exponential moving average series for the given window.
// Seeded with the first value, alpha = 2/(window+1). Output has the same
// length as the input.
func EMA(values []float64, window int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if window <= 1 {
		window = 1
	}
	alpha := 2.0 / (float64(window) + 1)

	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}
