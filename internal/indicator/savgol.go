package indicator

// SavitzkyGolay smooths the series by fitting a least-squares polynomial of
// the given order over a sliding window and evaluating it at each point.
// Windows are clamped at the edges, so the output keeps the input length.
// Callers must ensure window > polyorder; that is validated at config time.
func SavitzkyGolay(values []float64, window, polyorder int) []float64 {
	n := len(values)
	if n == 0 {
		return nil
	}
	if window > n {
		window = n
	}
	if polyorder >= window {
		polyorder = window - 1
	}
	if polyorder < 0 {
		polyorder = 0
	}

	out := make([]float64, n)
	half := window / 2
	for i := 0; i < n; i++ {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := lo + window
		if hi > n {
			hi = n
			lo = hi - window
		}
		out[i] = polyfitEval(values[lo:hi], i-lo, polyorder)
	}
	return out
}

// polyfitEval fits a polynomial of the given order to ys (x = 0..len-1) and
// evaluates it at x.
func polyfitEval(ys []float64, x, order int) float64 {
	m := order + 1

	// Normal equations A*c = b for the Vandermonde least-squares fit.
	a := make([][]float64, m)
	b := make([]float64, m)
	for r := 0; r < m; r++ {
		a[r] = make([]float64, m)
	}
	for j, y := range ys {
		xp := make([]float64, 2*m-1)
		xp[0] = 1
		for k := 1; k < len(xp); k++ {
			xp[k] = xp[k-1] * float64(j)
		}
		for r := 0; r < m; r++ {
			for c := 0; c < m; c++ {
				a[r][c] += xp[r+c]
			}
			b[r] += xp[r] * y
		}
	}

	coeffs := solve(a, b)

	v := 0.0
	xf := 1.0
	for _, c := range coeffs {
		v += c * xf
		xf *= float64(x)
	}
	return v
}

// solve runs Gaussian elimination with partial pivoting. The systems here
// are tiny (polyorder+1), so no fancy numerics needed.
func solve(a [][]float64, b []float64) []float64 {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if abs(a[r][col]) > abs(a[pivot][col]) {
				pivot = r
			}
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		if a[col][col] == 0 {
			continue // degenerate column, coefficient stays zero
		}
		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		if a[r][r] == 0 {
			continue
		}
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
