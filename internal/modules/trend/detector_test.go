package trend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"crypto-warren/internal/models"
	"crypto-warren/internal/modules/config"
)

func newDetector(t *testing.T, cfg config.TrendConfig) Detector {
	t.Helper()
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

func TestFactoryUnknownMethod(t *testing.T) {
	_, err := New(config.TrendConfig{Method: "macd"})
	require.Error(t, err)
}

func TestEMARisingPrices(t *testing.T) {
	d := newDetector(t, config.TrendConfig{Method: "ema", EMAWindow: 3})
	got := d.Trend([]float64{180.0, 181.0, 183.0, 186.0})
	require.Equal(t, models.TrendUp, got)
}

func TestEMATurningPrices(t *testing.T) {
	d := newDetector(t, config.TrendConfig{Method: "ema", EMAWindow: 3})
	got := d.Trend([]float64{180.0, 183.0, 186.0, 181.0})
	require.Equal(t, models.TrendDown, got)
}

func TestEMASingleElement(t *testing.T) {
	d := newDetector(t, config.TrendConfig{Method: "ema", EMAWindow: 3})
	require.Equal(t, models.TrendNone, d.Trend([]float64{180.0}))
}

func TestEMAConstantSeriesIsNone(t *testing.T) {
	for _, window := range []int{1, 2, 5, 20} {
		d := newDetector(t, config.TrendConfig{Method: "ema", EMAWindow: window})
		got := d.Trend([]float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100})
		require.Equalf(t, models.TrendNone, got, "window=%d", window)
	}
}

// With window 1 the EMA is the raw series, so the signal must flip from
// DOWN to UP exactly on the first rising bar.
func TestEMATransitionAtInflection(t *testing.T) {
	d := newDetector(t, config.TrendConfig{Method: "ema", EMAWindow: 1})
	prices := []float64{110, 108, 106, 104, 102, 103, 105, 108}
	inflection := 5 // index of the first bar that closes higher

	for end := 2; end <= len(prices); end++ {
		got := d.Trend(prices[:end])
		want := models.TrendDown
		if end > inflection {
			want = models.TrendUp
		}
		require.Equalf(t, want, got, "prefix length %d", end)
	}
}

func TestSavgolRisingPrices(t *testing.T) {
	d := newDetector(t, config.TrendConfig{
		Method: "savgol", EMAWindow: 3, SmoothWindow: 5, PolyOrder: 2,
	})
	got := d.Trend([]float64{180, 181, 182, 183, 184, 186, 189, 193})
	require.Equal(t, models.TrendUp, got)
}

func TestSavgolConstantSeriesIsNone(t *testing.T) {
	d := newDetector(t, config.TrendConfig{
		Method: "savgol", EMAWindow: 3, SmoothWindow: 5, PolyOrder: 2,
	})
	got := d.Trend([]float64{100, 100, 100, 100, 100, 100, 100, 100})
	require.Equal(t, models.TrendNone, got)
}

func TestSavgolInsufficientData(t *testing.T) {
	d := newDetector(t, config.TrendConfig{
		Method: "savgol", EMAWindow: 3, SmoothWindow: 9, PolyOrder: 2,
	})
	require.Equal(t, models.TrendNone, d.Trend([]float64{100, 101, 102}))
}

func TestKalmanStrongMove(t *testing.T) {
	d := newDetector(t, config.TrendConfig{Method: "kalman"})

	rising := []float64{100, 102, 104, 106, 108, 110, 112, 114, 116, 118}
	require.Equal(t, models.TrendUp, d.Trend(rising))

	falling := []float64{118, 116, 114, 112, 110, 108, 106, 104, 102, 100}
	require.Equal(t, models.TrendDown, d.Trend(falling))
}

func TestKalmanDeadbandSwallowsNoise(t *testing.T) {
	d := newDetector(t, config.TrendConfig{Method: "kalman"})

	// long flat run with a tiny final uptick: the smoothed delta stays
	// inside the deadband
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100
	}
	prices[len(prices)-1] = 100.05
	require.Equal(t, models.TrendNone, d.Trend(prices))
}

func TestKalmanSingleElement(t *testing.T) {
	d := newDetector(t, config.TrendConfig{Method: "kalman"})
	require.Equal(t, models.TrendNone, d.Trend([]float64{100}))
}

func TestDeterminism(t *testing.T) {
	prices := []float64{180, 181, 179, 183, 186, 184, 188, 191, 190, 195}
	for _, cfg := range []config.TrendConfig{
		{Method: "ema", EMAWindow: 3},
		{Method: "savgol", EMAWindow: 3, SmoothWindow: 5, PolyOrder: 2},
		{Method: "kalman"},
	} {
		d := newDetector(t, cfg)
		first := d.Trend(prices)
		for i := 0; i < 5; i++ {
			require.Equalf(t, first, d.Trend(prices), "method=%s", cfg.Method)
		}
	}
}
