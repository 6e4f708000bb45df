package trader

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crypto-warren/internal/ledger"
	"crypto-warren/internal/models"
	"crypto-warren/internal/modules/config"
	"crypto-warren/internal/modules/executor"
	"crypto-warren/internal/modules/health/service"
	"crypto-warren/internal/modules/reconcile"
	"crypto-warren/internal/modules/trend"
	"crypto-warren/internal/notify"
	"crypto-warren/internal/sim"
	"crypto-warren/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const symbol = "SOL/USDC:USDC"

func testConfig() *config.Config {
	return &config.Config{
		Symbols:       []string{symbol},
		Timeframe:     "1m",
		Leverage:      3,
		MarginMode:    "cross",
		NotionalValue: 100,
		EnableTrading: true,
		OHLCVLimit:    50,
		Trend:         config.TrendConfig{Method: "ema", EMAWindow: 3},
		StopLoss:      config.StopLossConfig{Window: 3, ATRMultiplier: 1.4},
		Schedule:      config.ScheduleConfig{IntervalSec: 60},
	}
}

func barsFrom(closes []float64) models.Bars {
	bars := make(models.Bars, len(closes))
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = models.Bar{Timestamp: base.Add(time.Duration(i) * time.Minute), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1}
	}
	return bars
}

func newHarness(t *testing.T, cfg *config.Config, closes []float64, warmup int) (*Trader, *sim.Sim, *ledger.Memory, *service.State) {
	t.Helper()
	s, err := sim.New(map[string]models.Bars{symbol: barsFrom(closes)}, warmup)
	require.NoError(t, err)

	detector, err := trend.New(cfg.Trend)
	require.NoError(t, err)

	store := ledger.NewMemory()
	state := service.NewState()
	tr := New(
		cfg, s, detector,
		reconcile.New(s, reconcile.Config{StopLossWindow: cfg.StopLoss.Window, ATRMultiplier: cfg.StopLoss.ATRMultiplier}),
		executor.New(s, cfg),
		store, notify.Stdout{}, state,
	)
	require.NoError(t, tr.Init(context.Background()))
	return tr, s, store, state
}

func rising(n int, from float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)
	}
	return out
}

func TestInitDropsFailingSymbols(t *testing.T) {
	cfg := testConfig()
	cfg.Symbols = []string{symbol, "BTC/USDT:USDT"} // second one unknown to the sim

	s, err := sim.New(map[string]models.Bars{symbol: barsFrom(rising(20, 100))}, 10)
	require.NoError(t, err)
	detector, err := trend.New(cfg.Trend)
	require.NoError(t, err)
	tr := New(cfg, s, detector,
		reconcile.New(s, reconcile.Config{StopLossWindow: 3, ATRMultiplier: 1.4}),
		executor.New(s, cfg), ledger.NewMemory(), notify.Stdout{}, service.NewState())

	require.NoError(t, tr.Init(context.Background()))
	require.Equal(t, []string{symbol}, tr.Symbols())
}

func TestInitFailsWithNoTradableSymbols(t *testing.T) {
	cfg := testConfig()
	cfg.Symbols = []string{"BTC/USDT:USDT"}

	s, err := sim.New(map[string]models.Bars{symbol: barsFrom(rising(20, 100))}, 10)
	require.NoError(t, err)
	detector, err := trend.New(cfg.Trend)
	require.NoError(t, err)
	tr := New(cfg, s, detector,
		reconcile.New(s, reconcile.Config{StopLossWindow: 3, ATRMultiplier: 1.4}),
		executor.New(s, cfg), ledger.NewMemory(), notify.Stdout{}, service.NewState())

	require.Error(t, tr.Init(context.Background()))
}

func TestTickOpensOnUptrend(t *testing.T) {
	ctx := context.Background()
	tr, s, _, state := newHarness(t, testConfig(), rising(30, 100), 10)

	report := tr.Tick(ctx)
	require.Empty(t, report.Errors)
	require.Len(t, report.Plan.Opens, 1)
	require.Equal(t, models.SideBuy, report.Plan.Opens[0].Side)

	positions, err := s.FetchPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, models.PositionLong, positions[0].Side)
	require.Equal(t, 1, s.OpenStops(symbol))

	require.True(t, state.Ready())
	require.False(t, state.LastTick().IsZero())
}

func TestTickHoldsOnUnchangedTrend(t *testing.T) {
	ctx := context.Background()
	tr, s, store, _ := newHarness(t, testConfig(), rising(30, 100), 10)

	tr.Tick(ctx)
	require.True(t, s.Advance())

	report := tr.Tick(ctx)
	require.Empty(t, report.Errors)
	require.Empty(t, report.Plan.Opens)
	require.Empty(t, report.Plan.Closes)
	// the trailing stop is still cancel-replaced on hold ticks
	require.Len(t, report.Plan.StopRefreshes, 1)
	require.Equal(t, 1, s.OpenStops(symbol))

	trades, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, trades)
}

func TestTrendFlipClosesAndReverses(t *testing.T) {
	ctx := context.Background()
	closes := append(rising(20, 100), 118, 116, 114, 112, 110, 108, 106, 104)
	tr, s, store, _ := newHarness(t, testConfig(), closes, 10)

	tr.Tick(ctx)
	for s.Advance() {
		tr.Tick(ctx)
	}

	positions, err := s.FetchPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, models.PositionShort, positions[0].Side)

	trades, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, models.PositionLong, trades[0].Side)
	require.Equal(t, symbol, trades[0].Symbol)
	// went long on the way up, closed on the way down: still profitable
	require.Greater(t, trades[0].PnL, 0.0)

	require.Equal(t, 1, s.OpenStops(symbol))
}

// slowOrders blocks the first order submission until released, honoring
// ctx cancellation like the real HTTP client would.
type slowOrders struct {
	*sim.Sim
	enterOnce sync.Once
	entered   chan struct{}
	release   chan struct{}
}

func (s *slowOrders) CreateOrder(ctx context.Context, symbol string, typ models.OrderType, side models.Side, amount, price float64, params models.OrderParams) (string, error) {
	s.enterOnce.Do(func() { close(s.entered) })
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.release:
	}
	return s.Sim.CreateOrder(ctx, symbol, typ, side, amount, price, params)
}

func TestShutdownLetsInFlightSubmissionFinish(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.IntervalSec = 3600 // only the immediate first tick fires

	s, err := sim.New(map[string]models.Bars{symbol: barsFrom(rising(30, 100))}, 10)
	require.NoError(t, err)
	slow := &slowOrders{Sim: s, entered: make(chan struct{}), release: make(chan struct{})}

	detector, err := trend.New(cfg.Trend)
	require.NoError(t, err)
	tr := New(cfg, slow, detector,
		reconcile.New(slow, reconcile.Config{StopLossWindow: 3, ATRMultiplier: 1.4}),
		executor.New(slow, cfg), ledger.NewMemory(), notify.Stdout{}, service.NewState())
	require.NoError(t, tr.Init(context.Background()))

	loopCtx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = tr.Run(loopCtx)
	}()

	select {
	case <-slow.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first submission never started")
	}

	// stop signal arrives while the open order is still in flight
	cancel()
	close(slow.release)

	idle := make(chan struct{})
	go func() {
		tr.WaitIdle()
		close(idle)
	}()
	select {
	case <-idle:
	case <-time.After(5 * time.Second):
		t.Fatal("tick did not join after shutdown")
	}
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not stop")
	}

	// the submission went through despite the cancelled loop context
	positions, err := slow.Sim.FetchPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, models.PositionLong, positions[0].Side)
}

// flakyTicker fails FetchTicker on demand while everything else keeps
// working, so a tick must degrade per symbol instead of dying.
type flakyTicker struct {
	*sim.Sim
	fail bool
}

func (f *flakyTicker) FetchTicker(ctx context.Context, symbol string) (models.Ticker, error) {
	if f.fail {
		return models.Ticker{}, context.DeadlineExceeded
	}
	return f.Sim.FetchTicker(ctx, symbol)
}

func TestTickCollectsSymbolErrors(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	s, err := sim.New(map[string]models.Bars{symbol: barsFrom(rising(30, 100))}, 10)
	require.NoError(t, err)
	flaky := &flakyTicker{Sim: s}

	detector, err := trend.New(cfg.Trend)
	require.NoError(t, err)
	state := service.NewState()
	tr := New(cfg, flaky, detector,
		reconcile.New(flaky, reconcile.Config{StopLossWindow: 3, ATRMultiplier: 1.4}),
		executor.New(flaky, cfg), ledger.NewMemory(), notify.Stdout{}, state)
	require.NoError(t, tr.Init(ctx))

	flaky.fail = true
	report := tr.Tick(ctx)
	require.Len(t, report.Errors, 1)
	require.Equal(t, symbol, report.Errors[0].Symbol)
	require.True(t, report.Plan.Empty())
	require.Equal(t, int64(1), state.TickErrors())

	// next tick recovers without restart
	flaky.fail = false
	report = tr.Tick(ctx)
	require.Empty(t, report.Errors)
	require.Len(t, report.Plan.Opens, 1)
}
