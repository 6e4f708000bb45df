package sim

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"crypto-warren/internal/models"
)

const symbol = "SOL/USDC:USDC"

func history(closes ...float64) models.Bars {
	bars := make(models.Bars, len(closes))
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = models.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
		}
	}
	return bars
}

func newSim(t *testing.T, closes ...float64) *Sim {
	t.Helper()
	s, err := New(map[string]models.Bars{symbol: history(closes...)}, 2)
	require.NoError(t, err)
	return s
}

func TestNewRejectsShortHistory(t *testing.T) {
	_, err := New(map[string]models.Bars{symbol: history(1, 2)}, 2)
	require.Error(t, err)

	_, err = New(nil, 0)
	require.Error(t, err)
}

func TestNoLookAhead(t *testing.T) {
	ctx := context.Background()
	s := newSim(t, 10, 11, 12, 13, 14)

	bars, err := s.FetchOHLCV(ctx, symbol, "1m", 0)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, 11.0, bars[len(bars)-1].Close)

	tk, err := s.FetchTicker(ctx, symbol)
	require.NoError(t, err)
	require.Equal(t, 11.0, tk.Last)

	require.True(t, s.Advance())
	bars, err = s.FetchOHLCV(ctx, symbol, "1m", 0)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	require.Equal(t, 12.0, bars[len(bars)-1].Close)
}

func TestReplayStepsOncePerBar(t *testing.T) {
	s := newSim(t, 10, 11, 12, 13, 14)

	var seen []float64
	steps, err := s.Replay(context.Background(), func(ctx context.Context) error {
		tk, err := s.FetchTicker(ctx, symbol)
		if err != nil {
			return err
		}
		seen = append(seen, tk.Last)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 4, steps) // warmup 2 leaves 4 cursor positions: bars 2..5
	require.Equal(t, []float64{11, 12, 13, 14}, seen)
}

func TestReplayStopsOnStepError(t *testing.T) {
	s := newSim(t, 10, 11, 12, 13, 14)

	boom := errors.New("boom")
	steps, err := s.Replay(context.Background(), func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, steps)
}

func TestAdvanceStopsAtEnd(t *testing.T) {
	s := newSim(t, 10, 11, 12, 13)
	require.True(t, s.Advance())
	require.True(t, s.Advance())
	require.False(t, s.Advance())
}

func TestFetchOHLCVRespectsLimit(t *testing.T) {
	ctx := context.Background()
	s := newSim(t, 10, 11, 12, 13, 14, 15)
	require.True(t, s.Advance())
	require.True(t, s.Advance())

	bars, err := s.FetchOHLCV(ctx, symbol, "1m", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	require.Equal(t, 13.0, bars[2].Close)
}

func TestOpenThenClose(t *testing.T) {
	ctx := context.Background()
	s := newSim(t, 100, 101, 102, 105, 110)

	_, err := s.CreateOrder(ctx, symbol, models.OrderMarket, models.SideBuy, 2, 0, models.OrderParams{})
	require.NoError(t, err)

	positions, err := s.FetchPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, models.PositionLong, positions[0].Side)
	require.Equal(t, 101.0, positions[0].EntryPrice)

	require.True(t, s.Advance())
	require.True(t, s.Advance())

	_, err = s.CreateOrder(ctx, symbol, models.OrderMarket, models.SideSell, 2, 0, models.OrderParams{})
	require.NoError(t, err)

	positions, err = s.FetchPositions(ctx)
	require.NoError(t, err)
	require.Empty(t, positions)

	trades := s.Trades()
	require.Len(t, trades, 1)
	require.Equal(t, 101.0, trades[0].EntryPrice)
	require.Equal(t, 105.0, trades[0].ExitPrice)
	require.Equal(t, 8.0, trades[0].PnL) // (105-101)*2
}

func TestCloseSizeMismatch(t *testing.T) {
	ctx := context.Background()
	s := newSim(t, 100, 101, 102, 103)

	_, err := s.CreateOrder(ctx, symbol, models.OrderMarket, models.SideSell, 1.5, 0, models.OrderParams{})
	require.NoError(t, err)

	_, err = s.CreateOrder(ctx, symbol, models.OrderMarket, models.SideBuy, 1.0, 0, models.OrderParams{})
	require.ErrorIs(t, errors.Cause(err), ErrSizeMismatch)

	// position untouched, no trade recorded
	positions, err := s.FetchPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, 1.5, positions[0].Size)
	require.Empty(t, s.Trades())
}

func TestDoubleOpenRejected(t *testing.T) {
	ctx := context.Background()
	s := newSim(t, 100, 101, 102)

	_, err := s.CreateOrder(ctx, symbol, models.OrderMarket, models.SideBuy, 1, 0, models.OrderParams{})
	require.NoError(t, err)

	_, err = s.CreateOrder(ctx, symbol, models.OrderMarket, models.SideBuy, 1, 0, models.OrderParams{})
	require.Error(t, err)
}

func TestReduceOnlyQueuesStop(t *testing.T) {
	ctx := context.Background()
	s := newSim(t, 100, 101, 102)

	_, err := s.CreateOrder(ctx, symbol, models.OrderMarket, models.SideBuy, 1, 0, models.OrderParams{})
	require.NoError(t, err)

	_, err = s.CreateOrder(ctx, symbol, models.OrderMarket, models.SideSell, 1, 0, models.OrderParams{
		ReduceOnly:   true,
		CallbackRate: 1.0,
	})
	require.NoError(t, err)
	require.Equal(t, 1, s.OpenStops(symbol))

	// the stop did not close the position
	positions, err := s.FetchPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)

	require.NoError(t, s.CancelAllOrders(ctx, symbol))
	require.Equal(t, 0, s.OpenStops(symbol))
}

func TestMarkPriceFollowsCursor(t *testing.T) {
	ctx := context.Background()
	s := newSim(t, 100, 101, 110, 120)

	_, err := s.CreateOrder(ctx, symbol, models.OrderMarket, models.SideBuy, 1, 0, models.OrderParams{})
	require.NoError(t, err)
	require.True(t, s.Advance())

	positions, err := s.FetchPositions(ctx)
	require.NoError(t, err)
	require.Equal(t, 110.0, positions[0].MarkPrice)
	require.Equal(t, 101.0, positions[0].EntryPrice)
}

func TestLeverageAndMarginMode(t *testing.T) {
	ctx := context.Background()
	s := newSim(t, 100, 101, 102)

	require.NoError(t, s.SetLeverage(ctx, symbol, 3))
	require.NoError(t, s.SetMarginMode(ctx, symbol, models.MarginCross))
	require.Error(t, s.SetLeverage(ctx, "BTC/USDT:USDT", 3))
	require.Error(t, s.SetMarginMode(ctx, "BTC/USDT:USDT", models.MarginCross))
}
