// Package sim is an in-memory exchange used by the backtest binary and
// the trading-loop tests. It implements the same interface as the real
// client, fed by pre-loaded bar history with a moving cursor so that a
// strategy can never see a candle it has not "lived" yet.
package sim

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"crypto-warren/internal/helper"
	"crypto-warren/internal/models"
)

// ErrSizeMismatch is returned when a closing order does not match the
// open position's size exactly. The simulator never partially fills.
var ErrSizeMismatch = errors.New("sim: close size does not match position size")

const defaultAmountPrecision = 3

type stopOrder struct {
	id     string
	side   models.Side
	amount float64
	params models.OrderParams
}

// Sim holds per-symbol bar history and replays it one bar at a time.
// Safe for concurrent use; the executor fans orders out in goroutines.
type Sim struct {
	mu sync.Mutex

	bars   map[string]models.Bars
	cursor int // bars[symbol][:cursor] is the visible history

	positions map[string]models.Position
	stops     map[string][]stopOrder
	trades    []models.Trade
	nextID    int64

	leverage   map[string]int
	marginMode map[string]models.MarginMode
}

// New builds a simulator over the given histories. The cursor starts at
// warmup bars so indicators have something to chew on from step one.
func New(bars map[string]models.Bars, warmup int) (*Sim, error) {
	if len(bars) == 0 {
		return nil, errors.New("sim: no bar history")
	}
	for symbol, history := range bars {
		if len(history) <= warmup {
			return nil, errors.Errorf("sim: %s has %d bars, need more than warmup %d", symbol, len(history), warmup)
		}
	}
	return &Sim{
		bars:       bars,
		cursor:     warmup,
		positions:  make(map[string]models.Position),
		stops:      make(map[string][]stopOrder),
		leverage:   make(map[string]int),
		marginMode: make(map[string]models.MarginMode),
		nextID:     1,
	}, nil
}

// Advance moves the cursor one bar forward. Returns false once any
// symbol's history is exhausted.
func (s *Sim) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, history := range s.bars {
		if s.cursor >= len(history) {
			return false
		}
	}
	s.cursor++
	return true
}

// Replay runs step once per visible cursor position, advancing one bar
// after each pass until the history is exhausted, ctx is cancelled, or
// step fails. Returns the number of completed passes.
func (s *Sim) Replay(ctx context.Context, step func(context.Context) error) (int, error) {
	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		if err := step(ctx); err != nil {
			return steps, err
		}
		steps++
		if !s.Advance() {
			return steps, nil
		}
	}
}

// Trades returns the closed round trips recorded so far.
func (s *Sim) Trades() []models.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

// OpenStops reports the queued reduce-only orders for a symbol.
func (s *Sim) OpenStops(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stops[symbol])
}

func (s *Sim) price(symbol string) (float64, error) {
	history, ok := s.bars[symbol]
	if !ok {
		return 0, errors.Errorf("sim: unknown symbol %s", symbol)
	}
	return history[s.cursor-1].Close, nil
}

func (s *Sim) LoadMarkets(context.Context) error { return nil }

func (s *Sim) Market(symbol string) (models.Market, bool) {
	if _, ok := s.bars[symbol]; !ok {
		return models.Market{}, false
	}
	return models.Market{
		Symbol:          symbol,
		AmountPrecision: defaultAmountPrecision,
		PricePrecision:  defaultAmountPrecision,
	}, true
}

func (s *Sim) AmountToPrecision(_ string, amount float64) float64 {
	return helper.RoundDownToPrecision(amount, defaultAmountPrecision)
}

func (s *Sim) FetchTicker(_ context.Context, symbol string) (models.Ticker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, err := s.price(symbol)
	if err != nil {
		return models.Ticker{}, err
	}
	return models.Ticker{Symbol: symbol, Last: last}, nil
}

// FetchOHLCV returns at most limit bars ending at the cursor. Bars past
// the cursor stay invisible.
func (s *Sim) FetchOHLCV(_ context.Context, symbol, _ string, limit int) (models.Bars, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, ok := s.bars[symbol]
	if !ok {
		return nil, errors.Errorf("sim: unknown symbol %s", symbol)
	}
	visible := history[:s.cursor]
	if limit > 0 && len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}
	out := make(models.Bars, len(visible))
	copy(out, visible)
	return out, nil
}

func (s *Sim) FetchPositions(context.Context) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Position, 0, len(s.positions))
	for _, p := range s.positions {
		mark, err := s.price(p.Symbol)
		if err == nil {
			p.MarkPrice = mark
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Sim) CreateOrder(_ context.Context, symbol string, _ models.OrderType, side models.Side, amount, _ float64, params models.OrderParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount <= 0 {
		return "", errors.Errorf("sim: bad amount %v for %s", amount, symbol)
	}
	price, err := s.price(symbol)
	if err != nil {
		return "", err
	}
	id := strconv.FormatInt(s.nextID, 10)
	s.nextID++

	// Reduce-only orders queue as protective stops; the simulator does
	// not trigger them on price movement, the control loop replaces them
	// each tick anyway.
	if params.ReduceOnly {
		s.stops[symbol] = append(s.stops[symbol], stopOrder{id: id, side: side, amount: amount, params: params})
		return id, nil
	}

	pos, open := s.positions[symbol]
	if open {
		if side != pos.CloseSide() {
			return "", errors.Errorf("sim: position already open on %s", symbol)
		}
		if amount != pos.Size {
			return "", errors.Wrap(ErrSizeMismatch, fmt.Sprintf("%s: order %v vs position %v", symbol, amount, pos.Size))
		}
		pos.ExitPrice = price
		s.trades = append(s.trades, models.Trade{
			ID:         s.nextID,
			Symbol:     symbol,
			Side:       pos.Side,
			Size:       pos.Size,
			EntryPrice: pos.EntryPrice,
			ExitPrice:  price,
			PnL:        pos.PnL(),
			ClosedAt:   s.bars[symbol][s.cursor-1].Timestamp,
		})
		s.nextID++
		delete(s.positions, symbol)
		return id, nil
	}

	posSide := models.PositionLong
	if side == models.SideSell {
		posSide = models.PositionShort
	}
	s.positions[symbol] = models.Position{
		Symbol:     symbol,
		Side:       posSide,
		Size:       amount,
		EntryPrice: price,
		MarkPrice:  price,
	}
	return id, nil
}

func (s *Sim) CancelAllOrders(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stops, symbol)
	return nil
}

func (s *Sim) SetLeverage(_ context.Context, symbol string, leverage int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bars[symbol]; !ok {
		return errors.Errorf("sim: unknown symbol %s", symbol)
	}
	s.leverage[symbol] = leverage
	return nil
}

func (s *Sim) SetMarginMode(_ context.Context, symbol string, mode models.MarginMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bars[symbol]; !ok {
		return errors.Errorf("sim: unknown symbol %s", symbol)
	}
	s.marginMode[symbol] = mode
	return nil
}
