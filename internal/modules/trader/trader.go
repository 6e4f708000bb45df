// Package trader drives the control loop: on every scheduled tick it
// snapshots exchange state, detects the per-symbol trend, reconciles
// positions against it and executes the resulting order plan.
package trader

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"crypto-warren/internal/exchange"
	"crypto-warren/internal/ledger"
	"crypto-warren/internal/models"
	"crypto-warren/internal/modules/config"
	"crypto-warren/internal/modules/executor"
	"crypto-warren/internal/modules/health/service"
	"crypto-warren/internal/modules/reconcile"
	"crypto-warren/internal/modules/trend"
	"crypto-warren/internal/notify"
	"crypto-warren/pkg/logger"
)

// maxConcurrentSymbols bounds the per-tick market-data fan-out.
const maxConcurrentSymbols = 4

// SymbolError is one symbol's failure inside a tick. Other symbols are
// unaffected; the tick as a whole still completes.
type SymbolError struct {
	Symbol string
	Err    error
}

// TickReport summarises one pass of the loop.
type TickReport struct {
	At      time.Time
	Plan    models.OrderPlan
	Results []executor.Result
	Errors  []SymbolError
}

type Trader struct {
	cfg        *config.Config
	exchange   exchange.Exchange
	detector   trend.Detector
	reconciler *reconcile.Reconciler
	executor   *executor.Executor
	store      ledger.Store
	notifier   notify.Notifier
	state      *service.State

	mu       sync.Mutex
	symbols  []string           // symbols that survived init
	recorded map[string]float64 // our recorded position size per symbol

	busy sync.Mutex // tick overlap guard, TryLock per tick
}

func New(
	cfg *config.Config,
	ex exchange.Exchange,
	detector trend.Detector,
	reconciler *reconcile.Reconciler,
	exec *executor.Executor,
	store ledger.Store,
	notifier notify.Notifier,
	state *service.State,
) *Trader {
	return &Trader{
		cfg:        cfg,
		exchange:   ex,
		detector:   detector,
		reconciler: reconciler,
		executor:   exec,
		store:      store,
		notifier:   notifier,
		state:      state,
		recorded:   make(map[string]float64),
	}
}

// Init loads markets and applies leverage and margin mode per symbol.
// A symbol failing setup is dropped and the rest keep trading; only a
// fully empty watchlist is fatal.
func (t *Trader) Init(ctx context.Context) error {
	if err := t.exchange.LoadMarkets(ctx); err != nil {
		return errors.Wrap(err, "trader: load markets")
	}

	var active []string
	for _, symbol := range t.cfg.Symbols {
		if err := t.exchange.SetLeverage(ctx, symbol, t.cfg.Leverage); err != nil {
			logger.Error("skip %s: set leverage: %v", symbol, err)
			continue
		}
		if err := t.exchange.SetMarginMode(ctx, symbol, models.MarginMode(t.cfg.MarginMode)); err != nil {
			logger.Error("skip %s: set margin mode: %v", symbol, err)
			continue
		}
		active = append(active, symbol)
	}
	if len(active) == 0 {
		return errors.New("trader: no tradable symbols after setup")
	}

	t.mu.Lock()
	t.symbols = active
	t.mu.Unlock()

	logger.Info("trading %d symbols: %v", len(active), active)
	return nil
}

// WaitIdle blocks until no tick is in flight. Used on shutdown so
// teardown never races a half-submitted order plan.
func (t *Trader) WaitIdle() {
	t.busy.Lock()
	defer t.busy.Unlock()
}

// Symbols returns the active watchlist.
func (t *Trader) Symbols() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.symbols))
	copy(out, t.symbols)
	return out
}

// symbolPlan is one symbol's reconciliation outcome, carried to the
// post-execution bookkeeping.
type symbolPlan struct {
	symbol   string
	plan     models.OrderPlan
	position *models.Position
	price    float64
}

// Tick runs one full pass. Concurrent Tick calls do not stack: a tick
// arriving while one is running is skipped.
func (t *Trader) Tick(ctx context.Context) TickReport {
	if !t.busy.TryLock() {
		logger.Info("tick skipped: previous tick still running")
		return TickReport{At: time.Now()}
	}
	defer t.busy.Unlock()

	span, ctx := opentracing.StartSpanFromContext(ctx, "trader.tick")
	defer span.Finish()

	report := TickReport{At: time.Now()}

	positions, err := t.exchange.FetchPositions(ctx)
	if err != nil {
		// без снапшота позиций любое решение было бы слепым
		report.Errors = append(report.Errors, SymbolError{Err: errors.Wrap(err, "fetch positions")})
		t.finishTick(&report, nil)
		return report
	}
	posBySymbol := make(map[string]*models.Position, len(positions))
	for i := range positions {
		posBySymbol[positions[i].Symbol] = &positions[i]
	}

	plans := t.planSymbols(ctx, posBySymbol, &report)

	var plan models.OrderPlan
	for _, sp := range plans {
		plan.Merge(sp.plan)
	}
	report.Plan = plan
	report.Results = t.executor.Execute(ctx, plan)

	t.settle(ctx, plans, report.Results)
	t.finishTick(&report, posBySymbol)
	return report
}

// planSymbols fans the market-data fetch and reconciliation out over
// the watchlist with bounded concurrency.
func (t *Trader) planSymbols(ctx context.Context, posBySymbol map[string]*models.Position, report *TickReport) []symbolPlan {
	symbols := t.Symbols()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		plans []symbolPlan
		sem   = make(chan struct{}, maxConcurrentSymbols)
	)
	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			sp, err := t.planSymbol(ctx, symbol, posBySymbol[symbol])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors = append(report.Errors, SymbolError{Symbol: symbol, Err: err})
				return
			}
			plans = append(plans, sp)
		}(symbol)
	}
	wg.Wait()
	return plans
}

func (t *Trader) planSymbol(ctx context.Context, symbol string, position *models.Position) (symbolPlan, error) {
	ticker, err := t.exchange.FetchTicker(ctx, symbol)
	if err != nil {
		return symbolPlan{}, errors.Wrap(err, "fetch ticker")
	}
	bars, err := t.exchange.FetchOHLCV(ctx, symbol, t.cfg.Timeframe, t.cfg.OHLCVLimit)
	if err != nil {
		return symbolPlan{}, errors.Wrap(err, "fetch ohlcv")
	}

	marketTrend := t.detector.Trend(bars.Closes())

	t.mu.Lock()
	recorded := t.recorded[symbol]
	t.mu.Unlock()

	plan, err := t.reconciler.Reconcile(reconcile.Input{
		Symbol:       symbol,
		Position:     position,
		RecordedSize: recorded,
		MarketTrend:  marketTrend,
		Notional:     t.cfg.NotionalValue,
		Price:        ticker.Last,
		Bars:         bars,
	})
	if err != nil {
		return symbolPlan{}, err
	}
	return symbolPlan{symbol: symbol, plan: plan, position: position, price: ticker.Last}, nil
}

// settle updates recorded sizes from execution results and writes
// closed round trips to the ledger.
func (t *Trader) settle(ctx context.Context, plans []symbolPlan, results []executor.Result) {
	closed := make(map[string]bool, len(results))
	opened := make(map[string]float64, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		switch r.Kind {
		case executor.KindClose:
			closed[r.Intent.Symbol] = true
		case executor.KindOpen:
			opened[r.Intent.Symbol] = r.Intent.Amount
		}
	}

	for _, sp := range plans {
		if closed[sp.symbol] {
			t.recordClose(ctx, sp)
		}
		if amount, ok := opened[sp.symbol]; ok {
			t.mu.Lock()
			t.recorded[sp.symbol] = amount
			t.mu.Unlock()
		}
	}
}

func (t *Trader) recordClose(ctx context.Context, sp symbolPlan) {
	t.mu.Lock()
	t.recorded[sp.symbol] = 0
	t.mu.Unlock()

	if sp.position == nil {
		return
	}
	trade := models.Trade{
		Symbol:     sp.symbol,
		Side:       sp.position.Side,
		Size:       sp.position.Size,
		EntryPrice: sp.position.EntryPrice,
		ExitPrice:  sp.price,
		ClosedAt:   time.Now(),
	}
	closed := *sp.position
	closed.ExitPrice = sp.price
	trade.PnL = closed.PnL()

	if err := t.store.RecordClose(ctx, trade); err != nil {
		logger.Error("record close %s: %v", sp.symbol, err)
	}
	if err := t.notifier.Send(ctx, notify.CloseMessage(trade)); err != nil {
		logger.Error("notify close %s: %v", sp.symbol, err)
	}
}

func (t *Trader) finishTick(report *TickReport, posBySymbol map[string]*models.Position) {
	for _, r := range report.Results {
		if r.Err != nil {
			report.Errors = append(report.Errors, SymbolError{Symbol: r.Intent.Symbol, Err: r.Err})
		}
	}
	if t.state != nil {
		t.state.TouchTick(report.At)
		t.state.AddTickErrors(len(report.Errors))
		t.state.SetOpenPositions(len(posBySymbol))
		t.state.SetReady(true)
	}
	for _, se := range report.Errors {
		logger.Error("tick error %s: %v", se.Symbol, se.Err)
	}
}
