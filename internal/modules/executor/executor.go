package executor

import (
	"context"
	"sync"

	"crypto-warren/internal/exchange"
	"crypto-warren/internal/models"
	"crypto-warren/internal/modules/config"
	"crypto-warren/pkg/logger"
)

// Kind says which plan partition an intent came from.
type Kind string

const (
	KindClose Kind = "close"
	KindOpen  Kind = "open"
	KindStop  Kind = "stop"
)

// Result is the outcome of one submitted intent. Failed intents are
// reported, never retried; the next tick reconciles from live state.
type Result struct {
	Kind    Kind
	Intent  models.OrderIntent
	OrderID string
	Err     error
}

// Executor submits a compiled order plan to the venue. Closes are
// joined before anything else goes out, so a trend flip cannot hold
// old and new exposure at the same time.
type Executor struct {
	exchange exchange.Exchange
	enabled  bool
}

func New(ex exchange.Exchange, cfg *config.Config) *Executor {
	return &Executor{exchange: ex, enabled: cfg.EnableTrading}
}

func (e *Executor) Execute(ctx context.Context, plan models.OrderPlan) []Result {
	if plan.Empty() {
		return nil
	}
	if !e.enabled {
		e.logDryRun(plan)
		return nil
	}

	results := e.submitAll(ctx, KindClose, plan.Closes)

	// opens and stop refreshes only after every close settled
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, intent := range plan.Opens {
		wg.Add(1)
		go func(intent models.OrderIntent) {
			defer wg.Done()
			r := e.submit(ctx, KindOpen, intent)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(intent)
	}
	for _, refresh := range plan.StopRefreshes {
		wg.Add(1)
		go func(refresh models.StopRefresh) {
			defer wg.Done()
			r := e.refreshStop(ctx, refresh)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(refresh)
	}
	wg.Wait()

	return results
}

func (e *Executor) submitAll(ctx context.Context, kind Kind, intents []models.OrderIntent) []Result {
	if len(intents) == 0 {
		return nil
	}
	results := make([]Result, len(intents))
	var wg sync.WaitGroup
	for i, intent := range intents {
		wg.Add(1)
		go func(i int, intent models.OrderIntent) {
			defer wg.Done()
			results[i] = e.submit(ctx, kind, intent)
		}(i, intent)
	}
	wg.Wait()
	return results
}

func (e *Executor) submit(ctx context.Context, kind Kind, intent models.OrderIntent) Result {
	id, err := e.exchange.CreateOrder(ctx, intent.Symbol, intent.Type, intent.Side, intent.Amount, intent.Price, intent.Params)
	if err != nil {
		logger.Error("order failed: %s %s %v: %v", intent.Symbol, intent.Side, intent.Amount, err)
		return Result{Kind: kind, Intent: intent, Err: err}
	}
	logger.Info("order placed: %s %s %v id=%s", intent.Symbol, intent.Side, intent.Amount, id)
	return Result{Kind: kind, Intent: intent, OrderID: id}
}

// refreshStop cancel-replaces the symbol's trailing stop. A cancel
// failure aborts the replace, otherwise two stops could stack up.
func (e *Executor) refreshStop(ctx context.Context, refresh models.StopRefresh) Result {
	if err := e.exchange.CancelAllOrders(ctx, refresh.Symbol); err != nil {
		logger.Error("cancel orders failed: %s: %v", refresh.Symbol, err)
		return Result{Kind: KindStop, Intent: refresh.Stop, Err: err}
	}
	return e.submit(ctx, KindStop, refresh.Stop)
}

func (e *Executor) logDryRun(plan models.OrderPlan) {
	for _, intent := range plan.Closes {
		logger.Info("dry-run close: %s %s %v", intent.Symbol, intent.Side, intent.Amount)
	}
	for _, intent := range plan.Opens {
		logger.Info("dry-run open: %s %s %v", intent.Symbol, intent.Side, intent.Amount)
	}
	for _, refresh := range plan.StopRefreshes {
		logger.Info("dry-run stop refresh: %s callback=%v", refresh.Symbol, refresh.Stop.Params.CallbackRate)
	}
}
