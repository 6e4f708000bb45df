package trader

import (
	"context"

	"go.uber.org/fx"

	"crypto-warren/internal/exchange"
	"crypto-warren/internal/modules/config"
	"crypto-warren/internal/modules/reconcile"
	"crypto-warren/internal/modules/trend"
)

func Module() fx.Option {
	return fx.Module("trader",
		fx.Provide(
			func(cfg *config.Config) (trend.Detector, error) {
				return trend.New(cfg.Trend)
			},
			func(ex exchange.Exchange, cfg *config.Config) *reconcile.Reconciler {
				return reconcile.New(ex, reconcile.Config{
					StopLossWindow: cfg.StopLoss.Window,
					ATRMultiplier:  cfg.StopLoss.ATRMultiplier,
				})
			},
			New,
		),
		fx.Invoke(runTrader),
	)
}

type runParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Trader    *Trader
	Client    *exchange.Client `optional:"true"`
}

func runTrader(p runParams) {
	loopCtx, cancel := context.WithCancel(context.Background())

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := p.Trader.Init(ctx); err != nil {
				cancel()
				return err
			}
			if p.Client != nil {
				p.Trader.WatchMarkPrices(loopCtx, p.Client)
			}
			go func() { _ = p.Trader.Run(loopCtx) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// stop new ticks, then join the one that may be mid-flight
			cancel()
			p.Trader.WaitIdle()
			return nil
		},
	})
}
