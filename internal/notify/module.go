package notify

import (
	"context"

	"go.uber.org/fx"

	"crypto-warren/internal/exchange"
	"crypto-warren/internal/ledger"
	"crypto-warren/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			func(cfg *config.Config, ex exchange.Exchange, store ledger.Store) (Notifier, *Telegram, error) {
				if cfg.Telegram.Token == "" {
					return Stdout{}, nil, nil
				}
				t, err := NewTelegram(cfg, ex, store)
				if err != nil {
					return nil, nil, err
				}
				return t, t, nil
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, t *Telegram) {
				if t == nil {
					return
				}
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						t.Start(ctx)
						return nil
					},
					OnStop: func(ctx context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
