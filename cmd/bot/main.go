package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"crypto-warren/internal/exchange"
	"crypto-warren/internal/ledger"
	"crypto-warren/internal/modules/config"
	"crypto-warren/internal/modules/executor"
	"crypto-warren/internal/modules/health"
	"crypto-warren/internal/modules/postgres"
	"crypto-warren/internal/modules/trader"
	"crypto-warren/internal/notify"
	"crypto-warren/pkg/db"
	"crypto-warren/pkg/logger"
	"crypto-warren/pkg/tracing"
)

const serviceName = "crypto-warren"

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		fx.Invoke(setupLogger),
		fx.Invoke(setupTracing),
		postgres.Module(),
		fx.Provide(newLedger),
		exchange.Module(),
		executor.Module(),
		notify.Module(),
		health.Module(),
		trader.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}

func setupLogger(cfg *config.Config) error {
	if err := logger.Init(cfg.LogLevel); err != nil {
		return err
	}
	logger.SetServiceName(serviceName)
	return nil
}

func setupTracing(lc fx.Lifecycle, cfg *config.Config) error {
	if cfg.Jaeger.Host == "" {
		return nil
	}
	_, closeTracer, err := tracing.InitTracer(serviceName, tracing.Config{
		Host: cfg.Jaeger.Host,
		Port: cfg.Jaeger.Port,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeTracer()
			return nil
		},
	})
	return nil
}

func newLedger(ctx context.Context, manager db.TxManager) (ledger.Store, error) {
	pg := ledger.NewPg(manager)
	if err := pg.Migrate(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}
