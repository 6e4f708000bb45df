// Command backtest replays a CSV candle history through the full
// trading pipeline against the in-memory exchange and prints the
// resulting trade log.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"crypto-warren/internal/ledger"
	"crypto-warren/internal/models"
	"crypto-warren/internal/modules/config"
	"crypto-warren/internal/modules/executor"
	"crypto-warren/internal/modules/health/service"
	"crypto-warren/internal/modules/reconcile"
	"crypto-warren/internal/modules/trader"
	"crypto-warren/internal/modules/trend"
	"crypto-warren/internal/notify"
	"crypto-warren/internal/sim"
	"crypto-warren/pkg/logger"
)

func main() {
	csvPath := flag.String("csv", "", "candle history: timestamp_ms,open,high,low,close,volume")
	symbol := flag.String("symbol", "", "override the configured symbol")
	warmup := flag.Int("warmup", 50, "bars visible before the first tick")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("backtest: -csv is required")
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName("crypto-warren-backtest")

	if *symbol != "" {
		cfg.Symbols = []string{*symbol}
	}
	cfg.Symbols = cfg.Symbols[:1]
	cfg.EnableTrading = true

	bars, err := loadBars(*csvPath)
	if err != nil {
		log.Fatal(err)
	}

	s, err := sim.New(map[string]models.Bars{cfg.Symbols[0]: bars}, *warmup)
	if err != nil {
		log.Fatal(err)
	}

	detector, err := trend.New(cfg.Trend)
	if err != nil {
		log.Fatal(err)
	}
	store := ledger.NewMemory()
	tr := trader.New(
		cfg, s, detector,
		reconcile.New(s, reconcile.Config{
			StopLossWindow: cfg.StopLoss.Window,
			ATRMultiplier:  cfg.StopLoss.ATRMultiplier,
		}),
		executor.New(s, cfg),
		store, notify.Stdout{}, service.NewState(),
	)

	ctx := context.Background()
	if err := tr.Init(ctx); err != nil {
		log.Fatal(err)
	}

	steps, err := s.Replay(ctx, func(ctx context.Context) error {
		tr.Tick(ctx)
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	report(ctx, store, steps, len(bars))
}

func report(ctx context.Context, store ledger.Store, steps, total int) {
	trades, err := store.Recent(ctx, 0)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("replayed %d ticks over %d bars, %d trades\n\n", steps, total, len(trades))
	var pnl float64
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		pnl += t.PnL
		fmt.Printf("%s  %-5s %-16s size %-10.4f entry %-10.4f exit %-10.4f pnl %+.4f\n",
			t.ClosedAt.Format(time.DateTime), t.Side, t.Symbol, t.Size, t.EntryPrice, t.ExitPrice, t.PnL)
	}
	fmt.Printf("\ntotal pnl: %+.4f\n", pnl)
}

func loadBars(path string) (models.Bars, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6

	var bars models.Bars
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ts, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			// header row
			if len(bars) == 0 {
				continue
			}
			return nil, fmt.Errorf("bad timestamp %q", record[0])
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			if vals[i], err = strconv.ParseFloat(record[i+1], 64); err != nil {
				return nil, fmt.Errorf("bad field %q: %w", record[i+1], err)
			}
		}
		bars = append(bars, models.Bar{
			Timestamp: time.UnixMilli(ts),
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return bars, nil
}
