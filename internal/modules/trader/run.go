package trader

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"crypto-warren/internal/models"
	"crypto-warren/pkg/logger"
)

// MarkPriceStreamer is the push feed for live mark prices. The real
// client implements it over websocket; backtests run without one.
type MarkPriceStreamer interface {
	StreamMarkPrices(ctx context.Context, symbols []string) <-chan models.Ticker
}

// Run blocks ticking until ctx is cancelled. A cron expression takes
// precedence over the fixed interval.
//
// ctx only gates scheduling: a cancelled ctx stops new ticks, while the
// tick already running keeps an uncancelled context so its exchange
// calls are never aborted mid-submission. Callers that must not tear
// down over a live tick wait on WaitIdle after cancelling.
func (t *Trader) Run(ctx context.Context) error {
	tickCtx := context.WithoutCancel(ctx)
	if expr := t.cfg.Schedule.Cron; expr != "" {
		return t.runCron(ctx, tickCtx, expr)
	}
	return t.runInterval(ctx, tickCtx, time.Duration(t.cfg.Schedule.IntervalSec)*time.Second)
}

func (t *Trader) runCron(ctx, tickCtx context.Context, expr string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(expr, func() { t.Tick(tickCtx) }); err != nil {
		return err
	}
	logger.Info("schedule: cron %q", expr)
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

func (t *Trader) runInterval(ctx, tickCtx context.Context, interval time.Duration) error {
	logger.Info("schedule: every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.Tick(tickCtx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Tick(tickCtx)
		}
	}
}

// WatchMarkPrices consumes the push feed to keep the health state's
// websocket flag honest. Prices themselves are not used for decisions,
// ticks always work from a fresh REST snapshot.
func (t *Trader) WatchMarkPrices(ctx context.Context, streamer MarkPriceStreamer) {
	if streamer == nil || t.state == nil {
		return
	}
	stream := streamer.StreamMarkPrices(ctx, t.Symbols())
	go func() {
		defer t.state.SetWSConnected(false)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-stream:
				if !ok {
					return
				}
				t.state.SetWSConnected(true)
			}
		}
	}()
}
