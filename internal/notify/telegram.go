package notify

import (
	"context"
	"fmt"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"crypto-warren/internal/exchange"
	"crypto-warren/internal/ledger"
	"crypto-warren/internal/modules/config"
	"crypto-warren/pkg/logger"
)

const recentTradesLimit = 10

// Telegram pushes events to one operator chat and answers /positions
// and /trades queries against live exchange state and the ledger.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64

	exchange exchange.Exchange
	store    ledger.Store

	stopOnce sync.Once
	done     chan struct{}
}

func NewTelegram(cfg *config.Config, ex exchange.Exchange, store ledger.Store) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:      b,
		chatID:   cfg.Telegram.ChatID,
		exchange: ex,
		store:    store,
		done:     make(chan struct{}),
	}, nil
}

func (t *Telegram) Send(_ context.Context, msg string) error {
	_, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg))
	return err
}

func (t *Telegram) Sendf(ctx context.Context, format string, args ...any) error {
	return t.Send(ctx, fmt.Sprintf(format, args...))
}

// Start runs the command loop until Stop or ctx cancellation.
func (t *Telegram) Start(ctx context.Context) {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.done:
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil || !update.Message.IsCommand() {
					continue
				}
				if update.Message.Chat.ID != t.chatID {
					continue
				}
				t.handleCommand(ctx, update.Message.Command())
			}
		}
	}()
}

func (t *Telegram) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		t.bot.StopReceivingUpdates()
	})
}

func (t *Telegram) handleCommand(ctx context.Context, command string) {
	var reply string
	switch command {
	case "positions":
		positions, err := t.exchange.FetchPositions(ctx)
		if err != nil {
			reply = "positions unavailable: " + err.Error()
			break
		}
		reply = formatPositions(positions)
	case "trades":
		trades, err := t.store.Recent(ctx, recentTradesLimit)
		if err != nil {
			reply = "trades unavailable: " + err.Error()
			break
		}
		reply = formatTrades(trades)
	default:
		return
	}
	if err := t.Send(ctx, reply); err != nil {
		logger.Error("telegram reply failed: %v", err)
	}
}
