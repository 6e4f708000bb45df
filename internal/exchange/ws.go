package exchange

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"crypto-warren/internal/helper"
	"crypto-warren/internal/models"
	"crypto-warren/pkg/logger"
)

// StreamMarkPrices opens one combined websocket for all symbols and emits
// mark-price ticks until the context is cancelled. Reconnects forever with
// a short backoff; consumers only ever see the channel.
func (c *Client) StreamMarkPrices(ctx context.Context, symbols []string) <-chan models.Ticker {
	out := make(chan models.Ticker)

	go func() {
		defer close(out)

		if len(symbols) == 0 {
			return
		}

		streams := make([]string, 0, len(symbols))
		unified := make(map[string]string, len(symbols))
		for _, s := range symbols {
			id := helper.MarketID(s)
			streams = append(streams, strings.ToLower(id)+"@markPrice")
			unified[id] = s
		}
		url := c.wsURL + "/stream?streams=" + strings.Join(streams, "/")

		for {
			if ctx.Err() != nil {
				return
			}

			logger.Info("[WS] connect markPrice, %d symbols", len(symbols))
			conn, _, err := c.wsDialer.DialContext(ctx, url, nil)
			if err != nil {
				logger.Error("[WS] dial: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			// keepalive, the server drops silent connections
			stopPing := make(chan struct{})
			go func() {
				t := time.NewTicker(20 * time.Second)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-stopPing:
						return
					case <-t.C:
						_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
					}
				}
			}()

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					logger.Error("[WS] read: %v", err)
					_ = conn.Close()
					close(stopPing)
					// same backoff as a failed dial, a server that
					// accepts then drops would otherwise spin hot
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Second):
					}
					break
				}

				tick, ok := parseMarkPriceFrame(msg)
				if !ok {
					continue
				}
				if sym, found := unified[tick.Symbol]; found {
					tick.Symbol = sym
				}

				select {
				case <-ctx.Done():
					_ = conn.Close()
					return
				case out <- tick:
				}
			}
		}
	}()

	return out
}

func parseMarkPriceFrame(msg []byte) (models.Ticker, bool) {
	var frame struct {
		Stream string `json:"stream"`
		Data   struct {
			Event  string `json:"e"`
			Symbol string `json:"s"`
			Price  string `json:"p"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(msg, &frame); err != nil {
		return models.Ticker{}, false
	}
	if frame.Data.Event != "markPriceUpdate" || frame.Data.Symbol == "" {
		return models.Ticker{}, false
	}
	price, err := strconv.ParseFloat(frame.Data.Price, 64)
	if err != nil {
		return models.Ticker{}, false
	}
	return models.Ticker{Symbol: frame.Data.Symbol, Last: price}, true
}
