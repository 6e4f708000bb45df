package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"crypto-warren/internal/helper"
	"crypto-warren/internal/models"
	"crypto-warren/internal/modules/config"
)

// Client talks to a USDⓈ-margined futures REST/WS API (Binance wire
// format). Requests that touch account state are HMAC-signed.
type Client struct {
	http     *http.Client
	wsDialer *websocket.Dialer

	baseURL   string
	wsURL     string
	apiKey    string
	apiSecret string

	symbols []string

	mu      sync.RWMutex
	markets map[string]models.Market // keyed by market id, e.g. "SOLUSDC"
}

// NewClient builds a client trading the given unified symbols
// (e.g. "SOL/USDC:USDC").
func NewClient(cfg config.ExchangeConfig, symbols []string) *Client {
	return &Client{
		http:      &http.Client{Timeout: 15 * time.Second},
		wsDialer:  websocket.DefaultDialer,
		baseURL:   cfg.BaseURL,
		wsURL:     cfg.WSURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		symbols:   symbols,
		markets:   make(map[string]models.Market),
	}
}

func (c *Client) sign(query string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// request performs a public (unsigned) call.
func (c *Client) request(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return c.do(req, method, path)
}

// signedRequest appends timestamp+signature and the API-key header.
func (c *Client) signedRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")
	query := params.Encode()
	query += "&signature=" + c.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	return c.do(req, method, path)
}

func (c *Client) do(req *http.Request, method, path string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Code != 0 {
			return data, fmt.Errorf("%s %s: http %d code=%d msg=%s", method, path, resp.StatusCode, apiErr.Code, apiErr.Msg)
		}
		return data, fmt.Errorf("%s %s: http %d: %s", method, path, resp.StatusCode, string(data))
	}
	return data, nil
}

func (c *Client) FetchTicker(ctx context.Context, symbol string) (models.Ticker, error) {
	params := url.Values{}
	params.Set("symbol", helper.MarketID(symbol))

	data, err := c.request(ctx, http.MethodGet, "/fapi/v1/ticker/price", params)
	if err != nil {
		return models.Ticker{}, err
	}

	var r struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return models.Ticker{}, fmt.Errorf("FetchTicker decode: %w", err)
	}
	last, err := strconv.ParseFloat(r.Price, 64)
	if err != nil {
		return models.Ticker{}, fmt.Errorf("FetchTicker price %q: %w", r.Price, err)
	}
	return models.Ticker{Symbol: symbol, Last: last}, nil
}

func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) (models.Bars, error) {
	params := url.Values{}
	params.Set("symbol", helper.MarketID(symbol))
	params.Set("interval", helper.NormTF(timeframe))
	params.Set("limit", strconv.Itoa(limit))

	data, err := c.request(ctx, http.MethodGet, "/fapi/v1/klines", params)
	if err != nil {
		return nil, err
	}

	// kline row: [openTime, open, high, low, close, volume, ...]
	var rows [][]json.RawMessage
	if err := sonic.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("FetchOHLCV decode: %w", err)
	}

	bars := make(models.Bars, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			continue
		}
		vals := make([]float64, 5)
		bad := false
		for i := 0; i < 5; i++ {
			var s string
			if err := json.Unmarshal(row[i+1], &s); err != nil {
				bad = true
				break
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				bad = true
				break
			}
			vals[i] = v
		}
		if bad {
			continue
		}
		bars = append(bars, models.Bar{
			Timestamp: time.UnixMilli(openTime),
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return bars, nil
}

func (c *Client) FetchPositions(ctx context.Context) ([]models.Position, error) {
	data, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", nil)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
		EntryPrice  string `json:"entryPrice"`
		MarkPrice   string `json:"markPrice"`
	}
	if err := sonic.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("FetchPositions decode: %w", err)
	}

	out := make([]models.Position, 0, len(rows))
	for _, row := range rows {
		amt, _ := strconv.ParseFloat(row.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(row.EntryPrice, 64)
		mark, _ := strconv.ParseFloat(row.MarkPrice, 64)

		side := models.PositionLong
		if amt < 0 {
			side = models.PositionShort
			amt = -amt
		}
		out = append(out, models.Position{
			Symbol:     c.unifiedSymbol(row.Symbol),
			Side:       side,
			Size:       amt,
			EntryPrice: entry,
			MarkPrice:  mark,
		})
	}
	return out, nil
}

// unifiedSymbol maps a market id back onto the configured symbol when the
// market table knows it; falls back to the raw id.
func (c *Client) unifiedSymbol(marketID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.markets[marketID]; ok {
		return m.Symbol
	}
	return marketID
}
