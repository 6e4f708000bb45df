package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"crypto-warren/internal/helper"
	"crypto-warren/internal/models"
	"crypto-warren/pkg/logger"
)

const fallbackAmountPrecision = 3

func (c *Client) LoadMarkets(ctx context.Context) error {
	data, err := c.request(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return err
	}

	var info struct {
		Symbols []struct {
			Symbol            string `json:"symbol"`
			QuantityPrecision int    `json:"quantityPrecision"`
			PricePrecision    int    `json:"pricePrecision"`
			Filters           []struct {
				FilterType string `json:"filterType"`
				MinQty     string `json:"minQty"`
				MaxQty     string `json:"maxQty"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("LoadMarkets decode: %w", err)
	}

	byID := make(map[string]int, len(info.Symbols))
	for i, s := range info.Symbols {
		byID[s.Symbol] = i
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, symbol := range c.symbols {
		id := helper.MarketID(symbol)
		i, ok := byID[id]
		if !ok {
			return fmt.Errorf("LoadMarkets: symbol %s (%s) not listed", symbol, id)
		}
		s := info.Symbols[i]

		market := models.Market{
			Symbol:          symbol,
			AmountPrecision: s.QuantityPrecision,
			PricePrecision:  s.PricePrecision,
		}
		for _, f := range s.Filters {
			if f.FilterType != "LOT_SIZE" {
				continue
			}
			market.AmountLimit.Min, _ = strconv.ParseFloat(f.MinQty, 64)
			market.AmountLimit.Max, _ = strconv.ParseFloat(f.MaxQty, 64)
		}
		c.markets[id] = market
		logger.Info("market %s: amountPrecision=%d minQty=%f", symbol, market.AmountPrecision, market.AmountLimit.Min)
	}
	return nil
}

func (c *Client) Market(symbol string) (models.Market, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.markets[helper.MarketID(symbol)]
	return m, ok
}

func (c *Client) AmountToPrecision(symbol string, amount float64) float64 {
	precision := fallbackAmountPrecision
	if m, ok := c.Market(symbol); ok {
		precision = m.AmountPrecision
	}
	return helper.RoundDownToPrecision(amount, precision)
}
