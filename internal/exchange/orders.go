package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"crypto-warren/internal/helper"
	"crypto-warren/internal/models"
)

// marginTypeUnchanged is what the venue returns when the margin mode is
// already the requested one; not an error for us.
const marginTypeUnchanged = -4046

func (c *Client) CreateOrder(
	ctx context.Context,
	symbol string,
	typ models.OrderType,
	side models.Side,
	amount, price float64,
	params models.OrderParams,
) (string, error) {
	if typ != models.OrderMarket {
		return "", fmt.Errorf("CreateOrder: unsupported order type %q", typ)
	}
	if amount <= 0 {
		return "", fmt.Errorf("CreateOrder: amount <= 0")
	}

	q := url.Values{}
	q.Set("symbol", helper.MarketID(symbol))
	q.Set("side", strings.ToUpper(string(side)))
	q.Set("quantity", c.formatAmount(symbol, amount))

	if params.CallbackRate > 0 {
		// trailing stop rides as its own order type on this venue
		q.Set("type", "TRAILING_STOP_MARKET")
		q.Set("callbackRate", strconv.FormatFloat(params.CallbackRate, 'f', 1, 64))
	} else {
		q.Set("type", "MARKET")
	}
	if params.ReduceOnly {
		q.Set("reduceOnly", "true")
	}
	if price > 0 {
		q.Set("price", strconv.FormatFloat(price, 'f', -1, 64))
	}

	data, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", q)
	if err != nil {
		return "", err
	}

	var r struct {
		OrderID int64  `json:"orderId"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("CreateOrder decode: %w; body=%s", err, string(data))
	}
	if r.OrderID == 0 {
		return "", fmt.Errorf("CreateOrder: empty orderId, body=%s", string(data))
	}
	return strconv.FormatInt(r.OrderID, 10), nil
}

func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	q := url.Values{}
	q.Set("symbol", helper.MarketID(symbol))
	_, err := c.signedRequest(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", q)
	return err
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	q := url.Values{}
	q.Set("symbol", helper.MarketID(symbol))
	q.Set("leverage", strconv.Itoa(leverage))
	_, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/leverage", q)
	return err
}

func (c *Client) SetMarginMode(ctx context.Context, symbol string, mode models.MarginMode) error {
	marginType := "CROSSED"
	if mode == models.MarginIsolated {
		marginType = "ISOLATED"
	}

	q := url.Values{}
	q.Set("symbol", helper.MarketID(symbol))
	q.Set("marginType", marginType)

	data, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/marginType", q)
	if err != nil {
		var apiErr struct {
			Code int `json:"code"`
		}
		if jsonErr := json.Unmarshal(data, &apiErr); jsonErr == nil && apiErr.Code == marginTypeUnchanged {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) formatAmount(symbol string, amount float64) string {
	precision := fallbackAmountPrecision
	if m, ok := c.Market(symbol); ok {
		precision = m.AmountPrecision
	}
	return strconv.FormatFloat(amount, 'f', precision, 64)
}
