package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"futures_bot/internal/helper"
	"futures_bot/internal/models"

	"github.com/bytedance/sonic"
)

// SubmitOrder отправляет один ордер и возвращает orderId биржи.
// Ошибка точности (-1111) возвращается как есть: корректирует её вызывающий,
// уменьшая количество знаков, это не обычный ретрай.
func (c *Client) SubmitOrder(ctx context.Context, req models.OrderRequest) (int64, error) {
	if !req.Side.Valid() {
		return 0, fmt.Errorf("SubmitOrder: unsupported side %q", req.Side)
	}
	if req.Quantity <= 0 {
		return 0, fmt.Errorf("SubmitOrder: quantity <= 0")
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", helper.FormatFloat(req.Quantity))

	if req.Type == models.OrderLimit {
		if req.Price <= 0 {
			return 0, fmt.Errorf("SubmitOrder: limit order without price")
		}
		params.Set("price", helper.FormatFloat(req.Price))
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		params.Set("timeInForce", tif)
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if !req.GoodTill.IsZero() {
		params.Set("timeInForce", "GTD")
		params.Set("goodTillDate", strconv.FormatInt(req.GoodTill.UnixMilli(), 10))
	}

	data, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return 0, fmt.Errorf("SubmitOrder: %w", err)
	}

	var r struct {
		OrderID int64 `json:"orderId"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return 0, fmt.Errorf("SubmitOrder decode: %w; body=%s", err, string(data))
	}
	if r.OrderID == 0 {
		return 0, fmt.Errorf("SubmitOrder: empty orderId RAW=%s", string(data))
	}
	return r.OrderID, nil
}
