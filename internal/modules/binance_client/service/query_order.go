package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"futures_bot/internal/models"

	"github.com/bytedance/sonic"
)

func (c *Client) QueryOrder(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	data, err := c.doSigned(ctx, http.MethodGet, "/fapi/v1/order", params)
	if err != nil {
		return "", fmt.Errorf("QueryOrder: %w", err)
	}

	var r struct {
		Status string `json:"status"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("QueryOrder decode: %w; body=%s", err, string(data))
	}
	if r.Status == "" {
		return "", fmt.Errorf("QueryOrder: empty status RAW=%s", string(data))
	}
	return models.OrderStatus(r.Status), nil
}
