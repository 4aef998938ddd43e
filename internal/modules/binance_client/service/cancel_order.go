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

// CancelOrder снимает ордер. Гонка cancel-после-fill приходит от биржи
// кодом -2011 и мапится в CodeAlreadyFilled — для вызывающего это не провал,
// а подтверждение исполнения.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (models.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	data, err := c.doSigned(ctx, http.MethodDelete, "/fapi/v1/order", params)
	if err != nil {
		return "", fmt.Errorf("CancelOrder: %w", err)
	}

	var r struct {
		Status string `json:"status"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("CancelOrder decode: %w; body=%s", err, string(data))
	}
	if r.Status == "" {
		return "", fmt.Errorf("CancelOrder: empty status RAW=%s", string(data))
	}
	return models.OrderStatus(r.Status), nil
}
