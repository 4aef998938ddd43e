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

// SubmitStop ставит условный STOP_MARKET: reduce-only, close-position,
// сторона противоположна позиции. Возвращает algoId; полученный id
// вызывающий больше никогда не пересоздаёт.
func (c *Client) SubmitStop(ctx context.Context, symbol string, positionSide models.Side, triggerPrice, quantity float64) (int64, error) {
	if triggerPrice <= 0 {
		return 0, fmt.Errorf("SubmitStop: trigger price <= 0")
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("SubmitStop: quantity <= 0")
	}

	params := url.Values{}
	params.Set("algoType", "CONDITIONAL")
	params.Set("symbol", symbol)
	params.Set("side", string(positionSide.Opposite()))
	params.Set("type", "STOP_MARKET")
	params.Set("quantity", helper.FormatFloat(quantity))
	params.Set("triggerPrice", helper.FormatFloat(triggerPrice))
	params.Set("priceProtect", "TRUE")
	params.Set("closePosition", "true")
	params.Set("timeInForce", "GTC")
	params.Set("newOrderRespType", "RESULT")

	data, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/algoOrder", params)
	if err != nil {
		return 0, fmt.Errorf("SubmitStop: %w", err)
	}

	var r struct {
		AlgoID int64 `json:"algoId"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return 0, fmt.Errorf("SubmitStop decode: %w; body=%s", err, string(data))
	}
	if r.AlgoID == 0 {
		return 0, fmt.Errorf("SubmitStop: empty algoId RAW=%s", string(data))
	}
	return r.AlgoID, nil
}

func (c *Client) QueryStop(ctx context.Context, symbol string, algoID int64) (models.AlgoStatus, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("algoId", strconv.FormatInt(algoID, 10))

	data, err := c.doSigned(ctx, http.MethodGet, "/fapi/v1/algoOrder", params)
	if err != nil {
		return "", fmt.Errorf("QueryStop: %w", err)
	}

	var r struct {
		AlgoStatus string `json:"algoStatus"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("QueryStop decode: %w; body=%s", err, string(data))
	}
	if r.AlgoStatus == "" {
		return "", fmt.Errorf("QueryStop: empty algoStatus RAW=%s", string(data))
	}
	return models.AlgoStatus(r.AlgoStatus), nil
}
