package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
)

// SetLeverage выставляет плечо по символу; вызывается один раз на жизненный цикл.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) (int, error) {
	if leverage <= 0 {
		return 0, fmt.Errorf("SetLeverage: leverage <= 0")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	data, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/leverage", params)
	if err != nil {
		return 0, fmt.Errorf("SetLeverage: %w", err)
	}

	var r struct {
		Leverage int `json:"leverage"`
	}
	if err := sonic.Unmarshal(data, &r); err != nil {
		return 0, fmt.Errorf("SetLeverage decode: %w; body=%s", err, string(data))
	}
	return r.Leverage, nil
}
